// Package domain contains persistence models for the company service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Company represents an issuing business. Its fiscal data appears on
// every invoice it emits.
type Company struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	Name       string       `gorm:"type:text;not null" json:"name"`
	Slug       string       `gorm:"type:text;not null;uniqueIndex:ux_companies_slug" json:"slug"`
	NIF        string       `gorm:"column:nif;type:text;not null" json:"nif"`
	Address    string       `gorm:"type:text;not null;default:''" json:"address"`
	PostalCode string       `gorm:"column:postal_code;type:text;not null;default:''" json:"postal_code"`
	Email      string       `gorm:"type:text;not null;default:''" json:"email"`
	Phone      string       `gorm:"type:text;not null;default:''" json:"phone"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Company) TableName() string { return "companies" }
