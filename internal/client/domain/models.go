// Package domain contains core types for the client service.
//
// A client is an invoice recipient belonging to one company. Clients
// are keyed by (company_id, nif) so the same person invoiced by two
// companies exists twice, once per company.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Client struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID  snowflake.ID `gorm:"column:company_id;not null;uniqueIndex:ux_clients_company_nif,priority:1" json:"company_id"`
	Name       string       `gorm:"type:text;not null" json:"name"`
	NIF        string       `gorm:"column:nif;type:text;not null;uniqueIndex:ux_clients_company_nif,priority:2" json:"nif"`
	Email      string       `gorm:"type:text;not null;default:''" json:"email"`
	Address    string       `gorm:"type:text;not null;default:''" json:"address"`
	PostalCode string       `gorm:"column:postal_code;type:text;not null;default:''" json:"postal_code"`
	Phone      string       `gorm:"type:text;not null;default:''" json:"phone"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Client) TableName() string { return "clients" }

// NormalizeNIF canonicalizes a fiscal identifier. Every NIF crossing a
// service boundary goes through here, so lookups never miss on case.
func NormalizeNIF(nif string) string {
	return strings.ToUpper(strings.TrimSpace(nif))
}
