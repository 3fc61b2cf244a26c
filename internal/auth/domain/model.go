// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User types. Companies issue invoices; clients request them from the
// tickets they photograph.
const (
	UserTypeCompany = "COMPANY"
	UserTypeClient  = "CLIENT"
)

// User represents an account, either a company owner or a client.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Email        string       `gorm:"column:email;not null;uniqueIndex" json:"email"`
	PasswordHash string       `gorm:"column:password_hash;type:text;not null" json:"-"`
	Name         string       `gorm:"not null" json:"name"`
	NIF          string       `gorm:"column:nif;not null;default:'';uniqueIndex:idx_users_nif,where:nif <> ''" json:"nif"`
	Address      string       `gorm:"not null;default:''" json:"address"`
	PostalCode   string       `gorm:"column:postal_code;not null;default:''" json:"postal_code"`
	Phone        string       `gorm:"not null;default:''" json:"phone"`
	UserType     string       `gorm:"column:user_type;not null;default:'CLIENT'" json:"user_type"`

	CompanyID *snowflake.ID `gorm:"column:company_id;index" json:"company_id,omitempty"`

	// ResetToken holds the SHA-256 hash of the reset token, never the
	// raw value mailed to the user.
	ResetToken          *string    `gorm:"column:reset_token" json:"-"`
	ResetTokenExpiresAt *time.Time `gorm:"column:reset_token_expires_at" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// IsCompany reports whether the user acts on behalf of a company.
func (u *User) IsCompany() bool {
	return u.UserType == UserTypeCompany && u.CompanyID != nil
}

// Session represents a persisted login session. Only the SHA-256 hash
// of the opaque token is stored.
type Session struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;index"`
	TokenHash string       `gorm:"column:token_hash;type:text;not null;uniqueIndex"`
	ExpiresAt time.Time    `gorm:"column:expires_at;not null;index"`
	CreatedAt time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

func (Session) TableName() string { return "sessions" }
