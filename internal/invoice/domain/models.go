// Package domain contains core types for the invoice service.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Invoice lifecycle. A ticket request starts PENDING; approval numbers
// it and moves it APPROVED, then GENERATED once the document is
// produced. SENT marks explicit re-delivery. REJECTED is terminal.
const (
	StatusPending   = "PENDING"
	StatusApproved  = "APPROVED"
	StatusGenerated = "GENERATED"
	StatusRejected  = "REJECTED"
	StatusSent      = "SENT"
)

type Invoice struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	CompanyID   snowflake.ID  `gorm:"column:company_id;not null;index:idx_invoices_company_status;uniqueIndex:ux_invoices_company_number,priority:1;uniqueIndex:ux_invoices_company_ticket,priority:1" json:"company_id"`
	ClientID    *snowflake.ID `gorm:"column:client_id" json:"client_id,omitempty"`
	RequesterID *snowflake.ID `gorm:"column:requester_id;index" json:"requester_id,omitempty"`

	// Number is assigned at approval for ticket requests, so rejected
	// requests don't consume sequence slots. Direct invoices are
	// numbered at creation.
	Number *string `gorm:"column:number;uniqueIndex:ux_invoices_company_number,priority:2" json:"number,omitempty"`
	Status string  `gorm:"not null;default:'PENDING';index:idx_invoices_company_status" json:"status"`

	Description string  `gorm:"type:text;not null;default:''" json:"description"`
	BaseAmount  float64 `gorm:"column:base_amount;not null" json:"base_amount"`
	TaxRate     float64 `gorm:"column:tax_rate;not null;default:21" json:"tax_rate"`
	TaxAmount   float64 `gorm:"column:tax_amount;not null" json:"tax_amount"`
	TotalAmount float64 `gorm:"column:total_amount;not null" json:"total_amount"`

	TicketHash     *string           `gorm:"column:ticket_hash;uniqueIndex:ux_invoices_company_ticket,priority:2" json:"-"`
	TicketDate     *time.Time        `gorm:"column:ticket_date" json:"ticket_date,omitempty"`
	TicketFilename string            `gorm:"column:ticket_filename;not null;default:''" json:"ticket_filename,omitempty"`
	OCRData        datatypes.JSONMap `gorm:"column:ocr_data;type:jsonb;not null;default:'{}'" json:"ocr_data,omitempty"`

	ApproverID  *snowflake.ID `gorm:"column:approver_id" json:"approver_id,omitempty"`
	ApprovedAt  *time.Time    `gorm:"column:approved_at" json:"approved_at,omitempty"`
	GeneratedAt *time.Time    `gorm:"column:generated_at" json:"generated_at,omitempty"`
	SentAt      *time.Time    `gorm:"column:sent_at" json:"sent_at,omitempty"`

	RejectionReason string `gorm:"column:rejection_reason;not null;default:''" json:"rejection_reason,omitempty"`

	LastDeliveryAt    *time.Time `gorm:"column:last_delivery_at" json:"last_delivery_at,omitempty"`
	LastDeliveryError string     `gorm:"column:last_delivery_error;not null;default:''" json:"last_delivery_error,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// IsNumbered reports whether the invoice carries a fiscal number.
func (i *Invoice) IsNumbered() bool {
	return i.Number != nil && *i.Number != ""
}

type InvoiceItem struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID `gorm:"column:invoice_id;not null;index" json:"invoice_id"`
	Description string       `gorm:"type:text;not null" json:"description"`
	Quantity    float64      `gorm:"not null;default:1" json:"quantity"`
	UnitPrice   float64      `gorm:"column:unit_price;not null;default:0" json:"unit_price"`
	Amount      float64      `gorm:"not null;default:0" json:"amount"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// Fingerprint identifies a physical ticket within one company. Two
// scans of the same ticket collide; the same ticket submitted to a
// different company does not.
func Fingerprint(ticketDate time.Time, amount float64, companyID snowflake.ID) string {
	data := fmt.Sprintf("%s_%s_%d",
		ticketDate.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		strconv.FormatFloat(amount, 'f', -1, 64),
		companyID,
	)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// FormatNumber renders a sequential invoice number, zero-padded to
// three digits but never truncated.
func FormatNumber(year int, seq int) string {
	return fmt.Sprintf("%d-%03d", year, seq)
}
