package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"

	"github.com/facturio/facturio/internal/ocr"
	"github.com/facturio/facturio/pkg/db/pagination"
)

// ClientData is the requester's own fiscal data, attached to a ticket
// submission so the company can invoice them.
type ClientData struct {
	Name       string
	NIF        string
	Email      string
	Address    string
	PostalCode string
	Phone      string
}

type RequestFromTicketRequest struct {
	RequesterID snowflake.ID
	CompanyID   snowflake.ID
	Image       []byte
	Filename    string
	ClientData  ClientData
}

// DuplicateTicketError carries the invoice that already covers the
// resubmitted ticket.
type DuplicateTicketError struct {
	Existing *Invoice
}

func (e *DuplicateTicketError) Error() string { return ErrDuplicateTicket.Error() }

func (e *DuplicateTicketError) Unwrap() error { return ErrDuplicateTicket }

type ApproveRequest struct {
	CompanyID  snowflake.ID
	ApproverID snowflake.ID
	InvoiceID  snowflake.ID
	Notes      string
}

type RejectRequest struct {
	CompanyID snowflake.ID
	InvoiceID snowflake.ID
	Reason    string
}

type CreateDirectRequest struct {
	CompanyID   snowflake.ID
	CreatorID   snowflake.ID
	ClientID    snowflake.ID
	Description string
	BaseAmount  float64
	TaxRate     float64
}

type GetRequest struct {
	InvoiceID snowflake.ID
	UserID    snowflake.ID
	// CompanyID is zero for client users; they only reach invoices
	// they requested themselves.
	CompanyID snowflake.ID
}

type Service interface {
	// RequestFromTicket runs the full intake pipeline: OCR, parsing,
	// company lookup, duplicate detection, client upsert and the
	// creation of a PENDING invoice.
	RequestFromTicket(ctx context.Context, req RequestFromTicketRequest) (*Invoice, error)
	// PreviewTicket runs OCR and parsing only, without persisting.
	PreviewTicket(ctx context.Context, image []byte, filename string) (ocr.Result, error)

	ListMyRequests(ctx context.Context, requesterID snowflake.ID, page pagination.Pagination) ([]*Invoice, *pagination.PageInfo, error)
	ListPending(ctx context.Context, companyID snowflake.ID) ([]*Invoice, error)
	ListApproved(ctx context.Context, companyID snowflake.ID) ([]*Invoice, error)
	Get(ctx context.Context, req GetRequest) (*Invoice, error)

	Approve(ctx context.Context, req ApproveRequest) (*Invoice, error)
	Reject(ctx context.Context, req RejectRequest) (*Invoice, error)
	CreateDirect(ctx context.Context, req CreateDirectRequest) (*Invoice, error)
	// Send re-renders the document and emails it again. Any numbered,
	// non-rejected invoice can be sent, repeatedly.
	Send(ctx context.Context, companyID, invoiceID snowflake.ID) (*Invoice, error)
}
