// Package pdf renders invoice documents.
package pdf

import (
	"context"
	"io"
)

// InvoiceData carries everything the rendered document shows. Amounts
// arrive as floats and are formatted to two decimals here.
type InvoiceData struct {
	Number    string
	IssueDate string

	CompanyName    string
	CompanyNIF     string
	CompanyAddress string
	CompanyEmail   string
	CompanyPhone   string

	ClientName    string
	ClientNIF     string
	ClientAddress string
	ClientEmail   string

	Description string
	Items       []InvoiceItem

	BaseAmount  float64
	TaxRate     float64
	TaxAmount   float64
	TotalAmount float64
}

type InvoiceItem struct {
	Description string
	Quantity    float64
	UnitPrice   float64
	Amount      float64
}

type Provider interface {
	GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error) {
	return nil, nil
}
