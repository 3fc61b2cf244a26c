package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var (
	headerColor = &props.Color{Red: 102, Green: 126, Blue: 234}
	white       = &props.Color{Red: 255, Green: 255, Blue: 255}
	lightGray   = &props.Color{Red: 240, Green: 240, Blue: 240}
	gray        = &props.Color{Red: 128, Green: 128, Blue: 128}
)

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error) {
	cfg := config.NewBuilder().Build()
	m := maroto.New(cfg)

	// Header band
	m.AddRows(row.New(24).Add(
		col.New(12).Add(
			text.New("FACTURA", props.Text{
				Size:  20,
				Style: fontstyle.Bold,
				Align: align.Center,
				Color: white,
				Top:   4,
			}),
			text.New(data.CompanyName, props.Text{
				Size:  10,
				Align: align.Center,
				Color: white,
				Top:   14,
			}),
		),
	).WithStyle(&props.Cell{BackgroundColor: headerColor}))

	m.AddRow(6, col.New(12))

	// Issuer and client blocks
	m.AddRow(40,
		col.New(6).Add(
			text.New("DATOS DEL EMISOR:", props.Text{Style: fontstyle.Bold, Size: 9}),
			text.New(data.CompanyName, props.Text{Size: 9, Top: 6}),
			text.New("NIF: "+data.CompanyNIF, props.Text{Size: 9, Top: 11}),
			text.New(data.CompanyAddress, props.Text{Size: 9, Top: 16}),
			text.New(data.CompanyEmail, props.Text{Size: 9, Top: 21}),
			text.New(data.CompanyPhone, props.Text{Size: 9, Top: 26}),
		),
		col.New(6).Add(
			text.New("DATOS DEL CLIENTE:", props.Text{Style: fontstyle.Bold, Size: 9}),
			text.New(data.ClientName, props.Text{Size: 9, Top: 6}),
			text.New("NIF: "+data.ClientNIF, props.Text{Size: 9, Top: 11}),
			text.New(data.ClientAddress, props.Text{Size: 9, Top: 16}),
			text.New(data.ClientEmail, props.Text{Size: 9, Top: 21}),
		),
	)

	m.AddRow(10,
		text.NewCol(6, "Nº Factura: "+data.Number, props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(6, "Fecha: "+data.IssueDate, props.Text{Style: fontstyle.Bold, Size: 9}),
	)

	// Concept table
	m.AddRows(row.New(8).Add(
		text.NewCol(8, "CONCEPTO", props.Text{Style: fontstyle.Bold, Size: 9, Left: 2, Top: 2}),
		text.NewCol(4, "IMPORTE", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Top: 2}),
	).WithStyle(&props.Cell{BackgroundColor: lightGray}))

	if len(data.Items) > 0 {
		for _, item := range data.Items {
			m.AddRow(7,
				text.NewCol(8, fmt.Sprintf("%s (%s x %s €)", item.Description, formatQuantity(item.Quantity), formatAmount(item.UnitPrice)), props.Text{Size: 9, Left: 2}),
				text.NewCol(4, formatAmount(item.Amount)+" €", props.Text{Size: 9, Align: align.Right}),
			)
		}
	} else {
		description := data.Description
		if description == "" {
			description = "Servicios prestados"
		}
		m.AddRow(12,
			text.NewCol(8, description, props.Text{Size: 9, Left: 2}),
			text.NewCol(4, formatAmount(data.BaseAmount)+" €", props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(4, col.New(12))

	// Totals
	m.AddRow(7,
		col.New(6),
		text.NewCol(3, "Base Imponible:", props.Text{Size: 9}),
		text.NewCol(3, formatAmount(data.BaseAmount)+" €", props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(7,
		col.New(6),
		text.NewCol(3, fmt.Sprintf("IVA (%s%%):", formatQuantity(data.TaxRate)), props.Text{Size: 9}),
		text.NewCol(3, formatAmount(data.TaxAmount)+" €", props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(9,
		col.New(6),
		text.NewCol(3, "TOTAL:", props.Text{Style: fontstyle.Bold, Size: 12}),
		text.NewCol(3, formatAmount(data.TotalAmount)+" €", props.Text{Style: fontstyle.Bold, Size: 12, Align: align.Right}),
	)

	m.AddRow(14, col.New(12))
	m.AddRow(8,
		text.NewCol(12, "Gracias por su confianza", props.Text{
			Size:  8,
			Align: align.Center,
			Color: gray,
		}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// formatQuantity drops trailing zeros so "2.00" renders as "2".
func formatQuantity(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
