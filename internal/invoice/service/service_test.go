package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authdomain "github.com/facturio/facturio/internal/auth/domain"
	clientdomain "github.com/facturio/facturio/internal/client/domain"
	clientrepository "github.com/facturio/facturio/internal/client/repository"
	clientservice "github.com/facturio/facturio/internal/client/service"
	"github.com/facturio/facturio/internal/clock"
	companydomain "github.com/facturio/facturio/internal/company/domain"
	companyrepository "github.com/facturio/facturio/internal/company/repository"
	invoicedomain "github.com/facturio/facturio/internal/invoice/domain"
	invoicerepository "github.com/facturio/facturio/internal/invoice/repository"
	emailprovider "github.com/facturio/facturio/internal/providers/email"
	pdfprovider "github.com/facturio/facturio/internal/providers/pdf"
	"github.com/facturio/facturio/pkg/db"
	"github.com/facturio/facturio/pkg/db/pagination"
)

const readableTicket = `SUPERMERCADOS LOPEZ S.L.
Pan integral 2 x 1,20 €
TOTAL: 24,20 €
Fecha: 15/03/2024
`

type fakeOCR struct {
	text string
	err  error
}

func (f *fakeOCR) ExtractText(ctx context.Context, image []byte, filename string) (string, error) {
	return f.text, f.err
}

type fakePDF struct{}

func (f *fakePDF) GenerateInvoice(ctx context.Context, data pdfprovider.InvoiceData) (io.Reader, error) {
	return bytes.NewReader([]byte("%PDF-fake " + data.Number)), nil
}

type sentMail struct {
	from       string
	to         []string
	subject    string
	attachment emailprovider.Attachment
}

type fakeMailer struct {
	emailprovider.NoOpProvider
	sent []sentMail
	err  error
}

func (f *fakeMailer) SendWithAttachment(ctx context.Context, from string, to []string, subject string, htmlBody string, attachment emailprovider.Attachment) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{from: from, to: to, subject: subject, attachment: attachment})
	return nil
}

type fixture struct {
	svc       invoicedomain.Service
	db        *gorm.DB
	node      *snowflake.Node
	ocr       *fakeOCR
	mailer    *fakeMailer
	clock     *clock.FakeClock
	clientSvc clientdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(
		&companydomain.Company{},
		&authdomain.User{},
		&clientdomain.Client{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clientSvc := clientservice.New(zap.NewNop(), dbConn, clientrepository.New(), node)
	ocrStub := &fakeOCR{text: readableTicket}
	mailer := &fakeMailer{}
	fakeClock := clock.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	svc := New(Params{
		Log:         zap.NewNop(),
		DB:          dbConn,
		Repo:        invoicerepository.New(),
		ClientSvc:   clientSvc,
		CompanyRepo: companyrepository.New(),
		OCR:         ocrStub,
		PDF:         &fakePDF{},
		Mailer:      mailer,
		Clock:       fakeClock,
		GenID:       node,
	})

	return &fixture{
		svc:       svc,
		db:        dbConn,
		node:      node,
		ocr:       ocrStub,
		mailer:    mailer,
		clock:     fakeClock,
		clientSvc: clientSvc,
	}
}

func (f *fixture) newCompany(t *testing.T, name string) *companydomain.Company {
	t.Helper()
	company := &companydomain.Company{
		ID:    f.node.Generate(),
		Name:  name,
		Slug:  name,
		NIF:   "B12345678",
		Email: "empresa@example.com",
	}
	require.NoError(t, f.db.Create(company).Error)
	return company
}

func requesterData() invoicedomain.ClientData {
	return invoicedomain.ClientData{
		Name:       "Ana García",
		NIF:        "12345678Z",
		Email:      "ana@example.com",
		Address:    "Calle Mayor 1",
		PostalCode: "28001",
	}
}

func (f *fixture) request(t *testing.T, companyID snowflake.ID) *invoicedomain.Invoice {
	t.Helper()
	invoice, err := f.svc.RequestFromTicket(context.Background(), invoicedomain.RequestFromTicketRequest{
		RequesterID: f.node.Generate(),
		CompanyID:   companyID,
		Image:       []byte("ticket-bytes"),
		Filename:    "ticket.jpg",
		ClientData:  requesterData(),
	})
	require.NoError(t, err)
	return invoice
}

func TestRequestFromTicket(t *testing.T) {
	f := newFixture(t)
	company := f.newCompany(t, "lopez")

	invoice := f.request(t, company.ID)

	assert.Equal(t, invoicedomain.StatusPending, invoice.Status)
	assert.Nil(t, invoice.Number)
	assert.InDelta(t, 24.20, invoice.TotalAmount, 1e-9)
	assert.InDelta(t, 20.0, invoice.BaseAmount, 0.001)
	assert.InDelta(t, 4.20, invoice.TaxAmount, 0.001)
	assert.Equal(t, 21.0, invoice.TaxRate)
	require.NotNil(t, invoice.TicketDate)
	assert.Equal(t, "2024-03-15", invoice.TicketDate.Format("2006-01-02"))
	assert.NotEmpty(t, invoice.Items)

	// The requester became a client of the company.
	require.NotNil(t, invoice.ClientID)
	client, err := f.clientSvc.GetByID(context.Background(), company.ID, *invoice.ClientID)
	require.NoError(t, err)
	assert.Equal(t, "12345678Z", client.NIF)
}

func TestRequestFromTicketUnreadable(t *testing.T) {
	f := newFixture(t)
	company := f.newCompany(t, "lopez")
	f.ocr.text = "solo ruido sin datos"

	_, err := f.svc.RequestFromTicket(context.Background(), invoicedomain.RequestFromTicketRequest{
		RequesterID: f.node.Generate(),
		CompanyID:   company.ID,
		Image:       []byte("ticket-bytes"),
		ClientData:  requesterData(),
	})
	assert.ErrorIs(t, err, invoicedomain.ErrUnreadableTicket)
}

func TestRequestFromTicketUnknownCompany(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RequestFromTicket(context.Background(), invoicedomain.RequestFromTicketRequest{
		RequesterID: f.node.Generate(),
		CompanyID:   f.node.Generate(),
		Image:       []byte("ticket-bytes"),
		ClientData:  requesterData(),
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidCompany)
}

func TestRequestDuplicateTicket(t *testing.T) {
	f := newFixture(t)
	company := f.newCompany(t, "lopez")

	first := f.request(t, company.ID)

	_, err := f.svc.RequestFromTicket(context.Background(), invoicedomain.RequestFromTicketRequest{
		RequesterID: f.node.Generate(),
		CompanyID:   company.ID,
		Image:       []byte("ticket-bytes"),
		ClientData:  requesterData(),
	})
	require.ErrorIs(t, err, invoicedomain.ErrDuplicateTicket)

	var dup *invoicedomain.DuplicateTicketError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.Existing.ID)
}

func TestRequestSameTicketOtherCompany(t *testing.T) {
	f := newFixture(t)
	companyA := f.newCompany(t, "lopez")
	companyB := f.newCompany(t, "perez")

	f.request(t, companyA.ID)

	// The same physical ticket can be invoiced by another company.
	_, err := f.svc.RequestFromTicket(context.Background(), invoicedomain.RequestFromTicketRequest{
		RequesterID: f.node.Generate(),
		CompanyID:   companyB.ID,
		Image:       []byte("ticket-bytes"),
		ClientData:  requesterData(),
	})
	assert.NoError(t, err)
}

func TestApproveGeneratesAndDelivers(t *testing.T) {
	f := newFixture(t)
	company := f.newCompany(t, "lopez")
	approver := f.node.Generate()

	invoice := f.request(t, company.ID)

	approved, err := f.svc.Approve(context.Background(), invoicedomain.ApproveRequest{
		CompanyID:  company.ID,
		ApproverID: approver,
		InvoiceID:  invoice.ID,
		Notes:      "Compra de material",
	})
	require.NoError(t, err)

	require.NotNil(t, approved.Number)
	assert.Equal(t, "2024-001", *approved.Number)
	assert.Equal(t, invoicedomain.StatusGenerated, approved.Status)
	assert.Equal(t, "Compra de material", approved.Description)
	require.NotNil(t, approved.ApproverID)
	assert.Equal(t, approver, *approved.ApproverID)
	assert.NotNil(t, approved.ApprovedAt)
	assert.NotNil(t, approved.GeneratedAt)
	assert.Empty(t, approved.LastDeliveryError)
	assert.NotNil(t, approved.LastDeliveryAt)

	require.Len(t, f.mailer.sent, 1)
	mail := f.mailer.sent[0]
	assert.Equal(t, "lopez", mail.from)
	assert.Contains(t, mail.to, "ana@example.com")
	assert.Contains(t, mail.to, "empresa@example.com")
	assert.Equal(t, "Factura 2024-001 - lopez", mail.subject)
	assert.Equal(t, "Factura_2024-001.pdf", mail.attachment.Filename)
	assert.Equal(t, "application/pdf", mail.attachment.ContentType)
	assert.NotEmpty(t, mail.attachment.Content)
}

func TestApproveNumbersAreSequential(t *testing.T) {
	f := newFixture(t)
	company := f.newCompany(t, "lopez")

	first := f.request(t, company.ID)
	f.ocr.text = "OTRA TIENDA\nTOTAL: 10,00 €\nFecha: 16/03/2024\n"
	second := f.request(t, company.ID)

	a, err := f.svc.Approve(context.Background(), invoicedomain.ApproveRequest{
		CompanyID: company.ID, ApproverID: f.node.Generate(), InvoiceID: first.ID,
	})
	require.NoError(t, err)
	b, err := f.svc.Approve(context.Background(), invoicedomain.ApproveRequest{
		CompanyID: company.ID, ApproverID: f.node.Generate(), InvoiceID: second.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-001", *a.Number)
	assert.Equal(t, "2024-002", *b.Number)
}

func TestApproveSequenceRestartsEachYear(t *testing.T) {
	f := newFixture(t)
	company := f.newCompany(t, "lopez")

	first := f.request(t, company.ID)
	_, err := f.svc.Approve(context.Background(), invoicedomain.ApproveRequest{
		CompanyID: company.ID, ApproverID: f.node.Generate(), InvoiceID: first.ID,
	})
	require.NoError(t, err)

	f.clock.Advance(366 * 24 * time.Hour)
	f.ocr.text = "OTRA TIENDA\nTOTAL: 10,00 €\nFecha: 16/03/2025\n"
	second := f.request(t, company.ID)
	approved, err := f.svc.Approve(context.Background(), invoicedomain.ApproveRequest{
		CompanyID: company.ID, ApproverID: f.node.Generate(), InvoiceID: second.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, "2025-001", *approved.Number)
}

func TestApproveForeignOrProcessed(t *testing.T) {
	f := newFixture(t)
	company := f.newCompany(t, "lopez")
	other := f.newCompany(t, "perez")

	invoice := f.request(t, company.ID)

	_, err := f.svc.Approve(context.Background(), invoicedomain.ApproveRequest{
		CompanyID: other.ID, ApproverID: f.node.Generate(), InvoiceID: invoice.ID,
	})
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	_, err = f.svc.Approve(context.Background(), invoicedomain.ApproveRequest{
		CompanyID: company.ID, ApproverID: f.node.Generate(), InvoiceID: invoice.ID,
	})
	require.NoError(t, err)

	// Already processed requests read as not found too.
	_, err = f.svc.Approve(context.Background(), invoicedomain.ApproveRequest{
		CompanyID: company.ID, ApproverID: f.node.Generate(), InvoiceID: invoice.ID,
	})
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)
}

func TestApproveSurvivesEmailFailure(t *testing.T) {
	f := newFixture(t)
	company := f.newCompany(t, "lopez")
	f.mailer.err = errors.New("smtp unavailable")

	invoice := f.request(t, company.ID)

	approved, err := f.svc.Approve(context.Background(), invoicedomain.ApproveRequest{
		CompanyID: company.ID, ApproverID: f.node.Generate(), InvoiceID: invoice.ID,
	})
	require.NoError(t, err)

	// The invoice is issued either way; only the delivery record
	// carries the failure.
	assert.Equal(t, invoicedomain.StatusGenerated, approved.Status)
	require.NotNil(t, approved.Number)
	assert.Contains(t, approved.LastDeliveryError, "smtp unavailable")
}

func TestRejectDefaultsReason(t *testing.T) {
	f := newFixture(t)
	company := f.newCompany(t, "lopez")

	invoice := f.request(t, company.ID)

	rejected, err := f.svc.Reject(context.Background(), invoicedomain.RejectRequest{
		CompanyID: company.ID,
		InvoiceID: invoice.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, invoicedomain.StatusRejected, rejected.Status)
	assert.Equal(t, "No especificada", rejected.RejectionReason)
	assert.Nil(t, rejected.Number)

	// Terminal: no approval after rejection.
	_, err = f.svc.Approve(context.Background(), invoicedomain.ApproveRequest{
		CompanyID: company.ID, ApproverID: f.node.Generate(), InvoiceID: invoice.ID,
	})
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)
}

func TestRejectedTicketsDoNotConsumeNumbers(t *testing.T) {
	f := newFixture(t)
	company := f.newCompany(t, "lopez")

	first := f.request(t, company.ID)
	_, err := f.svc.Reject(context.Background(), invoicedomain.RejectRequest{
		CompanyID: company.ID, InvoiceID: first.ID, Reason: "ticket ilegible",
	})
	require.NoError(t, err)

	f.ocr.text = "OTRA TIENDA\nTOTAL: 10,00 €\nFecha: 16/03/2024\n"
	second := f.request(t, company.ID)
	approved, err := f.svc.Approve(context.Background(), invoicedomain.ApproveRequest{
		CompanyID: company.ID, ApproverID: f.node.Generate(), InvoiceID: second.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-001", *approved.Number)
}

func TestCreateDirectAndSend(t *testing.T) {
	f := newFixture(t)
	company := f.newCompany(t, "lopez")

	client, err := f.clientSvc.Create(context.Background(), clientdomain.CreateClientRequest{
		CompanyID: company.ID,
		Name:      "Ana García",
		NIF:       "12345678Z",
		Email:     "ana@example.com",
	})
	require.NoError(t, err)

	invoice, err := f.svc.CreateDirect(context.Background(), invoicedomain.CreateDirectRequest{
		CompanyID:   company.ID,
		CreatorID:   f.node.Generate(),
		ClientID:    client.ID,
		Description: "Servicios de consultoría",
		BaseAmount:  100,
	})
	require.NoError(t, err)

	require.NotNil(t, invoice.Number)
	assert.Equal(t, "2024-001", *invoice.Number)
	assert.Equal(t, invoicedomain.StatusPending, invoice.Status)
	assert.InDelta(t, 21.0, invoice.TaxAmount, 1e-9)
	assert.InDelta(t, 121.0, invoice.TotalAmount, 1e-9)

	sent, err := f.svc.Send(context.Background(), company.ID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusSent, sent.Status)
	assert.NotNil(t, sent.SentAt)
	require.Len(t, f.mailer.sent, 1)

	// Sending is repeatable.
	_, err = f.svc.Send(context.Background(), company.ID, invoice.ID)
	require.NoError(t, err)
	assert.Len(t, f.mailer.sent, 2)
}

func TestSendRequiresNumber(t *testing.T) {
	f := newFixture(t)
	company := f.newCompany(t, "lopez")

	invoice := f.request(t, company.ID)

	_, err := f.svc.Send(context.Background(), company.ID, invoice.ID)
	assert.ErrorIs(t, err, invoicedomain.ErrNotSendable)
}

func TestGetVisibility(t *testing.T) {
	f := newFixture(t)
	company := f.newCompany(t, "lopez")
	requester := f.node.Generate()

	invoice, err := f.svc.RequestFromTicket(context.Background(), invoicedomain.RequestFromTicketRequest{
		RequesterID: requester,
		CompanyID:   company.ID,
		Image:       []byte("ticket-bytes"),
		ClientData:  requesterData(),
	})
	require.NoError(t, err)

	// Requester sees it.
	_, err = f.svc.Get(context.Background(), invoicedomain.GetRequest{
		InvoiceID: invoice.ID, UserID: requester,
	})
	assert.NoError(t, err)

	// The issuing company sees it.
	_, err = f.svc.Get(context.Background(), invoicedomain.GetRequest{
		InvoiceID: invoice.ID, UserID: f.node.Generate(), CompanyID: company.ID,
	})
	assert.NoError(t, err)

	// Anyone else does not.
	_, err = f.svc.Get(context.Background(), invoicedomain.GetRequest{
		InvoiceID: invoice.ID, UserID: f.node.Generate(),
	})
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)
}

func TestListsByStatus(t *testing.T) {
	f := newFixture(t)
	company := f.newCompany(t, "lopez")

	pending := f.request(t, company.ID)
	f.ocr.text = "OTRA TIENDA\nTOTAL: 10,00 €\nFecha: 16/03/2024\n"
	toApprove := f.request(t, company.ID)

	_, err := f.svc.Approve(context.Background(), invoicedomain.ApproveRequest{
		CompanyID: company.ID, ApproverID: f.node.Generate(), InvoiceID: toApprove.ID,
	})
	require.NoError(t, err)

	pendingList, err := f.svc.ListPending(context.Background(), company.ID)
	require.NoError(t, err)
	require.Len(t, pendingList, 1)
	assert.Equal(t, pending.ID, pendingList[0].ID)

	approvedList, err := f.svc.ListApproved(context.Background(), company.ID)
	require.NoError(t, err)
	require.Len(t, approvedList, 1)
	assert.Equal(t, toApprove.ID, approvedList[0].ID)

	mine, pageInfo, err := f.svc.ListMyRequests(context.Background(), *pending.RequesterID, pagination.Pagination{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	assert.False(t, pageInfo.HasMore)
}

func TestListMyRequestsPaginates(t *testing.T) {
	f := newFixture(t)
	company := f.newCompany(t, "lopez")
	requester := f.node.Generate()

	for day := 1; day <= 3; day++ {
		f.ocr.text = fmt.Sprintf("TIENDA\nTOTAL: %d,00 €\nFecha: %02d/03/2024\n", day*10, day)
		_, err := f.svc.RequestFromTicket(context.Background(), invoicedomain.RequestFromTicketRequest{
			RequesterID: requester,
			CompanyID:   company.ID,
			Image:       []byte("ticket-bytes"),
			ClientData:  requesterData(),
		})
		require.NoError(t, err)
	}

	first, pageInfo, err := f.svc.ListMyRequests(context.Background(), requester, pagination.Pagination{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.True(t, pageInfo.HasMore)
	require.NotEmpty(t, pageInfo.NextPageToken)

	second, pageInfo, err := f.svc.ListMyRequests(context.Background(), requester, pagination.Pagination{
		PageSize:  2,
		PageToken: pageInfo.NextPageToken,
	})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.False(t, pageInfo.HasMore)
	assert.NotEqual(t, first[0].ID, second[0].ID)
	assert.NotEqual(t, first[1].ID, second[0].ID)

	_, _, err = f.svc.ListMyRequests(context.Background(), requester, pagination.Pagination{PageToken: "no-es-base64"})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidCursor)
}
