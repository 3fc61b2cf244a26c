package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	clientdomain "github.com/facturio/facturio/internal/client/domain"
	"github.com/facturio/facturio/internal/clock"
	companydomain "github.com/facturio/facturio/internal/company/domain"
	"github.com/facturio/facturio/internal/invoice/domain"
	"github.com/facturio/facturio/internal/observability/metrics"
	"github.com/facturio/facturio/internal/ocr"
	emailprovider "github.com/facturio/facturio/internal/providers/email"
	ocrprovider "github.com/facturio/facturio/internal/providers/ocr"
	pdfprovider "github.com/facturio/facturio/internal/providers/pdf"
	"github.com/facturio/facturio/internal/tax"
	"github.com/facturio/facturio/pkg/db"
	"github.com/facturio/facturio/pkg/db/pagination"
)

// numberingAttempts bounds the retry loop when two approvals race for
// the same sequence slot.
const numberingAttempts = 3

const defaultRejectionReason = "No especificada"

type Params struct {
	fx.In

	Log         *zap.Logger
	DB          *gorm.DB
	Repo        domain.Repository
	ClientSvc   clientdomain.Service
	CompanyRepo companydomain.Repository
	OCR         ocrprovider.Provider
	PDF         pdfprovider.Provider
	Mailer      emailprovider.Provider
	Metrics     *metrics.Metrics `optional:"true"`
	Clock       clock.Clock
	GenID       *snowflake.Node
}

type Service struct {
	log         *zap.Logger
	db          *gorm.DB
	repo        domain.Repository
	clientSvc   clientdomain.Service
	companyRepo companydomain.Repository
	ocrProvider ocrprovider.Provider
	pdfProvider pdfprovider.Provider
	mailer      emailprovider.Provider
	metrics     *metrics.Metrics
	clock       clock.Clock
	genID       *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("invoice.service"),
		db:          p.DB,
		repo:        p.Repo,
		clientSvc:   p.ClientSvc,
		companyRepo: p.CompanyRepo,
		ocrProvider: p.OCR,
		pdfProvider: p.PDF,
		mailer:      p.Mailer,
		metrics:     p.Metrics,
		clock:       p.Clock,
		genID:       p.GenID,
	}
}

func (s *Service) PreviewTicket(ctx context.Context, image []byte, filename string) (ocr.Result, error) {
	rawText, err := s.ocrProvider.ExtractText(ctx, image, filename)
	if err != nil {
		s.metrics.RecordOCRRequest("error")
		return ocr.Result{}, fmt.Errorf("%w: %v", domain.ErrUnreadableTicket, err)
	}
	s.metrics.RecordOCRRequest("ok")
	return ocr.Parse(rawText), nil
}

func (s *Service) RequestFromTicket(ctx context.Context, req domain.RequestFromTicketRequest) (*domain.Invoice, error) {
	if req.CompanyID == 0 {
		return nil, domain.ErrInvalidCompany
	}

	result, err := s.PreviewTicket(ctx, req.Image, req.Filename)
	if err != nil {
		s.metrics.RecordTicketSubmitted("unreadable")
		return nil, err
	}

	// Amount and date are the two facts an invoice cannot exist
	// without; everything else on the ticket is advisory.
	if result.Amount == nil || result.Date == nil {
		s.metrics.RecordTicketSubmitted("unreadable")
		return nil, domain.ErrUnreadableTicket
	}
	if *result.Amount <= 0 {
		s.metrics.RecordTicketSubmitted("unreadable")
		return nil, domain.ErrInvalidAmount
	}

	company, err := s.companyRepo.FindByID(ctx, s.db, req.CompanyID)
	if err != nil {
		if errors.Is(err, companydomain.ErrNotFound) {
			return nil, domain.ErrInvalidCompany
		}
		return nil, err
	}

	ticketDate, err := time.ParseInLocation("2006-01-02", *result.Date, time.UTC)
	if err != nil {
		s.metrics.RecordTicketSubmitted("unreadable")
		return nil, domain.ErrUnreadableTicket
	}

	ticketHash := domain.Fingerprint(ticketDate, *result.Amount, company.ID)
	if existing, err := s.repo.FindByTicketHash(ctx, s.db, company.ID, ticketHash); err == nil {
		s.metrics.RecordTicketSubmitted("duplicate")
		return nil, &domain.DuplicateTicketError{Existing: existing}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	breakdown := tax.FromGross(*result.Amount, tax.DefaultRate)
	now := s.clock.Now()

	invoice := &domain.Invoice{
		ID:          s.genID.Generate(),
		CompanyID:   company.ID,
		RequesterID: &req.RequesterID,
		Status:      domain.StatusPending,
		BaseAmount:  breakdown.Base,
		TaxRate:     breakdown.Rate,
		TaxAmount:   breakdown.Tax,
		TotalAmount: breakdown.Total,

		TicketHash:     &ticketHash,
		TicketDate:     &ticketDate,
		TicketFilename: strings.TrimSpace(req.Filename),
		OCRData:        ocrDataMap(result),

		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, item := range result.Items {
		invoice.Items = append(invoice.Items, domain.InvoiceItem{
			ID:          s.genID.Generate(),
			InvoiceID:   invoice.ID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      item.TotalPrice,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		client, err := s.clientSvc.Upsert(ctx, tx, clientdomain.UpsertClientRequest{
			CompanyID:  company.ID,
			Name:       req.ClientData.Name,
			NIF:        req.ClientData.NIF,
			Email:      req.ClientData.Email,
			Address:    req.ClientData.Address,
			PostalCode: req.ClientData.PostalCode,
			Phone:      req.ClientData.Phone,
		})
		if err != nil {
			return err
		}
		invoice.ClientID = &client.ID
		return s.repo.Insert(ctx, tx, invoice)
	})
	if db.IsDuplicateKeyErr(err) {
		// Two scans of the same ticket raced past the lookup; the
		// unique index caught the second one.
		if existing, findErr := s.repo.FindByTicketHash(ctx, s.db, company.ID, ticketHash); findErr == nil {
			s.metrics.RecordTicketSubmitted("duplicate")
			return nil, &domain.DuplicateTicketError{Existing: existing}
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTicketSubmitted("ok")
	s.log.Info("ticket request created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("company_id", company.ID.String()),
		zap.Float64("total_amount", invoice.TotalAmount),
	)
	return invoice, nil
}

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

func (s *Service) ListMyRequests(ctx context.Context, requesterID snowflake.ID, page pagination.Pagination) ([]*domain.Invoice, *pagination.PageInfo, error) {
	size := page.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	var cursor *pagination.Cursor
	if page.PageToken != "" {
		decoded, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, nil, domain.ErrInvalidCursor
		}
		cursor = decoded
	}

	// Over-fetch one row to learn whether another page exists.
	invoices, err := s.repo.ListByRequester(ctx, s.db, requesterID, cursor, size+1)
	if err != nil {
		return nil, nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(invoices, size, func(invoice *domain.Invoice) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: invoice.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if len(invoices) > size {
		invoices = invoices[:size]
	}
	return invoices, pageInfo, nil
}

func (s *Service) ListPending(ctx context.Context, companyID snowflake.ID) ([]*domain.Invoice, error) {
	if companyID == 0 {
		return nil, domain.ErrInvalidCompany
	}
	return s.repo.ListByCompanyStatus(ctx, s.db, companyID, []string{domain.StatusPending})
}

func (s *Service) ListApproved(ctx context.Context, companyID snowflake.ID) ([]*domain.Invoice, error) {
	if companyID == 0 {
		return nil, domain.ErrInvalidCompany
	}
	return s.repo.ListByCompanyStatus(ctx, s.db, companyID, []string{
		domain.StatusApproved, domain.StatusGenerated, domain.StatusSent,
	})
}

// Get hides invoices from everyone but their requester and the issuing
// company. Foreign access reads as not found, never as forbidden.
func (s *Service) Get(ctx context.Context, req domain.GetRequest) (*domain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, req.InvoiceID)
	if err != nil {
		return nil, err
	}

	if invoice.RequesterID != nil && *invoice.RequesterID == req.UserID {
		return invoice, nil
	}
	if req.CompanyID != 0 && invoice.CompanyID == req.CompanyID {
		return invoice, nil
	}
	return nil, domain.ErrNotFound
}

func (s *Service) Approve(ctx context.Context, req domain.ApproveRequest) (*domain.Invoice, error) {
	if req.CompanyID == 0 {
		return nil, domain.ErrInvalidCompany
	}

	invoice, err := s.repo.FindByID(ctx, s.db, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	// Foreign or already processed requests read as not found, same
	// as Get.
	if invoice.CompanyID != req.CompanyID || invoice.Status != domain.StatusPending {
		return nil, domain.ErrNotFound
	}

	number, err := s.assignNumber(ctx, invoice.ID, req.CompanyID, func(now time.Time, number string) map[string]any {
		fields := map[string]any{
			"number":      number,
			"status":      domain.StatusApproved,
			"approver_id": req.ApproverID,
			"approved_at": now,
			"updated_at":  now,
		}
		if notes := strings.TrimSpace(req.Notes); notes != "" {
			fields["description"] = notes
		}
		return fields
	})
	if err != nil {
		return nil, err
	}

	invoice, err = s.repo.FindByID(ctx, s.db, invoice.ID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInvoiceApproved()
	s.log.Info("invoice approved",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("number", number),
	)

	// Delivery failure does not undo the approval: the invoice is
	// legally issued once numbered. The error lands in the delivery
	// record and the company can resend later.
	now := s.clock.Now()
	deliveryErr := s.deliver(ctx, invoice)
	fields := map[string]any{
		"status":           domain.StatusGenerated,
		"generated_at":     now,
		"last_delivery_at": now,
		"updated_at":       now,
	}
	if deliveryErr != nil {
		fields["last_delivery_error"] = deliveryErr.Error()
		s.log.Warn("invoice delivery failed",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(deliveryErr),
		)
	} else {
		fields["last_delivery_error"] = ""
	}
	if err := s.repo.UpdateFields(ctx, s.db, invoice.ID, fields); err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, s.db, invoice.ID)
}

func (s *Service) Reject(ctx context.Context, req domain.RejectRequest) (*domain.Invoice, error) {
	if req.CompanyID == 0 {
		return nil, domain.ErrInvalidCompany
	}

	invoice, err := s.repo.FindByID(ctx, s.db, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.CompanyID != req.CompanyID || invoice.Status != domain.StatusPending {
		return nil, domain.ErrNotFound
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = defaultRejectionReason
	}

	now := s.clock.Now()
	if err := s.repo.UpdateFields(ctx, s.db, invoice.ID, map[string]any{
		"status":           domain.StatusRejected,
		"rejection_reason": reason,
		"updated_at":       now,
	}); err != nil {
		return nil, err
	}

	s.metrics.RecordInvoiceRejected()
	return s.repo.FindByID(ctx, s.db, invoice.ID)
}

// CreateDirect issues a company-entered invoice, numbered immediately.
func (s *Service) CreateDirect(ctx context.Context, req domain.CreateDirectRequest) (*domain.Invoice, error) {
	if req.CompanyID == 0 {
		return nil, domain.ErrInvalidCompany
	}
	if req.BaseAmount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	client, err := s.clientSvc.GetByID(ctx, req.CompanyID, req.ClientID)
	if err != nil {
		return nil, err
	}

	breakdown := tax.FromBase(req.BaseAmount, req.TaxRate)
	now := s.clock.Now()

	invoice := &domain.Invoice{
		ID:          s.genID.Generate(),
		CompanyID:   req.CompanyID,
		ClientID:    &client.ID,
		Status:      domain.StatusPending,
		Description: strings.TrimSpace(req.Description),
		BaseAmount:  breakdown.Base,
		TaxRate:     breakdown.Rate,
		TaxAmount:   breakdown.Tax,
		TotalAmount: breakdown.Total,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for attempt := 0; attempt < numberingAttempts; attempt++ {
		seq, err := s.repo.NextNumberSeq(ctx, s.db, req.CompanyID, now.Year())
		if err != nil {
			return nil, err
		}
		number := domain.FormatNumber(now.Year(), seq)
		invoice.Number = &number

		err = s.repo.Insert(ctx, s.db, invoice)
		if db.IsDuplicateKeyErr(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return invoice, nil
	}
	return nil, domain.ErrNumberingConflict
}

func (s *Service) Send(ctx context.Context, companyID, invoiceID snowflake.ID) (*domain.Invoice, error) {
	if companyID == 0 {
		return nil, domain.ErrInvalidCompany
	}

	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	if !invoice.IsNumbered() || invoice.Status == domain.StatusRejected {
		return nil, domain.ErrNotSendable
	}

	now := s.clock.Now()
	if err := s.deliver(ctx, invoice); err != nil {
		if updateErr := s.repo.UpdateFields(ctx, s.db, invoice.ID, map[string]any{
			"last_delivery_at":    now,
			"last_delivery_error": err.Error(),
			"updated_at":          now,
		}); updateErr != nil {
			return nil, updateErr
		}
		return nil, err
	}

	if err := s.repo.UpdateFields(ctx, s.db, invoice.ID, map[string]any{
		"status":              domain.StatusSent,
		"sent_at":             now,
		"last_delivery_at":    now,
		"last_delivery_error": "",
		"updated_at":          now,
	}); err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, s.db, invoice.ID)
}

// assignNumber retries the read-format-write numbering sequence until
// the unique index accepts it.
func (s *Service) assignNumber(ctx context.Context, invoiceID, companyID snowflake.ID, buildFields func(now time.Time, number string) map[string]any) (string, error) {
	now := s.clock.Now()
	for attempt := 0; attempt < numberingAttempts; attempt++ {
		seq, err := s.repo.NextNumberSeq(ctx, s.db, companyID, now.Year())
		if err != nil {
			return "", err
		}
		number := domain.FormatNumber(now.Year(), seq)

		err = s.repo.UpdateFields(ctx, s.db, invoiceID, buildFields(now, number))
		if db.IsDuplicateKeyErr(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		return number, nil
	}
	return "", domain.ErrNumberingConflict
}

// deliver renders the invoice document and emails it to the client,
// with the issuing company in copy.
func (s *Service) deliver(ctx context.Context, invoice *domain.Invoice) error {
	if !invoice.IsNumbered() {
		return domain.ErrNotSendable
	}

	company, err := s.companyRepo.FindByID(ctx, s.db, invoice.CompanyID)
	if err != nil {
		return err
	}
	if invoice.ClientID == nil {
		return clientdomain.ErrNotFound
	}
	client, err := s.clientSvc.GetByID(ctx, invoice.CompanyID, *invoice.ClientID)
	if err != nil {
		return err
	}

	document, err := s.pdfProvider.GenerateInvoice(ctx, buildInvoiceData(invoice, company, client))
	if err != nil {
		return fmt.Errorf("render invoice pdf: %w", err)
	}
	var content []byte
	if document != nil {
		if content, err = io.ReadAll(document); err != nil {
			return fmt.Errorf("read invoice pdf: %w", err)
		}
	}

	number := *invoice.Number
	recipients := []string{client.Email}
	if company.Email != "" {
		recipients = append(recipients, company.Email)
	}

	err = s.mailer.SendWithAttachment(ctx,
		company.Name,
		recipients,
		fmt.Sprintf("Factura %s - %s", number, company.Name),
		fmt.Sprintf("<h2>Factura %s</h2><p>Estimado/a %s,</p><p>Adjuntamos su factura.</p>", number, client.Name),
		emailprovider.Attachment{
			Filename:    fmt.Sprintf("Factura_%s.pdf", number),
			ContentType: "application/pdf",
			Content:     content,
		},
	)
	if err != nil {
		s.metrics.RecordEmailDelivery("error")
		return fmt.Errorf("send invoice email: %w", err)
	}
	s.metrics.RecordEmailDelivery("ok")
	return nil
}

func buildInvoiceData(invoice *domain.Invoice, company *companydomain.Company, client *clientdomain.Client) pdfprovider.InvoiceData {
	issueDate := invoice.CreatedAt
	if invoice.ApprovedAt != nil {
		issueDate = *invoice.ApprovedAt
	}

	data := pdfprovider.InvoiceData{
		Number:    *invoice.Number,
		IssueDate: issueDate.Format("02/01/2006"),

		CompanyName:    company.Name,
		CompanyNIF:     company.NIF,
		CompanyAddress: company.Address,
		CompanyEmail:   company.Email,
		CompanyPhone:   company.Phone,

		ClientName:    client.Name,
		ClientNIF:     client.NIF,
		ClientAddress: client.Address,
		ClientEmail:   client.Email,

		Description: invoice.Description,
		BaseAmount:  invoice.BaseAmount,
		TaxRate:     invoice.TaxRate,
		TaxAmount:   invoice.TaxAmount,
		TotalAmount: invoice.TotalAmount,
	}
	for _, item := range invoice.Items {
		data.Items = append(data.Items, pdfprovider.InvoiceItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      item.Amount,
		})
	}
	return data
}

func ocrDataMap(result ocr.Result) datatypes.JSONMap {
	data := datatypes.JSONMap{
		"raw_text": result.RawText,
	}
	if result.Amount != nil {
		data["amount"] = *result.Amount
	}
	if result.Date != nil {
		data["date"] = *result.Date
	}
	if result.CompanyName != nil {
		data["company_name"] = *result.CompanyName
	}
	if result.NIF != nil {
		data["nif"] = *result.NIF
	}
	if len(result.Items) > 0 {
		items := make([]any, 0, len(result.Items))
		for _, item := range result.Items {
			items = append(items, map[string]any{
				"description": item.Description,
				"quantity":    item.Quantity,
				"unit_price":  item.UnitPrice,
				"total_price": item.TotalPrice,
			})
		}
		data["items"] = items
	}
	return data
}
