package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	authdomain "github.com/facturio/facturio/internal/auth/domain"
	authrepository "github.com/facturio/facturio/internal/auth/repository"
	authservice "github.com/facturio/facturio/internal/auth/service"
	"github.com/facturio/facturio/internal/auth/session"
	"github.com/facturio/facturio/internal/authorization"
	clientdomain "github.com/facturio/facturio/internal/client/domain"
	clientrepository "github.com/facturio/facturio/internal/client/repository"
	clientservice "github.com/facturio/facturio/internal/client/service"
	"github.com/facturio/facturio/internal/clock"
	companydomain "github.com/facturio/facturio/internal/company/domain"
	companyrepository "github.com/facturio/facturio/internal/company/repository"
	companyservice "github.com/facturio/facturio/internal/company/service"
	"github.com/facturio/facturio/internal/config"
	invoicedomain "github.com/facturio/facturio/internal/invoice/domain"
	invoicerepository "github.com/facturio/facturio/internal/invoice/repository"
	invoiceservice "github.com/facturio/facturio/internal/invoice/service"
	emailprovider "github.com/facturio/facturio/internal/providers/email"
	pdfprovider "github.com/facturio/facturio/internal/providers/pdf"
	"github.com/facturio/facturio/pkg/db"
)

const testTicket = `BAR CASA PEPE
Menu del dia 2 x 12,10 €
TOTAL: 24,20 €
Fecha: 15/03/2024
`

type stubOCR struct{ text string }

func (o *stubOCR) ExtractText(ctx context.Context, image []byte, filename string) (string, error) {
	return o.text, nil
}

type stubPDF struct{}

func (p *stubPDF) GenerateInvoice(ctx context.Context, data pdfprovider.InvoiceData) (io.Reader, error) {
	return bytes.NewReader([]byte("%PDF-stub")), nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(
		&companydomain.Company{},
		&authdomain.User{},
		&authdomain.Session{},
		&clientdomain.Client{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	cfg := config.Config{AppName: "facturio", Environment: "test"}
	mailer := &emailprovider.NoOpProvider{}

	authRepo, sessionRepo := authrepository.New(dbConn)
	companyRepo := companyrepository.New()
	authSvc := authservice.New(log, dbConn, authRepo, sessionRepo, companyRepo, mailer, cfg, node)

	enforcer, err := authorization.NewEnforcer(dbConn)
	require.NoError(t, err)
	authzSvc := authorization.NewService(log, enforcer)

	clientSvc := clientservice.New(log, dbConn, clientrepository.New(), node)
	companySvc := companyservice.New(log, dbConn, companyRepo, node)

	invoiceSvc := invoiceservice.New(invoiceservice.Params{
		Log:         log,
		DB:          dbConn,
		Repo:        invoicerepository.New(),
		ClientSvc:   clientSvc,
		CompanyRepo: companyRepo,
		OCR:         &stubOCR{text: testTicket},
		PDF:         &stubPDF{},
		Mailer:      mailer,
		Clock:       clock.RealClock{},
		GenID:       node,
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	return NewServer(ServerParams{
		Gin:        engine,
		Cfg:        cfg,
		DB:         dbConn,
		GenID:      node,
		Sessions:   session.NewManager(cfg),
		Authsvc:    authSvc,
		AuthzSvc:   authzSvc,
		CompanySvc: companySvc,
		ClientSvc:  clientSvc,
		InvoiceSvc: invoiceSvc,
	})
}

func doJSON(s *Server, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == session.DefaultCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func registerCompanyUser(t *testing.T, s *Server) *http.Cookie {
	t.Helper()
	w := doJSON(s, http.MethodPost, "/auth/register", gin.H{
		"email":     "dueno@taller.es",
		"password":  "secreto1",
		"name":      "Pedro Pérez",
		"nif":       "B87654321",
		"user_type": "COMPANY",
		"company": gin.H{
			"name": "Talleres Pérez",
			"nif":  "B87654321",
		},
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return sessionCookie(t, w)
}

func registerClientUser(t *testing.T, s *Server) *http.Cookie {
	t.Helper()
	w := doJSON(s, http.MethodPost, "/auth/register", gin.H{
		"email":       "ana@example.com",
		"password":    "secreto1",
		"name":        "Ana García",
		"nif":         "12345678Z",
		"postal_code": "28001",
		"user_type":   "CLIENT",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return sessionCookie(t, w)
}

func TestRegisterAndMe(t *testing.T) {
	s := newTestServer(t)
	cookie := registerCompanyUser(t, s)

	w := doJSON(s, http.MethodGet, "/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Email    string `json:"email"`
			UserType string `json:"user_type"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "dueno@taller.es", resp.Data.Email)
	assert.Equal(t, "COMPANY", resp.Data.UserType)
}

func TestMeWithoutSession(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, http.MethodGet, "/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	s := newTestServer(t)
	registerCompanyUser(t, s)

	w := doJSON(s, http.MethodPost, "/auth/login", gin.H{
		"email":    "dueno@taller.es",
		"password": "equivocada",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestClientCannotReviewInvoices(t *testing.T) {
	s := newTestServer(t)
	cookie := registerClientUser(t, s)

	w := doJSON(s, http.MethodGet, "/api/invoices/pending", nil, cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTicketWorkflowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	companyCookie := registerCompanyUser(t, s)
	clientCookie := registerClientUser(t, s)

	// The client finds the company to submit to.
	w := doJSON(s, http.MethodGet, "/api/companies?q=talleres", nil, clientCookie)
	require.Equal(t, http.StatusOK, w.Code)

	var companies struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &companies))
	require.Len(t, companies.Data, 1)
	companyID := companies.Data[0].ID

	// Ticket submission.
	w = postTicket(t, s, clientCookie, companyID)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, invoicedomain.StatusPending, created.Data.Status)

	// Resubmitting the same ticket conflicts and names the original.
	w = postTicket(t, s, clientCookie, companyID)
	require.Equal(t, http.StatusConflict, w.Code)
	var conflict struct {
		Error struct {
			Type              string `json:"type"`
			ExistingInvoiceID string `json:"existing_invoice_id"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conflict))
	assert.Equal(t, "duplicate_ticket", conflict.Error.Type)
	assert.Equal(t, created.Data.ID, conflict.Error.ExistingInvoiceID)

	// The company reviews its queue and approves.
	w = doJSON(s, http.MethodGet, "/api/invoices/pending", nil, companyCookie)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(s, http.MethodPost, "/api/invoices/"+created.Data.ID+"/approve", gin.H{
		"notes": "Comida de empresa",
	}, companyCookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var approved struct {
		Data struct {
			Number string `json:"number"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &approved))
	assert.Equal(t, fmt.Sprintf("%d-001", time.Now().UTC().Year()), approved.Data.Number)
	assert.Equal(t, invoicedomain.StatusGenerated, approved.Data.Status)

	// The requester still sees their invoice.
	w = doJSON(s, http.MethodGet, "/api/invoices/"+created.Data.ID, nil, clientCookie)
	assert.Equal(t, http.StatusOK, w.Code)

	// The company cannot approve it twice.
	w = doJSON(s, http.MethodPost, "/api/invoices/"+created.Data.ID+"/approve", nil, companyCookie)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClientCRUDOverHTTP(t *testing.T) {
	s := newTestServer(t)
	cookie := registerCompanyUser(t, s)

	w := doJSON(s, http.MethodPost, "/api/clients", gin.H{
		"name":  "Ana García",
		"nif":   "12345678z",
		"email": "ana@example.com",
	}, cookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data struct {
			ID  string `json:"id"`
			NIF string `json:"nif"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "12345678Z", created.Data.NIF)

	w = doJSON(s, http.MethodGet, "/api/clients/search?nif=12345678Z", nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(s, http.MethodDelete, "/api/clients/"+created.Data.ID, nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(s, http.MethodGet, "/api/clients/"+created.Data.ID, nil, cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func postTicket(t *testing.T, s *Server, cookie *http.Cookie, companyID string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "ticket.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("company_id", companyID))
	require.NoError(t, mw.WriteField("name", "Ana García"))
	require.NoError(t, mw.WriteField("nif", "12345678Z"))
	require.NoError(t, mw.WriteField("email", "ana@example.com"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/invoices/request", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}
