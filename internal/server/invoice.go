package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	invoicedomain "github.com/facturio/facturio/internal/invoice/domain"
	"github.com/facturio/facturio/internal/userctx"
	"github.com/facturio/facturio/pkg/db/pagination"
)

// maxTicketImageBytes bounds ticket uploads before they reach OCR.
const maxTicketImageBytes = 5 << 20

type CreateInvoiceRequest struct {
	ClientID    string  `json:"client_id"`
	Description string  `json:"description"`
	BaseAmount  float64 `json:"base_amount"`
	TaxRate     float64 `json:"tax_rate"`
}

type ApproveInvoiceRequest struct {
	Notes string `json:"notes"`
}

type RejectInvoiceRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) RequestInvoice(c *gin.Context) {
	userID, _ := userctx.UserIDFromContext(c.Request.Context())

	companyID, err := snowflake.ParseString(strings.TrimSpace(c.PostForm("company_id")))
	if err != nil {
		AbortWithError(c, newValidationError("company_id", "invalid_id", "invalid company id"))
		return
	}

	image, filename, err := readTicketImage(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.invoiceSvc.RequestFromTicket(c.Request.Context(), invoicedomain.RequestFromTicketRequest{
		RequesterID: userID,
		CompanyID:   companyID,
		Image:       image,
		Filename:    filename,
		ClientData: invoicedomain.ClientData{
			Name:       c.PostForm("name"),
			NIF:        c.PostForm("nif"),
			Email:      c.PostForm("email"),
			Address:    c.PostForm("address"),
			PostalCode: c.PostForm("postal_code"),
			Phone:      c.PostForm("phone"),
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}

func (s *Server) PreviewTicket(c *gin.Context) {
	image, filename, err := readTicketImage(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.invoiceSvc.PreviewTicket(c.Request.Context(), image, filename)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ListMyRequests(c *gin.Context) {
	userID, _ := userctx.UserIDFromContext(c.Request.Context())

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoices, pageInfo, err := s.invoiceSvc.ListMyRequests(c.Request.Context(), userID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoices, "page_info": pageInfo})
}

func (s *Server) ListPendingInvoices(c *gin.Context) {
	companyID, _ := userctx.CompanyIDFromContext(c.Request.Context())

	invoices, err := s.invoiceSvc.ListPending(c.Request.Context(), companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoices})
}

func (s *Server) ListApprovedInvoices(c *gin.Context) {
	companyID, _ := userctx.CompanyIDFromContext(c.Request.Context())

	invoices, err := s.invoiceSvc.ListApproved(c.Request.Context(), companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoices})
}

func (s *Server) GetInvoice(c *gin.Context) {
	invoiceID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	userID, _ := userctx.UserIDFromContext(ctx)
	companyID, _ := userctx.CompanyIDFromContext(ctx)

	invoice, err := s.invoiceSvc.Get(ctx, invoicedomain.GetRequest{
		InvoiceID: invoiceID,
		UserID:    userID,
		CompanyID: companyID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) ApproveInvoice(c *gin.Context) {
	invoiceID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req ApproveInvoiceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	ctx := c.Request.Context()
	userID, _ := userctx.UserIDFromContext(ctx)
	companyID, _ := userctx.CompanyIDFromContext(ctx)

	invoice, err := s.invoiceSvc.Approve(ctx, invoicedomain.ApproveRequest{
		CompanyID:  companyID,
		ApproverID: userID,
		InvoiceID:  invoiceID,
		Notes:      req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) RejectInvoice(c *gin.Context) {
	invoiceID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req RejectInvoiceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	companyID, _ := userctx.CompanyIDFromContext(c.Request.Context())

	invoice, err := s.invoiceSvc.Reject(c.Request.Context(), invoicedomain.RejectRequest{
		CompanyID: companyID,
		InvoiceID: invoiceID,
		Reason:    req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	clientID, err := snowflake.ParseString(strings.TrimSpace(req.ClientID))
	if err != nil {
		AbortWithError(c, newValidationError("client_id", "invalid_id", "invalid client id"))
		return
	}

	ctx := c.Request.Context()
	userID, _ := userctx.UserIDFromContext(ctx)
	companyID, _ := userctx.CompanyIDFromContext(ctx)

	invoice, err := s.invoiceSvc.CreateDirect(ctx, invoicedomain.CreateDirectRequest{
		CompanyID:   companyID,
		CreatorID:   userID,
		ClientID:    clientID,
		Description: req.Description,
		BaseAmount:  req.BaseAmount,
		TaxRate:     req.TaxRate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}

func (s *Server) SendInvoice(c *gin.Context) {
	invoiceID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	companyID, _ := userctx.CompanyIDFromContext(c.Request.Context())

	invoice, err := s.invoiceSvc.Send(c.Request.Context(), companyID, invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func readTicketImage(c *gin.Context) ([]byte, string, error) {
	header, err := c.FormFile("image")
	if err != nil {
		return nil, "", newValidationError("image", "required", "ticket image is required")
	}
	if header.Size > maxTicketImageBytes {
		return nil, "", newValidationError("image", "too_large", "ticket image exceeds 5MB")
	}

	file, err := header.Open()
	if err != nil {
		return nil, "", ErrInternal
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxTicketImageBytes))
	if err != nil {
		return nil, "", ErrInternal
	}
	return image, header.Filename, nil
}

func pathID(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil {
		return 0, newValidationError(name, "invalid_id", "invalid id")
	}
	return id, nil
}
