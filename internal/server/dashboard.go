package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	invoicedomain "github.com/facturio/facturio/internal/invoice/domain"
	"github.com/facturio/facturio/internal/userctx"
)

type DashboardResponse struct {
	PendingCount  int     `json:"pending_count"`
	IssuedCount   int     `json:"issued_count"`
	ClientCount   int     `json:"client_count"`
	TotalInvoiced float64 `json:"total_invoiced"`
	TotalTax      float64 `json:"total_tax"`

	RecentPending []*invoicedomain.Invoice `json:"recent_pending"`
}

const dashboardRecentLimit = 5

// GetDashboard summarizes a company's review queue and issued volume.
func (s *Server) GetDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	companyID, _ := userctx.CompanyIDFromContext(ctx)

	pending, err := s.invoiceSvc.ListPending(ctx, companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	issued, err := s.invoiceSvc.ListApproved(ctx, companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	clients, err := s.clientSvc.List(ctx, companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := DashboardResponse{
		PendingCount: len(pending),
		IssuedCount:  len(issued),
		ClientCount:  len(clients),
	}
	for _, invoice := range issued {
		resp.TotalInvoiced += invoice.TotalAmount
		resp.TotalTax += invoice.TaxAmount
	}

	recent := pending
	if len(recent) > dashboardRecentLimit {
		recent = recent[:dashboardRecentLimit]
	}
	resp.RecentPending = recent

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
