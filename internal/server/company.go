package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	companydomain "github.com/facturio/facturio/internal/company/domain"
	"github.com/facturio/facturio/internal/userctx"
)

type UpdateCompanyRequest struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}

// SearchCompanies serves the company picker shown before a ticket
// submission. Without a query it lists all companies.
func (s *Server) SearchCompanies(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))

	var (
		companies []*companydomain.Company
		err       error
	)
	if query == "" {
		companies, err = s.companySvc.List(c.Request.Context())
	} else {
		companies, err = s.companySvc.Search(c.Request.Context(), query)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": companies})
}

func (s *Server) GetCompany(c *gin.Context) {
	companyID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	company, err := s.companySvc.GetByID(c.Request.Context(), companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": company})
}

func (s *Server) GetOwnCompany(c *gin.Context) {
	companyID, _ := userctx.CompanyIDFromContext(c.Request.Context())

	company, err := s.companySvc.GetByID(c.Request.Context(), companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": company})
}

func (s *Server) UpdateOwnCompany(c *gin.Context) {
	var req UpdateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	companyID, _ := userctx.CompanyIDFromContext(c.Request.Context())

	company, err := s.companySvc.Update(c.Request.Context(), companydomain.UpdateCompanyRequest{
		ID:         companyID,
		Name:       req.Name,
		Address:    req.Address,
		PostalCode: req.PostalCode,
		Email:      req.Email,
		Phone:      req.Phone,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": company})
}
