package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	clientdomain "github.com/facturio/facturio/internal/client/domain"
	"github.com/facturio/facturio/internal/userctx"
)

type ClientRequest struct {
	Name       string `json:"name"`
	NIF        string `json:"nif"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

func (s *Server) ListClients(c *gin.Context) {
	companyID, _ := userctx.CompanyIDFromContext(c.Request.Context())

	clients, err := s.clientSvc.List(c.Request.Context(), companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": clients})
}

func (s *Server) CreateClient(c *gin.Context) {
	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	companyID, _ := userctx.CompanyIDFromContext(c.Request.Context())

	client, err := s.clientSvc.Create(c.Request.Context(), clientdomain.CreateClientRequest{
		CompanyID:  companyID,
		Name:       req.Name,
		NIF:        req.NIF,
		Email:      req.Email,
		Address:    req.Address,
		PostalCode: req.PostalCode,
		Phone:      req.Phone,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": client})
}

func (s *Server) SearchClientByNIF(c *gin.Context) {
	nif := strings.TrimSpace(c.Query("nif"))
	if nif == "" {
		AbortWithError(c, newValidationError("nif", "required", "nif is required"))
		return
	}

	companyID, _ := userctx.CompanyIDFromContext(c.Request.Context())

	client, err := s.clientSvc.SearchByNIF(c.Request.Context(), companyID, nif)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": client})
}

func (s *Server) GetClient(c *gin.Context) {
	clientID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	companyID, _ := userctx.CompanyIDFromContext(c.Request.Context())

	client, err := s.clientSvc.GetByID(c.Request.Context(), companyID, clientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": client})
}

func (s *Server) UpdateClient(c *gin.Context) {
	clientID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	companyID, _ := userctx.CompanyIDFromContext(c.Request.Context())

	client, err := s.clientSvc.Update(c.Request.Context(), clientdomain.UpdateClientRequest{
		CompanyID:  companyID,
		ID:         clientID,
		Name:       req.Name,
		NIF:        req.NIF,
		Email:      req.Email,
		Address:    req.Address,
		PostalCode: req.PostalCode,
		Phone:      req.Phone,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": client})
}

func (s *Server) DeleteClient(c *gin.Context) {
	clientID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	companyID, _ := userctx.CompanyIDFromContext(c.Request.Context())

	if err := s.clientSvc.Delete(c.Request.Context(), companyID, clientID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
