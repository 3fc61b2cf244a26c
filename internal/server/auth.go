package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	authdomain "github.com/facturio/facturio/internal/auth/domain"
)

type RegisterCompanyRequest struct {
	Name       string `json:"name"`
	NIF        string `json:"nif"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}

type RegisterRequest struct {
	Email      string                  `json:"email"`
	Password   string                  `json:"password"`
	Name       string                  `json:"name"`
	NIF        string                  `json:"nif"`
	Address    string                  `json:"address"`
	PostalCode string                  `json:"postal_code"`
	Phone      string                  `json:"phone"`
	UserType   string                  `json:"user_type"`
	Company    *RegisterCompanyRequest `json:"company,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (s *Server) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if strings.TrimSpace(req.Email) == "" {
		AbortWithError(c, newValidationError("email", "required", "email is required"))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		AbortWithError(c, newValidationError("name", "required", "name is required"))
		return
	}

	domainReq := authdomain.RegisterRequest{
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		NIF:        req.NIF,
		Address:    req.Address,
		PostalCode: req.PostalCode,
		Phone:      req.Phone,
		UserType:   req.UserType,
	}
	if req.Company != nil {
		domainReq.Company = &authdomain.RegisterCompany{
			Name:       req.Company.Name,
			NIF:        req.Company.NIF,
			Address:    req.Company.Address,
			PostalCode: req.Company.PostalCode,
			Email:      req.Company.Email,
			Phone:      req.Company.Phone,
		}
	}

	result, err := s.authsvc.Register(c.Request.Context(), domainReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)
	c.JSON(http.StatusCreated, gin.H{"data": result.User})
}

func (s *Server) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.authsvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{"data": result.User})
}

func (s *Server) Logout(c *gin.Context) {
	if token, ok := s.sessions.ReadToken(c); ok {
		_ = s.authsvc.Logout(c.Request.Context(), token)
	}
	s.sessions.Clear(c)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Me(c *gin.Context) {
	user, err := s.authsvc.CurrentUser(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

// ForgotPassword always answers OK so the endpoint can't be used to
// probe which emails exist.
func (s *Server) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		AbortWithError(c, newValidationError("email", "required", "email is required"))
		return
	}

	if err := s.authsvc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		AbortWithError(c, newValidationError("token", "required", "token is required"))
		return
	}

	if err := s.authsvc.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
