package server

import (
	"github.com/gin-gonic/gin"

	"github.com/facturio/facturio/internal/userctx"
)

// AuthRequired resolves the session cookie to a user and stores the
// principal in the request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			s.sessions.Clear(c)
			AbortWithError(c, err)
			return
		}

		ctx := userctx.WithUserID(c.Request.Context(), user.ID)
		ctx = userctx.WithUserType(ctx, user.UserType)
		if user.CompanyID != nil {
			ctx = userctx.WithCompanyID(ctx, *user.CompanyID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// CompanyRequired gates endpoints to users acting for a company.
func (s *Server) CompanyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := userctx.CompanyIDFromContext(c.Request.Context()); !ok {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

func (s *Server) authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		userID, ok := userctx.UserIDFromContext(ctx)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		userType, _ := userctx.UserTypeFromContext(ctx)

		if err := s.authzSvc.Authorize(ctx, userID, userType, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// TicketRateLimit throttles OCR-backed endpoints per user.
func (s *Server) TicketRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		userID, ok := userctx.UserIDFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		allowed, err := s.limiter.AllowTicket(c.Request.Context(), userID)
		if err != nil {
			// Redis trouble never blocks the workflow.
			c.Next()
			return
		}
		if !allowed {
			s.obsMetrics.RecordRateLimitDenied(c.FullPath())
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}

// TicketSubmitLock holds the per-user submission slot for the duration
// of the request so concurrent uploads of the same ticket cannot race
// past the duplicate check.
func (s *Server) TicketSubmitLock() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		userID, ok := userctx.UserIDFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		token, acquired, err := s.limiter.TryLockTicket(c.Request.Context(), userID)
		if err != nil {
			c.Next()
			return
		}
		if !acquired {
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		defer func() {
			_ = s.limiter.ReleaseTicket(c.Request.Context(), userID, token)
		}()
		c.Next()
	}
}

// AuthRateLimit throttles credential endpoints per source IP.
func (s *Server) AuthRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		allowed, err := s.limiter.AllowAuth(c.Request.Context(), c.ClientIP())
		if err != nil {
			c.Next()
			return
		}
		if !allowed {
			s.obsMetrics.RecordRateLimitDenied(c.FullPath())
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
