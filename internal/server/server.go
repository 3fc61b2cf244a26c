// Package server exposes the HTTP API: account and session endpoints,
// the ticket-to-invoice workflow, and company back-office resources.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	authdomain "github.com/facturio/facturio/internal/auth/domain"
	"github.com/facturio/facturio/internal/auth/session"
	"github.com/facturio/facturio/internal/authorization"
	clientdomain "github.com/facturio/facturio/internal/client/domain"
	companydomain "github.com/facturio/facturio/internal/company/domain"
	"github.com/facturio/facturio/internal/config"
	invoicedomain "github.com/facturio/facturio/internal/invoice/domain"
	"github.com/facturio/facturio/internal/observability"
	obslogger "github.com/facturio/facturio/internal/observability/logger"
	obsmetrics "github.com/facturio/facturio/internal/observability/metrics"
	obstracing "github.com/facturio/facturio/internal/observability/tracing"
	"github.com/facturio/facturio/internal/ratelimit"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	genID      *snowflake.Node
	sessions   *session.Manager
	authsvc    authdomain.Service
	authzSvc   authorization.Service
	companySvc companydomain.Service
	clientSvc  clientdomain.Service
	invoiceSvc invoicedomain.Service
	limiter    *ratelimit.IntakeLimiter
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	GenID      *snowflake.Node
	Sessions   *session.Manager
	Authsvc    authdomain.Service
	AuthzSvc   authorization.Service
	CompanySvc companydomain.Service
	ClientSvc  clientdomain.Service
	InvoiceSvc invoicedomain.Service
	Limiter    *ratelimit.IntakeLimiter `optional:"true"`
	ObsMetrics *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		genID:      p.GenID,
		sessions:   p.Sessions,
		authsvc:    p.Authsvc,
		authzSvc:   p.AuthzSvc,
		companySvc: p.CompanySvc,
		clientSvc:  p.ClientSvc,
		invoiceSvc: p.InvoiceSvc,
		limiter:    p.Limiter,
		obsMetrics: p.ObsMetrics,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/register", s.AuthRateLimit(), s.Register)
	auth.POST("/login", s.AuthRateLimit(), s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
	auth.POST("/forgot-password", s.AuthRateLimit(), s.ForgotPassword)
	auth.POST("/reset-password", s.AuthRateLimit(), s.ResetPassword)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// Companies are searchable by any authenticated user so clients can
	// pick who they submit tickets to.
	api.GET("/companies", s.authorize(authorization.ObjectCompany, authorization.ActionCompanyView), s.SearchCompanies)
	api.GET("/companies/:id", s.authorize(authorization.ObjectCompany, authorization.ActionCompanyView), s.GetCompany)

	// -------- Ticket intake --------
	api.POST("/invoices/request", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceRequest), s.TicketRateLimit(), s.TicketSubmitLock(), s.RequestInvoice)
	api.POST("/invoices/preview", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceRequest), s.TicketRateLimit(), s.PreviewTicket)
	api.GET("/invoices/my-requests", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.ListMyRequests)

	// -------- Invoice review (company side) --------
	api.GET("/invoices/pending", s.CompanyRequired(), s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceReview), s.ListPendingInvoices)
	api.GET("/invoices/approved", s.CompanyRequired(), s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceReview), s.ListApprovedInvoices)
	api.POST("/invoices/:id/approve", s.CompanyRequired(), s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceReview), s.ApproveInvoice)
	api.POST("/invoices/:id/reject", s.CompanyRequired(), s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceReview), s.RejectInvoice)
	api.POST("/invoices/:id/send", s.CompanyRequired(), s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceSend), s.SendInvoice)
	api.POST("/invoices", s.CompanyRequired(), s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceCreate), s.CreateInvoice)
	api.GET("/invoices/:id", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.GetInvoice)

	// -------- Clients --------
	api.GET("/clients", s.CompanyRequired(), s.authorize(authorization.ObjectClient, authorization.ActionClientView), s.ListClients)
	api.POST("/clients", s.CompanyRequired(), s.authorize(authorization.ObjectClient, authorization.ActionClientManage), s.CreateClient)
	api.GET("/clients/search", s.CompanyRequired(), s.authorize(authorization.ObjectClient, authorization.ActionClientView), s.SearchClientByNIF)
	api.GET("/clients/:id", s.CompanyRequired(), s.authorize(authorization.ObjectClient, authorization.ActionClientView), s.GetClient)
	api.PATCH("/clients/:id", s.CompanyRequired(), s.authorize(authorization.ObjectClient, authorization.ActionClientManage), s.UpdateClient)
	api.DELETE("/clients/:id", s.CompanyRequired(), s.authorize(authorization.ObjectClient, authorization.ActionClientManage), s.DeleteClient)

	// -------- Own company --------
	api.GET("/company", s.CompanyRequired(), s.authorize(authorization.ObjectCompany, authorization.ActionCompanyView), s.GetOwnCompany)
	api.PATCH("/company", s.CompanyRequired(), s.authorize(authorization.ObjectCompany, authorization.ActionCompanyManage), s.UpdateOwnCompany)

	api.GET("/dashboard", s.CompanyRequired(), s.authorize(authorization.ObjectDashboard, authorization.ActionDashboardView), s.GetDashboard)
}
