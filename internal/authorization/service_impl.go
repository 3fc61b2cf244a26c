// Package authorization enforces role-based access. Company accounts
// manage their invoices and clients; client accounts submit tickets
// and read their own requests. Company scoping itself happens in the
// repositories, so policies here are role-to-capability only.
package authorization

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authdomain "github.com/facturio/facturio/internal/auth/domain"
)

//go:embed model.conf
var modelText string

const (
	ObjectInvoice   = "invoice"
	ObjectClient    = "client"
	ObjectCompany   = "company"
	ObjectDashboard = "dashboard"
)

const (
	ActionInvoiceRequest = "invoice.request"
	ActionInvoiceView    = "invoice.view"
	ActionInvoiceReview  = "invoice.review"
	ActionInvoiceCreate  = "invoice.create"
	ActionInvoiceSend    = "invoice.send"

	ActionClientView   = "client.view"
	ActionClientManage = "client.manage"

	ActionCompanyView   = "company.view"
	ActionCompanyManage = "company.manage"

	ActionDashboardView = "dashboard.view"
)

const (
	roleCompany = "role:company"
	roleClient  = "role:client"
)

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

type Service interface {
	// Authorize checks whether a user may perform an action. The role
	// follows the account's user type.
	Authorize(ctx context.Context, userID snowflake.ID, userType string, object string, action string) error
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(log *zap.Logger, enforcer *casbin.SyncedEnforcer) Service {
	return &ServiceImpl{
		log:      log.Named("authorization.service"),
		enforcer: enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, userID snowflake.ID, userType string, object string, action string) error {
	if userID == 0 {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	roleName, err := roleForUserType(userType)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("user:%s", userID.String())
	if err := s.ensureGrouping(subject, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("subject", subject),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func roleForUserType(userType string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(userType)) {
	case authdomain.UserTypeCompany:
		return roleCompany, nil
	case authdomain.UserTypeClient:
		return roleClient, nil
	default:
		return "", ErrInvalidActor
	}
}

// ensureGrouping keeps the user-to-role link current, replacing a
// stale role after an account type change.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Clients photograph tickets and follow their own requests.
		{roleClient, ObjectInvoice, ActionInvoiceRequest},
		{roleClient, ObjectInvoice, ActionInvoiceView},
		{roleClient, ObjectCompany, ActionCompanyView},

		// Companies run the full invoicing workflow.
		{roleCompany, ObjectInvoice, ActionInvoiceView},
		{roleCompany, ObjectInvoice, ActionInvoiceReview},
		{roleCompany, ObjectInvoice, ActionInvoiceCreate},
		{roleCompany, ObjectInvoice, ActionInvoiceSend},
		{roleCompany, ObjectClient, ActionClientView},
		{roleCompany, ObjectClient, ActionClientManage},
		{roleCompany, ObjectCompany, ActionCompanyView},
		{roleCompany, ObjectCompany, ActionCompanyManage},
		{roleCompany, ObjectDashboard, ActionDashboardView},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
