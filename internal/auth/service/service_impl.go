package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/facturio/facturio/internal/auth/domain"
	"github.com/facturio/facturio/internal/auth/password"
	clientdomain "github.com/facturio/facturio/internal/client/domain"
	companydomain "github.com/facturio/facturio/internal/company/domain"
	"github.com/facturio/facturio/internal/config"
	"github.com/facturio/facturio/internal/providers/email"
	"github.com/facturio/facturio/internal/userctx"
	"github.com/facturio/facturio/pkg/db"
)

const (
	sessionTokenBytes = 32
	sessionTTL        = 7 * 24 * time.Hour

	resetTokenBytes = 32
	resetTokenTTL   = time.Hour

	minPasswordLength = 6
)

type Service struct {
	log         *zap.Logger
	db          *gorm.DB
	repo        domain.Repository
	sessionRepo domain.SessionRepository
	companyRepo companydomain.Repository
	mailer      email.Provider
	cfg         config.Config
	genID       *snowflake.Node
}

func New(
	log *zap.Logger,
	conn *gorm.DB,
	repo domain.Repository,
	sessionRepo domain.SessionRepository,
	companyRepo companydomain.Repository,
	mailer email.Provider,
	cfg config.Config,
	genID *snowflake.Node,
) domain.Service {
	return &Service{
		log:         log.Named("auth.service"),
		db:          conn,
		repo:        repo,
		sessionRepo: sessionRepo,
		companyRepo: companyRepo,
		mailer:      mailer,
		cfg:         cfg,
		genID:       genID,
	}
}

// Register creates the account and, for company users, the company it
// will invoice from. Both inserts share one transaction.
func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.RegisterResult, error) {
	emailAddr, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if len(strings.TrimSpace(req.Password)) < minPasswordLength {
		return nil, domain.ErrWeakPassword
	}

	nif := clientdomain.NormalizeNIF(req.NIF)

	if _, err := s.repo.FindByEmail(ctx, emailAddr); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if nif != "" {
		if _, err := s.repo.FindByNIF(ctx, nif); err == nil {
			return nil, domain.ErrNIFTaken
		} else if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	userType := strings.ToUpper(strings.TrimSpace(req.UserType))
	if userType == "" {
		userType = domain.UserTypeCompany
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           s.genID.Generate(),
		Email:        emailAddr,
		PasswordHash: hashed,
		Name:         strings.TrimSpace(req.Name),
		NIF:          nif,
		Address:      strings.TrimSpace(req.Address),
		PostalCode:   strings.TrimSpace(req.PostalCode),
		Phone:        strings.TrimSpace(req.Phone),
		UserType:     userType,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if userType == domain.UserTypeCompany && req.Company != nil {
			company := s.buildCompany(user, req.Company, now)
			if err := s.companyRepo.Insert(ctx, tx, company); err != nil {
				return err
			}
			user.CompanyID = &company.ID
		}
		return s.repo.Create(ctx, tx, user)
	})
	if db.IsDuplicateKeyErr(err) {
		// Concurrent registration won the race past the lookups above;
		// the unique indexes on email and nif decide.
		if _, lookupErr := s.repo.FindByEmail(ctx, emailAddr); lookupErr == nil {
			return nil, domain.ErrEmailTaken
		}
		return nil, domain.ErrNIFTaken
	}
	if err != nil {
		return nil, err
	}

	rawToken, expiresAt, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("user_type", user.UserType),
	)

	return &domain.RegisterResult{User: user, RawToken: rawToken, ExpiresAt: expiresAt}, nil
}

// buildCompany fills missing company fields from the registrant's own
// data, so a sole trader can register with a single form.
func (s *Service) buildCompany(user *domain.User, req *domain.RegisterCompany, now time.Time) *companydomain.Company {
	name := strings.TrimSpace(req.Name)
	companyNIF := clientdomain.NormalizeNIF(req.NIF)
	if companyNIF == "" {
		companyNIF = user.NIF
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		address = user.Address
	}
	postalCode := strings.TrimSpace(req.PostalCode)
	if postalCode == "" {
		postalCode = user.PostalCode
	}
	companyEmail := strings.ToLower(strings.TrimSpace(req.Email))
	if companyEmail == "" {
		companyEmail = user.Email
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		phone = user.Phone
	}

	return &companydomain.Company{
		ID:         s.genID.Generate(),
		Name:       name,
		Slug:       slug.Make(name),
		NIF:        companyNIF,
		Address:    address,
		PostalCode: postalCode,
		Email:      companyEmail,
		Phone:      phone,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	emailAddr, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !password.Verify(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	rawToken, expiresAt, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &domain.LoginResult{User: user, RawToken: rawToken, ExpiresAt: expiresAt}, nil
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return domain.ErrInvalidSession
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ErrInvalidSession
		}
		return err
	}

	return s.sessionRepo.DeleteSession(ctx, session.ID)
}

// Authenticate resolves a raw session token to its user.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.User, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, domain.ErrInvalidSession
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}

	if time.Now().UTC().After(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}

	return s.repo.FindByID(ctx, session.UserID)
}

// ForgotPassword issues a reset token and mails the reset link. It
// never reveals whether the address exists, and a failed send is
// logged but not surfaced for the same reason.
func (s *Service) ForgotPassword(ctx context.Context, emailRaw string) error {
	emailAddr, err := normalizeEmail(emailRaw)
	if err != nil {
		return nil
	}

	user, err := s.repo.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return err
	}

	token, err := newRandomToken(resetTokenBytes)
	if err != nil {
		return err
	}

	// Only the hash is persisted; the raw token travels in the email.
	now := time.Now().UTC()
	expiresAt := now.Add(resetTokenTTL)
	if err := s.repo.UpdateFields(ctx, user.ID, map[string]any{
		"reset_token":            hashToken(token),
		"reset_token_expires_at": expiresAt,
		"updated_at":             now,
	}); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.FrontendURL, token)
	if err := s.mailer.SendTemplate(ctx, []string{user.Email}, "password_reset", map[string]interface{}{
		"subject":   "Recuperación de contraseña",
		"name":      user.Name,
		"reset_url": resetURL,
	}); err != nil {
		s.log.Warn("password reset email failed",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
	}

	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ErrInvalidResetToken
	}
	if len(strings.TrimSpace(newPassword)) < minPasswordLength {
		return domain.ErrWeakPassword
	}

	user, err := s.repo.FindByResetToken(ctx, hashToken(token), time.Now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrInvalidResetToken
		}
		return err
	}

	hashed, err := password.Hash(newPassword)
	if err != nil {
		return err
	}

	return s.repo.UpdateFields(ctx, user.ID, map[string]any{
		"password_hash":          hashed,
		"reset_token":            nil,
		"reset_token_expires_at": nil,
		"updated_at":             time.Now().UTC(),
	})
}

func (s *Service) CurrentUser(ctx context.Context) (*domain.User, error) {
	userID, ok := userctx.UserIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return s.repo.FindByID(ctx, userID)
}

func (s *Service) openSession(ctx context.Context, userID snowflake.ID) (string, time.Time, error) {
	rawToken, err := newRandomToken(sessionTokenBytes)
	if err != nil {
		return "", time.Time{}, err
	}

	now := time.Now().UTC()
	session := &domain.Session{
		ID:        s.genID.Generate(),
		UserID:    userID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: now.Add(sessionTTL),
		CreatedAt: now,
	}
	if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
		return "", time.Time{}, err
	}
	return rawToken, session.ExpiresAt, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func newRandomToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
