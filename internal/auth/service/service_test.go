package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authdomain "github.com/facturio/facturio/internal/auth/domain"
	"github.com/facturio/facturio/internal/auth/repository"
	clientdomain "github.com/facturio/facturio/internal/client/domain"
	companydomain "github.com/facturio/facturio/internal/company/domain"
	companyrepository "github.com/facturio/facturio/internal/company/repository"
	"github.com/facturio/facturio/internal/config"
	"github.com/facturio/facturio/internal/providers/email"
	"github.com/facturio/facturio/pkg/db"
)

// capturingMailer records template sends so tests can pick up the
// reset link, which is the only place the raw token appears.
type capturingMailer struct {
	email.NoOpProvider
	lastTemplate string
	lastData     map[string]interface{}
}

func (m *capturingMailer) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]interface{}) error {
	m.lastTemplate = templateName
	m.lastData = data
	return nil
}

func newTestService(t *testing.T) (authdomain.Service, *gorm.DB, *capturingMailer) {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(
		&companydomain.Company{},
		&authdomain.User{},
		&authdomain.Session{},
		&clientdomain.Client{},
	))

	repo, sessionRepo := repository.New(dbConn)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	mailer := &capturingMailer{}
	svc := New(
		zap.NewNop(),
		dbConn,
		repo,
		sessionRepo,
		companyrepository.New(),
		mailer,
		config.Config{FrontendURL: "http://localhost:5173"},
		node,
	)
	return svc, dbConn, mailer
}

func TestRegisterCompanyUserCreatesCompany(t *testing.T) {
	svc, dbConn, _ := newTestService(t)

	result, err := svc.Register(context.Background(), authdomain.RegisterRequest{
		Email:      "maria@example.com",
		Password:   "secret-password",
		Name:       "María Pérez",
		NIF:        "12345678z",
		Address:    "Calle Mayor 1",
		PostalCode: "28001",
		UserType:   authdomain.UserTypeCompany,
		Company: &authdomain.RegisterCompany{
			Name: "Talleres Pérez",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result.User.CompanyID)
	assert.NotEmpty(t, result.RawToken)
	assert.Equal(t, "12345678Z", result.User.NIF)

	var company companydomain.Company
	require.NoError(t, dbConn.First(&company, "id = ?", *result.User.CompanyID).Error)
	assert.Equal(t, "Talleres Pérez", company.Name)
	assert.Equal(t, "talleres-perez", company.Slug)
	// Company fiscal data falls back to the registrant's.
	assert.Equal(t, "12345678Z", company.NIF)
	assert.Equal(t, "Calle Mayor 1", company.Address)
	assert.Equal(t, "maria@example.com", company.Email)
}

func TestRegisterClientUserHasNoCompany(t *testing.T) {
	svc, _, _ := newTestService(t)

	result, err := svc.Register(context.Background(), authdomain.RegisterRequest{
		Email:    "cliente@example.com",
		Password: "secret-password",
		Name:     "Cliente Uno",
		NIF:      "87654321X",
		UserType: authdomain.UserTypeClient,
	})
	require.NoError(t, err)
	assert.Nil(t, result.User.CompanyID)
	assert.Equal(t, authdomain.UserTypeClient, result.User.UserType)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(), authdomain.RegisterRequest{
		Email:    "dup@example.com",
		Password: "secret-password",
		Name:     "Uno",
		NIF:      "11111111A",
		UserType: authdomain.UserTypeClient,
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), authdomain.RegisterRequest{
		Email:    "dup@example.com",
		Password: "secret-password",
		Name:     "Dos",
		NIF:      "22222222B",
		UserType: authdomain.UserTypeClient,
	})
	assert.ErrorIs(t, err, authdomain.ErrEmailTaken)
}

func TestRegisterDuplicateNIF(t *testing.T) {
	svc, dbConn, _ := newTestService(t)

	first, err := svc.Register(context.Background(), authdomain.RegisterRequest{
		Email:    "uno@example.com",
		Password: "secret-password",
		Name:     "Uno",
		NIF:      "33333333C",
		UserType: authdomain.UserTypeClient,
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), authdomain.RegisterRequest{
		Email:    "dos@example.com",
		Password: "secret-password",
		Name:     "Dos",
		NIF:      "33333333c",
		UserType: authdomain.UserTypeClient,
	})
	assert.ErrorIs(t, err, authdomain.ErrNIFTaken)

	// The index backs the check, so a write that skips the service
	// cannot slip a duplicate in either.
	dup := *first.User
	dup.ID = first.User.ID + 1
	dup.Email = "tres@example.com"
	insertErr := dbConn.Create(&dup).Error
	assert.True(t, db.IsDuplicateKeyErr(insertErr))

	// Blank NIFs stay outside the index.
	for _, addr := range []string{"sin-nif-1@example.com", "sin-nif-2@example.com"} {
		_, err = svc.Register(context.Background(), authdomain.RegisterRequest{
			Email:    addr,
			Password: "secret-password",
			Name:     "Sin NIF",
			UserType: authdomain.UserTypeClient,
		})
		require.NoError(t, err)
	}
}

func TestRegisterWeakPassword(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(), authdomain.RegisterRequest{
		Email:    "weak@example.com",
		Password: "12345",
		Name:     "Weak",
		UserType: authdomain.UserTypeClient,
	})
	assert.ErrorIs(t, err, authdomain.ErrWeakPassword)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(), authdomain.RegisterRequest{
		Email:    "alice@example.com",
		Password: "correct-password",
		Name:     "Alice",
		UserType: authdomain.UserTypeClient,
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)
}

func TestAuthenticateRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)

	result, err := svc.Register(context.Background(), authdomain.RegisterRequest{
		Email:    "bob@example.com",
		Password: "secret-password",
		Name:     "Bob",
		UserType: authdomain.UserTypeClient,
	})
	require.NoError(t, err)

	user, err := svc.Authenticate(context.Background(), result.RawToken)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, user.ID)

	require.NoError(t, svc.Logout(context.Background(), result.RawToken))

	_, err = svc.Authenticate(context.Background(), result.RawToken)
	assert.ErrorIs(t, err, authdomain.ErrInvalidSession)
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	svc, _, _ := newTestService(t)

	assert.NoError(t, svc.ForgotPassword(context.Background(), "nobody@example.com"))
}

func TestResetPasswordFlow(t *testing.T) {
	svc, dbConn, mailer := newTestService(t)

	result, err := svc.Register(context.Background(), authdomain.RegisterRequest{
		Email:    "eva@example.com",
		Password: "old-password",
		Name:     "Eva",
		UserType: authdomain.UserTypeClient,
	})
	require.NoError(t, err)

	require.NoError(t, svc.ForgotPassword(context.Background(), "eva@example.com"))

	require.Equal(t, "password_reset", mailer.lastTemplate)
	resetURL, _ := mailer.lastData["reset_url"].(string)
	_, rawToken, found := strings.Cut(resetURL, "token=")
	require.True(t, found)
	require.NotEmpty(t, rawToken)

	var user authdomain.User
	require.NoError(t, dbConn.First(&user, "id = ?", result.User.ID).Error)
	require.NotNil(t, user.ResetToken)
	require.NotNil(t, user.ResetTokenExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *user.ResetTokenExpiresAt, time.Minute)
	// Only the token hash is at rest; a DB leak cannot redeem it.
	assert.NotEqual(t, rawToken, *user.ResetToken)

	// The stored hash is not a usable token.
	err = svc.ResetPassword(context.Background(), *user.ResetToken, "new-password")
	assert.ErrorIs(t, err, authdomain.ErrInvalidResetToken)

	require.NoError(t, svc.ResetPassword(context.Background(), rawToken, "new-password"))

	_, err = svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "eva@example.com",
		Password: "old-password",
	})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "eva@example.com",
		Password: "new-password",
	})
	assert.NoError(t, err)

	// Token is single use.
	err = svc.ResetPassword(context.Background(), rawToken, "another-password")
	assert.ErrorIs(t, err, authdomain.ErrInvalidResetToken)
}
