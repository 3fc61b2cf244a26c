package domain

import (
	"context"
	"time"
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	Authenticate(ctx context.Context, rawToken string) (*User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	CurrentUser(ctx context.Context) (*User, error)
}

// RegisterCompany is the optional company block of a registration.
// Empty fields fall back to the registrant's own data.
type RegisterCompany struct {
	Name       string
	NIF        string
	Address    string
	PostalCode string
	Email      string
	Phone      string
}

type RegisterRequest struct {
	Email      string
	Password   string
	Name       string
	NIF        string
	Address    string
	PostalCode string
	Phone      string
	UserType   string
	Company    *RegisterCompany
}

type RegisterResult struct {
	User      *User
	RawToken  string
	ExpiresAt time.Time
}

type LoginRequest struct {
	Email    string
	Password string
}

type LoginResult struct {
	User      *User
	RawToken  string
	ExpiresAt time.Time
}
