package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateCompanyRequest struct {
	Name       string
	NIF        string
	Address    string
	PostalCode string
	Email      string
	Phone      string
}

type UpdateCompanyRequest struct {
	ID         snowflake.ID
	Name       string
	Address    string
	PostalCode string
	Email      string
	Phone      string
}

type Service interface {
	Create(ctx context.Context, req CreateCompanyRequest) (*Company, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Company, error)
	// Search matches company names case-insensitively. Queries shorter
	// than two characters return an empty result.
	Search(ctx context.Context, query string) ([]*Company, error)
	List(ctx context.Context) ([]*Company, error)
	Update(ctx context.Context, req UpdateCompanyRequest) (*Company, error)
}

var (
	ErrInvalidName = errors.New("invalid_name")
	ErrInvalidNIF  = errors.New("invalid_nif")
	ErrNotFound    = errors.New("not_found")
)
