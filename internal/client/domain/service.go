package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateClientRequest struct {
	CompanyID  snowflake.ID
	Name       string
	NIF        string
	Email      string
	Address    string
	PostalCode string
	Phone      string
}

type UpdateClientRequest struct {
	CompanyID  snowflake.ID
	ID         snowflake.ID
	Name       string
	NIF        string
	Email      string
	Address    string
	PostalCode string
	Phone      string
}

type UpsertClientRequest struct {
	CompanyID  snowflake.ID
	Name       string
	NIF        string
	Email      string
	Address    string
	PostalCode string
	Phone      string
}

type Service interface {
	Create(ctx context.Context, req CreateClientRequest) (*Client, error)
	// Upsert finds the client by (company, NIF) and refreshes its
	// contact data, or creates it. Used by the ticket intake flow
	// where the requesting user supplies their own details.
	Upsert(ctx context.Context, db *gorm.DB, req UpsertClientRequest) (*Client, error)
	GetByID(ctx context.Context, companyID, id snowflake.ID) (*Client, error)
	SearchByNIF(ctx context.Context, companyID snowflake.ID, nif string) (*Client, error)
	List(ctx context.Context, companyID snowflake.ID) ([]*Client, error)
	Update(ctx context.Context, req UpdateClientRequest) (*Client, error)
	Delete(ctx context.Context, companyID, id snowflake.ID) error
}

var (
	ErrInvalidCompany = errors.New("invalid_company")
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidNIF     = errors.New("invalid_nif")
	ErrNIFExists      = errors.New("nif_exists")
	ErrNotFound       = errors.New("not_found")
)
