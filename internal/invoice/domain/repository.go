package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/facturio/facturio/pkg/db/pagination"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByTicketHash(ctx context.Context, db *gorm.DB, companyID snowflake.ID, ticketHash string) (*Invoice, error)
	// ListByRequester returns newest first. A non-nil cursor resumes
	// after the given invoice ID; limit 0 means unbounded.
	ListByRequester(ctx context.Context, db *gorm.DB, requesterID snowflake.ID, cursor *pagination.Cursor, limit int) ([]*Invoice, error)
	ListByCompanyStatus(ctx context.Context, db *gorm.DB, companyID snowflake.ID, statuses []string) ([]*Invoice, error)
	// NextNumberSeq returns the next free sequence for the company and
	// year. Concurrent callers can race; the unique index on
	// (company_id, number) settles it and callers retry.
	NextNumberSeq(ctx context.Context, db *gorm.DB, companyID snowflake.ID, year int) (int, error)
	UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
}
