package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/facturio/facturio/internal/invoice/domain"
	"github.com/facturio/facturio/pkg/db/pagination"
)

type repo struct{}

func New() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) FindByTicketHash(ctx context.Context, db *gorm.DB, companyID snowflake.ID, ticketHash string) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).
		Where("company_id = ? AND ticket_hash = ?", companyID, ticketHash).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) ListByRequester(ctx context.Context, db *gorm.DB, requesterID snowflake.ID, cursor *pagination.Cursor, limit int) ([]*domain.Invoice, error) {
	// Snowflake IDs are time ordered, so the ID doubles as the cursor.
	query := db.WithContext(ctx).
		Preload("Items").
		Where("requester_id = ?", requesterID).
		Order("id desc")
	if cursor != nil && cursor.ID != "" {
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, domain.ErrInvalidCursor
		}
		query = query.Where("id < ?", afterID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var invoices []*domain.Invoice
	err := query.Find(&invoices).Error
	return invoices, err
}

func (r *repo) ListByCompanyStatus(ctx context.Context, db *gorm.DB, companyID snowflake.ID, statuses []string) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	err := db.WithContext(ctx).
		Preload("Items").
		Where("company_id = ? AND status IN ?", companyID, statuses).
		Order("created_at desc").
		Find(&invoices).Error
	return invoices, err
}

func (r *repo) NextNumberSeq(ctx context.Context, db *gorm.DB, companyID snowflake.ID, year int) (int, error) {
	prefix := fmt.Sprintf("%d-", year)

	var last struct {
		Number string `gorm:"column:number"`
	}
	err := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Select("number").
		Where("company_id = ? AND number LIKE ?", companyID, prefix+"%").
		Order("number desc").
		Limit(1).
		Scan(&last).Error
	if err != nil {
		return 0, err
	}
	if last.Number == "" {
		return 1, nil
	}

	suffix := strings.TrimPrefix(last.Number, prefix)
	seq, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, fmt.Errorf("malformed invoice number %q: %w", last.Number, err)
	}
	return seq + 1, nil
}

func (r *repo) UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	tx := db.WithContext(ctx).Model(&domain.Invoice{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
