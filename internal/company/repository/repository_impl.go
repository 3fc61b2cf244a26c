package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/facturio/facturio/internal/company/domain"
)

type repo struct{}

func New() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, company *domain.Company) error {
	return db.WithContext(ctx).Create(company).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Company, error) {
	var company domain.Company
	err := db.WithContext(ctx).Where("id = ?", id).First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *repo) Search(ctx context.Context, db *gorm.DB, query string, limit int) ([]*domain.Company, error) {
	var companies []*domain.Company
	err := db.WithContext(ctx).
		Where("LOWER(name) LIKE LOWER(?)", "%"+query+"%").
		Order("name asc").
		Limit(limit).
		Find(&companies).Error
	return companies, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]*domain.Company, error) {
	var companies []*domain.Company
	err := db.WithContext(ctx).Order("name asc").Find(&companies).Error
	return companies, err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, company *domain.Company) error {
	tx := db.WithContext(ctx).Model(&domain.Company{}).
		Where("id = ?", company.ID).
		Updates(map[string]any{
			"name":        company.Name,
			"address":     company.Address,
			"postal_code": company.PostalCode,
			"email":       company.Email,
			"phone":       company.Phone,
			"updated_at":  company.UpdatedAt,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
