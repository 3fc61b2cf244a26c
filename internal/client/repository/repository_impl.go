package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/facturio/facturio/internal/client/domain"
)

type repo struct{}

func New() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	return db.WithContext(ctx).Create(client).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*domain.Client, error) {
	var client domain.Client
	err := db.WithContext(ctx).
		Where("id = ? AND company_id = ?", id, companyID).
		First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *repo) FindByNIF(ctx context.Context, db *gorm.DB, companyID snowflake.ID, nif string) (*domain.Client, error) {
	var client domain.Client
	err := db.WithContext(ctx).
		Where("company_id = ? AND nif = ?", companyID, nif).
		First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]*domain.Client, error) {
	var clients []*domain.Client
	err := db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at desc").
		Find(&clients).Error
	return clients, err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	tx := db.WithContext(ctx).Model(&domain.Client{}).
		Where("id = ? AND company_id = ?", client.ID, client.CompanyID).
		Updates(map[string]any{
			"name":        client.Name,
			"nif":         client.NIF,
			"email":       client.Email,
			"address":     client.Address,
			"postal_code": client.PostalCode,
			"phone":       client.Phone,
			"updated_at":  client.UpdatedAt,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) error {
	tx := db.WithContext(ctx).
		Where("id = ? AND company_id = ?", id, companyID).
		Delete(&domain.Client{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
