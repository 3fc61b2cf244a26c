package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/facturio/facturio/internal/client/domain"
	"github.com/facturio/facturio/pkg/db"
)

type Service struct {
	log   *zap.Logger
	db    *gorm.DB
	repo  domain.Repository
	genID *snowflake.Node
}

func New(log *zap.Logger, conn *gorm.DB, repo domain.Repository, genID *snowflake.Node) domain.Service {
	return &Service{
		log:   log.Named("client.service"),
		db:    conn,
		repo:  repo,
		genID: genID,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateClientRequest) (*domain.Client, error) {
	if req.CompanyID == 0 {
		return nil, domain.ErrInvalidCompany
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	nif := domain.NormalizeNIF(req.NIF)
	if nif == "" {
		return nil, domain.ErrInvalidNIF
	}

	now := time.Now().UTC()
	client := &domain.Client{
		ID:         s.genID.Generate(),
		CompanyID:  req.CompanyID,
		Name:       name,
		NIF:        nif,
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Address:    strings.TrimSpace(req.Address),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Phone:      strings.TrimSpace(req.Phone),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.repo.Insert(ctx, s.db, client)
	if db.IsDuplicateKeyErr(err) {
		return nil, domain.ErrNIFExists
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Upsert runs on the caller's transaction handle so ticket intake can
// create the client and the invoice atomically. Existing clients get
// every mutable field overwritten with the submitted values, blanks
// included: the latest submission wins, there is no merge.
func (s *Service) Upsert(ctx context.Context, conn *gorm.DB, req domain.UpsertClientRequest) (*domain.Client, error) {
	if conn == nil {
		conn = s.db
	}
	if req.CompanyID == 0 {
		return nil, domain.ErrInvalidCompany
	}
	nif := domain.NormalizeNIF(req.NIF)
	if nif == "" {
		return nil, domain.ErrInvalidNIF
	}

	now := time.Now().UTC()
	existing, err := s.repo.FindByNIF(ctx, conn, req.CompanyID, nif)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		existing.Name = strings.TrimSpace(req.Name)
		existing.Email = strings.ToLower(strings.TrimSpace(req.Email))
		existing.Address = strings.TrimSpace(req.Address)
		existing.PostalCode = strings.TrimSpace(req.PostalCode)
		existing.Phone = strings.TrimSpace(req.Phone)
		existing.UpdatedAt = now

		if err := s.repo.Update(ctx, conn, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	client := &domain.Client{
		ID:         s.genID.Generate(),
		CompanyID:  req.CompanyID,
		Name:       name,
		NIF:        nif,
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Address:    strings.TrimSpace(req.Address),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Phone:      strings.TrimSpace(req.Phone),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, conn, client); err != nil {
		return nil, err
	}
	return client, nil
}

func (s *Service) GetByID(ctx context.Context, companyID, id snowflake.ID) (*domain.Client, error) {
	if companyID == 0 {
		return nil, domain.ErrInvalidCompany
	}
	return s.repo.FindByID(ctx, s.db, companyID, id)
}

func (s *Service) SearchByNIF(ctx context.Context, companyID snowflake.ID, nif string) (*domain.Client, error) {
	if companyID == 0 {
		return nil, domain.ErrInvalidCompany
	}
	normalized := domain.NormalizeNIF(nif)
	if normalized == "" {
		return nil, domain.ErrInvalidNIF
	}
	return s.repo.FindByNIF(ctx, s.db, companyID, normalized)
}

func (s *Service) List(ctx context.Context, companyID snowflake.ID) ([]*domain.Client, error) {
	if companyID == 0 {
		return nil, domain.ErrInvalidCompany
	}
	return s.repo.List(ctx, s.db, companyID)
}

func (s *Service) Update(ctx context.Context, req domain.UpdateClientRequest) (*domain.Client, error) {
	client, err := s.repo.FindByID(ctx, s.db, req.CompanyID, req.ID)
	if err != nil {
		return nil, err
	}

	// Blank fields keep current values, matching partial form updates.
	client.Name = orKeep(strings.TrimSpace(req.Name), client.Name)
	if nif := domain.NormalizeNIF(req.NIF); nif != "" {
		client.NIF = nif
	}
	client.Email = orKeep(strings.ToLower(strings.TrimSpace(req.Email)), client.Email)
	client.Address = orKeep(strings.TrimSpace(req.Address), client.Address)
	client.PostalCode = orKeep(strings.TrimSpace(req.PostalCode), client.PostalCode)
	client.Phone = orKeep(strings.TrimSpace(req.Phone), client.Phone)
	client.UpdatedAt = time.Now().UTC()

	err = s.repo.Update(ctx, s.db, client)
	if db.IsDuplicateKeyErr(err) {
		return nil, domain.ErrNIFExists
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (s *Service) Delete(ctx context.Context, companyID, id snowflake.ID) error {
	if companyID == 0 {
		return domain.ErrInvalidCompany
	}
	return s.repo.Delete(ctx, s.db, companyID, id)
}

func orKeep(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
