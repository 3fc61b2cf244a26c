package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"

	clientdomain "github.com/facturio/facturio/internal/client/domain"
	"github.com/facturio/facturio/internal/company/domain"
	"github.com/facturio/facturio/pkg/db"
)

const searchLimit = 10

type Service struct {
	log   *zap.Logger
	db    *gorm.DB
	repo  domain.Repository
	genID *snowflake.Node
}

func New(log *zap.Logger, conn *gorm.DB, repo domain.Repository, genID *snowflake.Node) domain.Service {
	return &Service{
		log:   log.Named("company.service"),
		db:    conn,
		repo:  repo,
		genID: genID,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCompanyRequest) (*domain.Company, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	nif := clientdomain.NormalizeNIF(req.NIF)
	if nif == "" {
		return nil, domain.ErrInvalidNIF
	}

	now := time.Now().UTC()
	company := &domain.Company{
		ID:         s.genID.Generate(),
		Name:       name,
		Slug:       slug.Make(name),
		NIF:        nif,
		Address:    strings.TrimSpace(req.Address),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:      strings.TrimSpace(req.Phone),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.repo.Insert(ctx, s.db, company)
	if db.IsDuplicateKeyErr(err) {
		// Slug collision with another company of the same name.
		company.Slug = fmt.Sprintf("%s-%d", company.Slug, company.ID%10000)
		err = s.repo.Insert(ctx, s.db, company)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("company created",
		zap.String("company_id", company.ID.String()),
		zap.String("slug", company.Slug),
	)
	return company, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Company, error) {
	if id == 0 {
		return nil, domain.ErrNotFound
	}
	return s.repo.FindByID(ctx, s.db, id)
}

func (s *Service) Search(ctx context.Context, query string) ([]*domain.Company, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return []*domain.Company{}, nil
	}
	return s.repo.Search(ctx, s.db, query, searchLimit)
}

func (s *Service) List(ctx context.Context) ([]*domain.Company, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) Update(ctx context.Context, req domain.UpdateCompanyRequest) (*domain.Company, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	company, err := s.repo.FindByID(ctx, s.db, req.ID)
	if err != nil {
		return nil, err
	}

	company.Name = name
	company.Address = strings.TrimSpace(req.Address)
	company.PostalCode = strings.TrimSpace(req.PostalCode)
	company.Email = strings.ToLower(strings.TrimSpace(req.Email))
	company.Phone = strings.TrimSpace(req.Phone)
	company.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, s.db, company); err != nil {
		return nil, err
	}
	return company, nil
}
