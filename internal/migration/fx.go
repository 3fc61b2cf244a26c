package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	authdomain "github.com/facturio/facturio/internal/auth/domain"
	clientdomain "github.com/facturio/facturio/internal/client/domain"
	companydomain "github.com/facturio/facturio/internal/company/domain"
	"github.com/facturio/facturio/internal/config"
	invoicedomain "github.com/facturio/facturio/internal/invoice/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// sqlite and mysql are dev/test conveniences; the versioned
			// SQL migrations target postgres only.
			return conn.AutoMigrate(
				&companydomain.Company{},
				&authdomain.User{},
				&authdomain.Session{},
				&clientdomain.Client{},
				&invoicedomain.Invoice{},
				&invoicedomain.InvoiceItem{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
