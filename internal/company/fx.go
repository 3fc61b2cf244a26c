package company

import (
	"go.uber.org/fx"

	"github.com/facturio/facturio/internal/company/repository"
	"github.com/facturio/facturio/internal/company/service"
)

var Module = fx.Module("company",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
