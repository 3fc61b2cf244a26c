package invoice

import (
	"go.uber.org/fx"

	"github.com/facturio/facturio/internal/invoice/repository"
	"github.com/facturio/facturio/internal/invoice/service"
)

var Module = fx.Module("invoice",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
