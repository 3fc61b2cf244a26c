package client

import (
	"go.uber.org/fx"

	"github.com/facturio/facturio/internal/client/repository"
	"github.com/facturio/facturio/internal/client/service"
)

var Module = fx.Module("client",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
