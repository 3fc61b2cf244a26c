package auth

import (
	"go.uber.org/fx"

	"github.com/facturio/facturio/internal/auth/repository"
	"github.com/facturio/facturio/internal/auth/service"
	"github.com/facturio/facturio/internal/auth/session"
)

var Module = fx.Module("auth",
	session.Module,
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
