package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/facturio/facturio/internal/auth"
	"github.com/facturio/facturio/internal/authorization"
	"github.com/facturio/facturio/internal/client"
	"github.com/facturio/facturio/internal/clock"
	"github.com/facturio/facturio/internal/company"
	"github.com/facturio/facturio/internal/config"
	"github.com/facturio/facturio/internal/invoice"
	"github.com/facturio/facturio/internal/migration"
	"github.com/facturio/facturio/internal/observability"
	"github.com/facturio/facturio/internal/providers"
	"github.com/facturio/facturio/internal/ratelimit"
	"github.com/facturio/facturio/internal/scheduler"
	"github.com/facturio/facturio/internal/server"
	"github.com/facturio/facturio/pkg/db"
)

func main() {
	app := fx.New(
		// Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// External providers
		providers.Module,
		ratelimit.Module,

		// Domains
		auth.Module,
		authorization.Module,
		company.Module,
		client.Module,
		invoice.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
