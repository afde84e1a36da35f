package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/plansight/plansight/internal/clock"
	"github.com/plansight/plansight/internal/config"
	"github.com/plansight/plansight/internal/logger"
	"github.com/plansight/plansight/internal/migration"
	"github.com/plansight/plansight/internal/server"
	"github.com/plansight/plansight/internal/worker"
	"github.com/plansight/plansight/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains (ledger, job, admission, tracker) are
		// assembled by the server module.
		server.Module,
		worker.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
