package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/jeremyholland-coder/stageflow/internal/audit"
	"github.com/jeremyholland-coder/stageflow/internal/clock"
	"github.com/jeremyholland-coder/stageflow/internal/config"
	"github.com/jeremyholland-coder/stageflow/internal/events/relay"
	"github.com/jeremyholland-coder/stageflow/internal/migration"
	"github.com/jeremyholland-coder/stageflow/internal/observability"
	"github.com/jeremyholland-coder/stageflow/internal/provider"
	"github.com/jeremyholland-coder/stageflow/internal/server"
	"github.com/jeremyholland-coder/stageflow/internal/webhook"
	"github.com/jeremyholland-coder/stageflow/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		clock.Module,

		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return migration.RunMigrations(sqlDB)
		}),

		audit.Module,
		provider.Module,
		webhook.Module,
		relay.Module,

		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Invoke(func(s *server.Server) {
			s.RegisterRoutes()
		}),
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
}
