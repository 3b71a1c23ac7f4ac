package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/opencivic/muniva/internal/clock"
	"github.com/opencivic/muniva/internal/config"
	"github.com/opencivic/muniva/internal/migration"
	"github.com/opencivic/muniva/internal/observability"
	"github.com/opencivic/muniva/internal/scheduler"
	"github.com/opencivic/muniva/internal/server"
	"github.com/opencivic/muniva/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		server.Module,
		scheduler.Module,
		migration.Module,

		fx.Invoke(StartScheduler),
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

func StartScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
