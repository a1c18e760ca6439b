package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/clock"
	"github.com/smallbiznis/pitchdeck/internal/config"
	"github.com/smallbiznis/pitchdeck/internal/migration"
	"github.com/smallbiznis/pitchdeck/internal/observability"
	"github.com/smallbiznis/pitchdeck/internal/server"
	"github.com/smallbiznis/pitchdeck/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
