package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/hearthhq/hearth/internal/clock"
	"github.com/hearthhq/hearth/internal/config"
	"github.com/hearthhq/hearth/internal/migration"
	"github.com/hearthhq/hearth/internal/observability"
	"github.com/hearthhq/hearth/internal/scheduler"
	"github.com/hearthhq/hearth/internal/server"
	"github.com/hearthhq/hearth/pkg/db"
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
		scheduler.Module,
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
