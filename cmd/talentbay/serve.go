package main

import (
	"github.com/smallbiznis/talentbay/internal/migration"
	"github.com/smallbiznis/talentbay/internal/server"
	"github.com/smallbiznis/talentbay/pkg/redisconn"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		app := fx.New(
			coreModules(),
			redisconn.Module,
			migration.Module,

			server.Module,
		)
		app.Run()
	},
}
