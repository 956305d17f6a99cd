package main

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/smallbiznis/talentbay/internal/config"
	"github.com/smallbiznis/talentbay/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			conn *gorm.DB
			cfg  config.Config
		)
		app := fx.New(
			coreModules(),
			fx.Populate(&conn, &cfg),
			fx.NopLogger,
		)
		if err := app.Err(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		if err := app.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = app.Stop(context.Background()) }()

		if err := migration.Run(conn, cfg); err != nil {
			return err
		}
		pterm.Success.Printfln("database %s is up to date", cfg.DBName)
		return nil
	},
}
