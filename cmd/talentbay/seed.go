package main

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/smallbiznis/talentbay/internal/auth"
	"github.com/smallbiznis/talentbay/internal/migration"
	"github.com/smallbiznis/talentbay/internal/profile"
	"github.com/smallbiznis/talentbay/internal/ratelimit"
	"github.com/smallbiznis/talentbay/internal/seed"
	"github.com/smallbiznis/talentbay/pkg/redisconn"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var seedPassword string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the demo accounts",
	Long: `Creates one admin, one freelancer, one client and one user without a
profile. Running it again leaves existing accounts untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var seeder *seed.Seeder
		app := fx.New(
			coreModules(),
			redisconn.Module,
			migration.Module,
			auth.Module,
			profile.Module,
			ratelimit.Module,
			seed.Module,
			fx.Populate(&seeder),
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

		results, err := seeder.Run(ctx, seed.DemoAccounts, seedPassword)
		if err != nil {
			return err
		}

		data := pterm.TableData{{"Email", "User ID", "Handle", "Created"}}
		for _, r := range results {
			created := "no"
			if r.UserCreated {
				created = "yes"
			}
			handle := r.Handle
			if handle == "" {
				handle = "-"
			}
			data = append(data, []string{r.Email, r.UserID, handle, created})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
		pterm.Info.Printfln("demo password: %s", seedPassword)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", seed.DefaultPassword, "Password for every demo account")
}
