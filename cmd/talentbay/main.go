package main

import (
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/pterm/pterm"
	"github.com/smallbiznis/talentbay/internal/clock"
	"github.com/smallbiznis/talentbay/internal/config"
	"github.com/smallbiznis/talentbay/internal/observability"
	"github.com/smallbiznis/talentbay/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var routesFile string

var rootCmd = &cobra.Command{
	Use:   "talentbay",
	Short: "Talentbay marketplace server",
	Long: `Talentbay serves the marketplace web app and its session API.
Run "serve" for the HTTP server, or use the maintenance commands to
migrate the database, seed demo accounts and inspect the route policy.`,
	SilenceUsage: true,
}

func main() {
	Execute()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&routesFile, "routes", "", "Path to the route policy file (overrides ROUTES_CONFIG_PATH)")

	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, routesCmd)
}

// withFlags applies command line overrides on top of the environment.
func withFlags(cfg config.Config) config.Config {
	if routesFile != "" {
		cfg.Guard.PolicyPath = routesFile
	}
	return cfg
}

// coreModules are shared by every command that touches the database.
func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		fx.Decorate(withFlags),
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
	)
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
