// Package cli implements the linkctl command line: serving the API and
// managing links directly against the configured store.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sundayezeilo/shortlink/internal/app"
	"github.com/sundayezeilo/shortlink/internal/config"
)

var (
	// Cfg and Logger are loaded before every subcommand runs.
	Cfg    *config.Config
	Logger *slog.Logger

	storeDriver string
	storeFile   string
	sqlitePath  string
)

// RootCmd is the base command. Subcommands register themselves in init.
var RootCmd = &cobra.Command{
	Use:   "linkctl",
	Short: "Expiring short links with click counts",
	Long: `linkctl serves the short-link HTTP API and manages links directly
against the configured store.

Configuration comes from the environment (and a .env file outside
production). The --store, --file and --sqlite flags override it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := app.Bootstrap(cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("store") {
			cfg.Store.Driver = storeDriver
		}
		if cmd.Flags().Changed("file") {
			cfg.Store.FilePath = storeFile
		}
		if cmd.Flags().Changed("sqlite") {
			cfg.Store.SQLitePath = sqlitePath
		}
		if err := cfg.Store.Validate(); err != nil {
			return fmt.Errorf("invalid Store config: %w", err)
		}
		if cfg.Store.Driver == config.DriverPostgres {
			if err := cfg.Database.Validate(); err != nil {
				return fmt.Errorf("invalid Database config: %w", err)
			}
		}

		Cfg, Logger = cfg, logger
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVar(&storeDriver, "store", "", "store driver: file, memory, postgres or sqlite")
	flags.StringVar(&storeFile, "file", "", "path of the JSON store file")
	flags.StringVar(&sqlitePath, "sqlite", "", "path of the SQLite database")
}
