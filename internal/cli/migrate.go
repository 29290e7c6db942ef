package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sundayezeilo/shortlink/internal/app"
)

// MigrateCmd applies the schema of the configured SQL store.
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the links table",
	Long: `Connects to the configured SQL store (postgres or sqlite) and applies
the links schema. The file and memory stores need no migration.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.Migrate(cmd.Context(), Cfg, Logger); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Database migrations executed successfully.")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(MigrateCmd)
}
