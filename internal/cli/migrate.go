package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"recallwatch/internal/config"
	"recallwatch/internal/store"
)

func newMigrateCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	ccmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the raw layer tables if they do not exist.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd, stderr)
			if err != nil {
				return err
			}
			db, dialect, err := store.Open(store.Config{URL: cfg.Database.URL})
			if err != nil {
				return err
			}
			defer db.Close()

			if err := store.Migrate(cmd.Context(), db, dialect); err != nil {
				return err
			}
			log.WithField("dialect", dialect).Info("schema applied")
			fmt.Fprintf(stdout, "raw layer schema applied (%s)\n", dialect)
			return nil
		},
	}
	config.RegisterStoreFlags(ccmd.Flags())
	config.RegisterLogFlags(ccmd.Flags())
	return ccmd
}
