package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "recallwatch",
		Short: "Ingest vehicle recalls and complaints into a raw storage layer.",
		Long: `recallwatch pulls recall notices from the DOT Socrata API and owner
complaints from the NHTSA complaints API, derives a stable key for every
record and upserts it into the raw layer (sqlite or postgres).

Configuration is read from flags, RECALLWATCH_* environment variables and an
optional config file, in that order of priority.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rc.PersistentFlags().StringP("config", "c", "", "configuration file (yaml, toml or json)")

	rc.AddCommand(newIngestCommand(stdin, stdout, stderr))
	rc.AddCommand(newLoadCommand(stdin, stdout, stderr))
	rc.AddCommand(newServeCommand(stdin, stdout, stderr))
	rc.AddCommand(newMigrateCommand(stdin, stdout, stderr))
	rc.AddCommand(newTokenCommand(stdin, stdout, stderr))

	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}
