package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"recallwatch/internal/config"
	"recallwatch/internal/identity"
	"recallwatch/internal/metrics"
	"recallwatch/internal/pipeline"
)

func newIngestCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var (
		only   []string
		output string
	)
	ccmd := &cobra.Command{
		Use:   "ingest",
		Short: "Extract recalls and complaints and upsert them into the raw layer.",
		Long: `Run one ingestion: recalls for the configured make and window, then
complaints when both a model and a model year are configured (skipped
otherwise). Use --only to restrict the run; asking for complaints explicitly
without a model and year is an error.

The run report is printed to stdout, also when the run fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd, stderr)
			if err != nil {
				return err
			}
			opts := runOptions(cfg)
			for _, o := range only {
				c, err := identity.ParseCategory(o)
				if err != nil {
					return err
				}
				opts.Categories = append(opts.Categories, c)
			}

			ctx := cmd.Context()
			m := metrics.New()
			st, err := openStore(ctx, cfg, log, m)
			if err != nil {
				return err
			}
			defer st.Close()

			rep, runErr := newPipeline(cfg, st, log, m, nil).Run(ctx, opts)
			if err := rep.Write(stdout, output); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if runErr != nil {
				return fmt.Errorf("ingest failed: %w", runErr)
			}
			return nil
		},
	}

	flags := ccmd.Flags()
	config.RegisterIngestFlags(flags)
	config.RegisterStoreFlags(flags)
	config.RegisterLogFlags(flags)
	flags.StringSliceVar(&only, "only", nil, "categories to ingest: recalls, complaints")
	flags.StringVarP(&output, "output", "o", pipeline.FormatText, "report format: text, json or yaml")
	return ccmd
}
