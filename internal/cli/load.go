package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"recallwatch/internal/config"
	"recallwatch/internal/identity"
	"recallwatch/internal/metrics"
	"recallwatch/pkg/models"
)

func newLoadCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var category string
	ccmd := &cobra.Command{
		Use:   "load",
		Short: "Upsert a JSON array of raw records read from stdin.",
		Long: `Read a JSON array of raw records from stdin and upsert it into the raw
layer. Without --category the records are treated as recalls when the first
one carries nhtsa_id or manufacturer, and as complaints otherwise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := io.ReadAll(stdin)
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			if len(bytes.TrimSpace(in)) == 0 {
				fmt.Fprintln(stdout, "no input on stdin; nothing loaded")
				return nil
			}

			recs, err := decodeRecords(in)
			if err != nil {
				return err
			}

			var cat identity.Category
			if category != "" {
				if cat, err = identity.ParseCategory(category); err != nil {
					return err
				}
			} else {
				cat = guessCategory(recs[0])
			}

			cfg, log, err := loadConfig(cmd, stderr)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := openStore(ctx, cfg, log, metrics.New())
			if err != nil {
				return err
			}
			defer st.Close()

			now := time.Now().UTC()
			var n int
			switch cat {
			case identity.Recalls:
				n, err = st.WriteRecalls(ctx, identity.MapRecalls(recs, now))
			default:
				n, err = st.WriteComplaints(ctx, identity.MapComplaints(recs, now))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "loaded %d %s\n", n, cat)
			return nil
		},
	}

	flags := ccmd.Flags()
	config.RegisterStoreFlags(flags)
	config.RegisterLogFlags(flags)
	flags.StringVar(&category, "category", "", "recalls or complaints (guessed from the first record when empty)")
	return ccmd
}

// decodeRecords parses a non-empty JSON array of objects, keeping numbers
// in their textual form.
func decodeRecords(in []byte) ([]models.RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(in))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode stdin: %w", err)
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, errors.New("stdin must be a JSON array of records")
	}
	if len(arr) == 0 {
		return nil, errors.New("stdin array is empty")
	}
	recs := make([]models.RawRecord, 0, len(arr))
	for i, it := range arr {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record %d is not an object", i)
		}
		recs = append(recs, models.RawRecord(m))
	}
	return recs, nil
}

func guessCategory(first models.RawRecord) identity.Category {
	_, hasID := first["nhtsa_id"]
	_, hasMfr := first["manufacturer"]
	if hasID || hasMfr {
		return identity.Recalls
	}
	return identity.Complaints
}
