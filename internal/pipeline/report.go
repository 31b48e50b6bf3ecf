package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"recallwatch/pkg/models"
)

// Report summarizes one run. On failure it holds the counts of the steps
// that completed before the error.
type Report struct {
	models.IngestRun `yaml:",inline"`
}

// Output formats accepted by Write.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Write renders the report in the given format.
func (r Report) Write(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		return r.writeText(w)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(r)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func (r Report) writeText(w io.Writer) error {
	finished := ""
	if r.FinishedAt != nil {
		finished = r.FinishedAt.Format(time.RFC3339)
	}

	var b strings.Builder
	fmt.Fprintln(&b, "=== RecallWatch Ingest Report ===")
	fmt.Fprintf(&b, "run_id: %s\n", r.RunID)
	fmt.Fprintf(&b, "make: %s\n", r.Make)
	fmt.Fprintf(&b, "window: %s .. %s\n", r.StartDate, r.EndDate)
	fmt.Fprintf(&b, "started_at: %s\n", r.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "finished_at: %s\n", finished)
	fmt.Fprintln(&b, "-")
	fmt.Fprintf(&b, "recalls: extracted=%d loaded=%d\n", r.RecallsExtracted, r.RecallsLoaded)
	if r.ComplaintsSkipped {
		fmt.Fprintln(&b, "complaints: skipped (set RECALLWATCH_MODEL and RECALLWATCH_MODEL_YEAR)")
	} else {
		fmt.Fprintf(&b, "complaints: extracted=%d loaded=%d\n", r.ComplaintsExtracted, r.ComplaintsLoaded)
	}
	fmt.Fprintf(&b, "status: %s\n", r.Status)
	if r.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", r.Error)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
