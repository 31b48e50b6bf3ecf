package models

import "time"

// IngestRunColumns lists the ingest run ledger columns in Values() order.
var IngestRunColumns = []string{
	"run_id",
	"started_at",
	"finished_at",
	"make",
	"start_date",
	"end_date",
	"recalls_extracted",
	"recalls_loaded",
	"complaints_extracted",
	"complaints_loaded",
	"complaints_skipped",
	"status",
	"error",
}

const IngestRunIdentityColumn = "run_id"

// IngestRun is one pipeline execution as recorded in the run ledger.
type IngestRun struct {
	RunID               string     `json:"run_id" yaml:"run_id"`
	StartedAt           time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt          *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Make                string     `json:"make" yaml:"make"`
	StartDate           string     `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate             string     `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	RecallsExtracted    int        `json:"recalls_extracted" yaml:"recalls_extracted"`
	RecallsLoaded       int        `json:"recalls_loaded" yaml:"recalls_loaded"`
	ComplaintsExtracted int        `json:"complaints_extracted" yaml:"complaints_extracted"`
	ComplaintsLoaded    int        `json:"complaints_loaded" yaml:"complaints_loaded"`
	ComplaintsSkipped   bool       `json:"complaints_skipped" yaml:"complaints_skipped"`
	Status              string     `json:"status" yaml:"status"` // running | succeeded | failed
	Error               string     `json:"error,omitempty" yaml:"error,omitempty"`
}

const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

func (r IngestRun) Values() []any {
	var errText any
	if r.Error != "" {
		errText = r.Error
	}
	return []any{
		r.RunID,
		r.StartedAt.UTC(),
		nullableTime(r.FinishedAt),
		r.Make,
		r.StartDate,
		r.EndDate,
		r.RecallsExtracted,
		r.RecallsLoaded,
		r.ComplaintsExtracted,
		r.ComplaintsLoaded,
		r.ComplaintsSkipped,
		r.Status,
		errText,
	}
}
