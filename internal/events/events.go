package events

import "time"

// Event types published during a pipeline run.
const (
	RunStarted        = "run.started"
	ExtractFinished   = "extract.finished"
	LoadFinished      = "load.finished"
	ComplaintsSkipped = "complaints.skipped"
	RunFinished       = "run.finished"
)

type Event struct {
	Type     string    `json:"type"`
	RunID    string    `json:"run_id"`
	Category string    `json:"category,omitempty"`
	Count    int       `json:"count,omitempty"`
	Status   string    `json:"status,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}
