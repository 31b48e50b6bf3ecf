package models

import (
	"encoding/json"
	"time"
)

// RecallColumns lists the raw recalls table columns in Values() order.
var RecallColumns = []string{
	"recall_pk",
	"source",
	"source_id",
	"make",
	"model",
	"model_year",
	"component",
	"report_date",
	"source_updated_at",
	"ingested_at",
	"raw_payload",
}

// RecallIdentityColumn is the unique column of the raw recalls table.
const RecallIdentityColumn = "recall_pk"

// RecallRow is a recall notice projected onto the raw recalls columns.
// Only PK is guaranteed to be set; everything else is nil when the source
// record did not carry it.
type RecallRow struct {
	PK              string          `json:"recall_pk"`
	Source          string          `json:"source"`
	SourceID        *string         `json:"source_id,omitempty"`
	Make            *string         `json:"make,omitempty"`
	Model           *string         `json:"model,omitempty"`
	ModelYear       *int            `json:"model_year,omitempty"`
	Component       *string         `json:"component,omitempty"`
	ReportDate      *time.Time      `json:"report_date,omitempty"`
	SourceUpdatedAt *time.Time      `json:"source_updated_at,omitempty"`
	IngestedAt      time.Time       `json:"ingested_at"`
	Payload         json.RawMessage `json:"raw_payload"`
}

// Values returns the row in RecallColumns order, ready for a bulk insert.
func (r RecallRow) Values() []any {
	return []any{
		r.PK,
		r.Source,
		nullableString(r.SourceID),
		nullableString(r.Make),
		nullableString(r.Model),
		nullableInt(r.ModelYear),
		nullableString(r.Component),
		nullableDate(r.ReportDate),
		nullableTime(r.SourceUpdatedAt),
		r.IngestedAt.UTC(),
		string(r.Payload),
	}
}
