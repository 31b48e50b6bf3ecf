package models

import (
	"encoding/json"
	"time"
)

// ComplaintColumns lists the raw complaints table columns in Values() order.
var ComplaintColumns = []string{
	"complaint_pk",
	"source",
	"source_id",
	"odi_number",
	"make",
	"model",
	"model_year",
	"component",
	"incident_date",
	"received_date",
	"state",
	"source_updated_at",
	"ingested_at",
	"raw_payload",
}

// ComplaintIdentityColumn is the unique column of the raw complaints table.
const ComplaintIdentityColumn = "complaint_pk"

// ComplaintRow is an owner complaint projected onto the raw complaints columns.
type ComplaintRow struct {
	PK              string          `json:"complaint_pk"`
	Source          string          `json:"source"`
	SourceID        *string         `json:"source_id,omitempty"`
	ODINumber       *string         `json:"odi_number,omitempty"`
	Make            *string         `json:"make,omitempty"`
	Model           *string         `json:"model,omitempty"`
	ModelYear       *int            `json:"model_year,omitempty"`
	Component       *string         `json:"component,omitempty"`
	IncidentDate    *time.Time      `json:"incident_date,omitempty"`
	ReceivedDate    *time.Time      `json:"received_date,omitempty"`
	State           *string         `json:"state,omitempty"`
	SourceUpdatedAt *time.Time      `json:"source_updated_at,omitempty"`
	IngestedAt      time.Time       `json:"ingested_at"`
	Payload         json.RawMessage `json:"raw_payload"`
}

func (r ComplaintRow) Values() []any {
	return []any{
		r.PK,
		r.Source,
		nullableString(r.SourceID),
		nullableString(r.ODINumber),
		nullableString(r.Make),
		nullableString(r.Model),
		nullableInt(r.ModelYear),
		nullableString(r.Component),
		nullableDate(r.IncidentDate),
		nullableDate(r.ReceivedDate),
		nullableString(r.State),
		nullableTime(r.SourceUpdatedAt),
		r.IngestedAt.UTC(),
		string(r.Payload),
	}
}
