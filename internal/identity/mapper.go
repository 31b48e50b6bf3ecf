package identity

import (
	"bytes"
	"encoding/json"
	"time"

	"recallwatch/pkg/models"
)

const (
	SourceSocrata = "socrata"
	SourceNHTSA   = "nhtsa"
)

// MapRecall projects a Socrata recall record onto the raw recalls columns.
// now is the ingestion timestamp; it never feeds the key.
func MapRecall(rec models.RawRecord, now time.Time) models.RecallRow {
	var reportDate any
	if v, ok := Lookup(rec, RecallDateFields...); ok {
		reportDate = v
	}
	return models.RecallRow{
		PK:         RecallKey(rec),
		Source:     SourceSocrata,
		SourceID:   OptString(rec, RecallIDFields...),
		Make:       OptString(rec, RecallMakeFields...),
		Component:  OptString(rec, RecallComponentFields...),
		ReportDate: ParseDate(reportDate),
		IngestedAt: now.UTC(),
		Payload:    payload(rec),
	}
}

// MapComplaint projects an NHTSA complaint record onto the raw complaints
// columns.
func MapComplaint(rec models.RawRecord, now time.Time) models.ComplaintRow {
	odi := OptString(rec, ComplaintIDFields...)

	var year, incident, received any
	if v, ok := Lookup(rec, ComplaintYearFields...); ok {
		year = v
	}
	if v, ok := Lookup(rec, ComplaintIncidentFields...); ok {
		incident = v
	}
	if v, ok := Lookup(rec, ComplaintReceivedFields...); ok {
		received = v
	}

	return models.ComplaintRow{
		PK:           ComplaintKey(rec),
		Source:       SourceNHTSA,
		SourceID:     odi,
		ODINumber:    odi,
		Make:         OptString(rec, ComplaintMakeFields...),
		Model:        OptString(rec, ComplaintModelFields...),
		ModelYear:    ParseYear(year),
		Component:    OptString(rec, ComplaintComponentFields...),
		IncidentDate: ParseDate(incident),
		ReceivedDate: ParseDate(received),
		State:        OptString(rec, ComplaintStateFields...),
		IngestedAt:   now.UTC(),
		Payload:      payload(rec),
	}
}

func MapRecalls(recs []models.RawRecord, now time.Time) []models.RecallRow {
	out := make([]models.RecallRow, 0, len(recs))
	for _, r := range recs {
		out = append(out, MapRecall(r, now))
	}
	return out
}

func MapComplaints(recs []models.RawRecord, now time.Time) []models.ComplaintRow {
	out := make([]models.ComplaintRow, 0, len(recs))
	for _, r := range recs {
		out = append(out, MapComplaint(r, now))
	}
	return out
}

// payload serializes the record verbatim. encoding/json sorts map keys, so the
// bytes do not depend on the order fields arrived in. HTML escaping is off so
// text such as "<" or "&" is stored as received.
func payload(rec models.RawRecord) json.RawMessage {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return json.RawMessage("null")
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}
