package identity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recallwatch/pkg/models"
)

var fixedNow = time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)

func TestMapRecall(t *testing.T) {
	rec := decode(t, `{
		"nhtsa_id": "24V064000",
		"manufacturer": "Tesla, Inc.",
		"component": "ELECTRICAL SYSTEM",
		"report_received_date": "2024-01-29T00:00:00.000",
		"subject": "Warning lights font size",
		"mfr_campaign_number": "SB-24-00-001"
	}`)

	row := MapRecall(rec, fixedNow)
	assert.Equal(t, "nhtsa:24V064000", row.PK)
	assert.Equal(t, SourceSocrata, row.Source)
	require.NotNil(t, row.SourceID)
	assert.Equal(t, "24V064000", *row.SourceID)
	require.NotNil(t, row.Make)
	assert.Equal(t, "Tesla, Inc.", *row.Make)
	require.NotNil(t, row.Component)
	assert.Equal(t, "ELECTRICAL SYSTEM", *row.Component)
	require.NotNil(t, row.ReportDate)
	assert.Equal(t, "2024-01-29", row.ReportDate.Format(models.DateLayout))
	assert.Nil(t, row.Model)
	assert.Nil(t, row.ModelYear)
	assert.Nil(t, row.SourceUpdatedAt)
	assert.Equal(t, fixedNow, row.IngestedAt)

	var back map[string]any
	require.NoError(t, json.Unmarshal(row.Payload, &back))
	assert.Equal(t, "SB-24-00-001", back["mfr_campaign_number"])
	assert.Len(t, back, 6)

	vals := row.Values()
	require.Len(t, vals, len(models.RecallColumns))
	assert.Equal(t, "2024-01-29", vals[7])
	assert.Nil(t, vals[4])
}

func TestMapRecallEmptyRecord(t *testing.T) {
	row := MapRecall(models.RawRecord{}, fixedNow)
	assert.Equal(t, "hash:"+ContentHash("", "", "", ""), row.PK)
	assert.Nil(t, row.SourceID)
	assert.Nil(t, row.Make)
	assert.Nil(t, row.ReportDate)
	assert.Equal(t, "{}", string(row.Payload))
}

func TestMapComplaint(t *testing.T) {
	rec := decode(t, `{
		"ODINumber": 11565298,
		"Make": "TESLA",
		"Model": "MODEL 3",
		"ModelYear": "2021",
		"Component": "STEERING",
		"IncidentDate": "2024-01-03",
		"DateReceived": "2024-01-05T10:22:00.000",
		"State": "CA",
		"Summary": "Steering wheel locked."
	}`)

	row := MapComplaint(rec, fixedNow)
	assert.Equal(t, "odi:11565298", row.PK)
	assert.Equal(t, SourceNHTSA, row.Source)
	require.NotNil(t, row.ODINumber)
	assert.Equal(t, "11565298", *row.ODINumber)
	assert.Equal(t, row.ODINumber, row.SourceID)
	require.NotNil(t, row.ModelYear)
	assert.Equal(t, 2021, *row.ModelYear)
	require.NotNil(t, row.IncidentDate)
	assert.Equal(t, "2024-01-03", row.IncidentDate.Format(models.DateLayout))
	require.NotNil(t, row.ReceivedDate)
	assert.Equal(t, "2024-01-05", row.ReceivedDate.Format(models.DateLayout))
	require.NotNil(t, row.State)
	assert.Equal(t, "CA", *row.State)
	assert.Len(t, row.Values(), len(models.ComplaintColumns))
}

func TestMapComplaintLowercaseVariants(t *testing.T) {
	rec := models.RawRecord{
		"odiNumber":          json.Number("11600001"),
		"make":               "Tesla",
		"model":              "Model Y",
		"modelYear":          "n/a",
		"components":         []any{"AIR BAGS", "SEAT BELTS"},
		"dateComplaintFiled": "not-a-date",
		"dateOfIncident":     "2023-12-24",
	}
	row := MapComplaint(rec, fixedNow)
	assert.Equal(t, "odi:11600001", row.PK)
	require.NotNil(t, row.Make)
	assert.Equal(t, "Tesla", *row.Make)
	assert.Nil(t, row.ModelYear, "non-numeric year degrades to null")
	require.NotNil(t, row.Component)
	assert.Equal(t, "AIR BAGS,SEAT BELTS", *row.Component)
	assert.Nil(t, row.ReceivedDate, "malformed date degrades to null")
	require.NotNil(t, row.IncidentDate)
}

func TestMapBatch(t *testing.T) {
	recs := []models.RawRecord{{"nhtsa_id": "1"}, {"nhtsa_id": "2"}}
	rows := MapRecalls(recs, fixedNow)
	require.Len(t, rows, 2)
	assert.Equal(t, "nhtsa:2", rows[1].PK)
	assert.Empty(t, MapComplaints(nil, fixedNow))
}

func TestPayloadKeepsHTMLCharacters(t *testing.T) {
	rec := decode(t, `{"nhtsa_id":"24V001000","summary":"speed <5 mph & brakes > pedal"}`)
	row := MapRecall(rec, fixedNow)
	assert.Equal(t, `{"nhtsa_id":"24V001000","summary":"speed <5 mph & brakes > pedal"}`, string(row.Payload))
}
