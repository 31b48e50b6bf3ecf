package rawlayer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recallwatch/internal/identity"
	"recallwatch/internal/store"
	"recallwatch/pkg/models"
)

var ingestedAt = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func seed(t *testing.T) *Repo {
	t.Helper()
	ctx := context.Background()
	db, d, err := store.Open(store.Config{URL: filepath.Join(t.TempDir(), "raw.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(ctx, db, d))
	st := store.New(db, d, 0, nil, nil)

	recalls := []models.RawRecord{
		{"nhtsa_id": "24V001000", "manufacturer": "Tesla, Inc.", "component": "STEERING", "report_received_date": "2024-01-15T00:00:00.000"},
		{"nhtsa_id": "24V002000", "manufacturer": "Tesla, Inc.", "report_received_date": "not a date"},
		{"nhtsa_id": "24V003000", "manufacturer": "Ford Motor Company"},
	}
	_, err = st.WriteRecalls(ctx, identity.MapRecalls(recalls, ingestedAt))
	require.NoError(t, err)

	complaints := []models.RawRecord{
		{"odiNumber": "11565298", "make": "TESLA", "model": "MODEL 3", "modelYear": "2021", "dateComplaintFiled": "2024-02-03", "state": "CA"},
	}
	_, err = st.WriteComplaints(ctx, identity.MapComplaints(complaints, ingestedAt))
	require.NoError(t, err)

	fin := ingestedAt.Add(time.Minute)
	for i, id := range []string{"run-old", "run-new"} {
		require.NoError(t, st.WriteRun(ctx, models.IngestRun{
			RunID:             id,
			StartedAt:         ingestedAt.Add(time.Duration(i) * time.Hour),
			FinishedAt:        &fin,
			Make:              "TESLA",
			StartDate:         "2024-01-01",
			EndDate:           "2024-12-31",
			RecallsLoaded:     3,
			ComplaintsSkipped: true,
			Status:            models.RunSucceeded,
		}))
	}
	return NewRepo(db, d)
}

func TestRecalls(t *testing.T) {
	r := seed(t)
	ctx := context.Background()

	total, err := r.CountRecalls(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	total, err = r.CountRecalls(ctx, ListQuery{Make: "tesla"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	items, err := r.ListRecalls(ctx, ListQuery{Make: "TESLA", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	rec, err := r.GetRecall(ctx, "nhtsa:24V001000")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "socrata", rec.Source)
	assert.Equal(t, "STEERING", *rec.Component)
	require.NotNil(t, rec.ReportDate)
	assert.Equal(t, "2024-01-15", rec.ReportDate.Format(models.DateLayout))
	assert.True(t, ingestedAt.Equal(rec.IngestedAt))
	assert.JSONEq(t, `{"nhtsa_id":"24V001000","manufacturer":"Tesla, Inc.","component":"STEERING","report_received_date":"2024-01-15T00:00:00.000"}`, string(rec.Payload))

	bad, err := r.GetRecall(ctx, "nhtsa:24V002000")
	require.NoError(t, err)
	assert.Nil(t, bad.ReportDate)
	assert.Nil(t, bad.Component)

	missing, err := r.GetRecall(ctx, "nhtsa:nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestComplaints(t *testing.T) {
	r := seed(t)
	ctx := context.Background()

	items, err := r.ListComplaints(ctx, ListQuery{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	c := items[0]
	assert.Equal(t, "odi:11565298", c.PK)
	assert.Equal(t, "11565298", *c.ODINumber)
	assert.Equal(t, 2021, *c.ModelYear)
	assert.Equal(t, "CA", *c.State)
	require.NotNil(t, c.ReceivedDate)
	assert.Equal(t, "2024-02-03", c.ReceivedDate.Format(models.DateLayout))
	assert.Nil(t, c.IncidentDate)

	n, err := r.CountComplaints(ctx, ListQuery{Make: "FORD"})
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := r.GetComplaint(ctx, "odi:11565298")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestRuns(t *testing.T) {
	r := seed(t)
	ctx := context.Background()

	runs, err := r.ListRuns(ctx, ListQuery{Make: "tesla"})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].RunID)
	assert.True(t, runs[0].ComplaintsSkipped)
	assert.Equal(t, 3, runs[0].RecallsLoaded)
	require.NotNil(t, runs[0].FinishedAt)

	run, err := r.GetRun(ctx, "run-old")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "2024-12-31", run.EndDate)

	none, err := r.GetRun(ctx, "zzz")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, r.Ping(ctx))
}

func TestListQueryNormalized(t *testing.T) {
	assert.Equal(t, ListQuery{Limit: DefaultLimit}, ListQuery{Offset: -3}.normalized())
	assert.Equal(t, MaxLimit, ListQuery{Limit: 10_000}.normalized().Limit)
}
