package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recallwatch/internal/auth"
	"recallwatch/internal/events"
	"recallwatch/internal/identity"
	"recallwatch/internal/metrics"
	"recallwatch/internal/pipeline"
	"recallwatch/internal/rawlayer"
	"recallwatch/internal/store"
	"recallwatch/pkg/models"
)

var testTokens = auth.TokenService{Secret: []byte("api-test"), Issuer: "recallwatch", Duration: time.Hour}

// gatedRunner blocks every run until release is closed.
type gatedRunner struct {
	release chan struct{}
	got     chan pipeline.Options
}

func (g *gatedRunner) Run(ctx context.Context, opts pipeline.Options) (pipeline.Report, error) {
	g.got <- opts
	select {
	case <-g.release:
	case <-ctx.Done():
	}
	return pipeline.Report{IngestRun: models.IngestRun{RunID: opts.RunID, Make: opts.Make, Status: models.RunSucceeded}}, nil
}

func newTestServer(t *testing.T, runner Runner) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, d, err := store.Open(store.Config{URL: filepath.Join(t.TempDir(), "raw.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(ctx, db, d))

	st := store.New(db, d, 0, nil, nil)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err = st.WriteRecalls(ctx, identity.MapRecalls([]models.RawRecord{
		{"nhtsa_id": "24V001000", "manufacturer": "Tesla, Inc."},
		{"nhtsa_id": "24V002000", "manufacturer": "Ford Motor Company"},
	}, now))
	require.NoError(t, err)
	_, err = st.WriteComplaints(ctx, identity.MapComplaints([]models.RawRecord{
		{"odiNumber": "11565298", "make": "TESLA", "model": "MODEL 3", "modelYear": "2021"},
	}, now))
	require.NoError(t, err)
	require.NoError(t, st.WriteRun(ctx, models.IngestRun{RunID: "r-1", StartedAt: now, Make: "TESLA", Status: models.RunSucceeded}))

	m := metrics.New()
	m.ObserveRun(models.RunSucceeded, float64(now.Unix()))

	defaults := pipeline.Options{Make: "TESLA", Start: "2024-01-01", End: "2024-12-31"}
	s := NewServer(rawlayer.NewRepo(db, d), events.NewHub(nil), testTokens, m, runner, defaults, nil)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, s.Router()
}

func do(r http.Handler, method, path, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthReadyMetrics(t *testing.T) {
	_, r := newTestServer(t, nil)

	w := do(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sqlite", decodeBody(t, w)["dialect"])

	w = do(r, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", decodeBody(t, w)["status"])

	w = do(r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `recallwatch_runs_total{status="succeeded"} 1`)
}

func TestReadRoutes(t *testing.T) {
	_, r := newTestServer(t, nil)

	w := do(r, http.MethodGet, "/recalls?make=tesla", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 1, body["total"])
	assert.Len(t, body["items"], 1)

	w = do(r, http.MethodGet, "/recalls?limit=1&offset=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.EqualValues(t, 2, body["total"])
	assert.EqualValues(t, 1, body["offset"])

	w = do(r, http.MethodGet, "/recalls/nhtsa:24V001000", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nhtsa:24V001000", decodeBody(t, w)["recall_pk"])

	w = do(r, http.MethodGet, "/recalls/nhtsa:missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/complaints", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody(t, w)["total"])

	w = do(r, http.MethodGet, "/complaints/odi:11565298", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2021, decodeBody(t, w)["model_year"])

	w = do(r, http.MethodGet, "/runs", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["items"], 1)

	w = do(r, http.MethodGet, "/runs/r-1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodGet, "/runs/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIngestRequiresOperatorToken(t *testing.T) {
	_, r := newTestServer(t, &gatedRunner{})
	w := do(r, http.MethodPost, "/ingest", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIngestSingleRunAtATime(t *testing.T) {
	runner := &gatedRunner{release: make(chan struct{}), got: make(chan pipeline.Options, 2)}
	_, r := newTestServer(t, runner)
	tok, _, err := testTokens.Sign("ops")
	require.NoError(t, err)

	w := do(r, http.MethodPost, "/ingest", tok, []byte(`{"make":"ford","model":"F-150","model_year":"2022","only":["complaints"]}`))
	require.Equal(t, http.StatusAccepted, w.Code)
	runID, _ := decodeBody(t, w)["run_id"].(string)
	require.NotEmpty(t, runID)

	var opts pipeline.Options
	select {
	case opts = <-runner.got:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not start")
	}
	assert.Equal(t, runID, opts.RunID)
	assert.Equal(t, "ford", opts.Make)
	assert.Equal(t, "2024-01-01", opts.Start)
	assert.Equal(t, []identity.Category{identity.Complaints}, opts.Categories)

	w = do(r, http.MethodPost, "/ingest", tok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, runID, decodeBody(t, w)["run_id"])

	w = do(r, http.MethodGet, "/ingest", "", nil)
	assert.Equal(t, true, decodeBody(t, w)["running"])

	close(runner.release)
	assert.Eventually(t, func() bool {
		w := do(r, http.MethodGet, "/ingest", "", nil)
		return decodeBody(t, w)["running"] == false
	}, 2*time.Second, 10*time.Millisecond)

	w = do(r, http.MethodGet, "/ingest", "", nil)
	last, _ := decodeBody(t, w)["last"].(map[string]any)
	assert.Equal(t, runID, last["run_id"])

	// a new run is accepted once the previous one finished
	w = do(r, http.MethodPost, "/ingest", tok, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestIngestRejectsBadRequests(t *testing.T) {
	_, r := newTestServer(t, &gatedRunner{})
	tok, _, err := testTokens.Sign("ops")
	require.NoError(t, err)

	w := do(r, http.MethodPost, "/ingest", tok, []byte(`{"only":["tires"]}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "unknown category"))

	w = do(r, http.MethodPost, "/ingest", tok, []byte(`{not json`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, body := range []string{
		`{"start":"not-a-date"}`,
		`{"end":"2024/12/31"}`,
		`{"start":"2024-06-01","end":"1999-01-01"}`,
		`{"end":"2023-12-31"}`,
	} {
		w = do(r, http.MethodPost, "/ingest", tok, []byte(body))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestIngestReqApply(t *testing.T) {
	defaults := pipeline.Options{Make: "TESLA", Start: "2024-01-01", End: "2024-12-31"}

	opts, err := ingestReq{Make: "ford", Start: "2023-01-01", End: "2023-06-30"}.apply(defaults)
	require.NoError(t, err)
	assert.Equal(t, "ford", opts.Make)
	assert.Equal(t, "2023-06-30", opts.End)

	_, err = ingestReq{Start: "not-a-date", End: "1999-01-01"}.apply(defaults)
	assert.Error(t, err)
	_, err = ingestReq{Start: "2025-01-01"}.apply(defaults)
	assert.Error(t, err, "start after the default end")
}

func TestOperatorLoginRoute(t *testing.T) {
	s, r := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/auth/login", "", []byte(`{}`)).Code)

	hash, err := auth.HashPassword("pw-123456")
	require.NoError(t, err)
	s.Login = auth.NewHandler("ops", hash, testTokens)
	r = s.Router()

	w := do(r, http.MethodPost, "/auth/login", "", []byte(`{"subject":"ops","password":"pw-123456"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tok, _ := decodeBody(t, w)["token"].(string)
	claims, err := testTokens.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
}

func TestIngestStatusReportsLastEvent(t *testing.T) {
	s, r := newTestServer(t, nil)

	_, ok := decodeBody(t, do(r, http.MethodGet, "/ingest", "", nil))["last_event"]
	assert.False(t, ok)

	s.Hub.Publish(events.Event{Type: events.RunFinished, RunID: "r-9", Status: models.RunSucceeded})
	body := decodeBody(t, do(r, http.MethodGet, "/ingest", "", nil))
	ev, _ := body["last_event"].(map[string]any)
	assert.Equal(t, events.RunFinished, ev["type"])
	assert.Equal(t, "r-9", ev["run_id"])
}
