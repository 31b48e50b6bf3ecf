package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNHTSA(t *testing.T, body string, status int, seen *http.Request) *NHTSAClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = *r
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	log, _ := test.NewNullLogger()
	return NewNHTSAClient(NHTSAConfig{BaseURL: srv.URL}, log, nil)
}

func TestFetchByVehicleQuery(t *testing.T) {
	var seen http.Request
	c := newTestNHTSA(t, `{"count":1,"message":"ok","results":[{"odiNumber":11565298}]}`, http.StatusOK, &seen)

	recs, err := c.FetchByVehicle(context.Background(), "TESLA", "MODEL 3", "2021")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, json.Number("11565298"), recs[0]["odiNumber"])

	assert.Equal(t, "/complaints/complaintsByVehicle", seen.URL.Path)
	q := seen.URL.Query()
	assert.Equal(t, "TESLA", q.Get("make"))
	assert.Equal(t, "MODEL 3", q.Get("model"))
	assert.Equal(t, "2021", q.Get("modelYear"))
	assert.NotEmpty(t, seen.Header.Get("User-Agent"))
}

func TestFetchByVehicleResultKeyVariants(t *testing.T) {
	for _, body := range []string{
		`{"results":[{"a":1},{"a":2}]}`,
		`{"Results":[{"a":1},{"a":2}]}`,
		`{"RESULTS":[{"a":1},"junk",{"a":2}]}`,
	} {
		c := newTestNHTSA(t, body, http.StatusOK, nil)
		recs, err := c.FetchByVehicle(context.Background(), "m", "m", "2020")
		require.NoError(t, err, body)
		assert.Len(t, recs, 2, body)
	}
}

func TestFetchByVehicleMissingOrMalformedResults(t *testing.T) {
	for _, body := range []string{`{"count":0}`, `{"results":"none"}`, `[1,2,3]`, `null`} {
		c := newTestNHTSA(t, body, http.StatusOK, nil)
		recs, err := c.FetchByVehicle(context.Background(), "m", "m", "2020")
		require.NoError(t, err, body)
		assert.NotNil(t, recs, body)
		assert.Empty(t, recs, body)
	}
}

func TestFetchByVehicleTransportError(t *testing.T) {
	c := newTestNHTSA(t, `{"message":"Bad Request"}`, http.StatusBadRequest, nil)
	_, err := c.FetchByVehicle(context.Background(), "m", "m", "x")
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
	assert.Equal(t, "x", te.Params.Get("modelYear"))
	assert.Contains(t, te.Body, "Bad Request")
}
