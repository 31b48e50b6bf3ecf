package fetch

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"recallwatch/internal/logging"
	"recallwatch/internal/metrics"
	"recallwatch/pkg/models"
)

const DefaultNHTSABaseURL = "https://api.nhtsa.gov"

// resultKeys are the casings the complaints endpoint has used for its array.
var resultKeys = []string{"results", "Results", "RESULTS"}

type NHTSAConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// NHTSAClient queries the vehicle-indexed complaints API.
type NHTSAClient struct {
	BaseURL string

	client  *http.Client
	headers http.Header
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

func NewNHTSAClient(cfg NHTSAConfig, log logrus.FieldLogger, m *metrics.Metrics) *NHTSAClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultNHTSABaseURL
	}
	return &NHTSAClient{
		BaseURL: base,
		client:  NewHTTPClient(cfg.Timeout),
		headers: baseHeaders(cfg.UserAgent),
		log:     logging.OrDiscard(log),
		metrics: m,
	}
}

func (n *NHTSAClient) SetHTTPClient(c *http.Client) { n.client = c }

// FetchByVehicle returns every complaint filed against make/model/year. The
// endpoint answers in a single response; a missing or non-array results
// field yields an empty slice.
func (n *NHTSAClient) FetchByVehicle(ctx context.Context, mk, model, year string) ([]models.RawRecord, error) {
	endpoint := n.BaseURL + "/complaints/complaintsByVehicle"
	params := url.Values{}
	params.Set("make", mk)
	params.Set("model", model)
	params.Set("modelYear", year)

	log := n.log.WithFields(logrus.Fields{"make": mk, "model": model, "model_year": year})
	log.Info("fetching complaints")

	var body any
	if err := getJSON(ctx, n.client, endpoint, params, n.headers, n.metrics, "nhtsa", &body); err != nil {
		return nil, err
	}

	recs := extractResults(body)
	if recs == nil {
		log.Warn("complaints response has no results array")
		return []models.RawRecord{}, nil
	}
	log.WithField("records", len(recs)).Info("fetch finished")
	return recs, nil
}

// extractResults pulls the results array out of a decoded response. nil when
// the field is missing or not an array; non-object items are skipped.
func extractResults(body any) []models.RawRecord {
	obj, ok := body.(map[string]any)
	if !ok {
		return nil
	}
	for _, k := range resultKeys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		arr, ok := v.([]any)
		if !ok {
			return nil
		}
		out := make([]models.RawRecord, 0, len(arr))
		for _, it := range arr {
			if m, ok := it.(map[string]any); ok {
				out = append(out, models.RawRecord(m))
			}
		}
		return out
	}
	return nil
}
