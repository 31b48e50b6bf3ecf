package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"recallwatch/internal/logging"
	"recallwatch/internal/metrics"
	"recallwatch/pkg/models"
)

const (
	DefaultSocrataBaseURL = "https://data.transportation.gov/resource"
	DefaultPageSize       = 1000
	DefaultPageDelay      = 200 * time.Millisecond
)

// SocrataConfig configures a SocrataClient. Zero fields take the defaults.
type SocrataConfig struct {
	BaseURL   string
	AppToken  string
	UserAgent string
	PageSize  int
	PageDelay time.Duration
	Timeout   time.Duration
}

// SocrataClient reads collections from a Socrata (SODA) tabular API.
type SocrataClient struct {
	BaseURL  string
	PageSize int

	client  *http.Client
	headers http.Header
	limiter *rate.Limiter
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

func NewSocrataClient(cfg SocrataConfig, log logrus.FieldLogger, m *metrics.Metrics) *SocrataClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultSocrataBaseURL
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	delay := cfg.PageDelay
	if delay <= 0 {
		delay = DefaultPageDelay
	}

	h := baseHeaders(cfg.UserAgent)
	if tok := strings.TrimSpace(cfg.AppToken); tok != "" {
		h.Set("X-App-Token", tok)
	}

	return &SocrataClient{
		BaseURL:  base,
		PageSize: pageSize,
		client:   NewHTTPClient(cfg.Timeout),
		headers:  h,
		limiter:  rate.NewLimiter(rate.Every(delay), 1),
		log:      logging.OrDiscard(log),
		metrics:  m,
	}
}

// SetHTTPClient swaps the underlying client (tests, custom transports).
func (s *SocrataClient) SetHTTPClient(c *http.Client) { s.client = c }

// FetchPaginated requests successive pages of collectionID at increasing
// offsets until a page comes back empty, or until maxPages pages have been
// read when maxPages > 0. Records are returned in source order.
//
// Requests are paced by the client's limiter; the first page goes out
// immediately. Any failed page aborts the whole fetch.
func (s *SocrataClient) FetchPaginated(ctx context.Context, collectionID, where string, pageSize, maxPages int) ([]models.RawRecord, error) {
	if pageSize <= 0 {
		pageSize = s.PageSize
	}
	endpoint := fmt.Sprintf("%s/%s.json", s.BaseURL, url.PathEscape(collectionID))
	log := s.log.WithFields(logrus.Fields{"dataset": collectionID})

	var all []models.RawRecord
	for page, offset := 0, 0; maxPages <= 0 || page < maxPages; page, offset = page+1, offset+pageSize {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("fetch: wait for rate limiter: %w", err)
		}

		params := url.Values{}
		params.Set("$limit", strconv.Itoa(pageSize))
		params.Set("$offset", strconv.Itoa(offset))
		if where != "" {
			params.Set("$where", where)
		}

		log.WithField("offset", offset).Info("fetching page")

		var rows []models.RawRecord
		if err := getJSON(ctx, s.client, endpoint, params, s.headers, s.metrics, "socrata", &rows); err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			log.WithField("offset", offset).Debug("empty page, stopping pagination")
			break
		}
		all = append(all, rows...)
	}

	log.WithField("records", len(all)).Info("fetch finished")
	return all, nil
}

// Probe reads a single record of collectionID so callers can see which
// column names the current dataset revision uses. nil when the collection is
// empty.
func (s *SocrataClient) Probe(ctx context.Context, collectionID string) (models.RawRecord, error) {
	recs, err := s.FetchPaginated(ctx, collectionID, "", 1, 1)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", collectionID, err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

// RecallQuery narrows a recall extraction. Empty fields are not filtered on.
type RecallQuery struct {
	Make  string
	Start string // YYYY-MM-DD, inclusive
	End   string // YYYY-MM-DD, inclusive
}

// FetchRecalls probes the recalls collection for its make and date column
// names, builds a server-side filter from whatever it found, and fetches
// every matching page.
func (s *SocrataClient) FetchRecalls(ctx context.Context, collectionID string, q RecallQuery) ([]models.RawRecord, error) {
	probe, err := s.Probe(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	makeField := DetectField(probe, RecallMakeColumns...)
	dateField := DetectField(probe, RecallDateColumns...)
	where := BuildRecallFilter(makeField, q.Make, dateField, q.Start, q.End)

	s.log.WithFields(logrus.Fields{
		"dataset":    collectionID,
		"make_field": makeField,
		"date_field": dateField,
		"where":      where,
	}).Info("recall filter")

	return s.FetchPaginated(ctx, collectionID, where, s.PageSize, 0)
}
