package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"recallwatch/internal/metrics"
)

// getJSON issues one GET and decodes the body into out using json.Number for
// numbers. Non-2xx and network failures come back as *TransportError.
func getJSON(ctx context.Context, client *http.Client, endpoint string, params url.Values, headers http.Header, m *metrics.Metrics, api string, out any) error {
	u := endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("fetch: build request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		m.ObserveRequest(api, "error")
		return &TransportError{URL: endpoint, Params: params, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
		m.ObserveRequest(api, fmt.Sprintf("%dxx", resp.StatusCode/100))
		return &TransportError{
			URL:        endpoint,
			Params:     params,
			StatusCode: resp.StatusCode,
			Body:       truncate([]byte(strings.TrimSpace(string(b)))),
		}
	}
	m.ObserveRequest(api, "ok")

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &TransportError{URL: endpoint, Params: params, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

func baseHeaders(userAgent string) http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	ua := strings.TrimSpace(userAgent)
	if ua == "" {
		ua = DefaultUserAgent
	}
	h.Set("User-Agent", ua)
	return h
}
