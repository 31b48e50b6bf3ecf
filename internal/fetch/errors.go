package fetch

import (
	"fmt"
	"net/url"
)

// maxErrorBody bounds how much of a failed response body is kept.
const maxErrorBody = 512

// TransportError is returned when a request to an upstream API fails, either
// with a non-2xx status or at the network level (Err set, StatusCode 0).
// It is always fatal to the fetch in progress.
type TransportError struct {
	URL        string
	Params     url.Values
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch: GET %s (params %s): %v", e.URL, e.Params.Encode(), e.Err)
	}
	return fmt.Sprintf("fetch: GET %s (params %s): status %d: %s", e.URL, e.Params.Encode(), e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "...(truncated)"
	}
	return string(b)
}
