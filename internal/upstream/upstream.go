// Package upstream holds the typed HTTP clients for the collaborators the
// feed depends on: the friend graph, the post store and the identity service.
//
// Each client enforces its own per-call timeout and maps transport and status
// failures onto a small error taxonomy, so the coordinator never has to look
// at an *http.Response.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lmcintyre/gather/internal/metrics"
)

var (
	// ErrNotFound means the collaborator has no such resource.
	ErrNotFound = errors.New("not found upstream")

	// ErrUnavailable means the collaborator could not be reached or
	// answered with a server error.
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrTimeout means the per-call budget ran out before an answer came.
	ErrTimeout = errors.New("upstream timed out")

	// ErrUnauthorized means the collaborator rejected the credential.
	ErrUnauthorized = errors.New("upstream rejected credentials")
)

// client is the plumbing shared by every collaborator adapter.
type client struct {
	name    string // collaborator name, for logs and metrics
	base    string
	timeout time.Duration
	http    *http.Client
}

func newClient(name, baseURL string, timeout time.Duration) client {
	return client{
		name:    name,
		base:    strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{},
	}
}

// getJSON issues a GET under the client's timeout and decodes the body into
// out. Failures come back as one of the package's sentinel errors.
func (c client) getJSON(ctx context.Context, path string, query url.Values, header http.Header, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("error building request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.UpstreamLatency.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	if err != nil {
		err = c.mapTransportErr(err)
		metrics.UpstreamErrors.WithLabelValues(c.name, errKind(err)).Inc()
		return err
	}
	defer resp.Body.Close()

	if err := c.mapStatus(resp.StatusCode); err != nil {
		metrics.UpstreamErrors.WithLabelValues(c.name, errKind(err)).Inc()
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding %s response: %w", c.name, err)
	}

	return nil
}

func (c client) mapTransportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", ErrTimeout, c.name, c.timeout)
	}
	if errors.Is(err, context.Canceled) {
		// The request's own deadline or cancellation propagated down.
		return fmt.Errorf("%w: %s call canceled", ErrTimeout, c.name)
	}

	return fmt.Errorf("%w: %s: %s", ErrUnavailable, c.name, err)
}

func (c client) mapStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, c.name)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, c.name)
	case code >= 500:
		return fmt.Errorf("%w: %s returned %d", ErrUnavailable, c.name, code)
	default:
		return fmt.Errorf("unexpected status code from %s: %d", c.name, code)
	}
}

func errKind(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}
