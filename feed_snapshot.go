package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"transit-dashboard/internal/logging"
)

// SnapshotSource produces one full vehicle snapshot per call.
type SnapshotSource interface {
	Fetch(ctx context.Context) (Snapshot, error)
}

// vehiclesPath is where a snapshot backend serves its vehicle list.
const vehiclesPath = "/api/vehicles"

// maxBodySize caps every upstream response body.
const maxBodySize = 25 * 1024 * 1024

// BackendSource polls a snapshot backend's /api/vehicles endpoint.
type BackendSource struct {
	url        string
	httpClient *http.Client
}

func NewBackendSource(baseURL string, timeout time.Duration) *BackendSource {
	return &BackendSource{
		url:        strings.TrimRight(baseURL, "/") + vehiclesPath,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *BackendSource) Fetch(ctx context.Context) (Snapshot, error) {
	body, err := fetchBody(ctx, s.httpClient, s.url, "application/json", "backend")
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return Snapshot{}, parseError(err)
	}
	return snap, nil
}

// fetchBody GETs url and returns the body of a 2xx response. Failures are
// FetchErrors.
func fetchBody(ctx context.Context, client *http.Client, url, accept, component string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, networkError(err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", component)),
		"http_response_body")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, networkError(fmt.Errorf("read response body: %w", err))
	}
	if len(body) > maxBodySize {
		return nil, parseError(fmt.Errorf("response exceeds size limit of %d bytes", maxBodySize))
	}
	return body, nil
}
