package dataapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/picklehealth/pickle-map/internal/domain"
	"github.com/picklehealth/pickle-map/internal/observability"
)

const maxBodyBytes = 32 << 20

// ErrNotFound is returned for a 404 from the data service.
var ErrNotFound = domain.ErrNotFound

// ErrResponseTooLarge is returned when a body exceeds the transport's limit.
var ErrResponseTooLarge = errors.New("response too large")

// Transport fetches the raw JSON body for a data service path.
type Transport interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// StatusError is a non-2xx response.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("data service %s: status %d: %s", e.Path, e.StatusCode, strings.TrimSpace(e.Body))
}

// Is lets a 404 match ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// HTTPTransport fetches paths from the data service over HTTP.
type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
	maxBody    int64
}

// NewHTTPTransport creates a transport rooted at baseURL.
func NewHTTPTransport(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
		maxBody: maxBodyBytes,
	}
}

func (t *HTTPTransport) Fetch(ctx context.Context, path string) ([]byte, error) {
	start := time.Now()
	body, err := t.do(ctx, path)
	t.metrics.FetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		t.metrics.FetchRequests.WithLabelValues("error").Inc()
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode >= http.StatusInternalServerError {
			t.logger.Warn("data fetch failed", "path", path, "error", err)
		}
		return nil, err
	}
	t.metrics.FetchRequests.WithLabelValues("success").Inc()
	return body, nil
}

func (t *HTTPTransport) do(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if int64(len(body)) > t.maxBody {
		return nil, fmt.Errorf("read %s: %w (limit %d bytes)", path, ErrResponseTooLarge, t.maxBody)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Path: path, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
