package ephemeris

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/orrery/internal/astro"
)

// maxBodyBytes caps how much of a positions response is read.
const maxBodyBytes = 1 << 20

// HTTPProvider fetches positions from GET {endpoint}/v1/positions?date=YYYY-MM-DD.
type HTTPProvider struct {
	endpoint   string
	httpClient *http.Client
	logger     log.Logger
}

// NewHTTPProvider creates a provider for endpoint. timeout bounds each
// request; callers can tighten it further through ctx.
func NewHTTPProvider(endpoint string, timeout time.Duration, logger log.Logger) *HTTPProvider {
	if logger == nil {
		logger = log.Nop()
	}
	return &HTTPProvider{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// Positions returns the snapshot for date's calendar day.
func (p *HTTPProvider) Positions(ctx context.Context, date time.Time) (*astro.Snapshot, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	u = u.JoinPath("v1", "positions")

	day := dayOf(date)
	q := u.Query()
	q.Set("date", day.Format(dateLayout))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ephemeris request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w for %s", ErrNoData, day.Format(dateLayout))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("ephemeris returned %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Planets map[string]rawPosition `json:"planets"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	if len(payload.Planets) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoData, day.Format(dateLayout))
	}

	snap, dropped := buildSnapshot(day, payload.Planets)
	if len(dropped) > 0 {
		sort.Strings(dropped)
		p.logger.Warn(ctx, "dropped unusable ephemeris entries", "date", day.Format(dateLayout), "bodies", dropped)
	}
	return snap, nil
}
