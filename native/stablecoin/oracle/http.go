package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

const defaultLatestPath = "/v1/quotes/latest"

// HTTPSource polls a price service returning the latest signed quote as JSON.
// Requests are throttled by a token bucket so a burst of transitions cannot
// exhaust the provider's quota.
type HTTPSource struct {
	client   HTTPDoer
	endpoint string
	apiKey   string
	limiter  *rate.Limiter
}

// NewInstrumentedClient returns an http.Client whose requests carry trace
// context and produce client spans.
func NewInstrumentedClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// NewHTTPSource builds a source against endpoint. A nil client uses an
// instrumented client with a 10s timeout; perSecond <= 0 disables throttling.
func NewHTTPSource(client HTTPDoer, endpoint, apiKey string, perSecond float64) *HTTPSource {
	if client == nil {
		client = NewInstrumentedClient(10 * time.Second)
	}
	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &HTTPSource{
		client:   client,
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		apiKey:   strings.TrimSpace(apiKey),
		limiter:  rate.NewLimiter(limit, burst),
	}
}

func (s *HTTPSource) Latest(ctx context.Context, feedID string) (SignedQuote, error) {
	if s == nil || s.endpoint == "" {
		return SignedQuote{}, fmt.Errorf("http source not configured")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return SignedQuote{}, fmt.Errorf("http source: rate limit: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+defaultLatestPath, nil)
	if err != nil {
		return SignedQuote{}, err
	}
	values := url.Values{}
	values.Set("feed_id", feedID)
	req.URL.RawQuery = values.Encode()
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return SignedQuote{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return SignedQuote{}, fmt.Errorf("%w: %s", ErrQuoteNotFound, feedID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return SignedQuote{}, fmt.Errorf("http source: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var q SignedQuote
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&q); err != nil {
		return SignedQuote{}, fmt.Errorf("http source: decode: %w", err)
	}
	return q, nil
}
