// Package catalog is the HTTP client for the opportunity catalog: the
// paginated listing API and the public detail pages. All requests share one
// rate gate, rotate user agents, retry transient failures, and flow through
// a circuit breaker that trips on sustained connectivity loss.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/solidarity-tools/harvest-cli/internal/resilience"
)

// maxBodyBytes caps how much of a response is read. Detail pages run tens of
// kilobytes; anything near this limit is not a page we can use.
const maxBodyBytes = 10 << 20

// Options configures a Client.
type Options struct {
	BaseURL           string
	DetailURLTemplate string
	Timeout           time.Duration
	RateInterval      time.Duration
	Retry             resilience.RetryConfig
	FailureThreshold  int
	UserAgents        []string
}

// Client talks to the catalog. Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.CircuitBreaker
	retry      resilience.RetryConfig
	baseURL    string
	detailTmpl string
	userAgents []string
	uaCounter  atomic.Uint64
	log        *zap.Logger
}

// NewClient creates a catalog client.
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.RateInterval == 0 {
		opts.RateInterval = 350 * time.Millisecond
	}
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = []string{"harvest-cli/1.0"}
	}

	log := zap.L().With(zap.String("component", "catalog"))

	retry := opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("catalog_fetch")
	}

	cbCfg := resilience.FromCircuitConfig(opts.FailureThreshold)
	cbCfg.ShouldTrip = resilience.IsConnectivityLoss
	cbCfg.OnStateChange = func(from, to resilience.CircuitState) {
		log.Warn("circuit breaker state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	breaker := resilience.NewCircuitBreaker(cbCfg)

	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		limiter:    rate.NewLimiter(rate.Every(opts.RateInterval), 1),
		breaker:    breaker,
		retry:      retry,
		baseURL:    opts.BaseURL,
		detailTmpl: opts.DetailURLTemplate,
		userAgents: opts.UserAgents,
		log:        log,
	}
}

// SearchPage fetches one listing page starting at the given offset. Listing
// rows without an identifier are skipped.
func (c *Client) SearchPage(ctx context.Context, offset, size int) ([]Item, error) {
	body, err := c.get(ctx, c.searchURL(offset, size))
	if err != nil {
		return nil, err
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, eris.Wrapf(err, "catalog: decode listing page at offset %d", offset)
	}

	items := make([]Item, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		opid := string(hit.Source.Opid)
		if opid == "" {
			c.log.Warn("listing row without opid, skipping",
				zap.Int("offset", offset),
				zap.String("title", hit.Source.Title),
			)
			continue
		}
		items = append(items, Item{Opid: opid, Title: hit.Source.Title})
	}
	return items, nil
}

// FetchDetail fetches the raw detail page for one opportunity.
func (c *Client) FetchDetail(ctx context.Context, opid string) ([]byte, error) {
	return c.get(ctx, c.DetailURL(opid))
}

// DetailURL returns the public detail page URL for an opid.
func (c *Client) DetailURL(opid string) string {
	return fmt.Sprintf(c.detailTmpl, url.PathEscape(opid))
}

// searchURL builds a listing page URL: the catalog's standing filters plus
// the pagination window.
func (c *Client) searchURL(offset, size int) string {
	today := time.Now().UTC().Format("2006-01-02")

	q := url.Values{}
	q.Set("type", "Opportunity")
	q.Set("filters[status]", "open")
	q.Set("filters[date_end][operator]", ">=")
	q.Set("filters[date_end][value]", today)
	q.Set("filters[date_end][type]", "must")
	for i := 0; i < 8; i++ {
		q.Set(fmt.Sprintf("filters[funding_programme][id][%d]", i), strconv.Itoa(i+1))
	}
	q.Set("filters[date_application_end][operator]", ">=")
	q.Set("filters[date_application_end][value]", today)
	q.Set("filters[date_application_end][type]", "must")
	q.Set("filters[date_application_end][group]", "deadline")
	q.Set("filters[has_no_deadline][value]", "true")
	q.Set("filters[has_no_deadline][type]", "must")
	q.Set("filters[has_no_deadline][group]", "deadline")
	q.Set("fields[0]", "opid")
	q.Set("fields[1]", "title")
	q.Set("sort[created]", "desc")
	q.Set("from", strconv.Itoa(offset))
	q.Set("size", strconv.Itoa(size))

	return c.baseURL + "?" + q.Encode()
}

// get runs one rate-gated, breaker-guarded GET with retries. Attempts for a
// single call are strictly ordered; an open breaker surfaces immediately as
// ErrCircuitOpen since it never counts as transient.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
			return c.fetchOnce(ctx, rawURL)
		})
	})
}

func (c *Client) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "catalog: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: build request for %s", rawURL)
	}
	req.Header.Set("User-Agent", c.nextUserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "catalog: request %s", rawURL), 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		httpErr := eris.Errorf("catalog: http %d from %s", resp.StatusCode, rawURL)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			c.log.Warn("transient response from catalog",
				zap.Int("status", resp.StatusCode),
				zap.String("url", rawURL),
			)
			return nil, resilience.NewTransientError(httpErr, resp.StatusCode)
		}
		return nil, httpErr
	}

	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: detect charset for %s", rawURL)
	}
	body, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "catalog: read body from %s", rawURL), 0)
	}
	return body, nil
}

// nextUserAgent rotates through the configured agents round-robin.
func (c *Client) nextUserAgent() string {
	n := c.uaCounter.Add(1)
	return c.userAgents[int((n-1)%uint64(len(c.userAgents)))]
}
