// Package airtable provides a client for the Airtable REST API, used to sync
// the clinic protocol catalog.
package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/connectingdocs/match-engine/internal/resilience"
)

// Client defines the Airtable operations used by catalog sync.
type Client interface {
	// ListRecords returns every record of a table, following pagination.
	ListRecords(ctx context.Context, table string, opts ...ListOption) ([]Record, error)
}

// Record is one Airtable row.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

// ListOption configures a list request.
type ListOption func(*listOpts)

type listOpts struct {
	view    string
	formula string
}

// WithView lists records in the order and filter of a named view.
func WithView(view string) ListOption {
	return func(o *listOpts) { o.view = view }
}

// WithFormula filters records with an Airtable formula.
func WithFormula(formula string) ListOption {
	return func(o *listOpts) { o.formula = formula }
}

// Option configures the Airtable client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit caps requests per second. Airtable allows 5 per base.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.retry = cfg }
}

type httpClient struct {
	apiKey  string
	baseID  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates an Airtable client for one base.
func NewClient(apiKey, baseID string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseID:  baseID,
		baseURL: "https://api.airtable.com/v0",
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(5), 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("airtable", "list_records")
	}
	return c
}

func (c *httpClient) ListRecords(ctx context.Context, table string, opts ...ListOption) ([]Record, error) {
	o := &listOpts{}
	for _, opt := range opts {
		opt(o)
	}

	var records []Record
	offset := ""
	for {
		page, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*listResponse, error) {
			return c.listPage(ctx, table, o, offset)
		})
		if err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

func (c *httpClient) listPage(ctx context.Context, table string, o *listOpts, offset string) (*listResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "airtable: rate limit wait")
	}

	q := url.Values{}
	q.Set("pageSize", "100")
	if o.view != "" {
		q.Set("view", o.view)
	}
	if o.formula != "" {
		q.Set("filterByFormula", o.formula)
	}
	if offset != "" {
		q.Set("offset", offset)
	}
	endpoint := fmt.Sprintf("%s/%s/%s?%s", c.baseURL, url.PathEscape(c.baseID), url.PathEscape(table), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "airtable: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "airtable: list request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "airtable: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("airtable: list %s status %d: %s", table, resp.StatusCode, truncate(body, 200))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var page listResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, eris.Wrap(err, "airtable: decode response")
	}
	return &page, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
