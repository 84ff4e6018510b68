// Package report fetches dialer call reports. Payloads are passed through
// opaque; the caller decides what to do with them.
package report

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the dialer reporting operations.
type Client interface {
	// CallDetail fetches the per-call detail report for one day.
	CallDetail(ctx context.Context, date string) (json.RawMessage, error)
	// OperatorTimes fetches per-operator time aggregates for one day.
	OperatorTimes(ctx context.Context, date string) (json.RawMessage, error)
}

// Option configures the report client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	callDetailURL   string
	operatorTimeURL string
	token           string
	http            *http.Client
}

// NewClient creates a dialer report client.
func NewClient(callDetailURL, operatorTimeURL, token string, opts ...Option) Client {
	c := &httpClient{
		callDetailURL:   callDetailURL,
		operatorTimeURL: operatorTimeURL,
		token:           token,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) CallDetail(ctx context.Context, date string) (json.RawMessage, error) {
	return c.get(ctx, c.callDetailURL, date)
}

func (c *httpClient) OperatorTimes(ctx context.Context, date string) (json.RawMessage, error) {
	return c.get(ctx, c.operatorTimeURL, date)
}

func (c *httpClient) get(ctx context.Context, baseURL, date string) (json.RawMessage, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, eris.Wrap(err, "report: parse endpoint url")
	}
	q := u.Query()
	q.Set("date", date)
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "report: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "report: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "report: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("report: status %d: %s", resp.StatusCode, string(body))
	}

	// The dialer answers an empty day with a plain-text sentinel instead
	// of an empty list.
	if isNoRecords(body) {
		return json.RawMessage("[]"), nil
	}
	if !json.Valid(body) {
		return nil, eris.New("report: response is not valid JSON")
	}
	return json.RawMessage(body), nil
}

func isNoRecords(body []byte) bool {
	s := strings.ToLower(strings.TrimSpace(string(body)))
	s = strings.Trim(s, `"`)
	return s == "no records" || s == "nenhum registro encontrado"
}
