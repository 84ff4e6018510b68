// Package eligibility provides a client for the remote eligibility API
// used during consultation: an OAuth-style token endpoint plus a batch
// identifier query endpoint.
package eligibility

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/leadops/leadbase-cli/internal/normalize"
	"github.com/leadops/leadbase-cli/internal/resilience"
)

// Credentials is one client-credentials pair accepted by the token endpoint.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Client defines the eligibility API operations.
type Client interface {
	// Token exchanges credentials for a bearer token.
	Token(ctx context.Context, creds Credentials) (string, error)
	// Query submits a batch of identifiers and returns the subset the
	// remote side reports as matched.
	Query(ctx context.Context, token string, ids []string) (map[string]struct{}, error)
}

// Option configures the eligibility client.
type Option func(*httpClient)

// WithTokenURL sets a custom token endpoint (for testing).
func WithTokenURL(u string) Option {
	return func(c *httpClient) {
		c.tokenURL = u
	}
}

// WithQueryURL sets a custom query endpoint (for testing).
func WithQueryURL(u string) Option {
	return func(c *httpClient) {
		c.queryURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps the request rate against the remote API.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

type httpClient struct {
	tokenURL string
	queryURL string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient creates an eligibility API client.
func NewClient(tokenURL, queryURL string, opts ...Option) Client {
	c := &httpClient{
		tokenURL: tokenURL,
		queryURL: queryURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *httpClient) Token(ctx context.Context, creds Credentials) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "eligibility: rate limit wait")
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "eligibility: create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	body, statusCode, err := c.do(req)
	if err != nil {
		return "", eris.Wrap(err, "eligibility: token request failed")
	}
	if statusCode != http.StatusOK {
		return "", statusError("eligibility: token status %d: %s", statusCode, body)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", eris.Wrap(err, "eligibility: unmarshal token response")
	}
	if tok.AccessToken == "" {
		return "", eris.New("eligibility: token response missing access_token")
	}
	return tok.AccessToken, nil
}

func (c *httpClient) Query(ctx context.Context, token string, ids []string) (map[string]struct{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "eligibility: rate limit wait")
	}

	payload, err := json.Marshal(map[string][]string{"CNPJ": ids})
	if err != nil {
		return nil, eris.Wrap(err, "eligibility: marshal query payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.queryURL,
		bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "eligibility: create query request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	body, statusCode, err := c.do(req)
	if err != nil {
		return nil, eris.Wrap(err, "eligibility: query request failed")
	}
	if statusCode != http.StatusOK {
		return nil, statusError("eligibility: query status %d: %s", statusCode, body)
	}

	return parseMatched(body)
}

// statusError builds the error for a non-200 response, marking quota
// and server-side statuses as retryable.
func statusError(format string, statusCode int, body []byte) error {
	err := eris.Errorf(format, statusCode, string(body))
	if resilience.IsTransientHTTPStatus(statusCode) {
		return resilience.NewTransientError(err, statusCode)
	}
	return err
}

func (c *httpClient) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "eligibility: read response body")
	}
	return body, resp.StatusCode, nil
}

// parseMatched scans the response object for the first array-valued field
// whose name contains "cnpj", in any casing. The remote side has shipped
// several envelope shapes over time; the identifier list is the only part
// that is stable.
func parseMatched(body []byte) (map[string]struct{}, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, eris.Wrap(err, "eligibility: unmarshal query response")
	}

	for key, raw := range envelope {
		if !strings.Contains(strings.ToLower(key), "cnpj") {
			continue
		}
		var values []any
		if err := json.Unmarshal(raw, &values); err != nil {
			continue
		}
		matched := make(map[string]struct{}, len(values))
		for _, v := range values {
			switch t := v.(type) {
			case string:
				matched[normalize.Pad14(t)] = struct{}{}
			case float64:
				matched[normalize.Pad14(strconv.FormatFloat(t, 'f', -1, 64))] = struct{}{}
			}
		}
		return matched, nil
	}

	return nil, eris.New("eligibility: query response has no identifier list")
}
