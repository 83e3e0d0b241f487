// Package dart wraps the OpenDART single-account financial statements API
// (opendart.fss.or.kr) used to pull fiscal-year line items for listed
// companies.
package dart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://opendart.fss.or.kr/api"

// ErrNoData is returned when DART has no filing for the requested company
// and year (API status 013).
var ErrNoData = errors.New("no financial data")

// reportCodeAnnual selects the annual business report (사업보고서).
const reportCodeAnnual = "11011"

// accountNames maps DART's Korean account names to the line-item keys the
// rest of the system uses.
var accountNames = map[string]string{
	"매출액":   "revenue",
	"영업이익":  "operating_profit",
	"당기순이익": "net_income",
	"자산총계":  "total_assets",
	"부채총계":  "total_liabilities",
	"자본총계":  "total_equity",
	"유동자산":  "current_assets",
	"유동부채":  "current_liabilities",
}

// Account is one mapped line item with current and prior fiscal-year amounts
// in KRW. Nil means the filing did not carry the amount.
type Account struct {
	Current *float64
	Prior   *float64
}

// Client calls the OpenDART API with request rate limiting.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the production endpoint (tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithRateLimit overrides the default request rate.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// NewClient creates a DART client. The default rate limit stays well under
// DART's daily quota.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// statementsResponse mirrors the fnlttSinglAcnt.json payload.
type statementsResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	List    []struct {
		AccountName   string `json:"account_nm"`
		CurrentAmount string `json:"thstrm_amount"`
		PriorAmount   string `json:"frmtrm_amount"`
	} `json:"list"`
}

// Statements returns the consolidated annual line items for the company
// identified by its 8-digit registry code, keyed by normalized account name.
func (c *Client) Statements(ctx context.Context, registryCode string, fiscalYear int) (map[string]Account, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("crtfc_key", c.apiKey)
	params.Set("corp_code", registryCode)
	params.Set("bsns_year", strconv.Itoa(fiscalYear))
	params.Set("reprt_code", reportCodeAnnual)
	params.Set("fs_div", "CFS")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/fnlttSinglAcnt.json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating dart request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dart request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dart: unexpected status %d", resp.StatusCode)
	}

	var result statementsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding dart response: %w", err)
	}
	switch result.Status {
	case "000":
	case "013":
		return nil, fmt.Errorf("%w for %s/%d", ErrNoData, registryCode, fiscalYear)
	default:
		return nil, fmt.Errorf("dart: status %s: %s", result.Status, result.Message)
	}

	accounts := make(map[string]Account)
	for _, item := range result.List {
		key, ok := accountNames[strings.TrimSpace(item.AccountName)]
		if !ok {
			continue
		}
		if _, dup := accounts[key]; dup {
			continue // first row wins when a name repeats across statements
		}
		accounts[key] = Account{
			Current: parseAmount(item.CurrentAmount),
			Prior:   parseAmount(item.PriorAmount),
		}
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("%w: no mapped accounts for %s/%d", ErrNoData, registryCode, fiscalYear)
	}
	return accounts, nil
}

// parseAmount converts DART's comma-grouped amount strings to won. "-" and
// empty strings mean the amount was not reported.
func parseAmount(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || s == "-" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
