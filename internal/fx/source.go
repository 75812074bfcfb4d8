package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPSource fetches daily rates from the central-bank style rate endpoint.
// The endpoint publishes RUB-anchored rates per calendar date and returns 404
// for non-business days.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSource constructs a source client. A zero timeout falls back to a
// short default: conversions must degrade rather than hang on a slow provider.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSource{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type ratePayload struct {
	Date  string            `json:"date"`
	Rates map[string]string `json:"rates"`
}

// FetchRates retrieves the rate set published for asOf. A 404 response maps to
// an empty set with a nil error so the converter walks back a day.
func (s *HTTPSource) FetchRates(ctx context.Context, asOf time.Time) (RateSet, error) {
	url := fmt.Sprintf("%s/rates/%s", s.baseURL, DateKey(asOf).Format("2006-01-02"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return RateSet{}, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return RateSet{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return RateSet{}, nil
	}
	if resp.StatusCode >= 400 {
		return RateSet{}, fmt.Errorf("fx: rate source returned status %d", resp.StatusCode)
	}

	var payload ratePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return RateSet{}, fmt.Errorf("fx: decode rate payload: %w", err)
	}

	set := RateSet{Date: DateKey(asOf), Rates: make(map[Currency]decimal.Decimal, len(payload.Rates))}
	for code, raw := range payload.Rates {
		currency, err := ParseCurrency(code)
		if err != nil {
			continue
		}
		rate, err := decimal.NewFromString(raw)
		if err != nil || !rate.IsPositive() {
			continue
		}
		set.Rates[currency] = rate
	}
	return set, nil
}
