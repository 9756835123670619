package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Summary is the public slice of an account used to enrich offers and
// assignment notices.
type Summary struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Phone  string  `json:"phone"`
	Avatar string  `json:"avatar,omitempty"`
	Rating float64 `json:"rating"`
	// Vehicle is populated for driver accounts only.
	Vehicle string `json:"vehicle,omitempty"`
}

// Client looks up account summaries for passengers and drivers.
type Client interface {
	GetAccountSummary(ctx context.Context, id string) (Summary, error)
}

// HTTPClient queries the accounts service over HTTP.
type HTTPClient struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPClient(endpoint string) *HTTPClient {
	return &HTTPClient{Endpoint: endpoint, Client: &http.Client{Timeout: 2 * time.Second}}
}

func (c *HTTPClient) GetAccountSummary(ctx context.Context, id string) (Summary, error) {
	url := fmt.Sprintf("%s/internal/accounts/%s/summary", c.Endpoint, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Summary{}, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return Summary{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Summary{}, fmt.Errorf("accounts: status %d for %s", resp.StatusCode, id)
	}
	var s Summary
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return Summary{}, err
	}
	if s.ID == "" {
		s.ID = id
	}
	return s, nil
}

// Static serves summaries from a fixed map; used in tests and local runs
// without an accounts service.
type Static map[string]Summary

func (s Static) GetAccountSummary(_ context.Context, id string) (Summary, error) {
	if sum, ok := s[id]; ok {
		return sum, nil
	}
	return Summary{}, fmt.Errorf("accounts: unknown id %s", id)
}
