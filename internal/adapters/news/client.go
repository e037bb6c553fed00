// Package news fetches recent crypto headlines used as sentiment input.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://cryptopanic.com/api/v1"

// Client pulls recent posts from the CryptoPanic API. It implements
// sentiment.HeadlineSource.
type Client struct {
	httpClient *http.Client
	baseURL    string
	authToken  string
}

// NewClient creates a headline client. The auth token may be empty for the
// public rate-limited tier.
func NewClient(authToken string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		authToken:  authToken,
	}
}

type postsResponse struct {
	Results []struct {
		Title string `json:"title"`
	} `json:"results"`
}

// RecentHeadlines returns up to limit recent headline titles mentioning the
// symbol's base currency.
func (c *Client) RecentHeadlines(ctx context.Context, symbol string, limit int) ([]string, error) {
	q := url.Values{}
	q.Set("currencies", baseCurrency(symbol))
	q.Set("public", "true")
	if c.authToken != "" {
		q.Set("auth_token", c.authToken)
	}

	reqURL := fmt.Sprintf("%s/posts/?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("headline request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("headline API returned status %d", resp.StatusCode)
	}

	var payload postsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode headlines: %w", err)
	}

	headlines := make([]string, 0, limit)
	for _, post := range payload.Results {
		if len(headlines) >= limit {
			break
		}
		if post.Title != "" {
			headlines = append(headlines, post.Title)
		}
	}

	return headlines, nil
}

// baseCurrency strips the common quote suffixes from a trading pair
// ("BTCUSDT" -> "BTC").
func baseCurrency(symbol string) string {
	upper := strings.ToUpper(symbol)
	for _, quote := range []string{"USDT", "USDC", "BUSD", "USD"} {
		if strings.HasSuffix(upper, quote) && len(upper) > len(quote) {
			return strings.TrimSuffix(upper, quote)
		}
	}
	return upper
}
