package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFeed polls a JSON price endpoint of the form
//
//	GET {endpoint}?id={feedID} -> {"price":"1.02","confidence":"0.001","publish_time":1700000000}
type HTTPFeed struct {
	client   HTTPDoer
	endpoint string
	timeout  time.Duration
}

func NewHTTPFeed(client HTTPDoer, endpoint string, timeout time.Duration) *HTTPFeed {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPFeed{client: client, endpoint: strings.TrimSpace(endpoint), timeout: timeout}
}

func (f *HTTPFeed) Price(feedID string) (Quote, error) {
	if f == nil || f.endpoint == "" {
		return Quote{}, fmt.Errorf("http feed not configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return Quote{}, err
	}
	values := url.Values{}
	values.Set("id", strings.TrimSpace(feedID))
	req.URL.RawQuery = values.Encode()
	resp, err := f.client.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return Quote{}, fmt.Errorf("%w: %s", ErrFeedNotFound, feedID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Quote{}, fmt.Errorf("http feed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var payload struct {
		Price       string `json:"price"`
		Confidence  string `json:"confidence"`
		PublishTime int64  `json:"publish_time"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Quote{}, fmt.Errorf("http feed: decode: %w", err)
	}
	rate, ok := new(big.Rat).SetString(strings.TrimSpace(payload.Price))
	if !ok || rate.Sign() <= 0 {
		return Quote{}, fmt.Errorf("http feed: invalid price %q", payload.Price)
	}
	quote := Quote{Rate: rate, Timestamp: time.Unix(payload.PublishTime, 0), Source: "http"}
	if c := strings.TrimSpace(payload.Confidence); c != "" {
		conf, ok := new(big.Rat).SetString(c)
		if !ok || conf.Sign() < 0 {
			return Quote{}, fmt.Errorf("http feed: invalid confidence %q", payload.Confidence)
		}
		quote.Confidence = conf
	}
	return quote, nil
}
