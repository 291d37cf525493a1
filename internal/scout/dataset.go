package scout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultDatasetBaseURL = "https://api.apify.com"
	defaultActorID        = "apify/google-maps-scraper"
	scrapeTimeout         = 120 * time.Second
	scrapeMaxReviews      = 5
)

// Item is one loosely-typed place record from the review dataset.
type Item = map[string]any

// DatasetSource reads review datasets and runs scrape jobs.
type DatasetSource interface {
	// ListItems returns up to limit records of a stored dataset.
	ListItems(ctx context.Context, datasetID string, limit int) ([]Item, error)
	// RunScrape runs a scrape job for locationRef, waits for it, and returns its dataset records.
	RunScrape(ctx context.Context, locationRef string, limit int) ([]Item, error)
}

// DatasetClient talks to the Apify REST API.
type DatasetClient struct {
	baseURL string
	token   string
	actorID string
	http    *http.Client
}

// NewDatasetClient builds a client; empty baseURL and actorID fall back to defaults.
func NewDatasetClient(baseURL, token, actorID string) *DatasetClient {
	if baseURL == "" {
		baseURL = defaultDatasetBaseURL
	}
	if actorID == "" {
		actorID = defaultActorID
	}
	return &DatasetClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		actorID: actorID,
		http:    newHTTPClient(scrapeTimeout + 10*time.Second),
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

func (c *DatasetClient) ListItems(ctx context.Context, datasetID string, limit int) ([]Item, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	q.Set("clean", "true")
	endpoint := fmt.Sprintf("%s/v2/datasets/%s/items?%s", c.baseURL, url.PathEscape(datasetID), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build dataset request: %w", err)
	}
	return c.doItems(req)
}

func (c *DatasetClient) RunScrape(ctx context.Context, locationRef string, limit int) ([]Item, error) {
	if c.token == "" {
		return nil, fmt.Errorf("scrape job: api token not configured")
	}
	input := map[string]any{
		"startUrls": []map[string]string{
			{"url": "https://www.google.com/maps/place/?q=place_id:" + locationRef},
		},
		"maxReviews": scrapeMaxReviews,
		"language":   "en",
	}
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal scrape input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, scrapeTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("timeout", fmt.Sprint(int(scrapeTimeout.Seconds())))
	q.Set("limit", fmt.Sprint(limit))
	actor := strings.ReplaceAll(c.actorID, "/", "~")
	endpoint := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items?%s", c.baseURL, url.PathEscape(actor), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build scrape request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doItems(req)
}

func (c *DatasetClient) doItems(req *http.Request) ([]Item, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dataset request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read dataset response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("dataset request failed (%d): %s", resp.StatusCode, truncate(string(body), 200))
	}
	var items []Item
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode dataset items: %w", err)
	}
	return items, nil
}

// pickStr returns the first non-empty string value among keys.
func pickStr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// pickNum returns the first non-zero numeric value among keys.
func pickNum(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch n := m[k].(type) {
		case float64:
			if n != 0 {
				return n, true
			}
		case int:
			if n != 0 {
				return float64(n), true
			}
		case json.Number:
			if f, err := n.Float64(); err == nil && f != 0 {
				return f, true
			}
		}
	}
	return 0, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
