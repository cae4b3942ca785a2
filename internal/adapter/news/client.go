// Package news searches an RSS news feed for headlines about a disease in a
// region.
package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/picklehealth/pickle-map/internal/domain"
	"github.com/picklehealth/pickle-map/internal/observability"
)

const maxItems = 50

// Client queries a Google News style RSS search endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a news client for the search endpoint at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Search returns up to fifty headlines matching "<region> <disease>",
// localized to the query's country.
func (c *Client) Search(ctx context.Context, q domain.NewsQuery) ([]domain.NewsItem, error) {
	items, err := c.search(ctx, q)
	if err != nil {
		c.metrics.NewsRequests.WithLabelValues("error").Inc()
		c.logger.Warn("news search failed", "disease", q.Disease, "region", q.RegionName, "error", err)
		return nil, err
	}
	c.metrics.NewsRequests.WithLabelValues("success").Inc()
	return items, nil
}

func (c *Client) search(ctx context.Context, q domain.NewsQuery) ([]domain.NewsItem, error) {
	params := url.Values{
		"q": {strings.TrimSpace(q.RegionName + " " + q.Disease)},
	}
	if q.Country != "" {
		params.Set("gl", q.Country)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("news feed error: status %d: %s", resp.StatusCode, body)
	}

	var feed rss
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	items := make([]domain.NewsItem, 0, min(len(feed.Channel.Items), maxItems))
	for _, it := range feed.Channel.Items {
		if len(items) == maxItems {
			break
		}
		items = append(items, domain.NewsItem{
			Title:       strings.TrimSpace(it.Title),
			URL:         strings.TrimSpace(it.Link),
			Source:      strings.TrimSpace(it.Source.Name),
			Published:   parsePubDate(it.PubDate),
			Description: strings.TrimSpace(it.Description),
		})
	}
	return items, nil
}

// parsePubDate accepts the RFC 1123 variants feeds use. Unparsable dates
// yield the zero time.
func parsePubDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC1123Z, time.RFC1123} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// RSS 2.0 response types.

type rss struct {
	Channel struct {
		Items []item `xml:"item"`
	} `xml:"channel"`
}

type item struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	Description string `xml:"description"`
	Source      struct {
		Name string `xml:",chardata"`
		URL  string `xml:"url,attr"`
	} `xml:"source"`
}
