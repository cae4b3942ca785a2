// Package dataapi is the read client for the data service. Responses are
// decoded into fresh values on every call, so callers may keep or modify
// what they receive without affecting cached data.
package dataapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/picklehealth/pickle-map/internal/domain"
)

// Client reads regions, diseases, and news from the data service.
type Client struct {
	transport Transport
	logger    *slog.Logger
}

// NewClient creates a client over the given transport, usually a
// CachedTransport wrapping an HTTPTransport.
func NewClient(transport Transport, logger *slog.Logger) *Client {
	return &Client{transport: transport, logger: logger}
}

// Regions lists every region without geometry.
func (c *Client) Regions(ctx context.Context) ([]domain.Region, error) {
	var out []domain.Region
	err := c.get(ctx, "/data/region", &out)
	return out, err
}

// Subregions lists the subdivisions of a country with geometry. An empty id
// lists the top-level countries.
func (c *Client) Subregions(ctx context.Context, id string) ([]domain.Region, error) {
	path := "/data/region/subregions"
	if id != "" {
		path += "/" + url.PathEscape(id)
	}
	var out []domain.Region
	err := c.get(ctx, path, &out)
	return out, err
}

// Region fetches one region with its geometry.
func (c *Client) Region(ctx context.Context, id string) (domain.Region, error) {
	var out domain.Region
	err := c.get(ctx, "/data/region/"+url.PathEscape(id), &out)
	return out, err
}

// CurrentRegion returns the region the data service located the caller in.
func (c *Client) CurrentRegion(ctx context.Context) (string, error) {
	var out string
	err := c.get(ctx, "/data/region/current", &out)
	return out, err
}

// Diseases lists the tracked diseases.
func (c *Client) Diseases(ctx context.Context) ([]domain.DiseaseSummary, error) {
	var out []domain.DiseaseSummary
	err := c.get(ctx, "/data/disease", &out)
	return out, err
}

// Disease fetches a disease with its latest per-region statistics.
func (c *Client) Disease(ctx context.Context, id string) (domain.Disease, error) {
	var out domain.Disease
	err := c.get(ctx, "/data/disease/"+url.PathEscape(id), &out)
	return out, err
}

// DiseaseInRegion fetches the time series of a disease within a region.
func (c *Client) DiseaseInRegion(ctx context.Context, id, region string) (domain.DiseaseInRegion, error) {
	var out domain.DiseaseInRegion
	err := c.get(ctx, "/data/disease/"+url.PathEscape(id)+"/in/"+url.PathEscape(region), &out)
	return out, err
}

// News lists headlines about a disease within a region.
func (c *Client) News(ctx context.Context, id, region string) ([]domain.NewsItem, error) {
	var out []domain.NewsItem
	err := c.get(ctx, "/data/disease/"+url.PathEscape(id)+"/in/"+url.PathEscape(region)+"/news", &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	body, err := c.transport.Fetch(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		c.logger.Warn("undecodable data service response", "path", path, "error", err)
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
