// Package geoip guesses the visitor's region from their IP address using a
// MaxMind GeoLite2 City database.
package geoip

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/oschwald/geoip2-golang"
	"github.com/picklehealth/pickle-map/internal/observability"
)

// Location is the ISO 3166 breakdown of a lookup. Subdivision is the part
// after the hyphen of an ISO 3166-2 code and may be empty.
type Location struct {
	Country     string
	Subdivision string
}

// LookupFunc resolves an address to a location.
type LookupFunc func(ip net.IP) (Location, error)

var errNoCountry = errors.New("no country for address")

// Resolver maps client addresses to region ids, falling back to a default
// region whenever the address cannot be located.
type Resolver struct {
	lookup   LookupFunc
	close    func() error
	fallback string
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// Open loads the GeoLite2 City database at path.
func Open(path, fallback string, logger *slog.Logger, metrics *observability.Metrics) (*Resolver, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %s: %w", path, err)
	}
	r := NewResolver(cityLookup(reader), fallback, logger, metrics)
	r.close = reader.Close
	return r, nil
}

// NewResolver creates a resolver over lookup. A nil lookup always yields the
// fallback region.
func NewResolver(lookup LookupFunc, fallback string, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{lookup: lookup, fallback: fallback, logger: logger, metrics: metrics}
}

func cityLookup(reader *geoip2.Reader) LookupFunc {
	return func(ip net.IP) (Location, error) {
		record, err := reader.City(ip)
		if err != nil {
			return Location{}, err
		}
		if record.Country.IsoCode == "" {
			return Location{}, errNoCountry
		}
		loc := Location{Country: record.Country.IsoCode}
		if len(record.Subdivisions) > 0 {
			loc.Subdivision = record.Subdivisions[0].IsoCode
		}
		return loc, nil
	}
}

// Guess returns "CC" or "CC-SUB" for ip, or the fallback region.
func (r *Resolver) Guess(ip net.IP) string {
	if ip == nil || r.lookup == nil {
		r.metrics.GeoLookups.WithLabelValues("default").Inc()
		return r.fallback
	}
	loc, err := r.lookup(ip)
	if err != nil || loc.Country == "" {
		r.logger.Debug("geoip lookup missed", "ip", ip.String(), "error", err)
		r.metrics.GeoLookups.WithLabelValues("default").Inc()
		return r.fallback
	}
	r.metrics.GeoLookups.WithLabelValues("found").Inc()
	if loc.Subdivision == "" {
		return loc.Country
	}
	return loc.Country + "-" + loc.Subdivision
}

// CurrentRegion locates the client that sent req.
func (r *Resolver) CurrentRegion(req *http.Request) string {
	return r.Guess(ClientIP(req))
}

// Close releases the database.
func (r *Resolver) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// ClientIP returns the first X-Forwarded-For address when it parses, else
// the connection's remote address.
func ClientIP(req *http.Request) net.IP {
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	return net.ParseIP(host)
}
