package pipeline

import (
	"context"
	"crypto/sha256"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/rainfall-etl/internal/domain"
	"github.com/couchcryptid/rainfall-etl/internal/observability"
)

// Fetcher retrieves a raw document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// cacheResetter is implemented by fetchers that cache documents.
type cacheResetter interface {
	Reset()
}

// CollectorConfig controls how endpoints are sampled.
type CollectorConfig struct {
	Days        int
	ProbeStride int
	QueryParams []string
	Delay       time.Duration
	Location    *time.Location
}

// Collector turns endpoints into observation sets, one document per day.
type Collector struct {
	fetcher Fetcher
	cfg     CollectorConfig
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCollector creates a Collector.
func NewCollector(f Fetcher, cfg CollectorConfig, logger *slog.Logger, metrics *observability.Metrics) *Collector {
	if cfg.ProbeStride <= 0 {
		cfg.ProbeStride = 1
	}
	return &Collector{fetcher: f, cfg: cfg, logger: logger, metrics: metrics}
}

// Window returns the collection range: the last cfg.Days days ending today.
func (c *Collector) Window() domain.DateRange {
	return domain.LastDays(domain.Today(c.cfg.Location), c.cfg.Days)
}

// resetCache discards documents cached by the fetcher during a previous run.
func (c *Collector) resetCache() {
	if r, ok := c.fetcher.(cacheResetter); ok {
		r.Reset()
	}
}

// Variants lists the URLs tried for endpoint on day d: one per query
// parameter, then the plain endpoint.
func Variants(endpoint string, d domain.Date, params []string) []string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	out := make([]string, 0, len(params)+1)
	for _, p := range params {
		out = append(out, endpoint+sep+p+"="+d.Compact())
	}
	return append(out, endpoint)
}

// Probe reports whether endpoint yields observations for any sampled day of
// window. Days are sampled every ProbeStride days from the start.
func (c *Collector) Probe(ctx context.Context, endpoint string, window domain.DateRange) bool {
	days := window.Days()
	for i := 0; i < len(days); i += c.cfg.ProbeStride {
		for _, u := range Variants(endpoint, days[i], c.cfg.QueryParams) {
			if ctx.Err() != nil {
				return false
			}
			set, err := c.extract(ctx, u, days[i])
			if err != nil {
				c.logger.Debug("probe failed", "url", u, "error", err)
				continue
			}
			if !set.Empty() {
				c.logger.Info("endpoint detected", "endpoint", endpoint, "variant", u, "observations", set.Len())
				return true
			}
		}
	}
	return false
}

// Collect fetches one document per day of window. For each day the first
// variant producing observations wins; a document identical to one already
// consumed is skipped so undated endpoints are not counted twice.
func (c *Collector) Collect(ctx context.Context, endpoint string, window domain.DateRange) ([]domain.ObservationSet, error) {
	seen := make(map[[sha256.Size]byte]struct{})
	var sets []domain.ObservationSet

	for i, d := range window.Days() {
		if i > 0 && !sleepWithContext(ctx, c.cfg.Delay) {
			return sets, ctx.Err()
		}

		for _, u := range Variants(endpoint, d, c.cfg.QueryParams) {
			if ctx.Err() != nil {
				return sets, ctx.Err()
			}
			body, err := c.fetcher.Fetch(ctx, u)
			if err != nil {
				c.logger.Debug("fetch failed", "url", u, "error", err)
				continue
			}
			sum := sha256.Sum256(body)
			if _, dup := seen[sum]; dup {
				continue
			}

			set, err := c.decode(body, u, d)
			if err != nil || set.Empty() {
				continue
			}
			seen[sum] = struct{}{}
			sets = append(sets, set)
			c.metrics.ObservationsExtracted.Add(float64(set.Len()))
			c.logger.Debug("day collected", "endpoint", endpoint, "date", d.String(), "variant", u, "observations", set.Len())
			break
		}
	}
	return sets, nil
}

func (c *Collector) extract(ctx context.Context, url string, fallback domain.Date) (domain.ObservationSet, error) {
	body, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return domain.ObservationSet{}, err
	}
	return c.decode(body, url, fallback)
}

func (c *Collector) decode(body []byte, url string, fallback domain.Date) (domain.ObservationSet, error) {
	doc, err := domain.DecodeDocument(body)
	if err != nil {
		if errors.Is(err, domain.ErrNotJSON) {
			c.metrics.DocumentsSkipped.WithLabelValues("not_json").Inc()
		}
		c.logger.Debug("document skipped", "url", url, "error", err)
		return domain.ObservationSet{}, err
	}
	set := domain.ExtractDocument(doc, fallback).WithSource(url)
	if set.Empty() {
		c.metrics.DocumentsSkipped.WithLabelValues("empty").Inc()
	}
	return set, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
