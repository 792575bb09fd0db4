package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/rainfall-etl/internal/domain"
	"github.com/couchcryptid/rainfall-etl/internal/observability"
	"github.com/google/uuid"
)

// Loader persists or publishes a finished snapshot.
type Loader interface {
	Load(ctx context.Context, snap domain.Snapshot) error
}

// Discoverer finds candidate endpoints referenced by an HTML page.
type Discoverer interface {
	Discover(ctx context.Context, pageURL string) ([]string, error)
}

// Sources lists where endpoints come from on each run.
type Sources struct {
	Endpoints      []string
	DiscoveryPages []string
}

// Pipeline orchestrates one collect-pivot-load run at a time.
type Pipeline struct {
	collector  *Collector
	discoverer Discoverer
	sources    Sources
	loaders    []Loader
	logger     *slog.Logger
	metrics    *observability.Metrics

	ready  atomic.Bool
	latest atomic.Pointer[domain.Snapshot]
}

// New creates a Pipeline. discoverer may be nil when no discovery pages are configured.
func New(c *Collector, d Discoverer, sources Sources, loaders []Loader, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		collector:  c,
		discoverer: d,
		sources:    sources,
		loaders:    loaders,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once a snapshot has been produced.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no collection run has completed yet")
	}
	return nil
}

// Latest returns the most recent snapshot, or nil before the first run.
func (p *Pipeline) Latest() *domain.Snapshot {
	return p.latest.Load()
}

// RunOnce performs a full collection run. Documents cached by earlier runs are
// discarded first. The snapshot is published to
// Latest before loaders run; loader failures are joined into the returned
// error without stopping the remaining loaders.
func (p *Pipeline) RunOnce(ctx context.Context) (domain.Snapshot, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	p.collector.resetCache()

	snap, err := p.collect(ctx, runID, logger)
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		logger.Error("collection run failed", "error", err)
		return domain.Snapshot{}, err
	}

	p.latest.Store(&snap)
	p.ready.Store(true)
	p.metrics.MatrixDates.Set(float64(len(snap.Matrix.Dates())))
	p.metrics.MatrixStations.Set(float64(len(snap.Matrix.Stations())))

	var loadErrs []error
	for _, l := range p.loaders {
		if err := l.Load(ctx, snap); err != nil {
			logger.Error("load failed", "loader", fmt.Sprintf("%T", l), "error", err)
			loadErrs = append(loadErrs, err)
		}
	}

	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err := errors.Join(loadErrs...); err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		return snap, fmt.Errorf("load snapshot: %w", err)
	}

	p.metrics.RunsTotal.WithLabelValues("success").Inc()
	p.metrics.LastSuccess.Set(float64(snap.CollectedAt.Unix()))
	logger.Info("collection run finished",
		"dates", len(snap.Matrix.Dates()),
		"stations", len(snap.Matrix.Stations()),
		"sets", len(snap.Sets),
		"duration", time.Since(start).String(),
	)
	return snap, nil
}

func (p *Pipeline) collect(ctx context.Context, runID string, logger *slog.Logger) (domain.Snapshot, error) {
	window := p.collector.Window()
	if err := window.Validate(); err != nil {
		return domain.Snapshot{}, err
	}

	endpoints := p.endpoints(ctx, logger)
	logger.Info("collection run started", "endpoints", len(endpoints), "start", window.Start.String(), "end", window.End.String())

	var sets []domain.ObservationSet
	for _, ep := range endpoints {
		if !p.collector.Probe(ctx, ep, window) {
			if ctx.Err() != nil {
				return domain.Snapshot{}, ctx.Err()
			}
			logger.Info("endpoint skipped, no observations found", "endpoint", ep)
			continue
		}
		got, err := p.collector.Collect(ctx, ep, window)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("collect %s: %w", ep, err)
		}
		sets = append(sets, got...)
	}

	matrix, err := domain.Pivot(sets, &window)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("pivot: %w", err)
	}

	return domain.Snapshot{
		RunID:       runID,
		CollectedAt: domain.Now(),
		Range:       window,
		Matrix:      matrix,
		Sets:        sets,
	}, nil
}

// endpoints merges the static endpoints with those discovered this run,
// dropping duplicates. Discovery failures are logged and skipped.
func (p *Pipeline) endpoints(ctx context.Context, logger *slog.Logger) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(urls []string) {
		for _, u := range urls {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}

	add(p.sources.Endpoints)
	if p.discoverer == nil {
		return out
	}
	for _, page := range p.sources.DiscoveryPages {
		found, err := p.discoverer.Discover(ctx, page)
		if err != nil {
			logger.Warn("discovery failed", "page", page, "error", err)
			continue
		}
		add(found)
	}
	return out
}
