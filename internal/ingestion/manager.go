// Package ingestion polls upstream alert sources and keeps the alert store
// and stream subscribers current.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-weather-ticker/internal/broadcast"
	"github.com/mr1hm/go-weather-ticker/internal/config"
	"github.com/mr1hm/go-weather-ticker/internal/observability"
	"github.com/mr1hm/go-weather-ticker/internal/repository"
	"github.com/mr1hm/go-weather-ticker/internal/worker"
)

const sourceNWS = "nws"

// ingestJob is one polled alert. batch tracks the poll it belongs to.
type ingestJob struct {
	record repository.Record
	batch  *pollBatch
}

type pollBatch struct {
	wg      sync.WaitGroup
	changed atomic.Int64
}

type Manager struct {
	cfg         *config.Config
	repo        repository.AlertRepository
	broadcaster *broadcast.Broadcaster
	metrics     *observability.Metrics
	client      *http.Client
	clock       clockwork.Clock
	pool        *worker.WorkerPool[ingestJob]
	published   bool // poller goroutine only
	wg          sync.WaitGroup
}

type Option func(*Manager)

func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

func NewManager(cfg *config.Config, repo repository.AlertRepository, broadcaster *broadcast.Broadcaster, metrics *observability.Metrics, opts ...Option) *Manager {
	m := &Manager{
		cfg:         cfg,
		repo:        repo,
		broadcaster: broadcaster,
		metrics:     metrics,
		client:      &http.Client{Timeout: 15 * time.Second},
		clock:       clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Start(ctx context.Context) {
	m.pool = worker.NewWorkerPool("ingest", m.cfg.Worker.Count, m.cfg.Worker.BufferSize, m.process)
	m.pool.OnError(func(error) { m.metrics.JobErrors.Inc() })
	m.pool.Start(ctx)

	if m.cfg.Sources.NWSEnabled {
		m.wg.Add(1)
		go m.runPoller(ctx, m.cfg.Sources.NWSPollInterval)
	}
}

func (m *Manager) runPoller(ctx context.Context, interval time.Duration) {
	defer m.wg.Done()
	slog.Info("starting poller", "source", sourceNWS, "interval", interval)

	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	// Initial poll
	m.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("poller shutting down", "source", sourceNWS)
			return
		case <-ticker.Chan():
			m.poll(ctx)
		}
	}
}

// poll fetches the active alerts, stores the ones that are new or re-issued
// and publishes a fresh snapshot when the active set changed.
func (m *Manager) poll(ctx context.Context) {
	slog.Debug("polling", "source", sourceNWS)

	start := m.clock.Now()
	records, err := m.pollNWS(ctx)
	m.metrics.PollDuration.Observe(m.clock.Since(start).Seconds())
	if err != nil {
		m.metrics.Polls.WithLabelValues(sourceNWS, "error").Inc()
		slog.Error("poll failed", "source", sourceNWS, "error", err)
		return
	}
	m.metrics.Polls.WithLabelValues(sourceNWS, "success").Inc()

	batch := &pollBatch{}
	for _, rec := range records {
		batch.wg.Add(1)
		if err := m.pool.Submit(ctx, ingestJob{record: rec, batch: batch}); err != nil {
			batch.wg.Done()
			slog.Warn("poll interrupted", "source", sourceNWS, "error", err)
			break
		}
	}
	batch.wg.Wait()

	if ctx.Err() != nil {
		return
	}

	removed, err := m.repo.RemoveExpired(ctx)
	if err != nil {
		slog.Error("error removing expired alerts", "error", err)
	}
	m.metrics.AlertsExpired.Add(float64(removed))

	changed := batch.changed.Load()
	slog.Debug("poll complete", "source", sourceNWS, "count", len(records), "changed", changed, "expired", removed)

	if changed > 0 || removed > 0 || !m.published {
		m.publish(ctx)
	}
}

func (m *Manager) process(ctx context.Context, job ingestJob) error {
	defer job.batch.wg.Done()
	if err := ctx.Err(); err != nil {
		return err
	}

	rec := job.record
	sent, exists, err := m.repo.SentAt(ctx, rec.Alert.ID)
	if err != nil {
		return fmt.Errorf("error checking alert %s: %w", rec.Alert.ID, err)
	}
	if exists && sent.UnixMilli() == rec.Sent.UnixMilli() {
		m.metrics.AlertsSkipped.Inc()
		return nil
	}

	if err := m.repo.Upsert(ctx, rec); err != nil {
		return err
	}
	job.batch.changed.Add(1)
	m.metrics.AlertsUpserted.Inc()

	slog.Info("stored alert", "id", rec.Alert.ID, "event", rec.Alert.Event, "update", exists)
	return nil
}

func (m *Manager) publish(ctx context.Context) {
	alerts, err := m.repo.ListActive(ctx)
	if err != nil {
		slog.Error("error listing active alerts", "error", err)
		return
	}
	m.published = true
	m.metrics.ActiveAlerts.Set(float64(len(alerts)))
	if m.broadcaster != nil {
		m.broadcaster.Publish(alerts)
	}
}

func (m *Manager) Stop() {
	m.wg.Wait()
	m.pool.Stop()
	slog.Info("ingestion manager stopped")
}
