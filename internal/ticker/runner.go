// Package ticker wires the alert fetcher and the display engine onto a
// single-threaded schedule.
package ticker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mr1hm/go-weather-ticker/internal/config"
	"github.com/mr1hm/go-weather-ticker/internal/display"
	"github.com/mr1hm/go-weather-ticker/internal/models"
	"github.com/mr1hm/go-weather-ticker/internal/schedule"
)

type AlertFetcher interface {
	Fetch(ctx context.Context) ([]models.Alert, error)
}

// Runner drives three timers on one loop: fetch, rotate and remeasure. All
// engine calls happen in loop tasks; only the HTTP request runs elsewhere.
type Runner struct {
	cfg     config.TickerConfig
	fetcher AlertFetcher
	engine  *display.Engine
	loop    *schedule.Loop
	logger  *slog.Logger

	ctx      context.Context
	inFlight bool // loop goroutine only
	cancels  []func()
	wg       sync.WaitGroup
}

func NewRunner(cfg config.TickerConfig, fetcher AlertFetcher, engine *display.Engine, loop *schedule.Loop, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:     cfg,
		fetcher: fetcher,
		engine:  engine,
		loop:    loop,
		logger:  logger.With("component", "ticker"),
		ctx:     context.Background(),
	}
}

// Start queues the initial fetch and measurement and registers the periodic
// timers. It does not block.
func (r *Runner) Start(ctx context.Context) {
	r.ctx = ctx
	r.logger.Info("starting ticker",
		"feed", r.cfg.FeedURL,
		"fetch_interval", r.cfg.FetchInterval,
		"rotate_interval", r.cfg.RotateInterval,
		"remeasure_interval", r.cfg.RemeasureInterval,
	)

	r.loop.Post(r.fetch)
	r.loop.Post(r.engine.RecomputeScroll)

	r.cancels = append(r.cancels,
		r.loop.Every("fetch", r.cfg.FetchInterval, r.fetch),
		r.loop.Every("rotate", r.cfg.RotateInterval, r.engine.Advance),
		r.loop.Every("remeasure", r.cfg.RemeasureInterval, r.engine.RecomputeScroll),
	)
}

// FetchNow queues an out-of-schedule fetch. It never blocks, so it is safe to
// call from a task on the loop; a full queue drops the request.
func (r *Runner) FetchNow() {
	if !r.loop.TryPost(r.fetch) {
		r.logger.Warn("task queue full, dropping refresh request")
	}
}

// Stop cancels the timers and waits for an outstanding fetch to return.
func (r *Runner) Stop() {
	for _, cancel := range r.cancels {
		cancel()
	}
	r.cancels = nil
	r.wg.Wait()
	r.logger.Info("ticker stopped")
}

func (r *Runner) fetch() {
	if r.inFlight {
		r.logger.Debug("fetch already in flight, skipping tick")
		return
	}
	r.inFlight = true

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		alerts, err := r.fetcher.Fetch(r.ctx)
		r.loop.Post(func() {
			r.inFlight = false
			if err != nil {
				r.engine.FetchFailed(err)
				return
			}
			r.engine.Replace(alerts)
		})
	}()
}
