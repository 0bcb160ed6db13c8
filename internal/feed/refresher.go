package feed

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"etfsave.life/web/internal/fees"
)

// Refresher keeps a fees.Board loaded. It reloads on start, on every tick and, for
// local endpoints, when the files change. A failed load leaves the board as it was.
type Refresher struct {
	client   *Client
	board    *fees.Board
	interval time.Duration
	settle   time.Duration
	logger   *zap.Logger

	latency metric.Float64Histogram
	rows    metric.Int64Gauge

	mu      sync.Mutex
	lastErr error
}

const metricNamespace = "etfsave.life/web/feed"

// NewRefresher builds a refresher. interval <= 0 disables periodic reloads.
func NewRefresher(client *Client, board *fees.Board, interval time.Duration, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := otel.GetMeterProvider().Meter(metricNamespace)
	latency, err := meter.Float64Histogram(
		"feed.reload.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds for fee data reloads"),
	)
	if err != nil {
		logger.Warn("feed: unable to register latency metric", zap.Error(err))
	}
	rows, err := meter.Int64Gauge(
		"feed.rows",
		metric.WithDescription("Rows in the installed fee data set"),
	)
	if err != nil {
		logger.Warn("feed: unable to register rows metric", zap.Error(err))
	}
	return &Refresher{
		client:   client,
		board:    board,
		interval: interval,
		settle:   250 * time.Millisecond,
		logger:   logger,
		latency:  latency,
		rows:     rows,
	}
}

// Refresh loads rows and metadata once and installs them on success.
func (r *Refresher) Refresh(ctx context.Context) error {
	start := time.Now()
	rows, err := r.client.Rows(ctx)
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
	r.recordLatency(ctx, time.Since(start), err)
	if err != nil {
		r.logger.Error("fee data reload failed", zap.Error(err))
		return err
	}
	updated := r.client.UpdatedAt(ctx)
	ds := r.board.Replace(rows, updated)
	if r.rows != nil {
		r.rows.Record(ctx, int64(len(ds.Rows)))
	}
	r.logger.Info("fee data loaded",
		zap.Int("rows", len(ds.Rows)),
		zap.Strings("categories", ds.Categories),
		zap.String("updated_at", updated),
		zap.Duration("latency", time.Since(start)),
	)
	return nil
}

func (r *Refresher) recordLatency(ctx context.Context, d time.Duration, err error) {
	if r.latency == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.Bool("success", err == nil)}
	r.latency.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(attrs...))
}

// LastError returns the error of the most recent reload, if it failed.
func (r *Refresher) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Run reloads until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	_ = r.Refresh(ctx)

	var tick <-chan time.Time
	if r.interval > 0 {
		t := time.NewTicker(r.interval)
		defer t.Stop()
		tick = t.C
	}

	changed := make(chan struct{}, 1)
	stop, err := r.watch(changed)
	if err != nil {
		r.logger.Warn("file watch disabled", zap.Error(err))
	} else if stop != nil {
		defer stop()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			_ = r.Refresh(ctx)
		case <-changed:
			r.logger.Debug("data file changed")
			_ = r.Refresh(ctx)
		}
	}
}

// watch signals on changed once writes to any local endpoint settle. It returns a nil
// stop func when nothing is local.
func (r *Refresher) watch(changed chan<- struct{}) (func(), error) {
	files := r.client.LocalFiles()
	if len(files) == 0 {
		return nil, nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	targets := map[string]struct{}{}
	dirs := map[string]struct{}{}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = f
		}
		targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	// Editors and deploy tools replace files by rename, so the directory is watched.
	for d := range dirs {
		if err := w.Add(d); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("watch %s: %w", d, err)
		}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		fire := func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		}
		for {
			select {
			case <-done:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				name, err := filepath.Abs(ev.Name)
				if err != nil {
					name = ev.Name
				}
				if _, ok := targets[name]; !ok {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(r.settle, fire)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				r.logger.Warn("file watch error", zap.Error(err))
			}
		}
	}()

	return func() {
		close(done)
		_ = w.Close()
		wg.Wait()
	}, nil
}
