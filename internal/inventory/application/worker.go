package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Worker runs the reservation expiry sweep on a fixed interval.
type Worker struct {
	log      *slog.Logger
	svc      *Service
	orders   OrderCanceller
	interval time.Duration
	batch    int
	swept    prometheus.Counter
}

func NewWorker(log *slog.Logger, svc *Service, orders OrderCanceller, interval time.Duration, swept prometheus.Counter) *Worker {
	return &Worker{
		log:      log,
		svc:      svc,
		orders:   orders,
		interval: interval,
		batch:    100,
		swept:    swept,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("reservation sweep stopping")
			return nil
		case <-t.C:
			n, err := w.svc.SweepExpired(ctx, w.orders, w.batch)
			if err != nil {
				w.log.Error("reservation sweep error", "err", err)
				continue
			}
			if n > 0 {
				w.swept.Add(float64(n))
				w.log.Info("expired reservations released", "count", n)
			}
		}
	}
}
