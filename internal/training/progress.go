package training

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// progress logs per-batch loss at most once per interval. The last batch of
// a phase is always logged.
type progress struct {
	logger  *slog.Logger
	phase   string
	epoch   int
	total   int
	limiter *rate.Limiter
}

func newProgress(logger *slog.Logger, phase string, epoch, total int, interval time.Duration) *progress {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &progress{
		logger:  logger,
		phase:   phase,
		epoch:   epoch,
		total:   total,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (p *progress) update(batch int, loss float64) {
	if batch != p.total-1 && !p.limiter.Allow() {
		return
	}
	p.logger.Info("progress",
		"phase", p.phase,
		"epoch", p.epoch,
		"batch", batch+1,
		"batches", p.total,
		"loss", loss,
	)
}
