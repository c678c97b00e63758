// Package schedule implements the learning-rate policy used between epochs.
package schedule

import (
	"gonum.org/v1/gonum/floats"
)

// Config parameterises a Plateau policy.
type Config struct {
	// InitialCooldown is the counter value at the start of a run.
	InitialCooldown int
	// Cooldown is the counter value right after a decay.
	Cooldown int
	// MinHistory is the number of recorded epochs that must be exceeded
	// before decay is considered.
	MinHistory int
	// Window is the number of most recent train losses the trend is
	// measured over.
	Window int
	// Threshold is the trend magnitude below which training is considered
	// to have plateaued.
	Threshold float64
	// Factor multiplies the rate on decay. Must lie in (0, 1).
	Factor float64
}

func DefaultConfig() Config {
	return Config{
		InitialCooldown: 5,
		Cooldown:        10,
		MinHistory:      10,
		Window:          4,
		Threshold:       0.01,
		Factor:          0.5,
	}
}

// Plateau decays the learning rate when the train loss stops moving, with a
// cooldown that keeps two decays at least Cooldown epochs apart.
type Plateau struct {
	cfg      Config
	cooldown int
}

func NewPlateau(cfg Config) *Plateau {
	return &Plateau{
		cfg:      cfg,
		cooldown: cfg.InitialCooldown,
	}
}

// Cooldown returns the current counter value.
func (p *Plateau) Cooldown() int {
	return p.cooldown
}

// Step is called once at the start of each epoch with the train losses of
// all completed epochs. It returns the rate to use and whether it decayed.
func (p *Plateau) Step(trainLosses []float64, lr float64) (float64, bool) {
	// The countdown only runs once the history is long enough.
	if len(trainLosses) <= p.cfg.MinHistory {
		return lr, false
	}

	if p.cooldown < 1 {
		if trend, ok := Trend(trainLosses, p.cfg.Window); ok && trend < p.cfg.Threshold {
			p.cooldown = p.cfg.Cooldown
			return lr * p.cfg.Factor, true
		}
	}

	p.cooldown--
	return lr, false
}

// Trend returns the L2 norm of the successive differences over the last
// window losses. It reports false until window genuine entries exist.
func Trend(losses []float64, window int) (float64, bool) {
	if window < 2 || len(losses) < window {
		return 0, false
	}

	recent := losses[len(losses)-window:]
	diffs := make([]float64, window-1)
	floats.SubTo(diffs, recent[1:], recent[:window-1])

	return floats.Norm(diffs, 2), true
}
