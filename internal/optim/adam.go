// Package optim holds the parameter update rules used by the trainer.
package optim

import (
	"fmt"
	"math"

	"github.com/haskel/segtrain/internal/training"
)

// AdamConfig holds the Adam hyperparameters.
type AdamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	WeightDecay  float64
}

func DefaultAdamConfig(lr float64) AdamConfig {
	return AdamConfig{
		LearningRate: lr,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

// Adam implements Adam with bias correction over a fixed parameter set.
type Adam struct {
	cfg    AdamConfig
	params []*training.Parameter
	m      [][]float64
	v      [][]float64
	step   int
}

func NewAdam(params []*training.Parameter, cfg AdamConfig) *Adam {
	a := &Adam{
		cfg:    cfg,
		params: params,
		m:      make([][]float64, len(params)),
		v:      make([][]float64, len(params)),
	}
	for i, p := range params {
		a.m[i] = make([]float64, len(p.Data))
		a.v[i] = make([]float64, len(p.Data))
	}
	return a
}

func (a *Adam) LearningRate() float64 {
	return a.cfg.LearningRate
}

func (a *Adam) SetLearningRate(lr float64) {
	a.cfg.LearningRate = lr
}

// Steps returns the number of updates applied so far.
func (a *Adam) Steps() int {
	return a.step
}

func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		for i := range p.Grad {
			p.Grad[i] = 0
		}
	}
}

func (a *Adam) Step() error {
	a.step++
	c1 := 1 - math.Pow(a.cfg.Beta1, float64(a.step))
	c2 := 1 - math.Pow(a.cfg.Beta2, float64(a.step))

	for i, p := range a.params {
		if len(p.Grad) != len(p.Data) {
			return fmt.Errorf("parameter %s: gradient has %d values, data has %d", p.Name, len(p.Grad), len(p.Data))
		}
		m, v := a.m[i], a.v[i]
		for j, g := range p.Grad {
			if a.cfg.WeightDecay != 0 {
				g += a.cfg.WeightDecay * p.Data[j]
			}
			if math.IsNaN(g) || math.IsInf(g, 0) {
				return fmt.Errorf("parameter %s: non-finite gradient at %d", p.Name, j)
			}
			m[j] = a.cfg.Beta1*m[j] + (1-a.cfg.Beta1)*g
			v[j] = a.cfg.Beta2*v[j] + (1-a.cfg.Beta2)*g*g
			mHat := m[j] / c1
			vHat := v[j] / c2
			p.Data[j] -= a.cfg.LearningRate * mHat / (math.Sqrt(vHat) + a.cfg.Epsilon)
		}
	}
	return nil
}
