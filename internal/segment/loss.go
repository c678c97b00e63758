package segment

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/haskel/segtrain/internal/metrics"
	"github.com/haskel/segtrain/internal/training"
)

// LossConfig weights the two terms of CompositeLoss.
type LossConfig struct {
	// BCEWeight mixes the terms: BCEWeight*CE + (1-BCEWeight)*(1-TI).
	BCEWeight float64
	// Alpha penalises false positives, Beta false negatives.
	Alpha float64
	Beta  float64
	// Smooth keeps the Tversky index defined on empty masks.
	Smooth  float64
	Epsilon float64
}

func DefaultLossConfig() LossConfig {
	return LossConfig{
		BCEWeight: 0.5,
		Alpha:     0.3,
		Beta:      0.7,
		Smooth:    1,
		Epsilon:   1e-7,
	}
}

// CompositeLoss is a class-weighted cross-entropy plus a Tversky loss on the
// last (foreground) class. Predictions are probabilities, truth is one-hot.
type CompositeLoss struct {
	cfg LossConfig
}

func NewCompositeLoss(cfg LossConfig) *CompositeLoss {
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = 1e-7
	}
	return &CompositeLoss{cfg: cfg}
}

// Compute returns the batch mean loss and its gradient. The recorded
// components are scaled by the sample count so that dividing the aggregate
// by the number of samples yields a per-sample mean.
func (l *CompositeLoss) Compute(predicted, truth training.Tensor, weights training.ClassWeights, agg *metrics.Aggregator) (training.Loss, error) {
	if len(predicted.Shape) != 4 {
		return training.Loss{}, fmt.Errorf("expected [N, K, H, W] prediction, got %v", predicted.Shape)
	}
	if !predicted.SameShape(truth) {
		return training.Loss{}, fmt.Errorf("prediction shape %v does not match truth %v", predicted.Shape, truth.Shape)
	}
	n, k := predicted.Shape[0], predicted.Shape[1]
	hw := predicted.Shape[2] * predicted.Shape[3]
	if k < 2 {
		return training.Loss{}, fmt.Errorf("need at least 2 classes, got %d", k)
	}
	if len(weights) != k {
		return training.Loss{}, fmt.Errorf("got %d class weights for %d classes", len(weights), k)
	}

	grad := training.NewTensor(predicted.Shape...)
	eps := l.cfg.Epsilon
	pixels := float64(n * hw)
	fg := k - 1

	var ce, tp, fp, fn float64
	for s := 0; s < n; s++ {
		base := s * k * hw
		for j := 0; j < k; j++ {
			off := base + j*hw
			for p := 0; p < hw; p++ {
				t := truth.Data[off+p]
				if t == 0 {
					continue
				}
				pr := predicted.Data[off+p] + eps
				ce -= weights[j] * t * math.Log(pr)
				grad.Data[off+p] += -l.cfg.BCEWeight * weights[j] * t / (pr * pixels)
			}
		}
		off := base + fg*hw
		pr, t := predicted.Data[off:off+hw], truth.Data[off:off+hw]
		overlap := floats.Dot(pr, t)
		tp += overlap
		fp += floats.Sum(pr) - overlap
		fn += floats.Sum(t) - overlap
	}
	ce /= pixels

	num := tp + l.cfg.Smooth
	den := tp + l.cfg.Alpha*fp + l.cfg.Beta*fn + l.cfg.Smooth
	ti := num / den
	tversky := 1 - ti

	tw := 1 - l.cfg.BCEWeight
	for s := 0; s < n; s++ {
		off := s*k*hw + fg*hw
		for p := 0; p < hw; p++ {
			t := truth.Data[off+p]
			dNum := t
			dDen := t + l.cfg.Alpha*(1-t) - l.cfg.Beta*t
			dti := (dNum*den - num*dDen) / (den * den)
			grad.Data[off+p] -= tw * dti
		}
	}

	value := l.cfg.BCEWeight*ce + tw*tversky
	if agg != nil {
		samples := float64(n)
		agg.Accumulate(metrics.BCE, ce*samples)
		agg.Accumulate(metrics.Tversky, tversky*samples)
		agg.Accumulate(metrics.Loss, value*samples)
	}
	return training.Loss{Value: value, Grad: grad}, nil
}
