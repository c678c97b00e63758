package segment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/haskel/segtrain/internal/metrics"
	"github.com/haskel/segtrain/internal/training"
)

// Evaluator scores a model on held-out batches. Besides the loss
// components it records pixel precision, recall and F1 of the foreground
// class, thresholded at Threshold.
type Evaluator struct {
	loss      training.LossEvaluator
	weights   training.ClassWeights
	threshold float64
	logger    *slog.Logger
}

func NewEvaluator(loss training.LossEvaluator, weights training.ClassWeights, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		loss:      loss,
		weights:   weights,
		threshold: 0.5,
		logger:    logger,
	}
}

// Evaluate runs model in eval mode over data. Every metric is accumulated
// once per sample, so the aggregate divides by the sample count. The device
// is only reported: the pure Go model always computes on the CPU.
func (e *Evaluator) Evaluate(ctx context.Context, model training.Model, data []training.Batch, device training.Device, agg *metrics.Aggregator) error {
	model.Eval()
	e.logger.Debug("evaluating", "batches", len(data), "device", device)

	for i, b := range data {
		if err := ctx.Err(); err != nil {
			return err
		}
		pred, err := model.Forward(b.Images)
		if err != nil {
			return fmt.Errorf("evaluation batch %d: %w", i, err)
		}
		if _, err := e.loss.Compute(pred, b.Truth, e.weights, agg); err != nil {
			return fmt.Errorf("evaluation batch %d: %w", i, err)
		}
		e.accumulateScores(pred, b.Truth, agg)
	}
	return nil
}

func (e *Evaluator) accumulateScores(pred, truth training.Tensor, agg *metrics.Aggregator) {
	n, k := pred.Shape[0], pred.Shape[1]
	hw := pred.Shape[2] * pred.Shape[3]
	fg := k - 1

	for s := 0; s < n; s++ {
		off := s*k*hw + fg*hw
		sc := score(pred.Data[off:off+hw], truth.Data[off:off+hw], e.threshold)
		agg.Accumulate(metrics.Precision, sc.precision)
		agg.Accumulate(metrics.Recall, sc.recall)
		agg.Accumulate(metrics.F1, sc.f1)
	}
}

type scores struct {
	precision, recall, f1 float64
}

// score compares one binarised foreground plane against its truth. Ratios
// with an empty denominator are 0.
func score(pred, truth []float64, threshold float64) scores {
	var tp, fp, fn float64
	for p := range pred {
		positive := pred[p] >= threshold
		actual := truth[p] >= 0.5
		switch {
		case positive && actual:
			tp++
		case positive:
			fp++
		case actual:
			fn++
		}
	}

	var s scores
	if tp+fp > 0 {
		s.precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		s.recall = tp / (tp + fn)
	}
	if s.precision+s.recall > 0 {
		s.f1 = 2 * s.precision * s.recall / (s.precision + s.recall)
	}
	return s
}
