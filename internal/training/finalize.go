package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haskel/segtrain/internal/checkpoint"
	"github.com/haskel/segtrain/internal/metrics"
)

// finalize writes every end-of-run artifact. A failing step is logged and
// the remaining steps still run.
func (o *Orchestrator) finalize(ctx context.Context, test []Batch) error {
	ts := o.now()
	var errs []error

	if err := o.writeMasks(); err != nil {
		errs = append(errs, err)
	}

	if err := o.evaluate(ctx, test); err != nil {
		errs = append(errs, err)
	}

	if o.cfg.Save {
		if err := o.saveWeights(ts); err != nil {
			errs = append(errs, err)
		}
	}

	if err := o.saveHistory(ts); err != nil {
		errs = append(errs, err)
	}

	if o.deps.Chart != nil && o.cfg.ChartPath != "" {
		if err := o.deps.Chart.Render(o.state.History, o.cfg.ChartPath); err != nil {
			o.logger.Error("failed to render loss chart", "path", o.cfg.ChartPath, "error", err)
			errs = append(errs, fmt.Errorf("render chart: %w", err))
		} else {
			o.logger.Info("loss chart rendered", "path", o.cfg.ChartPath)
		}
	}

	return errors.Join(errs...)
}

func (o *Orchestrator) writeMasks() error {
	if o.deps.Masks == nil || o.cfg.MasksDir == "" {
		return nil
	}

	var preds, truths []Tensor
	for i := range o.lastPreds {
		// Slots stay empty when the first epoch was interrupted early.
		if o.lastPreds[i].Data == nil {
			continue
		}
		preds = append(preds, o.lastPreds[i])
		truths = append(truths, o.lastTruths[i])
	}
	if len(preds) == 0 {
		return nil
	}

	if err := o.deps.Masks.Write(o.cfg.MasksDir, preds, truths, o.cfg.MaxMasks); err != nil {
		o.logger.Error("failed to write mask snapshots", "dir", o.cfg.MasksDir, "error", err)
		return fmt.Errorf("write masks: %w", err)
	}
	return nil
}

func (o *Orchestrator) evaluate(ctx context.Context, test []Batch) error {
	if o.deps.Evaluator == nil {
		return nil
	}

	agg := metrics.NewAggregator()
	if err := o.deps.Evaluator.Evaluate(ctx, o.deps.Model, test, o.cfg.Device, agg); err != nil {
		o.logger.Error("test set evaluation failed", "error", err)
		return fmt.Errorf("evaluate: %w", err)
	}

	samples := 0
	for _, b := range test {
		samples += b.Samples()
	}

	report := agg.Report(float64(samples))
	o.logger.Info("test set metrics", append([]any{"samples", samples}, report.Attrs()...)...)
	return nil
}

func (o *Orchestrator) saveWeights(ts time.Time) error {
	state := o.deps.Model.StateDict()

	if err := o.deps.Store.Save(state, o.weightsPath()); err != nil {
		o.logger.Error("failed to save weights", "error", err)
		return err
	}

	// The timestamped snapshot marks a completed run.
	if !o.state.Interrupted {
		path := checkpoint.TimestampPath(o.cfg.WeightsDir, ts, checkpoint.WeightsExt)
		if err := o.deps.Store.Save(state, path); err != nil {
			o.logger.Error("failed to save weights snapshot", "error", err)
			return err
		}
	}

	o.logger.Info("model saved", "path", o.weightsPath())
	return nil
}

func (o *Orchestrator) saveHistory(ts time.Time) error {
	archive := checkpoint.ArchivePath(o.cfg.LossDir, o.state.LearningRate, o.cfg.Epochs, ts, checkpoint.HistoryExt)

	var errs []error
	for _, path := range []string{archive, o.historyPath()} {
		if err := o.deps.Store.SaveHistory(o.state.History, path); err != nil {
			o.logger.Error("failed to save loss history", "path", path, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		o.logger.Info("loss history saved", "path", o.historyPath(), "epochs", len(o.state.History))
	}
	return errors.Join(errs...)
}
