// Package training drives the epoch loop of a segmentation model: dataset
// refresh, train and test phases, learning-rate decay, loss bookkeeping,
// checkpointing and interrupt-safe finalization.
package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/haskel/segtrain/internal/checkpoint"
	"github.com/haskel/segtrain/internal/metrics"
	"github.com/haskel/segtrain/internal/schedule"
)

// Config holds the run parameters. The orchestrator copies it and never
// writes back; the live learning rate lives in State.
type Config struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Device       Device
	Reload       bool
	Save         bool

	TrainIDs     []int
	TestIDs      []int
	Augmentation Augmentation

	// TrainWeights favours the minority class, TestWeights is its inverse.
	TrainWeights ClassWeights
	TestWeights  ClassWeights

	Schedule schedule.Config

	WeightsDir string
	LossDir    string
	ChartPath  string
	MasksDir   string
	MaxMasks   int

	ProgressInterval time.Duration
}

// Deps are the collaborators of a run. Chart, Masks, Evaluator, Resources
// and Clock are optional.
type Deps struct {
	Data      DatasetProvider
	Model     Model
	Optimizer Optimizer
	Loss      LossEvaluator
	Store     CheckpointStore

	Evaluator EvaluationReporter
	Chart     ChartRenderer
	Masks     MaskWriter
	Resources ResourceSampler
	Clock     func() time.Time
}

// State is the run-scoped mutable state.
type State struct {
	LearningRate float64
	History      checkpoint.History
	// EpochsRun counts epochs completed in this run, excluding resumed ones.
	EpochsRun   int
	Cooldown    int
	Interrupted bool
}

type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time

	state  State
	policy *schedule.Plateau
	agg    *metrics.Aggregator

	// Last train prediction and truth per batch index, for mask snapshots.
	lastPreds  []Tensor
	lastTruths []Tensor
}

// New validates the collaborators and returns an orchestrator ready to Run.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Orchestrator, error) {
	var errs []error
	if deps.Data == nil {
		errs = append(errs, errors.New("dataset provider is required"))
	}
	if deps.Model == nil {
		errs = append(errs, errors.New("model is required"))
	}
	if deps.Optimizer == nil {
		errs = append(errs, errors.New("optimizer is required"))
	}
	if deps.Loss == nil {
		errs = append(errs, errors.New("loss evaluator is required"))
	}
	if deps.Store == nil {
		errs = append(errs, errors.New("checkpoint store is required"))
	}
	if cfg.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch size must be at least 1, got %d", cfg.BatchSize))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	policy := schedule.NewPlateau(cfg.Schedule)

	return &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		now:    now,
		state: State{
			LearningRate: cfg.LearningRate,
			Cooldown:     policy.Cooldown(),
		},
		policy: policy,
		agg:    metrics.NewAggregator(),
	}, nil
}

// State returns a copy of the current run state.
func (o *Orchestrator) State() State {
	s := o.state
	s.History = append(checkpoint.History(nil), o.state.History...)
	return s
}

// Run executes the whole run. Cancelling ctx stops the epoch loop at the
// next batch or phase boundary; the model is then saved to the last weights
// file and the run finalizes normally. Collaborator errors abort the run
// without saving. The elapsed time is logged on every path.
func (o *Orchestrator) Run(ctx context.Context) error {
	start := o.now()
	defer func() {
		elapsed := o.now().Sub(start)
		o.logger.Info("done",
			"elapsed", elapsed.Round(time.Millisecond).String(),
			"seconds", int(elapsed.Seconds()),
		)
	}()

	o.logBanner()

	if err := o.initialize(); err != nil {
		return err
	}

	test, err := o.deps.Data.Load(ctx, o.cfg.TestIDs, AugmentNone, o.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to load test split: %w", err)
	}

	var saveErr error
	if err := o.loop(ctx, test); err != nil {
		if !isCancellation(ctx, err) {
			return err
		}
		o.state.Interrupted = true
		o.logger.Warn("interrupted",
			"epochs_completed", o.state.EpochsRun,
			"cause", context.Cause(ctx),
		)
		saveErr = o.emergencySave()
	}

	return errors.Join(saveErr, o.finalize(context.WithoutCancel(ctx), test))
}

func (o *Orchestrator) logBanner() {
	o.logger.Info("starting training",
		"model", o.deps.Model.Name(),
		"epochs", o.cfg.Epochs,
		"batch_size", o.cfg.BatchSize,
		"learning_rate", o.cfg.LearningRate,
		"device", string(o.cfg.Device),
		"reload", o.cfg.Reload,
		"save", o.cfg.Save,
		"train_images", len(o.cfg.TrainIDs),
		"test_images", len(o.cfg.TestIDs),
		"augmentation", o.cfg.Augmentation.String(),
	)
}

func (o *Orchestrator) weightsPath() string {
	return checkpoint.LastPath(o.cfg.WeightsDir, checkpoint.WeightsExt)
}

func (o *Orchestrator) historyPath() string {
	return checkpoint.LastPath(o.cfg.LossDir, checkpoint.HistoryExt)
}

// initialize restores weights and loss history when reloading. Missing
// weights are fatal; an unreadable history is replaced by an empty one.
func (o *Orchestrator) initialize() error {
	if !o.cfg.Reload {
		return nil
	}

	state, err := o.deps.Store.Load(o.weightsPath())
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrCheckpointNotFound, err)
		}
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := o.deps.Model.LoadStateDict(state); err != nil {
		return fmt.Errorf("failed to restore model from checkpoint: %w", err)
	}

	history, err := o.deps.Store.LoadHistory(o.historyPath())
	if err != nil {
		o.logger.Warn("failed to load previous loss values, starting with an empty history",
			"path", o.historyPath(),
			"error", err,
		)
		history = nil
	}
	o.state.History = history

	o.logger.Info("resumed", "weights", o.weightsPath(), "previous_epochs", len(history))
	return nil
}

func (o *Orchestrator) loop(ctx context.Context, test []Batch) error {
	for epoch := 0; epoch < o.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		// A fresh augmentation draw every epoch.
		train, err := o.deps.Data.Load(ctx, o.cfg.TrainIDs, o.cfg.Augmentation, o.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("epoch %d: failed to load train split: %w", epoch, err)
		}

		o.adjustLearningRate(epoch)
		o.logger.Info("epoch started", "epoch", epoch, "learning_rate", o.state.LearningRate)

		lossTrain, err := o.trainPhase(ctx, epoch, train)
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		lossTest, err := o.testPhase(ctx, epoch, test)
		if err != nil {
			return err
		}

		o.state.History.Append(lossTrain, lossTest)
		o.state.EpochsRun++

		o.logger.Info("epoch finished",
			"epoch", epoch,
			"train_loss", lossTrain,
			"test_loss", lossTest,
		)
		o.logResources(epoch)
	}
	return nil
}

func (o *Orchestrator) adjustLearningRate(epoch int) {
	lr, decayed := o.policy.Step(o.state.History.TrainLosses(), o.state.LearningRate)
	o.state.Cooldown = o.policy.Cooldown()
	if !decayed {
		return
	}

	o.logger.Info("learning rate decayed",
		"epoch", epoch,
		"from", o.state.LearningRate,
		"to", lr,
	)
	o.state.LearningRate = lr
	o.deps.Optimizer.SetLearningRate(lr)
}

func (o *Orchestrator) trainPhase(ctx context.Context, epoch int, batches []Batch) (float64, error) {
	o.deps.Model.Train()
	o.agg.Reset()

	if len(o.lastPreds) != len(batches) {
		o.lastPreds = make([]Tensor, len(batches))
		o.lastTruths = make([]Tensor, len(batches))
	}

	prog := newProgress(o.logger, "train", epoch, len(batches), o.cfg.ProgressInterval)

	var total float64
	samples := 0
	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		pred, err := o.deps.Model.Forward(b.Images)
		if err != nil {
			return 0, fmt.Errorf("epoch %d train batch %d: forward: %w", epoch, i, err)
		}
		o.lastPreds[i] = pred.Clone()
		o.lastTruths[i] = b.Truth.Clone()

		loss, err := o.deps.Loss.Compute(pred, b.Truth, o.cfg.TrainWeights, o.agg)
		if err != nil {
			return 0, fmt.Errorf("epoch %d train batch %d: loss: %w", epoch, i, err)
		}
		total += loss.Value / float64(len(batches))
		samples += b.Samples()

		o.deps.Optimizer.ZeroGrad()
		if err := o.deps.Model.Backward(loss.Grad); err != nil {
			return 0, fmt.Errorf("epoch %d train batch %d: backward: %w", epoch, i, err)
		}
		if err := o.deps.Optimizer.Step(); err != nil {
			return 0, fmt.Errorf("epoch %d train batch %d: optimizer step: %w", epoch, i, err)
		}

		prog.update(i, loss.Value)
	}

	o.logger.Debug("phase metrics", append([]any{"phase", "train", "epoch", epoch},
		o.agg.Report(float64(samples)).Attrs()...)...)
	return total, nil
}

func (o *Orchestrator) testPhase(ctx context.Context, epoch int, batches []Batch) (float64, error) {
	o.deps.Model.Eval()
	o.agg.Reset()

	prog := newProgress(o.logger, "test", epoch, len(batches), o.cfg.ProgressInterval)

	var total float64
	samples := 0
	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		pred, err := o.deps.Model.Forward(b.Images)
		if err != nil {
			return 0, fmt.Errorf("epoch %d test batch %d: forward: %w", epoch, i, err)
		}

		loss, err := o.deps.Loss.Compute(pred, b.Truth, o.cfg.TestWeights, o.agg)
		if err != nil {
			return 0, fmt.Errorf("epoch %d test batch %d: loss: %w", epoch, i, err)
		}
		total += loss.Value / float64(len(batches))
		samples += b.Samples()

		prog.update(i, loss.Value)
	}

	o.logger.Debug("phase metrics", append([]any{"phase", "test", "epoch", epoch},
		o.agg.Report(float64(samples)).Attrs()...)...)
	return total, nil
}

func (o *Orchestrator) logResources(epoch int) {
	if o.deps.Resources == nil {
		return
	}
	state := o.deps.Resources.Sample()
	if state == nil {
		return
	}
	o.logger.Info("resources", append([]any{"epoch", epoch}, state.LogAttrs()...)...)
}

// emergencySave writes the current model state to the last weights file,
// whether or not saving is enabled for the run.
func (o *Orchestrator) emergencySave() error {
	if err := o.deps.Store.Save(o.deps.Model.StateDict(), o.weightsPath()); err != nil {
		o.logger.Error("failed to save checkpoint after interrupt", "error", err)
		return err
	}
	o.logger.Info("saved checkpoint after interrupt", "path", o.weightsPath())
	return nil
}
