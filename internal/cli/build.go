package cli

import (
	"log/slog"
	"math/rand/v2"

	"github.com/haskel/segtrain/internal/checkpoint"
	"github.com/haskel/segtrain/internal/config"
	"github.com/haskel/segtrain/internal/monitor"
	"github.com/haskel/segtrain/internal/optim"
	"github.com/haskel/segtrain/internal/report"
	"github.com/haskel/segtrain/internal/schedule"
	"github.com/haskel/segtrain/internal/segment"
	"github.com/haskel/segtrain/internal/training"
)

const numClasses = 2

// trainingConfig maps the file configuration onto the orchestrator's.
func trainingConfig(cfg *config.Config, device training.Device) training.Config {
	return training.Config{
		Epochs:       cfg.Training.Epochs,
		BatchSize:    cfg.Training.BatchSize,
		LearningRate: cfg.Training.LearningRate,
		Device:       device,
		Reload:       cfg.Training.Reload,
		Save:         cfg.Training.Save,
		TrainIDs:     cfg.TrainIDs(),
		TestIDs:      cfg.TestIDs(),
		Augmentation: training.Augmentation(cfg.Dataset.Augmentation),
		TrainWeights: training.ClassWeights(cfg.Loss.TrainWeights),
		TestWeights:  training.ClassWeights(cfg.Loss.TestWeights),
		Schedule: schedule.Config{
			InitialCooldown: cfg.Schedule.InitialCooldown,
			Cooldown:        cfg.Schedule.Cooldown,
			MinHistory:      cfg.Schedule.MinHistory,
			Window:          cfg.Schedule.Window,
			Threshold:       cfg.Schedule.Threshold,
			Factor:          cfg.Schedule.Factor,
		},
		WeightsDir:       cfg.Output.WeightsDir,
		LossDir:          cfg.Output.LossDir,
		ChartPath:        cfg.Output.Chart,
		MasksDir:         cfg.Output.MasksDir,
		MaxMasks:         cfg.Output.MaxMasks,
		ProgressInterval: cfg.ProgressInterval(),
	}
}

// newOrchestrator wires the pure Go segmentation stack into a run.
func newOrchestrator(cfg *config.Config, device training.Device, log *slog.Logger) (*training.Orchestrator, error) {
	seed := cfg.Dataset.Seed
	rng := rand.New(rand.NewPCG(seed, seed+1))

	data, err := segment.NewSyntheticDataset(segment.DatasetConfig{
		Height:   cfg.Dataset.Height,
		Width:    cfg.Dataset.Width,
		Channels: cfg.Dataset.Channels,
		Seed:     seed,
	}, rng)
	if err != nil {
		return nil, err
	}

	model := segment.NewPixelModel(cfg.Dataset.Channels, numClasses, rng)

	lossCfg := segment.DefaultLossConfig()
	lossCfg.BCEWeight = cfg.Loss.BCEWeight
	lossCfg.Alpha = cfg.Loss.TverskyAlpha
	lossCfg.Beta = cfg.Loss.TverskyBeta
	loss := segment.NewCompositeLoss(lossCfg)

	sampler := monitor.NewSampler(
		monitor.DefaultMonitors([]string{cfg.Output.WeightsDir, cfg.Output.LossDir}),
		log,
	)

	deps := training.Deps{
		Data:      data,
		Model:     model,
		Optimizer: optim.NewAdam(model.Parameters(), optim.DefaultAdamConfig(cfg.Training.LearningRate)),
		Loss:      loss,
		Store:     checkpoint.NewStore(log),
		Evaluator: segment.NewEvaluator(loss, training.ClassWeights(cfg.Loss.TestWeights), log),
		Chart:     report.NewLossChart(),
		Masks:     report.NewMaskWriter(),
		Resources: sampler,
	}

	return training.New(trainingConfig(cfg, device), deps, log)
}
