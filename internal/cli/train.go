package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haskel/segtrain/internal/config"
	"github.com/haskel/segtrain/internal/logger"
	"github.com/haskel/segtrain/internal/monitor"
	"github.com/haskel/segtrain/internal/training"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run the training loop",
	Long: `Train the segmentation model for the configured number of epochs.

Ctrl-C stops the run at the next batch boundary, saves the current weights
to the last checkpoint and writes the loss history before exiting.

Examples:
  segtrain train                          # defaults, fresh run
  segtrain train -c train.yaml --reload   # resume from Weights/last.json
  segtrain train --epochs 50 --lr 0.01 --no-save`,
	RunE: runTrain,
}

var trainFlags struct {
	epochs    int
	batchSize int
	lr        float64
	device    string
	reload    bool
	save      bool
	noSave    bool
	seed      uint64
}

func init() {
	f := trainCmd.Flags()
	f.IntVar(&trainFlags.epochs, "epochs", 0, "number of epochs to run")
	f.IntVar(&trainFlags.batchSize, "batch-size", 0, "samples per batch")
	f.Float64Var(&trainFlags.lr, "lr", 0, "initial learning rate")
	f.StringVar(&trainFlags.device, "device", "", "auto, cpu or cuda")
	f.BoolVar(&trainFlags.reload, "reload", false, "resume from the last checkpoint and loss history")
	f.BoolVar(&trainFlags.save, "save", true, "save weights at the end of the run")
	f.BoolVar(&trainFlags.noSave, "no-save", false, "do not save weights at the end of the run")
	f.Uint64Var(&trainFlags.seed, "seed", 0, "dataset seed")
	rootCmd.AddCommand(trainCmd)
}

// applyTrainFlags overrides cfg with every flag set on the command line.
func applyTrainFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("epochs") {
		cfg.Training.Epochs = trainFlags.epochs
	}
	if flags.Changed("batch-size") {
		cfg.Training.BatchSize = trainFlags.batchSize
	}
	if flags.Changed("lr") {
		cfg.Training.LearningRate = trainFlags.lr
	}
	if flags.Changed("device") {
		cfg.Training.Device = trainFlags.device
	}
	if flags.Changed("reload") {
		cfg.Training.Reload = trainFlags.reload
	}
	if flags.Changed("save") {
		cfg.Training.Save = trainFlags.save
	}
	if flags.Changed("no-save") && trainFlags.noSave {
		cfg.Training.Save = false
	}
	if flags.Changed("seed") {
		cfg.Dataset.Seed = trainFlags.seed
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return err
	}
	applyTrainFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, runID := logger.WithRun(logger.New(cfg.Logging.Level, cfg.Logging.Format))

	gpu := monitor.NewGPUMonitor()
	device, err := monitor.SelectDevice(cfg.Training.Device, gpu.Available())
	if err != nil {
		return err
	}

	orch, err := newOrchestrator(cfg, training.Device(device), log)
	if err != nil {
		return fmt.Errorf("failed to set up training: %w", err)
	}

	ctx, stop := trapSignals(context.Background())
	defer stop()

	log.Info("segtrain starting",
		"version", Version,
		"run_id", runID,
		"config", cfgFile,
	)

	if err := orch.Run(ctx); err != nil {
		if errors.Is(err, training.ErrCheckpointNotFound) {
			return fmt.Errorf("%w (run without --reload to start fresh)", err)
		}
		return err
	}
	return nil
}

// trapSignals cancels the returned context on the first interrupt or
// SIGTERM. The default handlers come back right after, so a second signal
// kills the process even while the emergency save is running.
func trapSignals(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	releaseOnCancel(ctx, stop)
	return ctx, stop
}

func releaseOnCancel(ctx context.Context, release func()) {
	context.AfterFunc(ctx, release)
}
