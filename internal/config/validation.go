package config

import (
	"errors"
	"fmt"
)

func (c *Config) Validate() error {
	var errs []error

	if err := c.Training.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("training: %w", err))
	}

	if err := c.Dataset.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("dataset: %w", err))
	}

	if err := c.Schedule.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("schedule: %w", err))
	}

	if err := c.Loss.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("loss: %w", err))
	}

	if err := c.Output.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("output: %w", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	return errors.Join(errs...)
}

func (t *TrainingConfig) Validate() error {
	var errs []error

	if t.Epochs < 0 {
		errs = append(errs, fmt.Errorf("epochs must be non-negative, got %d", t.Epochs))
	}
	if t.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch_size must be at least 1, got %d", t.BatchSize))
	}
	if t.LearningRate <= 0 {
		errs = append(errs, fmt.Errorf("learning_rate must be positive, got %g", t.LearningRate))
	}

	validDevices := map[string]bool{
		"auto": true,
		"cpu":  true,
		"cuda": true,
	}
	if !validDevices[t.Device] {
		errs = append(errs, fmt.Errorf("invalid device: %s (valid: auto, cpu, cuda)", t.Device))
	}

	if t.ProgressIntervalMS < 0 {
		errs = append(errs, fmt.Errorf("progress_interval_ms must be non-negative"))
	}

	return errors.Join(errs...)
}

func (d *DatasetConfig) Validate() error {
	var errs []error

	if d.TrainSplit < 1 {
		errs = append(errs, fmt.Errorf("train_split must be at least 1, got %d", d.TrainSplit))
	}
	if d.Images <= d.TrainSplit {
		errs = append(errs, fmt.Errorf("images (%d) must exceed train_split (%d)", d.Images, d.TrainSplit))
	}
	if d.Augmentation < 0 || d.Augmentation > 2 {
		errs = append(errs, fmt.Errorf("augmentation must be 0, 1 or 2, got %d", d.Augmentation))
	}
	if d.Height < 1 || d.Width < 1 {
		errs = append(errs, fmt.Errorf("height and width must be positive"))
	}
	if d.Channels < 1 {
		errs = append(errs, fmt.Errorf("channels must be at least 1"))
	}

	return errors.Join(errs...)
}

func (s *ScheduleConfig) Validate() error {
	var errs []error

	if s.Cooldown < 0 || s.InitialCooldown < 0 {
		errs = append(errs, fmt.Errorf("cooldowns must be non-negative"))
	}
	if s.Window < 2 {
		errs = append(errs, fmt.Errorf("window must be at least 2, got %d", s.Window))
	}
	if s.MinHistory < 0 {
		errs = append(errs, fmt.Errorf("min_history must be non-negative"))
	}
	if s.Threshold < 0 {
		errs = append(errs, fmt.Errorf("threshold must be non-negative"))
	}
	// The rate may only ever shrink.
	if s.Factor <= 0 || s.Factor >= 1 {
		errs = append(errs, fmt.Errorf("factor must be in (0, 1), got %g", s.Factor))
	}

	return errors.Join(errs...)
}

func (l *LossConfig) Validate() error {
	var errs []error

	if len(l.TrainWeights) != 2 {
		errs = append(errs, fmt.Errorf("train_weights must have 2 entries, got %d", len(l.TrainWeights)))
	}
	if len(l.TestWeights) != 2 {
		errs = append(errs, fmt.Errorf("test_weights must have 2 entries, got %d", len(l.TestWeights)))
	}
	for _, w := range append(append([]float64{}, l.TrainWeights...), l.TestWeights...) {
		if w < 0 {
			errs = append(errs, fmt.Errorf("class weights must be non-negative"))
			break
		}
	}
	if l.BCEWeight < 0 || l.BCEWeight > 1 {
		errs = append(errs, fmt.Errorf("bce_weight must be between 0 and 1"))
	}
	if l.TverskyAlpha < 0 || l.TverskyBeta < 0 {
		errs = append(errs, fmt.Errorf("tversky_alpha and tversky_beta must be non-negative"))
	}

	return errors.Join(errs...)
}

func (o *OutputConfig) Validate() error {
	var errs []error

	if o.WeightsDir == "" {
		errs = append(errs, fmt.Errorf("weights_dir cannot be empty"))
	}
	if o.LossDir == "" {
		errs = append(errs, fmt.Errorf("loss_dir cannot be empty"))
	}
	if o.Chart == "" {
		errs = append(errs, fmt.Errorf("chart cannot be empty"))
	}
	if o.MaxMasks < 0 {
		errs = append(errs, fmt.Errorf("max_masks must be non-negative"))
	}

	return errors.Join(errs...)
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", l.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[l.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", l.Format)
	}

	return nil
}
