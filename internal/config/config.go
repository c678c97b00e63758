package config

import "time"

type Config struct {
	Training TrainingConfig `yaml:"training" json:"training"`
	Dataset  DatasetConfig  `yaml:"dataset" json:"dataset"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
	Loss     LossConfig     `yaml:"loss" json:"loss"`
	Output   OutputConfig   `yaml:"output" json:"output"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// TrainingConfig holds the run hyperparameters.
type TrainingConfig struct {
	Epochs       int     `yaml:"epochs" json:"epochs"`
	BatchSize    int     `yaml:"batch_size" json:"batch_size"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
	// Device is one of auto, cpu, cuda. auto picks cuda when an
	// accelerator is present.
	Device string `yaml:"device" json:"device"`
	// Reload resumes from the last weights and loss history.
	Reload bool `yaml:"reload" json:"reload"`
	// Save writes the final weights at the end of the run.
	Save               bool `yaml:"save" json:"save"`
	ProgressIntervalMS int  `yaml:"progress_interval_ms" json:"progress_interval_ms"`
}

// DatasetConfig describes the synthetic image set. Images [0, TrainSplit)
// form the train split, [TrainSplit, Images) the held-out split.
type DatasetConfig struct {
	Images       int    `yaml:"images" json:"images"`
	TrainSplit   int    `yaml:"train_split" json:"train_split"`
	Augmentation int    `yaml:"augmentation" json:"augmentation"`
	Seed         uint64 `yaml:"seed" json:"seed"`
	Height       int    `yaml:"height" json:"height"`
	Width        int    `yaml:"width" json:"width"`
	Channels     int    `yaml:"channels" json:"channels"`
}

// ScheduleConfig parameterises the plateau learning-rate policy.
type ScheduleConfig struct {
	InitialCooldown int     `yaml:"initial_cooldown" json:"initial_cooldown"`
	Cooldown        int     `yaml:"cooldown" json:"cooldown"`
	MinHistory      int     `yaml:"min_history" json:"min_history"`
	Window          int     `yaml:"window" json:"window"`
	Threshold       float64 `yaml:"threshold" json:"threshold"`
	Factor          float64 `yaml:"factor" json:"factor"`
}

// LossConfig holds the composite loss weighting.
type LossConfig struct {
	// TrainWeights favours the minority (foreground) class.
	TrainWeights []float64 `yaml:"train_weights" json:"train_weights"`
	// TestWeights is the inverse of TrainWeights.
	TestWeights  []float64 `yaml:"test_weights" json:"test_weights"`
	BCEWeight    float64   `yaml:"bce_weight" json:"bce_weight"`
	TverskyAlpha float64   `yaml:"tversky_alpha" json:"tversky_alpha"`
	TverskyBeta  float64   `yaml:"tversky_beta" json:"tversky_beta"`
}

type OutputConfig struct {
	WeightsDir string `yaml:"weights_dir" json:"weights_dir"`
	LossDir    string `yaml:"loss_dir" json:"loss_dir"`
	Chart      string `yaml:"chart" json:"chart"`
	MasksDir   string `yaml:"masks_dir" json:"masks_dir"`
	MaxMasks   int    `yaml:"max_masks" json:"max_masks"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Training.ProgressIntervalMS) * time.Millisecond
}

// TrainIDs returns the image ids of the train split.
func (c *Config) TrainIDs() []int {
	return idRange(0, c.Dataset.TrainSplit)
}

// TestIDs returns the image ids of the held-out split.
func (c *Config) TestIDs() []int {
	return idRange(c.Dataset.TrainSplit, c.Dataset.Images)
}

func idRange(from, to int) []int {
	if to <= from {
		return nil
	}
	ids := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		ids = append(ids, i)
	}
	return ids
}
