package config

func Default() *Config {
	return &Config{
		Training: TrainingConfig{
			Epochs:             20,
			BatchSize:          1,
			LearningRate:       0.05,
			Device:             "auto",
			Reload:             false,
			Save:               true,
			ProgressIntervalMS: 2000,
		},
		Dataset: DatasetConfig{
			Images:       32,
			TrainSplit:   22,
			Augmentation: 2,
			Seed:         0,
			Height:       64,
			Width:        64,
			Channels:     6,
		},
		Schedule: ScheduleConfig{
			InitialCooldown: 5,
			Cooldown:        10,
			MinHistory:      10,
			Window:          4,
			Threshold:       0.01,
			Factor:          0.5,
		},
		Loss: LossConfig{
			TrainWeights: []float64{0.1, 0.9},
			TestWeights:  []float64{0.9, 0.1},
			BCEWeight:    0.5,
			TverskyAlpha: 0.3,
			TverskyBeta:  0.7,
		},
		Output: OutputConfig{
			WeightsDir: "Weights",
			LossDir:    "Loss",
			Chart:      "Loss.png",
			MasksDir:   "Masks",
			MaxMasks:   50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
