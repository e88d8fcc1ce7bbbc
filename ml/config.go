package ml

import (
	"errors"
	"fmt"
)

// Config is the immutable hyperparameter snapshot for one run. It is
// constructed once in main and handed to every component; nothing mutates it
// after Validate.
type Config struct {
	DataDir      string
	BatchSize    int
	MaxEpochs    int
	LearningRate float64
	NumWorkers   int
	Seed         int64

	// Devices lists accelerator ids. Empty means CPU (or the default CUDA
	// device when available); more than one enables data-parallel replicas.
	Devices []int

	// LogEvery is the training-step interval for running-loss log lines.
	LogEvery int

	// TrainSize/ValSize partition the 60000-sample training split.
	TrainSize int
	ValSize   int
}

// DefaultConfig mirrors the reference run: batch 64, five epochs, SGD at
// 1e-3, 50000/10000 split.
func DefaultConfig() Config {
	return Config{
		DataDir:      "./data/fashion",
		BatchSize:    64,
		MaxEpochs:    5,
		LearningRate: 1e-3,
		NumWorkers:   0,
		Seed:         1,
		LogEvery:     100,
		TrainSize:    50000,
		ValSize:      10000,
	}
}

// Validate verifies the config is runnable. It never modifies the config.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.DataDir == "" {
		return errors.New("data dir must be set")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.MaxEpochs <= 0 {
		return fmt.Errorf("max_epochs must be > 0 (got %d)", c.MaxEpochs)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0 (got %g)", c.LearningRate)
	}
	if c.NumWorkers < 0 {
		return fmt.Errorf("num_workers must be >= 0 (got %d)", c.NumWorkers)
	}
	if c.TrainSize <= 0 || c.ValSize <= 0 {
		return fmt.Errorf("split sizes must be > 0 (got %d/%d)", c.TrainSize, c.ValSize)
	}
	for _, d := range c.Devices {
		if d < 0 {
			return fmt.Errorf("device ids must be >= 0 (got %d)", d)
		}
	}
	return nil
}
