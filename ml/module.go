package ml

import (
	"errors"
	"fmt"

	"fashionnet/data"
)

// Errors surfaced by the model and metric layer.
var (
	// ErrShapeMismatch means a batch violated the input/label contract.
	ErrShapeMismatch = errors.New("batch shape mismatch")

	// ErrNoSamples means an accuracy value was requested before any sample
	// was accumulated.
	ErrNoSamples = errors.New("no samples accumulated")

	// ErrDiverged means training produced a NaN or Inf loss.
	ErrDiverged = errors.New("training diverged")

	// ErrIndexOutOfRange means the predicted class index has no name. This
	// indicates a model/class-list width mismatch.
	ErrIndexOutOfRange = errors.New("class index out of range")
)

// EvalResult is the outcome of one evaluation step.
type EvalResult struct {
	Loss    float64
	Correct int64
	Total   int64
}

// Module is the capability set the trainer drives. A training step consumes
// one batch and applies exactly one optimizer update; an eval step mutates
// nothing. Step results come back as return values, never through a global
// logging side channel.
type Module interface {
	// ConfigureOptimizers prepares the optimizer(s). Called once when
	// fitting starts.
	ConfigureOptimizers() error

	// TrainingStep runs forward, loss, backward and one optimizer update,
	// returning the batch loss.
	TrainingStep(b data.Batch) (float64, error)

	// EvalStep runs forward and loss without tracking gradients and reports
	// the prediction counts for accuracy accumulation.
	EvalStep(b data.Batch) (EvalResult, error)

	// SetMode switches between training and evaluation mode.
	SetMode(train bool)
}

// validateBatch enforces the loss-layer contract before any tensor is built:
// inputs and labels must pair up, every input must be a full image, and every
// label must name one of the known classes.
func validateBatch(b data.Batch) error {
	if len(b.Inputs) != len(b.Labels) {
		return fmt.Errorf("%w: %d inputs vs %d labels", ErrShapeMismatch,
			len(b.Inputs), len(b.Labels))
	}
	for i, in := range b.Inputs {
		if len(in) != data.ImageSize {
			return fmt.Errorf("%w: input %d has %d values, want %d",
				ErrShapeMismatch, i, len(in), data.ImageSize)
		}
	}
	for i, label := range b.Labels {
		if label < 0 || label >= NumClasses {
			return fmt.Errorf("%w: label %d at index %d outside [0,%d)",
				ErrShapeMismatch, label, i, NumClasses)
		}
	}
	return nil
}
