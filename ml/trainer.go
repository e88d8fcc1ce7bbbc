package ml

import (
	"fmt"
	"log"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"fashionnet/data"
	"fashionnet/util"
)

// State is the trainer's lifecycle position.
type State int

const (
	Idle State = iota
	Fitting
	Validating
	Testing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fitting:
		return "fitting"
	case Validating:
		return "validating"
	case Testing:
		return "testing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// EpochStats is the scalar record of one completed epoch.
type EpochStats struct {
	Epoch     int
	TrainLoss float64
	ValLoss   float64
	ValAcc    float64
}

// Trainer drives a Module through epochs of training and validation, then
// evaluation on the held-out set. One goroutine owns the trainer; the only
// concurrent entry point is Stop.
type Trainer struct {
	cfg   Config
	mod   Module
	state State
	epoch int

	lastTrainLoss float64
	history       []EpochStats
	stop          chan struct{}
}

// NewTrainer wires a module to its configuration. An unset LogEvery falls
// back to the default interval.
func NewTrainer(cfg Config, mod Module) *Trainer {
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 100
	}
	return &Trainer{
		cfg:  cfg,
		mod:  mod,
		stop: make(chan struct{}),
	}
}

// State reports the current lifecycle state.
func (t *Trainer) State() State { return t.state }

// History returns the per-epoch records accumulated so far.
func (t *Trainer) History() []EpochStats { return t.history }

// Stop requests early termination. The in-flight batch always completes;
// the pending validation pass and remaining epochs are skipped. Safe to call
// from any goroutine.
func (t *Trainer) Stop() {
	select {
	case <-t.stop:
	default:
		close(t.stop)
	}
}

func (t *Trainer) stopped() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

// Fit trains for up to MaxEpochs epochs, validating after each. It may be
// called once; Done is terminal for fitting.
func (t *Trainer) Fit(train, val *data.Loader) error {
	if t.state != Idle {
		return fmt.Errorf("trainer: fit from state %s", t.state)
	}
	if train == nil || val == nil {
		t.state = Failed
		return fmt.Errorf("trainer: fit needs train and validation loaders")
	}
	if err := t.mod.ConfigureOptimizers(); err != nil {
		t.state = Failed
		return err
	}

	for epoch := 1; epoch <= t.cfg.MaxEpochs; epoch++ {
		t.epoch = epoch
		if epoch > 1 {
			train.Reset()
			val.Reset()
		}

		if err := t.fitEpoch(epoch, train); err != nil {
			t.state = Failed
			return err
		}
		if t.stopped() {
			log.Printf("Stop requested; ending after epoch %d", epoch)
			break
		}

		t.state = Validating
		valLoss, correct, total, err := t.evaluate(val)
		if err != nil {
			t.state = Failed
			return err
		}
		stats := EpochStats{
			Epoch:     epoch,
			TrainLoss: t.lastTrainLoss,
			ValLoss:   valLoss,
			ValAcc:    float64(correct) / float64(total),
		}
		t.history = append(t.history, stats)
		util.LogScalar(epoch, "val", "loss", stats.ValLoss)
		util.LogScalar(epoch, "val", "accuracy", stats.ValAcc)
		log.Printf("Epoch %d: train loss %.4f, val loss %.4f, val accuracy %.2f%%",
			epoch, stats.TrainLoss, stats.ValLoss, 100*stats.ValAcc)
	}

	t.state = Done
	t.logSummary()
	return nil
}

// fitEpoch runs one full pass over the training loader: exactly one
// optimizer step per batch, in batch order.
func (t *Trainer) fitEpoch(epoch int, train *data.Loader) error {
	t.state = Fitting
	t.mod.SetMode(true)

	var lossSum float64
	var steps int
	samples := 0
	startTime := time.Now()

	for train.Scan() {
		b := train.Minibatch()
		loss, err := t.mod.TrainingStep(b)
		if err != nil {
			return fmt.Errorf("epoch %d step %d: %w", epoch, steps+1, err)
		}
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return fmt.Errorf("%w: loss %v at epoch %d step %d",
				ErrDiverged, loss, epoch, steps+1)
		}
		lossSum += loss
		steps++
		samples += b.Size()

		if steps%t.cfg.LogEvery == 0 {
			log.Printf("Epoch %d step %d: running loss %.4f", epoch, steps, lossSum/float64(steps))
		}
		if t.stopped() {
			break
		}
	}
	if steps == 0 {
		return fmt.Errorf("epoch %d: training loader produced no batches", epoch)
	}

	t.lastTrainLoss = lossSum / float64(steps)
	util.LogScalar(epoch, "train", "loss", t.lastTrainLoss)
	throughput := float64(samples) / time.Since(startTime).Seconds()
	log.Printf("Train epoch %d: loss %.4f, throughput %.0f samples/sec",
		epoch, t.lastTrainLoss, throughput)
	return nil
}

// Test evaluates on the held-out loader and reports a single (loss, accuracy)
// pair. It never mutates parameters and may be called repeatedly once the
// trainer is Done, or on a fresh trainer wrapping a pre-trained module.
func (t *Trainer) Test(test *data.Loader) (EvalResult, error) {
	if t.state != Done && t.state != Idle {
		return EvalResult{}, fmt.Errorf("trainer: test from state %s", t.state)
	}
	prev := t.state
	t.state = Testing
	loss, correct, total, err := t.evaluate(test)
	t.state = prev
	if err != nil {
		return EvalResult{}, err
	}
	res := EvalResult{Loss: loss, Correct: correct, Total: total}
	acc := float64(correct) / float64(total)
	util.LogScalar(t.epoch, "test", "loss", loss)
	util.LogScalar(t.epoch, "test", "accuracy", acc)
	log.Printf("Test: loss %.4f, accuracy %.2f%%", loss, 100*acc)
	test.Reset()
	return res, nil
}

// evaluate runs one full evaluation pass, returning the mean loss and the
// accumulated prediction counts.
func (t *Trainer) evaluate(loader *data.Loader) (float64, int64, int64, error) {
	t.mod.SetMode(false)
	defer t.mod.SetMode(true)

	var acc Accuracy
	var lossSum float64
	var steps int
	for loader.Scan() {
		res, err := t.mod.EvalStep(loader.Minibatch())
		if err != nil {
			return 0, 0, 0, err
		}
		lossSum += res.Loss
		steps++
		acc.Update(res.Correct, res.Total)
	}
	if _, err := acc.Value(); err != nil {
		return 0, 0, 0, fmt.Errorf("evaluation pass: %w", err)
	}
	return lossSum / float64(steps), acc.correct, acc.total, nil
}

// logSummary reports aggregate fit statistics once training finishes.
func (t *Trainer) logSummary() {
	if len(t.history) == 0 {
		return
	}
	accs := make([]float64, len(t.history))
	for i, h := range t.history {
		accs[i] = h.ValAcc
	}
	best := floats.MaxIdx(accs)
	log.Printf("Fit done after %d epochs: mean val accuracy %.2f%%, best epoch %d at %.2f%%",
		len(t.history), 100*stat.Mean(accs, nil), t.history[best].Epoch, 100*accs[best])
}
