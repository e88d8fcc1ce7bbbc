package ml

// Accuracy accumulates prediction counts for one phase of one epoch. Reset
// it at every phase boundary.
type Accuracy struct {
	correct int64
	total   int64
}

// Update adds one step's counts.
func (a *Accuracy) Update(correct, total int64) {
	a.correct += correct
	a.total += total
}

// Value returns correct/total for the phase so far.
func (a *Accuracy) Value() (float64, error) {
	if a.total == 0 {
		return 0, ErrNoSamples
	}
	return float64(a.correct) / float64(a.total), nil
}

// Reset clears the counters for the next phase.
func (a *Accuracy) Reset() {
	a.correct = 0
	a.total = 0
}
