package data

import (
	"fmt"
	"math/rand"
	"sync"
)

// Batch is a group of samples stacked for one training or evaluation step.
// Inputs rows alias the dataset's sample buffers and must be treated as
// read-only.
type Batch struct {
	Inputs [][]float32
	Labels []int64
}

// Size returns the number of samples in the batch.
func (b Batch) Size() int { return len(b.Labels) }

type indexedBatch struct {
	idx   int
	batch Batch
}

// Loader iterates a subset in fixed-size batches with the Scan/Minibatch
// idiom of gotorch's image loader. A pass yields ceil(n/batchSize) batches;
// the final batch may be short. When shuffling, every pass draws a fresh
// permutation seeded from (seed, pass) so a run is reproducible end to end.
//
// Workers only affect how batches are materialized: results are reassembled
// in batch order, so contents and ordering are identical for any worker
// count.
type Loader struct {
	subset    *Subset
	batchSize int
	shuffle   bool
	workers   int
	seed      int64

	pass    int
	batches [][]int
	next    int
	cur     Batch

	results chan indexedBatch
	pending map[int]Batch
	quit    chan struct{}
	wg      *sync.WaitGroup
}

// NewLoader prepares a loader over subset. The first pass starts immediately;
// call Reset to begin another.
func NewLoader(subset *Subset, batchSize int, shuffle bool, workers int, seed int64) (*Loader, error) {
	if subset == nil || subset.Len() == 0 {
		return nil, fmt.Errorf("%w: loader needs at least one sample", ErrEmptySubset)
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("loader: batch size must be > 0 (got %d)", batchSize)
	}
	l := &Loader{
		subset:    subset,
		batchSize: batchSize,
		shuffle:   shuffle,
		workers:   workers,
		seed:      seed,
	}
	l.start()
	return l, nil
}

// Len returns the number of batches in one pass.
func (l *Loader) Len() int {
	n := l.subset.Len()
	return (n + l.batchSize - 1) / l.batchSize
}

// Reset abandons the current pass and begins a fresh one.
func (l *Loader) Reset() {
	l.stopWorkers()
	l.pass++
	l.start()
}

// Close stops any worker goroutines. The loader is not usable afterwards.
func (l *Loader) Close() {
	l.stopWorkers()
	l.next = len(l.batches)
}

// Scan advances to the next batch, returning false when the pass is done.
func (l *Loader) Scan() bool {
	if l.next >= len(l.batches) {
		return false
	}
	if l.results == nil {
		l.cur = l.materialize(l.batches[l.next])
		l.next++
		return true
	}
	for {
		if b, ok := l.pending[l.next]; ok {
			delete(l.pending, l.next)
			l.cur = b
			l.next++
			return true
		}
		ib, ok := <-l.results
		if !ok {
			return false
		}
		l.pending[ib.idx] = ib.batch
	}
}

// Minibatch returns the batch selected by the last successful Scan.
func (l *Loader) Minibatch() Batch { return l.cur }

func (l *Loader) start() {
	order := make([]int, l.subset.Len())
	for i := range order {
		order[i] = i
	}
	if l.shuffle {
		rng := rand.New(rand.NewSource(l.seed + int64(l.pass)))
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	// Each pass gets its own batch slice: a worker from an abandoned pass
	// must never observe the next pass's chunks.
	batches := make([][]int, 0, (len(order)+l.batchSize-1)/l.batchSize)
	for start := 0; start < len(order); start += l.batchSize {
		end := start + l.batchSize
		if end > len(order) {
			end = len(order)
		}
		batches = append(batches, order[start:end])
	}
	l.batches = batches
	l.next = 0

	if l.workers <= 0 {
		l.results = nil
		l.pending = nil
		return
	}

	// The goroutines capture this pass's channels and batches as
	// parameters, never the loader fields, so Reset can rebuild the fields
	// while old-pass goroutines are still draining.
	quit := make(chan struct{})
	results := make(chan indexedBatch, l.workers*2)
	jobs := make(chan int, l.workers)
	wg := new(sync.WaitGroup)
	for w := 0; w < l.workers; w++ {
		wg.Add(1)
		go func(batches [][]int, jobs <-chan int, results chan<- indexedBatch, quit <-chan struct{}) {
			defer wg.Done()
			for j := range jobs {
				select {
				case results <- indexedBatch{idx: j, batch: l.materialize(batches[j])}:
				case <-quit:
					return
				}
			}
		}(batches, jobs, results, quit)
	}
	go func(n int, quit <-chan struct{}) {
		defer close(jobs)
		for j := 0; j < n; j++ {
			select {
			case jobs <- j:
			case <-quit:
				return
			}
		}
	}(len(batches), quit)
	go func(wg *sync.WaitGroup, results chan indexedBatch) {
		wg.Wait()
		close(results)
	}(wg, results)

	l.quit = quit
	l.results = results
	l.pending = make(map[int]Batch, l.workers)
	l.wg = wg
}

// stopWorkers signals the current pass's goroutines and waits for them to
// exit, so a following start never overlaps two passes.
func (l *Loader) stopWorkers() {
	if l.quit != nil {
		close(l.quit)
		l.wg.Wait()
		l.quit = nil
		l.wg = nil
	}
	l.results = nil
	l.pending = nil
}

func (l *Loader) materialize(idxs []int) Batch {
	b := Batch{
		Inputs: make([][]float32, len(idxs)),
		Labels: make([]int64, len(idxs)),
	}
	for i, idx := range idxs {
		s := l.subset.Sample(idx)
		b.Inputs[i] = s.Image
		b.Labels[i] = s.Label
	}
	return b
}
