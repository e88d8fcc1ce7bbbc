package data

import (
	"errors"
	"reflect"
	"sort"
	"testing"
)

// collectIDs drains one full pass and returns the first pixel of every
// sample in delivery order. Images built by makeDataset store the sample
// index there, so the slice identifies exactly which rows came out.
func collectIDs(t *testing.T, l *Loader) []float32 {
	t.Helper()
	var ids []float32
	for l.Scan() {
		b := l.Minibatch()
		if b.Size() != len(b.Labels) {
			t.Fatalf("batch has %d inputs and %d labels", b.Size(), len(b.Labels))
		}
		for _, img := range b.Inputs {
			ids = append(ids, img[0])
		}
	}
	return ids
}

func newTestLoader(t *testing.T, n, batchSize, workers int, shuffle bool, seed int64) *Loader {
	t.Helper()
	l, err := NewLoader(Whole(makeDataset(t, n)), batchSize, shuffle, workers, seed)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

func TestLoaderBatchCount(t *testing.T) {
	l := newTestLoader(t, 10, 3, 0, false, 0)
	if l.Len() != 4 {
		t.Fatalf("got %d batches, want 4", l.Len())
	}
	var sizes []int
	for l.Scan() {
		sizes = append(sizes, l.Minibatch().Size())
	}
	if !reflect.DeepEqual(sizes, []int{3, 3, 3, 1}) {
		t.Fatalf("got batch sizes %v, want [3 3 3 1]", sizes)
	}
}

func TestLoaderPreservesOrderWithoutShuffle(t *testing.T) {
	l := newTestLoader(t, 10, 4, 0, false, 0)
	ids := collectIDs(t, l)
	for i, id := range ids {
		if id != float32(i) {
			t.Fatalf("position %d holds sample %v, want %d", i, id, i)
		}
	}
}

func TestLoaderSingleSample(t *testing.T) {
	l := newTestLoader(t, 1, 32, 0, false, 0)
	if l.Len() != 1 {
		t.Fatalf("got %d batches, want 1", l.Len())
	}
	if !l.Scan() {
		t.Fatal("expected one batch")
	}
	if got := l.Minibatch().Size(); got != 1 {
		t.Fatalf("got batch size %d, want 1", got)
	}
	if l.Scan() {
		t.Fatal("expected exactly one batch")
	}
}

func TestLoaderEmptySubset(t *testing.T) {
	ds := makeDataset(t, 4)
	_, err := NewLoader(NewSubset(ds, nil), 2, false, 0, 0)
	if !errors.Is(err, ErrEmptySubset) {
		t.Fatalf("got error %v, want ErrEmptySubset", err)
	}
}

func TestLoaderShuffleDeterministic(t *testing.T) {
	a := collectIDs(t, newTestLoader(t, 50, 8, 0, true, 7))
	b := collectIDs(t, newTestLoader(t, 50, 8, 0, true, 7))
	if !reflect.DeepEqual(a, b) {
		t.Fatal("shuffled order not deterministic for fixed seed")
	}
}

func TestLoaderWorkerCountInvariant(t *testing.T) {
	serial := collectIDs(t, newTestLoader(t, 37, 5, 0, true, 3))
	parallel := collectIDs(t, newTestLoader(t, 37, 5, 4, true, 3))
	if !reflect.DeepEqual(serial, parallel) {
		t.Fatal("worker count changed delivery order")
	}
}

func TestLoaderCoverageWithWorkers(t *testing.T) {
	ids := collectIDs(t, newTestLoader(t, 61, 7, 2, true, 11))
	if len(ids) != 61 {
		t.Fatalf("got %d samples, want 61", len(ids))
	}
	seen := make(map[float32]int)
	for _, id := range ids {
		seen[id]++
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("sample %v delivered %d times", id, count)
		}
	}
}

func TestLoaderResetReshuffles(t *testing.T) {
	l := newTestLoader(t, 100, 10, 0, true, 1)
	first := collectIDs(t, l)
	l.Reset()
	second := collectIDs(t, l)
	if len(second) != 100 {
		t.Fatalf("second pass yielded %d samples, want 100", len(second))
	}
	sortedFirst := append([]float32(nil), first...)
	sortedSecond := append([]float32(nil), second...)
	sort.Slice(sortedFirst, func(i, j int) bool { return sortedFirst[i] < sortedFirst[j] })
	sort.Slice(sortedSecond, func(i, j int) bool { return sortedSecond[i] < sortedSecond[j] })
	if !reflect.DeepEqual(sortedFirst, sortedSecond) {
		t.Fatal("passes cover different sample sets")
	}
	if reflect.DeepEqual(first, second) {
		t.Fatal("reset did not produce a fresh permutation")
	}
}

func TestLoaderResetMidPassWithWorkers(t *testing.T) {
	l := newTestLoader(t, 64, 4, 8, true, 5)
	// Abandon many passes after a single batch. Workers from the old pass
	// must not leak batches into, or crash, the pass that replaces them.
	for i := 0; i < 300; i++ {
		if !l.Scan() {
			t.Fatalf("pass %d yielded no batch", i)
		}
		if got := l.Minibatch().Size(); got != 4 {
			t.Fatalf("pass %d: first batch has size %d, want 4", i, got)
		}
		l.Reset()
	}
	ids := collectIDs(t, l)
	if len(ids) != 64 {
		t.Fatalf("final pass yielded %d samples, want 64", len(ids))
	}
	seen := make(map[float32]int)
	for _, id := range ids {
		seen[id]++
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("sample %v delivered %d times in one pass", id, count)
		}
	}
}

func TestLoaderCloseMidPassWithWorkers(t *testing.T) {
	l := newTestLoader(t, 40, 4, 4, true, 2)
	if !l.Scan() {
		t.Fatal("expected a batch")
	}
	l.Close()
	if l.Scan() {
		t.Fatal("closed loader produced a batch")
	}
}

func TestLoaderResetRestartsExhaustedPass(t *testing.T) {
	l := newTestLoader(t, 6, 2, 0, false, 0)
	for l.Scan() {
		l.Minibatch()
	}
	if l.Scan() {
		t.Fatal("exhausted loader must stop scanning")
	}
	l.Reset()
	ids := collectIDs(t, l)
	if len(ids) != 6 {
		t.Fatalf("got %d samples after reset, want 6", len(ids))
	}
}
