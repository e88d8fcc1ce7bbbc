package data

import (
	"errors"
	"reflect"
	"testing"
)

func makeDataset(t *testing.T, n int) *Dataset {
	t.Helper()
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = Sample{Image: []float32{float32(i)}, Label: int64(i % 10)}
	}
	return NewDataset("train", samples)
}

func TestSplitPartition(t *testing.T) {
	ds := makeDataset(t, 100)
	train, val, err := Split(ds, 70, 30, 42)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if train.Len() != 70 || val.Len() != 30 {
		t.Fatalf("got sizes %d/%d, want 70/30", train.Len(), val.Len())
	}
	seen := make(map[int]int)
	for _, idx := range append(train.Indices(), val.Indices()...) {
		if idx < 0 || idx >= 100 {
			t.Fatalf("index %d out of range", idx)
		}
		seen[idx]++
	}
	if len(seen) != 100 {
		t.Fatalf("partition covers %d indices, want 100", len(seen))
	}
	for idx, count := range seen {
		if count != 1 {
			t.Fatalf("index %d assigned %d times", idx, count)
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	ds := makeDataset(t, 64)
	train1, val1, err := Split(ds, 48, 16, 7)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	train2, val2, err := Split(ds, 48, 16, 7)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if !reflect.DeepEqual(train1.Indices(), train2.Indices()) {
		t.Fatal("train partition not deterministic for fixed seed")
	}
	if !reflect.DeepEqual(val1.Indices(), val2.Indices()) {
		t.Fatal("val partition not deterministic for fixed seed")
	}
}

func TestSplitBadSizes(t *testing.T) {
	ds := makeDataset(t, 100)
	train, val, err := Split(ds, 60, 30, 1)
	if !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("got error %v, want ErrInvalidSplit", err)
	}
	if train != nil || val != nil {
		t.Fatal("failed split must not return partial subsets")
	}
}

func TestWholeCoversDataset(t *testing.T) {
	ds := makeDataset(t, 5)
	w := Whole(ds)
	if w.Len() != 5 {
		t.Fatalf("got %d samples, want 5", w.Len())
	}
	for i := 0; i < 5; i++ {
		if w.Sample(i).Label != int64(i%10) {
			t.Fatalf("sample %d out of order", i)
		}
	}
}
