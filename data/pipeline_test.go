package data

import "testing"

func TestPipelineSetup(t *testing.T) {
	srv, _ := newMirror(t, 30, 10)
	src := newTestSource(t, srv, 30, 10)

	p := NewPipeline(src, PipelineOptions{
		BatchSize: 4,
		Seed:      1,
		TrainSize: 20,
		ValSize:   10,
	})
	if err := p.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() {
		p.Train().Close()
		p.Val().Close()
		p.Test().Close()
	})

	if got := p.Train().Len(); got != 5 {
		t.Fatalf("train loader has %d batches, want 5", got)
	}
	if got := p.Val().Len(); got != 3 {
		t.Fatalf("val loader has %d batches, want 3", got)
	}
	if got := p.Test().Len(); got != 3 {
		t.Fatalf("test loader has %d batches, want 3", got)
	}

	// The validation loader never shuffles, so two passes deliver the
	// same order.
	first := collectIDs(t, p.Val())
	p.Val().Reset()
	second := collectIDs(t, p.Val())
	if len(first) != 10 || len(second) != 10 {
		t.Fatalf("val passes yielded %d and %d samples, want 10", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("validation order changed between passes")
		}
	}
}

func TestPipelineRejectsBadPartition(t *testing.T) {
	srv, _ := newMirror(t, 30, 10)
	src := newTestSource(t, srv, 30, 10)

	p := NewPipeline(src, PipelineOptions{
		BatchSize: 4,
		TrainSize: 25,
		ValSize:   10,
	})
	if err := p.Setup(); err == nil {
		t.Fatal("Setup accepted a partition larger than the dataset")
	}
}
