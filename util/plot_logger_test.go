package util

import (
	"bytes"
	"log"
	"testing"
)

func TestLogScalarFormat(t *testing.T) {
	var buf bytes.Buffer
	prev := PlotLogger
	PlotLogger = log.New(&buf, "", 0)
	defer func() { PlotLogger = prev }()

	LogScalar(3, "val", "accuracy", 0.8215)
	if got, want := buf.String(), "epoch=3 phase=val accuracy=0.821500\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
