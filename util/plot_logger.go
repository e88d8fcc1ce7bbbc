package util

import (
	"fmt"
	"log"
	"os"
)

// PlotLogger receives the scalar training records. It is separate from the
// run logger so the scalar stream stays machine-readable.
var PlotLogger *log.Logger = log.New(os.Stdout, "", 0)

// InitPlotLogger points PlotLogger at plot_logs_<run>.txt, opened in append
// mode: records from a run that later fails stay on disk and readable.
func InitPlotLogger(run string) error {
	fname := fmt.Sprintf("plot_logs_%s.txt", run)
	file, err := os.OpenFile(fname, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", fname, err)
	}
	PlotLogger = log.New(file, "", 0)
	return nil
}

// LogScalar appends one scalar record keyed by epoch and phase.
func LogScalar(epoch int, phase, name string, value float64) {
	PlotLogger.Printf("epoch=%d phase=%s %s=%.6f", epoch, phase, name, value)
}
