package util

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger is the run logger. Until InitLogger is called it writes to the
// default destination.
var Logger *log.Logger = log.Default()

// InitLogger points Logger (and the stdlib default logger) at stdout plus a
// per-run log file.
func InitLogger(run string) {
	fname := fmt.Sprintf("run_log_%s.txt", run)
	file, err := os.OpenFile(fname, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("cannot open %s, logging to stdout only: %v", fname, err)
		return
	}
	mw := io.MultiWriter(os.Stdout, file)
	Logger = log.New(mw, "", log.LstdFlags)
	log.SetOutput(mw)
}
