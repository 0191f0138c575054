package main

import (
	"io"
	"log"

	"github.com/dogmatiq/dodeca/logging"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger returns the logger described by cfg.
//
// Messages are always written to stderr. If cfg.File is set they are also
// written to that file, which is rotated by size. The returned function
// closes the log file.
func newLogger(cfg logConfig, stderr io.Writer) (logging.Logger, func() error) {
	w := stderr
	closeFile := func() error { return nil }

	if cfg.File != "" {
		f := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}

		w = io.MultiWriter(stderr, f)
		closeFile = f.Close
	}

	return &logging.StandardLogger{
		Target:       log.New(w, "", log.LstdFlags),
		CaptureDebug: cfg.Debug,
	}, closeFile
}
