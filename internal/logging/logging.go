// Package logging wires component loggers to a rotated log file.
//
// Components keep using *log.Logger with a bracketed prefix:
//
//	logs := logging.New(logging.Options{File: cfg.LogFile, Verbose: verbose})
//	defer logs.Close()
//	syncLog := logs.Logger("sync")
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures log output.
type Options struct {
	// File is the log file path; empty disables file logging
	File string

	// MaxSizeMB rotates the file at this size (default: 5)
	MaxSizeMB int

	// MaxBackups is how many rotated files to keep (default: 3)
	MaxBackups int

	// MaxAgeDays drops rotated files older than this (default: 28)
	MaxAgeDays int

	// Verbose also writes to stderr
	Verbose bool
}

// Logs hands out component loggers sharing one output.
type Logs struct {
	out  io.Writer
	file *lumberjack.Logger
}

// New creates the shared output. With no file and no verbose flag every
// logger discards its output.
func New(opts Options) *Logs {
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 5
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 3
	}
	if opts.MaxAgeDays <= 0 {
		opts.MaxAgeDays = 28
	}

	l := &Logs{}
	var writers []io.Writer
	if opts.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		writers = append(writers, l.file)
	}
	if opts.Verbose {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		l.out = io.Discard
	case 1:
		l.out = writers[0]
	default:
		l.out = io.MultiWriter(writers...)
	}
	return l
}

// Logger returns a logger prefixed with "[component] ".
func (l *Logs) Logger(component string) *log.Logger {
	return log.New(l.out, "["+component+"] ", log.LstdFlags)
}

// Close flushes and closes the log file.
func (l *Logs) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
