package main

import (
	"fmt"
	"io"
	"os"
)

type Logger interface {
	Debug(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
	Printf(format string, v ...interface{})
	Fatal(format string, v ...interface{})
}

// log levels, in increasing order of verbosity
const (
	LevelError = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

type logger struct {
	level  int
	out    io.Writer
	errout io.Writer
}

// make sure it implements Logger
var _ Logger = (*logger)(nil)

// NewLogger returns a Logger that drops anything more verbose than level.
// Warnings and errors go to stderr, everything else to stdout.
func NewLogger(level int) Logger {
	return &logger{level: level, out: os.Stdout, errout: os.Stderr}
}

func (l *logger) Debug(format string, v ...interface{}) {
	if l.level >= LevelDebug {
		fmt.Fprintf(l.out, format, v...)
	}
}

func (l *logger) Info(format string, v ...interface{}) {
	if l.level >= LevelInfo {
		fmt.Fprintf(l.out, format, v...)
	}
}

func (l *logger) Warn(format string, v ...interface{}) {
	if l.level >= LevelWarn {
		fmt.Fprintf(l.errout, format, v...)
	}
}

func (l *logger) Error(format string, v ...interface{}) {
	fmt.Fprintf(l.errout, format, v...)
}

// Printf always prints; it's used for output the user asked for (like the print sender).
func (l *logger) Printf(format string, v ...interface{}) {
	fmt.Fprintf(l.out, format, v...)
}

func (l *logger) Fatal(format string, v ...interface{}) {
	fmt.Fprintf(l.errout, format, v...)
	os.Exit(1)
}
