// Package tassert is a minimal test-assertion helper in the shape of the
// teacher's own in-house tools/tassert package (referenced throughout its
// *_test.go files, e.g. transport/stream_bundle_test.go) -- hand-rolled
// rather than pulled in from testify, matching how the teacher itself
// treats this concern as in-house tooling, not a dependency.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package tassert

import "testing"

// Fatal fails the test immediately if cond is false.
func Fatal(t *testing.T, cond bool, args ...any) {
	t.Helper()
	if !cond {
		t.Fatal(args...)
	}
}

// Fatalf is Fatal with a format string.
func Fatalf(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

// Errorf records a non-fatal failure if cond is false.
func Errorf(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Errorf(format, args...)
	}
}

// CheckFatal fails the test immediately if err is non-nil.
func CheckFatal(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
