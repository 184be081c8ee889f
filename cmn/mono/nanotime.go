// Package mono provides low-level time helpers used for FPS accounting and
// backoff scheduling.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

// NanoTime returns the wall-clock time in nanoseconds since the Unix epoch
// (time.Now().UnixNano()). The value carries no monotonic-clock reading, so
// a difference between two calls is skewed by any wall-clock adjustment
// made in between.
func NanoTime() int64 { return time.Now().UnixNano() }

// Since returns the elapsed duration since a NanoTime() reading.
func Since(t int64) time.Duration { return time.Duration(NanoTime() - t) }
