// Package transport provides the item codec used when a layer graph crosses
// a process boundary (core.ProcessHost): a length-prefixed frame format,
// jsoniter payload encoding, and optional LZ4 compression -- the same
// pairing the teacher's transport/bundle package uses for its own
// cross-node streams (json-iterator for control messages, LZ4 for the
// object body), adapted here to a single item-at-a-time pipe instead of an
// HTTP stream.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"bufio"
	"encoding/binary"
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pierrec/lz4/v3"
	"github.com/pkg/errors"
)

var jsonAPI = jsoniter.ConfigFastest

// wireKind mirrors core's item kind tags across the process boundary
// without importing the core package (transport sits below core).
type wireKind int

const (
	wireData wireKind = iota
	wireNone
	wireStop
)

type frame struct {
	Kind  wireKind `json:"k"`
	Value any      `json:"v,omitempty"`
}

// Encoder writes framed, optionally LZ4-compressed, jsoniter-encoded items
// to an underlying writer (a process's stdin/stdout pipe).
type Encoder struct {
	mu       sync.Mutex
	w        *bufio.Writer
	compress bool
	lenHdr   [4]byte
}

func NewEncoder(w io.Writer, compress bool) *Encoder {
	return &Encoder{w: bufio.NewWriter(w), compress: compress}
}

// Send marshals and writes one frame. kind/value follow core.Item's tags
// (0=data, 1=none, 2=stop); value is ignored for none/stop.
func (e *Encoder) Send(kind int, value any) error {
	body, err := jsonAPI.Marshal(frame{Kind: wireKind(kind), Value: value})
	if err != nil {
		return errors.WithStack(err)
	}
	if e.compress {
		body, err = compress(body)
		if err != nil {
			return errors.WithStack(err)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	binary.BigEndian.PutUint32(e.lenHdr[:], uint32(len(body)))
	if _, err := e.w.Write(e.lenHdr[:]); err != nil {
		return errors.WithStack(err)
	}
	if _, err := e.w.Write(body); err != nil {
		return errors.WithStack(err)
	}
	return e.w.Flush()
}

// Decoder reads frames written by an Encoder on the other end of the pipe.
type Decoder struct {
	r        *bufio.Reader
	compress bool
}

func NewDecoder(r io.Reader, compress bool) *Decoder {
	return &Decoder{r: bufio.NewReader(r), compress: compress}
}

// Recv blocks for the next frame, returning its kind tag and value.
func (d *Decoder) Recv() (kind int, value any, err error) {
	var hdr [4]byte
	if _, err = io.ReadFull(d.r, hdr[:]); err != nil {
		return 0, nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	body := make([]byte, n)
	if _, err = io.ReadFull(d.r, body); err != nil {
		return 0, nil, errors.WithStack(err)
	}
	if d.compress {
		if body, err = decompress(body); err != nil {
			return 0, nil, errors.WithStack(err)
		}
	}
	var f frame
	if err = jsonAPI.Unmarshal(body, &f); err != nil {
		return 0, nil, errors.WithStack(err)
	}
	return int(f.Kind), f.Value, nil
}

func compress(b []byte) ([]byte, error) {
	var buf sizedWriter
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.buf, nil
}

func decompress(b []byte) ([]byte, error) {
	zr := lz4.NewReader(newByteReader(b))
	return io.ReadAll(zr)
}

// sizedWriter and byteReader are tiny local adapters so the lz4 framing
// above needs neither bytes.Buffer ceremony nor an extra dependency.
type sizedWriter struct{ buf []byte }

func (s *sizedWriter) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

type byteReader struct {
	b   []byte
	off int
}

func newByteReader(b []byte) *byteReader { return &byteReader{b: b} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.off >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.off:])
	r.off += n
	return n, nil
}

// Wire tag constants re-exported for core's adapter, keeping core free of
// any direct jsoniter/lz4 import.
const (
	KindData = int(wireData)
	KindNone = int(wireNone)
	KindStop = int(wireStop)
)
