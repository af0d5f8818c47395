package store

import (
	"context"
	"io"
	"time"

	"github.com/marmos91/mdus/pkg/metrics"
)

// WithMetrics wraps st so that every Open and Write is reported to m.
//
// Reads are reported when the returned File is closed: the "read" operation
// covers the time the file was open and the bytes actually handed out.
//
// Returns st unchanged if m is nil.
func WithMetrics(st Store, m metrics.StoreMetrics) Store {
	if m == nil {
		return st
	}
	return &instrumentedStore{Store: st, metrics: m}
}

type instrumentedStore struct {
	Store
	metrics metrics.StoreMetrics
}

func (s *instrumentedStore) Open(ctx context.Context, name string) (File, error) {
	start := time.Now()
	f, err := s.Store.Open(ctx, name)
	s.metrics.ObserveOperation("open", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &instrumentedFile{File: f, metrics: s.metrics, opened: time.Now()}, nil
}

func (s *instrumentedStore) Write(ctx context.Context, name string, r io.Reader) (int64, error) {
	start := time.Now()
	n, err := s.Store.Write(ctx, name, r)
	s.metrics.ObserveOperation("write", time.Since(start), err)
	if n > 0 {
		s.metrics.RecordBytes("write", n)
	}
	return n, err
}

// instrumentedFile counts bytes read until Close.
type instrumentedFile struct {
	File
	metrics metrics.StoreMetrics
	opened  time.Time
	read    int64
	readErr error
}

func (f *instrumentedFile) Read(p []byte) (int, error) {
	n, err := f.File.Read(p)
	f.read += int64(n)
	if err != nil && err != io.EOF && f.readErr == nil {
		f.readErr = err
	}
	return n, err
}

func (f *instrumentedFile) Close() error {
	err := f.File.Close()
	f.metrics.ObserveOperation("read", time.Since(f.opened), f.readErr)
	if f.read > 0 {
		f.metrics.RecordBytes("read", f.read)
	}
	return err
}
