package cache

import (
	"context"
	"io"

	"github.com/jackzampolin/papercheck/internal/exam"
)

// Layered reads through a fast front cache to a shared back cache and
// promotes back hits into the front.
type Layered struct {
	front Cache
	back  Cache
	counters
}

// NewLayered stacks front over back.
func NewLayered(front, back Cache) *Layered {
	return &Layered{front: front, back: back}
}

// Get implements Cache.
func (l *Layered) Get(ctx context.Context, key string) (*exam.AnalysisResult, bool) {
	if v, ok := l.front.Get(ctx, key); ok {
		l.hits.Add(1)
		return v, true
	}
	v, ok := l.back.Get(ctx, key)
	if !ok {
		l.misses.Add(1)
		return nil, false
	}
	l.front.Put(ctx, key, v)
	l.hits.Add(1)
	return v, true
}

// Put implements Cache.
func (l *Layered) Put(ctx context.Context, key string, value *exam.AnalysisResult) {
	l.front.Put(ctx, key, value)
	l.back.Put(ctx, key, value)
	l.writes.Add(1)
}

// Stats implements Cache. Entries reports the front layer.
func (l *Layered) Stats() Stats {
	fs := l.front.Stats()
	s := l.snapshot("layered", fs.Entries)
	s.Errors = fs.Errors + l.back.Stats().Errors
	return s
}

// Ping checks the back layer when it supports it.
func (l *Layered) Ping(ctx context.Context) error {
	if p, ok := l.back.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close closes the back layer when it holds a connection.
func (l *Layered) Close() error {
	if c, ok := l.back.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
