package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jackzampolin/papercheck/internal/exam"
)

// Memory is an in-process cache. Values are cloned on the way in and out.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	counters
}

type memoryEntry struct {
	value    *exam.AnalysisResult
	storedAt time.Time
}

// NewMemory creates a memory cache. A zero ttl never expires entries and a
// zero maxEntries never evicts.
func NewMemory(ttl time.Duration, maxEntries int) *Memory {
	return &Memory{
		entries:    make(map[string]memoryEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) (*exam.AnalysisResult, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		m.misses.Add(1)
		return nil, false
	}
	if m.expired(e) {
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && m.expired(cur) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		m.misses.Add(1)
		return nil, false
	}
	m.hits.Add(1)
	return e.value.Clone(), true
}

// Put implements Cache. Writing an existing key replaces it.
func (m *Memory) Put(_ context.Context, key string, value *exam.AnalysisResult) {
	if value == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; !exists && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.evictLocked()
	}
	m.entries[key] = memoryEntry{value: value.Clone(), storedAt: m.now()}
	m.writes.Add(1)
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stats implements Cache.
func (m *Memory) Stats() Stats {
	return m.snapshot("memory", m.Len())
}

func (m *Memory) expired(e memoryEntry) bool {
	return m.ttl > 0 && m.now().Sub(e.storedAt) > m.ttl
}

// evictLocked drops expired entries, then the oldest entry if still full.
func (m *Memory) evictLocked() {
	var oldestKey string
	var oldest time.Time
	for k, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, k)
			continue
		}
		if oldestKey == "" || e.storedAt.Before(oldest) {
			oldestKey, oldest = k, e.storedAt
		}
	}
	if len(m.entries) >= m.maxEntries && oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}
