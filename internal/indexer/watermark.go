package indexer

import (
	"context"
	"sync"
	"time"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
)

// WatermarkStore tracks, per (scope key, source type), the timestamp of
// the most recently indexed source item. Watermarks are monotonically
// non-decreasing: Set with an older timestamp is a no-op. A missing
// watermark reads as the zero time.
type WatermarkStore interface {
	GetWatermark(ctx context.Context, scopeKey string, sourceType chunking.SourceType) (time.Time, error)
	SetWatermark(ctx context.Context, scopeKey string, sourceType chunking.SourceType, ts time.Time) error
}

type watermarkKey struct {
	scope      string
	sourceType chunking.SourceType
}

// MemoryWatermarks is an in-process WatermarkStore.
type MemoryWatermarks struct {
	mu    sync.RWMutex
	marks map[watermarkKey]time.Time
}

var _ WatermarkStore = (*MemoryWatermarks)(nil)

func NewMemoryWatermarks() *MemoryWatermarks {
	return &MemoryWatermarks{marks: make(map[watermarkKey]time.Time)}
}

func (m *MemoryWatermarks) GetWatermark(ctx context.Context, scopeKey string, sourceType chunking.SourceType) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.marks[watermarkKey{scopeKey, sourceType}], nil
}

func (m *MemoryWatermarks) SetWatermark(ctx context.Context, scopeKey string, sourceType chunking.SourceType, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := watermarkKey{scopeKey, sourceType}
	if ts.After(m.marks[key]) {
		m.marks[key] = ts
	}
	return nil
}
