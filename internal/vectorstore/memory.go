package vectorstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
)

// identityKey is the uniqueness key of an indexed document.
type identityKey struct {
	tenant     string
	sourceType chunking.SourceType
	sourceID   string
	chunkID    string
}

// MemoryStore is an in-process Store keyed by document identity. It
// serves tests and single-process deployments; similarity search always
// uses the in-process cosine path.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[identityKey]IndexedDocument
	now  func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[identityKey]IndexedDocument),
		now:  time.Now,
	}
}

// HashContent returns the hex SHA-256 of chunk content, the stored
// content hash format shared by every Store implementation.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func (m *MemoryStore) UpsertChunks(ctx context.Context, tenantID string, docs []IndexedDocument) (int, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, doc := range docs {
		doc.TenantID = tenantID
		doc.ContentHash = HashContent(doc.Content)
		key := identityKey{tenantID, doc.SourceType, doc.SourceID, doc.ChunkID}
		if existing, ok := m.docs[key]; ok {
			doc.CreatedAt = existing.CreatedAt
		} else {
			doc.CreatedAt = now
		}
		doc.UpdatedAt = now
		m.docs[key] = doc
	}
	return len(docs), nil
}

func (m *MemoryStore) GetSourceFingerprint(ctx context.Context, tenantID string, sourceType chunking.SourceType, sourceID string) (string, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for key, doc := range m.docs {
		if key.tenant == tenantID && key.sourceType == sourceType && key.sourceID == sourceID {
			return doc.Fingerprint, nil
		}
	}
	return "", nil
}

func (m *MemoryStore) DeleteBySource(ctx context.Context, tenantID string, sourceType chunking.SourceType, sourceID string) (int, error) {
	return m.deleteWhere(tenantID, func(k identityKey) bool {
		return k.sourceType == sourceType && k.sourceID == sourceID
	})
}

func (m *MemoryStore) DeleteBySourceType(ctx context.Context, tenantID string, sourceType chunking.SourceType) (int, error) {
	return m.deleteWhere(tenantID, func(k identityKey) bool {
		return k.sourceType == sourceType
	})
}

func (m *MemoryStore) DeleteByTenant(ctx context.Context, tenantID string) (int, error) {
	return m.deleteWhere(tenantID, func(identityKey) bool { return true })
}

func (m *MemoryStore) deleteWhere(tenantID string, match func(identityKey) bool) (int, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for key := range m.docs {
		if key.tenant == tenantID && match(key) {
			delete(m.docs, key)
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) SimilaritySearch(ctx context.Context, tenantID string, query []float32, opts SearchOptions) ([]SearchResult, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	candidates := make([]IndexedDocument, 0, len(m.docs))
	for key, doc := range m.docs {
		if key.tenant != tenantID {
			continue
		}
		if !MatchesFilter(doc, opts.Filter) {
			continue
		}
		candidates = append(candidates, doc)
	}
	m.mu.RUnlock()

	return RankBySimilarity(candidates, query, opts), nil
}

// Count returns the number of stored documents for a tenant.
func (m *MemoryStore) Count(tenantID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for key := range m.docs {
		if key.tenant == tenantID {
			n++
		}
	}
	return n
}

func (m *MemoryStore) Close() error { return nil }
