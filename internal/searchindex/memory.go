package searchindex

import (
	"context"
	"sync"
	"time"
)

// MemoryIndex is an in-process Index for tests and local development.
type MemoryIndex struct {
	mu       sync.RWMutex
	objects  map[string]Record
	settings Settings
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		objects:  make(map[string]Record),
		settings: DefaultSettings(),
	}
}

func (m *MemoryIndex) SaveObjects(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, r := range records {
		if r.ObjectID == "" {
			return ErrMissingObjectID
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.objects[r.ObjectID] = r
	}
	return nil
}

func (m *MemoryIndex) DeleteObject(ctx context.Context, objectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectID)
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, q Query) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	start := time.Now()
	q = q.normalized()
	ts := terms(q.Text)

	m.mu.RLock()
	attrs := m.settings.SearchableAttributes
	matches := make([]scored, 0, len(m.objects))
	for _, r := range m.objects {
		if score, ok := rank(r, ts, attrs); ok {
			matches = append(matches, scored{rec: r, score: score})
		}
	}
	m.mu.RUnlock()

	res := paginate(matches, q)
	res.ProcessingTimeMS = int(time.Since(start).Milliseconds())
	return res, nil
}

func (m *MemoryIndex) SetSettings(_ context.Context, s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
	return nil
}

// Get returns a stored object. It exists for tests and diagnostics.
func (m *MemoryIndex) Get(objectID string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.objects[objectID]
	return r, ok
}

// Len reports the number of stored objects.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
