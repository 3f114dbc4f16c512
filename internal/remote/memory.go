package remote

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	offline     bool
	puts        int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]Document)}
}

// SetOffline simulates losing connectivity. While offline every call
// returns ErrRemoteUnavailable.
func (m *MemoryStore) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// Puts counts accepted writes.
func (m *MemoryStore) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// Get returns a stored document.
func (m *MemoryStore) Get(collection, id string) (Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[collection][id]
	return doc, ok
}

func (m *MemoryStore) Put(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return ErrRemoteUnavailable
	}
	coll, ok := m.collections[doc.Collection]
	if !ok {
		coll = make(map[string]Document)
		m.collections[doc.Collection] = coll
	}
	if cur, ok := coll[doc.ID]; ok && cur.AuditTime.After(doc.AuditTime) {
		return fmt.Errorf("%w: %s", ErrStaleWrite, doc.Path())
	}
	doc.Fields = maps.Clone(doc.Fields)
	coll[doc.ID] = doc
	m.puts++
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.offline {
		return nil, ErrRemoteUnavailable
	}

	var out []Document
	for _, doc := range m.collections[q.Collection] {
		match, err := matches(doc, q.Filters)
		if err != nil {
			return nil, err
		}
		if match {
			doc.Fields = maps.Clone(doc.Fields)
			out = append(out, doc)
		}
	}

	slices.SortFunc(out, func(a, b Document) int {
		if q.OrderBy != "" {
			if c, ok := compare(a.Fields[q.OrderBy], b.Fields[q.OrderBy]); ok && c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matches(doc Document, filters []Filter) (bool, error) {
	for _, f := range filters {
		v, ok := doc.Fields[f.Field]
		if !ok {
			return false, nil
		}
		c, comparable := compare(v, f.Value)
		if !comparable {
			return false, nil
		}
		switch f.Op {
		case OpEqual:
			if c != 0 {
				return false, nil
			}
		case OpGreaterEqual:
			if c < 0 {
				return false, nil
			}
		case OpLess:
			if c >= 0 {
				return false, nil
			}
		default:
			return false, fmt.Errorf("%w: %q", ErrUnsupportedFilter, f.Op)
		}
	}
	return true, nil
}

func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return cmp.Compare(x, y), ok
	case time.Time:
		y, ok := b.(time.Time)
		return x.Compare(y), ok
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if x == y {
			return 0, true
		}
		if !x {
			return -1, true
		}
		return 1, true
	}
	x, ok := toFloat(a)
	if !ok {
		return 0, false
	}
	y, ok := toFloat(b)
	if !ok {
		return 0, false
	}
	return cmp.Compare(x, y), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
