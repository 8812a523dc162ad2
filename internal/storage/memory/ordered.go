package memory

import (
	"slices"
	"strings"
)

// orderedMap keeps string keys sorted so scans are ascending without a
// per-call sort. Not safe for concurrent use; Store guards it.
type orderedMap[V any] struct {
	keys []string
	vals map[string]V
}

func newOrderedMap[V any]() *orderedMap[V] {
	return &orderedMap[V]{vals: make(map[string]V)}
}

func (m *orderedMap[V]) Len() int { return len(m.keys) }

func (m *orderedMap[V]) Get(k string) (V, bool) {
	v, ok := m.vals[k]
	return v, ok
}

func (m *orderedMap[V]) Put(k string, v V) {
	if _, ok := m.vals[k]; !ok {
		i, _ := slices.BinarySearch(m.keys, k)
		m.keys = slices.Insert(m.keys, i, k)
	}
	m.vals[k] = v
}

// Slice returns up to limit values starting at the offset-th key.
func (m *orderedMap[V]) Slice(offset, limit int) []V {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(m.keys) || limit <= 0 {
		return nil
	}
	end := min(offset+limit, len(m.keys))
	out := make([]V, 0, end-offset)
	for _, k := range m.keys[offset:end] {
		out = append(out, m.vals[k])
	}
	return out
}

// From returns up to limit values starting at the first key >= from.
func (m *orderedMap[V]) From(from string, limit int) []V {
	i, _ := slices.BinarySearchFunc(m.keys, from, strings.Compare)
	return m.Slice(i, limit)
}
