package memory

import "sort"

// table keeps rows by id and remembers insertion order for listings.
type table[T any] struct {
	rows map[string]T
	seq  map[string]uint64
	next uint64
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T), seq: make(map[string]uint64)}
}

func (t *table[T]) get(id string) (T, bool) {
	row, ok := t.rows[id]
	return row, ok
}

func (t *table[T]) put(id string, row T) {
	if _, ok := t.seq[id]; !ok {
		t.next++
		t.seq[id] = t.next
	}
	t.rows[id] = row
}

func (t *table[T]) del(id string) {
	delete(t.rows, id)
	delete(t.seq, id)
}

// find returns the earliest inserted row that matches.
func (t *table[T]) find(match func(T) bool) (T, bool) {
	var (
		found T
		best  uint64
		ok    bool
	)
	for id, row := range t.rows {
		if !match(row) {
			continue
		}
		if seq := t.seq[id]; !ok || seq < best {
			found, best, ok = row, seq, true
		}
	}
	return found, ok
}

func (t *table[T]) list(match func(T) bool) []T {
	ids := make([]string, 0, len(t.rows))
	for id, row := range t.rows {
		if match == nil || match(row) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return t.seq[ids[i]] < t.seq[ids[j]] })

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.rows[id])
	}
	return out
}
