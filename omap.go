package ucl

import "strings"

// omap is the order-preserving container backing objects. Lookups go
// through a map keyed on the (optionally case-folded) key; iteration walks
// a parallel slice in first-insertion order. Each entry is the head of a
// same-key sibling chain.
type omap struct {
	idx      map[string]int
	order    []*Value
	caseless bool
}

func newOmap(caseless bool) *omap {
	return &omap{
		idx:      make(map[string]int),
		caseless: caseless,
	}
}

// fold normalises a key for lookup according to the container's mode.
func (m *omap) fold(key []byte) string {
	if m.caseless {
		return strings.ToLower(string(key))
	}

	return string(key)
}

// head returns the chain head stored under key, or nil.
func (m *omap) head(key []byte) *Value {
	i, ok := m.idx[m.fold(key)]
	if !ok {
		return nil
	}

	return m.order[i]
}

// insert adds v as a new entry, preserving insertion order. The key must
// not already be present.
func (m *omap) insert(v *Value) {
	m.idx[m.fold(v.key)] = len(m.order)
	m.order = append(m.order, v)
}

// setHead replaces the chain head stored under key, keeping its position in
// the iteration order. It reports false when the key is absent.
func (m *omap) setHead(key []byte, v *Value) bool {
	i, ok := m.idx[m.fold(key)]
	if !ok {
		return false
	}

	m.order[i] = v

	return true
}

// remove deletes the entry stored under key and returns its chain head.
func (m *omap) remove(key []byte) *Value {
	folded := m.fold(key)

	i, ok := m.idx[folded]
	if !ok {
		return nil
	}

	head := m.order[i]

	delete(m.idx, folded)
	m.order = append(m.order[:i], m.order[i+1:]...)

	// Reindex the entries that shifted down.
	for j := i; j < len(m.order); j++ {
		m.idx[m.fold(m.order[j].key)] = j
	}

	return head
}

// len returns the number of distinct keys.
func (m *omap) len() int {
	if m == nil {
		return 0
	}

	return len(m.order)
}
