package ucl

// Find returns the first value stored under key, or nil when v is not an
// object or the key is absent. When the key occurs multiple times the
// returned value is the head of the sibling chain; iterate it with
// [Value.Each] and expand set to visit every occurrence.
func (v *Value) Find(key string) *Value {
	if v == nil || v.typ != TypeObject {
		return nil
	}

	return v.ov.head([]byte(key))
}

// Insert stores elt under key. When the key already exists the new value is
// appended to the existing sibling chain, forming an implicit array.
// It reports false when v is not an object.
func (v *Value) Insert(key string, elt *Value) bool {
	if v == nil || v.typ != TypeObject || elt == nil {
		return false
	}

	elt.key = []byte(key)
	elt.flags |= FlagKeyOwned
	v.appendMember(elt)

	return true
}

// appendMember links elt into the container, extending the sibling chain
// when its key is already present. elt.key must be set.
func (v *Value) appendMember(elt *Value) {
	head := v.ov.head(elt.key)
	if head == nil {
		v.ov.insert(elt)

		return
	}

	tail := head
	for tail.next != nil {
		tail = tail.next
	}

	tail.next = elt
}

// Replace stores elt under key, releasing the previous chain if any.
// Absent keys behave like [Value.Insert].
func (v *Value) Replace(key string, elt *Value) bool {
	if v == nil || v.typ != TypeObject || elt == nil {
		return false
	}

	elt.key = []byte(key)
	elt.flags |= FlagKeyOwned

	old := v.ov.head(elt.key)
	if old == nil {
		v.ov.insert(elt)

		return true
	}

	v.ov.setHead(elt.key, elt)
	unrefChain(old)

	return true
}

// InsertMerged stores elt under key with merge semantics: when both the
// existing value and elt are objects their members are merged recursively,
// with the higher-priority side winning scalar conflicts. In every other
// case the sibling chain is extended, as [Value.Insert] does.
func (v *Value) InsertMerged(key string, elt *Value) bool {
	if v == nil || v.typ != TypeObject || elt == nil {
		return false
	}

	cur := v.ov.head([]byte(key))
	if cur == nil || cur.typ != TypeObject || elt.typ != TypeObject {
		return v.Insert(key, elt)
	}

	for m := range elt.Each(true) {
		mergeMember(cur, m)
	}

	return true
}

// mergeMember folds one member of an incoming object into dst.
func mergeMember(dst *Value, m *Value) {
	cur := dst.ov.head(m.key)

	switch {
	case cur == nil:
		n := m.detached()
		dst.ov.insert(n)

	case cur.typ == TypeObject && m.typ == TypeObject:
		for sub := range m.Each(true) {
			mergeMember(cur, sub)
		}

	case m.priority > cur.priority:
		n := m.detached()
		dst.ov.setHead(n.key, n)
		unrefChain(cur)

	default:
		// The existing value has equal or higher priority; keep it.
	}
}

// detached returns m with its sibling link cleared so it can be rehomed in
// another container.
func (m *Value) detached() *Value {
	m.next = nil

	return m
}

// Delete removes the chain stored under key, releasing every sibling.
// It reports whether the key was present.
func (v *Value) Delete(key string) bool {
	if v == nil || v.typ != TypeObject {
		return false
	}

	head := v.ov.remove([]byte(key))
	if head == nil {
		return false
	}

	unrefChain(head)

	return true
}

// Pop removes and returns the chain stored under key without releasing it.
// The caller owns the returned reference.
func (v *Value) Pop(key string) *Value {
	if v == nil || v.typ != TypeObject {
		return nil
	}

	return v.ov.remove([]byte(key))
}

func unrefChain(head *Value) {
	for e := head; e != nil; {
		n := e.next
		e.next = nil
		e.Unref()
		e = n
	}
}
