package ucl

import "slices"

// Append adds elt to the end of the array. It reports false when v is not
// an array.
func (v *Value) Append(elt *Value) bool {
	if v == nil || v.typ != TypeArray || elt == nil {
		return false
	}

	v.av = append(v.av, elt)

	return true
}

// Prepend adds elt to the front of the array.
func (v *Value) Prepend(elt *Value) bool {
	if v == nil || v.typ != TypeArray || elt == nil {
		return false
	}

	v.av = append([]*Value{elt}, v.av...)

	return true
}

// Head returns the first element, or nil for an empty or non-array value.
func (v *Value) Head() *Value {
	if v == nil || v.typ != TypeArray || len(v.av) == 0 {
		return nil
	}

	return v.av[0]
}

// Tail returns the last element, or nil for an empty or non-array value.
func (v *Value) Tail() *Value {
	if v == nil || v.typ != TypeArray || len(v.av) == 0 {
		return nil
	}

	return v.av[len(v.av)-1]
}

// At returns the element at index i, or nil when out of range.
func (v *Value) At(i int) *Value {
	if v == nil || v.typ != TypeArray || i < 0 || i >= len(v.av) {
		return nil
	}

	return v.av[i]
}

// PopFirst removes and returns the first element. The caller owns the
// returned reference.
func (v *Value) PopFirst() *Value {
	if v == nil || v.typ != TypeArray || len(v.av) == 0 {
		return nil
	}

	elt := v.av[0]
	v.av = v.av[1:]

	return elt
}

// PopLast removes and returns the last element. The caller owns the
// returned reference.
func (v *Value) PopLast() *Value {
	if v == nil || v.typ != TypeArray || len(v.av) == 0 {
		return nil
	}

	elt := v.av[len(v.av)-1]
	v.av = v.av[:len(v.av)-1]

	return elt
}

// Remove removes elt from the array, comparing by identity, and returns it.
// The caller owns the returned reference. It returns nil when elt is not an
// element of v.
func (v *Value) Remove(elt *Value) *Value {
	if v == nil || v.typ != TypeArray {
		return nil
	}

	for i, e := range v.av {
		if e == elt {
			v.av = append(v.av[:i], v.av[i+1:]...)

			return elt
		}
	}

	return nil
}

// SortFunc sorts the array in place using cmp, which must return a negative
// number when a orders before b. [Compare] is a suitable comparison.
func (v *Value) SortFunc(cmp func(a, b *Value) int) {
	if v == nil || v.typ != TypeArray {
		return
	}

	slices.SortFunc(v.av, cmp)
}
