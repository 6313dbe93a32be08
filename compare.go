package ucl

import (
	"bytes"
	"strconv"
	"strings"
)

// Compare orders two values: first by type, then by size, then by content.
// The numeric types (integer, float, time) form one family and compare by
// numeric value, so the integer 1 and the float 1.0 are equal. Object
// members are compared by matching keys recursively; arrays pairwise by
// position. The result is negative, zero, or positive when a orders before,
// equal to, or after b.
func Compare(a, b *Value) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if isNumeric(a.typ) && isNumeric(b.typ) {
		return cmpFloat(a.Float(), b.Float())
	}

	if a.typ != b.typ {
		return int(a.typ) - int(b.typ)
	}

	switch a.typ {
	case TypeString:
		return bytes.Compare(a.sv, b.sv)

	case TypeBoolean:
		return int(a.iv - b.iv)

	case TypeArray:
		if d := len(a.av) - len(b.av); d != 0 {
			return d
		}

		for i := range a.av {
			if d := Compare(a.av[i], b.av[i]); d != 0 {
				return d
			}
		}

		return 0

	case TypeObject:
		if d := a.ov.len() - b.ov.len(); d != 0 {
			return d
		}

		for m := range a.Each(false) {
			other := b.Find(m.Key())
			if other == nil {
				return 1
			}

			if d := Compare(m, other); d != 0 {
				return d
			}
		}

		return 0

	case TypeUserdata:
		if a.ud == b.ud {
			return 0
		}

		return 1
	}

	// Nulls are all equal.
	return 0
}

// Equal reports whether two values compare equal under [Compare].
func Equal(a, b *Value) bool {
	return Compare(a, b) == 0
}

func isNumeric(t Type) bool {
	return t == TypeInt || t == TypeFloat || t == TypeTime
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}

	return 0
}

// LookupPath walks a dot-separated path such as "a.b.0.c" down the tree.
// Numeric segments index arrays; other segments look up object keys.
// It returns nil when any segment does not resolve.
func (v *Value) LookupPath(path string) *Value {
	if v == nil || path == "" {
		return nil
	}

	cur := v

	for seg := range strings.SplitSeq(path, ".") {
		if seg == "" {
			return nil
		}

		switch cur.Type() {
		case TypeObject:
			cur = cur.Find(seg)

		case TypeArray:
			i, err := strconv.Atoi(seg)
			if err != nil {
				return nil
			}

			cur = cur.At(i)

		default:
			return nil
		}

		if cur == nil {
			return nil
		}
	}

	return cur
}
