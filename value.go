package ucl

import (
	"fmt"
	"iter"
	"strconv"
	"sync/atomic"
)

// Type identifies the shape of a [Value]. A value's type never changes
// after the value is fully constructed.
type Type uint8

// Value types.
const (
	TypeObject Type = iota
	TypeArray
	TypeInt
	TypeFloat
	TypeString
	TypeBoolean
	TypeTime
	TypeUserdata
	TypeNull
)

// String returns the schema-facing name of the type.
func (t Type) String() string {
	switch t {
	case TypeObject:
		return "object"
	case TypeArray:
		return "array"
	case TypeInt:
		return "integer"
	case TypeFloat, TypeTime:
		return "number"
	case TypeString:
		return "string"
	case TypeBoolean:
		return "boolean"
	}

	return "null"
}

// Flags carry per-value bookkeeping bits.
type Flags uint8

const (
	// FlagKeyOwned is set when the key bytes are an internal copy rather
	// than a borrow of the input buffer.
	FlagKeyOwned Flags = 1 << iota
	// FlagValueOwned is set when a string value is an internal copy.
	FlagValueOwned
	// FlagKeyNeedsEscape is set when the key cannot be emitted unquoted.
	FlagKeyNeedsEscape
	// FlagMultiline hints that a string should be displayed as multiline.
	FlagMultiline
)

// MaxPriority is the largest value priority; priorities are clamped to
// 0..MaxPriority by [Value.SetPriority] and [Parser.AddChunkPriority].
const MaxPriority = 15

// Dtor releases the resources of a userdata value when its last reference
// is dropped.
type Dtor func(any)

// Value is one node of a configuration tree: a tagged variant holding
// exactly one of the supported shapes, plus the key it is stored under when
// it is an object member.
//
// Values are reference counted so that subtrees can be shared between a
// parser and its caller. [Value.Ref] takes a new strong reference and
// [Value.Unref] drops one; when the count reaches zero the subtree is
// released recursively.
type Value struct {
	key      []byte
	next     *Value // same-key sibling chain
	ov       *omap
	av       []*Value
	sv       []byte
	iv       int64
	dv       float64
	ud       any
	dtor     Dtor
	ref      atomic.Int32
	typ      Type
	flags    Flags
	priority uint8
}

func newValue(typ Type) *Value {
	v := &Value{typ: typ}
	v.ref.Store(1)

	return v
}

// NewObject creates an empty object with byte-exact key comparison.
func NewObject() *Value {
	return newObjectMode(false)
}

func newObjectMode(caseless bool) *Value {
	v := newValue(TypeObject)
	v.ov = newOmap(caseless)

	return v
}

// NewArray creates an empty array.
func NewArray() *Value {
	return newValue(TypeArray)
}

// NewNull creates a null value.
func NewNull() *Value {
	return newValue(TypeNull)
}

// FromInt creates an integer value.
func FromInt(i int64) *Value {
	v := newValue(TypeInt)
	v.iv = i

	return v
}

// FromFloat creates a floating point value.
func FromFloat(f float64) *Value {
	v := newValue(TypeFloat)
	v.dv = f

	return v
}

// FromTime creates a time value holding a duration in seconds.
func FromTime(seconds float64) *Value {
	v := newValue(TypeTime)
	v.dv = seconds

	return v
}

// FromBool creates a boolean value.
func FromBool(b bool) *Value {
	v := newValue(TypeBoolean)
	if b {
		v.iv = 1
	}

	return v
}

// FromString creates a string value holding a copy of s.
func FromString(s string) *Value {
	v := newValue(TypeString)
	v.sv = []byte(s)
	v.flags |= FlagValueOwned

	return v
}

// NewUserdata creates an opaque userdata value. The destructor, if not nil,
// runs when the last reference is dropped.
func NewUserdata(ud any, dtor Dtor) *Value {
	v := newValue(TypeUserdata)
	v.ud = ud
	v.dtor = dtor

	return v
}

// Type returns the value's type tag.
func (v *Value) Type() Type {
	return v.typ
}

// Key returns the key this value is stored under, or "" when the value is
// not an object member.
func (v *Value) Key() string {
	return string(v.key)
}

// Priority returns the merge priority in 0..15.
func (v *Value) Priority() uint8 {
	return v.priority
}

// SetPriority sets the merge priority, clamped to 0..15.
func (v *Value) SetPriority(prio uint8) {
	v.priority = min(prio, MaxPriority)
}

// Flags returns the value's bookkeeping flags.
func (v *Value) Flags() Flags {
	return v.flags
}

// Ref takes a new strong reference and returns v for chaining.
func (v *Value) Ref() *Value {
	v.ref.Add(1)

	return v
}

// Unref drops one strong reference. When the count reaches zero the value
// releases its children and runs the userdata destructor if any.
func (v *Value) Unref() {
	if v == nil {
		return
	}

	if v.ref.Add(-1) > 0 {
		return
	}

	switch v.typ {
	case TypeObject:
		for _, head := range v.ov.order {
			for e := head; e != nil; {
				n := e.next
				e.next = nil
				e.Unref()
				e = n
			}
		}

		v.ov = nil

	case TypeArray:
		for _, e := range v.av {
			e.Unref()
		}

		v.av = nil

	case TypeUserdata:
		if v.dtor != nil {
			v.dtor(v.ud)
		}

		v.ud = nil
	}
}

// AsInt returns the numeric content as an int64. It reports false for
// non-numeric values; floats and times are truncated.
func (v *Value) AsInt() (int64, bool) {
	if v == nil {
		return 0, false
	}

	switch v.typ {
	case TypeInt:
		return v.iv, true
	case TypeFloat, TypeTime:
		return int64(v.dv), true
	case TypeBoolean:
		return v.iv, true
	}

	return 0, false
}

// Int returns the integer content, or zero for non-numeric values.
func (v *Value) Int() int64 {
	i, _ := v.AsInt()

	return i
}

// AsFloat returns the numeric content as a float64. It reports false for
// non-numeric values.
func (v *Value) AsFloat() (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch v.typ {
	case TypeFloat, TypeTime:
		return v.dv, true
	case TypeInt:
		return float64(v.iv), true
	}

	return 0, false
}

// Float returns the numeric content, or zero for non-numeric values.
func (v *Value) Float() float64 {
	f, _ := v.AsFloat()

	return f
}

// AsBool returns the boolean content. It reports false for non-boolean
// values.
func (v *Value) AsBool() (bool, bool) {
	if v == nil || v.typ != TypeBoolean {
		return false, false
	}

	return v.iv != 0, true
}

// Bool returns the boolean content, or false for non-boolean values.
func (v *Value) Bool() bool {
	b, _ := v.AsBool()

	return b
}

// AsString returns the string content. It reports false for non-string
// values.
func (v *Value) AsString() (string, bool) {
	if v == nil || v.typ != TypeString {
		return "", false
	}

	return string(v.sv), true
}

// Str returns the string content, or "" for non-string values.
func (v *Value) Str() string {
	s, _ := v.AsString()

	return s
}

// Bytes returns the raw string bytes without copying. The slice may alias
// the parser's input buffer in zero-copy mode; callers must not mutate it.
func (v *Value) Bytes() []byte {
	if v == nil || v.typ != TypeString {
		return nil
	}

	return v.sv
}

// Userdata returns the opaque userdata payload, or nil for other types.
func (v *Value) Userdata() any {
	if v == nil || v.typ != TypeUserdata {
		return nil
	}

	return v.ud
}

// Len returns the number of distinct keys of an object, the element count
// of an array, or the byte length of a string. Other types have length zero.
func (v *Value) Len() int {
	if v == nil {
		return 0
	}

	switch v.typ {
	case TypeObject:
		return v.ov.len()
	case TypeArray:
		return len(v.av)
	case TypeString:
		return len(v.sv)
	}

	return 0
}

// String renders scalars as their content and containers as their type
// name. It is a debugging aid, not a serialisation; use [Emit] for that.
func (v *Value) String() string {
	if v == nil {
		return "null"
	}

	switch v.typ {
	case TypeInt:
		return strconv.FormatInt(v.iv, 10)
	case TypeFloat, TypeTime:
		return formatFloat(v.dv)
	case TypeBoolean:
		if v.iv != 0 {
			return "true"
		}

		return "false"
	case TypeString:
		return string(v.sv)
	case TypeNull:
		return "null"
	case TypeUserdata:
		return fmt.Sprintf("userdata(%p)", v.ud)
	}

	return v.typ.String()
}

// Copy performs a deep copy of the value. Sibling chains, keys, priorities,
// and flags are preserved; the copy owns all of its memory. Userdata
// payloads are shared and the copy carries no destructor.
func (v *Value) Copy() *Value {
	if v == nil {
		return nil
	}

	n := newValue(v.typ)
	n.priority = v.priority
	n.flags = v.flags | FlagKeyOwned | FlagValueOwned

	if v.key != nil {
		n.key = append([]byte(nil), v.key...)
	}

	switch v.typ {
	case TypeObject:
		n.ov = newOmap(v.ov.caseless)

		for _, head := range v.ov.order {
			for e := head; e != nil; e = e.next {
				n.appendMember(e.Copy())
			}
		}

	case TypeArray:
		n.av = make([]*Value, 0, len(v.av))
		for _, e := range v.av {
			n.av = append(n.av, e.Copy())
		}

	case TypeString:
		n.sv = append([]byte(nil), v.sv...)

	case TypeUserdata:
		n.ud = v.ud

	default:
		n.iv = v.iv
		n.dv = v.dv
	}

	return n
}

// Each iterates the value. For objects it visits each key once when expand
// is false, and every same-key sibling in arrival order when expand is
// true. For arrays it visits the elements in order. For any other value it
// visits the value itself, followed by its sibling chain when expand is
// true.
func (v *Value) Each(expand bool) iter.Seq[*Value] {
	return func(yield func(*Value) bool) {
		if v == nil {
			return
		}

		switch v.typ {
		case TypeObject:
			if v.ov == nil {
				return
			}

			for _, head := range v.ov.order {
				if head == nil {
					continue
				}

				if !expand {
					if !yield(head) {
						return
					}

					continue
				}

				for e := head; e != nil; e = e.next {
					if !yield(e) {
						return
					}
				}
			}

		case TypeArray:
			for _, e := range v.av {
				if !yield(e) {
					return
				}
			}

		default:
			for e := v; e != nil; e = e.next {
				if !yield(e) {
					return
				}

				if !expand {
					return
				}
			}
		}
	}
}
