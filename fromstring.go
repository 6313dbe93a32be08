package ucl

import "bytes"

// StringFlags control the conversions applied by [FromStringFlags].
type StringFlags uint

const (
	// StringEscape is accepted but has no effect: [FromStringFlags] does
	// not read it, and string values are always JSON-escaped on output.
	StringEscape StringFlags = 1 << iota
	// StringTrim strips leading and trailing whitespace first.
	StringTrim
	// StringParseBoolean detects the boolean words.
	StringParseBoolean
	// StringParseInt detects integer numbers.
	StringParseInt
	// StringParseDouble detects floating point numbers.
	StringParseDouble
	// StringParseTime detects numbers with time suffixes.
	StringParseTime
	// StringParseBytes makes the single-letter k/m/g suffixes use
	// 1024-based multipliers.
	StringParseBytes
)

// Compound conversion flag sets.
const (
	StringParseNumber = StringParseInt | StringParseDouble | StringParseTime
	StringParse       = StringParseBoolean | StringParseNumber
)

// FromStringFlags converts a standalone string into a typed value using the
// same lexing rules as the parser: boolean words, numbers, and unit
// suffixes are detected according to flags. Strings that match no requested
// conversion become string values.
func FromStringFlags(s string, flags StringFlags) *Value {
	data := []byte(s)

	if flags&StringTrim != 0 {
		data = bytes.TrimSpace(data)
	}

	if flags&StringParseBoolean != 0 {
		if b, ok := maybeBoolean(data); ok {
			return FromBool(b)
		}
	}

	if flags&StringParseNumber != 0 {
		if v, ok := parseScalarNumber(data, flags); ok {
			return v
		}
	}

	v := FromString(string(data))
	if bytes.IndexByte(data, '\n') >= 0 {
		v.flags |= FlagMultiline
	}

	return v
}

// parseScalarNumber lexes data as a complete numeric atom.
func parseScalarNumber(data []byte, flags StringFlags) (*Value, bool) {
	if len(data) == 0 {
		return nil, false
	}

	scratch := &Parser{noTime: flags&StringParseTime == 0}
	ck := newChunk(data, 0)
	v := newValue(TypeNull)

	ok, err := scratch.lexNumber(ck, v, flags&StringParseBytes != 0)
	if err != nil || !ok || ck.remain() != 0 {
		return nil, false
	}

	switch v.typ {
	case TypeFloat:
		if flags&StringParseDouble == 0 {
			return nil, false
		}

	case TypeInt:
		if flags&(StringParseInt|StringParseDouble) == 0 {
			return nil, false
		}
	}

	return v, true
}
