package schema

import (
	"math"
	"regexp"

	"go.jacobcolvin.com/ucl"
)

// Validate checks obj against a schema document. It returns nil when obj
// conforms and a [*Error] describing the failure otherwise. Validation
// never mutates either tree.
func Validate(schemaV, obj *ucl.Value) error {
	va := &validator{}

	if va.validate(schemaV, obj) {
		return nil
	}

	if va.err == nil {
		va.err = newError(CodeUnknown, obj, "validation failed")
	}

	return va.err
}

// validator carries the error slot threaded through the recursive walk.
// Failures overwrite it and propagate false upward; the anyOf, oneOf, and
// not combinators clear it again when they succeed overall.
type validator struct {
	err *Error
}

func (va *validator) fail(code Code, v *ucl.Value, format string, args ...any) bool {
	va.err = newError(code, v, format, args...)

	return false
}

// validate runs one schema object against one candidate value. The schema
// keys are scanned in a single linear pass.
func (va *validator) validate(schemaV, obj *ucl.Value) bool {
	if schemaV == nil || schemaV.Type() != ucl.TypeObject {
		return va.fail(CodeInvalidSchema, schemaV, "schema is not an object")
	}

	for elt := range schemaV.Each(false) {
		ok := true

		switch elt.Key() {
		case "type":
			ok = va.checkType(elt, obj)
		case "enum":
			ok = va.checkEnum(elt, obj)
		case "allOf":
			ok = va.checkAllOf(elt, obj)
		case "anyOf":
			ok = va.checkAnyOf(elt, obj)
		case "oneOf":
			ok = va.checkOneOf(elt, obj)
		case "not":
			ok = va.checkNot(elt, obj)
		case "properties":
			ok = va.checkProperties(elt, obj)
		case "patternProperties":
			ok = va.checkPatternProperties(elt, obj)
		case "additionalProperties":
			ok = va.checkAdditionalProperties(schemaV, elt, obj)
		case "required":
			ok = va.checkRequired(elt, obj)
		case "minProperties":
			ok = va.checkCount(elt, obj, ucl.TypeObject, true, "too few properties")
		case "maxProperties":
			ok = va.checkCount(elt, obj, ucl.TypeObject, false, "too many properties")
		case "items":
			ok = va.checkItems(schemaV, elt, obj)
		case "uniqueItems":
			ok = va.checkUniqueItems(elt, obj)
		case "minItems":
			ok = va.checkCount(elt, obj, ucl.TypeArray, true, "too few items")
		case "maxItems":
			ok = va.checkCount(elt, obj, ucl.TypeArray, false, "too many items")
		case "minimum":
			ok = va.checkBound(schemaV, elt, obj, true)
		case "maximum":
			ok = va.checkBound(schemaV, elt, obj, false)
		case "multipleOf":
			ok = va.checkMultipleOf(elt, obj)
		case "minLength":
			ok = va.checkCount(elt, obj, ucl.TypeString, true, "string is too short")
		case "maxLength":
			ok = va.checkCount(elt, obj, ucl.TypeString, false, "string is too long")
		}

		if !ok {
			return false
		}
	}

	return true
}

/*
 * Type and enum
 */

func typeMatches(name string, t ucl.Type) (matched, known bool) {
	switch name {
	case "object":
		return t == ucl.TypeObject, true
	case "array":
		return t == ucl.TypeArray, true
	case "integer":
		return t == ucl.TypeInt, true
	case "number":
		return t == ucl.TypeInt || t == ucl.TypeFloat || t == ucl.TypeTime, true
	case "string":
		return t == ucl.TypeString, true
	case "boolean":
		return t == ucl.TypeBoolean, true
	case "null":
		return t == ucl.TypeNull, true
	}

	return false, false
}

func (va *validator) checkType(elt, obj *ucl.Value) bool {
	var names []string

	switch elt.Type() {
	case ucl.TypeString:
		names = []string{elt.Str()}

	case ucl.TypeArray:
		for i := 0; i < elt.Len(); i++ {
			name, ok := elt.At(i).AsString()
			if !ok {
				return va.fail(CodeInvalidSchema, elt, "type attribute is invalid in schema")
			}

			names = append(names, name)
		}

	default:
		return va.fail(CodeInvalidSchema, elt, "type attribute is invalid in schema")
	}

	for _, name := range names {
		matched, known := typeMatches(name, obj.Type())
		if !known {
			return va.fail(CodeInvalidSchema, elt, "unknown type %q in schema", name)
		}

		if matched {
			return true
		}
	}

	return va.fail(CodeTypeMismatch, obj,
		"invalid type %s, expected %s", obj.Type(), elt.String())
}

func (va *validator) checkEnum(elt, obj *ucl.Value) bool {
	if elt.Type() != ucl.TypeArray {
		return va.fail(CodeInvalidSchema, elt, "enum attribute must be an array")
	}

	for i := 0; i < elt.Len(); i++ {
		if ucl.Equal(obj, elt.At(i)) {
			return true
		}
	}

	return va.fail(CodeConstraint, obj, "value is not one of enumerated values")
}

/*
 * Combinators
 */

func (va *validator) schemaList(elt *ucl.Value, name string) ([]*ucl.Value, bool) {
	if elt.Type() != ucl.TypeArray || elt.Len() == 0 {
		va.err = newError(CodeInvalidSchema, elt, "%s attribute must be a non-empty array", name)

		return nil, false
	}

	subs := make([]*ucl.Value, 0, elt.Len())
	for i := 0; i < elt.Len(); i++ {
		subs = append(subs, elt.At(i))
	}

	return subs, true
}

func (va *validator) checkAllOf(elt, obj *ucl.Value) bool {
	subs, ok := va.schemaList(elt, "allOf")
	if !ok {
		return false
	}

	for _, sub := range subs {
		if !va.validate(sub, obj) {
			return false
		}
	}

	return true
}

func (va *validator) checkAnyOf(elt, obj *ucl.Value) bool {
	subs, ok := va.schemaList(elt, "anyOf")
	if !ok {
		return false
	}

	for _, sub := range subs {
		if va.validate(sub, obj) {
			// A successful branch erases the failures of its siblings.
			va.err = nil

			return true
		}
	}

	return va.fail(CodeConstraint, obj, "no anyOf schema matched the value")
}

func (va *validator) checkOneOf(elt, obj *ucl.Value) bool {
	subs, ok := va.schemaList(elt, "oneOf")
	if !ok {
		return false
	}

	matched := 0

	for _, sub := range subs {
		if va.validate(sub, obj) {
			matched++
		}
	}

	if matched != 1 {
		return va.fail(CodeConstraint, obj, "%d oneOf schemas matched, expected exactly one", matched)
	}

	va.err = nil

	return true
}

func (va *validator) checkNot(elt, obj *ucl.Value) bool {
	if va.validate(elt, obj) {
		return va.fail(CodeConstraint, obj, "value matches the not schema")
	}

	va.err = nil

	return true
}

/*
 * Object constraints
 */

func (va *validator) checkProperties(elt, obj *ucl.Value) bool {
	if obj.Type() != ucl.TypeObject {
		return true
	}

	if elt.Type() != ucl.TypeObject {
		return va.fail(CodeInvalidSchema, elt, "properties attribute must be an object")
	}

	for sub := range elt.Each(false) {
		member := obj.Find(sub.Key())
		if member == nil {
			continue
		}

		// Every same-key sibling must conform.
		for m := range member.Each(true) {
			if !va.validate(sub, m) {
				return false
			}
		}
	}

	return true
}

func (va *validator) checkPatternProperties(elt, obj *ucl.Value) bool {
	if obj.Type() != ucl.TypeObject {
		return true
	}

	if elt.Type() != ucl.TypeObject {
		return va.fail(CodeInvalidSchema, elt, "patternProperties attribute must be an object")
	}

	for sub := range elt.Each(false) {
		re, err := regexp.CompilePOSIX(sub.Key())
		if err != nil {
			return va.fail(CodeInvalidSchema, sub, "invalid pattern %q in schema", sub.Key())
		}

		for m := range obj.Each(true) {
			if !re.MatchString(m.Key()) {
				continue
			}

			if !va.validate(sub, m) {
				return false
			}
		}
	}

	return true
}

func (va *validator) checkAdditionalProperties(schemaV, elt, obj *ucl.Value) bool {
	if obj.Type() != ucl.TypeObject {
		return true
	}

	allowAll, isBool := elt.AsBool()
	if isBool && allowAll {
		return true
	}

	if !isBool && elt.Type() != ucl.TypeObject {
		return va.fail(CodeInvalidSchema, elt, "additionalProperties attribute is invalid in schema")
	}

	props := schemaV.Find("properties")
	patterns := schemaV.Find("patternProperties")

	for m := range obj.Each(true) {
		if props != nil && props.Find(m.Key()) != nil {
			continue
		}

		if matchesAnyPattern(patterns, m.Key()) {
			continue
		}

		if isBool {
			return va.fail(CodeConstraint, m, "additional property %q is not allowed", m.Key())
		}

		if !va.validate(elt, m) {
			return false
		}
	}

	return true
}

func matchesAnyPattern(patterns *ucl.Value, key string) bool {
	if patterns == nil || patterns.Type() != ucl.TypeObject {
		return false
	}

	for sub := range patterns.Each(false) {
		re, err := regexp.CompilePOSIX(sub.Key())
		if err != nil {
			continue
		}

		if re.MatchString(key) {
			return true
		}
	}

	return false
}

func (va *validator) checkRequired(elt, obj *ucl.Value) bool {
	if obj.Type() != ucl.TypeObject {
		return true
	}

	if elt.Type() != ucl.TypeArray {
		return va.fail(CodeInvalidSchema, elt, "required attribute must be an array")
	}

	for i := 0; i < elt.Len(); i++ {
		name, ok := elt.At(i).AsString()
		if !ok {
			return va.fail(CodeInvalidSchema, elt, "required attribute must contain strings")
		}

		if obj.Find(name) == nil {
			return va.fail(CodeMissingProperty, obj, "required property %q is missing", name)
		}
	}

	return true
}

/*
 * Array constraints
 */

func (va *validator) checkItems(schemaV, elt, obj *ucl.Value) bool {
	if obj.Type() != ucl.TypeArray {
		return true
	}

	switch elt.Type() {
	case ucl.TypeObject:
		// One schema for every element.
		for i := 0; i < obj.Len(); i++ {
			if !va.validate(elt, obj.At(i)) {
				return false
			}
		}

		return true

	case ucl.TypeArray:
		// Positional schemas plus additionalItems for the overflow.
		for i := 0; i < obj.Len() && i < elt.Len(); i++ {
			if !va.validate(elt.At(i), obj.At(i)) {
				return false
			}
		}

		return va.checkAdditionalItems(schemaV.Find("additionalItems"), obj, elt.Len())
	}

	return va.fail(CodeInvalidSchema, elt, "items attribute is invalid in schema")
}

func (va *validator) checkAdditionalItems(extra, obj *ucl.Value, fixed int) bool {
	if obj.Len() <= fixed {
		return true
	}

	if extra == nil {
		return true
	}

	if allow, isBool := extra.AsBool(); isBool {
		if allow {
			return true
		}

		return va.fail(CodeConstraint, obj,
			"array has %d items, expected at most %d", obj.Len(), fixed)
	}

	for i := fixed; i < obj.Len(); i++ {
		if !va.validate(extra, obj.At(i)) {
			return false
		}
	}

	return true
}

func (va *validator) checkUniqueItems(elt, obj *ucl.Value) bool {
	if obj.Type() != ucl.TypeArray {
		return true
	}

	if !elt.Bool() {
		return true
	}

	for i := 0; i < obj.Len(); i++ {
		for j := i + 1; j < obj.Len(); j++ {
			if ucl.Equal(obj.At(i), obj.At(j)) {
				return va.fail(CodeConstraint, obj.At(j), "duplicate values detected in unique array")
			}
		}
	}

	return true
}

/*
 * Number and string constraints
 */

func (va *validator) checkBound(schemaV, elt, obj *ucl.Value, lower bool) bool {
	if !isNumber(obj) {
		return true
	}

	bound, ok := elt.AsFloat()
	if !ok {
		return va.fail(CodeInvalidSchema, elt, "bound attribute must be a number")
	}

	val := obj.Float()

	exclusive := false
	if lower {
		exclusive = schemaV.Find("exclusiveMinimum").Bool()
	} else {
		exclusive = schemaV.Find("exclusiveMaximum").Bool()
	}

	switch {
	case lower && (val > bound || (!exclusive && val == bound)):
		return true
	case !lower && (val < bound || (!exclusive && val == bound)):
		return true
	}

	rel := "maximum"
	if lower {
		rel = "minimum"
	}

	return va.fail(CodeConstraint, obj, "value %v violates the %s of %v", val, rel, bound)
}

func (va *validator) checkMultipleOf(elt, obj *ucl.Value) bool {
	if !isNumber(obj) {
		return true
	}

	mult, ok := elt.AsFloat()
	if !ok || mult <= 0 {
		return va.fail(CodeInvalidSchema, elt, "multipleOf attribute must be a positive number")
	}

	const tolerance = 1e-16

	rem := math.Abs(math.Mod(obj.Float(), mult))
	if rem < tolerance || math.Abs(rem-mult) < tolerance {
		return true
	}

	return va.fail(CodeConstraint, obj, "value %v is not a multiple of %v", obj.Float(), mult)
}

// checkCount enforces the inclusive length bounds shared by objects,
// arrays, and strings.
func (va *validator) checkCount(elt, obj *ucl.Value, typ ucl.Type, lower bool, msg string) bool {
	if obj.Type() != typ {
		return true
	}

	bound, ok := elt.AsInt()
	if !ok {
		return va.fail(CodeInvalidSchema, elt, "size attribute must be an integer")
	}

	n := int64(obj.Len())

	if lower && n < bound {
		return va.fail(CodeConstraint, obj, "%s: %d < %d", msg, n, bound)
	}

	if !lower && n > bound {
		return va.fail(CodeConstraint, obj, "%s: %d > %d", msg, n, bound)
	}

	return true
}

func isNumber(v *ucl.Value) bool {
	t := v.Type()

	return t == ucl.TypeInt || t == ucl.TypeFloat || t == ucl.TypeTime
}
