// Package stringtest provides helpers for constructing multi-line string
// expectations in tests.
package stringtest

import "strings"

// JoinLF joins multiple strings with LF line endings.
// Use this to construct expected test output with explicit line endings.
//
// Example:
//
//	want := stringtest.JoinLF(
//		"a = 1;",
//		"b = 2;",
//	) // -> "a = 1;\nb = 2;"
func JoinLF(ss ...string) string {
	var sb strings.Builder

	for i, s := range ss {
		if i > 0 {
			sb.WriteByte('\n')
		}

		sb.WriteString(s)
	}

	return sb.String()
}

// Lines joins multiple strings with LF line endings and appends a final
// newline, matching the shape of emitted documents.
func Lines(ss ...string) string {
	return JoinLF(ss...) + "\n"
}
