// Package ucl parses and emits UCL, a permissive JSON-superset
// configuration language.
//
// Valid JSON is valid input. On top of JSON the language accepts unquoted
// keys, `=` and `:` key separators, statements terminated by newlines or
// semicolons, `#` and nestable `/* */` comments, heredoc strings
// (`<<TAG ... TAG`), numeric unit suffixes (`10ms`, `2kb`, `1.5h`), boolean
// words (`on`, `off`, `yes`, `no`), and `.macro` directives such as
// `.include`.
//
// Parsing produces a tree of [Value] nodes. Repeated keys inside one object
// do not overwrite each other and are not wrapped into an array value;
// instead the values are chained as same-key siblings, preserving the
// distinction between "a key whose value is an array" and "a key that
// occurs multiple times". Iterate with expansion to visit every sibling.
//
// A tree can be serialised back to text with [Emit] in one of four styles:
// pretty JSON, compact JSON, the native config format, or YAML.
//
// # Basic usage
//
//	p := ucl.NewParser()
//	if err := p.AddString(`a = 1; b { c = 10ms }`); err != nil {
//		return err
//	}
//
//	root := p.Object()
//	fmt.Println(string(ucl.Emit(root, ucl.EmitJSONCompact)))
//
// Parsers are not safe for concurrent use. A fully built tree may be read
// from multiple goroutines as long as no goroutine mutates it.
package ucl
