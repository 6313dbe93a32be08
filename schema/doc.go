// Package schema validates configuration trees against JSON-Schema-like
// schema documents.
//
// A schema is itself a [ucl.Value] object, typically parsed from a
// configuration file, converted from a typed [jsonschema.Schema] with
// [FromJSONSchema], or loaded from a YAML document with [FromYAML]. The
// validator supports type checks, object, array, number, and string
// constraints, enum, and the allOf/anyOf/oneOf/not combinators.
//
//	err := schema.Validate(schemaTree, candidate)
//
// [Validate] returns nil when the candidate conforms and a [*Error]
// describing the first failure otherwise. Validation failures are ordinary
// values; they never panic and never change the candidate.
package schema
