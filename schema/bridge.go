package schema

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/google/jsonschema-go/jsonschema"

	"go.jacobcolvin.com/ucl"
)

// Sentinel errors returned by the schema bridges.
var (
	ErrInvalidYAML   = errors.New("invalid yaml")
	ErrInvalidSchema = errors.New("invalid schema")
)

// FromJSONSchema converts a typed [jsonschema.Schema] into a schema value
// tree, letting Go callers define schemas programmatically instead of
// parsing schema text.
func FromJSONSchema(s *jsonschema.Schema) (*ucl.Value, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	// Boolean schemas marshal to bare true/false; express them as their
	// object equivalents so the validator sees an object either way.
	switch string(data) {
	case "true":
		data = []byte("{}")
	case "false":
		data = []byte(`{"not":{}}`)
	}

	p := ucl.NewParser()
	if err := p.AddChunk(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	root := p.Object()
	if root == nil {
		return nil, fmt.Errorf("%w: empty schema document", ErrInvalidSchema)
	}

	return root, nil
}

// FromYAML parses a YAML document into a schema value tree. Mapping order
// is preserved.
func FromYAML(data []byte) (*ucl.Value, error) {
	var doc any

	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidYAML, err)
	}

	v, err := fromGo(doc)
	if err != nil {
		return nil, err
	}

	return v, nil
}

// fromGo converts a decoded Go value into a [ucl.Value].
func fromGo(doc any) (*ucl.Value, error) {
	switch d := doc.(type) {
	case nil:
		return ucl.NewNull(), nil

	case bool:
		return ucl.FromBool(d), nil

	case int:
		return ucl.FromInt(int64(d)), nil

	case int64:
		return ucl.FromInt(d), nil

	case uint64:
		return ucl.FromInt(int64(d)), nil

	case float64:
		return ucl.FromFloat(d), nil

	case string:
		return ucl.FromString(d), nil

	case []any:
		arr := ucl.NewArray()

		for _, elt := range d {
			sub, err := fromGo(elt)
			if err != nil {
				return nil, err
			}

			arr.Append(sub)
		}

		return arr, nil

	case yaml.MapSlice:
		obj := ucl.NewObject()

		for _, item := range d {
			sub, err := fromGo(item.Value)
			if err != nil {
				return nil, err
			}

			obj.Insert(fmt.Sprint(item.Key), sub)
		}

		return obj, nil

	case map[string]any:
		obj := ucl.NewObject()

		for key, elt := range d {
			sub, err := fromGo(elt)
			if err != nil {
				return nil, err
			}

			obj.Insert(key, sub)
		}

		return obj, nil
	}

	return nil, fmt.Errorf("%w: unsupported value of type %T", ErrInvalidYAML, doc)
}
