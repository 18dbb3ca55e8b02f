package interactions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"

	"github.com/basket/haxxor-bunny/internal/discord"
)

// ArgSchema validates the leaf options of a (sub)command as one JSON
// object keyed by option name.
type ArgSchema struct {
	name   string
	schema *jsonschema.Schema
}

// CompileArgSchema compiles a JSON Schema document. Format assertions are
// on, so formats registered here reject bad values.
func CompileArgSchema(name, doc string, formats ...*jsonschema.Format) (*ArgSchema, error) {
	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse %s schema: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	for _, f := range formats {
		c.RegisterFormat(f)
	}
	url := strings.NewReplacer(" ", "-", "/", "-").Replace(name) + ".json"
	if err := c.AddResource(url, parsed); err != nil {
		return nil, fmt.Errorf("add %s schema: %w", name, err)
	}
	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return &ArgSchema{name: name, schema: schema}, nil
}

// MustArgSchema is CompileArgSchema for schemas written in source.
func MustArgSchema(name, doc string, formats ...*jsonschema.Format) *ArgSchema {
	s, err := CompileArgSchema(name, doc, formats...)
	if err != nil {
		panic(err)
	}
	return s
}

// Bind validates opts and, when dst is non-nil, decodes them into it.
// Every offending argument is reported in one ArgError.
func (a *ArgSchema) Bind(opts []discord.Option, dst any) error {
	obj := make(map[string]json.RawMessage, len(opts))
	for _, o := range opts {
		if o.Type.IsLeaf() && len(o.Value) > 0 {
			obj[o.Name] = o.Value
		}
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return Internal("encode arguments", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return Internal("decode arguments", err)
	}
	if err := a.schema.Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return ArgError(invalidFields(ve), err)
		}
		return Internal("validate "+a.name+" arguments", err)
	}
	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return Internal("bind "+a.name+" arguments", err)
	}
	return nil
}

func invalidFields(root *jsonschema.ValidationError) []string {
	var fields []string
	add := func(name string) {
		if name != "" && !slices.Contains(fields, name) {
			fields = append(fields, name)
		}
	}
	var walk func(ve *jsonschema.ValidationError)
	walk = func(ve *jsonschema.ValidationError) {
		if len(ve.InstanceLocation) > 0 {
			add(ve.InstanceLocation[0])
		} else {
			switch k := ve.ErrorKind.(type) {
			case *kind.Required:
				for _, m := range k.Missing {
					add(m)
				}
			case *kind.AdditionalProperties:
				for _, p := range k.Properties {
					add(p)
				}
			}
		}
		for _, cause := range ve.Causes {
			walk(cause)
		}
	}
	walk(root)
	if len(fields) == 0 {
		fields = []string{"arguments"}
	}
	slices.Sort(fields)
	return fields
}
