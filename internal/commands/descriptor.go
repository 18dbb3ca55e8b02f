package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/basket/haxxor-bunny/internal/discord"
)

// descriptorSchema encodes the platform's limits on chat input command
// descriptors.
const descriptorSchema = `{
	"$defs": {
		"name": {"type": "string", "pattern": "^[-_a-z0-9]{1,32}$"},
		"description": {"type": "string", "minLength": 1, "maxLength": 100},
		"choice": {
			"type": "object",
			"properties": {
				"name": {"type": "string", "minLength": 1, "maxLength": 100},
				"value": {"type": ["string", "integer", "number"]}
			},
			"required": ["name", "value"]
		},
		"option": {
			"type": "object",
			"properties": {
				"type": {"type": "integer", "minimum": 1, "maximum": 11},
				"name": {"$ref": "#/$defs/name"},
				"description": {"$ref": "#/$defs/description"},
				"choices": {"type": "array", "maxItems": 25, "items": {"$ref": "#/$defs/choice"}},
				"options": {"type": "array", "maxItems": 25, "items": {"$ref": "#/$defs/option"}}
			},
			"required": ["type", "name", "description"],
			"not": {"required": ["choices", "autocomplete"], "properties": {"autocomplete": {"const": true}}}
		}
	},
	"type": "object",
	"properties": {
		"name": {"$ref": "#/$defs/name"},
		"description": {"$ref": "#/$defs/description"},
		"options": {"type": "array", "maxItems": 25, "items": {"$ref": "#/$defs/option"}}
	},
	"required": ["name", "description"]
}`

var compileDescriptorSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(descriptorSchema))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("descriptor.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("descriptor.json")
})

// Validate checks every descriptor against the platform's constraints and
// rejects duplicate names.
func Validate(descriptors []discord.ApplicationCommand) error {
	schema, err := compileDescriptorSchema()
	if err != nil {
		return fmt.Errorf("compile descriptor schema: %w", err)
	}
	var errs []error
	seen := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		if seen[d.Name] {
			errs = append(errs, fmt.Errorf("command %q: duplicate name", d.Name))
		}
		seen[d.Name] = true

		raw, err := json.Marshal(d)
		if err != nil {
			errs = append(errs, fmt.Errorf("command %q: encode: %w", d.Name, err))
			continue
		}
		inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			errs = append(errs, fmt.Errorf("command %q: decode: %w", d.Name, err))
			continue
		}
		if err := schema.Validate(inst); err != nil {
			errs = append(errs, fmt.Errorf("command %q: %w", d.Name, err))
		}
	}
	return errors.Join(errs...)
}
