package commands

import (
	"errors"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/basket/haxxor-bunny/internal/hi3"
	"github.com/basket/haxxor-bunny/internal/interactions"
	"github.com/basket/haxxor-bunny/internal/persistence"
)

// Custom formats used by the argument schemas. Non-string values are left
// to the "type" keyword.
var argFormats = []*jsonschema.Format{
	{Name: "emoji", Validate: stringFormat(func(s string) bool { return hi3.IsSingleEmoji(s) }, "not a single emoji")},
	{Name: "entity-id", Validate: stringFormat(persistence.ValidID, "not an entity id")},
	{Name: "acronyms", Validate: stringFormat(func(s string) bool {
		_, err := hi3.ParseAcronyms(s)
		return err == nil
	}, "not an acronym list")},
	{Name: "delta-acronyms", Validate: stringFormat(func(s string) bool {
		_, err := hi3.ParseDeltaAcronyms(s)
		return err == nil
	}, "not an acronym delta list")},
}

func stringFormat(ok func(string) bool, msg string) func(any) error {
	return func(v any) error {
		s, isString := v.(string)
		if !isString || ok(s) {
			return nil
		}
		return errors.New(msg)
	}
}

func argSchema(name, doc string) *interactions.ArgSchema {
	return interactions.MustArgSchema(name, doc, argFormats...)
}
