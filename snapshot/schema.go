package snapshot

import "github.com/invopop/jsonschema"

// JSONSchema describes the wire form of a field value for the schema
// generator.
func (Value) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Description: "Entity field value: number, string, boolean, quaternion or null",
		OneOf: []*jsonschema.Schema{
			{Type: "number"},
			{Type: "string"},
			{Type: "boolean"},
			{Type: "null"},
			{
				Type:        "object",
				Title:       "Quaternion",
				Description: "Rotation quaternion blended with slerp",
				Required:    []string{"x", "y", "z", "w"},
			},
		},
	}
}

// JSONSchema describes the wire form of an entity identifier.
func (EntityID) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Description: "Stable entity identifier",
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "integer"},
		},
	}
}

// JSONSchema describes the flat wire form of an entity.
func (Entity) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:              "object",
		Title:             "Entity",
		Description:       "Flat entity record; every key other than id is a field value",
		Required:          []string{idKey},
		PatternProperties: map[string]*jsonschema.Schema{
			".*": Value{}.JSONSchema(),
		},
	}
}
