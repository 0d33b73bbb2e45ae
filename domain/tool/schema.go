package tool

import "encoding/json"

// Schema wraps the JSON Schema advertised to the model for a tool's arguments.
type Schema struct {
	raw json.RawMessage
}

// NewSchema creates a schema from raw JSON.
func NewSchema(raw json.RawMessage) Schema {
	return Schema{raw: raw}
}

// EmptySchema returns an object schema without properties.
func EmptySchema() Schema {
	return Schema{raw: json.RawMessage(`{"type":"object","properties":{}}`)}
}

// ObjectSchema returns a schema for an object with the given properties.
func ObjectSchema(properties map[string]json.RawMessage, required []string) Schema {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	raw, _ := json.Marshal(schema)
	return Schema{raw: raw}
}

// Raw returns the underlying JSON schema.
func (s Schema) Raw() json.RawMessage {
	return s.raw
}

// IsEmpty returns true if the schema is empty or nil.
func (s Schema) IsEmpty() bool {
	return len(s.raw) == 0 || string(s.raw) == "{}" || string(s.raw) == "null" ||
		string(s.raw) == `{"type":"object","properties":{}}`
}

// Validate checks that data is a JSON document. Blank arguments are accepted
// for tools without parameters.
func (s Schema) Validate(data json.RawMessage) error {
	if len(data) == 0 {
		return nil
	}
	if !json.Valid(data) {
		return ErrInvalidInput
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s.raw == nil {
		return []byte("{}"), nil
	}
	return s.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Schema) UnmarshalJSON(data []byte) error {
	s.raw = data
	return nil
}

// StringProperty returns a string property definition for ObjectSchema.
func StringProperty(description string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{
		"type":        "string",
		"description": description,
	})
	return raw
}
