package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldType is the warehouse type of a schema field.
type FieldType string

const (
	TypeString    FieldType = "STRING"
	TypeInteger   FieldType = "INTEGER"
	TypeFloat     FieldType = "FLOAT"
	TypeBoolean   FieldType = "BOOLEAN"
	TypeTimestamp FieldType = "TIMESTAMP"
	TypeRecord    FieldType = "RECORD"
)

// UnmarshalJSON accepts the type name in any case ("record" and "RECORD").
func (t *FieldType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = FieldType(strings.ToUpper(strings.TrimSpace(s)))
	return nil
}

func (t FieldType) valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeTimestamp, TypeRecord:
		return true
	}
	return false
}

// Field describes one column of a warehouse table. Record fields nest
// further fields.
type Field struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
	// Source is the raw record key, when it differs from Name.
	Source string `json:"source,omitempty"`
	// Flatten serializes the source value to JSON text. STRING fields only.
	Flatten bool    `json:"flatten,omitempty"`
	Fields  []Field `json:"fields,omitempty"`
}

// SourceKey returns the raw record key this field is read from.
func (f Field) SourceKey() string {
	if f.Source != "" {
		return f.Source
	}
	return f.Name
}

// Schema is an ordered list of fields.
type Schema []Field

// Names returns the top-level field names in declaration order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for _, f := range s {
		names = append(names, f.Name)
	}
	return names
}

// Lookup finds a top-level field by name.
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks the schema recursively.
func (s Schema) Validate() error {
	return validateFields(s, "")
}

func validateFields(fields []Field, prefix string) error {
	if len(fields) == 0 {
		return fmt.Errorf("%sschema has no fields", prefix)
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		path := prefix + f.Name
		if f.Name == "" {
			return fmt.Errorf("%sfield with empty name", prefix)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %q", path)
		}
		seen[f.Name] = true

		if !f.Type.valid() {
			return fmt.Errorf("field %q: unknown type %q", path, f.Type)
		}
		if f.Flatten && f.Type != TypeString {
			return fmt.Errorf("field %q: flatten is only allowed on STRING fields", path)
		}
		if f.Type == TypeRecord {
			if err := validateFields(f.Fields, path+"."); err != nil {
				return err
			}
		} else if len(f.Fields) > 0 {
			return fmt.Errorf("field %q: nested fields on non-record type %s", path, f.Type)
		}
	}
	return nil
}
