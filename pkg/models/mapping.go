package models

import (
	"encoding/json"
	"fmt"
)

// ResourceSpec is the declarative definition of one upstream resource and
// the warehouse table it lands in.
type ResourceSpec struct {
	Name   string   `json:"name"`
	Table  string   `json:"table"`
	Kind   string   `json:"kind"`
	Expand []string `json:"expand,omitempty"`
	Keys   Keys     `json:"keys"`
	Schema Schema   `json:"schema"`
}

// Keys holds the increment column used for windowing and the identity key
// used for deduplication.
type Keys struct {
	Increment string   `json:"incre_key"`
	Primary   []string `json:"p_key"`
}

// TransformFunc maps a raw upstream record into a warehouse record.
type TransformFunc func(RawRecord) Record

// Resource is a resolved resource descriptor.
type Resource struct {
	ResourceSpec
	Transform TransformFunc
}

// StagingTable returns the append-only table rows are loaded into before
// the merge.
func (r *ResourceSpec) StagingTable() string {
	return r.Table + "_staging"
}

// Validate checks that keys reference top-level schema fields.
func (r *ResourceSpec) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("resource has no name")
	}
	if r.Kind == "" {
		return fmt.Errorf("resource %s: missing kind", r.Name)
	}
	if err := r.Schema.Validate(); err != nil {
		return fmt.Errorf("resource %s: %w", r.Name, err)
	}
	inc, ok := r.Schema.Lookup(r.Keys.Increment)
	if !ok {
		return fmt.Errorf("resource %s: increment column %q not in schema", r.Name, r.Keys.Increment)
	}
	if inc.Type != TypeTimestamp {
		return fmt.Errorf("resource %s: increment column %q must be TIMESTAMP, got %s", r.Name, inc.Name, inc.Type)
	}
	if len(r.Keys.Primary) == 0 {
		return fmt.Errorf("resource %s: empty identity key", r.Name)
	}
	for _, k := range r.Keys.Primary {
		f, ok := r.Schema.Lookup(k)
		if !ok {
			return fmt.Errorf("resource %s: identity key %q not in schema", r.Name, k)
		}
		if f.Type == TypeRecord {
			return fmt.Errorf("resource %s: identity key %q cannot be a record", r.Name, k)
		}
	}
	return nil
}

// ParseResourceSpec parses a resource definition, applies defaults and
// validates it.
func ParseResourceSpec(data []byte) (*ResourceSpec, error) {
	var r ResourceSpec
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r.Table == "" {
		r.Table = r.Name
	}
	if r.Keys.Increment == "" {
		r.Keys.Increment = "created"
	}
	if len(r.Keys.Primary) == 0 {
		r.Keys.Primary = []string{"id"}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}
