package etl

import (
	"fmt"

	"github.com/BartekS5/paysync/pkg/models"
)

type Validator struct {
	Schema models.Schema
}

func NewValidator(schema models.Schema) *Validator {
	return &Validator{Schema: schema}
}

// ValidateRecord checks that rec has exactly the schema's keys, recursing
// into nested records.
func (v *Validator) ValidateRecord(rec models.Record) error {
	return conform(v.Schema, rec, "")
}

// ValidateAll stops at the first non-conforming record.
func (v *Validator) ValidateAll(recs []models.Record) error {
	for i, rec := range recs {
		if err := v.ValidateRecord(rec); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

func conform(fields []models.Field, rec map[string]any, prefix string) error {
	if len(rec) != len(fields) {
		for k := range rec {
			if !hasField(fields, k) {
				return fmt.Errorf("%w: unexpected field %q", ErrSchemaViolation, prefix+k)
			}
		}
	}
	for _, f := range fields {
		val, ok := rec[f.Name]
		if !ok {
			return fmt.Errorf("%w: missing field %q", ErrSchemaViolation, prefix+f.Name)
		}
		if f.Type != models.TypeRecord || val == nil {
			continue
		}
		nested, ok := asMap(val)
		if !ok {
			return fmt.Errorf("%w: field %q is %T, want record", ErrSchemaViolation, prefix+f.Name, val)
		}
		if err := conform(f.Fields, nested, prefix+f.Name+"."); err != nil {
			return err
		}
	}
	return nil
}

func hasField(fields []models.Field, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case models.Record:
		return m, true
	case models.RawRecord:
		return m, true
	case map[string]any:
		return m, true
	}
	return nil, false
}
