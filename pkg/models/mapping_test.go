package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResourceSpecDefaults(t *testing.T) {
	spec, err := ParseResourceSpec([]byte(`{
		"name": "Customer",
		"kind": "customers",
		"schema": [
			{"name": "id", "type": "STRING"},
			{"name": "created", "type": "timestamp"},
			{"name": "metadata", "type": "record", "fields": [{"name": "city", "type": "STRING"}]}
		]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "Customer", spec.Table)
	assert.Equal(t, "created", spec.Keys.Increment)
	assert.Equal(t, []string{"id"}, spec.Keys.Primary)
	assert.Equal(t, "Customer_staging", spec.StagingTable())
	assert.Equal(t, TypeRecord, spec.Schema[2].Type)
	assert.Equal(t, []string{"id", "created", "metadata"}, spec.Schema.Names())
}

func TestParseResourceSpecErrors(t *testing.T) {
	cases := map[string]string{
		"bad json":          `{`,
		"no kind":           `{"name":"X","schema":[{"name":"id","type":"STRING"},{"name":"created","type":"TIMESTAMP"}]}`,
		"missing increment": `{"name":"X","kind":"x","schema":[{"name":"id","type":"STRING"}]}`,
		"increment type":    `{"name":"X","kind":"x","schema":[{"name":"id","type":"STRING"},{"name":"created","type":"INTEGER"}]}`,
		"unknown key":       `{"name":"X","kind":"x","keys":{"p_key":["nope"]},"schema":[{"name":"id","type":"STRING"},{"name":"created","type":"TIMESTAMP"}]}`,
		"record key":        `{"name":"X","kind":"x","keys":{"p_key":["r"]},"schema":[{"name":"r","type":"RECORD","fields":[{"name":"a","type":"STRING"}]},{"name":"created","type":"TIMESTAMP"}]}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseResourceSpec([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestSchemaValidate(t *testing.T) {
	t.Run("duplicate nested", func(t *testing.T) {
		s := Schema{{Name: "r", Type: TypeRecord, Fields: []Field{
			{Name: "a", Type: TypeString},
			{Name: "a", Type: TypeString},
		}}}
		assert.ErrorContains(t, s.Validate(), `duplicate field "r.a"`)
	})

	t.Run("empty record", func(t *testing.T) {
		s := Schema{{Name: "r", Type: TypeRecord}}
		assert.Error(t, s.Validate())
	})

	t.Run("flatten on integer", func(t *testing.T) {
		s := Schema{{Name: "n", Type: TypeInteger, Flatten: true}}
		assert.Error(t, s.Validate())
	})

	t.Run("fields on scalar", func(t *testing.T) {
		s := Schema{{Name: "n", Type: TypeString, Fields: []Field{{Name: "x", Type: TypeString}}}}
		assert.Error(t, s.Validate())
	})

	t.Run("unknown type", func(t *testing.T) {
		s := Schema{{Name: "n", Type: "GEOGRAPHY"}}
		assert.Error(t, s.Validate())
	})

	t.Run("source key", func(t *testing.T) {
		f := Field{Name: "order_id", Source: "order", Type: TypeString}
		assert.Equal(t, "order", f.SourceKey())
		assert.Equal(t, "x", Field{Name: "x"}.SourceKey())
	})
}
