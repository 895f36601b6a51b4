package utils

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2021-07-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDate("07/01/2021")
	assert.Error(t, err)
}

func TestConvertDateTime(t *testing.T) {
	want := time.Date(2021, 7, 1, 12, 30, 0, 0, time.UTC)

	cases := map[string]interface{}{
		"time":         want.In(time.FixedZone("CET", 3600)),
		"epoch number": json.Number("1625142600"),
		"epoch int":    int64(1625142600),
		"epoch float":  float64(1625142600),
		"rfc3339":      "2021-07-01T12:30:00Z",
		"sql":          "2021-07-01 12:30:00",
		"sqlite":       "2021-07-01 12:30:00+00:00",
		"mongo":        primitive.NewDateTimeFromTime(want),
		"bytes":        []byte("2021-07-01T12:30:00Z"),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ConvertDateTime(in)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %v", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	_, err := ConvertDateTime(map[string]any{})
	assert.Error(t, err)
	_, err = ConvertDateTime("yesterday")
	assert.Error(t, err)
}

func TestConvertToInt64(t *testing.T) {
	n, err := ConvertToInt64(json.Number("9007199254740993"))
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), n)

	n, err = ConvertToInt64(float64(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	_, err = ConvertToInt64(1.5)
	assert.Error(t, err)
	_, err = ConvertToInt64(true)
	assert.Error(t, err)
}

func TestConvertToString(t *testing.T) {
	s, err := ConvertToString(json.Number("12"))
	require.NoError(t, err)
	assert.Equal(t, "12", s)

	s, err = ConvertToString(false)
	require.NoError(t, err)
	assert.Equal(t, "false", s)

	_, err = ConvertToString(map[string]any{"a": 1})
	assert.Error(t, err)
}

func TestConvertToBoolAndFloat(t *testing.T) {
	b, err := ConvertToBool("true")
	require.NoError(t, err)
	assert.True(t, b)

	f, err := ConvertToFloat(json.Number("0.25"))
	require.NoError(t, err)
	assert.Equal(t, 0.25, f)

	_, err = ConvertToBool(1)
	assert.Error(t, err)
}
