package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleArgs struct {
	Query    string  `json:"query" description:"Search query"`
	Limit    int     `json:"limit,omitempty" description:"Max results"`
	Score    float64 `json:"score"`
	Optional *string `json:"optional"`
	hidden   string  `json:"hidden"`
	Skipped  string  `json:"-"`
}

func TestFromStruct(t *testing.T) {
	schema := FromStruct(sampleArgs{})

	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "limit")
	assert.Contains(t, props, "score")
	assert.Contains(t, props, "optional")
	assert.NotContains(t, props, "hidden")
	assert.NotContains(t, props, "Skipped")

	query := props["query"].(map[string]any)
	assert.Equal(t, "string", query["type"])
	assert.Equal(t, "Search query", query["description"])
	assert.Equal(t, "integer", props["limit"].(map[string]any)["type"])
	assert.Equal(t, "number", props["score"].(map[string]any)["type"])

	// Pointer and omitempty fields are optional.
	required, ok := schema["required"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"query", "score"}, required)
}

func TestFromStructNonStruct(t *testing.T) {
	schema := FromStruct("not a struct")
	assert.Equal(t, "object", schema["type"])
	assert.Empty(t, schema["properties"])
}

func TestValidateRequiredFields(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		"required": []any{"x"},
	}

	assert.NoError(t, Validate(map[string]any{"x": 5}, schema))

	err := Validate(map[string]any{}, schema)
	require.Error(t, err)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "x", vErr.Field)
}

func TestValidateTypeChecks(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":   map[string]any{"type": "string"},
			"count":  map[string]any{"type": "integer"},
			"ratio":  map[string]any{"type": "number"},
			"active": map[string]any{"type": "boolean"},
			"tags":   map[string]any{"type": "array"},
			"extra":  map[string]any{"type": "object"},
		},
	}

	valid := map[string]any{
		"name":   "a",
		"count":  float64(3), // JSON decoding yields float64
		"ratio":  1.5,
		"active": true,
		"tags":   []any{"x"},
		"extra":  map[string]any{},
	}
	assert.NoError(t, Validate(valid, schema))

	err := Validate(map[string]any{"count": 2.5}, schema)
	require.Error(t, err)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "count", vErr.Field)

	assert.Error(t, Validate(map[string]any{"name": 1}, schema))
	assert.Error(t, Validate(map[string]any{"active": "yes"}, schema))
}

func TestValidateExtraFieldsPass(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	assert.NoError(t, Validate(map[string]any{"anything": 1}, schema))
}

func TestValidateNilValuesPass(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "string"},
		},
	}
	assert.NoError(t, Validate(map[string]any{"x": nil}, schema))
}
