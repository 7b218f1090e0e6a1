package servient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultQueryEvaluator(t *testing.T) {
	td := map[string]any{
		"id":    "urn:example:lamp",
		"title": "lamp1",
		"properties": map[string]any{
			"status": map[string]any{"type": "string"},
		},
	}

	tests := []struct {
		query string
		match bool
	}{
		{"$[?(@.title=='lamp1')]", true},
		{"$[?(@.title=='lamp2')]", false},
		{"$[*].properties.status", true},
		{"//*[title='lamp1']", true},
		{"//*[title='lamp2']", false},
		{"//properties/status", true},
		{"//properties/brightness", false},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			match, err := DefaultQueryEvaluator{}.Evaluate(tc.query, td)
			require.NoError(t, err)
			assert.Equal(t, tc.match, match)
		})
	}

	t.Run("invalid xpath", func(t *testing.T) {
		_, err := DefaultQueryEvaluator{}.Evaluate("//*[", td)
		assert.Error(t, err)
	})
}
