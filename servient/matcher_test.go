package servient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchFragment(t *testing.T) {
	td := map[string]any{
		"id":       "urn:example:lamp",
		"title":    "lamp1",
		"@type":    []any{"saref:LightSwitch", "Device"},
		"security": []any{"basic_sc"},
		"properties": map[string]any{
			"status": map[string]any{"type": "string", "observable": true},
		},
		"version": map[string]any{"instance": "1.0"},
	}

	tests := []struct {
		name     string
		fragment map[string]any
		match    bool
	}{
		{"empty", map[string]any{}, true},
		{"title", map[string]any{"title": "lamp1"}, true},
		{"name alias", map[string]any{"name": "lamp1"}, true},
		{"name mismatch", map[string]any{"name": "lamp2"}, false},
		{"missing field", map[string]any{"support": "mailto:x"}, false},
		{"nested", map[string]any{"properties": map[string]any{"status": map[string]any{"observable": true}}}, true},
		{"nested mismatch", map[string]any{"properties": map[string]any{"status": map[string]any{"type": "number"}}}, false},
		{"nested missing", map[string]any{"properties": map[string]any{"brightness": map[string]any{}}}, false},
		{"array subset", map[string]any{"@type": []any{"Device"}}, true},
		{"array not subset", map[string]any{"@type": []any{"Device", "Sensor"}}, false},
		{"scalar against singleton array", map[string]any{"security": "basic_sc"}, true},
		{"singleton array against scalar", map[string]any{"title": []any{"lamp1"}}, true},
		{"type mismatch", map[string]any{"version": "1.0"}, false},
		{"nested object", map[string]any{"version": map[string]any{"instance": "1.0"}}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := newMatcher(ThingFilter{Fragment: tc.fragment}, DefaultQueryEvaluator{})
			require.NoError(t, err)
			match, err := m.match(td, true)
			require.NoError(t, err)
			assert.Equal(t, tc.match, match)
		})
	}
}

func TestMatchNumbers(t *testing.T) {
	m, err := newMatcher(ThingFilter{Fragment: map[string]any{"ttl": 60}}, DefaultQueryEvaluator{})
	require.NoError(t, err)

	match, err := m.match(map[string]any{"ttl": 60.0}, true)
	require.NoError(t, err)
	assert.True(t, match)
}

func TestMatchQuery(t *testing.T) {
	td := map[string]any{"title": "lamp1"}

	m, err := newMatcher(ThingFilter{Query: "$[?(@.title=='lamp2')]"}, DefaultQueryEvaluator{})
	require.NoError(t, err)

	match, err := m.match(td, true)
	require.NoError(t, err)
	assert.False(t, match)

	// sources evaluating the query themselves skip it
	match, err = m.match(td, false)
	require.NoError(t, err)
	assert.True(t, match)
}
