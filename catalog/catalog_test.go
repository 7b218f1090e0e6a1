// Copyright 2014-2016 Fraunhofer Institute for Applied Information Technology FIT

package catalog

import (
	"testing"
)

// here are only the tests related to non-standard TD vocabulary
func TestValidateThingDescription(t *testing.T) {
	t.Run("non-float TTL", func(t *testing.T) {
		var td = map[string]any{
			"@context": "https://www.w3.org/2019/wot/td/v1",
			"id":       "urn:example:test/thing1",
			"title":    "example thing",
			"security": []string{"basic_sc"},
			"securityDefinitions": map[string]any{
				"basic_sc": map[string]string{
					"in":     "header",
					"scheme": "basic",
				},
			},
			"registration": map[string]any{
				"ttl": "60",
			},
		}
		results, err := validateThingDescription(td)
		if err != nil {
			t.Fatalf("internal validation error: %s", err)
		}
		if len(results) == 0 {
			t.Fatalf("Didn't return error on string TTL.")
		}
	})

	t.Run("float TTL", func(t *testing.T) {
		var td = map[string]any{
			"@context": "https://www.w3.org/2019/wot/td/v1",
			"title":    "example thing",
			"security": "nosec_sc",
			"securityDefinitions": map[string]any{
				"nosec_sc": map[string]string{
					"scheme": "nosec",
				},
			},
			"registration": map[string]any{
				"ttl": 60.5,
			},
		}
		results, err := validateThingDescription(td)
		if err != nil {
			t.Fatalf("internal validation error: %s", err)
		}
		if len(results) != 0 {
			t.Fatalf("Unexpected validation errors: %v", results)
		}
	})

	t.Run("missing security definitions", func(t *testing.T) {
		var td = map[string]any{
			"@context": "https://www.w3.org/2019/wot/td/v1",
			"title":    "example thing",
			"security": "nosec_sc",
		}
		results, err := validateThingDescription(td)
		if err != nil {
			t.Fatalf("internal validation error: %s", err)
		}
		if len(results) == 0 {
			t.Fatalf("Didn't return error on missing securityDefinitions.")
		}
	})
}
