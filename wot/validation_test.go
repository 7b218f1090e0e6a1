package wot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSchemas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra_schema.json")
	err := os.WriteFile(path, []byte(`{"type":"object","required":["description"]}`), 0600)
	if err != nil {
		t.Fatalf("error writing schema: %s", err)
	}

	err = LoadJSONSchemas([]string{path})
	if err != nil {
		t.Fatalf("error loading schema: %s", err)
	}
	if !LoadedJSONSchemas() {
		t.Fatalf("JSON Schema was not loaded into memory")
	}
	defer func() {
		schemaMu.Lock()
		loadedJSONSchemas = nil
		schemaMu.Unlock()
	}()

	td := map[string]any{
		"@context":            DefaultContext,
		"title":               "example thing",
		"security":            []string{"nosec_sc"},
		"securityDefinitions": map[string]any{"nosec_sc": map[string]string{"scheme": "nosec"}},
	}
	results, err := ValidateMap(&td)
	if err != nil {
		t.Fatalf("internal validation error: %s", err)
	}
	if len(results) == 0 {
		t.Fatalf("Didn't apply the loaded schema")
	}

	t.Run("missing file", func(t *testing.T) {
		err := LoadJSONSchemas([]string{filepath.Join(t.TempDir(), "missing.json")})
		if err == nil {
			t.Fatalf("Didn't return error on missing schema file")
		}
	})
}

func TestValidateAgainstSchema(t *testing.T) {
	schema, _, err := builtinSchemas()
	if err != nil {
		t.Fatalf("error loading schema: %s", err)
	}

	t.Run("valid", func(t *testing.T) {
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
		}
		results, err := validateAgainstSchema(&td, schema)
		if err != nil {
			t.Fatalf("internal validation error: %s", err)
		}
		if len(results) != 0 {
			t.Fatalf("Unexpected validation errors: %v", results)
		}
	})

	t.Run("non-URI ID", func(t *testing.T) {
		var td = map[string]any{
			"@context": "https://www.w3.org/2019/wot/td/v1",
			"id":       "not-a-uri",
			"title":    "example thing",
			"security": []string{"basic_sc"},
			"securityDefinitions": map[string]any{
				"basic_sc": map[string]string{
					"in":     "header",
					"scheme": "basic",
				},
			},
		}
		results, err := validateAgainstSchema(&td, schema)
		if err != nil {
			t.Fatalf("internal validation error: %s", err)
		}
		if len(results) == 0 {
			t.Fatalf("Didn't return error on non-URI ID: %s", td["id"])
		}
	})

	t.Run("missing mandatory title", func(t *testing.T) {
		var td = map[string]any{
			"@context": "https://www.w3.org/2019/wot/td/v1",
			"id":       "urn:example:test/thing1",
			"security": []string{"basic_sc"},
			"securityDefinitions": map[string]any{
				"basic_sc": map[string]string{
					"in":     "header",
					"scheme": "basic",
				},
			},
		}
		results, err := validateAgainstSchema(&td, schema)
		if err != nil {
			t.Fatalf("internal validation error: %s", err)
		}
		if len(results) == 0 {
			t.Fatalf("Didn't return error on missing mandatory title.")
		}
	})

	t.Run("form without href", func(t *testing.T) {
		var td = map[string]any{
			"@context":            "https://www.w3.org/2019/wot/td/v1",
			"title":               "example thing",
			"security":            "nosec_sc",
			"securityDefinitions": map[string]any{"nosec_sc": map[string]string{"scheme": "nosec"}},
			"properties": map[string]any{
				"status": map[string]any{
					"type":  "string",
					"forms": []any{map[string]any{"op": "readproperty"}},
				},
			},
		}
		results, err := validateAgainstSchema(&td, schema)
		if err != nil {
			t.Fatalf("internal validation error: %s", err)
		}
		if len(results) == 0 {
			t.Fatalf("Didn't return error on form without href.")
		}
	})
}

func TestValidateDiscoveryExtensions(t *testing.T) {
	t.Run("non-float TTL", func(t *testing.T) {
		var td = map[string]any{
			"@context": "https://www.w3.org/2019/wot/td/v1",
			"id":       "urn:example:test/thing1",
			"title":    "example thing",
			"registration": map[string]any{
				"ttl": "60",
			},
		}
		results, err := ValidateDiscoveryExtensions(&td)
		if err != nil {
			t.Fatalf("internal validation error: %s", err)
		}
		if len(results) == 0 {
			t.Fatalf("Didn't return error on string TTL.")
		}
	})

	t.Run("valid registration", func(t *testing.T) {
		var td = map[string]any{
			"registration": map[string]any{
				"created": "2020-05-01T10:00:00Z",
				"ttl":     60.0,
			},
		}
		results, err := ValidateDiscoveryExtensions(&td)
		if err != nil {
			t.Fatalf("internal validation error: %s", err)
		}
		if len(results) != 0 {
			t.Fatalf("Unexpected validation errors: %v", results)
		}
	})
}

func TestValidateTD(t *testing.T) {
	td := ThingDescription{
		Context:             DefaultContext,
		ID:                  "urn:example:lamp",
		Title:               "Lamp",
		Security:            Strings{"nosec_sc"},
		SecurityDefinitions: map[string]SecurityScheme{"nosec_sc": NoSecurity()},
	}
	if err := ValidateTD(td); err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	td.Title = ""
	td.ID = "lamp"
	err := ValidateTD(td)
	issues, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("Expected ValidationErrors, got: %v", err)
	}
	if len(issues) == 0 {
		t.Fatalf("Expected validation issues")
	}
}
