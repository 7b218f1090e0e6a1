package wot

import (
	"fmt"
	"os"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationError struct {
	Field string `json:"field"`
	Descr string `json:"description"`
}

// ValidationErrors is a list of issues found in a Thing Description
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msg string
	for i, issue := range e {
		if i > 0 {
			msg += ", "
		}
		msg += fmt.Sprintf("%s: %s", issue.Field, issue.Descr)
	}
	return "invalid Thing Description: " + msg
}

// ThingDescriptionSchema is the subset of the TD 1.0 JSON Schema that is checked for every TD
const ThingDescriptionSchema = `
{
    "type": "object",
    "required": ["@context", "title", "security", "securityDefinitions"],
    "properties": {
        "id": {
            "type": "string",
            "format": "uri"
        },
        "title": {
            "type": "string"
        },
        "base": {
            "type": "string",
            "format": "uri"
        },
        "security": {
            "oneOf": [
                {"type": "string"},
                {"type": "array", "items": {"type": "string"}}
            ]
        },
        "securityDefinitions": {
            "type": "object",
            "minProperties": 1,
            "additionalProperties": {
                "type": "object",
                "required": ["scheme"],
                "properties": {
                    "scheme": {"type": "string"}
                }
            }
        },
        "properties": {
            "type": "object",
            "additionalProperties": {"$ref": "#/definitions/affordance"}
        },
        "actions": {
            "type": "object",
            "additionalProperties": {"$ref": "#/definitions/affordance"}
        },
        "events": {
            "type": "object",
            "additionalProperties": {"$ref": "#/definitions/affordance"}
        },
        "links": {
            "type": "array",
            "items": {
                "type": "object",
                "required": ["href"]
            }
        }
    },
    "definitions": {
        "affordance": {
            "type": "object",
            "properties": {
                "forms": {
                    "type": "array",
                    "minItems": 1,
                    "items": {
                        "type": "object",
                        "required": ["href"],
                        "properties": {
                            "href": {"type": "string"}
                        }
                    }
                }
            }
        }
    }
}
`

const DiscoverySchema = `
{
    "type":"object",
    "properties":{
        "registration":{
            "type":"object",
            "properties":{
                "created":{
                    "type":"string",
                    "format":"date-time"
                },
                "expires":{
                    "type":"string",
                    "format":"date-time"
                },
                "retrieved":{
                    "type":"string",
                    "format":"date-time"
                },
                "modified":{
                    "type":"string",
                    "format":"date-time"
                },
                "ttl":{
                    "type":"number"
                }
            }
        }
    }
}
`

var (
	schemaMu          sync.RWMutex
	loadedJSONSchemas []*gojsonschema.Schema
	tdSchema          *gojsonschema.Schema
	discoverySchema   *gojsonschema.Schema
)

// LoadJSONSchemas loads additional JSON Schema files which every TD is validated against
func LoadJSONSchemas(paths []string) error {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	for _, path := range paths {
		file, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("error reading file: %s", err)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(file))
		if err != nil {
			return fmt.Errorf("error loading schema %s: %s", path, err)
		}
		loadedJSONSchemas = append(loadedJSONSchemas, schema)
	}
	return nil
}

// LoadedJSONSchemas reports whether additional schemas have been loaded
func LoadedJSONSchemas() bool {
	schemaMu.RLock()
	defer schemaMu.RUnlock()
	return len(loadedJSONSchemas) > 0
}

func builtinSchemas() (*gojsonschema.Schema, *gojsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	if tdSchema == nil {
		// load schemas into memory on first validation call
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(ThingDescriptionSchema))
		if err != nil {
			return nil, nil, fmt.Errorf("error loading WoT Schema: %s", err)
		}
		d, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(DiscoverySchema))
		if err != nil {
			return nil, nil, fmt.Errorf("error loading discovery schema: %s", err)
		}
		tdSchema, discoverySchema = s, d
	}
	return tdSchema, discoverySchema, nil
}

// ValidateMap validates the generic representation of a TD against the TD schema and any loaded schemas
func ValidateMap(td *map[string]any) ([]ValidationError, error) {
	schema, _, err := builtinSchemas()
	if err != nil {
		return nil, err
	}
	issues, err := validateAgainstSchema(td, schema)
	if err != nil {
		return nil, err
	}

	schemaMu.RLock()
	extra := loadedJSONSchemas
	schemaMu.RUnlock()
	for _, s := range extra {
		more, err := validateAgainstSchema(td, s)
		if err != nil {
			return nil, err
		}
		issues = append(issues, more...)
	}
	return issues, nil
}

// ValidateTD validates a TD document. Issues are returned as ValidationErrors.
func ValidateTD(td ThingDescription) error {
	m, err := td.ToMap()
	if err != nil {
		return err
	}
	issues, err := ValidateMap(&m)
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		return ValidationErrors(issues)
	}
	return nil
}

// ValidateDiscoveryExtensions validates the registration metadata added by directories
func ValidateDiscoveryExtensions(td *map[string]any) ([]ValidationError, error) {
	_, schema, err := builtinSchemas()
	if err != nil {
		return nil, err
	}
	return validateAgainstSchema(td, schema)
}

func validateAgainstSchema(td *map[string]any, schema *gojsonschema.Schema) ([]ValidationError, error) {
	result, err := schema.Validate(gojsonschema.NewGoLoader(td))
	if err != nil {
		return nil, err
	}

	if !result.Valid() {
		var issues []ValidationError
		for _, re := range result.Errors() {
			issues = append(issues, ValidationError{Field: re.Field(), Descr: re.Description()})
		}
		return issues, nil
	}

	return nil, nil
}
