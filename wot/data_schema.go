package wot

import (
	"fmt"
	"regexp"
)

// Data types of a DataSchema
const (
	DataTypeBoolean = "boolean"
	DataTypeInteger = "integer"
	DataTypeNumber  = "number"
	DataTypeString  = "string"
	DataTypeObject  = "object"
	DataTypeArray   = "array"
	DataTypeNull    = "null"
)

/*
Metadata that describes the data format used. It can be used for validation.
The variant specific terms are held in the embedded pointers, of which at most one is set and it must agree with DataType.
*/
type DataSchema struct {
	// JSON-LD keyword to label the object with semantic tags (or types)
	Type any `json:"@type,omitempty"`

	// Provides a human-readable title (e.g., display a text for UI representation) based on a default language.
	Title string `json:"title,omitempty"`

	// Provides multi-language human-readable titles (e.g., display a text for UI representation in different languages).
	Titles map[string]string `json:"titles,omitempty"`

	// Provides additional (human-readable) information based on a default language
	Description string `json:"description,omitempty"`

	// Can be used to support (human-readable) information in different languages.
	Descriptions map[string]string `json:"descriptions,omitempty"`

	// Assignment of JSON-based data types compatible with JSON Schema (one of boolean, integer, number, string, object, array, or null).
	DataType string `json:"type,omitempty"`

	// Provides a constant value.
	Const any `json:"const,omitempty"`

	// Restricted set of values provided as an array.
	Enum []any `json:"enum,omitempty"`

	// Provides unit information that is used, e.g., in international science, engineering, and business.
	Unit string `json:"unit,omitempty"`

	// Allows validation based on a format pattern such as "date-time", "email", "uri", etc.
	Format string `json:"format,omitempty"`

	// Used to ensure that the data is valid against one of the specified schemas in the array.
	OneOf []DataSchema `json:"oneOf,omitempty"`

	// Boolean value that is a hint to indicate whether a property interaction / value is read only (=true) or not (=false).
	ReadOnly bool `json:"readOnly,omitempty"`

	// Boolean value that is a hint to indicate whether a property interaction / value is write only (=true) or not (=false).
	WriteOnly bool `json:"writeOnly,omitempty"`

	*NumberSchema
	*StringSchema
	*ArraySchema
	*ObjectSchema
}

// NumberSchema holds the terms of integer and number schemas
type NumberSchema struct {
	// Specifies a minimum numeric value. Only applicable for associated number or integer types.
	Minimum *float64 `json:"minimum,omitempty"`

	// Specifies a maximum numeric value. Only applicable for associated number or integer types.
	Maximum *float64 `json:"maximum,omitempty"`

	ExclusiveMinimum *float64 `json:"exclusiveMinimum,omitempty"`
	ExclusiveMaximum *float64 `json:"exclusiveMaximum,omitempty"`
	MultipleOf       *float64 `json:"multipleOf,omitempty"`
}

// StringSchema holds the terms of string schemas
type StringSchema struct {
	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`

	ContentEncoding  string `json:"contentEncoding,omitempty"`
	ContentMediaType string `json:"contentMediaType,omitempty"`
}

// ArraySchema holds the terms of array schemas
type ArraySchema struct {
	// Used to define the characteristics of an array.
	Items *DataSchema `json:"items,omitempty"`

	// Defines the minimum number of items that have to be in the array.
	MinItems *int `json:"minItems,omitempty"`

	// Defines the maximum number of items that have to be in the array.
	MaxItems *int `json:"maxItems,omitempty"`
}

// ObjectSchema holds the terms of object schemas
type ObjectSchema struct {
	// Data schema nested definitions.
	Properties map[string]DataSchema `json:"properties,omitempty"`

	// Defines which members of the object type are mandatory.
	Required []string `json:"required,omitempty"`
}

// CheckConsistency reports an error when the schema's terms do not fit its data type
func (s *DataSchema) CheckConsistency() error {
	return s.checkConsistency("")
}

func (s *DataSchema) checkConsistency(path string) error {
	if s == nil {
		return nil
	}
	fail := func(format string, a ...any) error {
		return &SchemaError{Path: path, Reason: fmt.Sprintf(format, a...)}
	}

	switch s.DataType {
	case "", DataTypeBoolean, DataTypeInteger, DataTypeNumber, DataTypeString,
		DataTypeObject, DataTypeArray, DataTypeNull:
	default:
		return fail("unknown data type %q", s.DataType)
	}

	if s.NumberSchema != nil {
		if s.DataType != DataTypeInteger && s.DataType != DataTypeNumber {
			return fail("numeric terms given for %s schema", typeName(s.DataType))
		}
		n := s.NumberSchema
		if n.Minimum != nil && n.Maximum != nil && *n.Minimum > *n.Maximum {
			return fail("minimum %v greater than maximum %v", *n.Minimum, *n.Maximum)
		}
		if n.MultipleOf != nil && *n.MultipleOf <= 0 {
			return fail("multipleOf must be positive")
		}
	}
	if s.StringSchema != nil {
		if s.DataType != DataTypeString {
			return fail("string terms given for %s schema", typeName(s.DataType))
		}
		st := s.StringSchema
		if st.MinLength != nil && st.MaxLength != nil && *st.MinLength > *st.MaxLength {
			return fail("minLength %d greater than maxLength %d", *st.MinLength, *st.MaxLength)
		}
		if st.Pattern != "" {
			if _, err := regexp.Compile(st.Pattern); err != nil {
				return fail("invalid pattern: %s", err)
			}
		}
	}
	if s.ArraySchema != nil {
		if s.DataType != DataTypeArray {
			return fail("array terms given for %s schema", typeName(s.DataType))
		}
		a := s.ArraySchema
		if a.MinItems != nil && a.MaxItems != nil && *a.MinItems > *a.MaxItems {
			return fail("minItems %d greater than maxItems %d", *a.MinItems, *a.MaxItems)
		}
		if err := a.Items.checkConsistency(path + "/items"); err != nil {
			return err
		}
	}
	if s.ObjectSchema != nil {
		if s.DataType != DataTypeObject {
			return fail("object terms given for %s schema", typeName(s.DataType))
		}
		for name, p := range s.Properties {
			p := p
			if err := p.checkConsistency(path + "/properties/" + name); err != nil {
				return err
			}
		}
		for _, r := range s.Required {
			if _, found := s.Properties[r]; !found && len(s.Properties) > 0 {
				return fail("required member %q is not defined", r)
			}
		}
	}
	for i := range s.OneOf {
		if err := s.OneOf[i].checkConsistency(fmt.Sprintf("%s/oneOf/%d", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func typeName(dataType string) string {
	if dataType == "" {
		return "untyped"
	}
	return dataType
}
