package wot

import (
	"encoding/json"
	"fmt"
	"mime"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var cborDecMode, _ = cbor.DecOptions{
	DefaultMapType: reflect.TypeOf(map[string]any(nil)),
}.DecMode()

// Marshal encodes the value in the given media type.
// JSON based media types share the JSON encoding; CBOR carries the same data model.
func Marshal(mediaType string, v any) ([]byte, error) {
	switch baseMediaType(mediaType) {
	case "", MediaTypeJSON, MediaTypeJSONLD, MediaTypeThingDescription, MediaTypeMergePatch:
		return json.Marshal(v)
	case MediaTypeCBOR:
		generic, err := Normalize(v)
		if err != nil {
			return nil, err
		}
		return cbor.Marshal(generic)
	}
	return nil, fmt.Errorf("unsupported media type: %s", mediaType)
}

// Unmarshal decodes data of the given media type into v
func Unmarshal(mediaType string, data []byte, v any) error {
	switch baseMediaType(mediaType) {
	case "", MediaTypeJSON, MediaTypeJSONLD, MediaTypeThingDescription, MediaTypeMergePatch:
		return json.Unmarshal(data, v)
	case MediaTypeCBOR:
		var generic any
		if err := cborDecMode.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("error decoding CBOR: %s", err)
		}
		// go through JSON so that custom decoders of the target apply
		b, err := json.Marshal(generic)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, v)
	}
	return fmt.Errorf("unsupported media type: %s", mediaType)
}

// SupportedMediaType reports whether the media type has a codec
func SupportedMediaType(mediaType string) bool {
	switch baseMediaType(mediaType) {
	case "", MediaTypeJSON, MediaTypeJSONLD, MediaTypeThingDescription, MediaTypeMergePatch, MediaTypeCBOR:
		return true
	}
	return false
}

func baseMediaType(mediaType string) string {
	if mediaType == "" {
		return ""
	}
	t, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return mediaType
	}
	return t
}
