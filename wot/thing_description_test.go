package wot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lampTD = `{
    "@context": ["https://www.w3.org/2019/wot/td/v1", {"saref": "https://w3id.org/saref#"}],
    "@type": "saref:LightSwitch",
    "id": "urn:example:lamp",
    "title": "Lamp",
    "base": "http://192.168.1.10:8080/lamp/",
    "securityDefinitions": {
        "basic_sc": {"scheme": "basic"},
        "bearer_sc": {"scheme": "bearer", "authorization": "https://auth.example.com"}
    },
    "security": "basic_sc",
    "properties": {
        "status": {
            "title": "Status",
            "type": "string",
            "enum": ["on", "off"],
            "observable": true,
            "forms": [{"href": "properties/status", "op": ["readproperty", "writeproperty"]}]
        },
        "brightness": {
            "type": "integer",
            "minimum": 0,
            "maximum": 100,
            "readOnly": true,
            "forms": [{"href": "properties/brightness", "op": "readproperty"}]
        }
    },
    "actions": {
        "toggle": {
            "output": {"type": "string"},
            "forms": [{"href": "actions/toggle"}]
        }
    },
    "events": {
        "overheating": {
            "data": {"type": "number"},
            "forms": [{"href": "events/overheating", "subprotocol": "longpoll"}]
        }
    },
    "registration": {"ttl": 60},
    "vendor:serial": "X-100"
}`

func TestThingDescriptionJSON(t *testing.T) {
	var td ThingDescription
	require.NoError(t, json.Unmarshal([]byte(lampTD), &td))

	t.Run("decode", func(t *testing.T) {
		assert.Equal(t, "urn:example:lamp", td.ID)
		assert.Equal(t, Strings{"basic_sc"}, td.Security)

		status := td.Properties["status"]
		assert.Equal(t, "Status", status.InteractionAffordance.Title)
		assert.Equal(t, DataTypeString, status.DataType)
		assert.True(t, status.Observable)
		assert.True(t, status.Writable())
		assert.Equal(t, Strings{OpReadProperty, OpWriteProperty}, status.Forms[0].Op)

		brightness := td.Properties["brightness"]
		assert.False(t, brightness.Writable())
		require.NotNil(t, brightness.NumberSchema)
		assert.Equal(t, 100.0, *brightness.Maximum)

		toggle := td.Actions["toggle"]
		assert.Nil(t, toggle.Input)
		require.NotNil(t, toggle.Output)
		assert.Equal(t, DataTypeString, toggle.Output.DataType)

		assert.Equal(t, "longpoll", td.Events["overheating"].Forms[0].SubProtocol)
	})

	t.Run("extensions are kept", func(t *testing.T) {
		assert.Equal(t, "X-100", td.Extensions["vendor:serial"])
		assert.Equal(t, map[string]any{"ttl": 60.0}, td.Extensions["registration"])

		b, err := json.Marshal(td)
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.Unmarshal(b, &m))
		assert.Equal(t, "X-100", m["vendor:serial"])
		assert.Equal(t, "saref:LightSwitch", m["@type"])
		assert.Len(t, m["@context"], 2)
	})

	t.Run("round trip", func(t *testing.T) {
		b, err := json.Marshal(td)
		require.NoError(t, err)
		var again ThingDescription
		require.NoError(t, json.Unmarshal(b, &again))
		assert.Equal(t, td, again)
	})
}

func TestPropertyAffordanceTitles(t *testing.T) {
	p := PropertyAffordance{
		InteractionAffordance: InteractionAffordance{Title: "Temperature"},
		DataSchema:            DataSchema{DataType: DataTypeNumber, Title: "Celsius", Unit: "celsius"},
	}
	b, err := json.Marshal(p)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "Temperature", m["title"])
	assert.Equal(t, "celsius", m["unit"])
	assert.Equal(t, "number", m["type"])
	assert.NotContains(t, m, "observable")
}

func TestFormResolve(t *testing.T) {
	tests := []struct {
		base, href, expected string
	}{
		{"http://example.com/things/lamp/", "properties/status", "http://example.com/things/lamp/properties/status"},
		{"http://example.com/things/lamp", "properties/status", "http://example.com/things/properties/status"},
		{"http://example.com/things/lamp/", "/status", "http://example.com/status"},
		{"http://example.com/", "coap://other:5683/status", "coap://other:5683/status"},
		{"", "properties/status", "properties/status"},
	}
	for _, tc := range tests {
		t.Run(tc.base+"|"+tc.href, func(t *testing.T) {
			resolved, err := Form{Href: tc.href}.Resolve(tc.base)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, resolved)
		})
	}
}

func TestFormFor(t *testing.T) {
	a := InteractionAffordance{Forms: []Form{
		{Href: "read", Op: Strings{OpReadProperty}},
		{Href: "observe", Op: Strings{OpObserveProperty, OpUnobserveProperty}},
	}}
	f, found := a.FormFor(OpObserveProperty)
	assert.True(t, found)
	assert.Equal(t, "observe", f.Href)

	_, found = a.FormFor(OpWriteProperty)
	assert.False(t, found)

	f, found = InteractionAffordance{Forms: []Form{{Href: "any"}}}.FormFor(OpWriteProperty)
	assert.True(t, found)
	assert.Equal(t, DefaultContentType, f.MediaType())
}

func TestStrings(t *testing.T) {
	var s Strings
	require.NoError(t, json.Unmarshal([]byte(`"a"`), &s))
	assert.Equal(t, Strings{"a"}, s)
	require.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &s))
	assert.Equal(t, Strings{"a", "b"}, s)
	assert.Error(t, json.Unmarshal([]byte(`1`), &s))
}
