package wot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

/*
 This file has go models for Web Of Things (WoT) Things Description following : https://www.w3.org/TR/2020/REC-wot-thing-description-20200409/ (W3C Recommendation 9 April 2020)
*/

const (
	DefaultContext     = "https://www.w3.org/2019/wot/td/v1"
	DefaultContentType = MediaTypeJSON
)

// Operation types of forms
const (
	OpReadProperty       = "readproperty"
	OpWriteProperty      = "writeproperty"
	OpObserveProperty    = "observeproperty"
	OpUnobserveProperty  = "unobserveproperty"
	OpInvokeAction       = "invokeaction"
	OpSubscribeEvent     = "subscribeevent"
	OpUnsubscribeEvent   = "unsubscribeevent"
	OpReadAllProperties  = "readallproperties"
	OpWriteAllProperties = "writeallproperties"
	OpReadMultipleProps  = "readmultipleproperties"
	OpWriteMultipleProps = "writemultipleproperties"
)

type AnyURI = string

// ThingDescription is the structured data describing a Thing
type ThingDescription struct {

	// JSON-LD keyword to define short-hand names called terms that are used throughout a TD document.
	Context any `json:"@context"`

	// JSON-LD keyword to label the object with semantic tags (or types).
	Type any `json:"@type,omitempty"`

	// Identifier of the Thing in form of a URI [RFC3986] (e.g., stable URI, temporary and mutable URI, URI with local IP address, URN, etc.).
	ID AnyURI `json:"id,omitempty"`

	// Provides a human-readable title (e.g., display a text for UI representation) based on a default language.
	Title string `json:"title"`

	// Provides multi-language human-readable titles (e.g., display a text for UI representation in different languages).
	Titles map[string]string `json:"titles,omitempty"`

	// Provides additional (human-readable) information based on a default language
	Description string `json:"description,omitempty"`

	// Can be used to support (human-readable) information in different languages.
	Descriptions map[string]string `json:"descriptions,omitempty"`

	// Provides version information.
	Version *VersionInfo `json:"version,omitempty"`

	// Provides information when the TD instance was created.
	Created *time.Time `json:"created,omitempty"`

	// Provides information when the TD instance was last modified.
	Modified *time.Time `json:"modified,omitempty"`

	// Provides information about the TD maintainer as URI scheme (e.g., mailto [RFC6068], tel [RFC3966], https).
	Support AnyURI `json:"support,omitempty"`

	/*
		Define the base URI that is used for all relative URI references throughout a TD document. In TD instances, all relative URIs are resolved relative to the base URI using the algorithm defined in [RFC3986].

		base does not affect the URIs used in @context and the IRIs used within Linked Data [LINKED-DATA] graphs that are relevant when semantic processing is applied to TD instances.
	*/
	Base string `json:"base,omitempty"`

	// All Property-based Interaction Affordances of the Thing.
	Properties map[string]PropertyAffordance `json:"properties,omitempty"`

	// All Action-based Interaction Affordances of the Thing.
	Actions map[string]ActionAffordance `json:"actions,omitempty"`

	// All Event-based Interaction Affordances of the Thing.
	Events map[string]EventAffordance `json:"events,omitempty"`

	// Provides Web links to arbitrary resources that relate to the specified Thing Description.
	Links []Link `json:"links,omitempty"`

	// Set of form hypermedia controls that describe how an operation can be performed. Forms are serializations of Protocol Bindings. In this version of TD, all operations that can be described at the Thing level are concerning how to interact with the Thing's Properties collectively at once.
	Forms []Form `json:"forms,omitempty"`

	// Set of security definition names, chosen from those defined in securityDefinitions. These must all be satisfied for access to resources
	Security Strings `json:"security"`

	// Set of named security configurations (definitions only). Not actually applied unless names are used in a security name-value pair.
	SecurityDefinitions map[string]SecurityScheme `json:"securityDefinitions"`

	// Top-level members not modelled above (e.g. vocabulary extensions or directory metadata).
	// They are kept as-is and written back on serialization.
	Extensions map[string]any `json:"-"`
}

// thingDescription has the fields of ThingDescription without its JSON methods
type thingDescription ThingDescription

var knownTDKeys = map[string]bool{
	"@context": true, "@type": true, "id": true, "title": true, "titles": true,
	"description": true, "descriptions": true, "version": true, "created": true,
	"modified": true, "support": true, "base": true, "properties": true,
	"actions": true, "events": true, "links": true, "forms": true,
	"security": true, "securityDefinitions": true,
}

func (td ThingDescription) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(thingDescription(td))
	if err != nil || len(td.Extensions) == 0 {
		return b, err
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range td.Extensions {
		if !knownTDKeys[k] {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

func (td *ThingDescription) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var t thingDescription
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	for k, v := range raw {
		if knownTDKeys[k] {
			continue
		}
		var value any
		if err := json.Unmarshal(v, &value); err != nil {
			return fmt.Errorf("error decoding %s: %s", k, err)
		}
		if t.Extensions == nil {
			t.Extensions = make(map[string]any)
		}
		t.Extensions[k] = value
	}
	*td = ThingDescription(t)
	return nil
}

// ToMap returns the generic JSON representation of the TD
func (td ThingDescription) ToMap() (map[string]any, error) {
	b, err := json.Marshal(td)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	decoder := json.NewDecoder(bytes.NewReader(b))
	if err := decoder.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// FromMap decodes a generic JSON representation into a TD
func FromMap(m map[string]any) (ThingDescription, error) {
	var td ThingDescription
	b, err := json.Marshal(m)
	if err != nil {
		return td, err
	}
	err = json.Unmarshal(b, &td)
	return td, err
}

// Copy returns a deep copy of the TD
func (td ThingDescription) Copy() (ThingDescription, error) {
	var c ThingDescription
	b, err := json.Marshal(td)
	if err != nil {
		return c, err
	}
	err = json.Unmarshal(b, &c)
	return c, err
}

/*Metadata of a Thing that shows the possible choices to Consumers, thereby suggesting how Consumers may interact with the Thing.
There are many types of potential affordances, but W3C WoT defines three types of Interaction Affordances: Properties, Actions, and Events.*/
type InteractionAffordance struct {
	// JSON-LD keyword to label the object with semantic tags (or types).
	Type any `json:"@type,omitempty"`

	// Provides a human-readable title (e.g., display a text for UI representation) based on a default language.
	Title string `json:"title,omitempty"`

	// Provides multi-language human-readable titles (e.g., display a text for UI representation in different languages).
	Titles map[string]string `json:"titles,omitempty"`

	// Provides additional (human-readable) information based on a default language
	Description string `json:"description,omitempty"`

	// Can be used to support (human-readable) information in different languages.
	Descriptions map[string]string `json:"descriptions,omitempty"`

	/*
		Set of form hypermedia controls that describe how an operation can be performed. Forms are serializations of Protocol Bindings.
		When a Form instance is within an ActionAffordance instance, the value assigned to op MUST be invokeaction.
		When a Form instance is within an EventAffordance instance, the value assigned to op MUST be either subscribeevent, unsubscribeevent, or both terms within an Array.
		When a Form instance is within a PropertyAffordance instance, the value assigned to op MUST be one of readproperty, writeproperty, observeproperty, unobserveproperty or an Array containing a combination of these terms.

	*/
	Forms []Form `json:"forms,omitempty"`

	// Define URI template variables as collection based on DataSchema declarations.
	UriVariables map[string]DataSchema `json:"uriVariables,omitempty"`
}

// FormFor returns the first form that declares the given operation.
// A form without op is returned for any operation.
func (a InteractionAffordance) FormFor(op string) (Form, bool) {
	for _, f := range a.Forms {
		if len(f.Op) == 0 || f.Op.Contains(op) {
			return f, true
		}
	}
	return Form{}, false
}

/*
An Interaction Affordance that exposes state of the Thing. This state can then be retrieved (read) and optionally updated (write).
Things can also choose to make Properties observable by pushing the new state after a change.
*/
type PropertyAffordance struct {
	InteractionAffordance
	DataSchema
	Observable bool `json:"observable,omitempty"`
}

// Writable reports whether the property accepts writes
func (p PropertyAffordance) Writable() bool {
	return !p.ReadOnly
}

// Schema returns the data schema of the property
func (p *PropertyAffordance) Schema() *DataSchema {
	return &p.DataSchema
}

// The interaction affordance and the data schema share title, description and @type.
// The affordance's values win when serializing.
func (p PropertyAffordance) MarshalJSON() ([]byte, error) {
	m := make(map[string]any)
	if err := mergeInto(m, p.DataSchema); err != nil {
		return nil, err
	}
	if err := mergeInto(m, p.InteractionAffordance); err != nil {
		return nil, err
	}
	if p.Observable {
		m["observable"] = true
	}
	return json.Marshal(m)
}

func (p *PropertyAffordance) UnmarshalJSON(data []byte) error {
	var aux struct {
		Observable bool `json:"observable"`
	}
	if err := json.Unmarshal(data, &p.InteractionAffordance); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &p.DataSchema); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.Observable = aux.Observable
	return nil
}

func mergeInto(m map[string]any, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var part map[string]any
	if err := json.Unmarshal(b, &part); err != nil {
		return err
	}
	for k, v := range part {
		m[k] = v
	}
	return nil
}

/*
An Interaction Affordance that allows to invoke a function of the Thing, which manipulates state (e.g., toggling a lamp on or off) or triggers a process on the Thing (e.g., dim a lamp over time).
*/
type ActionAffordance struct {
	InteractionAffordance

	// Used to define the input data schema of the Action.
	Input *DataSchema `json:"input,omitempty"`

	// Used to define the output data schema of the Action.
	Output *DataSchema `json:"output,omitempty"`

	// Signals if the Action is safe (=true) or not. Used to signal if there is no internal state (cf. resource state) is changed when invoking an Action. In that case responses can be cached as example.
	Safe bool `json:"safe,omitempty"` //default: false

	// Indicates whether the Action is idempotent (=true) or not. Informs whether the Action can be called repeatedly with the same result, if present, based on the same input.
	Idempotent bool `json:"idempotent,omitempty"` //default: false
}

/*
An Interaction Affordance that describes an event source, which asynchronously pushes event data to Consumers (e.g., overheating alerts).
*/
type EventAffordance struct {
	InteractionAffordance

	// Defines data that needs to be passed upon subscription, e.g., filters or message format for setting up Webhooks.
	Subscription *DataSchema `json:"subscription,omitempty"`

	// Defines the data schema of the Event instance messages pushed by the Thing.
	Data *DataSchema `json:"data,omitempty"`

	// Defines any data that needs to be passed to cancel a subscription, e.g., a specific message to remove a Webhook.
	Cancellation *DataSchema `json:"cancellation,omitempty"`
}

/*
A form can be viewed as a statement of "To perform an operation type operation on form context, make a request method request to submission target" where the optional form fields may further describe the required request.
In Thing Descriptions, the form context is the surrounding Object, such as Properties, Actions, and Events or the Thing itself for meta-interactions.
*/
type Form struct {

	/*
		Indicates the semantic intention of performing the operation(s) described by the form.
		It can be one of: readproperty, writeproperty, observeproperty, unobserveproperty, invokeaction, subscribeevent, unsubscribeevent, readallproperties, writeallproperties, readmultipleproperties, or writemultipleproperties
	*/
	Op Strings `json:"op,omitempty"`

	// Target IRI of a link or submission target of a form.
	Href AnyURI `json:"href"`

	// Assign a content type based on a media type (e.g., text/plain) and potential parameters (e.g., charset=utf-8) for the media type [RFC2046].
	ContentType string `json:"contentType,omitempty"` //default: "application/json"

	// Content coding values indicate an encoding transformation that has been or can be applied to a representation.
	ContentCoding string `json:"contentCoding,omitempty"`

	// Link relation type of the form target.
	Rel string `json:"rel,omitempty"`

	// Indicates the exact mechanism by which an interaction will be accomplished for a given protocol when there are multiple options.
	SubProtocol string `json:"subprotocol,omitempty"`

	// Set of security definition names, chosen from those defined in securityDefinitions. These must all be satisfied for access to resources.
	Security Strings `json:"security,omitempty"`

	// Set of authorization scope identifiers provided as an array.
	Scopes Strings `json:"scopes,omitempty"`

	// This optional term can be used if, e.g., the output communication metadata differ from input metadata (e.g., output contentType differ from the input contentType). The response name contains metadata that is only valid for the response messages.
	Response *ExpectedResponse `json:"response,omitempty"`
}

// MediaType returns the content type of the form, falling back to the default
func (f Form) MediaType() string {
	if f.ContentType == "" {
		return DefaultContentType
	}
	return f.ContentType
}

// Resolve returns the form's target resolved relative to the given base URI [RFC3986]
func (f Form) Resolve(base string) (string, error) {
	href, err := url.Parse(f.Href)
	if err != nil {
		return "", fmt.Errorf("invalid href %s: %s", f.Href, err)
	}
	if base == "" || href.IsAbs() {
		return href.String(), nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base %s: %s", base, err)
	}
	return baseURL.ResolveReference(href).String(), nil
}

/*
A link can be viewed as a statement of the form "link context has a relation type resource at link target", where the optional target attributes may further describe the resource.
*/
type Link struct {
	// Target IRI of a link or submission target of a form.
	Href AnyURI `json:"href"`

	// Target attribute providing a hint indicating what the media type (RFC2046) of the result of dereferencing the link should be.
	Type string `json:"type,omitempty"`

	// A link relation type identifies the semantics of a link.
	Rel string `json:"rel,omitempty"`

	// Overrides the link context (by default the Thing itself identified by its id) with the given URI or IRI.
	Anchor AnyURI `json:"anchor,omitempty"`
}

/*
Communication metadata describing the expected response message.
*/
type ExpectedResponse struct {
	ContentType string `json:"contentType,omitempty"`
}

/*
Metadata of a Thing that provides version information about the TD document. If required, additional version information such as firmware and hardware version (term definitions outside of the TD namespace) can be extended via the TD Context Extension mechanism.
*/
type VersionInfo struct {
	// Provides a version indicator of this TD instance.
	Instance string `json:"instance"`
}

// Strings is a set of terms that may be serialized either as a single string or as an array
type Strings []string

func (s *Strings) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = Strings{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected string or array of strings: %s", err)
	}
	*s = list
	return nil
}

// Contains reports whether the term is in the set
func (s Strings) Contains(term string) bool {
	for i := range s {
		if s[i] == term {
			return true
		}
	}
	return false
}
