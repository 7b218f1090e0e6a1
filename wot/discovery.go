package wot

const (
	// DNS-SD Types
	DNSSDServiceType             = "_wot._tcp"
	DNSSDServiceSubtypeThing     = "_thing"     // _thing._sub._wot._tcp
	DNSSDServiceSubtypeDirectory = "_directory" // _directory._sub._wot._tcp
	// DNS-SD TXT record keys (https://w3c.github.io/wot-discovery/#introduction-dns-sd-sec)
	DNSSDTextTD     = "td"
	DNSSDTextType   = "type"
	DNSSDTextScheme = "scheme"
	// Media Types
	MediaTypeJSONLD           = "application/ld+json"
	MediaTypeJSON             = "application/json"
	MediaTypeThingDescription = "application/td+json"
	MediaTypeCBOR             = "application/cbor"
	MediaTypeMergePatch       = "application/merge-patch+json"
	// TD keys used by directory
	KeyThingID                   = "id"
	KeyThingRegistration         = "registration"
	KeyThingRegistrationCreated  = "created"
	KeyThingRegistrationModified = "modified"
	KeyThingRegistrationExpires  = "expires"
	KeyThingRegistrationTTL      = "ttl"
)
