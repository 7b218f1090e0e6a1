package wot

import (
	"encoding/json"
	"fmt"
)

// Security schemes
const (
	SecuritySchemeNoSec  = "nosec"
	SecuritySchemeBasic  = "basic"
	SecuritySchemeDigest = "digest"
	SecuritySchemeBearer = "bearer"
	SecuritySchemePSK    = "psk"
	SecuritySchemeOAuth2 = "oauth2"
	SecuritySchemeAPIKey = "apikey"
	SecuritySchemePoP    = "pop"
	SecuritySchemeCert   = "cert"
	SecuritySchemePublic = "public"
)

/*
SecurityScheme is a security configuration of a Thing.
Exactly one of the variant pointers is set, matching Scheme. The nosec scheme has no variant.
*/
type SecurityScheme struct {
	// JSON-LD keyword to label the object with semantic tags (or types).
	Type any `json:"@type,omitempty"`

	// Identification of the security mechanism being configured. e.g. nosec, basic, cert, digest, bearer, pop, psk, public, oauth2, or apikey
	Scheme string `json:"scheme"`

	// Provides additional (human-readable) information based on a default language
	Description string `json:"description,omitempty"`

	// Can be used to support (human-readable) information in different languages.
	Descriptions map[string]string `json:"descriptions,omitempty"`

	// URI of the proxy server this security configuration provides access to. If not given, the corresponding security configuration is for the endpoint.
	Proxy AnyURI `json:"proxy,omitempty"`

	Basic  *BasicSecurityScheme  `json:"-"`
	Digest *DigestSecurityScheme `json:"-"`
	APIKey *APIKeySecurityScheme `json:"-"`
	Bearer *BearerSecurityScheme `json:"-"`
	PSK    *PSKSecurityScheme    `json:"-"`
	OAuth2 *OAuth2SecurityScheme `json:"-"`
	PoP    *PoPSecurityScheme    `json:"-"`
	Cert   *CertSecurityScheme   `json:"-"`
	Public *PublicSecurityScheme `json:"-"`
}

// BasicSecurityScheme: Basic Authentication [RFC7617] security configuration identified by the Vocabulary Term basic (i.e., "scheme": "basic"), using an unencrypted username and password. This scheme should be used with some other security mechanism providing confidentiality, for example, TLS.
type BasicSecurityScheme struct {
	// Specifies the location of security authentication information.
	In string `json:"in"` // default: header
	// Name for query, header, or cookie parameters.
	Name string `json:"name,omitempty"`
}

// DigestSecurityScheme: Digest Access Authentication [RFC7616] security configuration identified by the Vocabulary Term digest (i.e., "scheme": "digest"). This scheme is similar to basic authentication but with added features to avoid man-in-the-middle attacks.
type DigestSecurityScheme struct {
	// Quality of protection.
	QoP  string `json:"qop,omitempty"` //default: auth
	In   string `json:"in"`
	Name string `json:"name,omitempty"`
}

// APIKeySecurityScheme: API key authentication security configuration identified by the Vocabulary Term apikey (i.e., "scheme": "apikey"). This is for the case where the access token is opaque and is not using a standard token format.
type APIKeySecurityScheme struct {
	In   string `json:"in"`
	Name string `json:"name,omitempty"`
}

// BearerSecurityScheme: Bearer Token [RFC6750] security configuration identified by the Vocabulary Term bearer (i.e., "scheme": "bearer") for situations where bearer tokens are used independently of OAuth2. If the oauth2 scheme is specified it is not generally necessary to specify this scheme as well as it is implied. For format, the value jwt indicates conformance with [RFC7519], jws indicates conformance with [RFC7797], cwt indicates conformance with [RFC8392], and jwe indicates conformance with [RFC7516], with values for alg interpreted consistently with those standards. Other formats and algorithms for bearer tokens MAY be specified in vocabulary extensions
type BearerSecurityScheme struct {
	// URI of the authorization server.
	Authorization AnyURI `json:"authorization,omitempty"`
	// Encoding, encryption, or digest algorithm.
	Alg string `json:"alg"` // default: ES256
	// Specifies format of security authentication information.
	Format string `json:"format"` // default: jwt
	In     string `json:"in"`
	Name   string `json:"name,omitempty"`
}

// PSKSecurityScheme: Pre-shared key authentication security configuration identified by the Vocabulary Term psk (i.e., "scheme": "psk").
type PSKSecurityScheme struct {
	// Identifier providing information which can be used for selection or confirmation.
	Identity string `json:"identity,omitempty"`
}

// OAuth2SecurityScheme: OAuth2 authentication security configuration for systems conformant with [RFC6749] and [RFC8252], identified by the Vocabulary Term oauth2 (i.e., "scheme": "oauth2").
type OAuth2SecurityScheme struct {
	// URI of the authorization server.
	Authorization AnyURI `json:"authorization,omitempty"`
	// URI of the token server.
	Token AnyURI `json:"token,omitempty"`
	// URI of the refresh server.
	Refresh AnyURI `json:"refresh,omitempty"`
	// Set of authorization scope identifiers provided as an array. These are provided in tokens returned by an authorization server and associated with forms in order to identify what resources a client may access and how.
	Scopes Strings `json:"scopes,omitempty"`
	// Authorization flow.
	Flow string `json:"flow"`
}

// PoPSecurityScheme: Proof-of-possession (PoP) token authentication security configuration identified by the Vocabulary Term pop (i.e., "scheme": "pop").
type PoPSecurityScheme struct {
	Authorization AnyURI `json:"authorization,omitempty"`
	Alg           string `json:"alg"`    // default: ES256
	Format        string `json:"format"` // default: jwt
	In            string `json:"in"`
	Name          string `json:"name,omitempty"`
}

// CertSecurityScheme: Certificate-based asymmetric key security configuration conformant with [X509V3] identified by the Vocabulary Term cert (i.e., "scheme": "cert").
type CertSecurityScheme struct {
	Identity string `json:"identity,omitempty"`
}

// PublicSecurityScheme: Raw public key asymmetric key security configuration identified by the Vocabulary Term public (i.e., "scheme": "public").
type PublicSecurityScheme struct {
	Identity string `json:"identity,omitempty"`
}

// securityScheme has the common fields of SecurityScheme without its JSON methods
type securityScheme SecurityScheme

// variant returns a pointer to the allocated variant of the scheme
func (s *SecurityScheme) variant(allocate bool) (any, error) {
	switch s.Scheme {
	case SecuritySchemeNoSec:
		return nil, nil
	case SecuritySchemeBasic:
		if allocate {
			s.Basic = &BasicSecurityScheme{In: "header"}
		}
		return s.Basic, nil
	case SecuritySchemeDigest:
		if allocate {
			s.Digest = &DigestSecurityScheme{QoP: "auth", In: "header"}
		}
		return s.Digest, nil
	case SecuritySchemeAPIKey:
		if allocate {
			s.APIKey = &APIKeySecurityScheme{In: "query"}
		}
		return s.APIKey, nil
	case SecuritySchemeBearer:
		if allocate {
			s.Bearer = &BearerSecurityScheme{Alg: "ES256", Format: "jwt", In: "header"}
		}
		return s.Bearer, nil
	case SecuritySchemePSK:
		if allocate {
			s.PSK = &PSKSecurityScheme{}
		}
		return s.PSK, nil
	case SecuritySchemeOAuth2:
		if allocate {
			s.OAuth2 = &OAuth2SecurityScheme{}
		}
		return s.OAuth2, nil
	case SecuritySchemePoP:
		if allocate {
			s.PoP = &PoPSecurityScheme{Alg: "ES256", Format: "jwt", In: "header"}
		}
		return s.PoP, nil
	case SecuritySchemeCert:
		if allocate {
			s.Cert = &CertSecurityScheme{}
		}
		return s.Cert, nil
	case SecuritySchemePublic:
		if allocate {
			s.Public = &PublicSecurityScheme{}
		}
		return s.Public, nil
	}
	return nil, fmt.Errorf("unknown security scheme: %s", s.Scheme)
}

func (s SecurityScheme) MarshalJSON() ([]byte, error) {
	m := make(map[string]any)
	v, err := s.variant(false)
	if err != nil {
		return nil, err
	}
	if v != nil && !isNilPointer(v) {
		if err := mergeInto(m, v); err != nil {
			return nil, err
		}
	}
	if err := mergeInto(m, securityScheme(s)); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func (s *SecurityScheme) UnmarshalJSON(data []byte) error {
	var common securityScheme
	if err := json.Unmarshal(data, &common); err != nil {
		return err
	}
	if common.Scheme == "" {
		return fmt.Errorf("security scheme is not set")
	}
	*s = SecurityScheme(common)
	v, err := s.variant(true)
	if err != nil {
		return err
	}
	if v != nil {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("invalid %s security scheme: %s", s.Scheme, err)
		}
	}
	return nil
}

func isNilPointer(v any) bool {
	switch p := v.(type) {
	case *BasicSecurityScheme:
		return p == nil
	case *DigestSecurityScheme:
		return p == nil
	case *APIKeySecurityScheme:
		return p == nil
	case *BearerSecurityScheme:
		return p == nil
	case *PSKSecurityScheme:
		return p == nil
	case *OAuth2SecurityScheme:
		return p == nil
	case *PoPSecurityScheme:
		return p == nil
	case *CertSecurityScheme:
		return p == nil
	case *PublicSecurityScheme:
		return p == nil
	}
	return false
}

// NoSecurity returns the nosec scheme
func NoSecurity() SecurityScheme {
	return SecurityScheme{Scheme: SecuritySchemeNoSec}
}
