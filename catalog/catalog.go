// Copyright 2014-2016 Fraunhofer Institute for Applied Information Technology FIT

package catalog

import (
	"fmt"

	"github.com/linksmart/wot-servient/wot"
)

type ThingDescription = map[string]any

const (
	ResponseContextURL = "https://linksmart.eu/thing-directory/context.jsonld"
	ResponseType       = "Catalog"
	// Storage backend types
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	// Paging
	GetParamPage    = "page"
	GetParamPerPage = "perPage"
	MaxPerPage      = 100
	// TD keys used internally
	_id           = wot.KeyThingID
	_registration = wot.KeyThingRegistration
	_created      = wot.KeyThingRegistrationCreated
	_modified     = wot.KeyThingRegistrationModified
	_expires      = wot.KeyThingRegistrationExpires
	_ttl          = wot.KeyThingRegistrationTTL
)

// validateThingDescription checks the TD and the registration metadata added by the directory
func validateThingDescription(td ThingDescription) ([]wot.ValidationError, error) {
	issues, err := wot.ValidateMap(&td)
	if err != nil {
		return nil, fmt.Errorf("error validating with JSON Schemas: %s", err)
	}
	more, err := wot.ValidateDiscoveryExtensions(&td)
	if err != nil {
		return nil, fmt.Errorf("error validating registration: %s", err)
	}
	return append(issues, more...), nil
}

// Controller interface
type CatalogController interface {
	add(td ThingDescription) (string, error)
	get(id string) (ThingDescription, error)
	update(id string, td ThingDescription) error
	patch(id string, td ThingDescription) error
	delete(id string) error
	list(page, perPage int) ([]ThingDescription, int, error)
	filter(path, op, value string, page, perPage int) ([]ThingDescription, int, error)
	filterJSONPathBytes(query string) ([]byte, error)
	filterXPathBytes(query string) ([]byte, error)
	total() (int, error)
	cleanExpired()

	AddSubscriber(listener EventListener)
	Stop()
}

// Storage interface
type Storage interface {
	add(id string, td ThingDescription) error
	update(id string, td ThingDescription) error
	delete(id string) error
	get(id string) (ThingDescription, error)
	list(page, perPage int) ([]ThingDescription, int, error)
	listAllBytes() ([]byte, error)
	total() (int, error)
	iterator() <-chan ThingDescription
	Close()
}
