// Copyright 2014-2016 Fraunhofer Institute for Applied Information Technology FIT

package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/jsonquery"
	"github.com/bhmj/jsonslice"
	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/linksmart/service-catalog/v3/utils"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

var controllerExpiryCleanupInterval = 10 * time.Second // to be modified in unit tests

var logger = logrus.WithField("component", "catalog")

type Controller struct {
	storage         Storage
	cleanupInterval time.Duration

	mu        sync.RWMutex
	listeners eventHandler

	stop     chan struct{}
	stopOnce sync.Once
}

func NewController(storage Storage) (CatalogController, error) {
	c := &Controller{
		storage:         storage,
		cleanupInterval: controllerExpiryCleanupInterval,
		stop:            make(chan struct{}),
	}

	go c.cleanExpired()

	return c, nil
}

// AddSubscriber registers a listener of create, update and delete events
func (c *Controller) AddSubscriber(listener EventListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, listener)
}

func (c *Controller) events() eventHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listeners
}

func (c *Controller) add(td ThingDescription) (string, error) {
	td, err := copyTD(td)
	if err != nil {
		return "", &BadRequestError{err.Error()}
	}
	id, ok := td[_id].(string)
	if !ok || id == "" {
		// System generated id
		id = c.newURN()
		td[_id] = id
	}
	if err := validate(td); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	setRegistration(td, now, now)

	err = c.storage.add(id, td)
	if err != nil {
		return "", err
	}

	c.events().created(td)
	return id, nil
}

func (c *Controller) get(id string) (ThingDescription, error) {
	return c.storage.get(id)
}

func (c *Controller) update(id string, td ThingDescription) error {
	td, err := copyTD(td)
	if err != nil {
		return &BadRequestError{err.Error()}
	}
	td[_id] = id
	if err := validate(td); err != nil {
		return err
	}

	oldTD, err := c.storage.get(id)
	if err != nil {
		return err
	}

	setRegistration(td, createdAt(oldTD), time.Now().UTC())

	err = c.storage.update(id, td)
	if err != nil {
		return err
	}

	c.events().updated(oldTD, td)
	return nil
}

// patch applies a JSON Merge Patch (RFC 7396) to the stored TD
func (c *Controller) patch(id string, td ThingDescription) error {
	oldTD, err := c.storage.get(id)
	if err != nil {
		return err
	}

	oldBytes, err := json.Marshal(oldTD)
	if err != nil {
		return err
	}
	patchBytes, err := json.Marshal(td)
	if err != nil {
		return &BadRequestError{err.Error()}
	}
	newBytes, err := jsonpatch.MergePatch(oldBytes, patchBytes)
	if err != nil {
		return &BadRequestError{fmt.Sprintf("error merging patch: %s", err)}
	}

	var newTD ThingDescription
	if err := json.Unmarshal(newBytes, &newTD); err != nil {
		return err
	}
	newTD[_id] = id
	if err := validate(newTD); err != nil {
		return err
	}

	setRegistration(newTD, createdAt(oldTD), time.Now().UTC())

	err = c.storage.update(id, newTD)
	if err != nil {
		return err
	}

	c.events().updated(oldTD, newTD)
	return nil
}

func (c *Controller) delete(id string) error {
	oldTD, err := c.storage.get(id)
	if err != nil {
		return err
	}

	err = c.storage.delete(id)
	if err != nil {
		return err
	}

	c.events().deleted(oldTD)
	return nil
}

func (c *Controller) list(page, perPage int) ([]ThingDescription, int, error) {
	return c.storage.list(page, perPage)
}

// Deprecated
func (c *Controller) filter(path, op, value string, page, perPage int) ([]ThingDescription, int, error) {
	matches := make([]ThingDescription, 0)
	var matchErr error
	for td := range c.storage.iterator() {
		if matchErr != nil {
			continue
		}
		matched, err := utils.MatchObject(td, strings.Split(path, "."), op, value)
		if err != nil {
			matchErr = &BadRequestError{err.Error()}
			continue
		}
		if matched {
			matches = append(matches, td)
		}
	}
	if matchErr != nil {
		return nil, 0, matchErr
	}

	// Pagination
	offset, limit, err := GetPagingAttr(len(matches), page, perPage, MaxPerPage)
	if err != nil {
		return nil, 0, &BadRequestError{fmt.Sprintf("Unable to paginate: %s", err)}
	}
	// Return the page
	return matches[offset : offset+limit], len(matches), nil
}

// filterJSONPathBytes evaluates the query on the array of all TDs and returns the serialized result
func (c *Controller) filterJSONPathBytes(query string) ([]byte, error) {
	b, err := c.storage.listAllBytes()
	if err != nil {
		return nil, err
	}

	b, err = jsonslice.Get(b, query)
	if err != nil {
		return nil, &BadRequestError{fmt.Sprintf("error evaluating jsonpath: %s", err)}
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return []byte("[]"), nil
	}
	return b, nil
}

// filterXPathBytes returns the serialized array of TDs for which the query selects any node
func (c *Controller) filterXPathBytes(query string) ([]byte, error) {
	results := make([]ThingDescription, 0)
	var queryErr error
	for td := range c.storage.iterator() {
		if queryErr != nil {
			continue
		}
		matched, err := matchXPath(td, query)
		if err != nil {
			queryErr = err
			continue
		}
		if matched {
			results = append(results, td)
		}
	}
	if queryErr != nil {
		return nil, queryErr
	}

	return json.Marshal(results)
}

func matchXPath(td ThingDescription, query string) (bool, error) {
	b, err := json.Marshal([]ThingDescription{td})
	if err != nil {
		return false, fmt.Errorf("error serializing TD for xpath filtering: %s", err)
	}
	doc, err := jsonquery.Parse(bytes.NewReader(b))
	if err != nil {
		return false, fmt.Errorf("error parsing JSON for xpath filtering: %s", err)
	}
	nodes, err := jsonquery.QueryAll(doc, query)
	if err != nil {
		return false, &BadRequestError{fmt.Sprintf("error evaluating xpath: %s", err)}
	}
	return len(nodes) > 0, nil
}

func (c *Controller) total() (int, error) {
	return c.storage.total()
}

func (c *Controller) cleanExpired() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic: %v\n%s\n", r, debug.Stack())
			go c.cleanExpired()
		}
	}()

	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case t := <-ticker.C:
			c.removeExpired(t)
		case <-c.stop:
			return
		}
	}
}

func (c *Controller) removeExpired(t time.Time) {
	var expired []ThingDescription
	for td := range c.storage.iterator() {
		if expires, ok := expiresAt(td); ok && t.After(expires) {
			expired = append(expired, td)
		}
	}

	for _, td := range expired {
		id, _ := td[_id].(string)
		logger.Infof("Removing expired registration: %s", id)
		err := c.storage.delete(id)
		if err != nil {
			logger.Errorf("Error removing expired registration: %s: %s", id, err)
			continue
		}
		c.events().deleted(td)
	}
}

// Stop the controller
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// Generate a unique URN
func (c *Controller) newURN() string {
	return fmt.Sprintf("urn:uuid:%s", uuid.NewV4().String())
}

func validate(td ThingDescription) error {
	issues, err := validateThingDescription(td)
	if err != nil {
		return err
	}
	if len(issues) != 0 {
		return &ValidationError{ValidationErrors: issues}
	}
	return nil
}

// copyTD returns the generic JSON representation of the TD, leaving the caller's map untouched
func copyTD(td ThingDescription) (ThingDescription, error) {
	if td == nil {
		return nil, errors.New("empty Thing Description")
	}
	b, err := json.Marshal(td)
	if err != nil {
		return nil, fmt.Errorf("error serializing TD: %s", err)
	}
	var c ThingDescription
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("error deserializing TD: %s", err)
	}
	return c, nil
}

// setRegistration replaces the registration metadata, keeping only the TTL given by the client
func setRegistration(td ThingDescription, created, modified time.Time) {
	reg := map[string]any{
		_created:  created.Format(time.RFC3339Nano),
		_modified: modified.Format(time.RFC3339Nano),
	}
	if old, ok := td[_registration].(map[string]any); ok {
		if ttl, ok := old[_ttl].(float64); ok && ttl > 0 {
			reg[_ttl] = ttl
			reg[_expires] = modified.Add(time.Duration(ttl * float64(time.Second))).Format(time.RFC3339Nano)
		}
	}
	td[_registration] = reg
}

func createdAt(td ThingDescription) time.Time {
	if reg, ok := td[_registration].(map[string]any); ok {
		if s, ok := reg[_created].(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t
			}
		}
	}
	return time.Now().UTC()
}

func expiresAt(td ThingDescription) (time.Time, bool) {
	reg, ok := td[_registration].(map[string]any)
	if !ok {
		return time.Time{}, false
	}
	s, ok := reg[_expires].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		logger.Errorf("Invalid expiry of %v: %s", td[_id], err)
		return time.Time{}, false
	}
	return t, true
}
