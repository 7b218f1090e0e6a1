package servient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/linksmart/wot-servient/wot"
)

// InteractionKind is one of property, action or event
type InteractionKind string

const (
	KindProperty InteractionKind = "property"
	KindAction   InteractionKind = "action"
	KindEvent    InteractionKind = "event"

	// Wildcard is the handler name matching every interaction of a kind without a specific handler
	Wildcard = "*"
)

// PropertyReadHandler returns the current value of a property
type PropertyReadHandler func(ctx context.Context) (any, error)

// PropertyWriteHandler applies a new value to a property
type PropertyWriteHandler func(ctx context.Context, value any) error

// ActionHandler performs an action and returns its output
type ActionHandler func(ctx context.Context, input any) (any, error)

type propertyEntry struct {
	name       string
	affordance wot.PropertyAffordance
	schema     *wot.CompiledSchema

	// serializes writes: handler, cache update and scheduling of the change notification
	writeMu sync.Mutex

	valueMu sync.RWMutex
	value   any
	// incremented on every cache update
	version uint64

	// change notifications in the order of the writes
	notifyMu  sync.Mutex
	pending   []any
	notifying bool

	read  PropertyReadHandler
	write PropertyWriteHandler
}

func (p *propertyEntry) cached() (any, uint64) {
	p.valueMu.RLock()
	defer p.valueMu.RUnlock()
	return copyValue(p.value), p.version
}

func (p *propertyEntry) setCached(v any) {
	p.valueMu.Lock()
	p.value = v
	p.version++
	p.valueMu.Unlock()
}

// refresh stores a value obtained by a read unless the cache changed since version
func (p *propertyEntry) refresh(v any, version uint64) {
	p.valueMu.Lock()
	defer p.valueMu.Unlock()
	if p.version != version {
		return
	}
	p.value = v
	p.version++
}

// schedule queues a change notification; called with writeMu held.
// It reports whether the caller has to deliver the queue.
func (p *propertyEntry) schedule(v any) bool {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	p.pending = append(p.pending, v)
	if p.notifying {
		return false
	}
	p.notifying = true
	return true
}

// next pops the oldest pending notification
func (p *propertyEntry) next() (any, bool) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	if len(p.pending) == 0 {
		p.notifying = false
		return nil, false
	}
	v := p.pending[0]
	p.pending = p.pending[1:]
	return v, true
}

type actionEntry struct {
	name       string
	affordance wot.ActionAffordance
	input      *wot.CompiledSchema
	output     *wot.CompiledSchema
	invoke     ActionHandler
}

type eventEntry struct {
	name       string
	affordance wot.EventAffordance
	data       *wot.CompiledSchema
}

// store holds the interactions of one Thing together with their handlers and cached values
type store struct {
	sync.RWMutex
	properties map[string]*propertyEntry
	actions    map[string]*actionEntry
	events     map[string]*eventEntry

	readAny   PropertyReadHandler
	writeAny  PropertyWriteHandler
	invokeAny ActionHandler
}

func newStore() *store {
	return &store{
		properties: make(map[string]*propertyEntry),
		actions:    make(map[string]*actionEntry),
		events:     make(map[string]*eventEntry),
	}
}

func (s *store) defineProperty(name string, affordance wot.PropertyAffordance, initial any) error {
	if err := checkName(KindProperty, name); err != nil {
		return err
	}
	affordance, err := clone(affordance)
	if err != nil {
		return schemaViolation(KindProperty, name, err)
	}
	if err := affordance.Schema().CheckConsistency(); err != nil {
		return schemaViolation(KindProperty, name, err)
	}
	schema, err := affordance.Schema().Compile()
	if err != nil {
		return schemaViolation(KindProperty, name, err)
	}
	value, err := wot.Normalize(initial)
	if err != nil {
		return schemaViolation(KindProperty, name, err)
	}
	if initial != nil {
		if err := schema.Validate(value); err != nil {
			return schemaViolation(KindProperty, name, err)
		}
	}

	s.Lock()
	defer s.Unlock()
	if _, found := s.properties[name]; found {
		return &AlreadyExistsError{"property " + name + " already exists"}
	}
	s.properties[name] = &propertyEntry{name: name, affordance: affordance, schema: schema, value: value}
	return nil
}

func (s *store) defineAction(name string, affordance wot.ActionAffordance) error {
	if err := checkName(KindAction, name); err != nil {
		return err
	}
	affordance, err := clone(affordance)
	if err != nil {
		return schemaViolation(KindAction, name, err)
	}
	if err := affordance.Input.CheckConsistency(); err != nil {
		return schemaViolation(KindAction, name, err)
	}
	if err := affordance.Output.CheckConsistency(); err != nil {
		return schemaViolation(KindAction, name, err)
	}
	input, err := affordance.Input.Compile()
	if err != nil {
		return schemaViolation(KindAction, name, err)
	}
	output, err := affordance.Output.Compile()
	if err != nil {
		return schemaViolation(KindAction, name, err)
	}

	s.Lock()
	defer s.Unlock()
	if _, found := s.actions[name]; found {
		return &AlreadyExistsError{"action " + name + " already exists"}
	}
	s.actions[name] = &actionEntry{name: name, affordance: affordance, input: input, output: output}
	return nil
}

func (s *store) defineEvent(name string, affordance wot.EventAffordance) error {
	if err := checkName(KindEvent, name); err != nil {
		return err
	}
	affordance, err := clone(affordance)
	if err != nil {
		return schemaViolation(KindEvent, name, err)
	}
	if err := affordance.Data.CheckConsistency(); err != nil {
		return schemaViolation(KindEvent, name, err)
	}
	data, err := affordance.Data.Compile()
	if err != nil {
		return schemaViolation(KindEvent, name, err)
	}

	s.Lock()
	defer s.Unlock()
	if _, found := s.events[name]; found {
		return &AlreadyExistsError{"event " + name + " already exists"}
	}
	s.events[name] = &eventEntry{name: name, affordance: affordance, data: data}
	return nil
}

func (s *store) undefine(kind InteractionKind, name string) error {
	s.Lock()
	defer s.Unlock()

	var found bool
	switch kind {
	case KindProperty:
		_, found = s.properties[name]
		delete(s.properties, name)
	case KindAction:
		_, found = s.actions[name]
		delete(s.actions, name)
	case KindEvent:
		_, found = s.events[name]
		delete(s.events, name)
	}
	if !found {
		return notFound("%s %s not found", kind, name)
	}
	return nil
}

func (s *store) setReadHandler(name string, h PropertyReadHandler) error {
	s.Lock()
	defer s.Unlock()
	if name == Wildcard {
		s.readAny = h
		return nil
	}
	p, found := s.properties[name]
	if !found {
		return notFound("property %s not found", name)
	}
	p.read = h
	return nil
}

func (s *store) setWriteHandler(name string, h PropertyWriteHandler) error {
	s.Lock()
	defer s.Unlock()
	if name == Wildcard {
		s.writeAny = h
		return nil
	}
	p, found := s.properties[name]
	if !found {
		return notFound("property %s not found", name)
	}
	p.write = h
	return nil
}

func (s *store) setActionHandler(name string, h ActionHandler) error {
	s.Lock()
	defer s.Unlock()
	if name == Wildcard {
		s.invokeAny = h
		return nil
	}
	a, found := s.actions[name]
	if !found {
		return notFound("action %s not found", name)
	}
	a.invoke = h
	return nil
}

func (s *store) property(name string) (*propertyEntry, bool) {
	s.RLock()
	defer s.RUnlock()
	p, found := s.properties[name]
	return p, found
}

func (s *store) action(name string) (*actionEntry, bool) {
	s.RLock()
	defer s.RUnlock()
	a, found := s.actions[name]
	return a, found
}

func (s *store) event(name string) (*eventEntry, bool) {
	s.RLock()
	defer s.RUnlock()
	e, found := s.events[name]
	return e, found
}

// readHandler resolves the specific handler, falling back to the wildcard
func (s *store) readHandler(p *propertyEntry) PropertyReadHandler {
	s.RLock()
	defer s.RUnlock()
	if p.read != nil {
		return p.read
	}
	return s.readAny
}

func (s *store) writeHandler(p *propertyEntry) PropertyWriteHandler {
	s.RLock()
	defer s.RUnlock()
	if p.write != nil {
		return p.write
	}
	return s.writeAny
}

func (s *store) actionHandler(a *actionEntry) ActionHandler {
	s.RLock()
	defer s.RUnlock()
	if a.invoke != nil {
		return a.invoke
	}
	return s.invokeAny
}

// affordances returns all interaction definitions. Nested values are shared with the store and must not be modified.
func (s *store) affordances() (map[string]wot.PropertyAffordance, map[string]wot.ActionAffordance, map[string]wot.EventAffordance) {
	s.RLock()
	defer s.RUnlock()

	properties := make(map[string]wot.PropertyAffordance, len(s.properties))
	for name, p := range s.properties {
		properties[name] = p.affordance
	}
	actions := make(map[string]wot.ActionAffordance, len(s.actions))
	for name, a := range s.actions {
		actions[name] = a.affordance
	}
	events := make(map[string]wot.EventAffordance, len(s.events))
	for name, e := range s.events {
		events[name] = e.affordance
	}
	return properties, actions, events
}

// describe returns a copy of the definition of an interaction
func (s *store) describe(kind InteractionKind, name string) (any, bool) {
	s.RLock()
	defer s.RUnlock()

	var (
		description any
		err         error
	)
	switch kind {
	case KindProperty:
		p, found := s.properties[name]
		if !found {
			return nil, false
		}
		description, err = clone(p.affordance)
	case KindAction:
		a, found := s.actions[name]
		if !found {
			return nil, false
		}
		description, err = clone(a.affordance)
	case KindEvent:
		e, found := s.events[name]
		if !found {
			return nil, false
		}
		description, err = clone(e.affordance)
	}
	return description, err == nil
}

// clone deep-copies a definition so that it shares no pointers, maps or slices with the original
func clone[T any](v T) (T, error) {
	var c T
	b, err := json.Marshal(v)
	if err != nil {
		return c, fmt.Errorf("definition is not serializable: %s", err)
	}
	err = json.Unmarshal(b, &c)
	return c, err
}

func checkName(kind InteractionKind, name string) error {
	if name == "" || name == Wildcard {
		return notAllowed("invalid %s name %q", kind, name)
	}
	return nil
}
