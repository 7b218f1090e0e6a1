package servient

import (
	"context"
	"sync"
	"time"

	"github.com/linksmart/wot-servient/wot"
	"github.com/sirupsen/logrus"
)

type thingState int

const (
	stateCreated thingState = iota
	stateExposed
	stateDestroyed
)

func (s thingState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateExposed:
		return "exposed"
	}
	return "destroyed"
}

// ExposedThing is a Thing hosted by the Servient, backed by handlers
type ExposedThing struct {
	id       string
	servient *Servient
	log      *logrus.Entry

	store      *store
	hub        *hub
	dispatcher *dispatcher

	mu    sync.RWMutex
	state thingState
	// metadata without interactions
	meta     wot.ThingDescription
	modified time.Time
	version  uint64
	// nil when outdated
	td *wot.ThingDescription
}

func newExposedThing(s *Servient, meta wot.ThingDescription) *ExposedThing {
	log := s.log.WithField("thing", meta.ID)
	t := &ExposedThing{
		id:       meta.ID,
		servient: s,
		log:      log,
		store:    newStore(),
		hub:      newHub(log),
		meta:     metadataOf(meta),
	}
	t.dispatcher = &dispatcher{
		thingID: meta.ID,
		store:   t.store,
		hub:     t.hub,
		log:     log,
		trace:   s.trace,
	}
	return t
}

// ID returns the Thing's identifier
func (t *ExposedThing) ID() string {
	return t.id
}

// AddProperty defines a property with an optional initial value
func (t *ExposedThing) AddProperty(name string, affordance wot.PropertyAffordance, initial any) error {
	if err := t.mutable(); err != nil {
		return err
	}
	if err := t.store.defineProperty(name, affordance, initial); err != nil {
		return err
	}
	t.added(KindProperty, name)
	return nil
}

// AddAction defines an action. It is not invokable until a handler is set.
func (t *ExposedThing) AddAction(name string, affordance wot.ActionAffordance) error {
	if err := t.mutable(); err != nil {
		return err
	}
	if err := t.store.defineAction(name, affordance); err != nil {
		return err
	}
	t.added(KindAction, name)
	return nil
}

// AddEvent defines an event
func (t *ExposedThing) AddEvent(name string, affordance wot.EventAffordance) error {
	if err := t.mutable(); err != nil {
		return err
	}
	if err := t.store.defineEvent(name, affordance); err != nil {
		return err
	}
	t.added(KindEvent, name)
	return nil
}

func (t *ExposedThing) RemoveProperty(name string) error {
	return t.remove(KindProperty, name)
}

func (t *ExposedThing) RemoveAction(name string) error {
	return t.remove(KindAction, name)
}

func (t *ExposedThing) RemoveEvent(name string) error {
	return t.remove(KindEvent, name)
}

func (t *ExposedThing) remove(kind InteractionKind, name string) error {
	if err := t.mutable(); err != nil {
		return err
	}
	if err := t.store.undefine(kind, name); err != nil {
		return err
	}
	if kind != KindAction {
		t.hub.drop(kind, name)
	}
	t.changed(TDChange{ChangeType: kind, Method: MethodRemove, Name: name})
	return nil
}

// SetPropertyReadHandler sets the read handler of a property, or of all properties for the Wildcard name.
// A nil handler restores reads from the cached value.
func (t *ExposedThing) SetPropertyReadHandler(name string, handler PropertyReadHandler) error {
	if err := t.mutable(); err != nil {
		return err
	}
	if err := t.store.setReadHandler(name, handler); err != nil {
		return err
	}
	t.handlerChanged(KindProperty, name)
	return nil
}

// SetPropertyWriteHandler sets the write handler of a property, or of all properties for the Wildcard name.
// A nil handler restores writes to the cached value.
func (t *ExposedThing) SetPropertyWriteHandler(name string, handler PropertyWriteHandler) error {
	if err := t.mutable(); err != nil {
		return err
	}
	if err := t.store.setWriteHandler(name, handler); err != nil {
		return err
	}
	t.handlerChanged(KindProperty, name)
	return nil
}

// SetActionHandler sets the handler of an action, or of all actions for the Wildcard name
func (t *ExposedThing) SetActionHandler(name string, handler ActionHandler) error {
	if err := t.mutable(); err != nil {
		return err
	}
	if err := t.store.setActionHandler(name, handler); err != nil {
		return err
	}
	t.handlerChanged(KindAction, name)
	return nil
}

func (t *ExposedThing) handlerChanged(kind InteractionKind, name string) {
	if name == Wildcard {
		return
	}
	description, _ := t.store.describe(kind, name)
	t.hub.emitTDChange(TDChange{ChangeType: kind, Method: MethodChange, Name: name, NewDescription: description})
}

// added notifies listeners of a new interaction with a copy of its stored definition
func (t *ExposedThing) added(kind InteractionKind, name string) {
	description, _ := t.store.describe(kind, name)
	t.changed(TDChange{ChangeType: kind, Method: MethodAdd, Name: name, NewDescription: description})
}

func (t *ExposedThing) ReadProperty(ctx context.Context, name string) (any, error) {
	if err := t.alive(); err != nil {
		return nil, err
	}
	return t.dispatcher.readProperty(ctx, name)
}

// ReadAllProperties reads every readable property
func (t *ExposedThing) ReadAllProperties(ctx context.Context) (map[string]any, error) {
	if err := t.alive(); err != nil {
		return nil, err
	}
	properties, _, _ := t.store.affordances()
	values := make(map[string]any, len(properties))
	for name, p := range properties {
		if p.WriteOnly {
			continue
		}
		v, err := t.dispatcher.readProperty(ctx, name)
		if err != nil {
			return nil, err
		}
		values[name] = v
	}
	return values, nil
}

func (t *ExposedThing) WriteProperty(ctx context.Context, name string, value any) error {
	if err := t.alive(); err != nil {
		return err
	}
	return t.dispatcher.writeProperty(ctx, name, value)
}

func (t *ExposedThing) InvokeAction(ctx context.Context, name string, input any) (any, error) {
	if err := t.alive(); err != nil {
		return nil, err
	}
	return t.dispatcher.invokeAction(ctx, name, input)
}

// EmitEvent delivers the payload to the event's listeners
func (t *ExposedThing) EmitEvent(name string, payload any) error {
	if err := t.alive(); err != nil {
		return err
	}
	return t.dispatcher.emitEvent(name, payload)
}

// OnPropertyChange subscribes to changes of an observable property
func (t *ExposedThing) OnPropertyChange(name string, listener func(value any)) (*Subscription, error) {
	if err := t.alive(); err != nil {
		return nil, err
	}
	return t.dispatcher.observeProperty(name, func(v any) { listener(v) })
}

// OnEvent subscribes to emissions of an event
func (t *ExposedThing) OnEvent(name string, listener func(payload any)) (*Subscription, error) {
	if err := t.alive(); err != nil {
		return nil, err
	}
	return t.dispatcher.subscribeEvent(name, func(v any) { listener(v) })
}

// OnTDChange subscribes to changes of the Thing's interactions
func (t *ExposedThing) OnTDChange(listener func(change TDChange)) (*Subscription, error) {
	if err := t.alive(); err != nil {
		return nil, err
	}
	return t.hub.subscribe(t.hub.td, func(v any) { listener(v.(TDChange)) }), nil
}

// Expose makes the Thing available to consumers and announces it through the configured advertisers
func (t *ExposedThing) Expose() error {
	t.mu.Lock()
	switch t.state {
	case stateDestroyed:
		t.mu.Unlock()
		return &DestroyedError{t.id}
	case stateExposed:
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	td, err := t.build()
	if err != nil {
		return err
	}
	if err := wot.ValidateTD(td); err != nil {
		return schemaViolation("", "", err)
	}

	t.mu.Lock()
	if t.state != stateCreated {
		t.mu.Unlock()
		return nil
	}
	t.state = stateExposed
	t.mu.Unlock()

	t.log.Info("Exposed")
	t.servient.advertise(td)
	return nil
}

// Destroy stops the Thing: listeners are cancelled, advertisements withdrawn and the Thing leaves the registry.
func (t *ExposedThing) Destroy() error {
	t.mu.Lock()
	if t.state == stateDestroyed {
		t.mu.Unlock()
		return nil
	}
	wasExposed := t.state == stateExposed
	t.state = stateDestroyed
	t.mu.Unlock()

	t.hub.closeAll()
	t.servient.registry.remove(t.id)
	if wasExposed {
		t.servient.withdraw(t.id)
	}
	t.log.Info("Destroyed")
	return nil
}

// Exposed reports whether Expose has been called and the Thing is not destroyed
func (t *ExposedThing) Exposed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state == stateExposed
}

// TD returns the current Thing Description
func (t *ExposedThing) TD() wot.ThingDescription {
	td, err := t.build()
	if err != nil {
		t.log.Errorf("Error building Thing Description: %s", err)
	}
	return td
}

func (t *ExposedThing) build() (wot.ThingDescription, error) {
	t.mu.RLock()
	cached := t.td
	meta, modified, version := t.meta, t.modified, t.version
	t.mu.RUnlock()
	if cached != nil {
		return cached.Copy()
	}

	td, err := buildTD(meta, t.store, modified)
	if err != nil {
		return td, err
	}
	t.mu.Lock()
	if t.version == version {
		t.td = &td
	}
	t.mu.Unlock()
	return td.Copy()
}

// Register adds the TD to a Thing Directory
func (t *ExposedThing) Register(ctx context.Context, directoryURL string) error {
	if err := t.alive(); err != nil {
		return err
	}
	if t.servient.directory == nil {
		return notAllowed("no directory client configured")
	}
	return t.servient.directory.Register(ctx, directoryURL, t.TD())
}

// Unregister removes the TD from a Thing Directory
func (t *ExposedThing) Unregister(ctx context.Context, directoryURL string) error {
	if t.servient.directory == nil {
		return notAllowed("no directory client configured")
	}
	return t.servient.directory.Unregister(ctx, directoryURL, t.id)
}

func (t *ExposedThing) mutable() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.state == stateDestroyed {
		return notAllowed("thing %s is destroyed", t.id)
	}
	return nil
}

func (t *ExposedThing) alive() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.state == stateDestroyed {
		return &DestroyedError{t.id}
	}
	return nil
}

// changed invalidates the TD and notifies TD-change listeners
func (t *ExposedThing) changed(change TDChange) {
	t.mu.Lock()
	t.td = nil
	t.modified = time.Now()
	t.version++
	exposed := t.state == stateExposed
	t.mu.Unlock()

	t.log.Debugf("TD changed: %s", change)
	t.hub.emitTDChange(change)
	if exposed {
		t.servient.advertise(t.TD())
	}
}
