package servient

import (
	"context"
	"fmt"

	"github.com/linksmart/wot-servient/wot"
	"github.com/sirupsen/logrus"
)

// RequestState is a step in the processing of a single request
type RequestState string

const (
	StateReceived   RequestState = "received"
	StateValidating RequestState = "validating"
	StateExecuting  RequestState = "executing"
	StateCompleted  RequestState = "completed"
	StateFailed     RequestState = "failed"
)

const opEmitEvent = "emitevent"

// Trace reports a request's state transition
type Trace struct {
	ThingID string
	Kind    InteractionKind
	Name    string
	Op      string
	State   RequestState
	// set in the failed state
	Err error
}

// TraceHook receives every state transition of every request
type TraceHook func(Trace)

// dispatcher routes requests of one Thing to the handlers of its store
type dispatcher struct {
	thingID string
	store   *store
	hub     *hub
	log     *logrus.Entry
	trace   TraceHook
}

type request struct {
	d     *dispatcher
	kind  InteractionKind
	name  string
	op    string
	state RequestState
}

func (d *dispatcher) begin(kind InteractionKind, name, op string) *request {
	r := &request{d: d, kind: kind, name: name, op: op}
	r.to(StateReceived)
	return r
}

func (r *request) to(state RequestState) {
	r.state = state
	r.report(nil)
}

func (r *request) fail(err error) error {
	r.state = StateFailed
	r.report(err)
	return err
}

func (r *request) report(err error) {
	if r.d.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		entry := r.d.log.WithFields(logrus.Fields{string(r.kind): r.name, "op": r.op, "state": r.state})
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Debug("Request")
	}
	if r.d.trace != nil {
		r.d.trace(Trace{ThingID: r.d.thingID, Kind: r.kind, Name: r.name, Op: r.op, State: r.state, Err: err})
	}
}

// execute moves the request to executing unless the caller gave up already
func (r *request) execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return r.fail(&CancelledError{err})
	}
	r.to(StateExecuting)
	return nil
}

// guard runs a handler. Failures and panics become a HandlerError.
func guard(kind InteractionKind, name string, run func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{kind, name, fmt.Errorf("handler panicked: %v", r)}
		}
	}()
	if err := run(); err != nil {
		return &HandlerError{kind, name, err}
	}
	return nil
}

func (d *dispatcher) readProperty(ctx context.Context, name string) (any, error) {
	r := d.begin(KindProperty, name, wot.OpReadProperty)

	r.to(StateValidating)
	p, found := d.store.property(name)
	if !found {
		return nil, r.fail(notFound("property %s not found", name))
	}
	if p.affordance.WriteOnly {
		return nil, r.fail(notAllowed("property %s is write-only", name))
	}

	if err := r.execute(ctx); err != nil {
		return nil, err
	}
	value, version := p.cached()
	handler := d.store.readHandler(p)
	if handler == nil {
		r.to(StateCompleted)
		return value, nil
	}

	var result any
	err := guard(KindProperty, name, func() (err error) {
		result, err = handler(ctx)
		return err
	})
	if err != nil {
		return nil, r.fail(err)
	}
	value, err = wot.Normalize(result)
	if err != nil {
		return nil, r.fail(&HandlerError{KindProperty, name, err})
	}
	// a write completed during the read wins
	p.refresh(value, version)
	r.to(StateCompleted)
	return copyValue(value), nil
}

func (d *dispatcher) writeProperty(ctx context.Context, name string, input any) error {
	r := d.begin(KindProperty, name, wot.OpWriteProperty)

	r.to(StateValidating)
	p, found := d.store.property(name)
	if !found {
		return r.fail(notFound("property %s not found", name))
	}
	if !p.affordance.Writable() {
		return r.fail(notAllowed("property %s is read-only", name))
	}
	value, err := wot.Normalize(input)
	if err != nil {
		return r.fail(schemaViolation(KindProperty, name, err))
	}
	if err := p.schema.Validate(value); err != nil {
		return r.fail(schemaViolation(KindProperty, name, err))
	}

	deliver, err := d.applyWrite(ctx, r, p, value)
	if err != nil {
		return err
	}
	r.to(StateCompleted)
	if deliver {
		d.notify(p)
	}
	return nil
}

// applyWrite runs the write handler, updates the cache and schedules the change notification as one step per property
func (d *dispatcher) applyWrite(ctx context.Context, r *request, p *propertyEntry, value any) (bool, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if err := r.execute(ctx); err != nil {
		return false, err
	}
	if handler := d.store.writeHandler(p); handler != nil {
		err := guard(KindProperty, p.name, func() error {
			return handler(ctx, copyValue(value))
		})
		if err != nil {
			return false, r.fail(err)
		}
	}
	p.setCached(value)
	return p.schedule(copyValue(value)), nil
}

// notify delivers the pending change notifications of the property, including those queued meanwhile by other writers
func (d *dispatcher) notify(p *propertyEntry) {
	for v, ok := p.next(); ok; v, ok = p.next() {
		d.hub.emitProperty(p.name, v)
	}
}

func (d *dispatcher) invokeAction(ctx context.Context, name string, input any) (any, error) {
	r := d.begin(KindAction, name, wot.OpInvokeAction)

	r.to(StateValidating)
	a, found := d.store.action(name)
	if !found {
		return nil, r.fail(notFound("action %s not found", name))
	}
	value, err := wot.Normalize(input)
	if err != nil {
		return nil, r.fail(schemaViolation(KindAction, name, err))
	}
	if a.affordance.Input == nil && value != nil {
		return nil, r.fail(schemaViolation(KindAction, name, &wot.SchemaError{Reason: "action accepts no input"}))
	}
	if err := a.input.Validate(value); err != nil {
		return nil, r.fail(schemaViolation(KindAction, name, err))
	}
	handler := d.store.actionHandler(a)
	if handler == nil {
		return nil, r.fail(notFound("no handler for action %s", name))
	}

	if err := r.execute(ctx); err != nil {
		return nil, err
	}
	var result any
	err = guard(KindAction, name, func() (err error) {
		result, err = handler(ctx, value)
		return err
	})
	if err != nil {
		return nil, r.fail(err)
	}
	if a.affordance.Output == nil {
		r.to(StateCompleted)
		return nil, nil
	}
	output, err := wot.Normalize(result)
	if err != nil {
		return nil, r.fail(schemaViolation(KindAction, name, err))
	}
	if err := a.output.Validate(output); err != nil {
		return nil, r.fail(schemaViolation(KindAction, name, err))
	}
	r.to(StateCompleted)
	return output, nil
}

func (d *dispatcher) emitEvent(name string, payload any) error {
	r := d.begin(KindEvent, name, opEmitEvent)

	r.to(StateValidating)
	e, found := d.store.event(name)
	if !found {
		return r.fail(notFound("event %s not found", name))
	}
	value, err := wot.Normalize(payload)
	if err != nil {
		return r.fail(schemaViolation(KindEvent, name, err))
	}
	if err := e.data.Validate(value); err != nil {
		return r.fail(schemaViolation(KindEvent, name, err))
	}

	r.to(StateExecuting)
	d.hub.emitEvent(name, value)
	r.to(StateCompleted)
	return nil
}

func (d *dispatcher) observeProperty(name string, listener func(any)) (*Subscription, error) {
	p, found := d.store.property(name)
	if !found {
		return nil, notFound("property %s not found", name)
	}
	if !p.affordance.Observable {
		return nil, notAllowed("property %s is not observable", name)
	}
	return d.hub.subscribe(d.hub.channelOf(KindProperty, name), listener), nil
}

func (d *dispatcher) subscribeEvent(name string, listener func(any)) (*Subscription, error) {
	if _, found := d.store.event(name); !found {
		return nil, notFound("event %s not found", name)
	}
	return d.hub.subscribe(d.hub.channelOf(KindEvent, name), listener), nil
}

// copyValue returns a copy of a normalized value
func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = copyValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = copyValue(e)
		}
		return s
	}
	return v
}
