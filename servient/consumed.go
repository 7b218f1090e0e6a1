package servient

import (
	"context"

	"github.com/linksmart/wot-servient/wot"
)

// ConsumedThing is a client side proxy of a Thing described by a TD.
// Things exposed by the same Servient are reached directly, others through the ProtocolClient.
type ConsumedThing struct {
	td       wot.ThingDescription
	servient *Servient
}

// ID returns the id of the consumed Thing
func (c *ConsumedThing) ID() string {
	return c.td.ID
}

// TD returns a copy of the Thing Description
func (c *ConsumedThing) TD() wot.ThingDescription {
	td, _ := c.td.Copy()
	return td
}

func (c *ConsumedThing) local() (*ExposedThing, bool) {
	if c.td.ID == "" {
		return nil, false
	}
	return c.servient.registry.get(c.td.ID)
}

func (c *ConsumedThing) ReadProperty(ctx context.Context, name string) (any, error) {
	p, found := c.td.Properties[name]
	if !found {
		return nil, notFound("property %s not found", name)
	}
	if t, ok := c.local(); ok {
		return t.ReadProperty(ctx, name)
	}

	form, href, err := c.form(KindProperty, name, wot.OpReadProperty, p.InteractionAffordance)
	if err != nil {
		return nil, err
	}
	v, err := c.servient.client.ReadResource(ctx, form, href)
	if err != nil {
		return nil, err
	}
	return wot.Normalize(v)
}

func (c *ConsumedThing) WriteProperty(ctx context.Context, name string, value any) error {
	p, found := c.td.Properties[name]
	if !found {
		return notFound("property %s not found", name)
	}
	if !p.Writable() {
		return notAllowed("property %s is read-only", name)
	}
	if err := p.Schema().Validate(value); err != nil {
		return schemaViolation(KindProperty, name, err)
	}
	if t, ok := c.local(); ok {
		return t.WriteProperty(ctx, name, value)
	}

	form, href, err := c.form(KindProperty, name, wot.OpWriteProperty, p.InteractionAffordance)
	if err != nil {
		return err
	}
	v, err := wot.Normalize(value)
	if err != nil {
		return schemaViolation(KindProperty, name, err)
	}
	return c.servient.client.WriteResource(ctx, form, href, v)
}

func (c *ConsumedThing) InvokeAction(ctx context.Context, name string, input any) (any, error) {
	a, found := c.td.Actions[name]
	if !found {
		return nil, notFound("action %s not found", name)
	}
	if a.Input == nil && input != nil {
		return nil, schemaViolation(KindAction, name, &wot.SchemaError{Reason: "action accepts no input"})
	}
	if err := a.Input.Validate(input); err != nil {
		return nil, schemaViolation(KindAction, name, err)
	}
	if t, ok := c.local(); ok {
		return t.InvokeAction(ctx, name, input)
	}

	form, href, err := c.form(KindAction, name, wot.OpInvokeAction, a.InteractionAffordance)
	if err != nil {
		return nil, err
	}
	v, err := wot.Normalize(input)
	if err != nil {
		return nil, schemaViolation(KindAction, name, err)
	}
	output, err := c.servient.client.InvokeResource(ctx, form, href, v)
	if err != nil {
		return nil, err
	}
	if a.Output == nil {
		return nil, nil
	}
	output, err = wot.Normalize(output)
	if err != nil {
		return nil, schemaViolation(KindAction, name, err)
	}
	if err := a.Output.Validate(output); err != nil {
		return nil, schemaViolation(KindAction, name, err)
	}
	return output, nil
}

// ObserveProperty subscribes to changes of an observable property
func (c *ConsumedThing) ObserveProperty(ctx context.Context, name string, listener func(value any)) (*Subscription, error) {
	p, found := c.td.Properties[name]
	if !found {
		return nil, notFound("property %s not found", name)
	}
	if !p.Observable {
		return nil, notAllowed("property %s is not observable", name)
	}
	if t, ok := c.local(); ok {
		return t.OnPropertyChange(name, listener)
	}

	form, href, err := c.form(KindProperty, name, wot.OpObserveProperty, p.InteractionAffordance)
	if err != nil {
		return nil, err
	}
	return c.subscribe(ctx, form, href, listener)
}

// SubscribeEvent subscribes to an event
func (c *ConsumedThing) SubscribeEvent(ctx context.Context, name string, listener func(payload any)) (*Subscription, error) {
	e, found := c.td.Events[name]
	if !found {
		return nil, notFound("event %s not found", name)
	}
	if t, ok := c.local(); ok {
		return t.OnEvent(name, listener)
	}

	form, href, err := c.form(KindEvent, name, wot.OpSubscribeEvent, e.InteractionAffordance)
	if err != nil {
		return nil, err
	}
	return c.subscribe(ctx, form, href, listener)
}

func (c *ConsumedThing) subscribe(ctx context.Context, form wot.Form, href string, listener func(any)) (*Subscription, error) {
	s := &Subscription{listener: listener}
	stop, err := c.servient.client.SubscribeResource(ctx, form, href, func(v any) {
		if r := s.deliver(goroutineID(), v); r != nil {
			c.servient.log.WithField("thing", c.td.ID).Errorf("Listener panicked: %v", r)
		}
	})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.stop = stop
	cancelled := s.cancelled
	s.mu.Unlock()
	if cancelled && stop != nil {
		stop()
	}
	return s, nil
}

// form selects the form for the operation and resolves its target against the TD's base
func (c *ConsumedThing) form(kind InteractionKind, name, op string, affordance wot.InteractionAffordance) (wot.Form, string, error) {
	if c.servient.client == nil {
		return wot.Form{}, "", notAllowed("no protocol client configured to reach %s", c.td.ID)
	}
	form, found := affordance.FormFor(op)
	if !found {
		return wot.Form{}, "", notFound("no form for %s on %s %s", op, kind, name)
	}
	href, err := form.Resolve(c.td.Base)
	if err != nil {
		return wot.Form{}, "", err
	}
	return form, href, nil
}
