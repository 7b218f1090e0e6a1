package servient

import (
	"context"
	"fmt"

	"github.com/linksmart/wot-servient/wot"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

// DirectoryClient talks to a Thing Directory
type DirectoryClient interface {
	Register(ctx context.Context, directoryURL string, td wot.ThingDescription) error
	Unregister(ctx context.Context, directoryURL string, id string) error
	// Search returns the TDs of the directory which satisfy the query, all TDs for an empty query
	Search(ctx context.Context, directoryURL string, query string) ([]wot.ThingDescription, error)
}

// Fetcher retrieves a single TD
type Fetcher interface {
	Fetch(ctx context.Context, url string) (wot.ThingDescription, error)
}

// Solicitor finds TDs over a network; the channel is closed when the search ends or ctx is done
type Solicitor interface {
	Solicit(ctx context.Context) (<-chan wot.ThingDescription, error)
}

// Advertiser announces the TDs of exposed Things
type Advertiser interface {
	Advertise(td wot.ThingDescription) error
	Withdraw(id string) error
}

// ProtocolClient performs interactions with remote Things through a form
type ProtocolClient interface {
	ReadResource(ctx context.Context, form wot.Form, href string) (any, error)
	WriteResource(ctx context.Context, form wot.Form, href string, value any) error
	InvokeResource(ctx context.Context, form wot.Form, href string, input any) (any, error)
	// SubscribeResource delivers notifications until the returned function is called
	SubscribeResource(ctx context.Context, form wot.Form, href string, listener func(any)) (cancel func(), err error)
}

// QueryEvaluator decides whether a TD satisfies a query
type QueryEvaluator interface {
	Evaluate(query string, td map[string]any) (bool, error)
}

// Servient is the runtime hosting exposed Things and consuming others
type Servient struct {
	log      *logrus.Entry
	registry *registry

	directory   DirectoryClient
	fetcher     Fetcher
	solicitors  map[string][]Solicitor
	advertisers []Advertiser
	client      ProtocolClient
	query       QueryEvaluator
	trace       TraceHook
}

type Option func(*Servient)

func WithDirectoryClient(c DirectoryClient) Option {
	return func(s *Servient) { s.directory = c }
}

func WithFetcher(f Fetcher) Option {
	return func(s *Servient) { s.fetcher = f }
}

// WithSolicitor adds a solicitor for a discovery method, e.g. multicast or broadcast
func WithSolicitor(method string, solicitor Solicitor) Option {
	return func(s *Servient) { s.solicitors[method] = append(s.solicitors[method], solicitor) }
}

func WithAdvertiser(a Advertiser) Option {
	return func(s *Servient) { s.advertisers = append(s.advertisers, a) }
}

func WithProtocolClient(c ProtocolClient) Option {
	return func(s *Servient) { s.client = c }
}

func WithQueryEvaluator(q QueryEvaluator) Option {
	return func(s *Servient) { s.query = q }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Servient) { s.log = l.WithField("component", "servient") }
}

// WithTraceHook receives the state transitions of all requests
func WithTraceHook(h TraceHook) Option {
	return func(s *Servient) { s.trace = h }
}

func New(opts ...Option) *Servient {
	s := &Servient{
		log:        logrus.StandardLogger().WithField("component", "servient"),
		registry:   newRegistry(),
		solicitors: make(map[string][]Solicitor),
		query:      DefaultQueryEvaluator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Produce creates an ExposedThing from a TD model. The model's interactions are added to the Thing.
func (s *Servient) Produce(model wot.ThingDescription) (*ExposedThing, error) {
	if model.Title == "" {
		return nil, schemaViolation("", "", &wot.SchemaError{Path: "/title", Reason: "title is required"})
	}
	meta, err := model.Copy()
	if err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	if meta.ID == "" {
		meta.ID = "urn:uuid:" + uuid.NewV4().String()
	}
	if meta.Context == nil {
		meta.Context = wot.DefaultContext
	}

	t := newExposedThing(s, meta)
	for name, p := range meta.Properties {
		if err := t.store.defineProperty(name, p, nil); err != nil {
			return nil, err
		}
	}
	for name, a := range meta.Actions {
		if err := t.store.defineAction(name, a); err != nil {
			return nil, err
		}
	}
	for name, e := range meta.Events {
		if err := t.store.defineEvent(name, e); err != nil {
			return nil, err
		}
	}

	if err := s.registry.add(t); err != nil {
		return nil, err
	}
	s.log.WithField("thing", t.ID()).Infof("Produced %s", meta.Title)
	return t, nil
}

// Consume returns a ConsumedThing for the TD
func (s *Servient) Consume(td wot.ThingDescription) (*ConsumedThing, error) {
	if err := wot.ValidateTD(td); err != nil {
		return nil, schemaViolation("", "", err)
	}
	c, err := td.Copy()
	if err != nil {
		return nil, err
	}
	for name, p := range c.Properties {
		if err := p.Schema().CheckConsistency(); err != nil {
			return nil, schemaViolation(KindProperty, name, err)
		}
	}
	return &ConsumedThing{td: c, servient: s}, nil
}

// Fetch retrieves a TD through the configured Fetcher
func (s *Servient) Fetch(ctx context.Context, url string) (wot.ThingDescription, error) {
	if s.fetcher == nil {
		return wot.ThingDescription{}, notAllowed("no fetcher configured")
	}
	return s.fetcher.Fetch(ctx, url)
}

// Thing returns an ExposedThing of this Servient
func (s *Servient) Thing(id string) (*ExposedThing, error) {
	t, found := s.registry.get(id)
	if !found {
		return nil, notFound("thing %s not found", id)
	}
	return t, nil
}

// Things returns the ExposedThings of this Servient ordered by id
func (s *Servient) Things() []*ExposedThing {
	return s.registry.snapshot()
}

// Shutdown destroys all ExposedThings
func (s *Servient) Shutdown() {
	s.registry.destroyAll()
	s.log.Info("Shut down")
}

func (s *Servient) advertise(td wot.ThingDescription) {
	for _, a := range s.advertisers {
		if err := a.Advertise(td); err != nil {
			s.log.WithField("thing", td.ID).Errorf("Error advertising: %s", err)
		}
	}
}

func (s *Servient) withdraw(id string) {
	for _, a := range s.advertisers {
		if err := a.Withdraw(id); err != nil {
			s.log.WithField("thing", id).Errorf("Error withdrawing advertisement: %s", err)
		}
	}
}
