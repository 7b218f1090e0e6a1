package servient

import (
	"context"
	"errors"
	"sync"

	"github.com/linksmart/wot-servient/wot"
)

// ThingDiscovery is a running discovery. Matches are consumed with Next until it returns false.
type ThingDiscovery struct {
	results chan *ConsumedThing
	cancel  context.CancelFunc
	done    chan struct{}

	mu  sync.Mutex
	err error
}

type candidate struct {
	td wot.ThingDescription
	// false when the source evaluated the query itself
	applyQuery bool
}

type source func(ctx context.Context, out chan<- candidate) error

// Discover starts looking for Things matching the filter.
// Each call runs its own discovery; it ends when the sources are exhausted, the filter's timeout elapses,
// Stop is called or ctx is done. Local Things are described as they are when Discover is called.
func (s *Servient) Discover(ctx context.Context, filter ThingFilter) *ThingDiscovery {
	ctx, cancel := context.WithCancel(ctx)
	d := &ThingDiscovery{
		results: make(chan *ConsumedThing),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	sources, network, err := s.sources(filter)
	if err != nil {
		d.setErr(err)
	}
	go d.run(ctx, s, filter, sources, network)
	return d
}

// Next blocks until the next matching Thing is found. It returns false once the discovery ended.
func (d *ThingDiscovery) Next(ctx context.Context) (*ConsumedThing, bool) {
	select {
	case t, ok := <-d.results:
		return t, ok
	case <-ctx.Done():
		return nil, false
	}
}

// Stop ends the discovery. Err stays nil.
func (d *ThingDiscovery) Stop() {
	d.cancel()
}

// Done is closed when the discovery ended
func (d *ThingDiscovery) Done() <-chan struct{} {
	return d.done
}

// Err returns the reason the discovery ended, nil when it completed or was stopped
func (d *ThingDiscovery) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *ThingDiscovery) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err == nil {
		d.err = err
	}
}

func (d *ThingDiscovery) run(ctx context.Context, s *Servient, filter ThingFilter, sources []source, network bool) {
	defer close(d.done)
	defer close(d.results)
	defer d.cancel()

	if d.Err() != nil {
		return
	}
	m, err := newMatcher(filter, s.query)
	if err != nil {
		d.setErr(err)
		return
	}

	searchCtx := ctx
	if network && filter.Timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, filter.Timeout)
		defer cancel()
	}

	candidates := make(chan candidate)
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src source) {
			defer wg.Done()
			if err := src(searchCtx, candidates); err != nil && searchCtx.Err() == nil {
				s.log.Warnf("Discovery source failed: %s", err)
				d.setErr(err)
			}
		}(src)
	}
	go func() {
		wg.Wait()
		close(candidates)
	}()

	seen := make(map[string]bool)
	for c := range candidates {
		if c.td.ID != "" {
			if seen[c.td.ID] {
				continue
			}
		}
		t, ok := s.evaluate(m, c)
		if !ok {
			continue
		}
		if c.td.ID != "" {
			seen[c.td.ID] = true
		}
		select {
		case d.results <- t:
		case <-searchCtx.Done():
			// keep draining so that the sources can finish
		}
	}

	if ctx.Err() == nil && errors.Is(searchCtx.Err(), context.DeadlineExceeded) {
		d.setErr(&DiscoveryTimeoutError{filter.Timeout})
	}
}

func (s *Servient) evaluate(m *matcher, c candidate) (*ConsumedThing, bool) {
	log := s.log.WithField("thing", c.td.ID)
	doc, err := c.td.ToMap()
	if err != nil {
		log.Warnf("Skipping discovered Thing: %s", err)
		return nil, false
	}
	match, err := m.match(doc, c.applyQuery)
	if err != nil {
		log.Warnf("Error evaluating query: %s", err)
		return nil, false
	}
	if !match {
		return nil, false
	}
	t, err := s.Consume(c.td)
	if err != nil {
		log.Warnf("Skipping discovered Thing: %s", err)
		return nil, false
	}
	return t, true
}

// sources returns the candidate sources of the filter's method and whether any of them uses the network
func (s *Servient) sources(filter ThingFilter) ([]source, bool, error) {
	method := filter.Method
	if method == "" {
		method = DiscoveryAny
	}

	switch method {
	case DiscoveryLocal:
		return []source{s.localSource()}, false, nil
	case DiscoveryDirectory:
		if s.directory == nil {
			return nil, false, notAllowed("no directory client configured")
		}
		if filter.URL == "" {
			return nil, false, notFound("no directory URL given")
		}
		return []source{s.directorySource(filter.URL, filter.Query)}, true, nil
	case DiscoveryAny:
		sources := []source{s.localSource()}
		if s.directory != nil && filter.URL != "" {
			sources = append(sources, s.directorySource(filter.URL, filter.Query))
		}
		for _, solicitors := range s.solicitors {
			for _, solicitor := range solicitors {
				sources = append(sources, solicitorSource(solicitor))
			}
		}
		return sources, len(sources) > 1, nil
	}

	solicitors := s.solicitors[method]
	if len(solicitors) == 0 {
		return nil, false, notFound("discovery method %s is not supported", method)
	}
	var sources []source
	for _, solicitor := range solicitors {
		sources = append(sources, solicitorSource(solicitor))
	}
	return sources, true, nil
}

// localSource yields the Things registered at the time of the call, described as they are at that time
func (s *Servient) localSource() source {
	things := s.registry.snapshot()
	tds := make([]wot.ThingDescription, 0, len(things))
	for _, t := range things {
		tds = append(tds, t.TD())
	}
	return func(ctx context.Context, out chan<- candidate) error {
		for _, td := range tds {
			select {
			case out <- candidate{td: td, applyQuery: true}:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	}
}

func (s *Servient) directorySource(url, query string) source {
	return func(ctx context.Context, out chan<- candidate) error {
		tds, err := s.directory.Search(ctx, url, query)
		if err != nil {
			return err
		}
		for _, td := range tds {
			select {
			case out <- candidate{td: td}:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	}
}

func solicitorSource(solicitor Solicitor) source {
	return func(ctx context.Context, out chan<- candidate) error {
		tds, err := solicitor.Solicit(ctx)
		if err != nil {
			return err
		}
		for {
			select {
			case td, ok := <-tds:
				if !ok {
					return nil
				}
				select {
				case out <- candidate{td: td, applyQuery: true}:
				case <-ctx.Done():
					return nil
				}
			case <-ctx.Done():
				return nil
			}
		}
	}
}
