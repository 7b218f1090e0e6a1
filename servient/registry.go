package servient

import (
	"sort"
	"sync"
)

// registry owns the ExposedThings of a Servient
type registry struct {
	sync.RWMutex
	things map[string]*ExposedThing
}

func newRegistry() *registry {
	return &registry{things: make(map[string]*ExposedThing)}
}

func (r *registry) add(t *ExposedThing) error {
	r.Lock()
	defer r.Unlock()

	if _, found := r.things[t.ID()]; found {
		return &AlreadyExistsError{"thing " + t.ID() + " already exists"}
	}
	r.things[t.ID()] = t
	return nil
}

func (r *registry) remove(id string) {
	r.Lock()
	defer r.Unlock()
	delete(r.things, id)
}

func (r *registry) get(id string) (*ExposedThing, bool) {
	r.RLock()
	defer r.RUnlock()
	t, found := r.things[id]
	return t, found
}

// snapshot returns the registered Things ordered by id
func (r *registry) snapshot() []*ExposedThing {
	r.RLock()
	things := make([]*ExposedThing, 0, len(r.things))
	for _, t := range r.things {
		things = append(things, t)
	}
	r.RUnlock()

	sort.Slice(things, func(i, j int) bool { return things[i].ID() < things[j].ID() })
	return things
}

// destroyAll destroys every registered Thing
func (r *registry) destroyAll() {
	for _, t := range r.snapshot() {
		t.Destroy()
	}
}
