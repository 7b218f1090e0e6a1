package servient

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// TDChangeMethod tells how an interaction was changed
type TDChangeMethod string

const (
	MethodAdd    TDChangeMethod = "add"
	MethodRemove TDChangeMethod = "remove"
	MethodChange TDChangeMethod = "change"
)

// TDChange is delivered to TD-change listeners for every mutation of a Thing's interactions
type TDChange struct {
	ChangeType InteractionKind `json:"changeType"`
	Method     TDChangeMethod  `json:"method"`
	Name       string          `json:"name"`
	// wot.PropertyAffordance, wot.ActionAffordance or wot.EventAffordance; nil on removal
	NewDescription any `json:"newDescription,omitempty"`
}

// Subscription is the handle of a listener registered on one of a Thing's channels
type Subscription struct {
	mu        sync.Mutex
	cancelled bool
	// goroutine running the listener, 0 when idle
	deliverer uint64

	// held from the cancelled check until the listener returns
	deliverMu sync.Mutex

	channel  *channel
	listener func(any)
	// ends a subscription held by a protocol client
	stop func()
}

// Cancel removes the listener. Once Cancel has returned the listener is not running
// and is never invoked again. Called from inside the listener, Cancel returns
// without waiting for that invocation. Cancel is idempotent.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	stop := s.stop
	inside := s.deliverer != 0 && s.deliverer == goroutineID()
	s.mu.Unlock()

	if s.channel != nil {
		s.channel.remove(s)
	}
	if stop != nil {
		stop()
	}
	if !inside && s.listener != nil {
		// wait for a delivery in progress on another goroutine
		s.deliverMu.Lock()
		s.deliverMu.Unlock()
	}
}

// Active reports whether the subscription has not been cancelled
func (s *Subscription) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.cancelled
}

// enter marks the start of a delivery unless the subscription is cancelled
func (s *Subscription) enter(g uint64) (previous uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return 0, false
	}
	previous = s.deliverer
	s.deliverer = g
	return previous, true
}

func (s *Subscription) leave(previous uint64) {
	s.mu.Lock()
	s.deliverer = previous
	s.mu.Unlock()
}

// nested reports whether the goroutine is already delivering to this subscription
func (s *Subscription) nested(g uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return g != 0 && s.deliverer == g
}

// deliver invokes the listener on goroutine g unless the subscription is cancelled and returns a recovered panic.
// Deliveries to one subscription are serialized; a listener emitting on its own channel is delivered inline.
func (s *Subscription) deliver(g uint64, value any) (recovered any) {
	if !s.nested(g) {
		s.deliverMu.Lock()
		defer s.deliverMu.Unlock()
	}
	previous, ok := s.enter(g)
	if !ok {
		return nil
	}
	defer s.leave(previous)
	defer func() {
		recovered = recover()
	}()
	s.listener(value)
	return nil
}

// goroutineID parses the id of the calling goroutine from its stack header
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

type channel struct {
	name string

	mu sync.RWMutex
	// replaced on every change, never modified in place
	subscribers []*Subscription
}

func (c *channel) add(s *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := make([]*Subscription, len(c.subscribers), len(c.subscribers)+1)
	copy(subs, c.subscribers)
	c.subscribers = append(subs, s)
}

func (c *channel) remove(s *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := make([]*Subscription, 0, len(c.subscribers))
	for _, sub := range c.subscribers {
		if sub != s {
			subs = append(subs, sub)
		}
	}
	c.subscribers = subs
}

func (c *channel) snapshot() []*Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscribers
}

// hub fans out property changes, event emissions and TD changes of one Thing
type hub struct {
	log *logrus.Entry

	mu         sync.Mutex
	properties map[string]*channel
	events     map[string]*channel
	td         *channel
}

func newHub(log *logrus.Entry) *hub {
	return &hub{
		log:        log,
		properties: make(map[string]*channel),
		events:     make(map[string]*channel),
		td:         &channel{name: "td"},
	}
}

func (h *hub) channelOf(kind InteractionKind, name string) *channel {
	h.mu.Lock()
	defer h.mu.Unlock()

	channels := h.properties
	if kind == KindEvent {
		channels = h.events
	}
	c, found := channels[name]
	if !found {
		c = &channel{name: string(kind) + "/" + name}
		channels[name] = c
	}
	return c
}

func (h *hub) subscribe(c *channel, listener func(any)) *Subscription {
	s := &Subscription{channel: c, listener: listener}
	c.add(s)
	return s
}

// emit delivers the value to every listener subscribed at the time of the call.
// Listeners run on the calling goroutine, one after another.
func (h *hub) emit(c *channel, value any) {
	subscribers := c.snapshot()
	if len(subscribers) == 0 {
		return
	}
	g := goroutineID()
	for _, s := range subscribers {
		h.deliver(c, s, g, value)
	}
}

func (h *hub) deliver(c *channel, s *Subscription, g uint64, value any) {
	if r := s.deliver(g, value); r != nil {
		h.log.WithField("channel", c.name).Errorf("Listener panicked: %v", r)
	}
}

func (h *hub) emitProperty(name string, value any) {
	h.emit(h.channelOf(KindProperty, name), value)
}

func (h *hub) emitEvent(name string, payload any) {
	h.emit(h.channelOf(KindEvent, name), payload)
}

func (h *hub) emitTDChange(change TDChange) {
	h.emit(h.td, change)
}

// drop cancels all listeners of a removed interaction
func (h *hub) drop(kind InteractionKind, name string) {
	h.mu.Lock()
	channels := h.properties
	if kind == KindEvent {
		channels = h.events
	}
	c, found := channels[name]
	delete(channels, name)
	h.mu.Unlock()

	if found {
		cancelAll(c)
	}
}

// closeAll cancels every subscription of the Thing
func (h *hub) closeAll() {
	h.mu.Lock()
	var all []*channel
	for _, c := range h.properties {
		all = append(all, c)
	}
	for _, c := range h.events {
		all = append(all, c)
	}
	all = append(all, h.td)
	h.properties = make(map[string]*channel)
	h.events = make(map[string]*channel)
	h.mu.Unlock()

	for _, c := range all {
		cancelAll(c)
	}
}

func cancelAll(c *channel) {
	for _, s := range c.snapshot() {
		s.Cancel()
	}
}

func (c TDChange) String() string {
	return fmt.Sprintf("%s %s %s", c.Method, c.ChangeType, c.Name)
}
