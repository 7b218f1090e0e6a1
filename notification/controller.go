package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/linksmart/wot-servient/catalog"
	"github.com/sirupsen/logrus"
)

type Controller struct {
	queue EventQueue
	log   *logrus.Entry

	// serializes id generation, storage and notification of events
	mu sync.Mutex
	// Events are pushed to this channel by the event handlers
	notifier chan Event

	// New client connections
	subscribingClients chan subscription

	// Closed client connections
	unsubscribingClients chan chan Event

	// Client connections registry
	activeClients map[chan Event]*subscriber

	shutdown chan struct{}
	stopOnce sync.Once
}

type subscriber struct {
	ctx        context.Context
	eventTypes []EventType
	diff       bool
	// events up to this id were replayed
	after uint64
}

type subscription struct {
	subscriber  *subscriber
	client      chan Event
	lastEventID string
	reply       chan subscriptionReply
}

type subscriptionReply struct {
	missed []Event
	err    error
}

func NewController(queue EventQueue, logger logrus.FieldLogger) *Controller {
	c := &Controller{
		queue:                queue,
		log:                  logger.WithField("component", "notification"),
		notifier:             make(chan Event, 1),
		subscribingClients:   make(chan subscription),
		unsubscribingClients: make(chan chan Event),
		activeClients:        make(map[chan Event]*subscriber),
		shutdown:             make(chan struct{}),
	}
	go c.handler()
	return c
}

func (c *Controller) subscribe(ctx context.Context, eventTypes []EventType, diff bool, lastEventID string) (<-chan Event, []Event, error) {
	client := make(chan Event)
	s := subscription{
		subscriber:  &subscriber{ctx: ctx, eventTypes: eventTypes, diff: diff},
		client:      client,
		lastEventID: lastEventID,
		reply:       make(chan subscriptionReply, 1),
	}
	select {
	case c.subscribingClients <- s:
	case <-c.shutdown:
		return nil, nil, fmt.Errorf("notification controller is stopped")
	}
	reply := <-s.reply
	if reply.err != nil {
		return nil, nil, reply.err
	}

	go func() {
		select {
		case <-ctx.Done():
			select {
			case c.unsubscribingClients <- client:
			case <-c.shutdown:
			}
		case <-c.shutdown:
		}
	}()
	return client, reply.missed, nil
}

func (c *Controller) storeAndNotify(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	event.ID, err = c.queue.getNewID()
	if err != nil {
		return fmt.Errorf("error generating ID: %w", err)
	}

	// Store
	err = c.queue.addRotate(event)
	if err != nil {
		return fmt.Errorf("error storing the notification: %w", err)
	}

	// Notify
	select {
	case c.notifier <- event:
	case <-c.shutdown:
	}
	return nil
}

// Stop closes all subscriptions
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		close(c.shutdown)
	})
}

func (c *Controller) CreateHandler(new catalog.ThingDescription) error {
	event := Event{
		Type: createEvent,
		Data: new,
	}
	return c.storeAndNotify(event)
}

// UpdateHandler stores the changes as a JSON Merge Patch
func (c *Controller) UpdateHandler(old catalog.ThingDescription, new catalog.ThingDescription) error {
	oldJSON, err := json.Marshal(old)
	if err != nil {
		return fmt.Errorf("error marshalling old TD: %w", err)
	}
	newJSON, err := json.Marshal(new)
	if err != nil {
		return fmt.Errorf("error marshalling new TD: %w", err)
	}
	patch, err := jsonpatch.CreateMergePatch(oldJSON, newJSON)
	if err != nil {
		return fmt.Errorf("error creating merge patch: %w", err)
	}
	var td catalog.ThingDescription
	if err := json.Unmarshal(patch, &td); err != nil {
		return fmt.Errorf("error unmarshalling the patch: %w", err)
	}
	td["id"] = old["id"]
	event := Event{
		Type: updateEvent,
		Data: td,
	}
	return c.storeAndNotify(event)
}

func (c *Controller) DeleteHandler(old catalog.ThingDescription) error {
	event := Event{
		Type: deleteEvent,
		Data: catalog.ThingDescription{"id": old["id"]},
	}
	return c.storeAndNotify(event)
}

func (c *Controller) handler() {
	for {
		select {
		case s := <-c.subscribingClients:
			missed, err := c.missedEvents(s.subscriber, s.lastEventID)
			if err != nil {
				s.reply <- subscriptionReply{err: err}
				continue
			}
			c.activeClients[s.client] = s.subscriber
			s.reply <- subscriptionReply{missed: missed}
			c.log.Debugf("New subscription. %d active clients", len(c.activeClients))
		case client := <-c.unsubscribingClients:
			delete(c.activeClients, client)
			close(client)
			c.log.Debugf("Unsubscribed. %d active clients", len(c.activeClients))
		case event := <-c.notifier:
			id, _ := strconv.ParseUint(event.ID, 16, 64)
			for client, s := range c.activeClients {
				if id <= s.after || !s.wants(event.Type) {
					continue
				}
				select {
				case client <- s.format(event):
				case <-s.ctx.Done():
				case <-c.shutdown:
				}
			}
		case <-c.shutdown:
			c.log.Debug("Shutting down notification controller")
			for client := range c.activeClients {
				delete(c.activeClients, client)
				close(client)
			}
			return
		}
	}
}

// missedEvents returns the stored events after lastEventID, formatted for the subscriber
func (c *Controller) missedEvents(s *subscriber, lastEventID string) ([]Event, error) {
	if lastEventID == "" {
		return nil, nil
	}
	if _, err := strconv.ParseUint(lastEventID, 16, 64); err != nil {
		return nil, &BadRequestError{fmt.Sprintf("invalid event id: %s", lastEventID)}
	}
	events, err := c.queue.getAllAfter(lastEventID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving missed events: %w", err)
	}

	var missed []Event
	for _, event := range events {
		if id, err := strconv.ParseUint(event.ID, 16, 64); err == nil && id > s.after {
			s.after = id
		}
		if s.wants(event.Type) {
			missed = append(missed, s.format(event))
		}
	}
	return missed, nil
}

func (s *subscriber) wants(t EventType) bool {
	for _, eventType := range s.eventTypes {
		if eventType == t {
			return true
		}
	}
	return false
}

// format strips the TD down to its id unless the subscriber asked for the changes
func (s *subscriber) format(event Event) Event {
	if !s.diff || event.Type == deleteEvent {
		event.Data = catalog.ThingDescription{"id": event.Data["id"]}
	}
	return event
}

// BadRequestError is returned for invalid subscription parameters
type BadRequestError struct{ s string }

func (e *BadRequestError) Error() string { return e.s }
