package notification

import (
	"context"

	"github.com/linksmart/wot-servient/catalog"
)

type Event struct {
	ID   string                   `json:"id"`
	Type EventType                `json:"event"`
	Data catalog.ThingDescription `json:"data"`
}

// NotificationController interface
type NotificationController interface {
	// subscribe returns the live events of the given types until ctx is done,
	// and the stored events after lastEventID which the client has missed
	subscribe(ctx context.Context, eventTypes []EventType, diff bool, lastEventID string) (<-chan Event, []Event, error)
	Stop()
	catalog.EventListener
}

// EventQueue stores the latest events for replay
type EventQueue interface {
	addRotate(event Event) error
	getAllAfter(id string) ([]Event, error)
	getNewID() (string, error)
	Close()
}
