package notification

type EventType string

const (
	createEvent EventType = "create"
	updateEvent EventType = "update"
	deleteEvent EventType = "delete"
)

var allEventTypes = []EventType{createEvent, updateEvent, deleteEvent}

func (e EventType) IsValid() bool {
	switch e {
	case createEvent, updateEvent, deleteEvent:
		return true
	default:
		return false
	}
}
