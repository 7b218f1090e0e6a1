package catalog

// EventListener interface that listens to TDD events.
type EventListener interface {
	CreateHandler(new ThingDescription) error
	UpdateHandler(old ThingDescription, new ThingDescription) error
	DeleteHandler(old ThingDescription) error
}

// eventHandler implements sequential fan-out of events from the directory.
// A failing listener is logged and does not stop the others.
type eventHandler []EventListener

func (h eventHandler) created(new ThingDescription) {
	for i := range h {
		if err := h[i].CreateHandler(new); err != nil {
			logger.Errorf("Error handling create event of %v: %s", new[_id], err)
		}
	}
}

func (h eventHandler) updated(old ThingDescription, new ThingDescription) {
	for i := range h {
		if err := h[i].UpdateHandler(old, new); err != nil {
			logger.Errorf("Error handling update event of %v: %s", new[_id], err)
		}
	}
}

func (h eventHandler) deleted(old ThingDescription) {
	for i := range h {
		if err := h[i].DeleteHandler(old); err != nil {
			logger.Errorf("Error handling delete event of %v: %s", old[_id], err)
		}
	}
}
