package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/linksmart/wot-servient/catalog"
	"github.com/sirupsen/logrus"
)

const (
	QueryParamType    = "type"
	QueryParamDiff    = "diff"
	HeaderLastEventID = "Last-Event-ID"
	contentTypeStream = "text/event-stream"
)

type SSEAPI struct {
	controller  NotificationController
	contentType string
	log         *logrus.Entry
}

func NewSSEAPI(controller NotificationController, version string, logger logrus.FieldLogger) *SSEAPI {
	contentType := contentTypeStream
	if version != "" {
		contentType += ";version=" + version
	}
	return &SSEAPI{
		controller:  controller,
		contentType: contentType,
		log:         logger.WithField("component", "notification"),
	}
}

// SubscribeEvent streams the events of one or all types until the client disconnects
func (a *SSEAPI) SubscribeEvent(w http.ResponseWriter, req *http.Request) {
	eventTypes := allEventTypes
	if t, found := mux.Vars(req)[QueryParamType]; found {
		eventType := EventType(t)
		if !eventType.IsValid() {
			catalog.ErrorResponse(w, http.StatusBadRequest, "Invalid event type:", t)
			return
		}
		eventTypes = []EventType{eventType}
	}

	diff := false
	if v := req.URL.Query().Get(QueryParamDiff); v != "" {
		var err error
		diff, err = strconv.ParseBool(v)
		if err != nil {
			catalog.ErrorResponse(w, http.StatusBadRequest, "Invalid value for", QueryParamDiff, "argument:", v)
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		catalog.ErrorResponse(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	events, missed, err := a.controller.subscribe(req.Context(), eventTypes, diff, req.Header.Get(HeaderLastEventID))
	if err != nil {
		var badRequest *BadRequestError
		if errors.As(err, &badRequest) {
			catalog.ErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		catalog.ErrorResponse(w, http.StatusInternalServerError, "Error subscribing:", err.Error())
		return
	}

	w.Header().Set("Content-Type", a.contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for _, event := range missed {
		if err := a.write(w, event); err != nil {
			return
		}
	}
	flusher.Flush()

	for event := range events {
		if err := a.write(w, event); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (a *SSEAPI) write(w http.ResponseWriter, event Event) error {
	data, err := json.MarshalIndent(event.Data, "data: ", "    ")
	if err != nil {
		a.log.Errorf("Error marshaling event %v: %s", event.ID, err)
		return nil
	}
	_, err = fmt.Fprintf(w, "event: %s\nid: %s\ndata: %s\n\n", event.Type, event.ID, data)
	if err != nil {
		a.log.Debugf("Error writing event %s: %s", event.ID, err)
	}
	return err
}
