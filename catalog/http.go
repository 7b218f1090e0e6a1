// Copyright 2014-2016 Fraunhofer Institute for Applied Information Technology FIT

package catalog

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/linksmart/wot-servient/wot"
)

// decodeBody decodes a JSON or CBOR request body according to its Content-Type
func decodeBody(req *http.Request, v any) error {
	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return fmt.Errorf("empty request body")
	}

	contentType := req.Header.Get("Content-Type")
	if !wot.SupportedMediaType(contentType) {
		return fmt.Errorf("unsupported content type: %s", contentType)
	}
	return wot.Unmarshal(contentType, body, v)
}

// negotiate picks the response media type: CBOR if the client accepts it before JSON, the default otherwise
func negotiate(req *http.Request, defaultType string) string {
	for _, accepted := range strings.Split(req.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(accepted))
		if err != nil {
			continue
		}
		switch mediaType {
		case wot.MediaTypeCBOR:
			return wot.MediaTypeCBOR
		case wot.MediaTypeJSON, wot.MediaTypeJSONLD, wot.MediaTypeThingDescription:
			return mediaType
		case "*/*":
			return defaultType
		}
	}
	return defaultType
}

// writeBody encodes the value in the negotiated media type
func writeBody(w http.ResponseWriter, req *http.Request, status int, defaultType, version string, v any) {
	mediaType := negotiate(req, defaultType)
	b, err := wot.Marshal(mediaType, v)
	if err != nil {
		ErrorResponse(w, http.StatusInternalServerError, "Error serializing response:", err.Error())
		return
	}

	if version != "" && mediaType != wot.MediaTypeCBOR {
		mediaType += ";version=" + version
	}
	w.Header().Set("Content-Type", mediaType)
	w.WriteHeader(status)
	_, err = w.Write(b)
	if err != nil {
		logger.Errorf("Error writing HTTP response: %s", err)
	}
}
