// Copyright 2014-2016 Fraunhofer Institute for Applied Information Technology FIT

package catalog

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/linksmart/wot-servient/wot"
	"github.com/sirupsen/logrus"
)

// Not Found
type NotFoundError struct{ s string }

func (e *NotFoundError) Error() string { return e.s }

// Conflict (non-unique id, assignment to read-only data)
type ConflictError struct{ s string }

func (e *ConflictError) Error() string { return e.s }

// Bad Request
type BadRequestError struct{ s string }

func (e *BadRequestError) Error() string { return e.s }

// Validation error (HTTP Bad Request)
type ValidationError struct {
	ValidationErrors []wot.ValidationError
}

func (e *ValidationError) Error() string { return wot.ValidationErrors(e.ValidationErrors).Error() }

// Error describes an API error (serializable in JSON)
type Error struct {
	// Code is the (http) code of the error
	Code int `json:"code"`
	// Message is the (human-readable) error message
	Message string `json:"message"`
	// ValidationErrors lists the issues of an invalid TD
	ValidationErrors []wot.ValidationError `json:"validationErrors,omitempty"`
}

// ErrorResponse writes error to HTTP ResponseWriter
func ErrorResponse(w http.ResponseWriter, code int, msgs ...string) {
	writeError(w, &Error{Code: code, Message: strings.Join(msgs, " ")})
}

// ValidationErrorResponse writes the issues of an invalid TD with status Bad Request
func ValidationErrorResponse(w http.ResponseWriter, issues []wot.ValidationError) {
	writeError(w, &Error{
		Code:             http.StatusBadRequest,
		Message:          "Invalid Thing Description",
		ValidationErrors: issues,
	})
}

func writeError(w http.ResponseWriter, e *Error) {
	if e.Code >= 500 {
		logrus.Errorln(e.Message)
	}
	b, err := json.Marshal(e)
	if err != nil {
		logrus.Errorf("Error serializing error object: %s", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code)
	_, err = w.Write(b)
	if err != nil {
		logrus.Errorf("Error writing HTTP response: %s", err)
	}
}
