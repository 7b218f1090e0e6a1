// Copyright 2014-2016 Fraunhofer Institute for Applied Information Technology FIT

package catalog

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/linksmart/wot-servient/wot"
)

const QueryParam = "query"

type ThingDescriptionPage struct {
	Context string             `json:"@context"`
	Type    string             `json:"@type"`
	Items   []ThingDescription `json:"items"`
	Page    int                `json:"page"`
	PerPage int                `json:"perPage"`
	Total   int                `json:"total"`
}

type ValidationResult struct {
	Valid  bool                  `json:"valid"`
	Errors []wot.ValidationError `json:"errors"`
}

// HTTPAPI is the Thing Directory API
type HTTPAPI struct {
	controller CatalogController
	version    string
}

func NewHTTPAPI(controller CatalogController, version string) *HTTPAPI {
	return &HTTPAPI{
		controller: controller,
		version:    version,
	}
}

// Post adds a TD with a system-generated id
func (a *HTTPAPI) Post(w http.ResponseWriter, req *http.Request) {
	var td ThingDescription
	if err := decodeBody(req, &td); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Error processing the request:", err.Error())
		return
	}

	if id, _ := td[_id].(string); id != "" {
		ErrorResponse(w, http.StatusBadRequest, "Registering with defined ID is not possible using a POST request.")
		return
	}

	id, err := a.controller.add(td)
	if err != nil {
		a.writeControllerError(w, "Error creating the registration:", err)
		return
	}

	w.Header().Set("Location", id)
	w.WriteHeader(http.StatusCreated)
}

// Get returns one TD
func (a *HTTPAPI) Get(w http.ResponseWriter, req *http.Request) {
	params := mux.Vars(req)

	td, err := a.controller.get(params["id"])
	if err != nil {
		a.writeControllerError(w, "Error retrieving the registration:", err)
		return
	}

	writeBody(w, req, http.StatusOK, wot.MediaTypeThingDescription, a.version, td)
}

// Put updates an existing TD (Response: StatusNoContent)
// If the TD does not exist, a new one will be created with the given id (Response: StatusCreated)
func (a *HTTPAPI) Put(w http.ResponseWriter, req *http.Request) {
	params := mux.Vars(req)

	var td ThingDescription
	if err := decodeBody(req, &td); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Error processing the request:", err.Error())
		return
	}

	if id, ok := td[_id].(string); ok && id != params["id"] {
		ErrorResponse(w, http.StatusConflict, "Resource id does not match the id in the TD.")
		return
	}

	err := a.controller.update(params["id"], td)
	if err != nil {
		var notFound *NotFoundError
		if !errors.As(err, &notFound) {
			a.writeControllerError(w, "Error updating the registration:", err)
			return
		}

		// Create a new TD with the given id
		td[_id] = params["id"]
		id, err := a.controller.add(td)
		if err != nil {
			a.writeControllerError(w, "Error creating the registration:", err)
			return
		}
		w.Header().Set("Location", id)
		w.WriteHeader(http.StatusCreated)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Patch applies a JSON Merge Patch to an existing TD
func (a *HTTPAPI) Patch(w http.ResponseWriter, req *http.Request) {
	params := mux.Vars(req)

	var td ThingDescription
	if err := decodeBody(req, &td); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Error processing the request:", err.Error())
		return
	}

	if id, ok := td[_id].(string); ok && id != params["id"] {
		ErrorResponse(w, http.StatusConflict, "Resource id does not match the id in the TD.")
		return
	}

	err := a.controller.patch(params["id"], td)
	if err != nil {
		a.writeControllerError(w, "Error patching the registration:", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete removes one TD
func (a *HTTPAPI) Delete(w http.ResponseWriter, req *http.Request) {
	params := mux.Vars(req)

	err := a.controller.delete(params["id"])
	if err != nil {
		a.writeControllerError(w, "Error deleting the registration:", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetMany lists TDs in a paginated collection
func (a *HTTPAPI) GetMany(w http.ResponseWriter, req *http.Request) {
	err := req.ParseForm()
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Error parsing the query:", err.Error())
		return
	}
	page, perPage, err := ParsePagingParams(
		req.Form.Get(GetParamPage), req.Form.Get(GetParamPerPage), MaxPerPage)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Error parsing query parameters:", err.Error())
		return
	}

	items, total, err := a.controller.list(page, perPage)
	if err != nil {
		a.writeControllerError(w, "Error listing the registrations:", err)
		return
	}

	a.writePage(w, req, items, page, perPage, total)
}

// Filter lists TDs with a value at the given path (Deprecated)
func (a *HTTPAPI) Filter(w http.ResponseWriter, req *http.Request) {
	params := mux.Vars(req)

	err := req.ParseForm()
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Error parsing the query:", err.Error())
		return
	}
	page, perPage, err := ParsePagingParams(
		req.Form.Get(GetParamPage), req.Form.Get(GetParamPerPage), MaxPerPage)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Error parsing query parameters:", err.Error())
		return
	}

	items, total, err := a.controller.filter(params["path"], params["op"], params["value"], page, perPage)
	if err != nil {
		a.writeControllerError(w, "Error filtering the registrations:", err)
		return
	}

	a.writePage(w, req, items, page, perPage, total)
}

func (a *HTTPAPI) writePage(w http.ResponseWriter, req *http.Request, items []ThingDescription, page, perPage, total int) {
	coll := &ThingDescriptionPage{
		Context: ResponseContextURL,
		Type:    ResponseType,
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
	}
	writeBody(w, req, http.StatusOK, wot.MediaTypeJSONLD, a.version, coll)
}

// SearchJSONPath evaluates a JSONPath query on the array of all TDs
func (a *HTTPAPI) SearchJSONPath(w http.ResponseWriter, req *http.Request) {
	a.search(w, req, a.controller.filterJSONPathBytes)
}

// SearchXPath returns the TDs for which an XPath query selects any node
func (a *HTTPAPI) SearchXPath(w http.ResponseWriter, req *http.Request) {
	a.search(w, req, a.controller.filterXPathBytes)
}

func (a *HTTPAPI) search(w http.ResponseWriter, req *http.Request, filter func(string) ([]byte, error)) {
	query := req.URL.Query().Get(QueryParam)
	if query == "" {
		ErrorResponse(w, http.StatusBadRequest, "No value for", QueryParam, "argument")
		return
	}

	b, err := filter(query)
	if err != nil {
		a.writeControllerError(w, "Error processing the query:", err)
		return
	}

	w.Header().Set("Content-Type", wot.MediaTypeJSON)
	_, err = w.Write(b)
	if err != nil {
		logger.Errorf("Error writing HTTP response: %s", err)
	}
}

// GetValidation validates the TD in the request body without storing it
func (a *HTTPAPI) GetValidation(w http.ResponseWriter, req *http.Request) {
	var td ThingDescription
	if err := decodeBody(req, &td); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Error processing the request:", err.Error())
		return
	}

	issues, err := validateThingDescription(td)
	if err != nil {
		ErrorResponse(w, http.StatusInternalServerError, "Error validating the TD:", err.Error())
		return
	}

	result := ValidationResult{Valid: len(issues) == 0, Errors: issues}
	if result.Errors == nil {
		result.Errors = []wot.ValidationError{}
	}
	writeBody(w, req, http.StatusOK, wot.MediaTypeJSON, "", result)
}

func (a *HTTPAPI) writeControllerError(w http.ResponseWriter, msg string, err error) {
	var (
		notFound   *NotFoundError
		conflict   *ConflictError
		badRequest *BadRequestError
		validation *ValidationError
	)
	switch {
	case errors.As(err, &validation):
		ValidationErrorResponse(w, validation.ValidationErrors)
	case errors.As(err, &notFound):
		ErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.As(err, &conflict):
		ErrorResponse(w, http.StatusConflict, msg, err.Error())
	case errors.As(err, &badRequest):
		ErrorResponse(w, http.StatusBadRequest, msg, err.Error())
	default:
		ErrorResponse(w, http.StatusInternalServerError, msg, err.Error())
	}
}
