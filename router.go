// Copyright 2016 Fraunhofer Institute for Applied Information Technology FIT

package main

import (
	"fmt"
	"html"
	"net/http"
	"net/url"
	"sort"

	"github.com/gorilla/mux"
	"github.com/linksmart/wot-servient/servient"
)

type router struct {
	*mux.Router
}

func newRouter() *router {
	return &router{mux.NewRouter().StrictSlash(false).SkipClean(true)}
}

// handle registers the handler for the path with and without a trailing slash
func (r *router) handle(method, path string, handler http.Handler) {
	r.Methods(method).Path(path).Handler(handler)
	r.Methods(method).Path(path + "/").Handler(handler)
}

func (r *router) get(path string, handler http.Handler) {
	r.handle(http.MethodGet, path, handler)
}

func (r *router) post(path string, handler http.Handler) {
	r.handle(http.MethodPost, path, handler)
}

func (r *router) put(path string, handler http.Handler) {
	r.handle(http.MethodPut, path, handler)
}

func (r *router) delete(path string, handler http.Handler) {
	r.handle(http.MethodDelete, path, handler)
}

func (r *router) patch(path string, handler http.Handler) {
	r.handle(http.MethodPatch, path, handler)
}

var endpoints = []struct{ path, title string }{
	{"/td", "Thing Directory"},
	{"/search/jsonpath", "JSONPath search"},
	{"/search/xpath", "XPath search"},
	{"/validation", "TD validation"},
	{"/events", "Directory notifications"},
}

// indexHandler renders an overview of the API endpoints and the Things exposed by the servient
func indexHandler(s *servient.Servient) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type entry struct{ id, title string }
		var things []entry
		for _, t := range s.Things() {
			if t.Exposed() {
				things = append(things, entry{t.ID(), t.TD().Title})
			}
		}
		sort.Slice(things, func(i, j int) bool { return things[i].title < things[j].title })

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>`)
		fmt.Fprint(w, `<h1>LinkSmart WoT Servient</h1>`)
		if Version != "" {
			fmt.Fprintf(w, `<p>Version: %s</p>`, html.EscapeString(Version))
		}
		fmt.Fprint(w, `<h2>Endpoints</h2><ul>`)
		for _, e := range endpoints {
			fmt.Fprintf(w, `<li>%s: <a href="%s">%s</a></li>`, e.title, e.path, e.path)
		}
		fmt.Fprint(w, `</ul>`)

		fmt.Fprintf(w, `<h2>Exposed Things (%d)</h2><ul>`, len(things))
		for _, t := range things {
			fmt.Fprintf(w, `<li><a href="/td/%s">%s</a> %s</li>`,
				html.EscapeString(url.PathEscape(t.id)), html.EscapeString(t.title), html.EscapeString(t.id))
		}
		fmt.Fprint(w, `</ul>`)
		fmt.Fprint(w, `<p><a href="https://github.com/linksmart/wot-servient">https://github.com/linksmart/wot-servient</a></p>`)
		fmt.Fprint(w, `</body></html>`)
	}
}
