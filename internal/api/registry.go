package api

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// Registry holds the endpoints a server exposes.
type Registry struct {
	endpoints []Endpoint
	patterns  map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{patterns: make(map[string]bool)}
}

// Register adds an endpoint. Two endpoints with the same method and path
// are rejected; ServeMux would panic on them later.
func (r *Registry) Register(ep Endpoint) error {
	pattern := Describe(ep).Pattern()
	if r.patterns[pattern] {
		return fmt.Errorf("duplicate route %q", pattern)
	}
	r.patterns[pattern] = true
	r.endpoints = append(r.endpoints, ep)
	return nil
}

// RegisterRoutes adds every route to mux. initMiddleware wraps handlers that
// need the analysis services.
func (r *Registry) RegisterRoutes(mux *http.ServeMux, initMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	for _, ep := range r.endpoints {
		method, path, handler := ep.Route()
		if ep.RequiresInit() {
			handler = initMiddleware(handler)
		}
		mux.HandleFunc(method+" "+path, handler)
	}
}

// Endpoints returns the registered endpoints in registration order.
func (r *Registry) Endpoints() []Endpoint {
	return r.endpoints
}

// Routes lists the registered routes sorted by path, then method.
func (r *Registry) Routes() []Route {
	routes := make([]Route, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		routes = append(routes, Describe(ep))
	}
	slices.SortFunc(routes, func(a, b Route) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return strings.Compare(a.Method, b.Method)
	})
	return routes
}
