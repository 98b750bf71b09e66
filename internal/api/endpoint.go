package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint is one papercheck operation exposed both as an HTTP route on the
// server and as a CLI command that calls that route.
type Endpoint interface {
	// Route returns the HTTP method, path pattern and handler.
	Route() (method, path string, handler http.HandlerFunc)

	// RequiresInit reports whether the handler needs the analysis services
	// (provider registry, cache, knowledge, pipeline) to be running.
	RequiresInit() bool

	// Command builds the CLI command. getServerURL is read when the command
	// runs, after flags are parsed.
	Command(getServerURL func() string) *cobra.Command
}

// Route describes a registered endpoint without its handler.
type Route struct {
	Method       string `json:"method" yaml:"method"`
	Path         string `json:"path" yaml:"path"`
	RequiresInit bool   `json:"requires_init" yaml:"requires_init"`
}

// Pattern is the ServeMux pattern, e.g. "POST /v1/analyze".
func (r Route) Pattern() string {
	return r.Method + " " + r.Path
}

// Describe returns the route of ep.
func Describe(ep Endpoint) Route {
	method, path, _ := ep.Route()
	return Route{Method: method, Path: path, RequiresInit: ep.RequiresInit()}
}
