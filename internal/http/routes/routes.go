// Package routes assembles the public route set.
package routes

import (
	"github.com/danielgtaylor/huma/v2"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"

	"github.com/janisto/probe-responder/internal/http/health"
	"github.com/janisto/probe-responder/internal/http/home"
)

// ProbePaths are polled by the orchestrator and excluded from access logs.
var ProbePaths = []string{"/health", "/ready"}

// APIConfig returns a huma configuration that exposes only registered
// operations: no OpenAPI, docs or schema routes, and no $schema field
// injected into response bodies.
func APIConfig(title, version string) huma.Config {
	cfg := huma.DefaultConfig(title, version)
	cfg.OpenAPIPath = ""
	cfg.DocsPath = ""
	cfg.SchemasPath = ""
	cfg.CreateHooks = nil
	return cfg
}

// Register wires all HTTP routes into the provided API.
func Register(api huma.API, greeting string) {
	home.Register(api, greeting)
	health.Register(api)
}
