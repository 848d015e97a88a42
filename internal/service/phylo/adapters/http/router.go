package http

import (
	"net/http"

	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/adapters/http/openapi"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/go-chi/chi/v5"
	oapimw "github.com/oapi-codegen/nethttp-middleware"
)

// Router adds request validation against the embedded OpenAPI document to r
// and mounts srv's routes on it.
func Router(srv *Server, r chi.Router) (http.Handler, error) {
	swagger, err := openapi.GetSwagger()
	if err != nil {
		return nil, err
	}
	// Servers are matched by the runtime's listener, not by the spec.
	swagger.Servers = nil

	r.Use(oapimw.OapiRequestValidatorWithOptions(swagger, &oapimw.Options{
		Options: openapi3filter.Options{
			// X-API-Key is enforced by the runtime's middleware
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}))

	return openapi.HandlerFromMux(srv, r), nil
}
