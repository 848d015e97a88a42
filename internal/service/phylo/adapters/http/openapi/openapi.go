// Package openapi binds the embedded OpenAPI document to chi routes, in the
// layout oapi-codegen generates for chi servers.
package openapi

import (
	_ "embed"
	"fmt"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

//go:embed openapi.yaml
var spec []byte

type HealthResponse struct {
	Status string `json:"status"`
}

type StartRunRequest struct {
	Fetch *bool   `json:"fetch,omitempty"`
	Since *string `json:"since,omitempty"`
}

type Run struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	ResultsDir string     `json:"results_dir"`
	Bundles    int        `json:"bundles"`
	Error      string     `json:"error,omitempty"`
}

type RunList struct {
	Runs []Run `json:"runs"`
}

type Error struct {
	Message string `json:"message"`
}

type ListRunsParams struct {
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}

type ServerInterface interface {
	// (GET /health)
	GetHealthStatus(w http.ResponseWriter, r *http.Request)
	// (POST /runs)
	StartRun(w http.ResponseWriter, r *http.Request)
	// (GET /runs)
	ListRuns(w http.ResponseWriter, r *http.Request, params ListRunsParams)
	// (GET /runs/{runId})
	GetRunById(w http.ResponseWriter, r *http.Request, runId string)
}

// GetSwagger parses the embedded document.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	swagger, err := loader.LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("loading openapi spec: %w", err)
	}
	if err := swagger.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validating openapi spec: %w", err)
	}
	return swagger, nil
}

type serverInterfaceWrapper struct {
	handler ServerInterface
}

func (siw *serverInterfaceWrapper) GetHealthStatus(w http.ResponseWriter, r *http.Request) {
	siw.handler.GetHealthStatus(w, r)
}

func (siw *serverInterfaceWrapper) StartRun(w http.ResponseWriter, r *http.Request) {
	siw.handler.StartRun(w, r)
}

func (siw *serverInterfaceWrapper) ListRuns(w http.ResponseWriter, r *http.Request) {
	var params ListRunsParams

	err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter limit: %s", err), http.StatusBadRequest)
		return
	}

	siw.handler.ListRuns(w, r, params)
}

func (siw *serverInterfaceWrapper) GetRunById(w http.ResponseWriter, r *http.Request) {
	var runId string

	err := runtime.BindStyledParameterWithOptions("simple", "runId", chi.URLParam(r, "runId"), &runId,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter runId: %s", err), http.StatusBadRequest)
		return
	}

	siw.handler.GetRunById(w, r, runId)
}

// HandlerFromMux mounts every operation of si on r.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	wrapper := &serverInterfaceWrapper{handler: si}

	r.Get("/health", wrapper.GetHealthStatus)
	r.Post("/runs", wrapper.StartRun)
	r.Get("/runs", wrapper.ListRuns)
	r.Get("/runs/{runId}", wrapper.GetRunById)

	return r
}
