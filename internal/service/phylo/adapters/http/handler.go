package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/adapters/http/openapi"
	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/app"
	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/app/commands"
	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/app/queries"
	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/domain"
	"github.com/google/uuid"
)

type Server struct {
	cmdBus   app.CommandBus
	queryBus app.QueryBus

	// pipeline is the template every started run is built from.
	pipeline commands.RunPipelineCommand
}

var _ openapi.ServerInterface = (*Server)(nil)

func NewServer(cmdBus app.CommandBus, queryBus app.QueryBus, pipeline commands.RunPipelineCommand) *Server {
	return &Server{
		cmdBus:   cmdBus,
		queryBus: queryBus,
		pipeline: pipeline,
	}
}

func (s *Server) GetHealthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, openapi.HealthResponse{Status: "ok"})
}

func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	var in openapi.StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	cmd := s.pipeline
	cmd.Anchors = append([]string(nil), s.pipeline.Anchors...)
	if in.Fetch == nil || !*in.Fetch {
		cmd.Fetch = commands.FetchBundlesCommand{}
	} else if cmd.Fetch.ServerURL == "" {
		writeError(w, http.StatusUnprocessableEntity, "no FHIR server configured")
		return
	}
	if in.Since != nil {
		cmd.Fetch.Since = *in.Since
	}

	result, err := s.cmdBus.StartRun(r.Context(), commands.StartRunCommand{Pipeline: cmd})
	if errors.Is(err, commands.ErrShuttingDown) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Location", "/runs/"+result.Run.ID.String())
	writeJSON(w, http.StatusAccepted, toRun(result.Run))
}

func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request, params openapi.ListRunsParams) {
	q := queries.ListRunsQuery{}
	if params.Limit != nil {
		q.Limit = *params.Limit
	}

	result, err := s.queryBus.ListRuns(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := openapi.RunList{Runs: make([]openapi.Run, 0, len(result.Runs))}
	for _, run := range result.Runs {
		out.Runs = append(out.Runs, toRun(run))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) GetRunById(w http.ResponseWriter, r *http.Request, runId string) {
	id, err := uuid.Parse(runId)
	if err != nil {
		writeError(w, http.StatusBadRequest, "runId must be a uuid")
		return
	}

	result, err := s.queryBus.GetRun(r.Context(), queries.GetRunQuery{RunID: id})
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "run not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toRun(result.Run))
}

func toRun(run domain.Run) openapi.Run {
	return openapi.Run{
		ID:         run.ID.String(),
		Status:     string(run.Status),
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		ResultsDir: run.ResultsDir,
		Bundles:    run.Bundles,
		Error:      run.Error,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, openapi.Error{Message: msg})
}
