package queries

import (
	"context"

	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/domain"
	"github.com/google/uuid"
)

type GetRunQuery struct {
	RunID uuid.UUID
}

type GetRunResult struct {
	Run domain.Run
}

type GetRunQueryHandler interface {
	Handle(ctx context.Context, query GetRunQuery) (result GetRunResult, err error)
}

func NewGetRunQueryHandler(runs domain.RunRepository) GetRunQueryHandler {
	return &getRunQueryHandler{runs: runs}
}

type getRunQueryHandler struct {
	runs domain.RunRepository
}

func (h *getRunQueryHandler) Handle(ctx context.Context, query GetRunQuery) (GetRunResult, error) {
	run, err := h.runs.Get(ctx, query.RunID)
	if err != nil {
		return GetRunResult{}, err
	}
	return GetRunResult{Run: run}, nil
}
