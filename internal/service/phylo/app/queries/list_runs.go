package queries

import (
	"context"

	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/domain"
)

const maxListLimit = 500

type ListRunsQuery struct {
	Limit int
}

type ListRunsResult struct {
	Runs []domain.Run
}

type ListRunsQueryHandler interface {
	Handle(ctx context.Context, query ListRunsQuery) (result ListRunsResult, err error)
}

func NewListRunsQueryHandler(runs domain.RunRepository) ListRunsQueryHandler {
	return &listRunsQueryHandler{runs: runs}
}

type listRunsQueryHandler struct {
	runs domain.RunRepository
}

func (h *listRunsQueryHandler) Handle(ctx context.Context, query ListRunsQuery) (ListRunsResult, error) {
	limit := min(query.Limit, maxListLimit)
	runs, err := h.runs.List(ctx, limit)
	if err != nil {
		return ListRunsResult{}, err
	}
	return ListRunsResult{Runs: runs}, nil
}
