package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"votechain/pkg/platform/httputil"
	"votechain/pkg/requestcontext"
)

// VoteHandler serves POST /votes.
type VoteHandler struct {
	votes  VoteService
	logger *slog.Logger
}

func NewVoteHandler(votes VoteService, logger *slog.Logger) *VoteHandler {
	return &VoteHandler{votes: votes, logger: logger}
}

func (h *VoteHandler) Register(r chi.Router) {
	r.Post("/votes", h.handleCastVote)
}

func (h *VoteHandler) handleCastVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CastVoteRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	receipt, err := h.votes.CastVote(ctx, req.toDomain())
	if err != nil {
		writeServiceError(ctx, h.logger, w, err, "failed to cast vote")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, receipt)
}
