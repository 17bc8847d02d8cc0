package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"votechain/internal/election"
	"votechain/internal/identity"
	dErrors "votechain/pkg/domain-errors"
	"votechain/pkg/platform/httputil"
	"votechain/pkg/requestcontext"
)

// ElectionHandler serves the election switch and the roster.
type ElectionHandler struct {
	election ElectionService
	logger   *slog.Logger
}

func NewElectionHandler(svc ElectionService, logger *slog.Logger) *ElectionHandler {
	return &ElectionHandler{election: svc, logger: logger}
}

// Register mounts the public routes.
func (h *ElectionHandler) Register(r chi.Router) {
	r.Get("/election", h.handleStatus)
	r.Get("/candidates", h.handleCandidates)
}

// RegisterControl mounts the switch; callers must be Auditor or Admin.
func (h *ElectionHandler) RegisterControl(r chi.Router) {
	r.Post("/election/start", h.handleSet(true))
	r.Post("/election/stop", h.handleSet(false))
}

// RegisterRoster mounts roster edits; callers must be Admin.
func (h *ElectionHandler) RegisterRoster(r chi.Router) {
	r.Post("/candidates", h.handleAddCandidate)
}

func (h *ElectionHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := h.election.Status(ctx)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err, "failed to read election state")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

func (h *ElectionHandler) handleSet(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		op, err := operatorFrom(ctx)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}

		set := h.election.Stop
		if active {
			set = h.election.Start
		}
		st, err := set(ctx, op)
		if err != nil {
			writeServiceError(ctx, h.logger, w, err, "failed to change election state")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, st)
	}
}

type candidatesResponse struct {
	Candidates []election.Candidate `json:"candidates"`
}

func (h *ElectionHandler) handleCandidates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	district := strings.TrimSpace(r.URL.Query().Get("district_id"))
	list, err := h.election.Candidates(ctx, district)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err, "failed to list candidates")
		return
	}
	if list == nil {
		list = []election.Candidate{}
	}
	httputil.WriteJSON(w, http.StatusOK, candidatesResponse{Candidates: list})
}

func (h *ElectionHandler) handleAddCandidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[AddCandidateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	c := req.toDomain()
	if err := h.election.AddCandidate(ctx, c); err != nil {
		writeServiceError(ctx, h.logger, w, err, "failed to add candidate")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

// operatorFrom reads the operator placed in ctx by the auth middleware.
func operatorFrom(ctx context.Context) (election.Operator, error) {
	id := requestcontext.OperatorID(ctx)
	if id == "" {
		return election.Operator{}, dErrors.New(dErrors.CodeUnauthorized, "operator authentication required")
	}
	role, err := identity.ParseRole(requestcontext.OperatorRole(ctx))
	if err != nil {
		return election.Operator{}, dErrors.New(dErrors.CodeForbidden, "operator role not recognised")
	}
	return election.Operator{ID: id, Role: role}, nil
}
