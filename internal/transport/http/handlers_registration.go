package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"votechain/internal/identity"
	"votechain/pkg/platform/httputil"
	"votechain/pkg/requestcontext"
)

// RegistrationHandler serves enrolment, voter status and turnout.
type RegistrationHandler struct {
	registry RegistryService
	logger   *slog.Logger
}

func NewRegistrationHandler(registry RegistryService, logger *slog.Logger) *RegistrationHandler {
	return &RegistrationHandler{registry: registry, logger: logger}
}

func (h *RegistrationHandler) Register(r chi.Router) {
	r.Post("/registrations", h.handleRegister)
	r.Get("/voters/{voterID}/status", h.handleStatus)
	r.Get("/stats", h.handleStats)
}

func (h *RegistrationHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	res, err := h.registry.Register(ctx, req.toDomain())
	if err != nil {
		writeServiceError(ctx, h.logger, w, err, "failed to register voter")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *RegistrationHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := identity.ParseVoterID(chi.URLParam(r, "voterID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	st, err := h.registry.Status(ctx, id)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err, "failed to read voter status")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

type statsResponse struct {
	Registered     int     `json:"registered"`
	Voted          int     `json:"voted"`
	TurnoutPercent float64 `json:"turnout_percent"`
}

func (h *RegistrationHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.registry.Counts(ctx)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err, "failed to count voters")
		return
	}
	resp := statsResponse{Registered: c.Registered, Voted: c.Voted}
	if c.Registered > 0 {
		resp.TurnoutPercent = float64(c.Voted) * 100 / float64(c.Registered)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
