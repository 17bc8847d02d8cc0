package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"votechain/pkg/platform/httputil"
	"votechain/pkg/requestcontext"
)

// OperatorHandler serves POST /admin/tokens. It must sit behind the
// admin token middleware.
type OperatorHandler struct {
	issuer TokenIssuer
	logger *slog.Logger
}

func NewOperatorHandler(issuer TokenIssuer, logger *slog.Logger) *OperatorHandler {
	return &OperatorHandler{issuer: issuer, logger: logger}
}

func (h *OperatorHandler) Register(r chi.Router) {
	r.Post("/admin/tokens", h.handleIssueToken)
}

func (h *OperatorHandler) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[OperatorTokenRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	tok, err := h.issuer.Issue(ctx, req.operatorID)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err, "failed to issue operator token")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tok)
}
