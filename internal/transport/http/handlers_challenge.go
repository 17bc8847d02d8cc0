package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"votechain/internal/challenge"
	"votechain/internal/identity"
	"votechain/pkg/platform/httputil"
	"votechain/pkg/requestcontext"
)

// ChallengeHandler serves challenge issuance and credential provisioning.
type ChallengeHandler struct {
	challenges  ChallengeService
	credentials CredentialService
	logger      *slog.Logger
}

func NewChallengeHandler(challenges ChallengeService, credentials CredentialService, logger *slog.Logger) *ChallengeHandler {
	return &ChallengeHandler{challenges: challenges, credentials: credentials, logger: logger}
}

// Register mounts the public routes.
func (h *ChallengeHandler) Register(r chi.Router) {
	r.Post("/challenges", h.handleIssue)
}

// RegisterOperator mounts routes that must sit behind operator auth.
func (h *ChallengeHandler) RegisterOperator(r chi.Router) {
	r.Put("/voters/{voterID}/credentials", h.handleProvision)
}

func (h *ChallengeHandler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[IssueChallengeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	issued, err := h.challenges.Issue(ctx, req.voterID.String())
	if err != nil {
		writeServiceError(ctx, h.logger, w, err, "failed to issue challenge")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, issued)
}

func (h *ChallengeHandler) handleProvision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	voterID, err := identity.ParseVoterID(chi.URLParam(r, "voterID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ProvisionCredentialRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	cred := challenge.Credential{ID: req.ID, VoterID: voterID.String(), Kind: req.Kind, Data: req.Data}
	if err := h.credentials.Provision(ctx, cred); err != nil {
		writeServiceError(ctx, h.logger, w, err, "failed to provision credential")
		return
	}
	h.logger.InfoContext(ctx, "credential provisioned",
		"request_id", requestcontext.RequestID(ctx),
		"voter_id", voterID.String(),
		"kind", string(req.Kind),
		"operator_id", requestcontext.OperatorID(ctx),
	)
	w.WriteHeader(http.StatusNoContent)
}
