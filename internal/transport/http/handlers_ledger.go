package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"votechain/internal/identity"
	"votechain/internal/ledger"
	"votechain/pkg/platform/httputil"
)

// LedgerHandler serves chain inspection, receipts and results.
type LedgerHandler struct {
	ledger LedgerService
	logger *slog.Logger
}

func NewLedgerHandler(l LedgerService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: l, logger: logger}
}

func (h *LedgerHandler) Register(r chi.Router) {
	r.Get("/ledger/blocks", h.handleChain)
	r.Get("/ledger/validate", h.handleValidate)
	r.Get("/ledger/blocks/{hash}/verify", h.handleVerifyBlock)
	r.Get("/results", h.handleResults)
}

// RegisterOperator mounts the receipt lookup. Blocks carry the candidate, so
// linking a voter to a block hash is restricted to operators.
func (h *LedgerHandler) RegisterOperator(r chi.Router) {
	r.Get("/voters/{voterID}/receipt", h.handleReceipt)
}

type chainResponse struct {
	Length int            `json:"length"`
	Blocks []ledger.Block `json:"blocks"`
}

func (h *LedgerHandler) handleChain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	blocks, err := h.ledger.Chain(ctx)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err, "failed to read chain")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, chainResponse{Length: len(blocks), Blocks: blocks})
}

// handleValidate answers 200 whether or not the chain is intact; the body
// carries the verdict.
func (h *LedgerHandler) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v, err := h.ledger.ValidateChain(ctx)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err, "failed to validate chain")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *LedgerHandler) handleVerifyBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.ledger.VerifyByHash(ctx, chi.URLParam(r, "hash"))
	if err != nil {
		writeServiceError(ctx, h.logger, w, err, "failed to verify block")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

type receiptResponse struct {
	BlockHash  string    `json:"block_hash"`
	Index      int64     `json:"index"`
	DistrictID string    `json:"district_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// handleReceipt never reveals the candidate.
func (h *LedgerHandler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := identity.ParseVoterID(chi.URLParam(r, "voterID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	b, err := h.ledger.Receipt(ctx, id.String())
	if err != nil {
		writeServiceError(ctx, h.logger, w, err, "failed to look up receipt")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, receiptResponse{
		BlockHash:  b.Hash,
		Index:      b.Index,
		DistrictID: b.DistrictID,
		Timestamp:  b.Timestamp,
	})
}

func (h *LedgerHandler) handleResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.ledger.Tally(ctx)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err, "failed to tally results")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
