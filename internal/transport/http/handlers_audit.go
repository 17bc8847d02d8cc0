package httptransport

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "votechain/pkg/domain-errors"
	"votechain/pkg/platform/audit"
	"votechain/pkg/platform/httputil"
)

const maxAuditLimit = 500

// AuditHandler serves GET /audit/events to operators.
type AuditHandler struct {
	audit  AuditService
	logger *slog.Logger
}

func NewAuditHandler(svc AuditService, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: svc, logger: logger}
}

// RegisterOperator mounts the listing; callers must be Auditor or Admin.
func (h *AuditHandler) RegisterOperator(r chi.Router) {
	r.Get("/audit/events", h.handleList)
}

type auditEventResponse struct {
	ID         string    `json:"id"`
	Category   string    `json:"category"`
	Timestamp  time.Time `json:"timestamp"`
	Action     string    `json:"action"`
	Subject    string    `json:"subject,omitempty"`
	DistrictID string    `json:"district_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Severity   string    `json:"severity,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	IP         string    `json:"ip,omitempty"`
	Device     string    `json:"device,omitempty"`
}

type auditListResponse struct {
	Events []auditEventResponse `json:"events"`
}

func (h *AuditHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseAuditFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.audit.List(ctx, filter)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err, "failed to list audit events")
		return
	}
	resp := auditListResponse{Events: make([]auditEventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, auditEventResponse{
			ID:         e.ID.String(),
			Category:   string(e.Category),
			Timestamp:  e.Timestamp,
			Action:     e.Action,
			Subject:    e.Subject,
			DistrictID: e.DistrictID,
			Reason:     e.Reason,
			Severity:   string(e.Severity),
			RequestID:  e.RequestID,
			ActorID:    e.ActorID,
			IP:         e.IP,
			Device:     e.Device,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func parseAuditFilter(r *http.Request) (audit.Filter, error) {
	var f audit.Filter
	q := r.URL.Query()
	if raw := q.Get("category"); raw != "" {
		cat, ok := audit.ParseCategory(raw)
		if !ok {
			return f, dErrors.New(dErrors.CodeValidation, "category must be compliance, security or operations")
		}
		f.Category = cat
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return f, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer")
		}
		f.Limit = min(n, maxAuditLimit)
	}
	return f, nil
}
