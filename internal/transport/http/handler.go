// Package httptransport exposes the voting services over HTTP.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	dErrors "votechain/pkg/domain-errors"
	"votechain/pkg/platform/httputil"
	"votechain/pkg/requestcontext"
)

// writeServiceError logs a failed service call and writes the error envelope.
// Domain rejections are expected traffic and log at Info; anything else is
// wrapped as internal.
func writeServiceError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error, msg string) {
	requestID := requestcontext.RequestID(ctx)
	if code := dErrors.CodeOf(err); code != dErrors.CodeInternal {
		logger.InfoContext(ctx, msg,
			"request_id", requestID,
			"code", string(code),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	logger.ErrorContext(ctx, msg,
		"request_id", requestID,
		"error", err,
	)
	httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, msg))
}
