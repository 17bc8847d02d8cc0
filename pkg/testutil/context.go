package testutil

import (
	"net/http"

	"votechain/pkg/requestcontext"
)

// WithOperator places an authenticated operator on the request context, as
// the auth middleware would after validating a bearer token.
func WithOperator(req *http.Request, operatorID, role string) *http.Request {
	return req.WithContext(requestcontext.WithOperator(req.Context(), operatorID, role))
}
