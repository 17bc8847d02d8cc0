package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"votechain/internal/identity"
	"votechain/internal/platform/metrics"
	"votechain/internal/ratelimit"
	"votechain/pkg/platform/middleware/admin"
	"votechain/pkg/platform/middleware/auth"
	"votechain/pkg/platform/middleware/device"
	"votechain/pkg/platform/middleware/metadata"
	"votechain/pkg/platform/middleware/request"
	"votechain/pkg/platform/middleware/requesttime"
)

const defaultRequestTimeout = 30 * time.Second

// RouterConfig carries everything NewRouter mounts.
type RouterConfig struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	JWTValidator   auth.JWTValidator
	AdminToken     string
	RequestTimeout time.Duration
	// RateLimiter guards the unauthenticated write routes. Nil disables it.
	RateLimiter *ratelimit.Limiter

	Votes        *VoteHandler
	Ledger       *LedgerHandler
	Registration *RegistrationHandler
	Challenges   *ChallengeHandler
	Election     *ElectionHandler
	Audit        *AuditHandler
	Operators    *OperatorHandler
	Health       *HealthHandler
}

// NewRouter mounts every route behind the shared middleware chain. Operator
// routes additionally require a bearer token whose role allows them.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(device.Middleware)
	r.Use(request.Logger(logger))
	r.Use(cfg.Metrics.Middleware)

	r.Handle("/metrics", metrics.Handler())
	if cfg.Health != nil {
		cfg.Health.Register(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(timeout))

		r.Group(func(r chi.Router) {
			r.Use(cfg.RateLimiter.Middleware)
			cfg.Votes.Register(r)
			cfg.Registration.Register(r)
			cfg.Challenges.Register(r)
		})
		cfg.Ledger.Register(r)
		cfg.Election.Register(r)

		if cfg.Operators != nil {
			r.Group(func(r chi.Router) {
				r.Use(admin.RequireAdminToken(cfg.AdminToken, logger))
				cfg.Operators.Register(r)
			})
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(cfg.JWTValidator, logger))

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(logger, string(identity.RoleAuditor), string(identity.RoleAdmin)))
				cfg.Election.RegisterControl(r)
				cfg.Audit.RegisterOperator(r)
				cfg.Ledger.RegisterOperator(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(logger, string(identity.RoleAdmin)))
				cfg.Election.RegisterRoster(r)
				cfg.Challenges.RegisterOperator(r)
			})
		})
	})
	return r
}
