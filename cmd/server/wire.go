package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"votechain/internal/anomaly"
	anomalymetrics "votechain/internal/anomaly/metrics"
	"votechain/internal/biometric"
	"votechain/internal/challenge"
	challengestore "votechain/internal/challenge/store"
	"votechain/internal/election"
	electionstore "votechain/internal/election/store"
	"votechain/internal/identity"
	identitymetrics "votechain/internal/identity/metrics"
	identitystore "votechain/internal/identity/store"
	jwttoken "votechain/internal/jwt_token"
	"votechain/internal/ledger"
	ledgermetrics "votechain/internal/ledger/metrics"
	ledgerstore "votechain/internal/ledger/store"
	"votechain/internal/platform/config"
	"votechain/internal/platform/kafka"
	"votechain/internal/platform/metrics"
	"votechain/internal/platform/postgres"
	"votechain/internal/platform/redis"
	"votechain/internal/ratelimit"
	ratelimitstore "votechain/internal/ratelimit/store"
	httptransport "votechain/internal/transport/http"
	"votechain/internal/vote"
	votemetrics "votechain/internal/vote/metrics"
	"votechain/pkg/platform/audit"
	"votechain/pkg/platform/audit/publisher"
	kafkasink "votechain/pkg/platform/audit/publishers/kafka"
	auditmemory "votechain/pkg/platform/audit/store/memory"
	auditpostgres "votechain/pkg/platform/audit/store/postgres"
	"votechain/pkg/platform/tx"
)

const sweepInterval = 30 * time.Second

// infra holds the optional external connections. Nil fields mean the
// in-memory fallback is in use.
type infra struct {
	db    *sql.DB
	redis *redis.Client
	kafka *kgo.Client
}

func openInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	in := &infra{}
	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		in.db = db
		if err := postgres.Migrate(ctx, db); err != nil {
			in.close(log)
			return nil, err
		}
		log.Info("postgres stores enabled")
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		in.close(log)
		return nil, err
	}
	if rc != nil {
		in.redis = rc
		log.Info("redis challenge store enabled")
	}

	kc, err := kafka.NewProducer(ctx, cfg.Kafka)
	if err != nil {
		in.close(log)
		return nil, err
	}
	if kc != nil {
		in.kafka = kc
		if err := kafka.EnsureTopic(ctx, kc, cfg.Kafka.SecurityTopic, 1, -1); err != nil {
			in.close(log)
			return nil, err
		}
		log.Info("kafka security sink enabled", "topic", cfg.Kafka.SecurityTopic)
	}
	return in, nil
}

func (in *infra) close(log *slog.Logger) {
	if in.kafka != nil {
		in.kafka.Close()
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			log.Warn("close redis", "error", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			log.Warn("close postgres", "error", err)
		}
	}
}

func (in *infra) healthChecks() map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if in.db != nil {
		checks["postgres"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	if in.kafka != nil {
		checks["kafka"] = in.kafka.Ping
	}
	return checks
}

type identityStore interface {
	identity.MasterDirectory
	identity.Store
	PutMaster(ctx context.Context, m identity.MasterIdentity) error
}

// stores picks Postgres, Redis or in-memory implementations per concern.
type stores struct {
	identity    identityStore
	ledger      ledger.Store
	election    election.Store
	audit       audit.Store
	challenges  challenge.Store
	credentials challenge.CredentialStore
	rateLimit   ratelimit.Store
	tx          tx.Runner

	// Set when the state lives in process and needs sweeping.
	memChallenges *challengestore.InMemory
	memRateLimit  *ratelimitstore.InMemory
}

func newStores(cfg config.Server, in *infra) *stores {
	s := &stores{}
	if in.db != nil {
		s.identity = identitystore.NewPostgres(in.db)
		s.ledger = ledgerstore.NewPostgres(in.db)
		s.election = electionstore.NewPostgres(in.db)
		s.audit = auditpostgres.New(in.db)
		s.credentials = challengestore.NewPostgresCredentials(in.db)
		s.tx = tx.NewSQLRunner(in.db, cfg.Database.TxTimeout, nil)
	} else {
		s.identity = identitystore.NewInMemory()
		s.ledger = ledgerstore.NewInMemory()
		s.election = electionstore.NewInMemory(false)
		s.audit = auditmemory.NewInMemoryStore()
		s.credentials = challengestore.NewInMemoryCredentials()
		s.tx = tx.NewMemoryRunner(cfg.Database.TxTimeout)
	}

	if in.redis != nil {
		s.challenges = challengestore.NewRedis(in.redis.Client)
		s.rateLimit = ratelimitstore.NewRedis(in.redis.Client)
	} else {
		s.memChallenges = challengestore.NewInMemory()
		s.challenges = s.memChallenges
		s.memRateLimit = ratelimitstore.NewInMemory()
		s.rateLimit = s.memRateLimit
	}
	return s
}

// seed loads the master directory and roster, and opens the election when
// configured to start open.
func (s *stores) seed(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	data, err := config.LoadSeed(cfg.SeedFile)
	if err != nil {
		return err
	}
	for _, m := range data.Masters {
		id, err := identity.ParseVoterID(m.VoterID)
		if err != nil {
			return fmt.Errorf("seed master %q: %w", m.VoterID, err)
		}
		role, err := identity.ParseRole(m.Role)
		if err != nil {
			return fmt.Errorf("seed master %q: %w", m.VoterID, err)
		}
		if err := s.identity.PutMaster(ctx, identity.MasterIdentity{VoterID: id, DistrictID: m.DistrictID, Role: role}); err != nil {
			return err
		}
	}
	for _, c := range data.Candidates {
		if err := s.election.PutCandidate(ctx, election.Candidate{
			ID: c.ID, Name: c.Name, Party: c.Party, DistrictID: c.DistrictID,
		}); err != nil {
			return err
		}
	}
	if cfg.Election.StartOpen {
		if err := s.election.SetActive(ctx, true, "bootstrap", time.Now().UTC()); err != nil {
			return err
		}
	}
	log.Info("seed loaded",
		"masters", len(data.Masters),
		"candidates", len(data.Candidates),
		"election_open", cfg.Election.StartOpen,
	)
	return nil
}

func newVerifier(cfg config.Server, credentials challenge.CredentialStore, log *slog.Logger) (challenge.Verifier, error) {
	if cfg.Challenge.Verifier == config.VerifierEd25519 {
		return challenge.NewSignatureVerifier(credentials), nil
	}
	rp, err := challenge.NewRelyingParty(challenge.WebAuthnConfig{
		RPDisplayName: cfg.WebAuthn.RPDisplayName,
		RPID:          cfg.WebAuthn.RPID,
		RPOrigins:     cfg.WebAuthn.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("webauthn relying party: %w", err)
	}
	return challenge.NewWebAuthnVerifier(rp, credentials, challenge.WithVerifierLogger(log)), nil
}

// app is the fully wired process.
type app struct {
	router    *httptransport.RouterConfig
	publisher *publisher.Publisher
	sink      *kafkasink.Sink
	stores    *stores
}

func wire(ctx context.Context, cfg config.Server, in *infra, log *slog.Logger) (*app, error) {
	st := newStores(cfg, in)
	if err := st.seed(ctx, cfg, log); err != nil {
		return nil, err
	}

	pubOpts := []publisher.Option{
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetrics()),
		publisher.WithAsyncBuffer(cfg.Kafka.AuditBuffer),
	}
	var sink *kafkasink.Sink
	if in.kafka != nil {
		sink = kafkasink.NewSink(in.kafka, cfg.Kafka.SecurityTopic,
			kafkasink.WithLogger(log),
			kafkasink.WithBufferSize(cfg.Kafka.AuditBuffer),
		)
		pubOpts = append(pubOpts, publisher.WithSink(sink))
	}
	pub := publisher.NewPublisher(st.audit, pubOpts...)

	matcherOpts := []biometric.Option{biometric.WithLogger(log)}
	if cfg.Biometric.ExtractorURL != "" {
		matcherOpts = append(matcherOpts,
			biometric.WithExtractor(biometric.NewHTTPExtractor(cfg.Biometric.ExtractorURL, cfg.Biometric.ExtractorTimeout)),
			biometric.WithExtractTimeout(cfg.Biometric.ExtractorTimeout),
		)
	}
	registry := identity.New(st.identity, st.identity,
		biometric.NewMatcher(cfg.Biometric.FaceThreshold, matcherOpts...),
		identity.WithLogger(log),
		identity.WithAuditPublisher(pub),
		identity.WithMetrics(identitymetrics.New()),
	)

	chain, err := ledger.New(st.ledger,
		ledger.WithLogger(log),
		ledger.WithAuditPublisher(pub),
		ledger.WithMetrics(ledgermetrics.New()),
		ledger.WithVoterReferenceKey([]byte(cfg.Election.VoterReferenceKey)),
	)
	if err != nil {
		return nil, err
	}
	tip, err := chain.Init(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise ledger: %w", err)
	}
	if err := chain.EnsureValid(ctx); err != nil {
		// The process still serves reads so operators can inspect the break.
		log.Error("ledger failed integrity validation at boot", "error", err)
	}
	log.Info("ledger ready", "tip_index", tip.Index, "tip_hash", tip.Hash)

	elections := election.New(st.election,
		election.WithLogger(log),
		election.WithAuditPublisher(pub),
	)

	verifier, err := newVerifier(cfg, st.credentials, log)
	if err != nil {
		return nil, err
	}
	broker := challenge.NewBroker(st.challenges, verifier,
		challenge.WithTTL(cfg.Challenge.TTL),
		challenge.WithVerifyTimeout(cfg.Challenge.VerifyTimeout),
		challenge.WithLogger(log),
	)

	votes, err := vote.New(vote.Deps{
		Election: elections,
		Registry: registry,
		Broker:   broker,
		Ledger:   chain,
		Detector: anomaly.New(
			anomaly.WithWindow(cfg.Anomaly.Window),
			anomaly.WithThreshold(cfg.Anomaly.Threshold),
			anomaly.WithMetrics(anomalymetrics.New()),
		),
		Tx: st.tx,
	},
		vote.WithLogger(log),
		vote.WithAuditPublisher(pub),
		vote.WithMetrics(votemetrics.New()),
	)
	if err != nil {
		return nil, err
	}

	jwt := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	return &app{
		publisher: pub,
		sink:      sink,
		stores:    st,
		router: &httptransport.RouterConfig{
			Logger:         log,
			Metrics:        metrics.New(),
			JWTValidator:   jwttoken.NewJWTServiceAdapter(jwt),
			AdminToken:     cfg.AdminToken,
			RequestTimeout: cfg.RequestTimeout,
			RateLimiter: ratelimit.New(st.rateLimit,
				ratelimit.WithLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window),
				ratelimit.WithDisabled(cfg.RateLimit.Disabled),
				ratelimit.WithLogger(log),
				ratelimit.WithMetrics(ratelimit.NewMetrics()),
			),

			Votes:        httptransport.NewVoteHandler(votes, log),
			Ledger:       httptransport.NewLedgerHandler(chain, log),
			Registration: httptransport.NewRegistrationHandler(registry, log),
			Challenges: httptransport.NewChallengeHandler(broker,
				challenge.NewProvisioner(st.credentials, registry), log),
			Election:  httptransport.NewElectionHandler(elections, log),
			Audit:     httptransport.NewAuditHandler(pub, log),
			Operators: httptransport.NewOperatorHandler(jwttoken.NewIssuer(st.identity, jwt, cfg.OperatorTTL, log), log),
			Health:    httptransport.NewHealthHandler(in.healthChecks(), log),
		},
	}, nil
}
