package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server captures process level configuration.
type Server struct {
	Addr          string        `env:"VOTECHAIN_ADDR"             envDefault:":8080"`
	LogLevel      string        `env:"VOTECHAIN_LOG_LEVEL"        envDefault:"info"`
	JWTSigningKey string        `env:"VOTECHAIN_JWT_SIGNING_KEY"  envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string        `env:"VOTECHAIN_JWT_ISSUER"       envDefault:"votechain"`
	JWTAudience   string        `env:"VOTECHAIN_JWT_AUDIENCE"     envDefault:"votechain-operators"`
	OperatorTTL   time.Duration `env:"VOTECHAIN_OPERATOR_TOKEN_TTL" envDefault:"1h"`
	// AdminToken guards POST /admin/tokens. Empty disables operator token issuance.
	AdminToken     string        `env:"VOTECHAIN_ADMIN_TOKEN"`
	SeedFile       string        `env:"VOTECHAIN_SEED_FILE"`
	RequestTimeout time.Duration `env:"VOTECHAIN_REQUEST_TIMEOUT"  envDefault:"30s"`
	ShutdownGrace  time.Duration `env:"VOTECHAIN_SHUTDOWN_GRACE"   envDefault:"10s"`

	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Election  ElectionConfig
	Biometric BiometricConfig
	Challenge ChallengeConfig
	Anomaly   AnomalyConfig
	WebAuthn  WebAuthnConfig
	RateLimit RateLimitConfig
}

// DatabaseConfig selects Postgres stores. An empty URL keeps everything in memory.
type DatabaseConfig struct {
	URL             string        `env:"VOTECHAIN_DATABASE_URL"`
	MaxOpenConns    int           `env:"VOTECHAIN_DATABASE_MAX_OPEN_CONNS"    envDefault:"20"`
	MaxIdleConns    int           `env:"VOTECHAIN_DATABASE_MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"VOTECHAIN_DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
	TxTimeout       time.Duration `env:"VOTECHAIN_TX_TIMEOUT"                 envDefault:"5s"`
}

// RedisConfig selects the Redis challenge store. An empty URL keeps challenges in memory.
type RedisConfig struct {
	URL          string        `env:"VOTECHAIN_REDIS_URL"`
	PoolSize     int           `env:"VOTECHAIN_REDIS_POOL_SIZE"      envDefault:"10"`
	MinIdleConns int           `env:"VOTECHAIN_REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"VOTECHAIN_REDIS_DIAL_TIMEOUT"   envDefault:"5s"`
	ReadTimeout  time.Duration `env:"VOTECHAIN_REDIS_READ_TIMEOUT"   envDefault:"3s"`
	WriteTimeout time.Duration `env:"VOTECHAIN_REDIS_WRITE_TIMEOUT"  envDefault:"3s"`
}

// KafkaConfig enables forwarding of security events. No brokers disables the sink.
type KafkaConfig struct {
	Brokers       []string `env:"VOTECHAIN_KAFKA_BROKERS"      envSeparator:","`
	SecurityTopic string   `env:"VOTECHAIN_KAFKA_SECURITY_TOPIC" envDefault:"votechain.security-events"`
	AuditBuffer   int      `env:"VOTECHAIN_AUDIT_BUFFER"       envDefault:"256"`
}

// ElectionConfig holds the election-wide toggles.
type ElectionConfig struct {
	StartOpen bool `env:"VOTECHAIN_ELECTION_START_OPEN" envDefault:"false"`
	// VoterReferenceKey keys the BLAKE2b digest linking a voter to their block.
	VoterReferenceKey string `env:"VOTECHAIN_VOTER_REFERENCE_KEY" envDefault:"dev-voter-reference-key"`
}

// BiometricConfig tunes descriptor matching.
type BiometricConfig struct {
	FaceThreshold    float64       `env:"VOTECHAIN_FACE_THRESHOLD"     envDefault:"20.0"`
	ExtractorURL     string        `env:"VOTECHAIN_FACE_EXTRACTOR_URL"`
	ExtractorTimeout time.Duration `env:"VOTECHAIN_FACE_EXTRACTOR_TIMEOUT" envDefault:"2s"`
}

// Verifier kinds accepted by ChallengeConfig.Verifier.
const (
	VerifierWebAuthn = "webauthn"
	VerifierEd25519  = "ed25519"
)

// ChallengeConfig tunes the challenge broker.
type ChallengeConfig struct {
	Verifier      string        `env:"VOTECHAIN_CHALLENGE_VERIFIER"       envDefault:"webauthn"`
	TTL           time.Duration `env:"VOTECHAIN_CHALLENGE_TTL"            envDefault:"2m"`
	VerifyTimeout time.Duration `env:"VOTECHAIN_CHALLENGE_VERIFY_TIMEOUT" envDefault:"3s"`
}

// RateLimitConfig bounds unauthenticated writes per client IP. The window
// is shared through Redis when it is configured.
type RateLimitConfig struct {
	Disabled bool          `env:"VOTECHAIN_RATELIMIT_DISABLED"`
	Requests int           `env:"VOTECHAIN_RATELIMIT_REQUESTS" envDefault:"30"`
	Window   time.Duration `env:"VOTECHAIN_RATELIMIT_WINDOW"   envDefault:"1m"`
}

// AnomalyConfig tunes burst detection.
type AnomalyConfig struct {
	Window    time.Duration `env:"VOTECHAIN_BURST_WINDOW"    envDefault:"60s"`
	Threshold int           `env:"VOTECHAIN_BURST_THRESHOLD" envDefault:"5"`
}

// WebAuthnConfig controls the relying party used to verify voter credentials.
type WebAuthnConfig struct {
	RPDisplayName string   `env:"VOTECHAIN_WEBAUTHN_RP_DISPLAY_NAME" envDefault:"Votechain"`
	RPID          string   `env:"VOTECHAIN_WEBAUTHN_RP_ID"           envDefault:"localhost"`
	RPOrigins     []string `env:"VOTECHAIN_WEBAUTHN_RP_ORIGINS"      envSeparator:"," envDefault:"http://localhost:8080"`
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (s Server) validate() error {
	if s.Biometric.FaceThreshold <= 0 {
		return fmt.Errorf("face threshold must be positive, got %v", s.Biometric.FaceThreshold)
	}
	if s.Anomaly.Threshold <= 0 || s.Anomaly.Window <= 0 {
		return fmt.Errorf("burst window and threshold must be positive")
	}
	if s.Challenge.TTL <= 0 {
		return fmt.Errorf("challenge ttl must be positive")
	}
	switch s.Challenge.Verifier {
	case VerifierWebAuthn, VerifierEd25519:
	default:
		return fmt.Errorf("challenge verifier must be %q or %q, got %q", VerifierWebAuthn, VerifierEd25519, s.Challenge.Verifier)
	}
	if !s.RateLimit.Disabled && (s.RateLimit.Requests <= 0 || s.RateLimit.Window <= 0) {
		return fmt.Errorf("rate limit requests and window must be positive")
	}
	if s.OperatorTTL <= 0 {
		return fmt.Errorf("operator token ttl must be positive")
	}
	if s.Election.VoterReferenceKey == "" {
		return fmt.Errorf("voter reference key is required")
	}
	return nil
}
