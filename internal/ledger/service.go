package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/blake2b"

	"votechain/internal/ledger/metrics"
	dErrors "votechain/pkg/domain-errors"
	"votechain/pkg/platform/audit"
	"votechain/pkg/platform/sentinel"
	"votechain/pkg/requestcontext"
)

var tracer = otel.Tracer("votechain/ledger")

// BuildFunc derives the next block from the current tip (nil when the chain
// is empty). Returning a nil block leaves the chain unchanged.
type BuildFunc func(prev *Block) (*Block, error)

// Store persists blocks. AppendNext must run read-tip, build and insert as one
// critical section so no two blocks ever claim the same predecessor.
type Store interface {
	AppendNext(ctx context.Context, build BuildFunc) (*Block, error)
	Latest(ctx context.Context) (*Block, error)
	List(ctx context.Context) ([]Block, error)
	FindByIndex(ctx context.Context, index int64) (*Block, error)
	FindByHash(ctx context.Context, hash string) (*Block, error)
	FindByVoterReference(ctx context.Context, ref string) (*Block, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Ledger is the single writer of the vote chain.
type Ledger struct {
	store          Store
	refKey         []byte
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(l *Ledger) {
		l.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// WithVoterReferenceKey sets the BLAKE2b key for voter references. Keys longer
// than 64 bytes are rejected by New.
func WithVoterReferenceKey(key []byte) Option {
	return func(l *Ledger) {
		l.refKey = key
	}
}

// New constructs a Ledger.
func New(store Store, opts ...Option) (*Ledger, error) {
	l := &Ledger{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	if len(l.refKey) > blake2b.Size {
		return nil, errors.New("ledger: voter reference key must be at most 64 bytes")
	}
	return l, nil
}

// Vote is an accepted ballot ready to be chained.
type Vote struct {
	VoterID     string
	DistrictID  string
	CandidateID string
}

// Init writes the genesis block if the chain is empty and returns the tip.
func (l *Ledger) Init(ctx context.Context) (*Block, error) {
	var created bool
	tip, err := l.store.AppendNext(ctx, func(prev *Block) (*Block, error) {
		if prev != nil {
			return nil, nil
		}
		created = true
		return newBlock(nil, genesisMarker, genesisMarker, "", requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to initialise ledger")
	}
	if created {
		l.logger.InfoContext(ctx, "genesis block created", "hash", tip.Hash)
	}
	return tip, nil
}

// AppendVote chains a vote block after the current tip. Inside a unit of
// work it joins the caller's transaction.
func (l *Ledger) AppendVote(ctx context.Context, v Vote) (*Block, error) {
	start := time.Now()
	ref := l.VoterReference(v.VoterID)
	at := requestcontext.Now(ctx)
	b, err := l.store.AppendNext(ctx, func(prev *Block) (*Block, error) {
		return newBlock(prev, v.DistrictID, v.CandidateID, ref, at)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeAlreadyVoted, "a block already exists for this voter")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append block")
	}
	l.metrics.ObserveAppend(start, b.Index+1)
	return b, nil
}

// VoterReference is the keyed BLAKE2b-256 digest stored beside a vote block.
func (l *Ledger) VoterReference(voterID string) string {
	if voterID == "" {
		return ""
	}
	h, err := blake2b.New256(l.refKey)
	if err != nil {
		// New rejects oversized keys, so this cannot happen.
		panic(err)
	}
	h.Write([]byte(voterID))
	return hex.EncodeToString(h.Sum(nil))
}

// Validation is the result of walking the chain.
type Validation struct {
	Valid    bool   `json:"valid"`
	Length   int    `json:"length"`
	BrokenAt *int64 `json:"broken_at,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ValidateChain recomputes every hash and link in index order. A break is
// reported, alerted on and never repaired.
func (l *Ledger) ValidateChain(ctx context.Context) (*Validation, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "ledger.ValidateChain")
	defer span.End()

	blocks, err := l.store.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read chain")
	}

	v := walk(blocks)
	span.SetAttributes(attribute.Int("ledger.length", v.Length), attribute.Bool("ledger.valid", v.Valid))
	l.metrics.ObserveValidate(start, v.Length, v.Valid)
	if !v.Valid {
		span.SetStatus(codes.Error, v.Reason)
		l.alert(ctx, v)
	}
	return v, nil
}

func walk(blocks []Block) *Validation {
	v := &Validation{Valid: true, Length: len(blocks)}
	fail := func(index int64, reason string) *Validation {
		v.Valid = false
		v.BrokenAt = &index
		v.Reason = reason
		return v
	}
	for i := range blocks {
		b := &blocks[i]
		if b.Index != int64(i) {
			return fail(b.Index, "index sequence is not contiguous")
		}
		if err := b.CheckIntegrity(); err != nil {
			return fail(b.Index, err.Error())
		}
		if i == 0 {
			if b.PreviousHash != GenesisPreviousHash {
				return fail(b.Index, "genesis block has a predecessor")
			}
			continue
		}
		if b.PreviousHash != blocks[i-1].Hash {
			return fail(b.Index, "previous hash does not match predecessor")
		}
	}
	return v
}

func (l *Ledger) alert(ctx context.Context, v *Validation) {
	l.logger.ErrorContext(ctx, "ledger integrity check failed",
		"alert", "chain_integrity_violation",
		"request_id", requestcontext.RequestID(ctx),
		"broken_at", *v.BrokenAt,
		"reason", v.Reason,
	)
	if l.auditPublisher == nil {
		return
	}
	event := audit.SecurityEvent{
		Subject:  "ledger",
		Action:   audit.EventChainIntegrityFail,
		Reason:   v.Reason,
		Severity: audit.SeverityCritical,
	}.ToEvent()
	if err := l.auditPublisher.Emit(ctx, event); err != nil {
		l.logger.WarnContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}

// EnsureValid returns a chain_integrity_violation error when the chain is broken.
func (l *Ledger) EnsureValid(ctx context.Context) error {
	v, err := l.ValidateChain(ctx)
	if err != nil {
		return err
	}
	if !v.Valid {
		return dErrors.New(dErrors.CodeChainIntegrityViolation, "ledger failed integrity validation")
	}
	return nil
}

// Latest returns the chain tip.
func (l *Ledger) Latest(ctx context.Context) (*Block, error) {
	b, err := l.store.Latest(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "ledger is empty")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read chain tip")
	}
	return b, nil
}

// Chain returns every block in index order.
func (l *Ledger) Chain(ctx context.Context) ([]Block, error) {
	blocks, err := l.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read chain")
	}
	return blocks, nil
}

// BlockVerification reports whether a single block is intact and linked.
type BlockVerification struct {
	Valid   bool   `json:"valid"`
	Block   *Block `json:"block,omitempty"`
	Details string `json:"details,omitempty"`
}

// VerifyByHash checks the block with the given hash against its own fields
// and its predecessor.
func (l *Ledger) VerifyByHash(ctx context.Context, hash string) (*BlockVerification, error) {
	b, err := l.store.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &BlockVerification{Valid: false, Details: "no block with this hash"}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up block")
	}
	if err := b.CheckIntegrity(); err != nil {
		return &BlockVerification{Valid: false, Block: b, Details: err.Error()}, nil
	}
	if b.Index == 0 {
		if b.PreviousHash != GenesisPreviousHash {
			return &BlockVerification{Valid: false, Block: b, Details: "genesis block has a predecessor"}, nil
		}
		return &BlockVerification{Valid: true, Block: b, Details: "genesis block"}, nil
	}
	prev, err := l.store.FindByIndex(ctx, b.Index-1)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &BlockVerification{Valid: false, Block: b, Details: "predecessor is missing"}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up predecessor")
	}
	if prev.Hash != b.PreviousHash {
		return &BlockVerification{Valid: false, Block: b, Details: "previous hash does not match predecessor"}, nil
	}
	return &BlockVerification{Valid: true, Block: b, Details: "hash and link verified"}, nil
}

// Receipt returns the block recorded for voterID.
func (l *Ledger) Receipt(ctx context.Context, voterID string) (*Block, error) {
	b, err := l.store.FindByVoterReference(ctx, l.VoterReference(voterID))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no vote recorded for this voter")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up receipt")
	}
	return b, nil
}

// CandidateTally is one candidate's count.
type CandidateTally struct {
	CandidateID string `json:"candidate_id"`
	Votes       int    `json:"votes"`
}

// Results aggregates the chain. Genesis is excluded.
type Results struct {
	TotalVotes  int                         `json:"total_votes"`
	ByCandidate []CandidateTally            `json:"by_candidate"`
	ByDistrict  map[string][]CandidateTally `json:"by_district"`
	Winners     []string                    `json:"winners"`
}

// Tally counts votes. It refuses to count a chain that fails validation.
func (l *Ledger) Tally(ctx context.Context) (*Results, error) {
	blocks, err := l.Chain(ctx)
	if err != nil {
		return nil, err
	}
	if v := walk(blocks); !v.Valid {
		l.metrics.ObserveValidate(time.Now(), v.Length, false)
		l.alert(ctx, v)
		return nil, dErrors.New(dErrors.CodeChainIntegrityViolation, "ledger failed integrity validation")
	}
	return tally(blocks), nil
}

func tally(blocks []Block) *Results {
	total := map[string]int{}
	district := map[string]map[string]int{}
	res := &Results{ByDistrict: map[string][]CandidateTally{}}
	for _, b := range blocks {
		if b.Index == 0 {
			continue
		}
		res.TotalVotes++
		total[b.CandidateID]++
		if district[b.DistrictID] == nil {
			district[b.DistrictID] = map[string]int{}
		}
		district[b.DistrictID][b.CandidateID]++
	}
	res.ByCandidate = sortedTally(total)
	for d, counts := range district {
		res.ByDistrict[d] = sortedTally(counts)
	}
	if len(res.ByCandidate) > 0 {
		top := res.ByCandidate[0].Votes
		for _, c := range res.ByCandidate {
			if c.Votes != top {
				break
			}
			res.Winners = append(res.Winners, c.CandidateID)
		}
	}
	return res
}

// sortedTally orders by votes descending, then candidate id.
func sortedTally(counts map[string]int) []CandidateTally {
	out := make([]CandidateTally, 0, len(counts))
	for id, n := range counts {
		out = append(out, CandidateTally{CandidateID: id, Votes: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Votes != out[j].Votes {
			return out[i].Votes > out[j].Votes
		}
		return out[i].CandidateID < out[j].CandidateID
	})
	return out
}
