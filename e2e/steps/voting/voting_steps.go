package voting

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"votechain/e2e/steps/common"
)

// TestContext extends the common context with per-voter signing keys.
type TestContext interface {
	common.TestContext
	GET(path string) error
	SetSigningKey(voterID string, key []byte)
	SigningKey(voterID string) []byte
}

// RegisterSteps registers enrolment, casting and receipt steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &votingSteps{tc: tc}

	ctx.Step(`^voter "([^"]*)" registers with face \[([^\]]*)\] and fingerprint "([^"]*)"$`, steps.register)
	ctx.Step(`^voter "([^"]*)" is enrolled with face \[([^\]]*)\] and fingerprint "([^"]*)"$`, steps.enrolled)
	ctx.Step(`^voter "([^"]*)" requests a challenge$`, steps.requestChallenge)
	ctx.Step(`^voter "([^"]*)" casts a vote for "([^"]*)" in district "([^"]*)" with face \[([^\]]*)\] and fingerprint "([^"]*)"$`, steps.castVote)
	ctx.Step(`^voter "([^"]*)" casts a vote for "([^"]*)" in district "([^"]*)" with face \[([^\]]*)\] and fingerprint "([^"]*)" and a forged signature$`, steps.castForged)
	ctx.Step(`^the receipt for voter "([^"]*)" should match the cast vote$`, steps.receiptMatches)
	ctx.Step(`^the block from the receipt should verify$`, steps.blockVerifies)
	ctx.Step(`^the ledger should be valid$`, steps.ledgerValid)
	ctx.Step(`^voter "([^"]*)" should be marked as voted$`, steps.markedVoted)
}

type votingSteps struct {
	tc TestContext
}

func parseVector(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("face vector %q: %w", s, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *votingSteps) register(ctx context.Context, voterID, face, fingerprint string) error {
	vec, err := parseVector(face)
	if err != nil {
		return err
	}
	return s.tc.POST("/registrations", map[string]any{
		"voter_id":    voterID,
		"face":        map[string]any{"vector": vec},
		"fingerprint": fingerprint,
	})
}

// enrolled registers the voter and provisions a fresh Ed25519 key for them.
func (s *votingSteps) enrolled(ctx context.Context, voterID, face, fingerprint string) error {
	if err := s.register(ctx, voterID, face, fingerprint); err != nil {
		return err
	}
	if s.tc.LastStatus() != http.StatusCreated {
		return fmt.Errorf("register %s: status %d: %s", voterID, s.tc.LastStatus(), s.tc.LastBody())
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	headers, err := common.OperatorBearer(s.tc, "ADM000001")
	if err != nil {
		return err
	}
	if err := s.tc.Do(http.MethodPut, "/voters/"+voterID+"/credentials", map[string]any{
		"id":   "e2e-" + voterID,
		"kind": "ed25519",
		"data": []byte(pub),
	}, headers); err != nil {
		return err
	}
	if s.tc.LastStatus() != http.StatusNoContent {
		return fmt.Errorf("provision %s: status %d: %s", voterID, s.tc.LastStatus(), s.tc.LastBody())
	}
	s.tc.SetSigningKey(voterID, priv)
	return nil
}

func (s *votingSteps) requestChallenge(ctx context.Context, voterID string) error {
	if err := s.tc.POST("/challenges", map[string]string{"voter_id": voterID}); err != nil {
		return err
	}
	if s.tc.LastStatus() != http.StatusCreated {
		return nil
	}
	v, err := s.tc.Field("challenge")
	if err != nil {
		return err
	}
	s.tc.Remember("challenge:"+voterID, fmt.Sprint(v))
	return nil
}

func (s *votingSteps) sign(voterID string) (string, error) {
	key := s.tc.SigningKey(voterID)
	if key == nil {
		return "", fmt.Errorf("voter %s has no signing key", voterID)
	}
	challenge := s.tc.Recall("challenge:" + voterID)
	if challenge == "" {
		return "", fmt.Errorf("voter %s has no outstanding challenge", voterID)
	}
	msg, err := base64.RawURLEncoding.DecodeString(challenge)
	if err != nil {
		return "", fmt.Errorf("decode challenge: %w", err)
	}
	sig := ed25519.Sign(ed25519.PrivateKey(key), msg)
	return base64.StdEncoding.EncodeToString(sig), nil
}

func (s *votingSteps) castVote(ctx context.Context, voterID, candidateID, districtID, face, fingerprint string) error {
	vec, err := parseVector(face)
	if err != nil {
		return err
	}
	proof, err := s.sign(voterID)
	if err != nil {
		return err
	}
	if err := s.tc.POST("/votes", map[string]any{
		"voter_id":        voterID,
		"district_id":     districtID,
		"candidate_id":    candidateID,
		"face":            map[string]any{"vector": vec},
		"fingerprint":     fingerprint,
		"challenge_proof": proof,
	}); err != nil {
		return err
	}
	if s.tc.LastStatus() == http.StatusCreated {
		v, err := s.tc.Field("block_hash")
		if err != nil {
			return err
		}
		s.tc.Remember("block:"+voterID, fmt.Sprint(v))
		s.tc.Remember("last_block", fmt.Sprint(v))
	}
	return nil
}

func (s *votingSteps) castForged(ctx context.Context, voterID, candidateID, districtID, face, fingerprint string) error {
	vec, err := parseVector(face)
	if err != nil {
		return err
	}
	forged := make([]byte, ed25519.SignatureSize)
	return s.tc.POST("/votes", map[string]any{
		"voter_id":        voterID,
		"district_id":     districtID,
		"candidate_id":    candidateID,
		"face":            map[string]any{"vector": vec},
		"fingerprint":     fingerprint,
		"challenge_proof": base64.StdEncoding.EncodeToString(forged),
	})
}

func (s *votingSteps) receiptMatches(ctx context.Context, voterID string) error {
	if err := s.tc.GET("/voters/" + voterID + "/receipt"); err != nil {
		return err
	}
	if s.tc.LastStatus() != http.StatusUnauthorized {
		return fmt.Errorf("anonymous receipt lookup: status %d: %s", s.tc.LastStatus(), s.tc.LastBody())
	}

	headers, err := common.OperatorBearer(s.tc, "ADM000001")
	if err != nil {
		return err
	}
	if err := s.tc.Do(http.MethodGet, "/voters/"+voterID+"/receipt", nil, headers); err != nil {
		return err
	}
	if s.tc.LastStatus() != http.StatusOK {
		return fmt.Errorf("receipt: status %d: %s", s.tc.LastStatus(), s.tc.LastBody())
	}
	v, err := s.tc.Field("block_hash")
	if err != nil {
		return err
	}
	if want := s.tc.Recall("block:" + voterID); fmt.Sprint(v) != want {
		return fmt.Errorf("receipt block %v does not match cast block %s", v, want)
	}
	if _, err := s.tc.Field("candidate_id"); err == nil {
		return fmt.Errorf("receipt discloses the ballot choice: %s", s.tc.LastBody())
	}
	return nil
}

func (s *votingSteps) blockVerifies(ctx context.Context) error {
	hash := s.tc.Recall("last_block")
	if hash == "" {
		return fmt.Errorf("no block recorded in this scenario")
	}
	if err := s.tc.GET("/ledger/blocks/" + hash + "/verify"); err != nil {
		return err
	}
	v, err := s.tc.Field("valid")
	if err != nil {
		return err
	}
	if ok, _ := v.(bool); !ok {
		return fmt.Errorf("block %s did not verify: %s", hash, s.tc.LastBody())
	}
	return nil
}

func (s *votingSteps) ledgerValid(ctx context.Context) error {
	if err := s.tc.GET("/ledger/validate"); err != nil {
		return err
	}
	v, err := s.tc.Field("valid")
	if err != nil {
		return err
	}
	if ok, _ := v.(bool); !ok {
		return fmt.Errorf("ledger is not valid: %s", s.tc.LastBody())
	}
	return nil
}

func (s *votingSteps) markedVoted(ctx context.Context, voterID string) error {
	if err := s.tc.GET("/voters/" + voterID + "/status"); err != nil {
		return err
	}
	v, err := s.tc.Field("has_voted")
	if err != nil {
		return err
	}
	if ok, _ := v.(bool); !ok {
		return fmt.Errorf("voter %s not marked as voted: %s", voterID, s.tc.LastBody())
	}
	return nil
}
