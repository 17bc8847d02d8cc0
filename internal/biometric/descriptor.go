// Package biometric holds the opaque face and fingerprint descriptors and
// the matching rules the registry and the vote path share.
//
// A descriptor is either a digest of a template (exact match only) or a
// fixed-length face embedding compared by Euclidean distance.
package biometric

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"

	dErrors "votechain/pkg/domain-errors"
)

// DefaultFaceThreshold is the embedding distance below which two faces match.
const DefaultFaceThreshold = 20.0

// MaxVectorLen bounds the accepted embedding dimension.
const MaxVectorLen = 1024

// Kind distinguishes descriptor representations.
type Kind string

const (
	KindHash   Kind = "hash"
	KindVector Kind = "vector"
)

// Descriptor is an opaque biometric token.
type Descriptor struct {
	Kind   Kind      `json:"kind"`
	Hash   string    `json:"hash,omitempty"`
	Vector []float64 `json:"vector,omitempty"`
}

// HashDescriptor digests a raw template.
func HashDescriptor(raw []byte) Descriptor {
	return Descriptor{Kind: KindHash, Hash: Digest(raw)}
}

// VectorDescriptor wraps a face embedding.
func VectorDescriptor(v []float64) Descriptor {
	out := make([]float64, len(v))
	copy(out, v)
	return Descriptor{Kind: KindVector, Vector: out}
}

// IsZero reports whether d carries no data.
func (d Descriptor) IsZero() bool {
	return d.Kind == "" && d.Hash == "" && len(d.Vector) == 0
}

// Validate rejects malformed descriptors.
func (d Descriptor) Validate() error {
	switch d.Kind {
	case KindHash:
		if len(d.Hash) != sha256.Size*2 {
			return dErrors.New(dErrors.CodeValidation, "hash descriptor must be a hex SHA-256 digest")
		}
		if _, err := hex.DecodeString(d.Hash); err != nil {
			return dErrors.New(dErrors.CodeValidation, "hash descriptor must be a hex SHA-256 digest")
		}
	case KindVector:
		if len(d.Vector) == 0 || len(d.Vector) > MaxVectorLen {
			return dErrors.New(dErrors.CodeValidation, "vector descriptor has invalid length")
		}
		for _, x := range d.Vector {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return dErrors.New(dErrors.CodeValidation, "vector descriptor contains non-finite values")
			}
		}
	default:
		return dErrors.New(dErrors.CodeValidation, "unknown descriptor kind")
	}
	return nil
}

// Digest returns the hex SHA-256 of a template after stripping any
// "data:<mime>;base64," prefix, so kiosks sending data URIs and raw
// payloads agree.
func Digest(raw []byte) string {
	sum := sha256.Sum256(stripDataURI(raw))
	return hex.EncodeToString(sum[:])
}

func stripDataURI(raw []byte) []byte {
	s := string(raw)
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i >= 0 {
			return raw[i+1:]
		}
	}
	return raw
}

// Distance returns the Euclidean distance between a and b. ok is false when
// the dimensions differ.
func Distance(a, b []float64) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), true
}
