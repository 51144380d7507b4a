package blockchain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrProofSearchCancelled is returned when a proof search is abandoned because
// its context was cancelled or its deadline passed.
var ErrProofSearchCancelled = errors.New("proof search cancelled")

// cancelCheckInterval is how many candidates FindProof tries between context
// checks.
const cancelCheckInterval = 4096

// ProofOfWork checks and searches proofs for a fixed difficulty.
type ProofOfWork struct {
	difficulty int
	prefix     string
}

// NewProofOfWork returns a ProofOfWork requiring difficulty leading zero hex
// digits. A difficulty below 1 is treated as 1.
func NewProofOfWork(difficulty int) *ProofOfWork {
	if difficulty < 1 {
		difficulty = 1
	}
	return &ProofOfWork{
		difficulty: difficulty,
		prefix:     strings.Repeat("0", difficulty),
	}
}

// Difficulty returns the number of leading zero hex digits required.
func (p *ProofOfWork) Difficulty() int { return p.difficulty }

// IsValidProof reports whether sha256("<previous><candidate>") starts with the
// required run of '0' hex digits.
func (p *ProofOfWork) IsValidProof(previous, candidate int64) bool {
	return strings.HasPrefix(proofDigest(previous, candidate), p.prefix)
}

// FindProof returns the smallest non-negative candidate that is valid against
// previous. The search has no bound of its own; it stops early only when ctx
// is done, in which case the error wraps both ErrProofSearchCancelled and
// ctx.Err().
func (p *ProofOfWork) FindProof(ctx context.Context, previous int64) (int64, error) {
	proof, _, err := p.search(ctx, previous)
	return proof, err
}

// search is FindProof that also reports how many candidates were tried.
func (p *ProofOfWork) search(ctx context.Context, previous int64) (proof, attempts int64, err error) {
	for candidate := int64(0); ; candidate++ {
		if candidate%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, candidate, fmt.Errorf("%w after %d candidates: %w", ErrProofSearchCancelled, candidate, err)
			}
		}
		if p.IsValidProof(previous, candidate) {
			return candidate, candidate + 1, nil
		}
	}
}

// proofDigest hashes the decimal concatenation of previous and candidate.
func proofDigest(previous, candidate int64) string {
	buf := make([]byte, 0, 40)
	buf = strconv.AppendInt(buf, previous, 10)
	buf = strconv.AppendInt(buf, candidate, 10)
	h := sha256.Sum256(buf)
	return hex.EncodeToString(h[:])
}
