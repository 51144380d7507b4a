package blockchain

import (
	"errors"
	"fmt"
)

var (
	// ErrHashLinkage matches a block whose previous_hash differs from the
	// recomputed hash of its predecessor.
	ErrHashLinkage = errors.New("previous hash mismatch")

	// ErrProofOfWork matches a block whose proof fails the proof-of-work
	// predicate against its predecessor's proof.
	ErrProofOfWork = errors.New("invalid proof of work")

	// ErrRootMismatch matches a chain whose tip no longer hashes to the root
	// recorded when it was sealed.
	ErrRootMismatch = errors.New("tip hash does not match recorded root")
)

// Reason names the check that failed during validation.
type Reason string

const (
	ReasonHashLinkage  Reason = "hash_linkage"
	ReasonProofOfWork  Reason = "proof_of_work"
	ReasonRootMismatch Reason = "root_mismatch"
)

// ValidationError reports the first block that failed validation. Index is
// the block's 1-based position in the chain.
type ValidationError struct {
	Index  int
	Reason Reason
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("block %d invalid: %v", e.Index, e.Unwrap())
}

// Unwrap returns the sentinel error matching e.Reason.
func (e *ValidationError) Unwrap() error {
	switch e.Reason {
	case ReasonHashLinkage:
		return ErrHashLinkage
	case ReasonProofOfWork:
		return ErrProofOfWork
	default:
		return ErrRootMismatch
	}
}

// AsValidationError extracts a *ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// ValidateBlocks walks blocks from the second one onwards and checks hash
// linkage and proof of work against each predecessor. The first block is
// trusted. When root is non-empty the last block must also hash to root.
// It returns nil or a *ValidationError for the first failing block.
func ValidateBlocks(blocks []Block, pow *ProofOfWork, root string) error {
	for i := 1; i < len(blocks); i++ {
		prev, curr := blocks[i-1], blocks[i]
		if curr.PreviousHash != HashBlock(prev) {
			return &ValidationError{Index: i + 1, Reason: ReasonHashLinkage}
		}
		if !pow.IsValidProof(prev.Proof, curr.Proof) {
			return &ValidationError{Index: i + 1, Reason: ReasonProofOfWork}
		}
	}
	if root != "" && len(blocks) > 0 {
		if HashBlock(blocks[len(blocks)-1]) != root {
			return &ValidationError{Index: len(blocks), Reason: ReasonRootMismatch}
		}
	}
	return nil
}
