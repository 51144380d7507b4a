package blockchain

import "context"

// Ledger is the view of the chain used by the HTTP API and the background
// miner. *Engine implements it.
type Ledger interface {
	// AppendEntry buffers an entry and returns the index of the next block.
	AppendEntry(user, text string) int

	// SealBlock seals the pending entries with proof, unchecked.
	SealBlock(proof int64) Block

	// Mine searches for a proof for the tip and seals a block with it.
	Mine(ctx context.Context) (Block, error)

	// Block returns the block at the given 1-based index.
	Block(index int) (Block, error)

	// Blocks returns the whole chain.
	Blocks() []Block

	// Pending returns the entries not yet sealed.
	Pending() []LogEntry

	// Len returns the number of sealed blocks, genesis included.
	Len() int

	// Root returns the hash of the chain tip.
	Root() string

	// Validate walks the entire chain. Returns nil if the chain is intact.
	Validate() error
}

var _ Ledger = (*Engine)(nil)
