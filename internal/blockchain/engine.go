package blockchain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Default chain parameters.
const (
	DefaultDifficulty          = 4
	DefaultGenesisProof        = int64(100)
	DefaultGenesisPreviousHash = "1"
)

// ErrBlockNotFound is returned by Block for an index outside the chain.
var ErrBlockNotFound = errors.New("block not found")

// Config holds the tunable chain parameters. Zero fields take the defaults,
// so a genesis proof of 0 cannot be set here; use WithGenesisProof for that.
// A Difficulty below 1 is raised to 1.
type Config struct {
	Difficulty          int
	GenesisProof        int64
	GenesisPreviousHash string
}

// DefaultConfig returns the default chain parameters.
func DefaultConfig() Config {
	return Config{
		Difficulty:          DefaultDifficulty,
		GenesisProof:        DefaultGenesisProof,
		GenesisPreviousHash: DefaultGenesisPreviousHash,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the chain parameters.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithObserver registers an observer before the genesis block is sealed.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// WithGenesisProof sets the genesis proof explicitly, zero included. It takes
// precedence over Config.GenesisProof regardless of option order.
func WithGenesisProof(proof int64) Option {
	return func(e *Engine) { e.genesisProof = &proof }
}

// WithClock overrides the time source used for entry and block timestamps.
// Hashing accepts any time, but blocks are only served as JSON when their
// timestamps fall within years 0 to 9999.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine is an in-memory, thread-safe ledger. It owns the sealed blocks and
// the pending entry buffer; all accessors return copies.
type Engine struct {
	mu      sync.RWMutex
	blocks  []Block
	pending []LogEntry
	root    string // hash of the tip, recorded at seal time

	cfg          Config
	genesisProof *int64
	pow          *ProofOfWork
	now          func() time.Time

	obsMu     sync.RWMutex
	observers []Observer
}

// New creates an Engine and seals its genesis block.
func New(opts ...Option) *Engine {
	e := &Engine{
		cfg: DefaultConfig(),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.Difficulty == 0 {
		e.cfg.Difficulty = DefaultDifficulty
	}
	if e.genesisProof != nil {
		e.cfg.GenesisProof = *e.genesisProof
	} else if e.cfg.GenesisProof == 0 {
		e.cfg.GenesisProof = DefaultGenesisProof
	}
	if e.cfg.GenesisPreviousHash == "" {
		e.cfg.GenesisPreviousHash = DefaultGenesisPreviousHash
	}
	e.pow = NewProofOfWork(e.cfg.Difficulty)
	e.cfg.Difficulty = e.pow.Difficulty()
	e.pending = []LogEntry{}

	genesis := e.sealLocked(e.cfg.GenesisProof, e.cfg.GenesisPreviousHash)
	e.notify(Event{Type: EventBlockSealed, Time: genesis.Timestamp, Height: 1, Block: &genesis})
	return e
}

// Config returns the effective chain parameters.
func (e *Engine) Config() Config { return e.cfg }

// ProofOfWork returns the engine's proof-of-work rules.
func (e *Engine) ProofOfWork() *ProofOfWork { return e.pow }

// Subscribe registers an observer for subsequent events.
func (e *Engine) Subscribe(o Observer) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observers = append(e.observers, o)
}

// AppendEntry adds an entry to the pending buffer and returns the index of
// the block that the next seal will create. Invalid UTF-8 in user or text is
// replaced with U+FFFD, so the stored entry is exactly what JSON clients see.
func (e *Engine) AppendEntry(user, text string) int {
	user = strings.ToValidUTF8(user, string(utf8.RuneError))
	text = strings.ToValidUTF8(text, string(utf8.RuneError))

	e.mu.Lock()
	entry := LogEntry{User: user, Text: text, Timestamp: e.now()}
	e.pending = append(e.pending, entry)
	position := len(e.blocks) + 1
	ev := Event{
		Type:     EventEntryAppended,
		Time:     entry.Timestamp,
		Height:   len(e.blocks),
		Pending:  len(e.pending),
		Entry:    &entry,
		Position: position,
	}
	e.mu.Unlock()

	e.notify(ev)
	return position
}

// SealBlock mints a block holding every pending entry, linked to the current
// tip. The proof is stored as given; it is not checked against the tip.
func (e *Engine) SealBlock(proof int64) Block {
	e.mu.Lock()
	b := e.sealLocked(proof, e.root)
	height := len(e.blocks)
	e.mu.Unlock()

	e.notify(Event{Type: EventBlockSealed, Time: b.Timestamp, Height: height, Block: &b})
	return b
}

// sealLocked appends a new block and clears the pending buffer. e.mu must be
// held for writing.
func (e *Engine) sealLocked(proof int64, previousHash string) Block {
	b := Block{
		Index:        len(e.blocks) + 1,
		Timestamp:    e.now(),
		Entries:      e.pending,
		Proof:        proof,
		PreviousHash: previousHash,
	}
	e.blocks = append(e.blocks, b)
	e.root = HashBlock(b)
	e.pending = []LogEntry{}
	return b.clone()
}

// FindProof searches for the smallest proof valid against previous. See
// ProofOfWork.FindProof for cancellation semantics.
func (e *Engine) FindProof(ctx context.Context, previous int64) (int64, error) {
	start := time.Now()
	proof, attempts, err := e.pow.search(ctx, previous)
	if err != nil {
		return 0, err
	}

	e.mu.RLock()
	height, pending := len(e.blocks), len(e.pending)
	e.mu.RUnlock()

	e.notify(Event{
		Type:          EventProofFound,
		Time:          e.now(),
		Height:        height,
		Pending:       pending,
		PreviousProof: previous,
		Proof:         proof,
		Attempts:      attempts,
		Elapsed:       time.Since(start),
	})
	return proof, nil
}

// Mine finds a proof for the current tip without holding the lock and seals a
// block with it. If another block was sealed during the search, it searches
// again against the new tip. Cancelling ctx leaves the chain untouched.
func (e *Engine) Mine(ctx context.Context) (Block, error) {
	for {
		tip := e.LastBlock()
		proof, err := e.FindProof(ctx, tip.Proof)
		if err != nil {
			return Block{}, fmt.Errorf("mine block %d: %w", tip.Index+1, err)
		}

		e.mu.Lock()
		if e.blocks[len(e.blocks)-1].Index != tip.Index {
			e.mu.Unlock()
			continue
		}
		b := e.sealLocked(proof, e.root)
		height := len(e.blocks)
		e.mu.Unlock()

		e.notify(Event{Type: EventBlockSealed, Time: b.Timestamp, Height: height, Block: &b})
		return b, nil
	}
}

// Validate re-derives hash links, proofs and the recorded root over the whole
// chain. It returns nil or a *ValidationError naming the first bad block.
func (e *Engine) Validate() error {
	e.mu.RLock()
	err := ValidateBlocks(e.blocks, e.pow, e.root)
	height, pending := len(e.blocks), len(e.pending)
	e.mu.RUnlock()

	e.notify(Event{Type: EventChainValidated, Time: e.now(), Height: height, Pending: pending, Err: err})
	return err
}

// IsValid reports whether Validate returns nil.
func (e *Engine) IsValid() bool {
	return e.Validate() == nil
}

// LastBlock returns the tip of the chain.
func (e *Engine) LastBlock() Block {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.blocks[len(e.blocks)-1].clone()
}

// Block returns the block at the given 1-based index.
func (e *Engine) Block(index int) (Block, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if index < 1 || index > len(e.blocks) {
		return Block{}, fmt.Errorf("block %d: %w", index, ErrBlockNotFound)
	}
	return e.blocks[index-1].clone(), nil
}

// Blocks returns a copy of the whole chain in index order.
func (e *Engine) Blocks() []Block {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Block, len(e.blocks))
	for i, b := range e.blocks {
		out[i] = b.clone()
	}
	return out
}

// Pending returns a copy of the entries waiting for the next seal.
func (e *Engine) Pending() []LogEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]LogEntry, len(e.pending))
	copy(out, e.pending)
	return out
}

// Len returns the number of sealed blocks, genesis included.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.blocks)
}

// Root returns the hash of the tip recorded when it was sealed.
func (e *Engine) Root() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.root
}

func (e *Engine) notify(ev Event) {
	e.obsMu.RLock()
	observers := make([]Observer, len(e.observers))
	copy(observers, e.observers)
	e.obsMu.RUnlock()

	for _, o := range observers {
		o.Observe(ev)
	}
}
