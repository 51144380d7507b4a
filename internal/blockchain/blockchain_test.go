package blockchain_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmerrifield20/blocklog/internal/blockchain"
)

var ctx = context.Background()

// fastEngine returns an engine with a low difficulty so mining is quick.
func fastEngine(t *testing.T, opts ...blockchain.Option) *blockchain.Engine {
	t.Helper()
	opts = append([]blockchain.Option{blockchain.WithConfig(blockchain.Config{Difficulty: 2})}, opts...)
	return blockchain.New(opts...)
}

func TestNew_genesisBlock(t *testing.T) {
	e := blockchain.New()

	if n := e.Len(); n != 1 {
		t.Fatalf("expected 1 genesis block, got %d", n)
	}

	genesis := e.LastBlock()
	if genesis.Index != 1 {
		t.Errorf("genesis index: got %d, want 1", genesis.Index)
	}
	if genesis.PreviousHash != blockchain.DefaultGenesisPreviousHash {
		t.Errorf("genesis previous hash: got %q, want %q", genesis.PreviousHash, blockchain.DefaultGenesisPreviousHash)
	}
	if genesis.Proof != blockchain.DefaultGenesisProof {
		t.Errorf("genesis proof: got %d, want %d", genesis.Proof, blockchain.DefaultGenesisProof)
	}
	if genesis.Entries == nil || len(genesis.Entries) != 0 {
		t.Errorf("genesis entries: got %#v, want empty slice", genesis.Entries)
	}
	if len(e.Pending()) != 0 {
		t.Errorf("expected empty pending buffer, got %d entries", len(e.Pending()))
	}
}

func TestNew_zeroConfigUsesDefaults(t *testing.T) {
	e := blockchain.New(blockchain.WithConfig(blockchain.Config{}))

	cfg := e.Config()
	if cfg != blockchain.DefaultConfig() {
		t.Errorf("Config(): got %+v, want %+v", cfg, blockchain.DefaultConfig())
	}
	if e.ProofOfWork().Difficulty() != blockchain.DefaultDifficulty {
		t.Errorf("difficulty: got %d, want %d", e.ProofOfWork().Difficulty(), blockchain.DefaultDifficulty)
	}
}

func TestNew_customGenesis(t *testing.T) {
	e := blockchain.New(blockchain.WithConfig(blockchain.Config{
		Difficulty:          1,
		GenesisProof:        7,
		GenesisPreviousHash: "0",
	}))

	genesis := e.LastBlock()
	if genesis.Proof != 7 || genesis.PreviousHash != "0" {
		t.Errorf("genesis: got proof=%d previous_hash=%q", genesis.Proof, genesis.PreviousHash)
	}
}

func TestNew_zeroGenesisProof(t *testing.T) {
	for name, opts := range map[string][]blockchain.Option{
		"option first": {blockchain.WithGenesisProof(0), blockchain.WithConfig(blockchain.Config{Difficulty: 2, GenesisProof: 9})},
		"option last":  {blockchain.WithConfig(blockchain.Config{Difficulty: 2, GenesisProof: 9}), blockchain.WithGenesisProof(0)},
	} {
		t.Run(name, func(t *testing.T) {
			e := blockchain.New(opts...)
			if p := e.LastBlock().Proof; p != 0 {
				t.Fatalf("genesis proof: got %d, want 0", p)
			}
			if p := e.Config().GenesisProof; p != 0 {
				t.Errorf("Config().GenesisProof: got %d, want 0", p)
			}

			e.AppendEntry("alice", "after zero genesis")
			b, err := e.Mine(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if b.Proof != 563 {
				t.Errorf("first proof: got %d, want 563", b.Proof)
			}
			if err := e.Validate(); err != nil {
				t.Errorf("Validate(): %v", err)
			}
		})
	}
}

func TestNew_clampsDifficulty(t *testing.T) {
	for _, d := range []int{-3, 0, 1} {
		e := blockchain.New(blockchain.WithConfig(blockchain.Config{Difficulty: d}))
		want := e.ProofOfWork().Difficulty()
		if got := e.Config().Difficulty; got != want {
			t.Errorf("Difficulty %d: Config() reports %d, proof of work uses %d", d, got, want)
		}
	}
	e := blockchain.New(blockchain.WithConfig(blockchain.Config{Difficulty: -3}))
	if got := e.Config().Difficulty; got != 1 {
		t.Errorf("Config().Difficulty: got %d, want 1", got)
	}
}

func TestAppendEntry_replacesInvalidUTF8(t *testing.T) {
	e := fastEngine(t)
	e.AppendEntry("bob\xfe", "\xff")

	got := e.Pending()[0]
	if got.User != "bob\uFFFD" || got.Text != "\uFFFD" {
		t.Errorf("stored entry: user=%q text=%q", got.User, got.Text)
	}
}

func TestAppendEntry_returnsNextIndex(t *testing.T) {
	e := fastEngine(t)

	if pos := e.AppendEntry("alice", "first"); pos != 2 {
		t.Errorf("first append: got position %d, want 2", pos)
	}
	if pos := e.AppendEntry("", ""); pos != 2 {
		t.Errorf("empty strings: got position %d, want 2", pos)
	}

	if _, err := e.Mine(ctx); err != nil {
		t.Fatal(err)
	}
	if pos := e.AppendEntry("bob", "after seal"); pos != 3 {
		t.Errorf("after seal: got position %d, want 3", pos)
	}
}

func TestSealBlock_movesPendingIntoBlock(t *testing.T) {
	e := fastEngine(t)
	e.AppendEntry("alice", "one")
	e.AppendEntry("bob", "two")
	e.AppendEntry("alice", "three")

	b := e.SealBlock(42)

	want := []struct{ user, text string }{{"alice", "one"}, {"bob", "two"}, {"alice", "three"}}
	if len(b.Entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(b.Entries))
	}
	for i, w := range want {
		if b.Entries[i].User != w.user || b.Entries[i].Text != w.text {
			t.Errorf("entry %d: got (%q, %q), want (%q, %q)", i, b.Entries[i].User, b.Entries[i].Text, w.user, w.text)
		}
	}
	if len(e.Pending()) != 0 {
		t.Errorf("pending buffer not cleared: %d entries", len(e.Pending()))
	}
	if e.Len() != 2 {
		t.Errorf("expected chain length 2, got %d", e.Len())
	}
}

func TestSealBlock_linksToPrevious(t *testing.T) {
	e := fastEngine(t)
	genesis := e.LastBlock()

	b := e.SealBlock(1)

	if b.Index != 2 {
		t.Errorf("index: got %d, want 2", b.Index)
	}
	if b.PreviousHash != blockchain.HashBlock(genesis) {
		t.Errorf("previous hash: got %q, want hash of genesis", b.PreviousHash)
	}
	if b.Entries == nil {
		t.Error("sealing with no pending entries should produce an empty, non-nil slice")
	}
}

func TestSealBlock_trustsProof(t *testing.T) {
	e := fastEngine(t)
	genesis := e.LastBlock()

	bad := int64(0)
	for e.ProofOfWork().IsValidProof(genesis.Proof, bad) {
		bad++
	}
	b := e.SealBlock(bad)
	if b.Proof != bad {
		t.Fatalf("sealed proof: got %d, want %d", b.Proof, bad)
	}

	err := e.Validate()
	if !errors.Is(err, blockchain.ErrProofOfWork) {
		t.Fatalf("Validate(): got %v, want ErrProofOfWork", err)
	}
	verr, ok := blockchain.AsValidationError(err)
	if !ok || verr.Index != 2 || verr.Reason != blockchain.ReasonProofOfWork {
		t.Errorf("validation error: got %+v", verr)
	}
}

func TestBlocks_returnsCopies(t *testing.T) {
	e := fastEngine(t)
	e.AppendEntry("alice", "original")
	if _, err := e.Mine(ctx); err != nil {
		t.Fatal(err)
	}

	blocks := e.Blocks()
	blocks[1].Entries[0].Text = "forged"
	blocks[1].Proof++

	b, err := e.Block(2)
	if err != nil {
		t.Fatal(err)
	}
	if b.Entries[0].Text != "original" {
		t.Errorf("engine state was mutated through Blocks(): %q", b.Entries[0].Text)
	}
	if err := e.Validate(); err != nil {
		t.Errorf("Validate() after mutating a copy: %v", err)
	}
}

func TestBlock_outOfRange(t *testing.T) {
	e := fastEngine(t)
	for _, idx := range []int{0, -1, 2, 999} {
		if _, err := e.Block(idx); !errors.Is(err, blockchain.ErrBlockNotFound) {
			t.Errorf("Block(%d): got %v, want ErrBlockNotFound", idx, err)
		}
	}
}

func TestMine_buildsValidChain(t *testing.T) {
	e := fastEngine(t)
	for i := 0; i < 5; i++ {
		e.AppendEntry("alice", "entry")
		if _, err := e.Mine(ctx); err != nil {
			t.Fatal(err)
		}
	}

	if e.Len() != 6 {
		t.Errorf("expected 6 blocks, got %d", e.Len())
	}
	if err := e.Validate(); err != nil {
		t.Errorf("Validate() failed on mined chain: %v", err)
	}
	if !e.IsValid() {
		t.Error("IsValid() = false on mined chain")
	}
}

func TestMine_cancelledLeavesChainUntouched(t *testing.T) {
	e := blockchain.New(blockchain.WithConfig(blockchain.Config{Difficulty: 64}))
	e.AppendEntry("alice", "never sealed")

	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	_, err := e.Mine(cctx)
	if !errors.Is(err, blockchain.ErrProofSearchCancelled) {
		t.Fatalf("Mine(): got %v, want ErrProofSearchCancelled", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Mine(): error should wrap context.DeadlineExceeded, got %v", err)
	}
	if e.Len() != 1 {
		t.Errorf("chain grew after cancelled mine: %d", e.Len())
	}
	if len(e.Pending()) != 1 {
		t.Errorf("pending entry lost after cancelled mine: %d", len(e.Pending()))
	}
}

func TestRoot_tracksTip(t *testing.T) {
	e := fastEngine(t)
	if e.Root() != blockchain.HashBlock(e.LastBlock()) {
		t.Error("Root() on genesis-only chain does not match genesis hash")
	}

	b := e.SealBlock(0)
	if e.Root() != blockchain.HashBlock(b) {
		t.Errorf("Root(): got %q, want hash of sealed block", e.Root())
	}
}

// The walkthrough below uses the default difficulty of four hex zeros.
func TestEngine_aliceScenario(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	e := blockchain.New(blockchain.WithClock(func() time.Time { return fixed }))
	genesis := e.LastBlock()

	if pos := e.AppendEntry("alice", "hello"); pos != 2 {
		t.Fatalf("AppendEntry: got %d, want 2", pos)
	}

	p1, err := e.FindProof(ctx, genesis.Proof)
	if err != nil {
		t.Fatal(err)
	}
	if p1 != 35293 {
		t.Errorf("FindProof(100): got %d, want 35293", p1)
	}

	b := e.SealBlock(p1)
	if b.Index != 2 {
		t.Errorf("sealed index: got %d, want 2", b.Index)
	}
	if len(b.Entries) != 1 || b.Entries[0].User != "alice" || b.Entries[0].Text != "hello" {
		t.Errorf("sealed entries: got %+v", b.Entries)
	}
	if b.PreviousHash != blockchain.HashBlock(genesis) {
		t.Error("sealed block does not link to genesis")
	}
	if err := e.Validate(); err != nil {
		t.Fatalf("Validate(): %v", err)
	}

	// A chain sealed with p1+1 instead of p1 must fail validation at block 2.
	forged := blockchain.New(blockchain.WithClock(func() time.Time { return fixed }))
	forged.AppendEntry("alice", "hello")
	forged.SealBlock(p1 + 1)
	verr, ok := blockchain.AsValidationError(forged.Validate())
	if !ok {
		t.Fatal("expected a ValidationError for proof p1+1")
	}
	if verr.Index != 2 || verr.Reason != blockchain.ReasonProofOfWork {
		t.Errorf("got %+v, want index 2 proof_of_work", verr)
	}
}

func TestObserver_receivesEvents(t *testing.T) {
	var got []blockchain.EventType
	rec := blockchain.ObserverFunc(func(ev blockchain.Event) {
		got = append(got, ev.Type)
	})
	e := fastEngine(t, blockchain.WithObserver(rec))

	e.AppendEntry("alice", "hello")
	if _, err := e.Mine(ctx); err != nil {
		t.Fatal(err)
	}
	_ = e.Validate()

	want := []blockchain.EventType{
		blockchain.EventBlockSealed, // genesis
		blockchain.EventEntryAppended,
		blockchain.EventProofFound,
		blockchain.EventBlockSealed,
		blockchain.EventChainValidated,
	}
	if len(got) != len(want) {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestObserver_mayCallBackIntoEngine(t *testing.T) {
	e := fastEngine(t)
	var heights []int
	e.Subscribe(blockchain.ObserverFunc(func(ev blockchain.Event) {
		if ev.Type == blockchain.EventBlockSealed {
			heights = append(heights, e.Len())
		}
	}))

	e.SealBlock(1)
	e.SealBlock(2)

	if len(heights) != 2 || heights[0] != 2 || heights[1] != 3 {
		t.Errorf("observed heights: got %v, want [2 3]", heights)
	}
}
