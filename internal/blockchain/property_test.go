package blockchain_test

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/jmerrifield20/blocklog/internal/blockchain"
)

// Property: FindProof(p) is valid for p and no smaller candidate is.
func TestFindProofMinimality(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	pow := blockchain.NewProofOfWork(2)
	properties.Property("first valid candidate is returned", prop.ForAll(
		func(previous int64) bool {
			proof, err := pow.FindProof(context.Background(), previous)
			if err != nil || !pow.IsValidProof(previous, proof) {
				return false
			}
			for c := int64(0); c < proof; c++ {
				if pow.IsValidProof(previous, c) {
					return false
				}
			}
			return true
		},
		gen.Int64Range(0, 1_000_000),
	))

	properties.TestingRun(t)
}

// Property: sealing returns exactly the appended entries, in order, and
// empties the pending buffer.
func TestAppendSealRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("sealed entries equal appended entries", prop.ForAll(
		func(users []string, texts []string) bool {
			e := blockchain.New(blockchain.WithConfig(blockchain.Config{Difficulty: 1}))
			n := len(users)
			if len(texts) < n {
				n = len(texts)
			}
			for i := 0; i < n; i++ {
				if e.AppendEntry(users[i], texts[i]) != 2 {
					return false
				}
			}

			b := e.SealBlock(0)
			if len(b.Entries) != n || len(e.Pending()) != 0 {
				return false
			}
			for i := 0; i < n; i++ {
				if b.Entries[i].User != users[i] || b.Entries[i].Text != texts[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AnyString()),
		gen.SliceOf(gen.AnyString()),
	))

	properties.TestingRun(t)
}

// Property: HashBlock is deterministic and changes with entry content.
func TestHashBlockDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("same block, same hash; edited text, different hash", prop.ForAll(
		func(user, text string, proof int64) bool {
			b := blockchain.Block{
				Index:        2,
				Timestamp:    fixedTime,
				Entries:      []blockchain.LogEntry{{User: user, Text: text, Timestamp: fixedTime}},
				Proof:        proof,
				PreviousHash: "1",
			}
			h1 := blockchain.HashBlock(b)
			h2 := blockchain.HashBlock(b)
			if h1 != h2 || len(h1) != 64 {
				return false
			}

			edited := b
			edited.Entries = []blockchain.LogEntry{{User: user, Text: text + "!", Timestamp: fixedTime}}
			return blockchain.HashBlock(edited) != h1
		},
		gen.AnyString(),
		gen.AnyString(),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

// Property: a chain built only through AppendEntry and Mine always validates.
func TestMinedChainValidates(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("mined chains are valid", prop.ForAll(
		func(blocks int, text string) bool {
			e := blockchain.New(blockchain.WithConfig(blockchain.Config{Difficulty: 2}))
			for i := 0; i < blocks; i++ {
				e.AppendEntry("prop", text)
				if _, err := e.Mine(context.Background()); err != nil {
					return false
				}
			}
			return e.Len() == blocks+1 && e.Validate() == nil
		},
		gen.IntRange(0, 5),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
