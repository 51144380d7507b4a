package blockchain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/gowebpki/jcs"
)

// LogEntry is a single user-submitted record.
type LogEntry struct {
	User      string    `json:"user"`
	Text      string    `json:"log_entry"`
	Timestamp time.Time `json:"timestamp"`
}

// Block is a sealed unit of the chain.
type Block struct {
	Index        int        `json:"index"`
	Timestamp    time.Time  `json:"timestamp"`
	Entries      []LogEntry `json:"entries"`
	Proof        int64      `json:"proof"`
	PreviousHash string     `json:"previous_hash"`
}

// clone returns a deep copy of b. Entries is never nil in the copy.
func (b Block) clone() Block {
	c := b
	c.Entries = make([]LogEntry, len(b.Entries))
	copy(c.Entries, b.Entries)
	return c
}

// canonicalEntry and canonicalBlock are the hashed view of a block. Integers
// are decimal strings because JCS writes numbers as IEEE-754 doubles, which
// would merge proofs above 2^53. Timestamps are pre-formatted so hashing never
// depends on the JSON time encoder.
type canonicalEntry struct {
	User      any    `json:"user"`
	Text      any    `json:"log_entry"`
	Timestamp string `json:"timestamp"`
}

type canonicalBlock struct {
	Index        string           `json:"index"`
	Timestamp    string           `json:"timestamp"`
	Entries      []canonicalEntry `json:"entries"`
	Proof        string           `json:"proof"`
	PreviousHash any              `json:"previous_hash"`
}

// invalidUTF8 carries a string that is not valid UTF-8 as hex. encoding/json
// would otherwise replace each bad byte with U+FFFD and merge distinct values.
type invalidUTF8 struct {
	Hex string `json:"invalid_utf8_hex"`
}

func canonicalString(s string) any {
	if utf8.ValidString(s) {
		return s
	}
	return invalidUTF8{Hex: hex.EncodeToString([]byte(s))}
}

func canonicalTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// CanonicalBytes returns the RFC 8785 canonical JSON encoding of the hashed
// view of b. Object keys are sorted; index and proof are decimal strings;
// strings that are not valid UTF-8 are encoded as {"invalid_utf8_hex": ...}.
func CanonicalBytes(b Block) ([]byte, error) {
	view := canonicalBlock{
		Index:        strconv.Itoa(b.Index),
		Timestamp:    canonicalTime(b.Timestamp),
		Entries:      make([]canonicalEntry, len(b.Entries)),
		Proof:        strconv.FormatInt(b.Proof, 10),
		PreviousHash: canonicalString(b.PreviousHash),
	}
	for i, e := range b.Entries {
		view.Entries[i] = canonicalEntry{
			User:      canonicalString(e.User),
			Text:      canonicalString(e.Text),
			Timestamp: canonicalTime(e.Timestamp),
		}
	}

	raw, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("marshal block %d: %w", b.Index, err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize block %d: %w", b.Index, err)
	}
	return canonical, nil
}

// HashBlock returns the hex-encoded SHA-256 digest of the canonical encoding
// of b.
func HashBlock(b Block) string {
	data, err := CanonicalBytes(b)
	if err != nil {
		// The view holds only strings and is always valid UTF-8 JSON.
		panic(err)
	}
	return sha256Sum(data)
}

// sha256Sum returns the hex-encoded SHA-256 digest of data.
func sha256Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
