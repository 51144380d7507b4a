// Package blockchain implements a proof-of-work sealed, hash-chained ledger of
// user-submitted log entries.
//
// Entries are buffered as pending until a block is sealed. Every sealed block
// carries the canonical SHA-256 hash of its predecessor and a proof that
// satisfies the proof-of-work predicate against the predecessor's proof, so
// any later modification of a block is detectable through Validate.
//
// The chain always starts with a genesis block (index 1, proof GenesisProof,
// previous hash GenesisPreviousHash). The Engine performs no logging itself;
// register an Observer (see NewLogObserver) to react to state changes.
package blockchain
