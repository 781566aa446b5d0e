// Package chain implements the genesis-anchored SHA-256 hash chain that
// backs the append-only drift log.
package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/greywatch/driftwatch/pkg/canonjson"
)

// GenesisHash is the fixed anchor: SHA-256("genesis"). previous_hash of
// entry 0 always equals this constant.
var GenesisHash = hashBytes([]byte("genesis"))

// Entry is a single hash-chained record.
type Entry struct {
	EntryHash    string `json:"entry_hash"`
	PreviousHash string `json:"previous_hash"`
	Timestamp    string `json:"timestamp"`
	Data         any    `json:"data"`
}

// Chain is the in-memory hash-chain head tracker. It holds no entry
// storage of its own — pkg/auditlog owns the durable slice and line file;
// Chain only computes and verifies linkage.
type Chain struct {
	mu   sync.RWMutex
	head string
	len  int
}

// New returns a chain positioned at genesis.
func New() *Chain {
	return &Chain{head: GenesisHash}
}

// Head returns the current chain-head hash.
func (c *Chain) Head() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.head
}

// Len returns the number of entries appended through this Chain.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.len
}

// Compute derives entry_hash = SHA-256(previous_hash || canonical_json(data) || timestamp_text)
// without mutating chain state.
func Compute(previousHash string, data any, timestampText string) (string, error) {
	canon, err := canonjson.MarshalString(data)
	if err != nil {
		return "", fmt.Errorf("chain: canonicalize data: %w", err)
	}
	sum := sha256.Sum256([]byte(previousHash + canon + timestampText))
	return hex.EncodeToString(sum[:]), nil
}

// Append computes the next entry against the current head, advances the
// head, and returns the built Entry. Concurrent callers are serialized by
// the chain's own mutex, using a single mutex to guard the append path.
func (c *Chain) Append(data any, timestampText string) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, err := Compute(c.head, data, timestampText)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{EntryHash: h, PreviousHash: c.head, Timestamp: timestampText, Data: data}
	c.head = h
	c.len++
	return e, nil
}

// Reset repositions the chain at an explicit head/length, used when
// rebuilding from a durable log on open.
func (c *Chain) Reset(head string, length int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head = head
	c.len = length
}

// Verify walks entries in order from genesis, recomputing each hash. It
// returns ok=true if every entry's stored entry_hash matches the
// recomputation and previous_hash chains correctly; otherwise it returns
// the index of the first bad entry.
func Verify(entries []Entry) (ok bool, badIndex int) {
	prev := GenesisHash
	for i, e := range entries {
		if e.PreviousHash != prev {
			return false, i
		}
		want, err := Compute(e.PreviousHash, e.Data, e.Timestamp)
		if err != nil || want != e.EntryHash {
			return false, i
		}
		prev = e.EntryHash
	}
	return true, -1
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
