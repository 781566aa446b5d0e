// Package auditlog implements the durable, append-only JSON-lines log.
// It wraps a hash chain (pkg/chain) with a file that is the source of
// truth, and an in-memory cache rebuilt on open.
package auditlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/greywatch/driftwatch/pkg/chain"
)

// ErrLoadError is returned by Append once the log has been marked
// load-error by a malformed line on open. Further appends are refused
// until an operator explicitly clears the condition via
// AcknowledgeQuarantine.
var ErrLoadError = errors.New("auditlog: log has unresolved integrity error; quarantined")

// toDicter lets any caller-supplied event render its own wire projection,
// mirroring drift.Event.ToDict.
type toDicter interface {
	ToDict() map[string]any
}

// Log is the append-only, hash-chained, JSON-lines-file-backed log.
type Log struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	chain     *chain.Chain
	entries   []chain.Entry
	loadError bool
	durable   bool
	clock     func() time.Time
	index     Index // optional secondary search index; may be nil
}

// Option configures Open.
type Option func(*Log)

// WithClock overrides the wall clock, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Log) { l.clock = clock }
}

// WithDurability enables fsync after every append.
func WithDurability(durable bool) Option {
	return func(l *Log) { l.durable = durable }
}

// WithIndex attaches an optional secondary search index (SQLite or
// Postgres backed). The JSONL file remains authoritative; the index is
// rebuilt from recovered entries on open and never the reverse.
func WithIndex(idx Index) Option {
	return func(l *Log) { l.index = idx }
}

// Open opens (creating if absent) the log file at path, replays it to
// rebuild the in-memory cache and the chain head, and returns the Log.
// A malformed line marks the log load-error: recovery
// continues over the remaining well-formed lines, but Append refuses new
// writes until AcknowledgeQuarantine is called.
func Open(path string, opts ...Option) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("auditlog: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("auditlog: open: %w", err)
	}

	l := &Log{
		path:  path,
		file:  f,
		chain: chain.New(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := l.recover(); err != nil {
		_ = f.Close()
		return nil, err
	}
	if l.index != nil {
		if err := l.index.Reindex(l.entries); err != nil {
			// Index failures are non-fatal: the JSONL file remains
			// authoritative and the index is a rebuildable cache.
			l.index = nil
		}
	}
	return l, nil
}

// recover replays every line in the file, rebuilding entries and the
// chain head. See Open for the malformed-line policy.
func (l *Log) recover() error {
	if _, err := l.file.Seek(0, 0); err != nil {
		return fmt.Errorf("auditlog: seek: %w", err)
	}
	scanner := bufio.NewScanner(l.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var entries []chain.Entry
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var wire wireEntry
		if err := json.Unmarshal(line, &wire); err != nil {
			l.loadError = true
			continue
		}
		entries = append(entries, wire.toChainEntry())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("auditlog: scan: %w", err)
	}

	l.entries = entries
	if len(entries) > 0 {
		l.chain.Reset(entries[len(entries)-1].EntryHash, len(entries))
	} else {
		l.chain.Reset(chain.GenesisHash, 0)
	}

	// seek back to the end for subsequent appends
	if _, err := l.file.Seek(0, 2); err != nil {
		return fmt.Errorf("auditlog: seek end: %w", err)
	}
	return nil
}

// wireEntry is the on-disk JSON-line shape.
type wireEntry struct {
	EntryHash    string         `json:"entry_hash"`
	PreviousHash string         `json:"previous_hash"`
	Timestamp    string         `json:"timestamp"`
	Data         map[string]any `json:"data"`
}

func (w wireEntry) toChainEntry() chain.Entry {
	return chain.Entry{EntryHash: w.EntryHash, PreviousHash: w.PreviousHash, Timestamp: w.Timestamp, Data: w.Data}
}

// Append converts event to its dynamic map projection (via ToDict when
// available), supplies a timestamp if the projection doesn't already
// carry one, extends the chain, writes the line, and returns entry_hash.
func (l *Log) Append(event any) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loadError {
		return "", ErrLoadError
	}

	data, err := toDict(event)
	if err != nil {
		return "", fmt.Errorf("auditlog: project event: %w", err)
	}
	now := l.clock()
	if _, ok := data["timestamp"]; !ok {
		data["timestamp"] = float64(now.UnixNano()) / 1e9
	}
	tsText := strconv.FormatFloat(float64(now.UnixNano())/1e9, 'f', -1, 64)

	entry, err := l.chain.Append(data, tsText)
	if err != nil {
		return "", fmt.Errorf("auditlog: chain append: %w", err)
	}

	wire := wireEntry{EntryHash: entry.EntryHash, PreviousHash: entry.PreviousHash, Timestamp: entry.Timestamp, Data: data}
	line, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("auditlog: marshal line: %w", err)
	}
	line = append(line, '\n')
	if _, err := l.file.Write(line); err != nil {
		return "", fmt.Errorf("auditlog: write: %w", err)
	}
	if l.durable {
		if err := l.file.Sync(); err != nil {
			return "", fmt.Errorf("auditlog: fsync: %w", err)
		}
	}

	l.entries = append(l.entries, entry)
	if l.index != nil {
		_ = l.index.Index(entry)
	}
	return entry.EntryHash, nil
}

// VerifyIntegrity walks the in-memory cache from genesis and reports
// whether the chain is intact. A log marked load-error always reports
// false without walking the chain.
func (l *Log) VerifyIntegrity() (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loadError {
		return false, -1
	}
	ok, bad := chain.Verify(l.entries)
	return ok, bad
}

// LoadError reports whether recovery encountered a malformed line.
func (l *Log) LoadError() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadError
}

// AcknowledgeQuarantine clears the load-error flag, allowing new appends.
// It does not repair history: VerifyIntegrity may still report a chain
// break for entries that predate the quarantine. This is the explicit
// operator action resolving the quarantine;
// it is intentionally not reachable from the HTTP surface.
func (l *Log) AcknowledgeQuarantine() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loadError = false
}

// Len returns the number of entries in the in-memory cache.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// GetEntries returns a half-open [start, end) slice over the in-memory
// cache. Out-of-range bounds are clamped.
func (l *Log) GetEntries(start, end int) []chain.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.entries)
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start >= end {
		return nil
	}
	out := make([]chain.Entry, end-start)
	copy(out, l.entries[start:end])
	return out
}

// Search performs a linear scan over entry data, returning every entry
// where every requested key/value pair matches exactly.
func (l *Log) Search(criteria map[string]any) []chain.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []chain.Entry
	for _, e := range l.entries {
		data, ok := e.Data.(map[string]any)
		if !ok {
			continue
		}
		if matchesAll(data, criteria) {
			out = append(out, e)
		}
	}
	return out
}

func matchesAll(data, criteria map[string]any) bool {
	for k, want := range criteria {
		got, ok := data[k]
		if !ok || !equalJSON(got, want) {
			return false
		}
	}
	return true
}

// equalJSON compares two values the way two independently-decoded JSON
// documents should be compared: by round-tripping through json.Marshal so
// that e.g. int(3) and float64(3) compare equal.
func equalJSON(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ab) == string(bb)
}

// Close flushes and releases the file handle, and closes the optional
// secondary index. Graceful shutdown calls this (the process exit
// behaviour).
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	if l.index != nil {
		if err := l.index.Close(); err != nil {
			firstErr = err
		}
	}
	if err := l.file.Sync(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := l.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func toDict(v any) (map[string]any, error) {
	if d, ok := v.(toDicter); ok {
		return cloneMap(d.ToDict()), nil
	}
	if m, ok := v.(map[string]any); ok {
		return cloneMap(m), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		return m, nil
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return map[string]any{"value": generic}, nil
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
