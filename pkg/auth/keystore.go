package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// cacheTTL bounds how stale the in-memory key cache may be before a read
// forces a reload from the YAML file so external edits are picked up within the cache TTL.
const cacheTTL = 60 * time.Second

// KeyStore issues, hashes, validates, and revokes API keys. The YAML file
// at path is the persistent source of truth; an in-memory cache with a
// bounded TTL avoids re-reading it on every request.
type KeyStore struct {
	mu       sync.Mutex
	path     string
	records  map[string]KeyRecord // keyed by key_hash
	loadedAt time.Time
	clock    func() time.Time
	cache    Cache // optional invalidation signal (e.g. Redis); may be nil
}

// KeyStoreOption configures NewKeyStore.
type KeyStoreOption func(*KeyStore)

// WithKeyStoreClock overrides the wall clock, for deterministic tests.
func WithKeyStoreClock(clock func() time.Time) KeyStoreOption {
	return func(s *KeyStore) { s.clock = clock }
}

// WithReadThroughCache attaches an optional distributed Cache (e.g. a
// Redis-backed one) that is told to Invalidate a key_hash on CreateKey and
// Revoke. Lookups never consult it: they are always served from the
// in-process map, reloaded from the YAML file once the TTL has passed.
func WithReadThroughCache(c Cache) KeyStoreOption {
	return func(s *KeyStore) { s.cache = c }
}

// NewKeyStore opens (creating if absent) the key record file at path.
func NewKeyStore(path string, opts ...KeyStoreOption) (*KeyStore, error) {
	s := &KeyStore{path: path, records: map[string]KeyRecord{}, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *KeyStore) reload() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.records = map[string]KeyRecord{}
		s.loadedAt = s.clock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("auth: read key store: %w", err)
	}
	var records map[string]KeyRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("auth: parse key store: %w", err)
	}
	if records == nil {
		records = map[string]KeyRecord{}
	}
	s.records = records
	s.loadedAt = s.clock()
	return nil
}

func (s *KeyStore) reloadIfStale() error {
	if s.clock().Sub(s.loadedAt) < cacheTTL {
		return nil
	}
	return s.reload()
}

// persist rewrites the YAML file from the in-memory record set. Callers
// must hold s.mu.
func (s *KeyStore) persist() error {
	data, err := yaml.Marshal(s.records)
	if err != nil {
		return fmt.Errorf("auth: marshal key store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("auth: write key store: %w", err)
	}
	return nil
}

// CreateKey mints a new 256-bit key, persists its record, and returns the
// plaintext exactly once — it is never stored.
func (s *KeyStore) CreateKey(name string, role Role, description string) (plaintext string, record KeyRecord, err error) {
	if !ValidRole(role) {
		return "", KeyRecord{}, fmt.Errorf("auth: invalid role %q", role)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", KeyRecord{}, fmt.Errorf("auth: generate key material: %w", err)
	}
	plaintext = base64.RawURLEncoding.EncodeToString(buf)
	hash := hashKey(plaintext)

	s.mu.Lock()
	defer s.mu.Unlock()

	record = KeyRecord{
		KeyHash:     hash,
		Name:        name,
		Role:        role,
		Description: description,
		CreatedAt:   s.clock(),
		UseCount:    0,
	}
	s.records[hash] = record
	if err := s.persist(); err != nil {
		return "", KeyRecord{}, err
	}
	if s.cache != nil {
		s.cache.Invalidate(hash)
	}
	return plaintext, record, nil
}

// Validate hashes plaintext, looks it up, and on a hit atomically bumps
// last_used/use_count before returning the metadata.
func (s *KeyStore) Validate(plaintext string) (KeyRecord, bool) {
	hash := hashKey(plaintext)

	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.reloadIfStale()
	rec, ok := s.records[hash]
	if !ok {
		return KeyRecord{}, false
	}

	now := s.clock()
	rec.LastUsed = &now
	rec.UseCount++
	s.records[hash] = rec
	// Best-effort persistence of use-count bumps; failure to persist a
	// usage counter does not invalidate the already-successful auth check.
	_ = s.persist()
	return rec, true
}

// Revoke deletes the record for plaintext's hash and reports whether one
// was removed. Historical log entries citing the hash remain unaffected.
func (s *KeyStore) Revoke(plaintext string) (bool, error) {
	hash := hashKey(plaintext)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[hash]; !ok {
		return false, nil
	}
	delete(s.records, hash)
	if err := s.persist(); err != nil {
		return false, err
	}
	if s.cache != nil {
		s.cache.Invalidate(hash)
	}
	return true, nil
}

// List returns a snapshot of every redacted key record.
func (s *KeyStore) List() []KeyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.reloadIfStale()
	out := make([]KeyRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Redacted())
	}
	return out
}

func hashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
