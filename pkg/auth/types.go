// Package auth implements API-key issuance and verification, the fixed
// role permission matrix, sliding-window rate limiting, CORS, and the
// per-request principal/request-id context used by pkg/server.
package auth

import "time"

// Role is one of the three fixed roles in the permission matrix.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleReadonly Role = "readonly"
)

// ValidRole reports whether r is one of the three recognized roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleReadonly:
		return true
	}
	return false
}

// KeyRecord is the persisted metadata for one API key. The plaintext key
// material is never stored — only KeyHash, the SHA-256 hex digest of it.
type KeyRecord struct {
	KeyHash     string     `yaml:"key_hash" json:"key_hash"`
	Name        string     `yaml:"name" json:"name"`
	Role        Role       `yaml:"role" json:"role"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time  `yaml:"created_at" json:"created_at"`
	LastUsed    *time.Time `yaml:"last_used,omitempty" json:"last_used,omitempty"`
	UseCount    int        `yaml:"use_count" json:"use_count"`
}

// Redacted returns a copy safe to expose over the HTTP surface: the key
// hash is kept (it is not secret material, merely a lookup key) but this
// hook exists so callers have one place to strip anything sensitive added
// to KeyRecord in the future.
func (r KeyRecord) Redacted() KeyRecord {
	return r
}

// Principal is the authenticated caller of a request, attached to the
// request context by the server's auth dependency.
type Principal struct {
	Name string
	Role Role
}
