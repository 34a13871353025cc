// Package tenant implements tenant lifecycle, hashed API-key issuance and
// verification, and rolling per-resource quota accounting. The in-memory
// Manager is the reference implementation of these contracts; a
// durable-storage implementation is a pluggable collaborator.
package tenant

import (
	"errors"
	"time"
)

// Status describes a tenant's lifecycle state. Any non-active tenant must be
// rejected for request-time operations.
type Status string

const (
	// StatusActive tenants may execute requests.
	StatusActive Status = "active"
	// StatusSuspended tenants are temporarily blocked.
	StatusSuspended Status = "suspended"
	// StatusInactive tenants are retired.
	StatusInactive Status = "inactive"
)

// Settings carries per-tenant limits applied by callers.
type Settings struct {
	MaxAgents        int `json:"max_agents"`
	MaxConversations int `json:"max_conversations"`
	RateLimit        int `json:"rate_limit"`
	RetentionDays    int `json:"retention_days"`
}

// Tenant is an isolated logical customer scope with its own quotas, API keys
// and settings.
type Tenant struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Settings  Settings  `json:"settings"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// APIKey is the persisted record of an issued key. Only the SHA-256 hash of
// the plaintext is stored; the plaintext is returned exactly once at creation
// and is never retrievable again.
type APIKey struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	Name       string     `json:"name"`
	HashedKey  string     `json:"hashed_key"`
	Scopes     []string   `json:"scopes,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// KeyParams configures CreateAPIKey.
type KeyParams struct {
	Name      string
	Scopes    []string
	ExpiresAt *time.Time
}

// Quota tracks rolling usage of one resource for one tenant. A fresh window
// starts when the current time passes PeriodEnd.
type Quota struct {
	TenantID    string        `json:"tenant_id"`
	Resource    string        `json:"resource"`
	Used        int           `json:"used"`
	Limit       int           `json:"limit"`
	Period      time.Duration `json:"period"`
	PeriodStart time.Time     `json:"period_start"`
	PeriodEnd   time.Time     `json:"period_end"`
}

// QuotaDecision is the read-only answer of CheckQuota.
type QuotaDecision struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
}

// Sentinel errors reported by the Manager. Check with errors.Is.
var (
	// ErrDuplicateSlug is returned by CreateTenant when the slug is taken.
	ErrDuplicateSlug = errors.New("tenant slug already in use")
	// ErrTenantNotFound is returned when no tenant matches the given id or slug.
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrQuotaNotFound is returned when no quota is configured for the
	// requested tenant/resource pair.
	ErrQuotaNotFound = errors.New("quota not configured")
	// ErrKeyNotFound is returned by RevokeAPIKey for an unknown key id.
	ErrKeyNotFound = errors.New("api key not found")
)
