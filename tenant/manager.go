package tenant

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lovekaizen/agentsea/core"
	"github.com/lovekaizen/agentsea/logging"
)

// keyPrefix marks AgentSea secret keys so leaked plaintext is recognizable in
// scanners and logs.
const keyPrefix = "ask_"

// ManagerOptions configure a Manager.
type ManagerOptions struct {
	// DefaultQuotaPeriod applies to SetQuota calls with a zero period.
	DefaultQuotaPeriod time.Duration
	Logger             logging.Logger
}

// Manager is the in-memory reference implementation of tenant lifecycle,
// API-key and quota management. All methods are safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant // by id
	slugs   map[string]string  // slug -> id
	keys    map[string]*APIKey // by hashed key
	keyIDs  map[string]string  // key id -> hashed key
	quotas  map[string]*Quota  // tenantID+"\x00"+resource

	defaultPeriod time.Duration
	logger        logging.Logger
	now           func() time.Time
}

// NewManager constructs an empty Manager.
func NewManager(optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{DefaultQuotaPeriod: time.Hour}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{
		tenants:       make(map[string]*Tenant),
		slugs:         make(map[string]string),
		keys:          make(map[string]*APIKey),
		keyIDs:        make(map[string]string),
		quotas:        make(map[string]*Quota),
		defaultPeriod: opts.DefaultQuotaPeriod,
		logger:        logging.OrNoOp(opts.Logger),
		now:           time.Now,
	}
}

// CreateTenant registers a new active tenant. The slug must be unique;
// a collision fails with ErrDuplicateSlug and mutates nothing.
func (m *Manager) CreateTenant(slug, name string, settings Settings) (*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.slugs[slug]; taken {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSlug, slug)
	}

	now := m.now()
	t := &Tenant{
		ID:        core.NewID(),
		Slug:      slug,
		Name:      name,
		Status:    StatusActive,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.tenants[t.ID] = t
	m.slugs[slug] = t.ID

	m.logger.Info("tenant.created", "tenant_id", t.ID, "slug", slug)
	return cloneTenant(t), nil
}

// GetTenant returns the tenant with the given id.
func (m *Manager) GetTenant(id string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, id)
	}
	return cloneTenant(t), nil
}

// GetTenantBySlug returns the tenant registered under slug.
func (m *Manager) GetTenantBySlug(slug string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.slugs[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, slug)
	}
	return cloneTenant(m.tenants[id]), nil
}

// ListTenants returns all tenants ordered by slug.
func (m *Manager) ListTenants() []*Tenant {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, cloneTenant(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// SetTenantStatus transitions a tenant's lifecycle state.
func (m *Manager) SetTenantStatus(id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTenantNotFound, id)
	}
	t.Status = status
	t.UpdatedAt = m.now()
	m.logger.Info("tenant.status_changed", "tenant_id", id, "status", string(status))
	return nil
}

// CreateAPIKey issues a high-entropy key for the tenant and returns the
// persisted record together with the plaintext. The plaintext is returned
// exactly once; callers must capture it immediately. Only its SHA-256 hash
// is stored.
func (m *Manager) CreateAPIKey(tenantID string, params KeyParams) (*APIKey, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenants[tenantID]; !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, "", fmt.Errorf("generate api key: %w", err)
	}
	plaintext := keyPrefix + hex.EncodeToString(secret)
	hashed := hashKey(plaintext)

	key := &APIKey{
		ID:        core.NewID(),
		TenantID:  tenantID,
		Name:      params.Name,
		HashedKey: hashed,
		Scopes:    append([]string(nil), params.Scopes...),
		ExpiresAt: params.ExpiresAt,
		IsActive:  true,
		CreatedAt: m.now(),
	}
	m.keys[hashed] = key
	m.keyIDs[key.ID] = hashed

	m.logger.Info("tenant.apikey.created", "tenant_id", tenantID, "key_id", key.ID, "name", params.Name)
	return cloneKey(key), plaintext, nil
}

// VerifyAPIKey hashes the plaintext and looks it up. The second return is
// false — a normal outcome, not an error — when the key is unknown, revoked,
// expired, or its owning tenant is not active. On success the key's
// LastUsedAt is updated.
func (m *Manager) VerifyAPIKey(plaintext string) (*APIKey, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.keys[hashKey(plaintext)]
	if !ok || !key.IsActive {
		return nil, false
	}
	now := m.now()
	if key.ExpiresAt != nil && now.After(*key.ExpiresAt) {
		return nil, false
	}
	owner, ok := m.tenants[key.TenantID]
	if !ok || owner.Status != StatusActive {
		return nil, false
	}

	used := now
	key.LastUsedAt = &used
	return cloneKey(key), true
}

// RevokeAPIKey deactivates a key by id.
func (m *Manager) RevokeAPIKey(keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	hashed, ok := m.keyIDs[keyID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}
	m.keys[hashed].IsActive = false
	m.logger.Info("tenant.apikey.revoked", "key_id", keyID)
	return nil
}

// SetQuota configures (or replaces) the quota for a tenant/resource pair and
// starts a fresh accounting window. A zero period uses the manager default.
func (m *Manager) SetQuota(tenantID, resource string, limit int, period time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenants[tenantID]; !ok {
		return fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	}
	if period <= 0 {
		period = m.defaultPeriod
	}
	now := m.now()
	m.quotas[quotaKey(tenantID, resource)] = &Quota{
		TenantID:    tenantID,
		Resource:    resource,
		Limit:       limit,
		Period:      period,
		PeriodStart: now,
		PeriodEnd:   now.Add(period),
	}
	return nil
}

// CheckQuota reports whether amount more units fit in the current window. It
// is read-only and never mutates usage.
//
// CheckQuota followed later by IncrementQuota is a check-then-act pair:
// concurrent requests for the same tenant/resource can both pass the check
// before either increments. This is an accepted soft-limit design — quotas
// are advisory rate controls, not hard admission gates.
func (m *Manager) CheckQuota(tenantID, resource string, amount int) (QuotaDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.quotas[quotaKey(tenantID, resource)]
	if !ok {
		return QuotaDecision{}, fmt.Errorf("%w: %s/%s", ErrQuotaNotFound, tenantID, resource)
	}

	used := q.Used
	if m.now().After(q.PeriodEnd) {
		// Window already elapsed; the next increment rolls it over.
		used = 0
	}

	remaining := q.Limit - used
	if remaining < 0 {
		remaining = 0
	}
	return QuotaDecision{
		Allowed:   used+amount <= q.Limit,
		Remaining: remaining,
		Used:      used,
		Limit:     q.Limit,
	}, nil
}

// IncrementQuota records amount units of usage, rolling the accounting
// window over first when the current one has ended. Usage may exceed the
// limit; enforcement happens at CheckQuota time (see the soft-limit note
// there).
func (m *Manager) IncrementQuota(tenantID, resource string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.quotas[quotaKey(tenantID, resource)]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrQuotaNotFound, tenantID, resource)
	}

	now := m.now()
	if now.After(q.PeriodEnd) {
		q.Used = 0
		q.PeriodStart = now
		q.PeriodEnd = now.Add(q.Period)
	}
	q.Used += amount
	return nil
}

// GetQuota returns a copy of the current quota state for a tenant/resource.
func (m *Manager) GetQuota(tenantID, resource string) (*Quota, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quotas[quotaKey(tenantID, resource)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrQuotaNotFound, tenantID, resource)
	}
	copied := *q
	return &copied, nil
}

func quotaKey(tenantID, resource string) string { return tenantID + "\x00" + resource }

func hashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func cloneTenant(t *Tenant) *Tenant {
	copied := *t
	return &copied
}

func cloneKey(k *APIKey) *APIKey {
	copied := *k
	copied.Scopes = append([]string(nil), k.Scopes...)
	return &copied
}
