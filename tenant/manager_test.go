package tenant

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestManager(clock *fakeClock) *Manager {
	m := NewManager()
	if clock != nil {
		m.now = clock.Now
	}
	return m
}

func TestCreateTenant(t *testing.T) {
	m := newTestManager(nil)

	created, err := m.CreateTenant("acme", "Acme Corp", Settings{RateLimit: 100})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "acme", created.Slug)
	assert.Equal(t, StatusActive, created.Status)
	assert.Equal(t, 100, created.Settings.RateLimit)

	byID, err := m.GetTenant(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byID.ID)

	bySlug, err := m.GetTenantBySlug("acme")
	require.NoError(t, err)
	assert.Equal(t, created.ID, bySlug.ID)
}

func TestCreateTenantDuplicateSlug(t *testing.T) {
	m := newTestManager(nil)

	_, err := m.CreateTenant("acme", "Acme Corp", Settings{})
	require.NoError(t, err)

	_, err = m.CreateTenant("acme", "Another Acme", Settings{})
	assert.ErrorIs(t, err, ErrDuplicateSlug)
	assert.Len(t, m.ListTenants(), 1, "failed creation must not mutate state")
}

func TestGetTenantNotFound(t *testing.T) {
	m := newTestManager(nil)

	_, err := m.GetTenant("ghost")
	assert.ErrorIs(t, err, ErrTenantNotFound)

	_, err = m.GetTenantBySlug("ghost")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestListTenantsOrderedBySlug(t *testing.T) {
	m := newTestManager(nil)
	for _, slug := range []string{"zeta", "alpha", "mid"} {
		_, err := m.CreateTenant(slug, slug, Settings{})
		require.NoError(t, err)
	}

	tenants := m.ListTenants()
	require.Len(t, tenants, 3)
	assert.Equal(t, "alpha", tenants[0].Slug)
	assert.Equal(t, "mid", tenants[1].Slug)
	assert.Equal(t, "zeta", tenants[2].Slug)
}

func TestCreateAPIKeyReturnsPlaintextOnce(t *testing.T) {
	m := newTestManager(nil)
	acme, err := m.CreateTenant("acme", "Acme", Settings{})
	require.NoError(t, err)

	key, plaintext, err := m.CreateAPIKey(acme.ID, KeyParams{Name: "ci", Scopes: []string{"run"}})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(plaintext, "ask_"))
	assert.Len(t, plaintext, len("ask_")+64)
	assert.NotEqual(t, plaintext, key.HashedKey, "plaintext must never be stored")
	assert.NotContains(t, key.HashedKey, plaintext)
	assert.True(t, key.IsActive)
	assert.Equal(t, []string{"run"}, key.Scopes)
}

func TestVerifyAPIKey(t *testing.T) {
	m := newTestManager(nil)
	acme, err := m.CreateTenant("acme", "Acme", Settings{})
	require.NoError(t, err)

	_, plaintext, err := m.CreateAPIKey(acme.ID, KeyParams{Name: "ci"})
	require.NoError(t, err)

	verified, ok := m.VerifyAPIKey(plaintext)
	require.True(t, ok)
	assert.Equal(t, acme.ID, verified.TenantID)
	assert.NotNil(t, verified.LastUsedAt)
}

func TestVerifyAPIKeyUnknown(t *testing.T) {
	m := newTestManager(nil)

	verified, ok := m.VerifyAPIKey("ask_deadbeef")
	assert.False(t, ok, "an unknown key is a negative verification, not an error")
	assert.Nil(t, verified)
}

func TestVerifyAPIKeyRevoked(t *testing.T) {
	m := newTestManager(nil)
	acme, _ := m.CreateTenant("acme", "Acme", Settings{})
	key, plaintext, err := m.CreateAPIKey(acme.ID, KeyParams{Name: "ci"})
	require.NoError(t, err)

	require.NoError(t, m.RevokeAPIKey(key.ID))

	_, ok := m.VerifyAPIKey(plaintext)
	assert.False(t, ok)
}

func TestVerifyAPIKeyExpired(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock)
	acme, _ := m.CreateTenant("acme", "Acme", Settings{})

	expiry := clock.Now().Add(time.Hour)
	_, plaintext, err := m.CreateAPIKey(acme.ID, KeyParams{Name: "ci", ExpiresAt: &expiry})
	require.NoError(t, err)

	_, ok := m.VerifyAPIKey(plaintext)
	assert.True(t, ok)

	clock.Advance(2 * time.Hour)
	_, ok = m.VerifyAPIKey(plaintext)
	assert.False(t, ok)
}

func TestVerifyAPIKeySuspendedTenant(t *testing.T) {
	m := newTestManager(nil)
	acme, _ := m.CreateTenant("acme", "Acme", Settings{})
	_, plaintext, err := m.CreateAPIKey(acme.ID, KeyParams{Name: "ci"})
	require.NoError(t, err)

	require.NoError(t, m.SetTenantStatus(acme.ID, StatusSuspended))

	_, ok := m.VerifyAPIKey(plaintext)
	assert.False(t, ok, "keys of non-active tenants must not verify")
}

func TestRevokeUnknownKey(t *testing.T) {
	m := newTestManager(nil)
	assert.ErrorIs(t, m.RevokeAPIKey("ghost"), ErrKeyNotFound)
}

func TestQuotaCheckAndIncrement(t *testing.T) {
	m := newTestManager(nil)
	acme, _ := m.CreateTenant("acme", "Acme", Settings{})
	require.NoError(t, m.SetQuota(acme.ID, "runs", 100, time.Hour))

	decision, err := m.CheckQuota(acme.ID, "runs", 10)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 100, decision.Remaining)

	require.NoError(t, m.IncrementQuota(acme.ID, "runs", 60))

	decision, err = m.CheckQuota(acme.ID, "runs", 40)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 60, decision.Used)
	assert.Equal(t, 40, decision.Remaining)

	decision, err = m.CheckQuota(acme.ID, "runs", 41)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestQuotaSoftLimitOvershoot(t *testing.T) {
	m := newTestManager(nil)
	acme, _ := m.CreateTenant("acme", "Acme", Settings{})
	require.NoError(t, m.SetQuota(acme.ID, "runs", 100, time.Hour))

	// Increments are unconditional: two concurrent requests that both passed
	// the check may overshoot the limit.
	require.NoError(t, m.IncrementQuota(acme.ID, "runs", 60))
	require.NoError(t, m.IncrementQuota(acme.ID, "runs", 50))

	decision, err := m.CheckQuota(acme.ID, "runs", 1)
	require.NoError(t, err)
	assert.Equal(t, 110, decision.Used)
	assert.Equal(t, 0, decision.Remaining)
	assert.False(t, decision.Allowed)
}

func TestQuotaWindowRollover(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock)
	acme, _ := m.CreateTenant("acme", "Acme", Settings{})
	require.NoError(t, m.SetQuota(acme.ID, "runs", 10, time.Hour))

	require.NoError(t, m.IncrementQuota(acme.ID, "runs", 10))
	decision, _ := m.CheckQuota(acme.ID, "runs", 1)
	assert.False(t, decision.Allowed)

	clock.Advance(time.Hour + time.Minute)

	// A check after the window ends already reports the fresh budget.
	decision, err := m.CheckQuota(acme.ID, "runs", 1)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 0, decision.Used)

	// The next increment performs the actual rollover.
	require.NoError(t, m.IncrementQuota(acme.ID, "runs", 3))
	quota, err := m.GetQuota(acme.ID, "runs")
	require.NoError(t, err)
	assert.Equal(t, 3, quota.Used)
	assert.Equal(t, clock.Now(), quota.PeriodStart)
}

func TestQuotaNotConfigured(t *testing.T) {
	m := newTestManager(nil)
	acme, _ := m.CreateTenant("acme", "Acme", Settings{})

	_, err := m.CheckQuota(acme.ID, "runs", 1)
	assert.ErrorIs(t, err, ErrQuotaNotFound)
	assert.ErrorIs(t, m.IncrementQuota(acme.ID, "runs", 1), ErrQuotaNotFound)
}

func TestSetTenantStatusLifecycle(t *testing.T) {
	m := newTestManager(nil)
	acme, _ := m.CreateTenant("acme", "Acme", Settings{})

	require.NoError(t, m.SetTenantStatus(acme.ID, StatusSuspended))
	got, err := m.GetTenant(acme.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, got.Status)

	require.NoError(t, m.SetTenantStatus(acme.ID, StatusActive))
	got, _ = m.GetTenant(acme.ID)
	assert.Equal(t, StatusActive, got.Status)

	assert.ErrorIs(t, m.SetTenantStatus("ghost", StatusActive), ErrTenantNotFound)
}
