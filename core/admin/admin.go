// Package admin resolves who may use the admin surface. There are three
// tiers: super admins from config, static admins from config, and dynamic
// admins granted at runtime and persisted through storage.
package admin

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/feyalabs/quizbot/core/logger"
)

var (
	// ErrSuperAdmin reports an attempt to demote a super admin.
	ErrSuperAdmin = errors.New("admin: cannot remove a super admin")
	// ErrStaticAdmin reports an attempt to demote a config-declared admin.
	ErrStaticAdmin = errors.New("admin: cannot remove a static admin")
	// ErrAlreadyAdmin reports a redundant grant.
	ErrAlreadyAdmin = errors.New("admin: already an admin")
	// ErrNotAdmin reports a demotion of someone who holds no dynamic grant.
	ErrNotAdmin = errors.New("admin: not a dynamic admin")
)

// Store is the persistence the manager needs for dynamic grants.
type Store interface {
	DynamicAdminIDs(ctx context.Context) ([]int64, error)
	SaveDynamicAdminIDs(ctx context.Context, ids []int64) error
}

// Manager holds the three admin tiers. Super and static sets are fixed at
// load time; the dynamic set changes at runtime and is persisted before
// the in-memory view is mutated.
type Manager struct {
	store Store

	mu      sync.RWMutex
	super   map[int64]bool
	static  map[int64]bool
	dynamic map[int64]bool
}

// Load builds the manager from the configured tiers plus the persisted
// dynamic set. If no super admins are configured, every static admin is
// promoted to super so the deployment always has someone who can manage
// admins.
func Load(ctx context.Context, store Store, superIDs, staticIDs []int64) (*Manager, error) {
	dynamic, err := store.DynamicAdminIDs(ctx)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		store:   store,
		super:   toSet(superIDs),
		static:  toSet(staticIDs),
		dynamic: toSet(dynamic),
	}
	if len(m.super) == 0 {
		for id := range m.static {
			m.super[id] = true
		}
		if len(m.super) > 0 {
			logger.App.WarnContext(ctx, "no super admins configured, promoting static admins",
				"event", "admin.promote", "count", len(m.super))
		}
	}
	return m, nil
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// IsAdmin reports whether the user holds any admin tier.
func (m *Manager) IsAdmin(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.super[id] || m.static[id] || m.dynamic[id]
}

// IsSuperAdmin reports whether the user is a super admin.
func (m *Manager) IsSuperAdmin(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.super[id]
}

// Add grants a dynamic admin tier. Users already holding any tier are
// rejected with ErrAlreadyAdmin.
func (m *Manager) Add(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.super[id] || m.static[id] || m.dynamic[id] {
		return ErrAlreadyAdmin
	}
	next := m.dynamicIDsLocked()
	next = append(next, id)
	if err := m.store.SaveDynamicAdminIDs(ctx, next); err != nil {
		return err
	}
	m.dynamic[id] = true
	logger.App.InfoContext(ctx, "admin granted", "event", "admin.add", "status", "ok", "admin_id", id)
	return nil
}

// Remove revokes a dynamic grant. Super and static admins cannot be
// removed at runtime.
func (m *Manager) Remove(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.super[id]:
		return ErrSuperAdmin
	case m.static[id]:
		return ErrStaticAdmin
	case !m.dynamic[id]:
		return ErrNotAdmin
	}
	next := make([]int64, 0, len(m.dynamic)-1)
	for _, existing := range m.dynamicIDsLocked() {
		if existing != id {
			next = append(next, existing)
		}
	}
	if err := m.store.SaveDynamicAdminIDs(ctx, next); err != nil {
		return err
	}
	delete(m.dynamic, id)
	logger.App.InfoContext(ctx, "admin revoked", "event", "admin.remove", "status", "ok", "admin_id", id)
	return nil
}

func (m *Manager) dynamicIDsLocked() []int64 {
	ids := make([]int64, 0, len(m.dynamic))
	for id := range m.dynamic {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Tier names the origin of an admin grant.
type Tier string

const (
	TierSuper   Tier = "super"
	TierStatic  Tier = "static"
	TierDynamic Tier = "dynamic"
)

// Entry pairs an admin id with its tier for listing.
type Entry struct {
	ID   int64
	Tier Tier
}

// List returns every admin once, supers first, each under its highest
// tier, sorted by id within a tier.
func (m *Manager) List() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[int64]bool)
	var out []Entry
	appendTier := func(set map[int64]bool, tier Tier) {
		ids := make([]int64, 0, len(set))
		for id := range set {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			out = append(out, Entry{ID: id, Tier: tier})
		}
	}
	appendTier(m.super, TierSuper)
	appendTier(m.static, TierStatic)
	appendTier(m.dynamic, TierDynamic)
	return out
}
