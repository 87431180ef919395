package services

import (
	"context"
	"sync"
	"time"
)

// RoleLoader fetches granted role names for a user from storage.
type RoleLoader func(ctx context.Context, userID string) ([]string, error)

type privEntry struct {
	roles    map[string]bool
	loadedAt time.Time
}

// PrivilegeCache is a process-wide cache of per-user security-role grants.
// Lookups are synchronous; entries refresh through the loader after TTL and
// are dropped eagerly when grants change.
type PrivilegeCache struct {
	mu     sync.RWMutex
	m      map[string]privEntry
	loader RoleLoader
	ttl    time.Duration
}

// NewPrivilegeCache builds a cache around the given loader.
func NewPrivilegeCache(loader RoleLoader, ttl time.Duration) *PrivilegeCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PrivilegeCache{
		m:      make(map[string]privEntry),
		loader: loader,
		ttl:    ttl,
	}
}

// HasRole reports whether the user holds the named security role.
func (c *PrivilegeCache) HasRole(ctx context.Context, userID, role string) (bool, error) {
	roles, err := c.roles(ctx, userID)
	if err != nil {
		return false, err
	}
	return roles[role], nil
}

// Roles returns a copy of the user's granted role names.
func (c *PrivilegeCache) Roles(ctx context.Context, userID string) ([]string, error) {
	roles, err := c.roles(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(roles))
	for r := range roles {
		out = append(out, r)
	}
	return out, nil
}

func (c *PrivilegeCache) roles(ctx context.Context, userID string) (map[string]bool, error) {
	c.mu.RLock()
	ent, ok := c.m[userID]
	c.mu.RUnlock()
	if ok && time.Since(ent.loadedAt) < c.ttl {
		return ent.roles, nil
	}

	names, err := c.loader(ctx, userID)
	if err != nil {
		// Serve a stale entry over failing the request outright.
		if ok {
			return ent.roles, nil
		}
		return nil, err
	}
	roles := make(map[string]bool, len(names))
	for _, n := range names {
		roles[n] = true
	}
	c.mu.Lock()
	c.m[userID] = privEntry{roles: roles, loadedAt: time.Now()}
	c.mu.Unlock()
	return roles, nil
}

// Invalidate drops the cached grants for one user.
func (c *PrivilegeCache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.m, userID)
	c.mu.Unlock()
}

// InvalidateAll drops every cached entry (role catalog changed).
func (c *PrivilegeCache) InvalidateAll() {
	c.mu.Lock()
	c.m = make(map[string]privEntry)
	c.mu.Unlock()
}

// Privileges is the shared cache instance, wired in main.
var Privileges *PrivilegeCache

// InitPrivileges builds the shared cache.
func InitPrivileges(loader RoleLoader, ttl time.Duration) {
	Privileges = NewPrivilegeCache(loader, ttl)
}
