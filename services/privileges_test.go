package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPrivilegeCacheHitAndMiss(t *testing.T) {
	var loads int
	cache := NewPrivilegeCache(func(ctx context.Context, userID string) ([]string, error) {
		loads++
		if userID == "u1" {
			return []string{"Add Host", "Delete Host"}, nil
		}
		return nil, nil
	}, time.Minute)

	ctx := context.Background()
	ok, err := cache.HasRole(ctx, "u1", "Add Host")
	if err != nil || !ok {
		t.Fatalf("HasRole(u1, Add Host) = %v, %v", ok, err)
	}
	ok, _ = cache.HasRole(ctx, "u1", "Reboot Host")
	if ok {
		t.Error("unexpected grant for Reboot Host")
	}
	if loads != 1 {
		t.Errorf("loads = %d, want 1 (second lookup should hit cache)", loads)
	}

	ok, _ = cache.HasRole(ctx, "u2", "Add Host")
	if ok {
		t.Error("u2 should have no roles")
	}
	if loads != 2 {
		t.Errorf("loads = %d, want 2", loads)
	}
}

func TestPrivilegeCacheInvalidate(t *testing.T) {
	grants := []string{"View Report"}
	var loads int
	cache := NewPrivilegeCache(func(ctx context.Context, userID string) ([]string, error) {
		loads++
		return grants, nil
	}, time.Minute)

	ctx := context.Background()
	if ok, _ := cache.HasRole(ctx, "u1", "Add User"); ok {
		t.Fatal("Add User granted before change")
	}

	grants = []string{"View Report", "Add User"}
	if ok, _ := cache.HasRole(ctx, "u1", "Add User"); ok {
		t.Fatal("cache should still hold the old grants")
	}

	cache.Invalidate("u1")
	if ok, _ := cache.HasRole(ctx, "u1", "Add User"); !ok {
		t.Error("Add User missing after invalidation")
	}
	if loads != 2 {
		t.Errorf("loads = %d, want 2", loads)
	}
}

func TestPrivilegeCacheTTLExpiry(t *testing.T) {
	var loads int
	cache := NewPrivilegeCache(func(ctx context.Context, userID string) ([]string, error) {
		loads++
		return []string{"View Host Details"}, nil
	}, 10*time.Millisecond)

	ctx := context.Background()
	_, _ = cache.Roles(ctx, "u1")
	time.Sleep(20 * time.Millisecond)
	_, _ = cache.Roles(ctx, "u1")
	if loads != 2 {
		t.Errorf("loads = %d, want 2 after TTL expiry", loads)
	}
}

func TestPrivilegeCacheServesStaleOnLoaderError(t *testing.T) {
	var fail bool
	cache := NewPrivilegeCache(func(ctx context.Context, userID string) ([]string, error) {
		if fail {
			return nil, errors.New("db down")
		}
		return []string{"Approve Host Registration"}, nil
	}, time.Millisecond)

	ctx := context.Background()
	if ok, err := cache.HasRole(ctx, "u1", "Approve Host Registration"); err != nil || !ok {
		t.Fatalf("initial load failed: %v %v", ok, err)
	}

	fail = true
	time.Sleep(5 * time.Millisecond)
	ok, err := cache.HasRole(ctx, "u1", "Approve Host Registration")
	if err != nil {
		t.Fatalf("expected stale entry, got error: %v", err)
	}
	if !ok {
		t.Error("stale grant lost")
	}

	// A user with no cached entry surfaces the loader error.
	if _, err := cache.HasRole(ctx, "u2", "Add Host"); err == nil {
		t.Error("expected loader error for uncached user")
	}
}

func TestPrivilegeCacheRolesCopy(t *testing.T) {
	cache := NewPrivilegeCache(func(ctx context.Context, userID string) ([]string, error) {
		return []string{"Add Host"}, nil
	}, time.Minute)

	roles, err := cache.Roles(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(roles) != 1 || roles[0] != "Add Host" {
		t.Errorf("roles = %v", roles)
	}
}
