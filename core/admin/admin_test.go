package admin

import (
	"context"
	"errors"
	"testing"
)

type fakeStore struct {
	ids     []int64
	saveErr error
}

func (f *fakeStore) DynamicAdminIDs(context.Context) ([]int64, error) {
	return append([]int64(nil), f.ids...), nil
}

func (f *fakeStore) SaveDynamicAdminIDs(_ context.Context, ids []int64) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.ids = append([]int64(nil), ids...)
	return nil
}

func mustLoad(t *testing.T, store Store, super, static []int64) *Manager {
	t.Helper()
	m, err := Load(context.Background(), store, super, static)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m
}

func TestTierChecks(t *testing.T) {
	m := mustLoad(t, &fakeStore{ids: []int64{30}}, []int64{10}, []int64{20})
	cases := []struct {
		id           int64
		admin, super bool
	}{
		{10, true, true},
		{20, true, false},
		{30, true, false},
		{40, false, false},
	}
	for _, c := range cases {
		if got := m.IsAdmin(c.id); got != c.admin {
			t.Errorf("IsAdmin(%d) = %v, want %v", c.id, got, c.admin)
		}
		if got := m.IsSuperAdmin(c.id); got != c.super {
			t.Errorf("IsSuperAdmin(%d) = %v, want %v", c.id, got, c.super)
		}
	}
}

func TestStaticPromotedWhenNoSupers(t *testing.T) {
	m := mustLoad(t, &fakeStore{}, nil, []int64{20, 21})
	if !m.IsSuperAdmin(20) || !m.IsSuperAdmin(21) {
		t.Fatal("static admins not promoted to super")
	}
}

func TestAddAndRemoveDynamic(t *testing.T) {
	store := &fakeStore{}
	m := mustLoad(t, store, []int64{10}, nil)
	ctx := context.Background()

	if err := m.Add(ctx, 55); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !m.IsAdmin(55) {
		t.Fatal("grant not effective")
	}
	if len(store.ids) != 1 || store.ids[0] != 55 {
		t.Fatalf("grant not persisted: %v", store.ids)
	}
	if err := m.Add(ctx, 55); !errors.Is(err, ErrAlreadyAdmin) {
		t.Fatalf("duplicate grant: %v", err)
	}
	if err := m.Add(ctx, 10); !errors.Is(err, ErrAlreadyAdmin) {
		t.Fatalf("granting a super: %v", err)
	}

	if err := m.Remove(ctx, 55); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if m.IsAdmin(55) {
		t.Fatal("revocation not effective")
	}
	if len(store.ids) != 0 {
		t.Fatalf("revocation not persisted: %v", store.ids)
	}
	if err := m.Remove(ctx, 55); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("double revoke: %v", err)
	}
}

func TestRemoveProtectedTiers(t *testing.T) {
	m := mustLoad(t, &fakeStore{}, []int64{10}, []int64{20})
	ctx := context.Background()
	if err := m.Remove(ctx, 10); !errors.Is(err, ErrSuperAdmin) {
		t.Errorf("removing super: %v", err)
	}
	if err := m.Remove(ctx, 20); !errors.Is(err, ErrStaticAdmin) {
		t.Errorf("removing static: %v", err)
	}
}

func TestPersistFailureLeavesMemoryUntouched(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("disk full")}
	m := mustLoad(t, store, []int64{10}, nil)
	if err := m.Add(context.Background(), 77); err == nil {
		t.Fatal("expected persist error")
	}
	if m.IsAdmin(77) {
		t.Fatal("grant applied despite persist failure")
	}
}

func TestListOrdering(t *testing.T) {
	m := mustLoad(t, &fakeStore{ids: []int64{31, 30}}, []int64{10}, []int64{20, 10})
	got := m.List()
	want := []Entry{
		{10, TierSuper},
		{20, TierStatic},
		{30, TierDynamic},
		{31, TierDynamic},
	}
	if len(got) != len(want) {
		t.Fatalf("List() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("List()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}
