package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spec-kit/guild-tickets/internal/domain"
	"github.com/spec-kit/guild-tickets/internal/persistence"
	"github.com/spec-kit/guild-tickets/pkg/util/errorutil"
)

// flakyStore fails the next n calls of every operation with ErrUnavailable.
type flakyStore struct {
	*persistence.MemoryStore
	failures atomic.Int32
	calls    atomic.Int32
}

func (s *flakyStore) fail() error {
	s.calls.Add(1)
	if s.failures.Load() > 0 {
		s.failures.Add(-1)
		return persistence.Unavailable(errors.New("connection reset"))
	}
	return nil
}

func (s *flakyStore) Get(ctx context.Context, key string) (persistence.Entry, error) {
	if err := s.fail(); err != nil {
		return persistence.Entry{}, err
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *flakyStore) CompareAndSet(ctx context.Context, key string, value []byte, expected int64) (int64, error) {
	if err := s.fail(); err != nil {
		return 0, err
	}
	return s.MemoryStore.CompareAndSet(ctx, key, value, expected)
}

// lostAckStore commits the next armed CompareAndSet and then reports it as
// unavailable, the way a timeout after a successful write looks to callers.
type lostAckStore struct {
	*persistence.MemoryStore
	armed atomic.Bool
}

func (s *lostAckStore) CompareAndSet(ctx context.Context, key string, value []byte, expected int64) (int64, error) {
	version, err := s.MemoryStore.CompareAndSet(ctx, key, value, expected)
	if err == nil && s.armed.CompareAndSwap(true, false) {
		return 0, persistence.Unavailable(errors.New("deadline exceeded"))
	}
	return version, err
}

func newTestRepository(store persistence.Store) WorkspaceRepository {
	return NewWorkspaceRepository(store, Options{}, nil)
}

func TestLoad_MaterializesDefaults(t *testing.T) {
	store := persistence.NewMemoryStore()
	repo := newTestRepository(store)

	cfg, err := repo.Load(context.Background(), "w1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NextTicketNumber != 1 {
		t.Errorf("expected counter 1, got %d", cfg.NextTicketNumber)
	}
	if cfg.Settings != domain.DefaultSettings() {
		t.Errorf("unexpected settings %+v", cfg.Settings)
	}
	if cfg.Version != 1 {
		t.Errorf("expected version 1, got %d", cfg.Version)
	}

	if _, err := store.Get(context.Background(), persistence.WorkspaceKey("w1")); err != nil {
		t.Fatalf("default document was not persisted: %v", err)
	}
}

func TestLoad_UsesConfiguredDefaults(t *testing.T) {
	defaults := domain.DefaultSettings()
	defaults.MaxTicketsPerUser = 7
	repo := NewWorkspaceRepository(persistence.NewMemoryStore(), Options{Defaults: defaults}, nil)

	cfg, err := repo.Load(context.Background(), "w1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Settings.MaxTicketsPerUser != 7 {
		t.Errorf("expected quota 7, got %d", cfg.Settings.MaxTicketsPerUser)
	}
}

func TestLoad_RejectsEmptyWorkspace(t *testing.T) {
	repo := newTestRepository(persistence.NewMemoryStore())
	if _, err := repo.Load(context.Background(), ""); !errorutil.HasCode(err, errorutil.CodeValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoad_ConcurrentFirstReferenceAgree(t *testing.T) {
	store := persistence.NewMemoryStore()
	repo := newTestRepository(store)

	const callers = 16
	var wg sync.WaitGroup
	created := make([]time.Time, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg, err := repo.Load(context.Background(), "w1")
			errs[i] = err
			if err == nil {
				created[i] = cfg.CreatedAt
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
		if !created[i].Equal(created[0]) {
			t.Fatalf("callers observed different documents: %s vs %s", created[i], created[0])
		}
	}
}

func TestSave_StaleVersionConflicts(t *testing.T) {
	repo := newTestRepository(persistence.NewMemoryStore())
	ctx := context.Background()

	a, _ := repo.Load(ctx, "w1")
	b, _ := repo.Load(ctx, "w1")

	a.AddStaffMember("alice")
	if err := repo.Save(ctx, "w1", a); err != nil {
		t.Fatalf("first save: %v", err)
	}

	b.AddStaffMember("bob")
	if err := repo.Save(ctx, "w1", b); !errors.Is(err, persistence.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	cur, _ := repo.Load(ctx, "w1")
	if !cur.HasStaffMember("alice") || cur.HasStaffMember("bob") {
		t.Fatalf("stale save must not land: %v", cur.StaffMembers)
	}
}

func TestUpdate_NoLostUpdates(t *testing.T) {
	repo := newTestRepository(persistence.NewMemoryStore())
	ctx := context.Background()

	const writers = 25
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Update(ctx, "w1", func(cfg *domain.WorkspaceConfig) error {
				cfg.AddStaffMember(fmt.Sprintf("staff-%02d", i))
				return nil
			})
			if err != nil {
				t.Errorf("update %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	cfg, _ := repo.Load(ctx, "w1")
	if len(cfg.StaffMembers) != writers {
		t.Fatalf("expected %d staff members, got %d", writers, len(cfg.StaffMembers))
	}
}

func TestUpdate_SeparateRepositoriesShareBackend(t *testing.T) {
	store := persistence.NewMemoryStore()
	ctx := context.Background()

	// Two repositories model two processes: only the store's version stamp
	// serializes them.
	opts := Options{MaxCASAttempts: 100}
	repos := []WorkspaceRepository{
		NewWorkspaceRepository(store, opts, nil),
		NewWorkspaceRepository(store, opts, nil),
	}

	const perRepo = 20
	var wg sync.WaitGroup
	for r, repo := range repos {
		for i := 0; i < perRepo; i++ {
			wg.Add(1)
			go func(repo WorkspaceRepository, id string) {
				defer wg.Done()
				if _, err := repo.Update(ctx, "w1", func(cfg *domain.WorkspaceConfig) error {
					AllocateID(cfg)
					cfg.AddStaffMember(id)
					return nil
				}); err != nil {
					t.Errorf("update %s: %v", id, err)
				}
			}(repo, fmt.Sprintf("r%d-%02d", r, i))
		}
	}
	wg.Wait()

	cfg, _ := repos[0].Load(ctx, "w1")
	if cfg.NextTicketNumber != 1+2*perRepo {
		t.Fatalf("expected counter %d, got %d", 1+2*perRepo, cfg.NextTicketNumber)
	}
	if len(cfg.StaffMembers) != 2*perRepo {
		t.Fatalf("expected %d members, got %d", 2*perRepo, len(cfg.StaffMembers))
	}
}

func TestUpdate_ErrorAbortsWithoutSaving(t *testing.T) {
	repo := newTestRepository(persistence.NewMemoryStore())
	ctx := context.Background()

	boom := errorutil.NewInvalidState("nope", nil)
	_, err := repo.Update(ctx, "w1", func(cfg *domain.WorkspaceConfig) error {
		cfg.AddStaffMember("ghost")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutation error, got %v", err)
	}

	cfg, _ := repo.Load(ctx, "w1")
	if cfg.HasStaffMember("ghost") {
		t.Fatal("aborted mutation was persisted")
	}
}

func TestUpdate_ReleasesLocks(t *testing.T) {
	repo := NewWorkspaceRepository(persistence.NewMemoryStore(), Options{}, nil).(*workspaceRepository)
	for _, ws := range []string{"a", "b", "c"} {
		if _, err := repo.Update(context.Background(), ws, func(*domain.WorkspaceConfig) error { return nil }); err != nil {
			t.Fatalf("update %s: %v", ws, err)
		}
	}
	if n := repo.locks.size(); n != 0 {
		t.Fatalf("expected lock table to drain, %d entries left", n)
	}
}

func TestRetry_TransientFailureRecovers(t *testing.T) {
	store := &flakyStore{MemoryStore: persistence.NewMemoryStore()}
	repo := newTestRepository(store)

	store.failures.Store(1)
	if _, err := repo.Load(context.Background(), "w1"); err != nil {
		t.Fatalf("single failure should be retried, got %v", err)
	}
}

func TestRetry_PersistentFailureSurfaces(t *testing.T) {
	store := &flakyStore{MemoryStore: persistence.NewMemoryStore()}
	repo := newTestRepository(store)

	store.failures.Store(2)
	_, err := repo.Load(context.Background(), "w1")
	if !errorutil.HasCode(err, errorutil.CodeStorageUnavailable) {
		t.Fatalf("expected STORAGE_UNAVAILABLE, got %v", err)
	}
	if got := store.calls.Load(); got != 2 {
		t.Fatalf("expected exactly one retry (2 calls), got %d", got)
	}
}

func TestList(t *testing.T) {
	repo := newTestRepository(persistence.NewMemoryStore())
	ctx := context.Background()
	for _, ws := range []string{"beta", "alpha"} {
		if _, err := repo.Load(ctx, ws); err != nil {
			t.Fatalf("load %s: %v", ws, err)
		}
	}

	ids, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "beta" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestUpdate_CommittedWriteWithLostAckIsNotReapplied(t *testing.T) {
	ctx := context.Background()
	store := &lostAckStore{MemoryStore: persistence.NewMemoryStore()}
	repo := newTestRepository(store)

	before, err := repo.Load(ctx, "w1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	store.armed.Store(true)
	var runs int
	cfg, err := repo.Update(ctx, "w1", func(cfg *domain.WorkspaceConfig) error {
		runs++
		if !cfg.AddStaffMember("alice") {
			return errorutil.NewConflict("already staff", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if runs != 1 {
		t.Fatalf("mutation ran %d times", runs)
	}
	if cfg.Version != before.Version+1 {
		t.Fatalf("expected version %d, got %d", before.Version+1, cfg.Version)
	}
	if !cfg.HasStaffMember("alice") {
		t.Fatalf("unexpected roster %v", cfg.StaffMembers)
	}
}
