package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-tickets/internal/domain"
	"github.com/spec-kit/guild-tickets/internal/persistence"
	"github.com/spec-kit/guild-tickets/pkg/util/errorutil"
)

// MutateFunc changes a freshly loaded workspace in place. Returning an error
// aborts the mutation without saving. It may run more than once when a
// concurrent writer wins the version race, so it must only touch cfg and
// state it resets itself.
type MutateFunc func(cfg *domain.WorkspaceConfig) error

// WorkspaceRepository persists one WorkspaceConfig document per tenant.
type WorkspaceRepository interface {
	Load(ctx context.Context, workspaceID string) (*domain.WorkspaceConfig, error)
	Save(ctx context.Context, workspaceID string, cfg *domain.WorkspaceConfig) error
	Update(ctx context.Context, workspaceID string, fn MutateFunc) (*domain.WorkspaceConfig, error)
	List(ctx context.Context) ([]string, error)
}

// Options tunes the repository retry policy.
type Options struct {
	Defaults       domain.Settings
	RetryBackoff   time.Duration
	MaxCASAttempts int
	Now            func() time.Time
}

type workspaceRepository struct {
	store    persistence.Store
	locks    *keyedMutex
	defaults domain.Settings
	backoff  time.Duration
	attempts int
	now      func() time.Time
	logger   *zap.Logger
}

// NewWorkspaceRepository instantiates repository.
func NewWorkspaceRepository(store persistence.Store, opts Options, logger *zap.Logger) WorkspaceRepository {
	if opts.MaxCASAttempts < 1 {
		opts.MaxCASAttempts = 8
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Defaults.MaxTicketsPerUser < 1 {
		opts.Defaults = domain.DefaultSettings()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &workspaceRepository{
		store:    store,
		locks:    newKeyedMutex(),
		defaults: opts.Defaults,
		backoff:  opts.RetryBackoff,
		attempts: opts.MaxCASAttempts,
		now:      opts.Now,
		logger:   logger,
	}
}

func (r *workspaceRepository) Load(ctx context.Context, workspaceID string) (*domain.WorkspaceConfig, error) {
	if workspaceID == "" {
		return nil, errorutil.NewValidationError("workspace id is required", nil)
	}

	key := persistence.WorkspaceKey(workspaceID)
	for attempt := 0; attempt < r.attempts; attempt++ {
		var entry persistence.Entry
		err := r.withRetry(ctx, "get", func() error {
			var err error
			entry, err = r.store.Get(ctx, key)
			return err
		})
		if err == nil {
			return decodeWorkspace(workspaceID, entry)
		}
		if !errors.Is(err, persistence.ErrNotFound) {
			return nil, err
		}

		cfg := domain.NewWorkspaceConfig(workspaceID, r.defaults, r.now().UTC())
		if err := r.Save(ctx, workspaceID, cfg); err != nil {
			if errors.Is(err, persistence.ErrVersionConflict) {
				// Another caller materialized it first; read theirs.
				continue
			}
			return nil, err
		}
		r.logger.Info("workspace initialized", zap.String("workspace_id", workspaceID))
		return cfg, nil
	}
	return nil, errorutil.NewStorageUnavailable(persistence.ErrVersionConflict)
}

func (r *workspaceRepository) Save(ctx context.Context, workspaceID string, cfg *domain.WorkspaceConfig) error {
	if cfg == nil {
		return errorutil.NewValidationError("workspace config is required", nil)
	}
	cfg.WorkspaceID = workspaceID
	cfg.Normalize()

	payload, err := json.Marshal(cfg)
	if err != nil {
		return errorutil.NewInternalError(fmt.Errorf("encode workspace %s: %w", workspaceID, err))
	}

	key := persistence.WorkspaceKey(workspaceID)
	var (
		version   int64
		attempted bool
	)
	err = r.withRetry(ctx, "compare-and-set", func() error {
		if attempted {
			// The failed attempt may have committed before reporting an error.
			if entry, err := r.store.Get(ctx, key); err == nil && entry.Version == cfg.Version+1 && sameDocument(entry.Value, payload) {
				version = entry.Version
				return nil
			}
		}
		attempted = true
		var err error
		version, err = r.store.CompareAndSet(ctx, key, payload, cfg.Version)
		return err
	})
	if err != nil {
		return err
	}
	cfg.Version = version
	return nil
}

func (r *workspaceRepository) Update(ctx context.Context, workspaceID string, fn MutateFunc) (*domain.WorkspaceConfig, error) {
	unlock := r.locks.Lock(workspaceID)
	defer unlock()

	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		cfg, err := r.Load(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
		if err := fn(cfg); err != nil {
			return nil, err
		}
		err = r.Save(ctx, workspaceID, cfg)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, persistence.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
		r.logger.Debug("workspace version conflict, retrying",
			zap.String("workspace_id", workspaceID),
			zap.Int("attempt", attempt),
		)
	}

	r.logger.Warn("workspace update gave up after repeated conflicts",
		zap.String("workspace_id", workspaceID),
		zap.Int("attempts", r.attempts),
	)
	return nil, errorutil.NewStorageUnavailable(lastErr)
}

func (r *workspaceRepository) List(ctx context.Context) ([]string, error) {
	var keys []string
	err := r.withRetry(ctx, "scan", func() error {
		var err error
		keys, err = r.store.Scan(ctx, persistence.WorkspacePattern())
		return err
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if id, ok := persistence.WorkspaceIDFromKey(k); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// withRetry runs call, retrying once after the backoff when the backend is
// unavailable. A second failure surfaces as STORAGE_UNAVAILABLE.
func (r *workspaceRepository) withRetry(ctx context.Context, op string, call func() error) error {
	return retryUnavailable(ctx, r.backoff, r.logger, op, call)
}

func retryUnavailable(ctx context.Context, backoff time.Duration, logger *zap.Logger, op string, call func() error) error {
	err := call()
	if !errors.Is(err, persistence.ErrUnavailable) {
		return translateStoreError(err)
	}

	logger.Warn("storage unavailable, retrying once", zap.String("op", op), zap.Error(err))
	if backoff > 0 {
		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return errorutil.NewStorageUnavailable(ctx.Err())
		}
	}

	err = call()
	if errors.Is(err, persistence.ErrUnavailable) {
		logger.Error("storage unavailable", zap.String("op", op), zap.Error(err))
		return errorutil.NewStorageUnavailable(err)
	}
	return translateStoreError(err)
}

func translateStoreError(err error) error {
	if errors.Is(err, persistence.ErrInvalidValue) {
		return errorutil.NewValidationError(err.Error(), nil)
	}
	return err
}

// sameDocument compares two JSON documents by value, so backends that
// re-encode stored JSON still compare equal.
func sameDocument(a, b []byte) bool {
	var da, db any
	if json.Unmarshal(a, &da) != nil || json.Unmarshal(b, &db) != nil {
		return false
	}
	return reflect.DeepEqual(da, db)
}

func decodeWorkspace(workspaceID string, entry persistence.Entry) (*domain.WorkspaceConfig, error) {
	var cfg domain.WorkspaceConfig
	if err := json.Unmarshal(entry.Value, &cfg); err != nil {
		return nil, errorutil.NewInternalError(fmt.Errorf("decode workspace %s: %w", workspaceID, err))
	}
	cfg.WorkspaceID = workspaceID
	cfg.Version = entry.Version
	cfg.Normalize()
	return &cfg, nil
}
