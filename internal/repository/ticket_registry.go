package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-tickets/internal/domain"
	"github.com/spec-kit/guild-tickets/internal/persistence"
	"github.com/spec-kit/guild-tickets/pkg/util/errorutil"
)

const mirrorCASAttempts = 8

// TicketRegistry owns the ticket set of a workspace and its id counter. The
// pure helpers operate on a config already inside a workspace critical
// section; the store-backed ones maintain the ticket:<ws>:<id> mirror.
type TicketRegistry struct {
	store   persistence.Store
	repo    WorkspaceRepository
	backoff time.Duration
	logger  *zap.Logger
}

// NewTicketRegistry wires the registry over the workspace repository.
func NewTicketRegistry(store persistence.Store, repo WorkspaceRepository, backoff time.Duration, logger *zap.Logger) *TicketRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketRegistry{store: store, repo: repo, backoff: backoff, logger: logger}
}

// AllocateID formats the next counter value and advances the counter. It is
// the only code that writes NextTicketNumber and must run inside
// WorkspaceRepository.Update so the increment lands in the same save as the
// ticket.
func AllocateID(cfg *domain.WorkspaceConfig) string {
	cfg.Normalize()
	n := cfg.NextTicketNumber
	// Skip past any id already present, e.g. after a manual restore.
	for {
		if _, taken := cfg.Tickets[domain.FormatTicketID(n)]; !taken {
			break
		}
		n++
	}
	cfg.NextTicketNumber = n + 1
	return domain.FormatTicketID(n)
}

// GetTicket returns the stored ticket or NOT_FOUND.
func GetTicket(cfg *domain.WorkspaceConfig, ticketID string) (*domain.Ticket, error) {
	t, ok := cfg.Tickets[ticketID]
	if !ok || t == nil {
		return nil, errorutil.NewNotFound("ticket", map[string]any{
			"workspace_id": cfg.WorkspaceID,
			"ticket_id":    ticketID,
		})
	}
	return t, nil
}

// OpenCountForOwner counts the owner's tickets that hold a quota slot.
func OpenCountForOwner(cfg *domain.WorkspaceConfig, ownerID string) int {
	n := 0
	for _, t := range cfg.Tickets {
		if t.OwnerID == ownerID && t.Status.Active() {
			n++
		}
	}
	return n
}

// ListByOwner returns copies of the owner's tickets ordered by id.
func ListByOwner(cfg *domain.WorkspaceConfig, ownerID string) []*domain.Ticket {
	out := make([]*domain.Ticket, 0)
	for _, t := range cfg.SortedTickets() {
		if t.OwnerID == ownerID {
			out = append(out, t.Clone())
		}
	}
	return out
}

// FindByConversation returns the ticket hosted by conversationRef, if any.
func FindByConversation(cfg *domain.WorkspaceConfig, conversationRef string) (*domain.Ticket, bool) {
	if conversationRef == "" {
		return nil, false
	}
	for _, t := range cfg.Tickets {
		if t.ConversationRef == conversationRef {
			return t, true
		}
	}
	return nil, false
}

// Lookup reads a single ticket through its mirror document, falling back to
// the authoritative workspace document when the mirror is missing or unreadable.
func (r *TicketRegistry) Lookup(ctx context.Context, workspaceID, ticketID string) (*domain.Ticket, error) {
	var entry persistence.Entry
	err := retryUnavailable(ctx, r.backoff, r.logger, "get", func() error {
		var err error
		entry, err = r.store.Get(ctx, persistence.TicketKey(workspaceID, ticketID))
		return err
	})
	if err == nil {
		var doc mirrorDocument
		if jsonErr := json.Unmarshal(entry.Value, &doc); jsonErr == nil && doc.ID == ticketID {
			return &doc.Ticket, nil
		}
		r.logger.Warn("ticket mirror unreadable, using workspace document",
			zap.String("workspace_id", workspaceID),
			zap.String("ticket_id", ticketID),
		)
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return nil, err
	}

	cfg, err := r.repo.Load(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	t, err := GetTicket(cfg, ticketID)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// mirrorDocument is the ticket:<ws>:<id> value: the ticket fields plus the
// workspace version they were read from.
type mirrorDocument struct {
	domain.Ticket
	WorkspaceVersion int64 `json:"workspaceVersion"`
}

// Mirror writes the denormalized ticket documents after a successful
// workspace save. workspaceVersion is the version that save produced; a
// mirror already stamped with a newer version is left alone, so writers that
// finish out of order never roll a mirror back. Failures are logged and never
// undo the save.
func (r *TicketRegistry) Mirror(ctx context.Context, workspaceID string, workspaceVersion int64, tickets ...*domain.Ticket) {
	for _, t := range tickets {
		if t == nil {
			continue
		}
		if err := r.writeMirror(ctx, workspaceID, workspaceVersion, t, false); err != nil {
			r.logger.Warn("failed to mirror ticket",
				zap.String("workspace_id", workspaceID),
				zap.String("ticket_id", t.ID),
				zap.Error(err),
			)
		}
	}
}

// writeMirror compare-and-sets the mirror of t. Unless force is set, the
// write is skipped when the stored mirror carries a workspace version at or
// above workspaceVersion.
func (r *TicketRegistry) writeMirror(ctx context.Context, workspaceID string, workspaceVersion int64, t *domain.Ticket, force bool) error {
	key := persistence.TicketKey(workspaceID, t.ID)
	payload, err := json.Marshal(mirrorDocument{Ticket: *t, WorkspaceVersion: workspaceVersion})
	if err != nil {
		return fmt.Errorf("encode ticket %s: %w", t.ID, err)
	}

	for attempt := 0; attempt < mirrorCASAttempts; attempt++ {
		var entry persistence.Entry
		err := retryUnavailable(ctx, r.backoff, r.logger, "get", func() error {
			var err error
			entry, err = r.store.Get(ctx, key)
			return err
		})
		switch {
		case errors.Is(err, persistence.ErrNotFound):
			entry = persistence.Entry{}
		case err != nil:
			return err
		case !force:
			var stored mirrorDocument
			if json.Unmarshal(entry.Value, &stored) == nil && stored.WorkspaceVersion >= workspaceVersion {
				r.logger.Debug("ticket mirror already newer, skipping",
					zap.String("workspace_id", workspaceID),
					zap.String("ticket_id", t.ID),
					zap.Int64("stored_version", stored.WorkspaceVersion),
					zap.Int64("version", workspaceVersion),
				)
				return nil
			}
		}

		err = retryUnavailable(ctx, r.backoff, r.logger, "compare-and-set", func() error {
			_, err := r.store.CompareAndSet(ctx, key, payload, entry.Version)
			return err
		})
		if !errors.Is(err, persistence.ErrVersionConflict) {
			return err
		}
	}
	return errorutil.NewStorageUnavailable(persistence.ErrVersionConflict)
}

// ReindexResult summarizes a mirror rebuild.
type ReindexResult struct {
	WorkspaceID string   `json:"workspaceId"`
	Written     int      `json:"written"`
	Removed     []string `json:"removed"`
}

// Reindex rewrites every mirror from the workspace document, whatever version
// the mirror carries, and deletes mirrors whose ticket no longer exists there.
func (r *TicketRegistry) Reindex(ctx context.Context, workspaceID string) (ReindexResult, error) {
	res := ReindexResult{WorkspaceID: workspaceID, Removed: []string{}}

	cfg, err := r.repo.Load(ctx, workspaceID)
	if err != nil {
		return res, err
	}
	for _, t := range cfg.SortedTickets() {
		if err := r.writeMirror(ctx, workspaceID, cfg.Version, t, true); err != nil {
			return res, err
		}
		res.Written++
	}

	var keys []string
	err = retryUnavailable(ctx, r.backoff, r.logger, "scan", func() error {
		var err error
		keys, err = r.store.Scan(ctx, persistence.TicketPattern(workspaceID))
		return err
	})
	if err != nil {
		return res, err
	}
	for _, k := range keys {
		id, ok := persistence.TicketIDFromKey(workspaceID, k)
		if !ok {
			continue
		}
		if _, exists := cfg.Tickets[id]; exists {
			continue
		}
		if err := retryUnavailable(ctx, r.backoff, r.logger, "delete", func() error {
			return r.store.Delete(ctx, k)
		}); err != nil {
			return res, err
		}
		res.Removed = append(res.Removed, id)
	}
	sort.Slice(res.Removed, func(i, j int) bool { return domain.TicketIDLess(res.Removed[i], res.Removed[j]) })

	r.logger.Info("ticket mirrors reindexed",
		zap.String("workspace_id", workspaceID),
		zap.Int("written", res.Written),
		zap.Int("removed", len(res.Removed)),
	)
	return res, nil
}
