package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-tickets/internal/auth"
	"github.com/spec-kit/guild-tickets/internal/config"
	"github.com/spec-kit/guild-tickets/internal/domain"
	"github.com/spec-kit/guild-tickets/internal/persistence"
)

func newTestToolkit(t *testing.T) (*toolkit, *bytes.Buffer, persistence.Store) {
	t.Helper()
	store, err := persistence.NewSQLiteStore(t.TempDir() + "/tickets.db")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	var out bytes.Buffer
	tk, err := newToolkit(store, domain.DefaultSettings(), config.StorageConfig{MaxCASAttempts: 8}, zap.NewNop(), &out)
	if err != nil {
		t.Fatalf("toolkit: %v", err)
	}
	return tk, &out, store
}

func seedTickets(t *testing.T, tk *toolkit, ws string, n int) {
	t.Helper()
	_, err := tk.workspaces.Update(context.Background(), ws, func(cfg *domain.WorkspaceConfig) error {
		for i := 0; i < n; i++ {
			id := domain.FormatTicketID(cfg.NextTicketNumber)
			cfg.NextTicketNumber++
			cfg.Tickets[id] = &domain.Ticket{ID: id, WorkspaceID: ws, OwnerID: "u1", Status: domain.TicketStatusOpen}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestCommands_StatsDumpSet(t *testing.T) {
	ctx := context.Background()
	tk, out, _ := newTestToolkit(t)
	seedTickets(t, tk, "W1", 2)

	if err := tk.dispatch(ctx, "stats", []string{"W1"}); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out.String(), "total") || !strings.Contains(out.String(), "2") {
		t.Fatalf("unexpected stats output %q", out.String())
	}

	out.Reset()
	if err := tk.dispatch(ctx, "set", []string{"W1", "max_tickets", "7"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	var settings domain.Settings
	if err := json.Unmarshal(out.Bytes(), &settings); err != nil || settings.MaxTicketsPerUser != 7 {
		t.Fatalf("unexpected set output %q (%v)", out.String(), err)
	}

	out.Reset()
	if err := tk.dispatch(ctx, "dump", []string{"W1"}); err != nil {
		t.Fatalf("dump: %v", err)
	}
	var cfg domain.WorkspaceConfig
	if err := json.Unmarshal(out.Bytes(), &cfg); err != nil {
		t.Fatalf("dump is not JSON: %v", err)
	}
	if len(cfg.Tickets) != 2 || cfg.Settings.MaxTicketsPerUser != 7 || cfg.NextTicketNumber != 3 {
		t.Fatalf("unexpected dump %+v", cfg)
	}

	if err := tk.dispatch(ctx, "set", []string{"W1", "nonsense", "1"}); err == nil {
		t.Fatal("unknown setting must fail")
	}
	if err := tk.dispatch(ctx, "frobnicate", nil); err == nil {
		t.Fatal("unknown command must fail")
	}
}

func TestCommands_ReindexAll(t *testing.T) {
	ctx := context.Background()
	tk, out, store := newTestToolkit(t)
	seedTickets(t, tk, "W1", 3)
	seedTickets(t, tk, "W2", 1)

	if err := tk.dispatch(ctx, "reindex", nil); err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if !strings.Contains(out.String(), "W1: wrote 3") || !strings.Contains(out.String(), "W2: wrote 1") {
		t.Fatalf("unexpected reindex output %q", out.String())
	}
	if _, err := store.Get(ctx, persistence.TicketKey("W1", "0003")); err != nil {
		t.Fatalf("mirror missing: %v", err)
	}

	out.Reset()
	if err := tk.dispatch(ctx, "workspaces", nil); err != nil {
		t.Fatalf("workspaces: %v", err)
	}
	if out.String() != "W1\nW2\n" {
		t.Fatalf("unexpected workspace list %q", out.String())
	}
}

func TestRun_HashSecret(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"--cost", "4", "hash-secret", "s3cret"}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	hash := strings.TrimSpace(out.String())
	if err := auth.CompareSecret(hash, "s3cret"); err != nil {
		t.Fatalf("printed hash does not verify: %v", err)
	}
	if err := run(nil, &bytes.Buffer{}); err == nil {
		t.Fatal("missing command must fail")
	}
}
