package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-tickets/internal/auth"
	"github.com/spec-kit/guild-tickets/internal/config"
	"github.com/spec-kit/guild-tickets/internal/domain"
	"github.com/spec-kit/guild-tickets/internal/persistence"
	"github.com/spec-kit/guild-tickets/internal/repository"
	"github.com/spec-kit/guild-tickets/internal/service"
)

// operatorActor is the identity ticketctl uses for administrative intents.
var operatorActor = domain.Actor{ID: "ticketctl", Admin: true}

type toolkit struct {
	workspaces repository.WorkspaceRepository
	registry   *repository.TicketRegistry
	admin      *service.WorkspaceAdmin
	out        io.Writer
}

func newToolkit(store persistence.Store, defaults domain.Settings, storage config.StorageConfig, logger *zap.Logger, out io.Writer) (*toolkit, error) {
	perms, err := auth.NewPermissions()
	if err != nil {
		return nil, err
	}
	workspaces := repository.NewWorkspaceRepository(store, repository.Options{
		Defaults:       defaults,
		RetryBackoff:   storage.RetryBackoff(),
		MaxCASAttempts: storage.MaxCASAttempts,
	}, logger)
	return &toolkit{
		workspaces: workspaces,
		registry:   repository.NewTicketRegistry(store, workspaces, storage.RetryBackoff(), logger),
		admin: service.NewWorkspaceAdmin(service.AdminDependencies{
			Workspaces:  workspaces,
			Permissions: perms,
			Defaults:    defaults,
			Logger:      logger,
		}),
		out: out,
	}, nil
}

func (tk *toolkit) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "workspaces":
		return tk.listWorkspaces(ctx)
	case "stats":
		if len(args) != 1 {
			return fmt.Errorf("stats takes exactly one workspace")
		}
		return tk.stats(ctx, args[0])
	case "dump":
		if len(args) != 1 {
			return fmt.Errorf("dump takes exactly one workspace")
		}
		return tk.dump(ctx, args[0])
	case "set":
		if len(args) < 2 || len(args) > 3 {
			return fmt.Errorf("set takes <workspace> <key> [value]")
		}
		value := ""
		if len(args) == 3 {
			value = args[2]
		}
		return tk.set(ctx, args[0], args[1], value)
	case "reindex":
		return tk.reindex(ctx, args)
	}
	return fmt.Errorf("unknown command %q", command)
}

func (tk *toolkit) listWorkspaces(ctx context.Context) error {
	ids, err := tk.workspaces.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(tk.out, id)
	}
	return nil
}

func (tk *toolkit) stats(ctx context.Context, workspaceID string) error {
	out, err := tk.admin.Stats(ctx, domain.QueryStats{Envelope: domain.Envelope{WorkspaceID: workspaceID, Actor: operatorActor}})
	if err != nil {
		return err
	}
	s := out.Stats
	w := tabwriter.NewWriter(tk.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "total\t%d\n", s.Total)
	fmt.Fprintf(w, "open\t%d\n", s.Open)
	fmt.Fprintf(w, "claimed\t%d\n", s.Claimed)
	fmt.Fprintf(w, "closed\t%d\n", s.Closed)
	fmt.Fprintf(w, "reopened\t%d\n", s.Reopened)
	fmt.Fprintf(w, "staff\t%d\n", s.StaffCount)
	fmt.Fprintf(w, "staff roles\t%d\n", s.StaffRoleCount)
	return w.Flush()
}

func (tk *toolkit) dump(ctx context.Context, workspaceID string) error {
	cfg, err := tk.workspaces.Load(ctx, workspaceID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(tk.out)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

func (tk *toolkit) set(ctx context.Context, workspaceID, key, value string) error {
	out, err := tk.admin.ConfigureSetting(ctx, domain.ConfigureSetting{
		Envelope: domain.Envelope{WorkspaceID: workspaceID, Actor: operatorActor},
		Key:      key,
		Value:    value,
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(tk.out)
	enc.SetIndent("", "  ")
	return enc.Encode(out.Settings)
}

func (tk *toolkit) reindex(ctx context.Context, workspaceIDs []string) error {
	if len(workspaceIDs) == 0 {
		ids, err := tk.workspaces.List(ctx)
		if err != nil {
			return err
		}
		workspaceIDs = ids
	}
	for _, id := range workspaceIDs {
		res, err := tk.registry.Reindex(ctx, id)
		if err != nil {
			return fmt.Errorf("reindex %s: %w", id, err)
		}
		fmt.Fprintf(tk.out, "%s: wrote %d, removed %d\n", res.WorkspaceID, res.Written, len(res.Removed))
	}
	return nil
}
