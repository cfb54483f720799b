package service

import (
	"context"
	"strings"
	"testing"

	"github.com/spec-kit/guild-tickets/internal/domain"
	"github.com/spec-kit/guild-tickets/pkg/util/errorutil"
)

var adminActor = domain.Actor{ID: "owner-of-guild", Admin: true}

func TestStaffRoster(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	admin := env("W1", adminActor)

	for _, id := range []string{"u1", "u2"} {
		if _, err := h.lifecycle.Create(ctx, domain.CreateTicket{Envelope: env("W1", member(id))}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := h.lifecycle.Close(ctx, domain.CloseTicket{Envelope: env("W1", member("u2")), TicketID: "0002"}); err != nil {
		t.Fatalf("close: %v", err)
	}

	out, err := h.admin.AddStaff(ctx, domain.AddStaff{Envelope: admin, TargetID: "alice"})
	if err != nil {
		t.Fatalf("add staff: %v", err)
	}
	if len(out.Staff.Members) != 1 || out.Staff.Members[0] != "alice" {
		t.Fatalf("unexpected roster %+v", out.Staff)
	}
	// only the live ticket gets a grant
	if len(out.Effects) != 1 || out.Effects[0].TicketID != "0001" || out.Effects[0].Type != domain.EffectGrantAccess {
		t.Fatalf("unexpected effects %+v", out.Effects)
	}

	_, err = h.admin.AddStaff(ctx, domain.AddStaff{Envelope: admin, TargetID: "alice"})
	expectCode(t, err, errorutil.CodeConflict)

	// new staff can act immediately
	if _, err := h.lifecycle.Claim(ctx, domain.ClaimTicket{Envelope: env("W1", member("alice")), TicketID: "0001"}); err != nil {
		t.Fatalf("claim by new staff: %v", err)
	}

	out, err = h.admin.RemoveStaff(ctx, domain.RemoveStaff{Envelope: admin, TargetID: "alice"})
	if err != nil {
		t.Fatalf("remove staff: %v", err)
	}
	if len(out.Staff.Members) != 0 || len(out.Effects) != 1 || out.Effects[0].Type != domain.EffectRevokeAccess {
		t.Fatalf("unexpected remove outcome %+v", out)
	}
	_, err = h.admin.RemoveStaff(ctx, domain.RemoveStaff{Envelope: admin, TargetID: "alice"})
	expectCode(t, err, errorutil.CodeNotFound)

	_, err = h.admin.AddStaff(ctx, domain.AddStaff{Envelope: env("W1", member("u1")), TargetID: "u1"})
	expectCode(t, err, errorutil.CodePermissionDenied)
}

func TestRemoveStaff_KeepsOwnTickets(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedStaff(t, "W1", "alice")
	if _, err := h.lifecycle.Create(ctx, domain.CreateTicket{Envelope: env("W1", member("alice"))}); err != nil {
		t.Fatalf("create: %v", err)
	}
	out, err := h.admin.RemoveStaff(ctx, domain.RemoveStaff{Envelope: env("W1", adminActor), TargetID: "alice"})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(out.Effects) != 0 {
		t.Fatalf("owner must keep access to their ticket, got %+v", out.Effects)
	}
}

func TestStaffRoles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	admin := env("W1", adminActor)

	out, err := h.admin.AddStaffRole(ctx, domain.AddStaffRole{Envelope: admin, RoleID: "role-support"})
	if err != nil {
		t.Fatalf("add role: %v", err)
	}
	if len(out.Staff.Roles) != 1 {
		t.Fatalf("unexpected roster %+v", out.Staff)
	}
	_, err = h.admin.AddStaffRole(ctx, domain.AddStaffRole{Envelope: admin, RoleID: "role-support"})
	expectCode(t, err, errorutil.CodeConflict)

	roster, err := h.admin.ListStaff(ctx, domain.ListStaff{Envelope: env("W1", domain.Actor{ID: "bob", Roles: []string{"role-support"}})})
	if err != nil {
		t.Fatalf("list staff as role holder: %v", err)
	}
	if roster.Staff.Roles[0] != "role-support" {
		t.Fatalf("unexpected roster %+v", roster.Staff)
	}

	if _, err := h.admin.RemoveStaffRole(ctx, domain.RemoveStaffRole{Envelope: admin, RoleID: "role-support"}); err != nil {
		t.Fatalf("remove role: %v", err)
	}
	_, err = h.admin.RemoveStaffRole(ctx, domain.RemoveStaffRole{Envelope: admin, RoleID: "role-support"})
	expectCode(t, err, errorutil.CodeNotFound)

	_, err = h.admin.ListStaff(ctx, domain.ListStaff{Envelope: env("W1", domain.Actor{ID: "bob", Roles: []string{"role-support"}})})
	expectCode(t, err, errorutil.CodePermissionDenied)
}

func TestConfigureSetting(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	admin := env("W1", adminActor)

	cases := []struct {
		key, value string
		code       string
		check      func(domain.Settings) bool
	}{
		{"max_tickets", "5", "", func(s domain.Settings) bool { return s.MaxTicketsPerUser == 5 }},
		{"max_tickets", "0", errorutil.CodeValidationFailed, nil},
		{"max_tickets", "many", errorutil.CodeValidationFailed, nil},
		{"ticket_prefix", "help-", "", func(s domain.Settings) bool { return s.TicketPrefix == "help-" }},
		{"LOGS_CHANNEL", "audit", "", func(s domain.Settings) bool { return s.LogsChannelName == "audit" }},
		{"category_name", strings.Repeat("x", 101), errorutil.CodeValidationFailed, nil},
		{"auto_create_staff_role", "true", "", func(s domain.Settings) bool { return s.AutoCreateStaffRole }},
		{"auto_create_staff_role", "maybe", errorutil.CodeValidationFailed, nil},
		{"ticket_prefix", "", "", func(s domain.Settings) bool { return s.TicketPrefix == "ticket-" }},
		{"colour", "red", errorutil.CodeNotFound, nil},
	}
	for _, tc := range cases {
		out, err := h.admin.ConfigureSetting(ctx, domain.ConfigureSetting{Envelope: admin, Key: tc.key, Value: tc.value})
		if tc.code != "" {
			expectCode(t, err, tc.code)
			continue
		}
		if err != nil {
			t.Fatalf("%s=%q: %v", tc.key, tc.value, err)
		}
		if !tc.check(*out.Settings) {
			t.Errorf("%s=%q not applied: %+v", tc.key, tc.value, out.Settings)
		}
	}

	// the new quota governs creates
	for i := 0; i < 5; i++ {
		if _, err := h.lifecycle.Create(ctx, domain.CreateTicket{Envelope: env("W1", member("u1"))}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	_, err := h.lifecycle.Create(ctx, domain.CreateTicket{Envelope: env("W1", member("u1"))})
	expectCode(t, err, errorutil.CodeQuotaExceeded)

	h.seedStaff(t, "W1", "staffA")
	_, err = h.admin.ConfigureSetting(ctx, domain.ConfigureSetting{Envelope: env("W1", member("staffA")), Key: "max_tickets", Value: "9"})
	expectCode(t, err, errorutil.CodePermissionDenied)
}

func TestConfigureSetting_ResetWithoutDefaultsKeepsQuotaValid(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	admin := NewWorkspaceAdmin(AdminDependencies{Workspaces: h.repo, Permissions: h.admin.guard.perms})

	if _, err := admin.ConfigureSetting(ctx, domain.ConfigureSetting{Envelope: env("W1", adminActor), Key: "max_tickets", Value: "7"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	out, err := admin.ConfigureSetting(ctx, domain.ConfigureSetting{Envelope: env("W1", adminActor), Key: "max_tickets", Value: ""})
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if want := domain.DefaultSettings().MaxTicketsPerUser; out.Settings.MaxTicketsPerUser != want {
		t.Fatalf("expected quota %d after reset, got %d", want, out.Settings.MaxTicketsPerUser)
	}
	if _, err := h.lifecycle.Create(ctx, domain.CreateTicket{Envelope: env("W1", member("u1"))}); err != nil {
		t.Fatalf("create after reset: %v", err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedStaff(t, "W1", "staffA", "staffB")
	staffA := env("W1", member("staffA"))

	for _, owner := range []string{"u1", "u2", "u3", "u4"} {
		if _, err := h.lifecycle.Create(ctx, domain.CreateTicket{Envelope: env("W1", member(owner))}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	steps := []func() error{
		func() error {
			_, err := h.lifecycle.Claim(ctx, domain.ClaimTicket{Envelope: staffA, TicketID: "0001"})
			return err
		},
		func() error {
			_, err := h.lifecycle.Claim(ctx, domain.ClaimTicket{Envelope: staffA, TicketID: "0002"})
			return err
		},
		func() error {
			_, err := h.lifecycle.Close(ctx, domain.CloseTicket{Envelope: staffA, TicketID: "0002"})
			return err
		},
		func() error {
			_, err := h.lifecycle.Close(ctx, domain.CloseTicket{Envelope: staffA, TicketID: "0003"})
			return err
		},
		func() error {
			_, err := h.lifecycle.Reopen(ctx, domain.ReopenTicket{Envelope: staffA, TicketID: "0003"})
			return err
		},
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	out, err := h.admin.Stats(ctx, domain.QueryStats{Envelope: env("W1", adminActor)})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := domain.Stats{Total: 4, Open: 2, Claimed: 2, Closed: 1, Reopened: 1, StaffCount: 2}
	if *out.Stats != want {
		t.Fatalf("stats = %+v, want %+v", *out.Stats, want)
	}

	_, err = h.admin.Stats(ctx, domain.QueryStats{Envelope: staffA})
	expectCode(t, err, errorutil.CodePermissionDenied)
}
