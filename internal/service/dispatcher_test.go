package service

import (
	"context"
	"errors"
	"testing"

	"github.com/spec-kit/guild-tickets/internal/domain"
	"github.com/spec-kit/guild-tickets/internal/events"
	"github.com/spec-kit/guild-tickets/internal/observability"
	"github.com/spec-kit/guild-tickets/pkg/util/errorutil"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *harness, *[]events.Event, *observability.Metrics) {
	t.Helper()
	h := newHarness(t)
	bus := events.NewInMemoryDispatcher()
	var seen []events.Event
	events.SubscribeAll(bus, func(_ context.Context, e events.Event) error {
		seen = append(seen, e)
		return nil
	})
	metrics := observability.NewMetrics()
	d := NewDispatcher(DispatcherDependencies{
		Lifecycle: h.lifecycle,
		Admin:     h.admin,
		Events:    bus,
		Metrics:   metrics,
	})
	return d, h, &seen, metrics
}

func TestDispatch_RoutesEveryIntent(t *testing.T) {
	ctx := context.Background()
	d, h, seen, _ := newTestDispatcher(t)
	h.seedStaff(t, "W1", "staffA")
	user := env("W1", member("u1"))
	staff := env("W1", member("staffA"))
	admin := env("W1", adminActor)

	intents := []domain.Intent{
		domain.CreateTicket{Envelope: user, Reason: "help"},
		domain.ClaimTicket{Envelope: staff, TicketID: "0001"},
		domain.AddParticipant{Envelope: staff, TicketID: "0001", TargetID: "u2"},
		domain.RemoveParticipant{Envelope: staff, TicketID: "0001", TargetID: "u2"},
		domain.CloseTicket{Envelope: staff, TicketID: "0001", Reason: "done"},
		domain.ReopenTicket{Envelope: staff, TicketID: "0001"},
		domain.ConfigureSetting{Envelope: admin, Key: "max_tickets", Value: "4"},
		domain.AddStaff{Envelope: admin, TargetID: "alice"},
		domain.RemoveStaff{Envelope: admin, TargetID: "alice"},
		domain.AddStaffRole{Envelope: admin, RoleID: "role-x"},
		domain.RemoveStaffRole{Envelope: admin, RoleID: "role-x"},
		domain.QueryStats{Envelope: admin},
		domain.QueryTicket{Envelope: user, TicketID: "0001"},
		domain.QueryOwnerTickets{Envelope: user},
		domain.ListStaff{Envelope: staff},
	}
	if len(intents) != len(domain.AllIntentKinds()) {
		t.Fatalf("test covers %d intents, domain has %d", len(intents), len(domain.AllIntentKinds()))
	}
	for _, in := range intents {
		if _, err := d.Dispatch(ctx, in); err != nil {
			t.Fatalf("%s: %v", in.Kind(), err)
		}
	}

	wantTypes := []events.EventType{
		events.EventTicketCreated,
		events.EventTicketClaimed,
		events.EventParticipantAdded,
		events.EventParticipantRemoved,
		events.EventTicketClosed,
		events.EventTicketReopened,
		events.EventWorkspaceUpdated,
		events.EventWorkspaceUpdated,
		events.EventWorkspaceUpdated,
		events.EventWorkspaceUpdated,
		events.EventWorkspaceUpdated,
	}
	if len(*seen) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d", len(wantTypes), len(*seen))
	}
	for i, e := range *seen {
		if e.Type != wantTypes[i] {
			t.Errorf("event %d: got %s want %s", i, e.Type, wantTypes[i])
		}
		if e.ID == "" || e.WorkspaceID != "W1" || e.Timestamp.IsZero() {
			t.Errorf("event %d missing envelope fields: %+v", i, e)
		}
	}

	created := (*seen)[0]
	if created.TicketID != "0001" || created.Actor.ID != "u1" || len(created.Effects) != 3 {
		t.Fatalf("unexpected created event %+v", created)
	}
}

func TestDispatch_RejectionsPublishNothing(t *testing.T) {
	ctx := context.Background()
	d, _, seen, metrics := newTestDispatcher(t)

	_, err := d.Dispatch(ctx, domain.ClaimTicket{Envelope: env("W1", member("u1")), TicketID: "0001"})
	expectCode(t, err, errorutil.CodePermissionDenied)

	_, err = d.Dispatch(ctx, domain.QueryStats{Envelope: domain.Envelope{Actor: adminActor}})
	expectCode(t, err, errorutil.CodeValidationFailed)

	_, err = d.Dispatch(ctx, nil)
	expectCode(t, err, errorutil.CodeValidationFailed)

	if len(*seen) != 0 {
		t.Fatalf("rejected intents must not publish, got %+v", *seen)
	}
	snap := metrics.Snapshot()
	if snap.Intents["claim_ticket|PERMISSION_DENIED"] != 1 {
		t.Fatalf("rejection not counted: %+v", snap.Intents)
	}
}

func TestDispatch_EventFailureDoesNotFailIntent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	bus := events.NewInMemoryDispatcher()
	bus.Subscribe(events.EventTicketCreated, func(context.Context, events.Event) error {
		return errors.New("broker down")
	})
	d := NewDispatcher(DispatcherDependencies{Lifecycle: h.lifecycle, Admin: h.admin, Events: bus})

	out, err := d.Dispatch(ctx, domain.CreateTicket{Envelope: env("W1", member("u1"))})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	cfg, _ := h.repo.Load(ctx, "W1")
	if _, ok := cfg.Tickets[out.Ticket.ID]; !ok {
		t.Fatal("ticket must persist even when delivery fails")
	}
}
