package dto

import (
	"testing"

	"github.com/spec-kit/guild-tickets/internal/domain"
	"github.com/spec-kit/guild-tickets/pkg/util/errorutil"
)

func TestDecodeIntent(t *testing.T) {
	cases := []struct {
		name string
		body string
		want domain.Intent
	}{
		{
			name: "create",
			body: `{"type":"create_ticket","workspaceId":"W1","actor":{"id":"u1","roles":["r1"]},"category":"billing","reason":"help"}`,
			want: domain.CreateTicket{
				Envelope: domain.Envelope{WorkspaceID: "W1", Actor: domain.Actor{ID: "u1", Roles: []string{"r1"}}},
				Category: "billing",
				Reason:   "help",
			},
		},
		{
			name: "claim",
			body: `{"type":"claim_ticket","workspaceId":"W1","actor":{"id":"s1"},"ticketId":"0001"}`,
			want: domain.ClaimTicket{Envelope: domain.Envelope{WorkspaceID: "W1", Actor: domain.Actor{ID: "s1"}}, TicketID: "0001"},
		},
		{
			name: "configure with empty value",
			body: `{"type":"configure_setting","workspaceId":"W1","actor":{"id":"a","admin":true},"key":"ticket_prefix","value":""}`,
			want: domain.ConfigureSetting{Envelope: domain.Envelope{WorkspaceID: "W1", Actor: domain.Actor{ID: "a", Admin: true}}, Key: "ticket_prefix"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeIntent([]byte(tc.body))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Kind() != tc.want.Kind() || got.Workspace() != tc.want.Workspace() || got.Principal().ID != tc.want.Principal().ID {
				t.Fatalf("got %#v want %#v", got, tc.want)
			}
			switch w := tc.want.(type) {
			case domain.CreateTicket:
				g := got.(domain.CreateTicket)
				if g.Category != w.Category || g.Reason != w.Reason || len(g.Actor.Roles) != 1 {
					t.Fatalf("got %#v", g)
				}
			case domain.ClaimTicket:
				if got.(domain.ClaimTicket).TicketID != w.TicketID {
					t.Fatalf("got %#v", got)
				}
			case domain.ConfigureSetting:
				g := got.(domain.ConfigureSetting)
				if g.Key != w.Key || g.Value != "" || !g.Actor.Admin {
					t.Fatalf("got %#v", g)
				}
			}
		})
	}
}

func TestDecodeIntent_Rejects(t *testing.T) {
	bodies := map[string]string{
		"not json":          `{`,
		"unknown type":      `{"type":"delete_everything","workspaceId":"W1","actor":{"id":"u1"}}`,
		"missing actor":     `{"type":"query_stats","workspaceId":"W1"}`,
		"empty workspace":   `{"type":"query_stats","workspaceId":"","actor":{"id":"u1"}}`,
		"claim without id":  `{"type":"claim_ticket","workspaceId":"W1","actor":{"id":"u1"}}`,
		"malformed id":      `{"type":"claim_ticket","workspaceId":"W1","actor":{"id":"u1"},"ticketId":"abc"}`,
		"participant no id": `{"type":"add_participant","workspaceId":"W1","actor":{"id":"u1"},"ticketId":"0001"}`,
		"unexpected field":  `{"type":"query_stats","workspaceId":"W1","actor":{"id":"u1"},"extra":1}`,
		"role without role": `{"type":"add_staff_role","workspaceId":"W1","actor":{"id":"u1"}}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeIntent([]byte(body))
			if !errorutil.HasCode(err, errorutil.CodeValidationFailed) {
				t.Fatalf("expected VALIDATION_FAILED, got %v", err)
			}
		})
	}
}

func TestToIntent_CoversEveryKind(t *testing.T) {
	for _, kind := range domain.AllIntentKinds() {
		in, err := IntentRequest{Type: kind, WorkspaceID: "W1", Actor: ActorPayload{ID: "u1"}}.ToIntent()
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if in.Kind() != kind {
			t.Fatalf("%s decoded as %s", kind, in.Kind())
		}
	}
}
