package models

import (
	"testing"
	"time"
)

func TestGuestFromDocumentLegacyFields(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"nombre":             "Ana Ruiz",
		"adicionales":        float64(2),
		"estado_invitacion":  "pending",
		"first_visit_at":     "2025-03-01T10:00:00Z",
		"plus_ones_selected": int64(1),
		"token":              "abc",
	}

	g := GuestFromDocument("id-1", data)

	if g.ID != "id-1" {
		t.Errorf("expected id 'id-1', got %q", g.ID)
	}
	if g.Name != "Ana Ruiz" {
		t.Errorf("expected name from legacy key, got %q", g.Name)
	}
	if g.PlusOnesAllowed != 2 {
		t.Errorf("expected 2 plus ones, got %d", g.PlusOnesAllowed)
	}
	if g.Status != StatusNotOpen {
		t.Errorf("expected pending to decode as not_open, got %q", g.Status)
	}
	if g.LastVisitAt == nil || !g.LastVisitAt.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("expected last visit from first_visit_at, got %v", g.LastVisitAt)
	}
	if g.PlusOnesConfirmed == nil || *g.PlusOnesConfirmed != 1 {
		t.Errorf("expected 1 confirmed plus one, got %v", g.PlusOnesConfirmed)
	}
	if g.LimitDate != nil || g.CreatedAt != nil {
		t.Error("expected no dates on a document that has none")
	}
}

func TestGuestFromDocumentCurrentKeysWin(t *testing.T) {
	t.Parallel()

	g := GuestFromDocument("x", map[string]any{
		"name":   "New",
		"nombre": "Old",
		"status": "accepted",
	})
	if g.Name != "New" {
		t.Errorf("expected current key to win, got %q", g.Name)
	}
	if g.Status != StatusAccepted {
		t.Errorf("expected accepted, got %q", g.Status)
	}
}

func TestApplyRoundTrip(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	g := Guest{ID: "g1", Name: "Luis", Token: "tok", Status: StatusNotOpen, CreatedAt: &created}

	accepted := created.Add(time.Hour)
	out := g.Apply(Fields{
		FieldStatus:            string(StatusAccepted),
		FieldAcceptedAt:        accepted,
		FieldPlusOnesConfirmed: 2,
	})

	if out.ID != "g1" || out.Token != "tok" || out.Name != "Luis" {
		t.Errorf("expected untouched fields to survive, got %+v", out)
	}
	if out.Status != StatusAccepted {
		t.Errorf("expected accepted, got %q", out.Status)
	}
	if out.AcceptedAt == nil || !out.AcceptedAt.Equal(accepted) {
		t.Errorf("expected accepted_at %v, got %v", accepted, out.AcceptedAt)
	}
	if g.Status != StatusNotOpen {
		t.Error("Apply must not modify the receiver")
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want InvitationStatus
		ok   bool
	}{
		{"accepted", StatusAccepted, true},
		{" REJECTED ", StatusRejected, true},
		{"not_open", StatusNotOpen, true},
		{"maybe", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseStatus(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseStatus(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
