package handler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/whatsapp"
)

type fakeMessenger struct {
	mu          sync.Mutex
	messages    map[string][]string
	invitations []whatsapp.Invitation
	err         error
}

func (f *fakeMessenger) SendMessage(_ context.Context, phone, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.messages == nil {
		f.messages = map[string][]string{}
	}
	f.messages[phone] = append(f.messages[phone], message)
	return nil
}

func (f *fakeMessenger) SendInvitation(_ context.Context, _ string, inv whatsapp.Invitation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.invitations = append(f.invitations, inv)
	return nil
}

var weddingConfig = &Config{
	WeddingDate:     "June 6, 2026",
	WeddingLocation: "Finca El Olivo",
	BrideName:       "Lucía",
	GroomName:       "Diego",
}

func TestParseReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want models.InvitationStatus
		ok   bool
	}{
		{"Yes!", models.StatusAccepted, true},
		{"sí, claro", models.StatusAccepted, true},
		{"We will be there", models.StatusAccepted, true},
		{"✅", models.StatusAccepted, true},
		{"No", models.StatusRejected, true},
		{"Sorry, not coming", models.StatusRejected, true},
		{"no, lo siento", models.StatusRejected, true},
		{"❌", models.StatusRejected, true},
		{"what time is the visit?", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := parseReply(tt.text)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseReply(%q) = %q, %v, want %q, %v", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSendInvitationNormalizesPhone(t *testing.T) {
	t.Parallel()

	svc, _ := newGuestService(t)
	ctx := context.Background()
	g, err := svc.Create(ctx, models.CreateInput{Name: "Ana", Phone: "050-123-4567"})
	if err != nil {
		t.Fatal(err)
	}
	msgr := &fakeMessenger{}
	h := NewRSVPHandler(msgr, svc, weddingConfig, zerolog.Nop())

	sent, err := h.Send(ctx, g.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sent.Phone != "972501234567" {
		t.Errorf("expected normalized phone, got %q", sent.Phone)
	}
	if len(msgr.invitations) != 1 || msgr.invitations[0].Link != g.GuestURL {
		t.Fatalf("expected one invitation carrying the guest link, got %+v", msgr.invitations)
	}

	noPhone, err := svc.Create(ctx, models.CreateInput{Name: "Luis"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Send(ctx, noPhone.ID); !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected ErrValidation without a phone, got %v", err)
	}
	if _, err := h.Send(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHandleMessageRecordsRSVP(t *testing.T) {
	t.Parallel()

	svc, _ := newGuestService(t)
	ctx := context.Background()
	g, err := svc.Create(ctx, models.CreateInput{Name: "Ana", Phone: "972501234567"})
	if err != nil {
		t.Fatal(err)
	}
	msgr := &fakeMessenger{}
	h := NewRSVPHandler(msgr, svc, weddingConfig, zerolog.Nop())

	if err := h.HandleMessage(ctx, "972501234567", "Yes, we'll be there"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	got, err := svc.FindOne(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusAccepted || got.AcceptedAt == nil {
		t.Errorf("expected accepted with accepted_at, got %+v", got)
	}
	replies := msgr.messages["972501234567"]
	if len(replies) != 1 || !strings.Contains(replies[0], g.GuestURL) {
		t.Errorf("expected a confirmation with the guest link, got %q", replies)
	}

	// Unknown senders and chatter are ignored
	if err := h.HandleMessage(ctx, "15550100000", "yes"); err != nil {
		t.Errorf("unknown sender: %v", err)
	}
	if err := h.HandleMessage(ctx, "972501234567", "what should I wear?"); err != nil {
		t.Errorf("chatter: %v", err)
	}
	if n := len(msgr.messages["972501234567"]); n != 1 {
		t.Errorf("expected no further replies, got %d", n)
	}
}

func TestHandleMessageAfterDeadline(t *testing.T) {
	t.Parallel()

	svc, clk := newGuestService(t)
	ctx := context.Background()
	g, err := svc.Create(ctx, models.CreateInput{Name: "Ana", Phone: "972501234567"})
	if err != nil {
		t.Fatal(err)
	}
	clk.t = clk.t.Add(30 * 24 * time.Hour)

	msgr := &fakeMessenger{}
	h := NewRSVPHandler(msgr, svc, weddingConfig, zerolog.Nop())
	if err := h.HandleMessage(ctx, "972501234567", "no"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	got, err := svc.FindOne(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusNotOpen {
		t.Errorf("expected the status to stay not_open, got %q", got.Status)
	}
	replies := msgr.messages["972501234567"]
	if len(replies) != 1 || !strings.Contains(replies[0], "deadline") {
		t.Errorf("expected a deadline notice, got %q", replies)
	}
}
