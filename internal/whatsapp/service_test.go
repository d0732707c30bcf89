package whatsapp

import (
	"strings"
	"testing"
)

func TestNormalizePhoneNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"+972 50-123-4567", "972501234567"},
		{"050-123-4567", "972501234567"},
		{"(972) 0501234567", "972501234567"},
		{"+1 (555) 010-9999", "15550109999"},
	}
	for _, tt := range tests {
		if got := NormalizePhoneNumber(tt.in); got != tt.want {
			t.Errorf("NormalizePhoneNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInvitationTextCarriesLink(t *testing.T) {
	t.Parallel()

	text := InvitationText(Invitation{
		GuestName: "Ana",
		Link:      "https://boda.example/i/abc",
		BrideName: "Lucía",
		GroomName: "Diego",
	})
	for _, want := range []string{"Dear Ana", "https://boda.example/i/abc", "*Lucía* & *Diego*", "YES", "NO"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected invitation text to contain %q", want)
		}
	}
}
