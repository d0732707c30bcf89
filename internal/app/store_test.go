package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"wedding-rsvp/internal/config"
	"wedding-rsvp/internal/storage"
	"wedding-rsvp/internal/storage/sqlite"
)

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		url     string
		check   func(storage.GuestStore) bool
		wantErr bool
	}{
		{url: "memory://", check: isFileStore},
		{url: "file://" + filepath.Join(dir, "guests.json"), check: isFileStore},
		{url: "sqlite://" + filepath.Join(dir, "guests.db"), check: func(s storage.GuestStore) bool {
			_, ok := s.(*sqlite.Store)
			return ok
		}},
		{url: "postgres://localhost/db", wantErr: true},
		{url: "firestore://", wantErr: true},
	}
	for _, tt := range tests {
		cfg := config.Defaults()
		cfg.StoreURL = tt.url
		if tt.url == "firestore://" {
			t.Setenv("GOOGLE_CLOUD_PROJECT", "")
		}

		s, closer, err := OpenStore(context.Background(), cfg, zerolog.Nop())
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected an error", tt.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tt.url, err)
			continue
		}
		if !tt.check(s) {
			t.Errorf("%s: unexpected store type %T", tt.url, s)
		}
		closer.Close()
	}
}

func isFileStore(s storage.GuestStore) bool {
	_, ok := s.(*storage.FileStore)
	return ok
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	if _, err := NewLogger("debug", false); err != nil {
		t.Errorf("expected debug to parse, got %v", err)
	}
	if _, err := NewLogger("loud", false); err == nil {
		t.Error("expected an error for an unknown level")
	}
}
