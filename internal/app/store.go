// Package app wires configuration into concrete components shared by the commands.
package app

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"wedding-rsvp/internal/config"
	"wedding-rsvp/internal/storage"
	"wedding-rsvp/internal/storage/firestore"
	"wedding-rsvp/internal/storage/sqlite"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStore opens the backend named by cfg.StoreURL
func OpenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storage.GuestStore, io.Closer, error) {
	u, err := url.Parse(cfg.StoreURL)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to parse store url: %w", err)
	}
	path := u.Host + u.Path

	switch u.Scheme {
	case "memory":
		s, err := storage.NewFileStore("")
		if err != nil {
			return nil, nil, err
		}
		log.Warn().Msg("Using in-memory store, guests are lost on exit")
		return s, nopCloser{}, nil
	case "file", "":
		s, err := storage.NewFileStore(path)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", path).Msg("Using JSON file store")
		return s, nopCloser{}, nil
	case "sqlite":
		s, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", path).Msg("Using SQLite store")
		return s, s, nil
	case "firestore":
		project := strings.TrimSpace(u.Host)
		if project == "" {
			project = os.Getenv("GOOGLE_CLOUD_PROJECT")
		}
		if project == "" {
			return nil, nil, fmt.Errorf("firestore store url needs a project: firestore://<project>")
		}
		client, err := firestore.NewClient(ctx, project, cfg.FirestoreCredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		s := firestore.New(client, cfg.FirestoreCollection)
		log.Info().Str("project", project).Str("collection", cfg.FirestoreCollection).Msg("Using Firestore store")
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", u.Scheme)
	}
}

// NewLogger builds the root logger. Pretty selects the console writer.
func NewLogger(level string, pretty bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("unable to parse log level %q: %w", level, err)
	}
	var w io.Writer = os.Stdout
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
