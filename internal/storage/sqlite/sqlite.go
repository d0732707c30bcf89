// Package sqlite stores guest documents as JSON rows in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/storage"
)

var tracer = otel.Tracer("wedding-rsvp/storage/sqlite")

const schema = `CREATE TABLE IF NOT EXISTS guests (
	id  TEXT PRIMARY KEY,
	doc TEXT NOT NULL
)`

var fieldPattern = regexp.MustCompile(`^[a-z_]+$`)

// Store is a GuestStore backed by SQLite
type Store struct {
	db *sql.DB
}

var _ storage.GuestStore = (*Store)(nil)

// Open opens (or creates) the database at path and prepares the schema
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer keeps the file lock simple
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) NewID() string {
	return uuid.NewString()
}

func (s *Store) Add(ctx context.Context, fields models.Fields) (string, error) {
	ctx, span := tracer.Start(ctx, "Add")
	defer span.End()

	doc, err := json.Marshal(fields)
	if err != nil {
		return "", fail(span, fmt.Errorf("failed to marshal guest: %w", err))
	}
	id := s.NewID()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO guests (id, doc) VALUES (?, ?)`, id, string(doc)); err != nil {
		return "", fail(span, fmt.Errorf("failed to insert guest: %w", err))
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Guest, error) {
	ctx, span := tracer.Start(ctx, "Get")
	defer span.End()

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM guests WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Guest{}, models.ErrNotFound
	}
	if err != nil {
		return models.Guest{}, fail(span, fmt.Errorf("failed to read guest: %w", err))
	}
	return decode(id, raw)
}

// QueryByField matches on the JSON field value using SQLite's json_extract
func (s *Store) QueryByField(ctx context.Context, field string, value any, limit int) ([]models.Guest, error) {
	ctx, span := tracer.Start(ctx, "QueryByField")
	defer span.End()

	if !fieldPattern.MatchString(field) {
		return nil, fmt.Errorf("%w: invalid field name %q", models.ErrValidation, field)
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc FROM guests WHERE json_extract(doc, ?) = ? ORDER BY id LIMIT ?`,
		"$."+field, value, limit)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to query guests: %w", err))
	}
	return scanAll(rows)
}

func (s *Store) GetAll(ctx context.Context) ([]models.Guest, error) {
	ctx, span := tracer.Start(ctx, "GetAll")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `SELECT id, doc FROM guests ORDER BY id`)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to list guests: %w", err))
	}
	return scanAll(rows)
}

func (s *Store) Update(ctx context.Context, id string, fields models.Fields) error {
	ctx, span := tracer.Start(ctx, "Update")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(span, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if err := mergeInto(ctx, tx, id, fields); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fail(span, fmt.Errorf("failed to commit update: %w", err))
	}
	return nil
}

// Batch applies all queued writes inside one transaction
func (s *Store) Batch() storage.Batch {
	return storage.NewOpBatch(s.commit)
}

func (s *Store) commit(ctx context.Context, ops []storage.Op) error {
	ctx, span := tracer.Start(ctx, "Batch.Commit")
	defer span.End()
	span.AddEvent(fmt.Sprintf("%d operations", len(ops)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(span, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	for _, op := range ops {
		if op.Merge {
			if err := mergeInto(ctx, tx, op.ID, op.Fields); err != nil {
				return fail(span, fmt.Errorf("batch update %s: %w", op.ID, err))
			}
			continue
		}
		doc, err := json.Marshal(op.Fields)
		if err != nil {
			return fail(span, fmt.Errorf("failed to marshal guest: %w", err))
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO guests (id, doc) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`,
			op.ID, string(doc)); err != nil {
			return fail(span, fmt.Errorf("batch set %s: %w", op.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fail(span, fmt.Errorf("failed to commit batch: %w", err))
	}
	return nil
}

func mergeInto(ctx context.Context, tx *sql.Tx, id string, fields models.Fields) error {
	var raw string
	err := tx.QueryRowContext(ctx, `SELECT doc FROM guests WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read guest: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("failed to unmarshal guest %s: %w", id, err)
	}
	if doc == nil {
		doc = make(map[string]any)
	}
	for k, v := range fields {
		doc[k] = v
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal guest: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE guests SET doc = ? WHERE id = ?`, string(out), id); err != nil {
		return fmt.Errorf("failed to update guest: %w", err)
	}
	return nil
}

func scanAll(rows *sql.Rows) ([]models.Guest, error) {
	defer rows.Close()

	var guests []models.Guest
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan guest: %w", err)
		}
		g, err := decode(id, raw)
		if err != nil {
			return nil, err
		}
		guests = append(guests, g)
	}
	return guests, rows.Err()
}

func decode(id, raw string) (models.Guest, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return models.Guest{}, fmt.Errorf("failed to unmarshal guest %s: %w", id, err)
	}
	return models.GuestFromDocument(id, doc), nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
