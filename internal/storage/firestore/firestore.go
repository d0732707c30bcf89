// Package firestore stores guests in a Cloud Firestore collection.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/storage"
)

// DefaultCollection is the collection the guest list has always lived in
const DefaultCollection = "wedding-guests"

var tracer = otel.Tracer("wedding-rsvp/storage/firestore")

// Store is a GuestStore backed by a Firestore collection
type Store struct {
	Client     *firestore.Client
	collection string
}

var _ storage.GuestStore = (*Store)(nil)

// NewClient creates a Firestore client. An empty credentialsFile uses
// Application Default Credentials; FIRESTORE_EMULATOR_HOST is honored by
// the client library.
func NewClient(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return client, nil
}

// New wraps a client. An empty collection selects DefaultCollection.
func New(client *firestore.Client, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{Client: client, collection: collection}
}

// Close closes the underlying client
func (s *Store) Close() error {
	if s == nil || s.Client == nil {
		return nil
	}
	return s.Client.Close()
}

func (s *Store) col() *firestore.CollectionRef {
	return s.Client.Collection(s.collection)
}

func (s *Store) NewID() string {
	return s.col().NewDoc().ID
}

func (s *Store) Add(ctx context.Context, fields models.Fields) (string, error) {
	ctx, span := tracer.Start(ctx, "Add")
	defer span.End()

	ref, _, err := s.col().Add(ctx, map[string]any(fields))
	if err != nil {
		return "", fail(span, fmt.Errorf("failed to add guest: %w", err))
	}
	return ref.ID, nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Guest, error) {
	ctx, span := tracer.Start(ctx, "Get")
	defer span.End()

	if id == "" {
		return models.Guest{}, models.ErrNotFound
	}
	doc, err := s.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == grpccodes.NotFound {
			return models.Guest{}, models.ErrNotFound
		}
		return models.Guest{}, fail(span, fmt.Errorf("failed to get guest: %w", err))
	}
	return models.GuestFromDocument(doc.Ref.ID, doc.Data()), nil
}

func (s *Store) QueryByField(ctx context.Context, field string, value any, limit int) ([]models.Guest, error) {
	ctx, span := tracer.Start(ctx, "QueryByField")
	defer span.End()

	q := s.col().Where(field, "==", value)
	if limit > 0 {
		q = q.Limit(limit)
	}
	guests, err := collect(q.Documents(ctx))
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to query guests by %s: %w", field, err))
	}
	return guests, nil
}

func (s *Store) GetAll(ctx context.Context) ([]models.Guest, error) {
	ctx, span := tracer.Start(ctx, "GetAll")
	defer span.End()

	guests, err := collect(s.col().Documents(ctx))
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to list guests: %w", err))
	}
	sort.Slice(guests, func(i, j int) bool { return guests[i].ID < guests[j].ID })
	return guests, nil
}

func (s *Store) Update(ctx context.Context, id string, fields models.Fields) error {
	ctx, span := tracer.Start(ctx, "Update")
	defer span.End()

	if id == "" {
		return models.ErrNotFound
	}
	_, err := s.col().Doc(id).Update(ctx, updates(fields))
	if err != nil {
		if status.Code(err) == grpccodes.NotFound {
			return models.ErrNotFound
		}
		return fail(span, fmt.Errorf("failed to update guest: %w", err))
	}
	return nil
}

// Batch commits its writes in a single Firestore transaction. A
// transaction holds at most 500 writes, far above any guest list.
func (s *Store) Batch() storage.Batch {
	return storage.NewOpBatch(s.commit)
}

func (s *Store) commit(ctx context.Context, ops []storage.Op) error {
	ctx, span := tracer.Start(ctx, "Batch.Commit")
	defer span.End()
	span.AddEvent(fmt.Sprintf("%d operations", len(ops)))

	err := s.Client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		for _, op := range ops {
			ref := s.col().Doc(op.ID)
			if op.Merge {
				if err := tx.Update(ref, updates(op.Fields)); err != nil {
					return err
				}
				continue
			}
			if err := tx.Set(ref, map[string]any(op.Fields)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if status.Code(err) == grpccodes.NotFound {
			return fmt.Errorf("batch commit: %w", models.ErrNotFound)
		}
		return fail(span, fmt.Errorf("failed to commit batch: %w", err))
	}
	return nil
}

func updates(fields models.Fields) []firestore.Update {
	out := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		out = append(out, firestore.Update{Path: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func collect(it *firestore.DocumentIterator) ([]models.Guest, error) {
	defer it.Stop()

	var guests []models.Guest
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		guests = append(guests, models.GuestFromDocument(doc.Ref.ID, doc.Data()))
	}
	return guests, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
