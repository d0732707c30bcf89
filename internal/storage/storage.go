package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"wedding-rsvp/internal/models"
)

// GuestStore is the document collection the guest service persists into.
// Single-document writes are atomic; Batch is the only multi-document
// atomic write.
type GuestStore interface {
	// NewID reserves an id for a document created through a batch
	NewID() string
	Add(ctx context.Context, fields models.Fields) (string, error)
	// Get returns models.ErrNotFound for an unknown id
	Get(ctx context.Context, id string) (models.Guest, error)
	QueryByField(ctx context.Context, field string, value any, limit int) ([]models.Guest, error)
	GetAll(ctx context.Context) ([]models.Guest, error)
	// Update merges fields into an existing document and returns
	// models.ErrNotFound when it does not exist
	Update(ctx context.Context, id string, fields models.Fields) error
	Batch() Batch
}

// Batch collects writes that are committed all-or-nothing
type Batch interface {
	Set(id string, fields models.Fields)
	Update(id string, fields models.Fields)
	Len() int
	Commit(ctx context.Context) error
}

// Op is a single queued batch write
type Op struct {
	ID     string
	Fields models.Fields
	// Merge is true for Update (the document must exist) and false for Set
	Merge bool
}

// OpBatch queues operations for adapters that apply them in one transaction
type OpBatch struct {
	Ops    []Op
	commit func(ctx context.Context, ops []Op) error
}

// NewOpBatch creates a batch that hands its operations to commit
func NewOpBatch(commit func(ctx context.Context, ops []Op) error) *OpBatch {
	return &OpBatch{commit: commit}
}

func (b *OpBatch) Set(id string, fields models.Fields) {
	b.Ops = append(b.Ops, Op{ID: id, Fields: fields})
}

func (b *OpBatch) Update(id string, fields models.Fields) {
	b.Ops = append(b.Ops, Op{ID: id, Fields: fields, Merge: true})
}

func (b *OpBatch) Len() int { return len(b.Ops) }

func (b *OpBatch) Commit(ctx context.Context) error {
	if len(b.Ops) == 0 {
		return nil
	}
	return b.commit(ctx, b.Ops)
}

// FileStore keeps documents in memory and, when a path is set, mirrors
// them to a JSON file after every write
type FileStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]any
	file string
}

// NewFileStore creates a new storage instance. An empty path keeps
// everything in memory.
func NewFileStore(filePath string) (*FileStore, error) {
	s := &FileStore{
		docs: make(map[string]map[string]any),
		file: filePath,
	}

	// Load existing data if file exists
	if filePath != "" {
		if _, err := os.Stat(filePath); err == nil {
			if err := s.Load(); err != nil {
				return nil, fmt.Errorf("failed to load storage: %w", err)
			}
		}
	}

	return s, nil
}

var _ GuestStore = (*FileStore)(nil)

func (s *FileStore) NewID() string {
	return uuid.NewString()
}

// Add stores a new document under a fresh id
func (s *FileStore) Add(_ context.Context, fields models.Fields) (string, error) {
	doc, err := normalize(fields)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.NewID()
	s.docs[id] = doc
	if err := s.Save(); err != nil {
		delete(s.docs, id)
		return "", err
	}
	return id, nil
}

// Get retrieves a guest by id
func (s *FileStore) Get(_ context.Context, id string) (models.Guest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return models.Guest{}, models.ErrNotFound
	}
	return models.GuestFromDocument(id, doc), nil
}

// QueryByField returns guests whose stored field equals value
func (s *FileStore) QueryByField(_ context.Context, field string, value any, limit int) ([]models.Guest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Guest
	for _, id := range s.sortedIDs() {
		doc := s.docs[id]
		if !valuesEqual(doc[field], value) {
			continue
		}
		result = append(result, models.GuestFromDocument(id, doc))
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// GetAll returns all guests ordered by id
func (s *FileStore) GetAll(_ context.Context) ([]models.Guest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	guests := make([]models.Guest, 0, len(s.docs))
	for _, id := range s.sortedIDs() {
		guests = append(guests, models.GuestFromDocument(id, s.docs[id]))
	}
	return guests, nil
}

// Update merges fields into an existing document
func (s *FileStore) Update(_ context.Context, id string, fields models.Fields) error {
	patch, err := normalize(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.docs[id]
	if !ok {
		return models.ErrNotFound
	}
	s.docs[id] = merged(prev, patch)
	if err := s.Save(); err != nil {
		s.docs[id] = prev
		return err
	}
	return nil
}

// Batch returns a batch applied under a single lock and a single save
func (s *FileStore) Batch() Batch {
	return NewOpBatch(s.commit)
}

func (s *FileStore) commit(_ context.Context, ops []Op) error {
	patches := make([]map[string]any, len(ops))
	for i, op := range ops {
		p, err := normalize(op.Fields)
		if err != nil {
			return err
		}
		patches[i] = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]map[string]any, len(s.docs)+len(ops))
	for id, doc := range s.docs {
		next[id] = doc
	}
	for i, op := range ops {
		if !op.Merge {
			next[op.ID] = patches[i]
			continue
		}
		prev, ok := next[op.ID]
		if !ok {
			return fmt.Errorf("batch update %s: %w", op.ID, models.ErrNotFound)
		}
		next[op.ID] = merged(prev, patches[i])
	}

	prev := s.docs
	s.docs = next
	if err := s.Save(); err != nil {
		s.docs = prev
		return err
	}
	return nil
}

// Save saves the documents to file
func (s *FileStore) Save() error {
	if s.file == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.docs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(s.file)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	return os.WriteFile(s.file, data, 0644)
}

// Load loads documents from file
func (s *FileStore) Load() error {
	data, err := os.ReadFile(s.file)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		s.docs = make(map[string]map[string]any)
		return nil
	}

	if err := json.Unmarshal(data, &s.docs); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	if s.docs == nil {
		s.docs = make(map[string]map[string]any)
	}

	return nil
}

func (s *FileStore) sortedIDs() []string {
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// normalize passes fields through JSON so the in-memory copy matches
// what a reload from disk would produce
func normalize(fields models.Fields) (map[string]any, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}
	if doc == nil {
		doc = make(map[string]any)
	}
	return doc, nil
}

func merged(prev, patch map[string]any) map[string]any {
	out := make(map[string]any, len(prev)+len(patch))
	for k, v := range prev {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func valuesEqual(stored, want any) bool {
	if stored == nil || want == nil {
		return stored == want
	}
	return fmt.Sprint(stored) == fmt.Sprint(want)
}
