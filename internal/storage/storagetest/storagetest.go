// Package storagetest holds the behavior every GuestStore adapter must share.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/storage"
)

// Run exercises a store created fresh for each subtest by newStore
func Run(t *testing.T, newStore func(t *testing.T) storage.GuestStore) {
	t.Helper()

	t.Run("AddGet", func(t *testing.T) { testAddGet(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, newStore(t)) })
	t.Run("QueryByField", func(t *testing.T) { testQueryByField(t, newStore(t)) })
	t.Run("Batch", func(t *testing.T) { testBatch(t, newStore(t)) })
	t.Run("BatchIsAtomic", func(t *testing.T) { testBatchAtomic(t, newStore(t)) })
}

var created = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

func sample(name, token string) models.Fields {
	return models.Fields{
		models.FieldName:            name,
		models.FieldPlusOnesAllowed: 1,
		models.FieldStatus:          string(models.StatusNotOpen),
		models.FieldToken:           token,
		models.FieldGuestURL:        "http://localhost/i/" + token,
		models.FieldCreatedAt:       created,
		models.FieldLimitDate:       created.Add(14 * 24 * time.Hour),
	}
}

func testAddGet(t *testing.T, s storage.GuestStore) {
	ctx := context.Background()
	id, err := s.Add(ctx, sample("Ana Ruiz", "tok-a"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id == "" {
		t.Fatal("expected a store-assigned id")
	}

	g, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if g.ID != id || g.Name != "Ana Ruiz" || g.Token != "tok-a" || g.PlusOnesAllowed != 1 {
		t.Errorf("unexpected guest %+v", g)
	}
	if g.Status != models.StatusNotOpen {
		t.Errorf("expected not_open, got %q", g.Status)
	}
	if g.CreatedAt == nil || !g.CreatedAt.Equal(created) {
		t.Errorf("expected created_at %v, got %v", created, g.CreatedAt)
	}
	if g.LimitDate == nil || !g.LimitDate.Equal(created.Add(14*24*time.Hour)) {
		t.Errorf("expected limit_date, got %v", g.LimitDate)
	}
}

func testGetMissing(t *testing.T, s storage.GuestStore) {
	_, err := s.Get(context.Background(), "does-not-exist")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testUpdate(t *testing.T, s storage.GuestStore) {
	ctx := context.Background()
	id, err := s.Add(ctx, sample("Luis", "tok-l"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	visit := created.Add(time.Hour)
	if err := s.Update(ctx, id, models.Fields{models.FieldLastVisitAt: visit}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	g, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if g.LastVisitAt == nil || !g.LastVisitAt.Equal(visit) {
		t.Errorf("expected last visit %v, got %v", visit, g.LastVisitAt)
	}
	if g.Name != "Luis" || g.Token != "tok-l" {
		t.Errorf("update must keep other fields, got %+v", g)
	}
}

func testUpdateMissing(t *testing.T, s storage.GuestStore) {
	err := s.Update(context.Background(), "nope", models.Fields{models.FieldName: "x"})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testQueryByField(t *testing.T, s storage.GuestStore) {
	ctx := context.Background()
	for _, f := range []models.Fields{sample("A", "t1"), sample("B", "t2"), sample("C", "t3")} {
		if _, err := s.Add(ctx, f); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	got, err := s.QueryByField(ctx, models.FieldToken, "t2", 1)
	if err != nil {
		t.Fatalf("QueryByField: %v", err)
	}
	if len(got) != 1 || got[0].Name != "B" {
		t.Errorf("expected guest B, got %+v", got)
	}

	none, err := s.QueryByField(ctx, models.FieldToken, "t9", 1)
	if err != nil {
		t.Fatalf("QueryByField: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no match, got %+v", none)
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 guests, got %d", len(all))
	}
}

func testBatch(t *testing.T, s storage.GuestStore) {
	ctx := context.Background()
	existing, err := s.Add(ctx, sample("Old", "t-old"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	b := s.Batch()
	newID := s.NewID()
	b.Set(newID, sample("New", "t-new"))
	b.Update(existing, models.Fields{models.FieldPlusOnesAllowed: 4})
	if b.Len() != 2 {
		t.Errorf("expected 2 queued ops, got %d", b.Len())
	}
	if err := b.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	g, err := s.Get(ctx, newID)
	if err != nil {
		t.Fatalf("Get new: %v", err)
	}
	if g.Name != "New" {
		t.Errorf("expected New, got %q", g.Name)
	}
	old, err := s.Get(ctx, existing)
	if err != nil {
		t.Fatalf("Get old: %v", err)
	}
	if old.PlusOnesAllowed != 4 || old.Token != "t-old" {
		t.Errorf("expected merged update, got %+v", old)
	}
}

func testBatchAtomic(t *testing.T, s storage.GuestStore) {
	ctx := context.Background()

	b := s.Batch()
	newID := s.NewID()
	b.Set(newID, sample("Ghost", "t-ghost"))
	b.Update("missing-doc", models.Fields{models.FieldName: "x"})
	if err := b.Commit(ctx); err == nil {
		t.Fatal("expected commit to fail on a missing document")
	}

	if _, err := s.Get(ctx, newID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected no partial write, got %v", err)
	}
}
