// Package importer merges an external guest list into the stored one.
//
// Rows are matched to existing guests by trimmed, case-insensitive name.
// Matches are updated in place and keep their token and link; everything
// else becomes a new guest. Running the same list twice is a no-op apart
// from refreshed timestamps.
package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wedding-rsvp/internal/lifecycle"
	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/storage"
	"wedding-rsvp/internal/token"
)

// Merger plans and commits an import as one batch
type Merger struct {
	store     storage.GuestStore
	tokens    *token.Generator
	lifecycle *lifecycle.Lifecycle
	baseURL   string
	log       zerolog.Logger
}

// NewMerger creates a merger
func NewMerger(store storage.GuestStore, tokens *token.Generator, lc *lifecycle.Lifecycle, baseURL string, log zerolog.Logger) *Merger {
	return &Merger{
		store:     store,
		tokens:    tokens,
		lifecycle: lc,
		baseURL:   baseURL,
		log:       log,
	}
}

type pending struct {
	id      string
	fields  models.Fields
	created bool
}

// Merge writes rows into the store. Nothing is written when no row
// survives filtering or when validation or token generation fails.
func (m *Merger) Merge(ctx context.Context, rows []models.ImportRow) (models.ImportResult, error) {
	var result models.ImportResult

	for i, row := range rows {
		if row.PlusOnesAllowed != nil && *row.PlusOnesAllowed < 0 {
			return result, fmt.Errorf("%w: row %d (%s): plus ones must not be negative",
				models.ErrValidation, i+1, strings.TrimSpace(row.Name))
		}
	}

	existing, err := m.store.GetAll(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load guests: %w", err)
	}

	byName := make(map[string]models.Guest, len(existing))
	used := make(map[string]struct{}, len(existing))
	for _, g := range existing {
		if g.Token != "" {
			used[g.Token] = struct{}{}
		}
		key := models.NameKey(g.Name)
		if key == "" {
			continue
		}
		if prev, dup := byName[key]; dup {
			m.log.Warn().Str("name", g.Name).Str("kept", prev.ID).Str("ignored", g.ID).
				Msg("Duplicate guest name in store, matching the first record")
			continue
		}
		byName[key] = g
	}

	now := m.lifecycle.Now().UTC()
	planned := make(map[string]*pending)
	var order []string

	for _, row := range rows {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			result.Skipped++
			continue
		}
		key := models.NameKey(name)

		// a repeated name within one list folds into the earlier row
		if p, ok := planned[key]; ok {
			p.fields[models.FieldName] = name
			if row.PlusOnesAllowed != nil {
				p.fields[models.FieldPlusOnesAllowed] = *row.PlusOnesAllowed
			}
			result.Skipped++
			continue
		}

		var p *pending
		if g, ok := byName[key]; ok {
			p = &pending{id: g.ID, fields: m.updateFields(g, name, row, now)}
		} else {
			fields, err := m.createFields(ctx, name, row, now, used)
			if err != nil {
				return models.ImportResult{}, err
			}
			p = &pending{id: m.store.NewID(), fields: fields, created: true}
		}
		planned[key] = p
		order = append(order, key)
	}

	batch := m.store.Batch()
	for _, key := range order {
		p := planned[key]
		if p.created {
			batch.Set(p.id, p.fields)
			result.Created++
		} else {
			batch.Update(p.id, p.fields)
			result.Updated++
		}
	}

	if batch.Len() == 0 {
		m.log.Info().Int("rows", len(rows)).Msg("Import had nothing to write")
		return result, nil
	}
	if err := batch.Commit(ctx); err != nil {
		return models.ImportResult{}, fmt.Errorf("failed to commit import: %w", err)
	}

	m.log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Msg("Guest list imported")
	return result, nil
}

// updateFields keeps token and link, takes the list's spelling of the
// name and backfills status and deadline on records that predate them
func (m *Merger) updateFields(g models.Guest, name string, row models.ImportRow, now time.Time) models.Fields {
	plusOnes := g.PlusOnesAllowed
	if row.PlusOnesAllowed != nil {
		plusOnes = *row.PlusOnesAllowed
	}
	fields := models.Fields{
		models.FieldName:            name,
		models.FieldPlusOnesAllowed: plusOnes,
		models.FieldUpdatedAt:       now,
	}
	if g.Status == "" {
		fields[models.FieldStatus] = string(models.StatusNotOpen)
	}
	if g.LimitDate == nil {
		from := now
		if g.CreatedAt != nil {
			from = *g.CreatedAt
		}
		fields[models.FieldLimitDate] = m.lifecycle.DeadlineFrom(from)
	}
	return fields
}

func (m *Merger) createFields(ctx context.Context, name string, row models.ImportRow, now time.Time, used map[string]struct{}) (models.Fields, error) {
	tok, err := m.tokens.Unique(ctx, token.InSet(used))
	if err != nil {
		return nil, fmt.Errorf("failed to issue token for %s: %w", name, err)
	}
	used[tok] = struct{}{}

	plusOnes := 0
	if row.PlusOnesAllowed != nil {
		plusOnes = *row.PlusOnesAllowed
	}
	return models.Fields{
		models.FieldName:            name,
		models.FieldPlusOnesAllowed: plusOnes,
		models.FieldToken:           tok,
		models.FieldGuestURL:        token.BuildGuestURL(m.baseURL, tok),
		models.FieldStatus:          string(models.StatusNotOpen),
		models.FieldCreatedAt:       now,
		models.FieldLimitDate:       m.lifecycle.DeadlineFrom(now),
		models.FieldUpdatedAt:       now,
	}, nil
}
