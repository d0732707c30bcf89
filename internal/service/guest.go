// Package service exposes the guest operations used by the HTTP handlers,
// the WhatsApp bot and the import command.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wedding-rsvp/internal/cache"
	"wedding-rsvp/internal/importer"
	"wedding-rsvp/internal/lifecycle"
	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/storage"
	"wedding-rsvp/internal/token"
)

// Config holds what the service needs from the application configuration
type Config struct {
	BaseURL        string
	ResponseWindow time.Duration
	// Now defaults to time.Now
	Now func() time.Time
}

// GuestService composes the store, cache, token issuing, RSVP rules and import
type GuestService struct {
	store     storage.GuestStore
	cache     *cache.Cache
	tokens    *token.Generator
	lifecycle *lifecycle.Lifecycle
	merger    *importer.Merger
	baseURL   string
	log       zerolog.Logger
}

// NewGuestService creates the service. The cache is owned by the caller so
// tests and commands control its lifetime.
func NewGuestService(store storage.GuestStore, guestCache *cache.Cache, cfg Config, log zerolog.Logger) *GuestService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	tokens := token.NewGenerator()
	lc := lifecycle.New(cfg.ResponseWindow, now)
	return &GuestService{
		store:     store,
		cache:     guestCache,
		tokens:    tokens,
		lifecycle: lc,
		merger:    importer.NewMerger(store, tokens, lc, cfg.BaseURL, log.With().Str("component", "import").Logger()),
		baseURL:   cfg.BaseURL,
		log:       log,
	}
}

// tokenTaken checks a candidate against the store, not the cache
func (s *GuestService) tokenTaken(ctx context.Context, candidate string) (bool, error) {
	found, err := s.store.QueryByField(ctx, models.FieldToken, candidate, 1)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

// Create adds a guest with a fresh token, link and response deadline
func (s *GuestService) Create(ctx context.Context, in models.CreateInput) (models.Guest, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Guest{}, fmt.Errorf("%w: name is required", models.ErrValidation)
	}
	if in.PlusOnesAllowed < 0 {
		return models.Guest{}, fmt.Errorf("%w: plus ones must not be negative", models.ErrValidation)
	}
	status := models.StatusNotOpen
	if in.Status != nil {
		parsed, ok := models.ParseStatus(string(*in.Status))
		if !ok {
			return models.Guest{}, fmt.Errorf("%w: unknown status %q", models.ErrValidation, *in.Status)
		}
		status = parsed
	}

	tok := strings.TrimSpace(in.Token)
	if tok != "" {
		taken, err := s.tokenTaken(ctx, tok)
		if err != nil {
			return models.Guest{}, fmt.Errorf("failed to check token: %w", err)
		}
		if taken {
			return models.Guest{}, fmt.Errorf("%w: token already in use", models.ErrValidation)
		}
	} else {
		var err error
		if tok, err = s.tokens.Unique(ctx, s.tokenTaken); err != nil {
			return models.Guest{}, err
		}
	}

	now := s.lifecycle.Now().UTC()
	limit := s.lifecycle.DeadlineFrom(now)
	guest := models.Guest{
		Name:            name,
		Phone:           strings.TrimSpace(in.Phone),
		PlusOnesAllowed: in.PlusOnesAllowed,
		Status:          status,
		Token:           tok,
		GuestURL:        token.BuildGuestURL(s.baseURL, tok),
		CreatedAt:       &now,
		LimitDate:       &limit,
		UpdatedAt:       &now,
	}

	id, err := s.store.Add(ctx, guest.Document())
	if err != nil {
		s.log.Error().Err(err).Str("name", name).Msg("Failed to create guest")
		return models.Guest{}, fmt.Errorf("failed to create guest: %w", err)
	}
	created, err := s.store.Get(ctx, id)
	if err != nil {
		return models.Guest{}, fmt.Errorf("failed to read created guest: %w", err)
	}

	s.cache.Invalidate(id, tok)
	s.cache.PutGuest(created)
	s.log.Info().Str("id", id).Str("name", name).Msg("New guest added")
	return created, nil
}

// FindAll lists every guest, optionally filtered by status
func (s *GuestService) FindAll(ctx context.Context, status ...models.InvitationStatus) ([]models.Guest, error) {
	guests, ok := s.cache.GetAll()
	if !ok {
		gen := s.cache.Generation()
		var err error
		guests, err = s.store.GetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list guests: %w", err)
		}
		s.cache.PutAllAt(guests, gen)
	}
	if len(status) == 0 {
		return guests, nil
	}

	var filtered []models.Guest
	for _, g := range guests {
		for _, st := range status {
			if g.Status == st {
				filtered = append(filtered, g)
				break
			}
		}
	}
	return filtered, nil
}

// FindOne returns the guest with the given id
func (s *GuestService) FindOne(ctx context.Context, id string) (models.Guest, error) {
	if g, ok := s.cache.GetByID(id); ok {
		return g, nil
	}
	gen := s.cache.Generation()
	g, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.Guest{}, fmt.Errorf("wedding guest with id %s: %w", id, models.ErrNotFound)
		}
		return models.Guest{}, err
	}
	s.cache.PutGuestAt(g, gen)
	return g, nil
}

// FindByToken returns the guest holding the token
func (s *GuestService) FindByToken(ctx context.Context, tok string) (models.Guest, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return models.Guest{}, fmt.Errorf("invalid token: %w", models.ErrNotFound)
	}
	if g, ok := s.cache.GetByToken(tok); ok {
		return g, nil
	}
	gen := s.cache.Generation()
	found, err := s.store.QueryByField(ctx, models.FieldToken, tok, 1)
	if err != nil {
		return models.Guest{}, fmt.Errorf("failed to look up token: %w", err)
	}
	if len(found) == 0 {
		return models.Guest{}, fmt.Errorf("invalid token: %w", models.ErrNotFound)
	}
	s.cache.PutGuestAt(found[0], gen)
	return found[0], nil
}

// FindByPhone returns the guest registered with a phone number. It is not cached.
func (s *GuestService) FindByPhone(ctx context.Context, phone string) (models.Guest, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return models.Guest{}, models.ErrNotFound
	}
	found, err := s.store.QueryByField(ctx, models.FieldPhone, phone, 1)
	if err != nil {
		return models.Guest{}, fmt.Errorf("failed to look up phone: %w", err)
	}
	if len(found) == 0 {
		return models.Guest{}, models.ErrNotFound
	}
	return found[0], nil
}

// Update applies an admin's partial edit
func (s *GuestService) Update(ctx context.Context, id string, in models.UpdateInput) (models.Guest, error) {
	fields := models.Fields{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return models.Guest{}, fmt.Errorf("%w: name must not be empty", models.ErrValidation)
		}
		fields[models.FieldName] = name
	}
	if in.Phone != nil {
		fields[models.FieldPhone] = strings.TrimSpace(*in.Phone)
	}
	if in.PlusOnesAllowed != nil {
		if *in.PlusOnesAllowed < 0 {
			return models.Guest{}, fmt.Errorf("%w: plus ones must not be negative", models.ErrValidation)
		}
		fields[models.FieldPlusOnesAllowed] = *in.PlusOnesAllowed
	}
	if in.Status != nil {
		st, ok := models.ParseStatus(string(*in.Status))
		if !ok {
			return models.Guest{}, fmt.Errorf("%w: unknown status %q", models.ErrValidation, *in.Status)
		}
		fields[models.FieldStatus] = string(st)
	}
	if in.PlusOnesConfirmed != nil {
		if *in.PlusOnesConfirmed < 0 {
			return models.Guest{}, fmt.Errorf("%w: plus ones confirmed must not be negative", models.ErrValidation)
		}
		fields[models.FieldPlusOnesConfirmed] = *in.PlusOnesConfirmed
	}

	guest, err := s.FindOne(ctx, id)
	if err != nil {
		return models.Guest{}, err
	}
	fields[models.FieldUpdatedAt] = s.lifecycle.Now().UTC()

	if err := s.write(ctx, guest, fields); err != nil {
		return models.Guest{}, err
	}
	s.log.Info().Str("id", id).Int("fields", len(fields)).Msg("Guest updated")
	return guest.Apply(fields), nil
}

// RotateURL issues a new token and link, invalidating the old ones
func (s *GuestService) RotateURL(ctx context.Context, id string) (string, error) {
	guest, err := s.FindOne(ctx, id)
	if err != nil {
		return "", err
	}
	tok, err := s.tokens.Unique(ctx, s.tokenTaken)
	if err != nil {
		return "", err
	}
	url := token.BuildGuestURL(s.baseURL, tok)

	fields := models.Fields{
		models.FieldToken:     tok,
		models.FieldGuestURL:  url,
		models.FieldUpdatedAt: s.lifecycle.Now().UTC(),
	}
	if err := s.write(ctx, guest, fields); err != nil {
		return "", err
	}
	s.log.Info().Str("id", id).Msg("Guest link rotated")
	return url, nil
}

// RegisterVisit records that the guest opened their invitation
func (s *GuestService) RegisterVisit(ctx context.Context, tok string) (models.Guest, error) {
	guest, err := s.FindByToken(ctx, tok)
	if err != nil {
		return models.Guest{}, err
	}
	fields := s.lifecycle.RegisterVisit(guest)
	if err := s.write(ctx, guest, fields); err != nil {
		return models.Guest{}, err
	}
	s.log.Debug().Str("id", guest.ID).Msg("Invitation visited")
	return guest.Apply(fields), nil
}

// UpdateRSVP stores the guest's answer if the response window is still open
func (s *GuestService) UpdateRSVP(ctx context.Context, tok string, status models.InvitationStatus, plusOnesConfirmed *int) (models.Guest, error) {
	if strings.TrimSpace(string(status)) == "" {
		return models.Guest{}, fmt.Errorf("%w: status is required", models.ErrValidation)
	}
	parsed, ok := models.ParseStatus(string(status))
	if !ok {
		return models.Guest{}, fmt.Errorf("%w: unknown status %q", models.ErrValidation, status)
	}

	guest, err := s.FindByToken(ctx, tok)
	if err != nil {
		return models.Guest{}, err
	}
	fields, err := s.lifecycle.SubmitRSVP(guest, parsed, plusOnesConfirmed)
	if err != nil {
		s.log.Warn().Err(err).Str("id", guest.ID).Msg("RSVP rejected")
		return models.Guest{}, err
	}
	if err := s.write(ctx, guest, fields); err != nil {
		return models.Guest{}, err
	}
	s.log.Info().Str("id", guest.ID).Str("status", string(parsed)).Msg("RSVP stored")
	return guest.Apply(fields), nil
}

// ImportFromCSV merges normalized rows into the guest list
func (s *GuestService) ImportFromCSV(ctx context.Context, rows []models.ImportRow) (models.ImportResult, error) {
	res, err := s.merger.Merge(ctx, rows)
	if err != nil {
		return models.ImportResult{}, err
	}
	if res.Created+res.Updated > 0 {
		s.cache.InvalidateAll()
	}
	return res, nil
}

// write updates one guest and drops everything cached for it
func (s *GuestService) write(ctx context.Context, guest models.Guest, fields models.Fields) error {
	if err := s.store.Update(ctx, guest.ID, fields); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.cache.Invalidate(guest.ID, guest.Token)
			return fmt.Errorf("wedding guest with id %s: %w", guest.ID, err)
		}
		s.log.Error().Err(err).Str("id", guest.ID).Msg("Failed to update guest")
		return fmt.Errorf("failed to update guest: %w", err)
	}
	s.cache.Invalidate(guest.ID, guest.Token)
	return nil
}
