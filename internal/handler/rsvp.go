package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/whatsapp"
)

// Messenger is the outbound side of the WhatsApp client
type Messenger interface {
	SendMessage(ctx context.Context, phoneNumber, message string) error
	SendInvitation(ctx context.Context, phoneNumber string, inv whatsapp.Invitation) error
}

// RSVPGuests is what the WhatsApp channel needs from the guest service
type RSVPGuests interface {
	FindOne(ctx context.Context, id string) (models.Guest, error)
	FindByPhone(ctx context.Context, phone string) (models.Guest, error)
	Update(ctx context.Context, id string, in models.UpdateInput) (models.Guest, error)
	UpdateRSVP(ctx context.Context, tok string, status models.InvitationStatus, plusOnesConfirmed *int) (models.Guest, error)
}

type RSVPHandler struct {
	messenger Messenger
	guests    RSVPGuests
	config    *Config
	log       zerolog.Logger
}

type Config struct {
	WeddingDate     string
	WeddingLocation string
	BrideName       string
	GroomName       string
}

// NewRSVPHandler creates a new RSVP handler
func NewRSVPHandler(messenger Messenger, guests RSVPGuests, cfg *Config, log zerolog.Logger) *RSVPHandler {
	return &RSVPHandler{
		messenger: messenger,
		guests:    guests,
		config:    cfg,
		log:       log.With().Str("component", "rsvp").Logger(),
	}
}

var (
	acceptWords = map[string]bool{"yes": true, "yep": true, "yeah": true, "sí": true, "si": true, "accept": true, "attending": true, "coming": true}
	rejectWords = map[string]bool{"no": true, "nope": true, "decline": true, "declining": true}
)

// parseReply classifies a free-text reply. ok is false when the text is not an answer.
func parseReply(text string) (status models.InvitationStatus, ok bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if containsAny(text, "not coming", "can't come", "won't come", "can't make it", "❌") {
		return models.StatusRejected, true
	}
	if containsAny(text, "✅", "will be there") {
		return models.StatusAccepted, true
	}
	// The first answer word decides
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	for _, w := range words {
		switch {
		case rejectWords[w]:
			return models.StatusRejected, true
		case acceptWords[w]:
			return models.StatusAccepted, true
		}
	}
	return "", false
}

// HandleMessage records a yes/no reply from a known guest's phone as their RSVP
func (h *RSVPHandler) HandleMessage(ctx context.Context, phoneNumber, text string) error {
	// Only guests who were previously registered can answer
	guest, err := h.guests.FindByPhone(ctx, phoneNumber)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up guest: %w", err)
	}

	status, ok := parseReply(text)
	if !ok {
		return nil
	}

	var responseMessage string
	if _, err := h.guests.UpdateRSVP(ctx, guest.Token, status, nil); err != nil {
		if !errors.Is(err, models.ErrDeadlinePassed) {
			return fmt.Errorf("failed to update RSVP: %w", err)
		}
		responseMessage = fmt.Sprintf(
			"Sorry %s, the deadline to respond has passed. Please contact %s & %s directly.",
			guest.Name, h.config.BrideName, h.config.GroomName,
		)
	} else if status == models.StatusAccepted {
		responseMessage = fmt.Sprintf(
			"🎉 Wonderful! We're so excited to celebrate with you!\n\n"+
				"We've confirmed your attendance for the wedding of %s & %s on %s.\n\n"+
				"You can tell us how many people you're bringing here:\n%s\n\n"+
				"See you there! 💕",
			h.config.BrideName, h.config.GroomName, h.config.WeddingDate, guest.GuestURL,
		)
	} else {
		responseMessage = fmt.Sprintf(
			"Thank you for letting us know. We're sorry you won't be able to join us for the wedding of %s & %s.\n\n"+
				"We'll miss you! 💕",
			h.config.BrideName, h.config.GroomName,
		)
	}

	h.log.Info().Str("id", guest.ID).Str("status", string(status)).Msg("RSVP received over WhatsApp")
	if err := h.messenger.SendMessage(ctx, phoneNumber, responseMessage); err != nil {
		return fmt.Errorf("failed to send confirmation: %w", err)
	}
	return nil
}

// Send delivers the invitation link to the guest's phone
func (h *RSVPHandler) Send(ctx context.Context, id string) (models.Guest, error) {
	guest, err := h.guests.FindOne(ctx, id)
	if err != nil {
		return models.Guest{}, err
	}
	if guest.Phone == "" {
		return models.Guest{}, fmt.Errorf("%w: guest has no phone number", models.ErrValidation)
	}

	// Store the normalized number so replies can be matched to the guest
	normalized := whatsapp.NormalizePhoneNumber(guest.Phone)
	if normalized != guest.Phone {
		if guest, err = h.guests.Update(ctx, id, models.UpdateInput{Phone: &normalized}); err != nil {
			return models.Guest{}, fmt.Errorf("failed to normalize phone: %w", err)
		}
	}

	if err := h.messenger.SendInvitation(ctx, guest.Phone, whatsapp.Invitation{
		GuestName:       guest.Name,
		Link:            guest.GuestURL,
		WeddingDate:     h.config.WeddingDate,
		WeddingLocation: h.config.WeddingLocation,
		BrideName:       h.config.BrideName,
		GroomName:       h.config.GroomName,
	}); err != nil {
		return models.Guest{}, fmt.Errorf("failed to send invitation: %w", err)
	}
	h.log.Info().Str("id", guest.ID).Msg("Invitation sent")
	return guest, nil
}

// containsAny checks if the text contains any of the given keywords
func containsAny(text string, keywords ...string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
