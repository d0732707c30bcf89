// Package lifecycle decides whether a guest may still answer and which
// fields an answer or a visit writes.
package lifecycle

import (
	"fmt"
	"time"

	"wedding-rsvp/internal/models"
)

// DefaultResponseWindow is the time a guest has to answer after the invitation is created
const DefaultResponseWindow = 14 * 24 * time.Hour

// Lifecycle holds the response window and the clock
type Lifecycle struct {
	Window time.Duration
	Now    func() time.Time
}

// New creates a lifecycle. A zero window selects DefaultResponseWindow.
func New(window time.Duration, now func() time.Time) *Lifecycle {
	if window <= 0 {
		window = DefaultResponseWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Lifecycle{Window: window, Now: now}
}

// DeadlineFor returns the guest's RSVP deadline. Records without a stored
// limit date fall back to creation time plus the window; records with
// neither have no deadline.
func (l *Lifecycle) DeadlineFor(g models.Guest) (time.Time, bool) {
	if g.LimitDate != nil {
		return *g.LimitDate, true
	}
	if g.CreatedAt != nil {
		return g.CreatedAt.Add(l.Window), true
	}
	return time.Time{}, false
}

// DeadlineFrom computes the deadline stored for a guest created at t
func (l *Lifecycle) DeadlineFrom(t time.Time) time.Time {
	return t.Add(l.Window)
}

// SubmitRSVP validates an answer and returns the fields to write.
// Any status may follow any other; only the deadline gates the change.
func (l *Lifecycle) SubmitRSVP(g models.Guest, status models.InvitationStatus, plusOnesConfirmed *int) (models.Fields, error) {
	if _, ok := models.ParseStatus(string(status)); !ok {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, status)
	}

	now := l.Now().UTC()
	if deadline, ok := l.DeadlineFor(g); ok && now.After(deadline) {
		return nil, models.ErrDeadlinePassed
	}

	fields := models.Fields{
		models.FieldStatus:    string(status),
		models.FieldUpdatedAt: now,
	}
	if status == models.StatusAccepted {
		fields[models.FieldAcceptedAt] = now
		if plusOnesConfirmed != nil {
			if *plusOnesConfirmed < 0 || *plusOnesConfirmed > g.PlusOnesAllowed {
				return nil, fmt.Errorf("%w: plus ones confirmed must be between 0 and %d",
					models.ErrValidation, g.PlusOnesAllowed)
			}
			fields[models.FieldPlusOnesConfirmed] = *plusOnesConfirmed
		}
	}
	return fields, nil
}

// RegisterVisit returns the fields written when a guest opens the link.
// It never fails and does not look at the deadline.
func (l *Lifecycle) RegisterVisit(models.Guest) models.Fields {
	now := l.Now().UTC()
	return models.Fields{
		models.FieldLastVisitAt: now,
		models.FieldUpdatedAt:   now,
	}
}
