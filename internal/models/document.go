package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Fields is a partial set of document fields, keyed by stored field name
type Fields map[string]any

// Stored field names
const (
	FieldName              = "name"
	FieldPhone             = "phone"
	FieldPlusOnesAllowed   = "plus_ones_allowed"
	FieldStatus            = "status"
	FieldToken             = "token"
	FieldGuestURL          = "guest_url"
	FieldCreatedAt         = "created_at"
	FieldLimitDate         = "limit_date"
	FieldUpdatedAt         = "updated_at"
	FieldLastVisitAt       = "last_visit_at"
	FieldAcceptedAt        = "accepted_at"
	FieldPlusOnesConfirmed = "plus_ones_confirmed"
)

// Field names written by earlier versions of the guest list.
const (
	legacyName              = "nombre"
	legacyPlusOnesAllowed   = "adicionales"
	legacyStatus            = "estado_invitacion"
	legacyFirstVisitAt      = "first_visit_at"
	legacyPlusOnesConfirmed = "plus_ones_selected"
)

// Document renders the guest as a stored field-set. The id is not part of it.
func (g Guest) Document() Fields {
	f := Fields{
		FieldName:            g.Name,
		FieldPlusOnesAllowed: g.PlusOnesAllowed,
		FieldToken:           g.Token,
		FieldGuestURL:        g.GuestURL,
	}
	if g.Status != "" {
		f[FieldStatus] = string(g.Status)
	}
	if g.Phone != "" {
		f[FieldPhone] = g.Phone
	}
	putTime(f, FieldCreatedAt, g.CreatedAt)
	putTime(f, FieldLimitDate, g.LimitDate)
	putTime(f, FieldUpdatedAt, g.UpdatedAt)
	putTime(f, FieldLastVisitAt, g.LastVisitAt)
	putTime(f, FieldAcceptedAt, g.AcceptedAt)
	if g.PlusOnesConfirmed != nil {
		f[FieldPlusOnesConfirmed] = *g.PlusOnesConfirmed
	}
	return f
}

func putTime(f Fields, key string, t *time.Time) {
	if t != nil {
		f[key] = *t
	}
}

// GuestFromDocument decodes a stored document. Values may come from
// Firestore (int64, time.Time) or from JSON (float64, RFC 3339 strings).
// Legacy keys are read when the current key is absent.
func GuestFromDocument(id string, data map[string]any) Guest {
	g := Guest{
		ID:       id,
		Name:     asString(first(data, FieldName, legacyName)),
		Phone:    asString(data[FieldPhone]),
		Token:    asString(data[FieldToken]),
		GuestURL: asString(data[FieldGuestURL]),
	}
	if n, ok := asInt(first(data, FieldPlusOnesAllowed, legacyPlusOnesAllowed)); ok {
		g.PlusOnesAllowed = n
	}
	if s, ok := ParseStatus(asString(first(data, FieldStatus, legacyStatus))); ok {
		g.Status = s
	}
	g.CreatedAt = asTime(data[FieldCreatedAt])
	g.LimitDate = asTime(data[FieldLimitDate])
	g.UpdatedAt = asTime(data[FieldUpdatedAt])
	g.LastVisitAt = asTime(first(data, FieldLastVisitAt, legacyFirstVisitAt))
	g.AcceptedAt = asTime(data[FieldAcceptedAt])
	if n, ok := asInt(first(data, FieldPlusOnesConfirmed, legacyPlusOnesConfirmed)); ok {
		g.PlusOnesConfirmed = &n
	}
	return g
}

func first(data map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := data[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func asTime(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return nil
		}
		u := t.UTC()
		return &u
	case *time.Time:
		if t == nil || t.IsZero() {
			return nil
		}
		u := t.UTC()
		return &u
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil
		}
		u := parsed.UTC()
		return &u
	}
	return nil
}
