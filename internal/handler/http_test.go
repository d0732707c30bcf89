package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"wedding-rsvp/internal/cache"
	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/service"
	"wedding-rsvp/internal/storage"
)

const adminToken = "s3cret"

func init() {
	gin.SetMode(gin.TestMode)
}

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func newGuestService(t *testing.T) (*service.GuestService, *testClock) {
	t.Helper()
	store, err := storage.NewFileStore("")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	clk := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := service.NewGuestService(store, cache.New(time.Hour, clk.Now), service.Config{
		BaseURL:        "https://boda.example",
		ResponseWindow: 14 * 24 * time.Hour,
		Now:            clk.Now,
	}, zerolog.Nop())
	return svc, clk
}

func do(t *testing.T, h http.Handler, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+adminToken)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestAdminRoutesRequireToken(t *testing.T) {
	t.Parallel()

	svc, _ := newGuestService(t)
	r := NewHTTPHandler(svc, nil, adminToken, zerolog.Nop()).Router()

	if rec := do(t, r, http.MethodGet, BasePath+"/", nil, false); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, BasePath+"/admin/invites", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with a wrong token, got %d", rec.Code)
	}

	locked := NewHTTPHandler(svc, nil, "", zerolog.Nop()).Router()
	req = httptest.NewRequest(http.MethodGet, BasePath+"/admin/invites", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec = httptest.NewRecorder()
	locked.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 when no admin token is configured, got %d", rec.Code)
	}
}

func TestGuestFlow(t *testing.T) {
	t.Parallel()

	svc, _ := newGuestService(t)
	r := NewHTTPHandler(svc, nil, adminToken, zerolog.Nop()).Router()

	rec := do(t, r, http.MethodPost, BasePath+"/", map[string]any{"name": "Ana", "plus_ones_allowed": 2}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[models.Guest](t, rec)

	rec = do(t, r, http.MethodGet, BasePath+"/invites/"+created.Token, nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("by token: expected 200, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodPost, BasePath+"/invites/visit", map[string]any{"token": created.Token}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("visit: expected 200, got %d", rec.Code)
	}
	if decode[models.Guest](t, rec).LastVisitAt == nil {
		t.Error("expected last_visit_at after a visit")
	}

	rec = do(t, r, http.MethodPost, BasePath+"/invites/rsvp", map[string]any{
		"token":              created.Token,
		"estado_invitacion":  "accepted",
		"plus_ones_selected": 1,
	}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("rsvp: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	answered := decode[models.Guest](t, rec)
	if answered.Status != models.StatusAccepted || answered.PlusOnesConfirmed == nil || *answered.PlusOnesConfirmed != 1 {
		t.Errorf("unexpected rsvp result %+v", answered)
	}

	rec = do(t, r, http.MethodGet, BasePath+"/admin/invites?status=accepted", nil, true)
	if got := decode[[]models.Guest](t, rec); len(got) != 1 || got[0].ID != created.ID {
		t.Errorf("expected the accepted guest in the filtered listing, got %+v", got)
	}
	rec = do(t, r, http.MethodGet, BasePath+"/admin/invites?status=rejected", nil, true)
	if got := decode[[]models.Guest](t, rec); len(got) != 0 {
		t.Errorf("expected an empty listing, got %+v", got)
	}
	if rec := do(t, r, http.MethodGet, BasePath+"/?status=maybe", nil, true); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown status filter, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodPatch, BasePath+"/admin/invites/"+created.ID, map[string]any{"name": "Ana María"}, true)
	if rec.Code != http.StatusOK || decode[models.Guest](t, rec).Name != "Ana María" {
		t.Errorf("update: got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, r, http.MethodPost, BasePath+"/admin/invites/"+created.ID+"/rotate-url", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("rotate: expected 200, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, BasePath+"/invites/"+created.Token, nil, false); rec.Code != http.StatusNotFound {
		t.Errorf("expected the old token to stop working, got %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	svc, clk := newGuestService(t)
	r := NewHTTPHandler(svc, nil, adminToken, zerolog.Nop()).Router()
	g, err := svc.Create(context.Background(), models.CreateInput{Name: "Luis", PlusOnesAllowed: 1})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown id", http.MethodGet, BasePath + "/admin/invites/nope", nil, http.StatusNotFound},
		{"unknown token", http.MethodPost, BasePath + "/invites/visit", map[string]any{"token": "nope"}, http.StatusNotFound},
		{"empty name", http.MethodPost, BasePath + "/", map[string]any{"name": " "}, http.StatusBadRequest},
		{"bad status", http.MethodPost, BasePath + "/invites/rsvp", map[string]any{"token": g.Token, "status": "maybe"}, http.StatusBadRequest},
		{"too many plus ones", http.MethodPost, BasePath + "/invites/rsvp", map[string]any{"token": g.Token, "status": "accepted", "plus_ones_confirmed": 3}, http.StatusBadRequest},
		{"whatsapp disabled", http.MethodPost, BasePath + "/admin/invites/" + g.ID + "/send", nil, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		if rec := do(t, r, tt.method, tt.path, tt.body, true); rec.Code != tt.want {
			t.Errorf("%s: expected %d, got %d: %s", tt.name, tt.want, rec.Code, rec.Body.String())
		}
	}

	clk.t = clk.t.Add(15 * 24 * time.Hour)
	rec := do(t, r, http.MethodPost, BasePath+"/invites/rsvp", map[string]any{"token": g.Token, "status": "accepted"}, false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 after the deadline, got %d", rec.Code)
	}
	if code := decode[map[string]string](t, rec)["code"]; code != "DEADLINE_PASSED" {
		t.Errorf("expected DEADLINE_PASSED, got %q", code)
	}
}

func TestImportRoute(t *testing.T) {
	t.Parallel()

	svc, _ := newGuestService(t)
	r := NewHTTPHandler(svc, nil, adminToken, zerolog.Nop()).Router()
	two := 2
	rows := []models.ImportRow{{Name: "Ana"}, {Name: "Luis", PlusOnesAllowed: &two}}

	rec := do(t, r, http.MethodPost, BasePath+"/admin/invites/import", map[string]any{"rows": rows}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("import: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if res := decode[models.ImportResult](t, rec); res.Created != 2 {
		t.Errorf("expected 2 created, got %+v", res)
	}

	rec = do(t, r, http.MethodPost, BasePath+"/admin/invites/import", map[string]any{"rows": rows}, true)
	if res := decode[models.ImportResult](t, rec); res.Created != 0 || res.Updated != 2 {
		t.Errorf("expected a re-import to update, got %+v", res)
	}

	rec = do(t, r, http.MethodGet, BasePath+"/", nil, true)
	if got := decode[[]models.Guest](t, rec); len(got) != 2 {
		t.Errorf("expected 2 guests, got %d", len(got))
	}
}

func TestCollectionRoutesAnswerWithoutRedirect(t *testing.T) {
	t.Parallel()

	svc, _ := newGuestService(t)
	r := NewHTTPHandler(svc, nil, adminToken, zerolog.Nop()).Router()

	rec := do(t, r, http.MethodPost, BasePath, map[string]any{"name": "Ana"}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST %s: expected 201, got %d", BasePath, rec.Code)
	}
	for _, path := range []string{BasePath, BasePath + "/"} {
		rec := do(t, r, http.MethodGet, path, nil, true)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, rec.Code)
			continue
		}
		if got := decode[[]models.Guest](t, rec); len(got) != 1 {
			t.Errorf("GET %s: expected 1 guest, got %d", path, len(got))
		}
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	svc, _ := newGuestService(t)
	r := NewHTTPHandler(svc, nil, adminToken, zerolog.Nop()).Router()
	if rec := do(t, r, http.MethodGet, "/healthz", nil, false); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
