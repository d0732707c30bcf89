package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"wedding-rsvp/internal/models"
)

// BasePath is where the guest API is mounted
const BasePath = "/wedding-guests"

// Guests is the part of the guest service the HTTP layer calls
type Guests interface {
	Create(ctx context.Context, in models.CreateInput) (models.Guest, error)
	FindAll(ctx context.Context, status ...models.InvitationStatus) ([]models.Guest, error)
	FindOne(ctx context.Context, id string) (models.Guest, error)
	FindByToken(ctx context.Context, tok string) (models.Guest, error)
	Update(ctx context.Context, id string, in models.UpdateInput) (models.Guest, error)
	RotateURL(ctx context.Context, id string) (string, error)
	RegisterVisit(ctx context.Context, tok string) (models.Guest, error)
	UpdateRSVP(ctx context.Context, tok string, status models.InvitationStatus, plusOnesConfirmed *int) (models.Guest, error)
	ImportFromCSV(ctx context.Context, rows []models.ImportRow) (models.ImportResult, error)
}

// InvitationSender delivers a guest's invitation link
type InvitationSender interface {
	Send(ctx context.Context, id string) (models.Guest, error)
}

type HTTPHandler struct {
	guests     Guests
	sender     InvitationSender
	adminToken string
	log        zerolog.Logger
}

// NewHTTPHandler creates the HTTP handler. sender may be nil when the
// WhatsApp channel is disabled.
func NewHTTPHandler(guests Guests, sender InvitationSender, adminToken string, log zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		guests:     guests,
		sender:     sender,
		adminToken: adminToken,
		log:        log.With().Str("component", "http").Logger(),
	}
}

// Router builds the gin engine with every route registered
func (h *HTTPHandler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group(BasePath)
	api.POST("/invites/visit", h.visit)
	api.POST("/invites/rsvp", h.rsvp)
	api.GET("/invites/:token", h.byToken)

	admin := api.Group("", h.requireAdmin)
	admin.POST("", h.create)
	admin.GET("", h.list)
	admin.POST("/", h.create)
	admin.GET("/", h.list)
	admin.GET("/admin/invites", h.list)
	admin.POST("/admin/invites/import", h.importRows)
	admin.GET("/admin/invites/:id", h.findOne)
	admin.PATCH("/admin/invites/:id", h.update)
	admin.POST("/admin/invites/:id/rotate-url", h.rotateURL)
	admin.POST("/admin/invites/:id/send", h.send)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": "PAGE_NOT_FOUND", "message": "Page not found"})
	})
	return r
}

func (h *HTTPHandler) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()

	status := c.Writer.Status()
	evt := h.log.Info()
	switch {
	case status >= http.StatusInternalServerError:
		evt = h.log.Error()
	case status >= http.StatusBadRequest:
		evt = h.log.Warn()
	}
	evt.Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Int("status", status).
		Dur("latency", time.Since(start)).
		Msg("Request")
}

// requireAdmin checks the bearer token. An empty configured token locks the admin routes.
func (h *HTTPHandler) requireAdmin(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	got, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || h.adminToken == "" || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(h.adminToken)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "invalid admin token"})
		return
	}
	c.Next()
}

// fail maps service errors onto status codes
func (h *HTTPHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "message": err.Error()})
	case errors.Is(err, models.ErrDeadlinePassed):
		c.JSON(http.StatusBadRequest, gin.H{"code": "DEADLINE_PASSED", "message": err.Error()})
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION", "message": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL", "message": "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION", "message": err.Error()})
}

func (h *HTTPHandler) create(c *gin.Context) {
	var in models.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	g, err := h.guests.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *HTTPHandler) list(c *gin.Context) {
	var filter []models.InvitationStatus
	if raw := c.Query("status"); raw != "" {
		st, ok := models.ParseStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION", "message": "unknown status " + raw})
			return
		}
		filter = append(filter, st)
	}
	guests, err := h.guests.FindAll(c.Request.Context(), filter...)
	if err != nil {
		h.fail(c, err)
		return
	}
	if guests == nil {
		guests = []models.Guest{}
	}
	c.JSON(http.StatusOK, guests)
}

func (h *HTTPHandler) findOne(c *gin.Context) {
	g, err := h.guests.FindOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *HTTPHandler) update(c *gin.Context) {
	var in models.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	g, err := h.guests.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *HTTPHandler) rotateURL(c *gin.Context) {
	url, err := h.guests.RotateURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"guest_url": url})
}

type importRequest struct {
	Rows []models.ImportRow `json:"rows"`
}

func (h *HTTPHandler) importRows(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.guests.ImportFromCSV(c.Request.Context(), req.Rows)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *HTTPHandler) send(c *gin.Context) {
	if h.sender == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "UNAVAILABLE", "message": "whatsapp is not enabled"})
		return
	}
	g, err := h.sender.Send(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *HTTPHandler) byToken(c *gin.Context) {
	g, err := h.guests.FindByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

type visitRequest struct {
	Token string `json:"token"`
}

func (h *HTTPHandler) visit(c *gin.Context) {
	var req visitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	g, err := h.guests.RegisterVisit(c.Request.Context(), req.Token)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// rsvpRequest accepts both the current and the older field names
type rsvpRequest struct {
	Token             string `json:"token"`
	Status            string `json:"status"`
	LegacyStatus      string `json:"estado_invitacion"`
	PlusOnesConfirmed *int   `json:"plus_ones_confirmed"`
	PlusOnesSelected  *int   `json:"plus_ones_selected"`
}

func (h *HTTPHandler) rsvp(c *gin.Context) {
	var req rsvpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	status := req.Status
	if status == "" {
		status = req.LegacyStatus
	}
	plusOnes := req.PlusOnesConfirmed
	if plusOnes == nil {
		plusOnes = req.PlusOnesSelected
	}
	g, err := h.guests.UpdateRSVP(c.Request.Context(), req.Token, models.InvitationStatus(status), plusOnes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}
