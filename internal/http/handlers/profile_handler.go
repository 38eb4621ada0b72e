// Package handlers implements the Gin HTTP handlers for the profile API.
//
// ProfileHandler is transport-thin: it resolves the session identity, parses
// and validates the request, delegates to the session controller, and maps
// typed controller errors to stable error codes. Response messages are
// localized against the Accept-Language header.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-profile-backend/internal/domain"
	"github.com/tbourn/go-profile-backend/internal/http/middleware"
	"github.com/tbourn/go-profile-backend/internal/i18n"
	"github.com/tbourn/go-profile-backend/internal/services"
	"github.com/tbourn/go-profile-backend/internal/utils"
)

// identityHeader carries the signed-in customer's identity (their email).
// Authentication itself is terminated at the gateway in front of this
// service; the header is trusted here.
const identityHeader = "X-User-ID"

// SessionRegistry is the session-management contract the handler requires.
type SessionRegistry interface {
	// Get returns the active controller for identity, creating and
	// initializing one when needed.
	Get(ctx context.Context, identity string) (*services.ProfileController, error)
	// Dispose finalizes and removes the session for identity.
	Dispose(identity string) error
}

// IdempotencyRecorder records a completed cancel attempt so a client retry
// with the same Idempotency-Key replays the outcome instead of re-running
// side effects.
type IdempotencyRecorder interface {
	Record(ctx context.Context, userID, orderID, key string, status int) error
}

// ProfileHandler serves the customer profile screen API.
type ProfileHandler struct {
	sessions SessionRegistry
	idem     IdempotencyRecorder
}

// NewProfileHandler wires a ProfileHandler. idem may be nil when replay
// protection is disabled (tests).
func NewProfileHandler(sessions SessionRegistry, idem IdempotencyRecorder) *ProfileHandler {
	return &ProfileHandler{sessions: sessions, idem: idem}
}

// profileResponse is the GET /profile payload.
type profileResponse struct {
	Customer          *domain.Customer `json:"customer"`
	Orders            []domain.Order   `json:"orders"`
	CompletedCount    int              `json:"completed_count"`
	OrdersUnavailable bool             `json:"orders_unavailable"`
}

// ordersResponse is the GET /profile/orders payload.
type ordersResponse struct {
	Orders         []domain.Order `json:"orders"`
	CompletedCount int            `json:"completed_count"`
}

// updateProfileRequest is the PUT /profile body. Empty fields are left
// unchanged; image_blob carries the pending avatar payload.
type updateProfileRequest struct {
	Name      string  `json:"name"`
	Phone     string  `json:"phone"`
	Address   string  `json:"address"`
	ImageBlob *string `json:"image_blob"`
}

// updateProfileResponse is the PUT /profile payload.
type updateProfileResponse struct {
	Customer *domain.Customer `json:"customer"`
	Message  string           `json:"message"`
}

// cancelOrderRequest is the POST /orders/:id/cancel body. Confirmed carries
// the browser-side confirmation dialog result.
type cancelOrderRequest struct {
	Confirmed bool `json:"confirmed"`
}

// cancelOrderResponse is the POST /orders/:id/cancel payload.
type cancelOrderResponse struct {
	Cancelled bool           `json:"cancelled"`
	Message   string         `json:"message"`
	Orders    []domain.Order `json:"orders,omitempty"`
}

// identity resolves the session identity or writes a 401 and returns "".
func (h *ProfileHandler) identity(c *gin.Context) string {
	id := strings.TrimSpace(c.GetHeader(identityHeader))
	if id == "" {
		fail(c, http.StatusUnauthorized, CodeUnauthorized, "missing "+identityHeader+" header")
		return ""
	}
	return id
}

// session fetches (or activates) the controller for the request identity,
// mapping activation failures to responses. A customer-lookup failure makes
// the session unusable, so the response carries a redirect hint to "/".
func (h *ProfileHandler) session(c *gin.Context, identity string) *services.ProfileController {
	lang := i18n.Match(c.GetHeader("Accept-Language"))

	pc, err := h.sessions.Get(c.Request.Context(), identity)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("session activation failed")
		if errors.Is(err, services.ErrCustomerLookup) {
			failRedirect(c, http.StatusNotFound, CodeCustomerLookupFailed,
				i18n.T(lang, i18n.KeyCustomerLookup), "/")
			return nil
		}
		failCtx(c, http.StatusInternalServerError, CodeInternal,
			i18n.T(lang, i18n.KeyServerError), i18n.T(lang, i18n.KeySystem))
		return nil
	}
	return pc
}

// GetProfile handles GET /profile: it returns the session snapshot, creating
// and activating the session on first use.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	id := h.identity(c)
	if id == "" {
		return
	}
	pc := h.session(c, id)
	if pc == nil {
		return
	}

	snap := pc.Snapshot()
	c.JSON(http.StatusOK, profileResponse{
		Customer:          snap.Customer,
		Orders:            snap.Orders,
		CompletedCount:    snap.CompletedCount,
		OrdersUnavailable: snap.OrdersUnavailable,
	})
}

// RefreshOrders handles GET /profile/orders: a forced authoritative refetch
// of the order history.
func (h *ProfileHandler) RefreshOrders(c *gin.Context) {
	id := h.identity(c)
	if id == "" {
		return
	}
	pc := h.session(c, id)
	if pc == nil {
		return
	}
	lang := i18n.Match(c.GetHeader("Accept-Language"))

	orders, completed, err := pc.RefreshOrders(c.Request.Context())
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("order refresh failed")
		failCtx(c, http.StatusBadGateway, CodeOrderLookupFailed,
			i18n.T(lang, i18n.KeyServerError), i18n.T(lang, i18n.KeySystem))
		return
	}
	c.JSON(http.StatusOK, ordersResponse{Orders: orders, CompletedCount: completed})
}

// UpdateProfile handles PUT /profile: merge the edit, upload a pending
// avatar when present, persist, and return the committed record.
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	id := h.identity(c)
	if id == "" {
		return
	}
	lang := i18n.Match(c.GetHeader("Accept-Language"))

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}

	pc := h.session(c, id)
	if pc == nil {
		return
	}

	cust, err := pc.UpdateCustomer(c.Request.Context(), services.CustomerUpdate{
		Name:      req.Name,
		Phone:     req.Phone,
		Address:   req.Address,
		ImageBlob: req.ImageBlob,
	})
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("profile update failed")
		switch {
		case errors.Is(err, services.ErrUpdateNotApplied):
			fail(c, http.StatusUnprocessableEntity, CodeUpdateNotApplied, i18n.T(lang, i18n.KeyUpdateNotApplied))
		case errors.Is(err, services.ErrNotActive):
			failCtx(c, http.StatusConflict, CodeSessionNotActive,
				i18n.T(lang, i18n.KeyServerError), i18n.T(lang, i18n.KeySystem))
		default:
			failCtx(c, http.StatusBadGateway, CodeInternal,
				i18n.T(lang, i18n.KeyServerError), i18n.T(lang, i18n.KeySystem))
		}
		return
	}

	c.JSON(http.StatusOK, updateProfileResponse{
		Customer: cust,
		Message:  i18n.T(lang, i18n.KeyUpdateSuccess),
	})
}

// CancelOrder handles POST /orders/:id/cancel.
//
// The body carries the confirmation dialog result; a declined confirmation
// performs zero remote calls. With an Idempotency-Key header, a retry of a
// completed attempt replays the recorded status without re-running side
// effects, preserving at-most-once notification and broadcast.
func (h *ProfileHandler) CancelOrder(c *gin.Context) {
	id := h.identity(c)
	if id == "" {
		return
	}
	lang := i18n.Match(c.GetHeader("Accept-Language"))

	rawID := c.Param("id")
	orderID, ok := utils.ParseID(rawID)
	if !ok || orderID <= 0 {
		// Order ids are positive; this also rejects the client-side
		// "no order selected" sentinel before it reaches the controller.
		fail(c, http.StatusBadRequest, CodeBadRequest, "invalid order id")
		return
	}

	if status, replay := middleware.IsReplay(c); replay {
		middleware.LoggerFrom(c).Info().Str("order_id", rawID).Msg("idempotent cancel replay")
		c.JSON(status, cancelOrderResponse{
			Cancelled: status == http.StatusOK,
			Message:   i18n.T(lang, i18n.KeyCancelSuccess),
		})
		return
	}

	var req cancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}

	pc := h.session(c, id)
	if pc == nil {
		return
	}

	err := pc.CancelOrder(c.Request.Context(), orderID, services.StaticConfirm(req.Confirmed))
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Int64("order_id", orderID).Msg("order cancel failed")
		switch {
		case errors.Is(err, services.ErrOrderCancel):
			failCtx(c, http.StatusBadGateway, CodeCancelFailed,
				i18n.T(lang, i18n.KeyServerError), i18n.T(lang, i18n.KeySystem))
		case errors.Is(err, services.ErrNotActive):
			failCtx(c, http.StatusConflict, CodeSessionNotActive,
				i18n.T(lang, i18n.KeyServerError), i18n.T(lang, i18n.KeySystem))
		default:
			failCtx(c, http.StatusInternalServerError, CodeInternal,
				i18n.T(lang, i18n.KeyServerError), i18n.T(lang, i18n.KeySystem))
		}
		return
	}

	if !req.Confirmed {
		c.JSON(http.StatusOK, cancelOrderResponse{
			Cancelled: false,
			Message:   i18n.T(lang, i18n.KeyCancelDeclined),
		})
		return
	}

	h.recordIdempotency(c, id, rawID, http.StatusOK)

	snap := pc.Snapshot()
	c.JSON(http.StatusOK, cancelOrderResponse{
		Cancelled: true,
		Message:   i18n.T(lang, i18n.KeyCancelSuccess),
		Orders:    snap.Orders,
	})
}

// recordIdempotency persists the outcome for a keyed cancel. Failures are
// logged and otherwise ignored: replay protection is best effort, the cancel
// itself already succeeded.
func (h *ProfileHandler) recordIdempotency(c *gin.Context, userID, orderID string, status int) {
	key := middleware.GetIdempotencyKey(c)
	if key == "" || h.idem == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.idem.Record(ctx, userID, orderID, key, status); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record failed")
	}
}

// FinalizeSession handles DELETE /profile/session: it closes the realtime
// channel and disposes the session state. Disposing an unknown session is a
// no-op and still answers 204.
func (h *ProfileHandler) FinalizeSession(c *gin.Context) {
	id := h.identity(c)
	if id == "" {
		return
	}
	if err := h.sessions.Dispose(id); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("session dispose reported error")
	}
	c.Status(http.StatusNoContent)
}
