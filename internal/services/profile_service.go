// Package services – ProfileController
//
// This file implements the profile session controller, the orchestration
// core of the backend. One controller instance owns the screen state of one
// signed-in customer (profile, order history, flags) across an explicit
// lifecycle: created → active (Initialize) → disposed (Finalize).
//
// The controller coordinates four remote services and the realtime channel:
// on activation it opens the channel and loads profile + orders; on a
// confirmed order cancellation it cancels upstream, refetches the order
// history, creates a notification record and only then broadcasts a chat
// message; on profile update it uploads a pending avatar payload before
// persisting the record. All remote failures are converted into one-way
// user-facing indicators and typed sentinel errors.
package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-profile-backend/internal/domain"
)

//
// Collaborator contracts (consumer-side interfaces)
//

// CustomerAPI is the customer-service contract required by the controller.
type CustomerAPI interface {
	// GetByEmail fetches the customer record keyed by email.
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	// Update persists the full customer record keyed by user id. ok=false
	// means the service answered but did not apply the update.
	Update(ctx context.Context, userID int64, cust *domain.Customer) (bool, error)
}

// OrderAPI is the order-service contract required by the controller.
type OrderAPI interface {
	// ListByEmail returns the customer's order history.
	ListByEmail(ctx context.Context, email string) ([]domain.Order, error)
	// Cancel transitions orderID to cancelled.
	Cancel(ctx context.Context, orderID int64) error
}

// NotificationAPI is the notification-service contract.
type NotificationAPI interface {
	// Create posts a notification record and returns once it is durably
	// accepted upstream.
	Create(ctx context.Context, n domain.Notification) error
}

// UploadAPI is the upload-service contract. A nil result with a nil error
// is the soft-failure case (nothing was stored).
type UploadAPI interface {
	UploadImage(ctx context.Context, payload string) (*UploadedImage, error)
}

// UploadedImage mirrors the upload service's stored-resource description.
type UploadedImage struct {
	SecureURL string
	PublicID  string
}

// Broadcaster is the realtime channel contract: fire-and-forget broadcast,
// at-most-once delivery, no acknowledgement surfaced to the controller.
type Broadcaster interface {
	Open() error
	Close() error
	Send(msg domain.ChatMessage) error
}

// ConfirmationPrompt collects a yes/no decision before a destructive action.
type ConfirmationPrompt interface {
	Ask(ctx context.Context, message string) (bool, error)
}

// ConfirmFunc adapts a function to the ConfirmationPrompt interface.
type ConfirmFunc func(ctx context.Context, message string) (bool, error)

// Ask implements ConfirmationPrompt.
func (f ConfirmFunc) Ask(ctx context.Context, message string) (bool, error) { return f(ctx, message) }

// StaticConfirm returns a prompt that always answers with the given decision
// (the HTTP layer uses it to carry the browser-side confirmation result).
func StaticConfirm(confirmed bool) ConfirmationPrompt {
	return ConfirmFunc(func(context.Context, string) (bool, error) { return confirmed, nil })
}

// ToastPresenter receives one-way user-facing result indicators. No return
// value is consumed by the controller.
type ToastPresenter interface {
	Success(msg string)
	Error(msg, context string)
}

// Navigator receives navigation instructions. Home is the recovery action
// for an unresolvable session identity.
type Navigator interface {
	Home()
}

//
// Default collaborators
//

// LogToast is a ToastPresenter that records indicators in the service log.
type LogToast struct{ Log zerolog.Logger }

// Success implements ToastPresenter.
func (t LogToast) Success(msg string) { t.Log.Info().Str("toast", "success").Msg(msg) }

// Error implements ToastPresenter.
func (t LogToast) Error(msg, context string) {
	t.Log.Warn().Str("toast", "error").Str("context", context).Msg(msg)
}

// NopNavigator ignores navigation instructions (the HTTP layer derives the
// redirect from the returned error instead).
type NopNavigator struct{}

// Home implements Navigator.
func (NopNavigator) Home() {}

//
// Controller
//

// Phase is the controller lifecycle state.
type Phase int

const (
	// PhaseCreated is a controller that has not been initialized yet.
	PhaseCreated Phase = iota
	// PhaseActive is an initialized controller.
	PhaseActive
	// PhaseDisposed is a finalized controller; it accepts no further work.
	PhaseDisposed
)

// User-facing indicator texts. The HTTP layer localizes its own response
// messages; these are the controller's log-visible equivalents.
const (
	msgCustomerLookup  = "could not load profile"
	msgOrderLookup     = "server error"
	msgCancelConfirm   = "Do you want to cancel this order?"
	msgCancelSuccess   = "order cancelled successfully"
	msgServerError     = "server error"
	msgUpdateSuccess   = "profile updated"
	msgUpdateSoftError = "update was not applied"

	// cancelledPhrase is the fixed chat body appended after the sender name.
	cancelledPhrase = "cancelled an order"
)

// Deps bundles the controller's collaborators. Toast and Nav default to
// LogToast/NopNavigator when left nil.
type Deps struct {
	Customers     CustomerAPI
	Orders        OrderAPI
	Notifications NotificationAPI
	Uploads       UploadAPI
	Channel       Broadcaster
	// Channels, when set, supplies a fresh per-session channel for each
	// controller the Registry creates, overriding Channel. Controllers built
	// directly use Channel as-is.
	Channels func() Broadcaster
	Toast    ToastPresenter
	Nav      Navigator
	Log      zerolog.Logger
}

// Snapshot is a copy of the controller state handed to the transport layer.
type Snapshot struct {
	Customer          *domain.Customer
	Orders            []domain.Order
	CompletedCount    int
	OrdersUnavailable bool
	Updating          bool
	Phase             Phase
}

// CustomerUpdate carries the editable profile fields. ImageBlob is the
// optional pending avatar payload; nil means no avatar change.
type CustomerUpdate struct {
	Name      string
	Phone     string
	Address   string
	ImageBlob *string
}

// ProfileController owns one customer's profile session. All methods are
// safe for concurrent use; operations on the same session serialize on an
// internal mutex while operations on distinct sessions proceed in parallel.
type ProfileController struct {
	deps     Deps
	identity string

	mu                sync.Mutex
	phase             Phase
	customer          *domain.Customer
	orders            []domain.Order
	completedCount    int
	ordersUnavailable bool
	updating          bool
}

// NewProfileController constructs a controller for the given session
// identity (the signed-in customer's email). The controller starts in
// PhaseCreated; call Initialize to activate it.
func NewProfileController(deps Deps, identity string) *ProfileController {
	if deps.Toast == nil {
		deps.Toast = LogToast{Log: deps.Log}
	}
	if deps.Nav == nil {
		deps.Nav = NopNavigator{}
	}
	return &ProfileController{deps: deps, identity: identity}
}

// Identity returns the session identity the controller was created for.
func (p *ProfileController) Identity() string { return p.identity }

// Initialize activates the session: it opens the realtime channel
// (idempotent) and issues exactly one customer fetch and one orders fetch.
// The two fetches are independent; an orders failure never suppresses the
// customer result and vice versa.
//
// On customer-lookup failure the controller reports the error, instructs
// navigation to the home destination, and returns ErrCustomerLookup: the
// session is unusable without an identity. An orders failure only marks the
// order state unavailable.
func (p *ProfileController) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase == PhaseDisposed {
		return ErrNotActive
	}

	if p.deps.Channel != nil {
		if err := p.deps.Channel.Open(); err != nil {
			p.deps.Log.Warn().Err(err).Msg("realtime channel open failed")
		}
	}

	custErr := p.loadCustomerLocked(ctx)
	ordErr := p.loadOrdersLocked(ctx)

	if custErr != nil {
		p.deps.Toast.Error(msgCustomerLookup, "system")
		p.deps.Nav.Home()
		return fmt.Errorf("%w: %v", ErrCustomerLookup, custErr)
	}
	if ordErr != nil {
		p.deps.Toast.Error(msgOrderLookup, "system")
	}

	p.phase = PhaseActive
	return nil
}

// Finalize closes the realtime channel and disposes the session. It is safe
// to call on a controller that was never initialized and safe to call twice.
func (p *ProfileController) Finalize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.phase = PhaseDisposed
	if p.deps.Channel != nil {
		return p.deps.Channel.Close()
	}
	return nil
}

// Snapshot returns a copy of the current session state.
func (p *ProfileController) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	var cust *domain.Customer
	if p.customer != nil {
		c := *p.customer
		cust = &c
	}
	orders := make([]domain.Order, len(p.orders))
	copy(orders, p.orders)

	return Snapshot{
		Customer:          cust,
		Orders:            orders,
		CompletedCount:    p.completedCount,
		OrdersUnavailable: p.ordersUnavailable,
		Updating:          p.updating,
		Phase:             p.phase,
	}
}

// RefreshOrders re-runs the authoritative orders fetch and recomputes the
// completed count.
func (p *ProfileController) RefreshOrders(ctx context.Context) ([]domain.Order, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.loadOrdersLocked(ctx); err != nil {
		p.deps.Toast.Error(msgOrderLookup, "system")
		return nil, 0, fmt.Errorf("%w: %v", ErrOrderLookup, err)
	}
	orders := make([]domain.Order, len(p.orders))
	copy(orders, p.orders)
	return orders, p.completedCount, nil
}

// CancelOrder cancels orderID on the customer's behalf.
//
// Sequencing, on a confirmed cancellation that succeeds upstream:
//  1. full orders refetch, so local state reflects the authoritative
//     post-cancellation status
//  2. notification record created (and durably accepted upstream)
//  3. chat broadcast over the realtime channel — never before step 2
//     completes
//  4. success indicator
//
// The sentinel domain.NoOrderSelected is a no-op and never reaches the
// order service. A declined confirmation performs zero remote calls and
// leaves state unchanged. A failed cancel reports a generic server error
// and sends nothing.
func (p *ProfileController) CancelOrder(ctx context.Context, orderID int64, confirm ConfirmationPrompt) error {
	if orderID == domain.NoOrderSelected {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase != PhaseActive {
		return ErrNotActive
	}

	if confirm != nil {
		ok, err := confirm.Ask(ctx, msgCancelConfirm)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	if err := p.deps.Orders.Cancel(ctx, orderID); err != nil {
		p.deps.Toast.Error(msgServerError, "system")
		return fmt.Errorf("%w: %v", ErrOrderCancel, err)
	}

	// Authoritative refresh; a failure here keeps stale local state but does
	// not undo the cancellation.
	if err := p.loadOrdersLocked(ctx); err != nil {
		p.deps.Toast.Error(msgOrderLookup, "system")
	}

	p.notifyCancelledLocked(ctx, orderID)

	p.deps.Toast.Success(msgCancelSuccess)
	return nil
}

// notifyCancelledLocked emits the notification record and, strictly after
// its completion, the chat broadcast. A notification failure suppresses the
// broadcast so the pair can never diverge from the at-most-once contract.
func (p *ProfileController) notifyCancelledLocked(ctx context.Context, orderID int64) {
	sender := p.identity
	if p.customer != nil && p.customer.Name != "" {
		sender = p.customer.Name
	}

	n := domain.Notification{
		Content: fmt.Sprintf("%s %s (%d)", sender, cancelledPhrase, orderID),
	}
	if err := p.deps.Notifications.Create(ctx, n); err != nil {
		p.deps.Log.Warn().Err(err).Int64("order_id", orderID).Msg("notification create failed, broadcast skipped")
		return
	}

	if p.deps.Channel != nil {
		msg := domain.ChatMessage{Sender: sender, Content: cancelledPhrase}
		if err := p.deps.Channel.Send(msg); err != nil {
			p.deps.Log.Warn().Err(err).Msg("chat broadcast failed")
		}
	}
}

// UpdateCustomer applies the edit to the active customer context and
// persists it. A pending avatar payload is uploaded first; on a stored
// result the image reference is replaced with the canonical URL before the
// persist. The updating flag is held for the duration and cleared on every
// path.
func (p *ProfileController) UpdateCustomer(ctx context.Context, update CustomerUpdate) (*domain.Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase != PhaseActive || p.customer == nil {
		return nil, ErrNotActive
	}

	p.updating = true
	defer func() { p.updating = false }()

	cust := *p.customer
	if update.Name != "" {
		cust.Name = update.Name
	}
	if update.Phone != "" {
		cust.Phone = update.Phone
	}
	if update.Address != "" {
		cust.Address = update.Address
	}
	cust.ImageBlob = update.ImageBlob

	if cust.ImageBlob != nil && *cust.ImageBlob != "" {
		img, err := p.deps.Uploads.UploadImage(ctx, *cust.ImageBlob)
		if err != nil {
			p.deps.Toast.Error(msgServerError, "system")
			return nil, fmt.Errorf("upload image: %w", err)
		}
		if img == nil {
			p.deps.Toast.Error(msgUpdateSoftError, "system")
			return nil, ErrUpdateNotApplied
		}
		cust.Image = img.SecureURL
		cust.ImageBlob = nil
	}

	ok, err := p.deps.Customers.Update(ctx, cust.UserID, &cust)
	if err != nil {
		p.deps.Toast.Error(msgServerError, "system")
		return nil, fmt.Errorf("persist customer: %w", err)
	}
	if !ok {
		p.deps.Toast.Error(msgUpdateSoftError, "system")
		return nil, ErrUpdateNotApplied
	}

	p.customer = &cust
	p.deps.Toast.Success(msgUpdateSuccess)
	out := cust
	return &out, nil
}

// loadCustomerLocked fetches the customer record for the session identity.
func (p *ProfileController) loadCustomerLocked(ctx context.Context) error {
	cust, err := p.deps.Customers.GetByEmail(ctx, p.identity)
	if err != nil {
		return err
	}
	p.customer = cust
	return nil
}

// loadOrdersLocked fetches the order history and recomputes completedCount.
func (p *ProfileController) loadOrdersLocked(ctx context.Context) error {
	orders, err := p.deps.Orders.ListByEmail(ctx, p.identity)
	if err != nil {
		p.ordersUnavailable = true
		return err
	}
	p.orders = orders
	p.ordersUnavailable = false
	p.completedCount = 0
	for _, o := range orders {
		if o.Status == domain.StatusCompleted {
			p.completedCount++
		}
	}
	return nil
}
