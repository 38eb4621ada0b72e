// Package clients – OrderClient
//
// Facade over the order service: order history lookup by customer email and
// the cancel transition. This backend never creates or deletes orders.
package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-profile-backend/internal/domain"
)

// OrderClient talks to the order service.
type OrderClient struct {
	base string
	hc   *http.Client
	log  zerolog.Logger
}

// NewOrderClient constructs an OrderClient for the given base URL.
func NewOrderClient(baseURL string, timeout time.Duration, log zerolog.Logger) *OrderClient {
	return &OrderClient{
		base: strings.TrimRight(baseURL, "/"),
		hc:   newHTTPClient(timeout),
		log:  log.With().Str("client", "order").Logger(),
	}
}

// ListByEmail returns the order history for a customer, newest first as
// served by the order service. An empty history decodes to an empty slice,
// not an error.
func (c *OrderClient) ListByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	u := fmt.Sprintf("%s/api/orders?email=%s", c.base, url.QueryEscape(email))
	raw, err := doJSON(ctx, c.hc, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var orders []domain.Order
	if ok, err := decodeInto(raw, &orders); err != nil {
		return nil, err
	} else if !ok {
		return []domain.Order{}, nil
	}
	return orders, nil
}

// Cancel asks the order service to transition orderID to cancelled. The
// order service owns the legality of the transition; a rejection surfaces as
// *Error, a missing order as ErrNotFound.
func (c *OrderClient) Cancel(ctx context.Context, orderID int64) error {
	u := fmt.Sprintf("%s/api/orders/%d/cancel", c.base, orderID)
	if _, err := doJSON(ctx, c.hc, http.MethodPut, u, nil); err != nil {
		return err
	}
	c.log.Info().Int64("order_id", orderID).Msg("order cancelled upstream")
	return nil
}
