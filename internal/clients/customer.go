// Package clients – CustomerClient
//
// Facade over the customer service: profile lookup by email and full-record
// persistence by user id.
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

// CustomerClient talks to the customer service.
type CustomerClient struct {
	base string
	hc   *http.Client
	log  zerolog.Logger
}

// NewCustomerClient constructs a CustomerClient for the given base URL.
func NewCustomerClient(baseURL string, timeout time.Duration, log zerolog.Logger) *CustomerClient {
	return &CustomerClient{
		base: strings.TrimRight(baseURL, "/"),
		hc:   newHTTPClient(timeout),
		log:  log.With().Str("client", "customer").Logger(),
	}
}

// GetByEmail fetches the customer record keyed by email. A missing customer
// is reported as ErrNotFound.
func (c *CustomerClient) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	u := fmt.Sprintf("%s/api/customers/by-email/%s", c.base, url.PathEscape(email))
	raw, err := doJSON(ctx, c.hc, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var cust domain.Customer
	ok, err := decodeInto(raw, &cust)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return &cust, nil
}

// Update persists the full customer record keyed by user id. The boolean
// result mirrors the upstream contract: false means the service accepted the
// call but did not apply the update (an empty/negative body), which callers
// must report as a soft failure distinct from a transport error.
func (c *CustomerClient) Update(ctx context.Context, userID int64, cust *domain.Customer) (bool, error) {
	u := fmt.Sprintf("%s/api/customers/%d", c.base, userID)
	raw, err := doJSON(ctx, c.hc, http.MethodPut, u, cust)
	if err != nil {
		return false, err
	}
	ok, err := decodeInto(raw, nil)
	if err != nil {
		return false, err
	}
	if !ok {
		c.log.Warn().Int64("user_id", userID).Msg("customer update not applied")
	}
	return ok, nil
}
