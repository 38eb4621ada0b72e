// Package clients – NotificationClient
//
// Facade over the notification service. Notifications are write-only from
// this backend's perspective: created and sent, never read back.
package clients

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-profile-backend/internal/domain"
)

// NotificationClient talks to the notification service.
type NotificationClient struct {
	base string
	hc   *http.Client
	log  zerolog.Logger
}

// NewNotificationClient constructs a NotificationClient for the given base URL.
func NewNotificationClient(baseURL string, timeout time.Duration, log zerolog.Logger) *NotificationClient {
	return &NotificationClient{
		base: strings.TrimRight(baseURL, "/"),
		hc:   newHTTPClient(timeout),
		log:  log.With().Str("client", "notification").Logger(),
	}
}

// Create posts a notification record. The caller leaves n.ID at zero; the
// notification service assigns the identity. Create returns only when the
// record has been durably accepted upstream, which is what lets callers
// order the realtime broadcast strictly after it.
func (c *NotificationClient) Create(ctx context.Context, n domain.Notification) error {
	if _, err := doJSON(ctx, c.hc, http.MethodPost, c.base+"/api/notifications", n); err != nil {
		return err
	}
	c.log.Debug().Str("content", n.Content).Msg("notification created")
	return nil
}
