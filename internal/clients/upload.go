// Package clients – UploadClient
//
// Facade over the media upload service, which turns a pending avatar payload
// (a data-URL string) into a hosted image with a canonical URL.
package clients

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// UploadedImage is the upload service's description of a stored image.
type UploadedImage struct {
	// SecureURL is the canonical HTTPS URL of the uploaded resource.
	SecureURL string `json:"secure_url"`
	// PublicID is the upstream asset identifier, when provided.
	PublicID string `json:"public_id,omitempty"`
}

// uploadRequest is the JSON payload sent to the upload service.
type uploadRequest struct {
	Data string `json:"data"`
}

// UploadClient talks to the upload service.
type UploadClient struct {
	base string
	hc   *http.Client
	log  zerolog.Logger
}

// NewUploadClient constructs an UploadClient for the given base URL.
func NewUploadClient(baseURL string, timeout time.Duration, log zerolog.Logger) *UploadClient {
	return &UploadClient{
		base: strings.TrimRight(baseURL, "/"),
		hc:   newHTTPClient(timeout),
		log:  log.With().Str("client", "upload").Logger(),
	}
}

// UploadImage stores the avatar payload and returns the uploaded resource.
// A nil result with a nil error means the service answered but stored
// nothing (an empty body) — the soft-failure case callers must not treat as
// success.
func (c *UploadClient) UploadImage(ctx context.Context, payload string) (*UploadedImage, error) {
	raw, err := doJSON(ctx, c.hc, http.MethodPost, c.base+"/api/upload/customer", uploadRequest{Data: payload})
	if err != nil {
		return nil, err
	}
	var img UploadedImage
	ok, err := decodeInto(raw, &img)
	if err != nil {
		return nil, err
	}
	if !ok || img.SecureURL == "" {
		c.log.Warn().Msg("upload service returned no resource")
		return nil, nil
	}
	return &img, nil
}
