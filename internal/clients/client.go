// Package clients provides typed HTTP facades over the remote services the
// profile backend orchestrates: customer, order, notification, and upload.
// Each client owns a base URL and a shared *http.Client; every call is
// context-aware so upstream timeouts and cancellation propagate.
//
// Error taxonomy:
//   - transport failures (dial, timeout, context) are returned wrapped, as-is
//   - HTTP 404 maps to ErrNotFound
//   - any other non-2xx status maps to *Error carrying the status and a
//     truncated body for logging
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotFound indicates the upstream resource does not exist.
var ErrNotFound = errors.New("resource not found")

// Error is a non-2xx upstream response that is not a plain 404.
type Error struct {
	// Status is the upstream HTTP status code.
	Status int
	// Body is the (truncated) response body, kept for diagnostics.
	Body string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Body)
}

// maxErrBody caps how much of an upstream error body is retained.
const maxErrBody = 512

// newHTTPClient builds the http.Client shared by all upstream facades.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// doJSON performs an HTTP round trip with optional JSON request and response
// bodies. It returns the raw response bytes so callers can apply their own
// empty-body semantics on top of the decoded value.
func doJSON(ctx context.Context, hc *http.Client, method, url string, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 400:
		b := strings.TrimSpace(string(raw))
		if len(b) > maxErrBody {
			b = b[:maxErrBody]
		}
		return nil, &Error{Status: resp.StatusCode, Body: b}
	}
	return raw, nil
}

// decodeInto unmarshals raw into out when raw carries a value. It reports
// whether a value was present: an empty, "null", or "false" body is the
// upstream's way of saying "nothing was done" and decodes to false.
func decodeInto(raw []byte, out any) (bool, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" || s == "false" {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}
