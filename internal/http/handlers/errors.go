// Package handlers implements the Gin HTTP handlers for the profile API.
// This file defines the stable machine-readable error codes returned in the
// JSON error envelope. Clients branch on Code; Message is human-readable and
// localized per Accept-Language.
package handlers

// Stable error codes for API responses.
const (
	// CodeBadRequest flags a malformed request (body, parameters, headers).
	CodeBadRequest = "bad_request"
	// CodeUnauthorized flags a request without a resolvable identity.
	CodeUnauthorized = "unauthorized"
	// CodeNotFound flags an unknown route or resource.
	CodeNotFound = "not_found"
	// CodeMethodNotAllowed flags an unsupported method on a known route.
	CodeMethodNotAllowed = "method_not_allowed"
	// CodeRateLimited flags requests rejected by the rate limiter.
	CodeRateLimited = "rate_limited"
	// CodeInternal flags unexpected server-side failures.
	CodeInternal = "internal_error"

	// CodeCustomerLookupFailed flags a profile that could not be resolved;
	// responses carry a redirect hint to the home destination.
	CodeCustomerLookupFailed = "customer_lookup_failed"
	// CodeOrderLookupFailed flags an order-history fetch that failed upstream.
	CodeOrderLookupFailed = "order_lookup_failed"
	// CodeCancelFailed flags an order cancellation rejected or failed upstream.
	CodeCancelFailed = "cancel_failed"
	// CodeUpdateNotApplied flags a profile edit the upstream answered but did
	// not apply (soft failure).
	CodeUpdateNotApplied = "update_not_applied"
	// CodeSessionNotActive flags an operation on a disposed session.
	CodeSessionNotActive = "session_not_active"
)
