// Package services implements the profile session controller and its
// collaborator contracts. This file centralizes service-level error values
// so they can be consistently returned by controller methods and mapped to
// HTTP results at the handler layer.
package services

import "errors"

var (
	// ErrNotActive indicates the session has not been initialized (or was
	// disposed) and the requested operation needs an active customer context.
	ErrNotActive = errors.New("profile session not active")

	// ErrCustomerLookup indicates the customer record could not be resolved
	// for the session identity. This is the one failure with a recovery
	// action: the caller is instructed to navigate to the home destination.
	ErrCustomerLookup = errors.New("customer lookup failed")

	// ErrOrderLookup indicates the order history fetch failed. The session
	// stays usable; only the order state is unavailable.
	ErrOrderLookup = errors.New("order lookup failed")

	// ErrOrderCancel indicates the order service rejected or failed the
	// cancel call. No notification or broadcast is sent in that case.
	ErrOrderCancel = errors.New("order cancel failed")

	// ErrUpdateNotApplied indicates the upload or persist step answered
	// without error but did not apply the change (a soft failure, distinct
	// from a transport failure).
	ErrUpdateNotApplied = errors.New("profile update not applied")
)
