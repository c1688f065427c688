package automation

import "errors"

// Domain errors for the automation package.
//
// Resolution errors are deliberately distinct — each implies a different
// corrective action and the dispatcher words its user message per class:
//
//	if errors.Is(err, automation.ErrMalformedID) {
//	    // corrupted/legacy source, the tag needs rewriting
//	}
var (
	// ErrMalformedID is returned when an id fails the UUID grammar.
	// Distinct from ErrNotFound: it implies a corrupted or legacy link
	// source that needs rewriting, not a deleted automation.
	ErrMalformedID = errors.New("automation: malformed id")

	// ErrNotFound is returned when a well-formed id matches no record.
	ErrNotFound = errors.New("automation: not found")

	// ErrAmbiguous is returned when the store holds more than one record
	// for an id — a store-consistency violation the user cannot fix.
	ErrAmbiguous = errors.New("automation: ambiguous id")

	// ErrTransient is returned for store timeouts and contention.
	// The only retryable resolution class.
	ErrTransient = errors.New("automation: transient store error")

	// ErrExists is returned when creating an automation with an id that
	// already exists.
	ErrExists = errors.New("automation: already exists")

	// ErrInvalid is returned when automation validation fails.
	ErrInvalid = errors.New("automation: invalid")

	// ErrInvalidTitle is returned when a title is empty or too long.
	ErrInvalidTitle = errors.New("automation: invalid title")

	// ErrInvalidStep is returned when a step is invalid.
	ErrInvalidStep = errors.New("automation: invalid step")

	// ErrNoSteps is returned when an automation has no steps defined.
	ErrNoSteps = errors.New("automation: no steps")
)
