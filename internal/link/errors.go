package link

import "errors"

var (
	// ErrBadPayload indicates a data parameter that is not valid
	// base64url-encoded payload JSON.
	ErrBadPayload = errors.New("link: malformed embedded payload")

	// ErrPayloadTooLarge indicates a generated QR payload exceeding the
	// configured tag capacity.
	ErrPayloadTooLarge = errors.New("link: payload exceeds tag capacity")
)
