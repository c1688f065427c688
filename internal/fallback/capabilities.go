package fallback

import "context"

// Position is a device location fix.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Capabilities is the host surface the interpreter is allowed to touch.
// Every method maps to a user-visible, user-confirmable intent (a
// composer or viewer the user still has to act on) — never background
// scheduling or device configuration changes. That authority stays with
// the native engine.
//
// Locate may be denied by the user or time out; that failure is per-step
// and non-fatal.
type Capabilities interface {
	Notify(ctx context.Context, title, body string) error
	ComposeSMS(ctx context.Context, to, body string) error
	Dial(ctx context.Context, number string) error
	ComposeEmail(ctx context.Context, to, subject, body string) error
	OpenURL(ctx context.Context, url string) error
	ShowText(ctx context.Context, text string) error
	Locate(ctx context.Context) (Position, error)
}
