package link

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/automation"
)

// EmbeddedPayload is the reduced, self-contained projection of an
// automation that travels inside share and emergency links. It carries
// only the steps the fallback interpreter can run, so a scanner with no
// network and no store can still execute it.
type EmbeddedPayload struct {
	ID    string            `json:"id"`
	Title string            `json:"title"`
	Steps []automation.Step `json:"steps"`
}

// ReducePayload projects an automation down to its embeddable form:
// enabled, fallback-compatible steps only, in declared order. The full
// summary is never embedded.
func ReducePayload(a *automation.AutomationSummary) EmbeddedPayload {
	p := EmbeddedPayload{ID: a.ID, Title: a.Title}
	for _, s := range a.Steps {
		if s.Enabled && s.Kind.FallbackCompatible() {
			p.Steps = append(p.Steps, s.DeepCopy())
		}
	}
	return p
}

// Encode serializes the payload as base64url JSON, the form carried in
// data= query parameters.
func (p EmbeddedPayload) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodePayload reverses Encode. Padded base64url from older writers is
// accepted too.
func DecodePayload(s string) (*EmbeddedPayload, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		b, err = base64.URLEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
	}

	var p EmbeddedPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return &p, nil
}
