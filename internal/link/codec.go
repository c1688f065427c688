package link

import (
	"fmt"
	"net/url"
	"strings"
)

// Kind classifies what a link asks for.
type Kind string

const (
	KindAutomation Kind = "automation"
	KindShare      Kind = "share"
	KindEmergency  Kind = "emergency"
)

// ActionRun is the default action when a link carries none.
const ActionRun = "run"

// Intent is the classification of one transport event. It is ephemeral:
// produced by Parse, consumed by the dispatcher for a single dispatch
// cycle, then discarded.
type Intent struct {
	Kind         Kind
	AutomationID string
	Action       string

	// Payload is set when the link carried a decodable embedded payload.
	// A corrupt data parameter degrades to nil rather than failing the
	// parse; the dispatcher then falls back to resolution.
	Payload *EmbeddedPayload
}

// webPatterns is the ordered classification list for universal links.
// The order IS the contract: an explicit emergency or share segment wins
// over the generic placements no matter where it sits in the path.
var webPatterns = []struct {
	marker string
	kind   Kind
}{
	{"/emergency/", KindEmergency},
	{"/share/", KindShare},
	{"/link/", KindAutomation},
	{"/run/", KindAutomation},
	{"automation/", KindAutomation},
}

// Codec builds and parses every URL representation of an automation
// link. It is pure: no I/O, no logging, safe for concurrent use.
type Codec struct {
	scheme       string
	legacyScheme string
	webDomain    string
}

// NewCodec creates a codec. legacyScheme is accepted on parse only;
// built links always use scheme.
func NewCodec(scheme, legacyScheme, webDomain string) *Codec {
	return &Codec{
		scheme:       strings.ToLower(scheme),
		legacyScheme: strings.ToLower(legacyScheme),
		webDomain:    strings.ToLower(webDomain),
	}
}

// ─── Parsing ────────────────────────────────────────────────────────────────

// Parse classifies a raw URL string into an Intent, or nil when the
// string is not one of ours. It is total: no input panics or errors.
// Foreign and tooling URLs yield nil silently.
func (c *Codec) Parse(raw string) *Intent {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}

	switch strings.ToLower(u.Scheme) {
	case c.scheme, c.legacyScheme:
		return c.parseAppLink(u)
	case "http", "https":
		return c.parseUniversalLink(u)
	default:
		return nil
	}
}

// parseAppLink handles <scheme>://<kind>/<id>. With a custom scheme the
// kind segment lands in the URL host.
func (c *Codec) parseAppLink(u *url.URL) *Intent {
	var kind Kind
	switch strings.ToLower(u.Host) {
	case "automation":
		kind = KindAutomation
	case "share":
		kind = KindShare
	case "emergency":
		kind = KindEmergency
	default:
		return nil
	}
	return c.intent(kind, firstSegment(u.Path), u.Query())
}

// parseUniversalLink handles https://<webDomain>/... using the ordered
// pattern list. A URL on our domain that matches no pattern yields nil.
func (c *Codec) parseUniversalLink(u *url.URL) *Intent {
	if !strings.EqualFold(u.Hostname(), c.webDomain) {
		return nil
	}
	for _, p := range webPatterns {
		if id, ok := segmentAfter(u.Path, p.marker); ok {
			return c.intent(p.kind, id, u.Query())
		}
	}
	return nil
}

func (c *Codec) intent(kind Kind, id string, q url.Values) *Intent {
	in := &Intent{
		Kind:         kind,
		AutomationID: id,
		Action:       q.Get("action"),
	}
	if in.Action == "" {
		in.Action = ActionRun
	}
	if data := q.Get("data"); data != "" {
		if p, err := DecodePayload(data); err == nil {
			in.Payload = p
		}
	}
	return in
}

// ExtractID pulls the automation id out of a URL using the same fixed
// pattern order as Parse, without full classification. Returns "" when
// the URL is not ours. Callers use it as a cheap "is this our domain"
// test.
func (c *Codec) ExtractID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	switch strings.ToLower(u.Scheme) {
	case c.scheme, c.legacyScheme:
		return firstSegment(u.Path)
	case "http", "https":
		if !strings.EqualFold(u.Hostname(), c.webDomain) {
			return ""
		}
		for _, p := range webPatterns {
			if id, ok := segmentAfter(u.Path, p.marker); ok {
				return id
			}
		}
	}
	return ""
}

// OwnDomain reports whether the URL is addressed to us at all — one of
// our schemes or our web host — regardless of whether it classifies.
// The dispatcher uses it to tell a foreign URL (dropped silently) from a
// miss on our own domain (logged).
func (c *Codec) OwnDomain(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case c.scheme, c.legacyScheme:
		return true
	case "http", "https":
		return strings.EqualFold(u.Hostname(), c.webDomain)
	}
	return false
}

// firstSegment returns the first path segment, stripped of slashes.
func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}

// segmentAfter reports whether marker occurs in path and returns the
// segment immediately following it. ok is true whenever the marker is
// present, even if the trailing segment is empty — the URL is still ours.
func segmentAfter(path, marker string) (id string, ok bool) {
	i := strings.Index(path, marker)
	if i < 0 {
		return "", false
	}
	rest := path[i+len(marker):]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return rest, true
}

// ─── Building ───────────────────────────────────────────────────────────────

// AppLink builds the deep link for one automation under the current
// scheme. Automation links carry the default action; share and emergency
// links carry the encoded payload when one is supplied.
func (c *Codec) AppLink(kind Kind, id, encodedPayload string) string {
	switch kind {
	case KindShare, KindEmergency:
		if encodedPayload != "" {
			return fmt.Sprintf("%s://%s/%s?data=%s", c.scheme, kind, id, encodedPayload)
		}
		return fmt.Sprintf("%s://%s/%s", c.scheme, kind, id)
	default:
		return fmt.Sprintf("%s://automation/%s?action=%s", c.scheme, id, ActionRun)
	}
}

// UniversalLink builds the canonical web entry point. It is the same for
// every kind: one URL that deep-links into the app and degrades to a
// browser page, reused for both NFC and QR.
func (c *Codec) UniversalLink(id string) string {
	return fmt.Sprintf("https://%s/link/%s", c.webDomain, id)
}

// WebFallbackLink builds the browser-only run page.
func (c *Codec) WebFallbackLink(id string) string {
	return fmt.Sprintf("https://%s/run/%s", c.webDomain, id)
}

// EmergencyQR builds the self-contained emergency QR payload carrying
// the reduced embedded payload for offline execution.
func (c *Codec) EmergencyQR(id, encodedPayload string) string {
	return fmt.Sprintf("https://%s/emergency/%s?data=%s", c.webDomain, id, encodedPayload)
}

// ValidKind reports whether k is a known link kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindAutomation, KindShare, KindEmergency:
		return true
	}
	return false
}
