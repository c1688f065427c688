package link

import (
	"fmt"

	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/automation"
)

// Artifacts is the full link set generated for one automation: a deep
// link for installed apps, the canonical universal link, a browser-only
// fallback page, and the payload to burn into a tag or QR code.
type Artifacts struct {
	AppLink         string `json:"app_link"`
	UniversalLink   string `json:"universal_link"`
	WebFallbackLink string `json:"web_fallback_link"`
	QRPayload       string `json:"qr_payload"`
}

// Generator composes codec outputs into per-automation artifact sets and
// owns the one capacity-constrained path: the embedded emergency QR.
type Generator struct {
	codec *Codec

	// maxPayloadBytes caps the QR payload so it fits physical tag
	// capacity. Zero disables the check.
	maxPayloadBytes int
}

// NewGenerator creates a generator over the given codec.
func NewGenerator(codec *Codec, maxPayloadBytes int) *Generator {
	return &Generator{codec: codec, maxPayloadBytes: maxPayloadBytes}
}

// Generate builds the artifact set for an automation.
//
// QRPayload defaults to the universal link; only an emergency link with
// embed requested becomes the self-contained emergency QR, and only that
// path carries the reduced payload — never the full summary. Share links
// always embed their payload in the app link so the receiving device can
// display the automation without store access.
func (g *Generator) Generate(a *automation.AutomationSummary, kind Kind, embed bool) (Artifacts, error) {
	if !ValidKind(kind) {
		return Artifacts{}, fmt.Errorf("unknown link kind %q", kind)
	}

	var encoded string
	if embed || kind == KindShare {
		var err error
		encoded, err = ReducePayload(a).Encode()
		if err != nil {
			return Artifacts{}, err
		}
	}

	art := Artifacts{
		AppLink:         g.codec.AppLink(kind, a.ID, encoded),
		UniversalLink:   g.codec.UniversalLink(a.ID),
		WebFallbackLink: g.codec.WebFallbackLink(a.ID),
	}

	art.QRPayload = art.UniversalLink
	if kind == KindEmergency && embed {
		art.QRPayload = g.codec.EmergencyQR(a.ID, encoded)
	}

	if g.maxPayloadBytes > 0 && len(art.QRPayload) > g.maxPayloadBytes {
		return Artifacts{}, fmt.Errorf("%w: %d bytes, capacity %d",
			ErrPayloadTooLarge, len(art.QRPayload), g.maxPayloadBytes)
	}
	return art, nil
}
