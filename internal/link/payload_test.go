package link

import (
	"errors"
	"testing"

	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/automation"
)

func testAutomation() *automation.AutomationSummary {
	return &automation.AutomationSummary{
		ID:    testID,
		Title: "Emergency Contact",
		Steps: []automation.Step{
			{Kind: automation.KindNotification, Config: map[string]any{"title": "Calling"}, Enabled: true},
			{Kind: automation.KindWifi, Config: map[string]any{"enabled": true}, Enabled: true},
			{Kind: automation.KindCall, Config: map[string]any{"number": "+15551234"}, Enabled: true},
			{Kind: automation.KindSMS, Config: map[string]any{"to": "+15551234"}, Enabled: false},
		},
	}
}

func TestReducePayload(t *testing.T) {
	p := ReducePayload(testAutomation())

	if p.ID != testID || p.Title != "Emergency Contact" {
		t.Errorf("identity not carried: %+v", p)
	}
	// wifi is not fallback-compatible, sms is disabled: both excluded.
	if len(p.Steps) != 2 {
		t.Fatalf("reduced to %d steps, want 2", len(p.Steps))
	}
	if p.Steps[0].Kind != automation.KindNotification || p.Steps[1].Kind != automation.KindCall {
		t.Errorf("step order not preserved: %v", p.Steps)
	}
}

func TestReducePayloadIsolated(t *testing.T) {
	a := testAutomation()
	p := ReducePayload(a)

	p.Steps[0].Config["title"] = "mutated"
	if a.Steps[0].Config["title"] == "mutated" {
		t.Error("reduced payload shares config with the source automation")
	}
}

func TestPayloadEncodeDecode(t *testing.T) {
	original := ReducePayload(testAutomation())

	encoded, err := original.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := DecodePayload(encoded)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if decoded.ID != original.ID || decoded.Title != original.Title {
		t.Errorf("identity lost: %+v", decoded)
	}
	if len(decoded.Steps) != len(original.Steps) {
		t.Fatalf("decoded %d steps, want %d", len(decoded.Steps), len(original.Steps))
	}
	if decoded.Steps[1].Config["number"] != "+15551234" {
		t.Errorf("step config lost: %v", decoded.Steps[1].Config)
	}
}

func TestDecodePayloadBad(t *testing.T) {
	for _, s := range []string{"!!!", "AAAA", "bm90LWpzb24"} { // bad base64, bad JSON
		if _, err := DecodePayload(s); !errors.Is(err, ErrBadPayload) {
			t.Errorf("DecodePayload(%q) = %v, want ErrBadPayload", s, err)
		}
	}
}
