package link

import (
	"testing"
)

const testID = "3fae1f6a-9c1b-4f7e-8a2d-5b6c7d8e9f0a"

func testCodec() *Codec {
	return NewCodec("zaptap", "nfcautomate", "zaptap.app")
}

// ─── Classification ─────────────────────────────────────────────────────────

func TestParseClassification(t *testing.T) {
	c := testCodec()

	tests := []struct {
		name   string
		url    string
		kind   Kind
		id     string
		action string
	}{
		{"app automation", "zaptap://automation/" + testID + "?action=run", KindAutomation, testID, "run"},
		{"app automation no action", "zaptap://automation/" + testID, KindAutomation, testID, "run"},
		{"app share", "zaptap://share/" + testID, KindShare, testID, "run"},
		{"app emergency", "zaptap://emergency/" + testID, KindEmergency, testID, "run"},
		{"legacy scheme", "nfcautomate://automation/" + testID, KindAutomation, testID, "run"},
		{"legacy scheme bad id", "nfcautomate://automation/abc123", KindAutomation, "abc123", "run"},
		{"universal link", "https://zaptap.app/link/" + testID, KindAutomation, testID, "run"},
		{"universal run", "https://zaptap.app/run/" + testID, KindAutomation, testID, "run"},
		{"universal automation", "https://zaptap.app/automation/" + testID, KindAutomation, testID, "run"},
		{"universal emergency", "https://zaptap.app/emergency/" + testID, KindEmergency, testID, "run"},
		{"universal share", "https://zaptap.app/share/" + testID, KindShare, testID, "run"},
		{"http accepted", "http://zaptap.app/link/" + testID, KindAutomation, testID, "run"},
		{"host case insensitive", "https://ZapTap.App/link/" + testID, KindAutomation, testID, "run"},
		{"explicit action", "https://zaptap.app/link/" + testID + "?action=preview", KindAutomation, testID, "preview"},
		{"surrounding whitespace", "  https://zaptap.app/link/" + testID + "\n", KindAutomation, testID, "run"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := c.Parse(tt.url)
			if in == nil {
				t.Fatalf("Parse(%q) = nil", tt.url)
			}
			if in.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", in.Kind, tt.kind)
			}
			if in.AutomationID != tt.id {
				t.Errorf("AutomationID = %q, want %q", in.AutomationID, tt.id)
			}
			if in.Action != tt.action {
				t.Errorf("Action = %q, want %q", in.Action, tt.action)
			}
		})
	}
}

func TestParseForeignURLs(t *testing.T) {
	c := testCodec()

	foreign := []string{
		"https://example.com/link/" + testID, // wrong domain
		"https://zaptap.app/about",           // our domain, no pattern
		"https://zaptap.app/",                // our domain, bare
		"mailto:ops@zaptap.app",
		"ftp://zaptap.app/link/" + testID,
		"otherapp://automation/" + testID,
		"zaptap://settings/profile", // our scheme, unknown kind segment
		"file:///etc/passwd",
	}
	for _, url := range foreign {
		if in := c.Parse(url); in != nil {
			t.Errorf("Parse(%q) = %+v, want nil", url, in)
		}
	}
}

// Totality: any string yields an intent or nil, never a panic.
func TestParseTotality(t *testing.T) {
	c := testCodec()

	garbage := []string{
		"",
		"   ",
		"not a url at all",
		"://missing-scheme",
		"https://",
		"%zz%%%",
		"zaptap://",
		"zaptap://automation",
		string([]byte{0x00, 0x01, 0xff}),
		"https://zaptap.app/link/%zz",
		"\n\t\r",
	}
	for _, s := range garbage {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Parse(%q) panicked: %v", s, r)
				}
			}()
			c.Parse(s) // result may be nil or an intent; it must return
		}()
	}
}

// Precedence: a contrived link containing both /emergency/ and /link/
// classifies as emergency. The pattern order is the contract.
func TestParsePrecedence(t *testing.T) {
	c := testCodec()

	in := c.Parse("https://zaptap.app/link/other/emergency/" + testID)
	if in == nil {
		t.Fatal("Parse returned nil")
	}
	if in.Kind != KindEmergency {
		t.Errorf("Kind = %q, want emergency (fixed-order contract)", in.Kind)
	}
	if in.AutomationID != testID {
		t.Errorf("AutomationID = %q, want the emergency segment's id", in.AutomationID)
	}

	in = c.Parse("https://zaptap.app/share/" + testID + "/link/other")
	if in == nil || in.Kind != KindShare {
		t.Errorf("share should outrank /link/, got %+v", in)
	}
}

// Idempotence: re-parsing classifies identically every time.
func TestParseIdempotence(t *testing.T) {
	c := testCodec()
	url := "https://zaptap.app/emergency/" + testID

	first := c.Parse(url)
	for i := 0; i < 3; i++ {
		again := c.Parse(url)
		if again == nil || again.Kind != first.Kind || again.AutomationID != first.AutomationID {
			t.Fatalf("parse %d diverged: %+v vs %+v", i, again, first)
		}
	}
}

func TestParseEmbeddedPayload(t *testing.T) {
	c := testCodec()

	encoded, err := EmbeddedPayload{ID: testID, Title: "SOS"}.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	in := c.Parse("zaptap://emergency/" + testID + "?data=" + encoded)
	if in == nil {
		t.Fatal("Parse returned nil")
	}
	if in.Payload == nil {
		t.Fatal("Payload not decoded")
	}
	if in.Payload.Title != "SOS" {
		t.Errorf("Payload.Title = %q, want %q", in.Payload.Title, "SOS")
	}

	// A corrupt payload degrades to a plain intent, never a failed parse.
	in = c.Parse("zaptap://emergency/" + testID + "?data=!!!not-base64!!!")
	if in == nil {
		t.Fatal("corrupt payload failed the whole parse")
	}
	if in.Payload != nil {
		t.Errorf("corrupt payload decoded to %+v, want nil", in.Payload)
	}
}

// ─── ExtractID ──────────────────────────────────────────────────────────────

func TestExtractID(t *testing.T) {
	c := testCodec()

	tests := []struct {
		url  string
		want string
	}{
		{"https://zaptap.app/link/" + testID, testID},
		{"https://zaptap.app/run/" + testID, testID},
		{"https://zaptap.app/emergency/" + testID + "?data=x", testID},
		{"zaptap://automation/" + testID + "?action=run", testID},
		{"nfcautomate://share/" + testID, testID},
		{"https://example.com/link/" + testID, ""},
		{"https://zaptap.app/about", ""},
		{"not a url", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := c.ExtractID(tt.url); got != tt.want {
			t.Errorf("ExtractID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

// Round-trip: for all valid ids, the id survives build → extract.
func TestRoundTrip(t *testing.T) {
	c := testCodec()

	ids := []string{
		testID,
		"00000000-0000-0000-0000-000000000000",
		"ffffffff-ffff-4fff-bfff-ffffffffffff",
	}
	for _, id := range ids {
		if got := c.ExtractID(c.UniversalLink(id)); got != id {
			t.Errorf("ExtractID(UniversalLink(%q)) = %q", id, got)
		}
		if got := c.ExtractID(c.AppLink(KindAutomation, id, "")); got != id {
			t.Errorf("ExtractID(AppLink(%q)) = %q", id, got)
		}
		if got := c.ExtractID(c.WebFallbackLink(id)); got != id {
			t.Errorf("ExtractID(WebFallbackLink(%q)) = %q", id, got)
		}
	}
}

// ─── Building ───────────────────────────────────────────────────────────────

func TestBuildFormats(t *testing.T) {
	c := testCodec()

	if got, want := c.AppLink(KindAutomation, testID, ""), "zaptap://automation/"+testID+"?action=run"; got != want {
		t.Errorf("AppLink(automation) = %q, want %q", got, want)
	}
	if got, want := c.AppLink(KindShare, testID, "AAA"), "zaptap://share/"+testID+"?data=AAA"; got != want {
		t.Errorf("AppLink(share) = %q, want %q", got, want)
	}
	if got, want := c.UniversalLink(testID), "https://zaptap.app/link/"+testID; got != want {
		t.Errorf("UniversalLink = %q, want %q", got, want)
	}
	if got, want := c.WebFallbackLink(testID), "https://zaptap.app/run/"+testID; got != want {
		t.Errorf("WebFallbackLink = %q, want %q", got, want)
	}
	if got, want := c.EmergencyQR(testID, "AAA"), "https://zaptap.app/emergency/"+testID+"?data=AAA"; got != want {
		t.Errorf("EmergencyQR = %q, want %q", got, want)
	}
}
