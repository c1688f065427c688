package tagio

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/dispatch"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/infrastructure/mqtt"
)

// ─── Mocks ──────────────────────────────────────────────────────────────────

type mockClient struct {
	subscriptions map[string]mqtt.MessageHandler
	published     []struct {
		topic   string
		payload []byte
	}
	publishErr error
}

func newMockClient() *mockClient {
	return &mockClient{subscriptions: make(map[string]mqtt.MessageHandler)}
}

func (m *mockClient) Publish(topic string, payload []byte, _ byte, _ bool) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, struct {
		topic   string
		payload []byte
	}{topic, payload})
	return nil
}

func (m *mockClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.subscriptions[topic] = handler
	return nil
}

type mockSubmitter struct {
	raws    []string
	sources []string
	err     error
}

func (m *mockSubmitter) Submit(_ context.Context, raw, source string) (*dispatch.Dispatch, error) {
	m.raws = append(m.raws, raw)
	m.sources = append(m.sources, source)
	if m.err != nil {
		return nil, m.err
	}
	return &dispatch.Dispatch{ID: "d-1", State: dispatch.StateConfirming}, nil
}

// deliver simulates a broker message to the scan subscription.
func deliver(t *testing.T, c *mockClient, payload any) error {
	t.Helper()
	handler, ok := c.subscriptions["zaptap/tag/scan/+"]
	if !ok {
		t.Fatal("bridge did not subscribe to the scan wildcard")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshalling scan event: %v", err)
	}
	return handler("zaptap/tag/scan/reader-hall", body)
}

// ─── Memory Tag ─────────────────────────────────────────────────────────────

func TestMemoryTag(t *testing.T) {
	tag := NewMemoryTag(16)

	if !tag.Write("short") {
		t.Error("Write refused a fitting payload")
	}
	if tag.Read() != "short" {
		t.Errorf("Read = %q", tag.Read())
	}
	if tag.Write(strings.Repeat("x", 17)) {
		t.Error("Write accepted an oversize payload")
	}
	if tag.Read() != "short" {
		t.Error("failed write clobbered the stored payload")
	}
}

// ─── Scan Bridge ────────────────────────────────────────────────────────────

func TestBridgeScanSubmitted(t *testing.T) {
	client := newMockClient()
	sub := &mockSubmitter{}
	b := NewBridge(client, sub, 0, nil)

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	url := "https://zaptap.app/link/3fae1f6a-9c1b-4f7e-8a2d-5b6c7d8e9f0a"
	err := deliver(t, client, map[string]any{"reader_id": "reader-hall", "payload": url})
	if err != nil {
		t.Fatalf("scan handler: %v", err)
	}

	if len(sub.raws) != 1 || sub.raws[0] != url {
		t.Errorf("submitted = %v, want the scanned payload", sub.raws)
	}
	if sub.sources[0] != "nfc:reader-hall" {
		t.Errorf("source = %q, want reader-tagged nfc source", sub.sources[0])
	}
}

func TestBridgeQueuedScanIsNotAnError(t *testing.T) {
	client := newMockClient()
	sub := &mockSubmitter{err: dispatch.ErrQueued}
	b := NewBridge(client, sub, 0, nil)

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := deliver(t, client, map[string]any{"reader_id": "r", "payload": "zaptap://automation/x"}); err != nil {
		t.Errorf("queued scan surfaced as error: %v", err)
	}
}

func TestBridgeMalformedScanEvent(t *testing.T) {
	client := newMockClient()
	b := NewBridge(client, &mockSubmitter{}, 0, nil)

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	handler := client.subscriptions["zaptap/tag/scan/+"]
	if err := handler("zaptap/tag/scan/r", []byte("not-json")); err == nil {
		t.Error("malformed scan event accepted")
	}
}

func TestBridgeEmptyScanIgnored(t *testing.T) {
	client := newMockClient()
	sub := &mockSubmitter{}
	b := NewBridge(client, sub, 0, nil)

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := deliver(t, client, map[string]any{"reader_id": "r", "payload": ""}); err != nil {
		t.Errorf("empty scan returned error: %v", err)
	}
	if len(sub.raws) != 0 {
		t.Error("empty scan reached the dispatcher")
	}
}

// ─── Write Requests ─────────────────────────────────────────────────────────

func TestBridgeRequestWrite(t *testing.T) {
	client := newMockClient()
	b := NewBridge(client, &mockSubmitter{}, 64, nil)

	if err := b.RequestWrite("reader-hall", "https://zaptap.app/link/abc", "req-1"); err != nil {
		t.Fatalf("RequestWrite: %v", err)
	}
	if len(client.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(client.published))
	}
	if client.published[0].topic != "zaptap/tag/write/reader-hall" {
		t.Errorf("topic = %q", client.published[0].topic)
	}

	var req struct {
		RequestID string `json:"request_id"`
		Payload   string `json:"payload"`
	}
	if err := json.Unmarshal(client.published[0].payload, &req); err != nil {
		t.Fatalf("decoding request: %v", err)
	}
	if req.RequestID != "req-1" || req.Payload != "https://zaptap.app/link/abc" {
		t.Errorf("request = %+v", req)
	}
}

func TestBridgeRequestWriteOversize(t *testing.T) {
	client := newMockClient()
	b := NewBridge(client, &mockSubmitter{}, 16, nil)

	err := b.RequestWrite("r", strings.Repeat("x", 17), "req-1")
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("RequestWrite = %v, want ErrPayloadTooLarge", err)
	}
	if len(client.published) != 0 {
		t.Error("oversize payload still published")
	}
	if b.PendingWrites() != 0 {
		t.Error("rejected write left a pending request")
	}
}

// ─── Write Results ──────────────────────────────────────────────────────────

// deliverResult simulates a reader reporting on its write-result topic.
func deliverResult(t *testing.T, c *mockClient, res WriteResult) error {
	t.Helper()
	handler, ok := c.subscriptions["zaptap/tag/write-result/+"]
	if !ok {
		t.Fatal("bridge did not subscribe to the write-result wildcard")
	}
	body, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshalling write result: %v", err)
	}
	return handler("zaptap/tag/write-result/"+res.ReaderID, body)
}

func TestBridgeWriteResultSettlesRequest(t *testing.T) {
	client := newMockClient()
	b := NewBridge(client, &mockSubmitter{}, 0, nil)

	var got []WriteResult
	b.SetOnWriteResult(func(res WriteResult) { got = append(got, res) })

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := b.RequestWrite("reader-hall", "zaptap://automation/x", "req-1"); err != nil {
		t.Fatalf("RequestWrite: %v", err)
	}
	if b.PendingWrites() != 1 {
		t.Fatalf("PendingWrites = %d, want 1", b.PendingWrites())
	}

	res := WriteResult{RequestID: "req-1", ReaderID: "reader-hall", Success: true}
	if err := deliverResult(t, client, res); err != nil {
		t.Fatalf("write result handler: %v", err)
	}

	if b.PendingWrites() != 0 {
		t.Errorf("PendingWrites = %d after result, want 0", b.PendingWrites())
	}
	if len(got) != 1 || got[0].RequestID != "req-1" || !got[0].Success {
		t.Errorf("callback results = %+v, want the settled request", got)
	}
}

func TestBridgeWriteResultFailureReported(t *testing.T) {
	client := newMockClient()
	b := NewBridge(client, &mockSubmitter{}, 0, nil)

	var got []WriteResult
	b.SetOnWriteResult(func(res WriteResult) { got = append(got, res) })

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := b.RequestWrite("r", "payload", "req-2"); err != nil {
		t.Fatalf("RequestWrite: %v", err)
	}

	res := WriteResult{RequestID: "req-2", ReaderID: "r", Success: false, Error: "tag removed"}
	if err := deliverResult(t, client, res); err != nil {
		t.Fatalf("write result handler: %v", err)
	}

	if len(got) != 1 || got[0].Success || got[0].Error != "tag removed" {
		t.Errorf("callback results = %+v, want the failure detail", got)
	}
	if b.PendingWrites() != 0 {
		t.Error("failed write left the request pending")
	}
}

func TestBridgeWriteResultUnknownRequest(t *testing.T) {
	client := newMockClient()
	b := NewBridge(client, &mockSubmitter{}, 0, nil)

	var got []WriteResult
	b.SetOnWriteResult(func(res WriteResult) { got = append(got, res) })

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	res := WriteResult{RequestID: "never-issued", ReaderID: "r", Success: true}
	if err := deliverResult(t, client, res); err != nil {
		t.Errorf("unknown request surfaced as error: %v", err)
	}
	if len(got) != 0 {
		t.Error("callback fired for an unknown request")
	}
}

func TestBridgeMalformedWriteResult(t *testing.T) {
	client := newMockClient()
	b := NewBridge(client, &mockSubmitter{}, 0, nil)

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	handler := client.subscriptions["zaptap/tag/write-result/+"]
	if err := handler("zaptap/tag/write-result/r", []byte("not-json")); err == nil {
		t.Error("malformed write result accepted")
	}
}
