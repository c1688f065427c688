package tagio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/dispatch"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/infrastructure/mqtt"
)

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MQTTClient is the broker surface the bridge needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Submitter feeds transport events into the dispatcher.
type Submitter interface {
	Submit(ctx context.Context, raw, source string) (*dispatch.Dispatch, error)
}

// scanEvent is the wire format reader bridges publish on tag scans.
type scanEvent struct {
	ReaderID  string    `json:"reader_id"`
	Payload   string    `json:"payload"`
	ScannedAt time.Time `json:"scanned_at"`
}

// writeRequest is the wire format for asking a reader to burn a tag.
type writeRequest struct {
	RequestID string    `json:"request_id"`
	Payload   string    `json:"payload"`
	IssuedAt  time.Time `json:"issued_at"`
}

// WriteResult is the wire format reader bridges publish on their
// write-result topic after handling a write request.
type WriteResult struct {
	RequestID string `json:"request_id"`
	ReaderID  string `json:"reader_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// ErrPayloadTooLarge indicates a write request exceeding the configured
// tag capacity.
var ErrPayloadTooLarge = errors.New("tagio: payload exceeds tag capacity")

// Bridge connects physical tag readers to the dispatcher over MQTT:
// scanned payloads flow in as transport events, write requests flow out
// to reader bridges.
type Bridge struct {
	client    MQTTClient
	submitter Submitter
	topics    mqtt.Topics
	logger    Logger

	// capacity caps outgoing write payloads; zero disables the check.
	capacity int

	mu            sync.Mutex
	pending       map[string]time.Time // request_id -> issue time
	onWriteResult func(WriteResult)
}

// NewBridge creates a bridge. capacity is the smallest supported tag's
// usable byte count.
func NewBridge(client MQTTClient, submitter Submitter, capacity int, logger Logger) *Bridge {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bridge{
		client:    client,
		submitter: submitter,
		capacity:  capacity,
		logger:    logger,
		pending:   make(map[string]time.Time),
	}
}

// SetOnWriteResult registers a callback invoked for each write outcome
// matching an outstanding RequestWrite. Call before Start.
func (b *Bridge) SetOnWriteResult(fn func(WriteResult)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onWriteResult = fn
}

// Start subscribes to scan events and write results from every reader.
// The context bounds the dispatch work triggered per scan, not the
// subscriptions themselves.
func (b *Bridge) Start(ctx context.Context) error {
	scanTopic := b.topics.AllTagScans()
	err := b.client.Subscribe(scanTopic, 1, func(topic string, payload []byte) error {
		return b.handleScan(ctx, topic, payload)
	})
	if err != nil {
		return fmt.Errorf("subscribing to tag scans: %w", err)
	}

	resultTopic := b.topics.AllTagWriteResults()
	err = b.client.Subscribe(resultTopic, 1, func(topic string, payload []byte) error {
		return b.handleWriteResult(topic, payload)
	})
	if err != nil {
		return fmt.Errorf("subscribing to tag write results: %w", err)
	}

	b.logger.Info("tag bridge started", "scan_topic", scanTopic, "result_topic", resultTopic)
	return nil
}

// handleScan decodes one scan event and submits it as a transport event.
// A queued dispatch is normal operation, not an error.
func (b *Bridge) handleScan(ctx context.Context, topic string, payload []byte) error {
	var ev scanEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decoding scan event on %s: %w", topic, err)
	}
	if ev.Payload == "" {
		b.logger.Debug("empty scan event ignored", "reader_id", ev.ReaderID)
		return nil
	}

	source := "nfc"
	if ev.ReaderID != "" {
		source = "nfc:" + ev.ReaderID
	}

	d, err := b.submitter.Submit(ctx, ev.Payload, source)
	switch {
	case errors.Is(err, dispatch.ErrQueued):
		b.logger.Info("scan queued behind active dispatch", "reader_id", ev.ReaderID)
		return nil
	case err != nil:
		return fmt.Errorf("submitting scan: %w", err)
	}

	b.logger.Debug("scan dispatched",
		"reader_id", ev.ReaderID, "dispatch_id", d.ID, "state", d.State)
	return nil
}

// RequestWrite asks a reader bridge to burn the payload onto the tag it
// is holding. The request stays pending until the reader reports the
// outcome on its write-result topic.
func (b *Bridge) RequestWrite(readerID, payload, requestID string) error {
	if b.capacity > 0 && len(payload) > b.capacity {
		return fmt.Errorf("%w: %d bytes, capacity %d", ErrPayloadTooLarge, len(payload), b.capacity)
	}

	body, err := json.Marshal(writeRequest{
		RequestID: requestID,
		Payload:   payload,
		IssuedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding write request: %w", err)
	}

	b.mu.Lock()
	b.pending[requestID] = time.Now().UTC()
	b.mu.Unlock()

	topic := b.topics.TagWrite(readerID)
	if err := b.client.Publish(topic, body, 1, false); err != nil {
		b.mu.Lock()
		delete(b.pending, requestID)
		b.mu.Unlock()
		return fmt.Errorf("publishing write request: %w", err)
	}

	b.logger.Info("tag write requested",
		"reader_id", readerID, "request_id", requestID, "bytes", len(payload))
	return nil
}

// handleWriteResult settles the pending request a reader reported on.
// Results for unknown request ids (a reader restarting mid-write, or a
// retransmit after settlement) are logged and dropped.
func (b *Bridge) handleWriteResult(topic string, payload []byte) error {
	var res WriteResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return fmt.Errorf("decoding write result on %s: %w", topic, err)
	}

	b.mu.Lock()
	issued, known := b.pending[res.RequestID]
	if known {
		delete(b.pending, res.RequestID)
	}
	fn := b.onWriteResult
	b.mu.Unlock()

	if !known {
		b.logger.Warn("write result for unknown request",
			"request_id", res.RequestID, "reader_id", res.ReaderID)
		return nil
	}

	if res.Success {
		b.logger.Info("tag write confirmed",
			"request_id", res.RequestID, "reader_id", res.ReaderID,
			"pending_ms", time.Since(issued).Milliseconds())
	} else {
		b.logger.Warn("tag write failed",
			"request_id", res.RequestID, "reader_id", res.ReaderID, "error", res.Error)
	}

	if fn != nil {
		fn(res)
	}
	return nil
}

// PendingWrites reports how many write requests are awaiting a result.
func (b *Bridge) PendingWrites() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
