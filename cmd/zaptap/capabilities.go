package main

import (
	"context"
	"errors"

	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/fallback"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/infrastructure/logging"
)

// hostCapabilities is the headless host surface for the fallback
// interpreter. A companion app supplies real composers and viewers; this
// host records each intent in the log so the dispatch still completes
// with a faithful per-step account. Locate always fails: the core has no
// location source, and the interpreter treats that as a per-step,
// non-fatal failure.
type hostCapabilities struct {
	log *logging.Logger
}

var errNoLocation = errors.New("location unavailable on this host")

func (h *hostCapabilities) Notify(_ context.Context, title, body string) error {
	h.log.Info("fallback intent: notify", "title", title, "body", body)
	return nil
}

func (h *hostCapabilities) ComposeSMS(_ context.Context, to, body string) error {
	h.log.Info("fallback intent: compose sms", "to", to, "body", body)
	return nil
}

func (h *hostCapabilities) Dial(_ context.Context, number string) error {
	h.log.Info("fallback intent: dial", "number", number)
	return nil
}

func (h *hostCapabilities) ComposeEmail(_ context.Context, to, subject, _ string) error {
	h.log.Info("fallback intent: compose email", "to", to, "subject", subject)
	return nil
}

func (h *hostCapabilities) OpenURL(_ context.Context, url string) error {
	h.log.Info("fallback intent: open url", "url", url)
	return nil
}

func (h *hostCapabilities) ShowText(_ context.Context, text string) error {
	h.log.Info("fallback intent: show text", "text", text)
	return nil
}

func (h *hostCapabilities) Locate(context.Context) (fallback.Position, error) {
	return fallback.Position{}, errNoLocation
}
