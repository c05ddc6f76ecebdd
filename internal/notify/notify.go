// Package notify delivers admitted alerts to external channels
// (Telegram, webhooks) together with an optional rendered chart.
package notify

import (
	"context"
	"errors"
	"log"

	"crypto-signal-bot/internal/model"
)

// Renderer turns a chart specification into an encoded image (PNG).
// Rendering is best-effort: when it fails the alert still goes out as
// plain text.
type Renderer interface {
	Render(spec *model.ChartSpec) ([]byte, error)
}

// Notifier is the interface for all delivery backends. Delivery is
// at-most-once: a failed Notify is logged by the caller, never retried.
type Notifier interface {
	Notify(ctx context.Context, alert model.Alert, chart *model.ChartSpec) error
}

// LogNotifier writes alerts to the process log (useful for development
// and as an always-on audit channel).
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(ctx context.Context, alert model.Alert, chart *model.ChartSpec) error {
	log.Printf("[notify] [%s] %s %s %s %s value=%.4f price=%.4f",
		alert.Severity, alert.Exchange, alert.Pair, alert.Timeframe, alert.Condition, alert.Value, alert.Price)
	return nil
}

// Multi fans an alert out to several backends. Every backend gets the
// alert exactly once; failures are collected, not short-circuited.
type Multi struct {
	backends []Notifier
}

func NewMulti(backends ...Notifier) *Multi {
	return &Multi{backends: backends}
}

func (m *Multi) Notify(ctx context.Context, alert model.Alert, chart *model.ChartSpec) error {
	var errs []error
	for _, n := range m.backends {
		if err := n.Notify(ctx, alert, chart); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
