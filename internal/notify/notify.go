// Package notify surfaces subtitle problems as desktop notifications.
package notify

import (
	"context"
	"io"
	"log/slog"

	"github.com/gen2brain/beeep"
)

const appName = "Undertone"

// Desktop sends freedesktop notifications. Implements the subtitle
// layer's Notifier. Delivery failures are logged and otherwise ignored;
// notifications are never load-bearing.
type Desktop struct {
	enabled bool
	logger  *slog.Logger
}

// NewDesktop builds the notifier. Disabled instances swallow everything.
func NewDesktop(enabled bool, logger *slog.Logger) *Desktop {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Desktop{enabled: enabled, logger: logger}
}

// Notify shows one notification.
func (d *Desktop) Notify(_ context.Context, title string, body string) {
	if !d.enabled {
		return
	}
	summary := appName
	if title != "" {
		summary = appName + ": " + title
	}
	if err := beeep.Notify(summary, body, ""); err != nil {
		d.logger.Debug("desktop notification failed", "error", err.Error())
	}
}
