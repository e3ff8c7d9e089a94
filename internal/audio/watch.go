package audio

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// WatchInputs polls the Pulse source list and reports microphone presence
// transitions to fn. The current state is reported immediately, then only
// changes. Blocks until ctx is cancelled.
func WatchInputs(ctx context.Context, interval time.Duration, logger *slog.Logger, fn func(hasDevice bool)) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	report := func(first bool, last bool) bool {
		devices, err := ListDevices(ctx)
		if err != nil {
			logger.Debug("audio device poll failed", "error", err.Error())
			// An unreachable audio server means no capturable microphone.
			devices = nil
		}
		has := HasUsableInput(devices)
		if first || has != last {
			fn(has)
		}
		return has
	}

	last := report(true, false)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last = report(false, last)
		}
	}
}
