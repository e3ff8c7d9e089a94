package audio

import (
	"context"
	"fmt"
	"sync"
)

// Prober verifies capture access by opening and immediately closing a
// record stream. A success is cached: later requests return without
// touching the audio server again.
type Prober struct {
	Preferred string

	mu      sync.Mutex
	granted bool
}

// Request probes microphone access once. Failure is not cached; the next
// request probes again.
func (p *Prober) Request(ctx context.Context) error {
	p.mu.Lock()
	if p.granted {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	source := &CaptureSource{Preferred: p.Preferred}
	stream, err := source.Open(ctx)
	if err != nil {
		return fmt.Errorf("microphone access: %w", err)
	}
	_ = stream.Close()

	p.mu.Lock()
	p.granted = true
	p.mu.Unlock()
	return nil
}
