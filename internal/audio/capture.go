package audio

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const chunkSizeBytes = 640 // 20ms @ 16kHz mono s16

// CaptureSource opens a live microphone stream per recognition run. The
// value is reused across runs; each Open creates a fresh Pulse stream.
type CaptureSource struct {
	// Preferred is the configured input device id or description fragment;
	// empty or "default" uses the server default source.
	Preferred string
}

// Open connects to Pulse, resolves the capture device, and starts a 16kHz
// mono s16 record stream. The returned reader yields raw PCM until closed.
func (s *CaptureSource) Open(ctx context.Context) (io.ReadCloser, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	selected, err := selectInput(devices, s.Preferred)
	if err != nil {
		return nil, err
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("undertone"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	stream := &pcmStream{
		client: client,
		chunks: make(chan []byte, 128),
		stopCh: make(chan struct{}),
	}

	writer := pulse.NewWriter(writerFunc(stream.onPCM), pulseproto.FormatInt16LE)
	record, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(16000),
		pulse.RecordBufferFragmentSize(chunkSizeBytes),
		pulse.RecordMediaName("undertone subtitles"),
	)
	if err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	stream.record = record
	record.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = stream.Close()
		case <-stream.stopCh:
		}
	}()

	return stream, nil
}

// pcmStream adapts the Pulse callback feed into an io.ReadCloser.
type pcmStream struct {
	client *pulse.Client
	record *pulse.RecordStream

	chunks chan []byte
	stopCh chan struct{}

	mu       sync.Mutex
	pending  []byte
	leftover []byte
	stopped  bool

	inflight sync.WaitGroup
}

// Read blocks until PCM is available or the stream is closed.
func (p *pcmStream) Read(buf []byte) (int, error) {
	p.mu.Lock()
	if len(p.leftover) > 0 {
		n := copy(buf, p.leftover)
		p.leftover = p.leftover[n:]
		p.mu.Unlock()
		return n, nil
	}
	p.mu.Unlock()

	chunk, ok := <-p.chunks
	if !ok {
		return 0, io.EOF
	}
	n := copy(buf, chunk)
	if n < len(chunk) {
		p.mu.Lock()
		p.leftover = append(p.leftover, chunk[n:]...)
		p.mu.Unlock()
	}
	return n, nil
}

// Close halts the stream, flushes residual PCM, and closes the chunk
// channel exactly once.
func (p *pcmStream) Close() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	p.mu.Unlock()

	if p.record != nil {
		p.record.Stop()
		p.record.Close()
	}
	if p.client != nil {
		p.client.Close()
	}

	p.inflight.Wait()

	p.mu.Lock()
	pending := append([]byte(nil), p.pending...)
	p.pending = nil
	p.mu.Unlock()

	if len(pending) > 0 {
		chunk := make([]byte, len(pending))
		copy(chunk, pending)
		select {
		case p.chunks <- chunk:
		default:
		}
	}

	close(p.chunks)
	return nil
}

// onPCM receives raw Pulse frames and emits chunkSizeBytes slices.
func (p *pcmStream) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-p.stopCh:
		return 0, io.EOF
	default:
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return 0, io.EOF
	}
	// Guard Add under the same mutex as p.stopped to avoid Add/Wait races.
	p.inflight.Add(1)

	p.pending = append(p.pending, buffer...)

	chunks := make([][]byte, 0, len(p.pending)/chunkSizeBytes)
	for len(p.pending) >= chunkSizeBytes {
		chunk := make([]byte, chunkSizeBytes)
		copy(chunk, p.pending[:chunkSizeBytes])
		p.pending = p.pending[chunkSizeBytes:]
		chunks = append(chunks, chunk)
	}
	p.mu.Unlock()
	defer p.inflight.Done()

	for _, chunk := range chunks {
		select {
		case <-p.stopCh:
			return 0, io.EOF
		case p.chunks <- chunk:
		}
	}

	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
