// Package pulse implements the microphone DeviceProvider on PulseAudio.
package pulse

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/PabloGalante/intervu-api/internal/domain"
	"github.com/PabloGalante/intervu-api/internal/media"
)

const chunkSizeBytes = 640 // 20ms @ 16kHz mono s16

// Provider opens 16kHz mono s16 record streams from the default Pulse source.
// Camera devices are not served by PulseAudio, so camera opens report
// no-device. Note: Pulse does not prompt for consent, so probe-then-acquire
// never double-prompts here.
type Provider struct {
	appName string
}

func NewProvider() *Provider {
	return &Provider{appName: "intervu"}
}

func (p *Provider) Open(ctx context.Context, kind domain.DeviceKind) (domain.StreamHandle, error) {
	if kind != domain.DeviceMicrophone {
		return nil, fmt.Errorf("pulse serves microphones only: %w", media.ErrNoDevice)
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName(p.appName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	source, err := client.DefaultSource()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("no default source: %w", media.ErrNoDevice)
	}

	var sourceInfos pulseproto.GetSourceInfoListReply
	if rerr := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); rerr == nil {
		for _, si := range sourceInfos {
			if si == nil || si.SourceName != source.ID() {
				continue
			}
			if si.Mute {
				client.Close()
				return nil, fmt.Errorf("default source %q is muted: %w", source.ID(), media.ErrDeviceBusy)
			}
		}
	}

	stream := &micStream{
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
		pulse.RecordMediaName("intervu capture"),
	)
	if err != nil {
		stream.closeOnce()
		return nil, fmt.Errorf("create pulse record stream: %w", media.ErrDeviceBusy)
	}

	stream.record = record
	record.Start()

	go func() {
		<-ctx.Done()
		_ = stream.Close()
	}()

	return stream, nil
}

// micStream is one live Pulse record stream exposed as a StreamHandle.
type micStream struct {
	client *pulse.Client
	record *pulse.RecordStream

	chunks chan []byte
	stopCh chan struct{}

	mu       sync.Mutex
	pending  []byte
	stopped  bool
	inflight sync.WaitGroup
}

func (s *micStream) Kind() domain.DeviceKind { return domain.DeviceMicrophone }

func (s *micStream) Chunks() <-chan []byte { return s.chunks }

// Close halts the stream, flushes residual PCM, and closes Chunks exactly once.
func (s *micStream) Close() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()

	if s.record != nil {
		s.record.Stop()
		s.record.Close()
	}
	if s.client != nil {
		s.client.Close()
	}

	s.inflight.Wait()

	s.mu.Lock()
	pending := append([]byte(nil), s.pending...)
	s.pending = nil
	s.mu.Unlock()

	if len(pending) > 0 {
		select {
		case s.chunks <- pending:
		default:
		}
	}

	close(s.chunks)
	return nil
}

// closeOnce tears down a half-constructed stream before the record exists.
func (s *micStream) closeOnce() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()

	if s.client != nil {
		s.client.Close()
	}
	close(s.chunks)
}

// onPCM receives raw Pulse frames and emits fixed-size slices to s.chunks.
func (s *micStream) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-s.stopCh:
		return 0, io.EOF
	default:
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return 0, io.EOF
	}
	// Guard Add under the same mutex as s.stopped to avoid Add/Wait races.
	s.inflight.Add(1)

	s.pending = append(s.pending, buffer...)
	chunks := make([][]byte, 0, len(s.pending)/chunkSizeBytes)
	for len(s.pending) >= chunkSizeBytes {
		chunk := make([]byte, chunkSizeBytes)
		copy(chunk, s.pending[:chunkSizeBytes])
		s.pending = s.pending[chunkSizeBytes:]
		chunks = append(chunks, chunk)
	}
	s.mu.Unlock()
	defer s.inflight.Done()

	for _, chunk := range chunks {
		select {
		case <-s.stopCh:
			return 0, io.EOF
		case s.chunks <- chunk:
		}
	}

	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
