package media

import (
	"context"
	"sync"

	"github.com/PabloGalante/intervu-api/internal/domain"
)

// FakeProvider is an in-process DeviceProvider. Tests script denials per
// device kind and observe how many opens happened and how many streams are
// still live; local mode uses it as an always-granting device layer.
type FakeProvider struct {
	mu      sync.Mutex
	failure map[domain.DeviceKind]error
	opens   map[domain.DeviceKind]int
	last    map[domain.DeviceKind]*FakeStream
	live    int
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		failure: make(map[domain.DeviceKind]error),
		opens:   make(map[domain.DeviceKind]int),
		last:    make(map[domain.DeviceKind]*FakeStream),
	}
}

// FailWith makes every subsequent Open of kind fail with err until Allow.
func (p *FakeProvider) FailWith(kind domain.DeviceKind, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failure[kind] = err
}

// Allow clears a scripted failure, simulating the user re-consenting.
func (p *FakeProvider) Allow(kind domain.DeviceKind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failure, kind)
}

// Opens reports how many times kind was opened (prompt count).
func (p *FakeProvider) Opens(kind domain.DeviceKind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens[kind]
}

// LiveStreams reports how many opened streams have not been closed yet.
func (p *FakeProvider) LiveStreams() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

func (p *FakeProvider) Open(_ context.Context, kind domain.DeviceKind) (domain.StreamHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.opens[kind]++
	if err := p.failure[kind]; err != nil {
		return nil, err
	}

	p.live++
	stream := &FakeStream{
		kind:   kind,
		chunks: make(chan []byte, 16),
		onClose: func() {
			p.mu.Lock()
			p.live--
			p.mu.Unlock()
		},
	}
	p.last[kind] = stream
	return stream, nil
}

// LastStream returns the most recently opened stream of kind, for tests that
// push audio through the handle a capture session owns.
func (p *FakeProvider) LastStream(kind domain.DeviceKind) *FakeStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last[kind]
}

// FakeStream is the stream handle produced by FakeProvider. Tests push audio
// chunks into it with Push.
type FakeStream struct {
	kind    domain.DeviceKind
	chunks  chan []byte
	onClose func()

	mu     sync.Mutex
	closed bool
}

func (s *FakeStream) Kind() domain.DeviceKind { return s.kind }

func (s *FakeStream) Chunks() <-chan []byte { return s.chunks }

// Push delivers one audio chunk to the consumer. No-op after Close.
func (s *FakeStream) Push(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.chunks <- chunk
}

func (s *FakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.chunks)
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

// ScriptedRecognizer is an in-process Recognizer driven by the test (or by
// local demo wiring): Emit publishes replace-whole transcript updates,
// EmitError simulates a mid-capture recognizer failure.
type ScriptedRecognizer struct {
	mu       sync.Mutex
	updates  chan domain.RecognizerUpdate
	started  bool
	stopped  bool
	final    string
	startErr error
	fedBytes int
}

func NewScriptedRecognizer() *ScriptedRecognizer {
	return &ScriptedRecognizer{}
}

// NewStaticRecognizer returns a recognizer whose final transcript is fixed.
// Local mode uses it when no real speech backend is configured.
func NewStaticRecognizer(text string) *ScriptedRecognizer {
	r := NewScriptedRecognizer()
	r.SetFinal(text)
	return r
}

// SetFinal fixes the transcript returned by Stop.
func (r *ScriptedRecognizer) SetFinal(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.final = text
}

// SetStartErr makes the next Start fail, simulating missing speech support.
func (r *ScriptedRecognizer) SetStartErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startErr = err
}

// Emit publishes one live transcript update. No-op before Start or after Stop.
func (r *ScriptedRecognizer) Emit(transcript string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.stopped {
		return
	}
	r.updates <- domain.RecognizerUpdate{Transcript: transcript}
}

// EmitError publishes a recognizer failure. No-op before Start or after Stop.
func (r *ScriptedRecognizer) EmitError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.stopped {
		return
	}
	r.updates <- domain.RecognizerUpdate{Err: err}
}

// FedBytes reports how much raw audio was fed in.
func (r *ScriptedRecognizer) FedBytes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fedBytes
}

func (r *ScriptedRecognizer) Start(context.Context) (<-chan domain.RecognizerUpdate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.updates = make(chan domain.RecognizerUpdate, 16)
	r.started = true
	r.stopped = false
	return r.updates, nil
}

func (r *ScriptedRecognizer) Feed(chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fedBytes += len(chunk)
}

func (r *ScriptedRecognizer) Stop(context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || !r.started {
		return r.final, nil
	}
	r.stopped = true
	close(r.updates)
	return r.final, nil
}
