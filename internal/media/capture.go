package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PabloGalante/intervu-api/internal/domain"
)

// AudioMIMEType labels finalized recordings in snapshots and report archives.
const AudioMIMEType = "audio/webm;codecs=opus"

var (
	// ErrNoSpeechSupport indicates no recognizer is wired for this session.
	ErrNoSpeechSupport = errors.New("speech recognition is not supported")
	// ErrCaptureNotStarted indicates Stop was called before Start succeeded.
	ErrCaptureNotStarted = errors.New("capture session not started")
	// ErrCaptureAlreadyStarted indicates a second Start on the same session.
	ErrCaptureAlreadyStarted = errors.New("capture session already started")
)

// CaptureResult is the finalized output of one capture: the full transcript
// and the accumulated raw audio. A zero-length recording is valid.
type CaptureResult struct {
	Transcript string
	Audio      []byte
	MIMEType   string
}

// CaptureSession pairs one microphone stream with one recognizer for a single
// user turn. Stop always releases the device and halts the recognizer, even
// when nothing was captured. A recognizer failure mid-capture auto-stops the
// session and preserves the partial transcript.
type CaptureSession struct {
	gate   *Gate
	rec    domain.Recognizer
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	live    string
	audio   []byte
	recErr  error
	result  CaptureResult

	chunksDone chan struct{}
	finalized  chan struct{}
}

func NewCaptureSession(gate *Gate, rec domain.Recognizer, logger *slog.Logger) *CaptureSession {
	return &CaptureSession{
		gate:       gate,
		rec:        rec,
		logger:     logger,
		chunksDone: make(chan struct{}),
		finalized:  make(chan struct{}),
	}
}

// Start acquires the microphone and starts the recognizer. On any failure
// nothing is left open.
func (c *CaptureSession) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrCaptureAlreadyStarted
	}
	c.mu.Unlock()

	if c.rec == nil {
		return ErrNoSpeechSupport
	}

	handle, err := c.gate.Acquire(ctx, domain.DeviceMicrophone)
	if err != nil {
		return err
	}

	updates, err := c.rec.Start(ctx)
	if err != nil {
		c.gate.Release(domain.DeviceMicrophone)
		return fmt.Errorf("start recognizer: %w", err)
	}

	c.mu.Lock()
	c.started = true
	c.mu.Unlock()

	go c.pumpChunks(handle)
	go c.pumpUpdates(updates)

	return nil
}

// Transcript returns the current live transcript. Each recognizer update
// replaces the whole transcript.
func (c *CaptureSession) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// Done is closed once the capture is finalized, whether by Stop or by a
// recognizer-failure auto-stop.
func (c *CaptureSession) Done() <-chan struct{} {
	return c.finalized
}

// RecognizerErr reports a mid-capture recognizer failure, if one occurred.
func (c *CaptureSession) RecognizerErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recErr
}

// Stop finalizes the capture: halts the recognizer, releases the microphone,
// and returns the transcript plus accumulated audio. Calling Stop after an
// auto-stop returns the preserved partial result without error.
func (c *CaptureSession) Stop(ctx context.Context) (CaptureResult, error) {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return CaptureResult{}, ErrCaptureNotStarted
	}
	if c.stopped {
		c.mu.Unlock()
		<-c.finalized
		c.mu.Lock()
		res := c.result
		c.mu.Unlock()
		return res, nil
	}
	c.stopped = true
	live := c.live
	c.mu.Unlock()

	final, err := c.rec.Stop(ctx)
	if err != nil || strings.TrimSpace(final) == "" {
		final = live
	}

	c.finish(final)
	return c.snapshotResult(), nil
}

// autoStop finalizes the capture after a recognizer failure, keeping the
// partial transcript instead of losing it.
func (c *CaptureSession) autoStop(cause error) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.recErr = cause
	live := c.live
	c.mu.Unlock()

	c.logger.Warn("recognizer failed mid-capture, auto-stopping", "error", cause)

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _ = c.rec.Stop(stopCtx)

	c.finish(live)
}

// finish releases the microphone, waits for the chunk pump to drain, and
// publishes the finalized result.
func (c *CaptureSession) finish(transcript string) {
	c.gate.Release(domain.DeviceMicrophone)
	<-c.chunksDone

	c.mu.Lock()
	c.result = CaptureResult{
		Transcript: transcript,
		Audio:      c.audio,
		MIMEType:   AudioMIMEType,
	}
	c.mu.Unlock()

	close(c.finalized)
}

func (c *CaptureSession) snapshotResult() CaptureResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// pumpChunks forwards raw audio into the buffer and the recognizer until the
// device stream closes.
func (c *CaptureSession) pumpChunks(handle domain.StreamHandle) {
	defer close(c.chunksDone)

	for chunk := range handle.Chunks() {
		c.mu.Lock()
		c.audio = append(c.audio, chunk...)
		c.mu.Unlock()
		c.rec.Feed(chunk)
	}
}

// pumpUpdates applies replace-whole transcript updates until the recognizer
// closes its channel. An error update triggers auto-stop.
func (c *CaptureSession) pumpUpdates(updates <-chan domain.RecognizerUpdate) {
	for u := range updates {
		if u.Err != nil {
			go c.autoStop(u.Err)
			return
		}
		c.mu.Lock()
		c.live = u.Transcript
		c.mu.Unlock()
	}
}
