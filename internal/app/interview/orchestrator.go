package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/intervu-api/internal/domain"
	"github.com/PabloGalante/intervu-api/internal/media"
	"github.com/PabloGalante/intervu-api/internal/observability"
)

// ErrSessionClosed is returned when an operation arrives after the session
// reached complete (including results that arrive late after teardown).
var ErrSessionClosed = errors.New("session already complete")

// ErrCaptureStillClosing guards the single-open-capture invariant: listening
// cannot be entered while a previous capture handle has not finished closing.
var ErrCaptureStillClosing = errors.New("previous capture is still closing")

// PermissionError is the only error class surfaced to the user as a prompt.
// The session stays in its current state; the user can retry after consenting.
type PermissionError struct {
	Device domain.DeviceKind
	Reason domain.DenyReason
}

func (e *PermissionError) Error() string {
	return media.DenialMessage(e.Device, e.Reason)
}

// Deps are the collaborators one orchestrator drives.
type Deps struct {
	Questions     domain.QuestionSource
	Scorer        domain.ResponseScorer
	Gate          *media.Gate
	NewRecognizer func() domain.Recognizer
	Logger        *slog.Logger
	Now           func() time.Time
}

// Orchestrator is the per-session state machine. It owns the timeline, the
// current question, the open capture and camera handles, and the elapsed
// clock. Transitions are serialized under one mutex; remote calls run outside
// the lock and their results are discarded if teardown superseded them.
type Orchestrator struct {
	deps Deps

	mu       sync.Mutex
	session  domain.Session
	state    domain.SessionState
	timeline *Timeline
	current  *domain.Question
	capture  *media.CaptureSession
	turns    []domain.Turn
	feedback []domain.Feedback
	audio    []domain.AudioClip
	asked    int

	// gen increments on teardown; in-flight work re-checks it before
	// applying effects.
	gen uint64

	clockStart   time.Time
	clockStop    time.Time
	clockRunning bool
}

func NewOrchestrator(session domain.Session, deps Deps) *Orchestrator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if session.MaxQuestions <= 0 {
		session.MaxQuestions = 5
	}
	return &Orchestrator{
		deps:     deps,
		session:  session,
		state:    domain.StateIntro,
		timeline: NewTimeline(),
	}
}

// State returns the current session state.
func (o *Orchestrator) State() domain.SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Session returns a copy of the session this orchestrator runs.
func (o *Orchestrator) Session() domain.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// CurrentQuestion returns the active question, decoupled from timeline
// positions.
func (o *Orchestrator) CurrentQuestion() (domain.Question, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return domain.Question{}, false
	}
	return *o.current, true
}

// MicPermission reports the last observed microphone permission status.
func (o *Orchestrator) MicPermission() domain.PermissionStatus {
	return o.deps.Gate.Status(domain.DeviceMicrophone)
}

// CameraPermission reports the last observed camera permission status.
func (o *Orchestrator) CameraPermission() domain.PermissionStatus {
	return o.deps.Gate.Status(domain.DeviceCamera)
}

// LiveTranscript returns the in-progress transcript while listening.
func (o *Orchestrator) LiveTranscript() string {
	o.mu.Lock()
	c := o.capture
	o.mu.Unlock()
	if c == nil {
		return ""
	}
	return c.Transcript()
}

// ElapsedSeconds reports the monotonic session clock. The clock runs from
// entry into question until complete.
func (o *Orchestrator) ElapsedSeconds() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.elapsedSecondsLocked()
}

func (o *Orchestrator) elapsedSecondsLocked() int {
	if o.clockStart.IsZero() {
		return 0
	}
	end := o.deps.Now()
	if !o.clockRunning {
		end = o.clockStop
	}
	return int(end.Sub(o.clockStart).Seconds())
}

// BeginResult is the outcome of a successful intro -> question transition.
type BeginResult struct {
	Question domain.Question
	Message  domain.Message
}

// Begin runs the intro -> question transition: probes both permissions,
// opens the camera preview, fetches the first question, and starts the
// clock. Any permission or device error leaves the session in intro with
// the clock stopped.
func (o *Orchestrator) Begin(ctx context.Context) (*BeginResult, error) {
	o.mu.Lock()
	if o.state != domain.StateIntro {
		state := o.state
		o.mu.Unlock()
		if state == domain.StateComplete {
			return nil, ErrSessionClosed
		}
		_, err := domain.Transition(state, domain.EventBegin)
		return nil, err
	}
	gen := o.gen
	o.mu.Unlock()

	log := o.logger(ctx)

	for _, kind := range []domain.DeviceKind{domain.DeviceMicrophone, domain.DeviceCamera} {
		if status, reason := o.deps.Gate.Probe(ctx, kind); status != domain.PermissionGranted {
			log.Warn("permission check failed", "device", kind, "reason", reason)
			return nil, &PermissionError{Device: kind, Reason: reason}
		}
	}

	if _, err := o.deps.Gate.Acquire(ctx, domain.DeviceCamera); err != nil {
		log.Warn("could not start camera preview", "error", err)
		return nil, &PermissionError{Device: domain.DeviceCamera, Reason: media.ClassifyDenial(err)}
	}

	question := o.deps.Questions.Next(ctx, o.questionRequest(nil))

	o.mu.Lock()
	if o.gen != gen || o.state != domain.StateIntro {
		o.mu.Unlock()
		o.deps.Gate.Release(domain.DeviceCamera)
		return nil, ErrSessionClosed
	}

	next, err := domain.Transition(o.state, domain.EventBegin)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.state = next
	o.current = &question
	o.asked = 1
	o.clockStart = o.deps.Now()
	o.clockRunning = true
	msg := o.appendMessageLocked(domain.RoleAssistant, question.Text, "")
	o.mu.Unlock()

	log.Info("interview started", "question", question.Text)
	return &BeginResult{Question: question, Message: msg}, nil
}

// StartListening runs question -> listening: opens a capture session for the
// microphone. A denied microphone is re-probed first; if still denied the
// session stays in question and the caller prompts for re-consent.
func (o *Orchestrator) StartListening(ctx context.Context) error {
	o.mu.Lock()
	if o.state != domain.StateListening && o.capture != nil {
		o.mu.Unlock()
		return ErrCaptureStillClosing
	}
	if o.state != domain.StateQuestion {
		state := o.state
		o.mu.Unlock()
		if state == domain.StateComplete {
			return ErrSessionClosed
		}
		_, err := domain.Transition(state, domain.EventListen)
		return err
	}
	gen := o.gen
	o.mu.Unlock()

	log := o.logger(ctx)

	if o.deps.Gate.Status(domain.DeviceMicrophone) == domain.PermissionDenied {
		if status, reason := o.deps.Gate.Probe(ctx, domain.DeviceMicrophone); status != domain.PermissionGranted {
			log.Warn("microphone still denied", "reason", reason)
			return &PermissionError{Device: domain.DeviceMicrophone, Reason: reason}
		}
	}

	var rec domain.Recognizer
	if o.deps.NewRecognizer != nil {
		rec = o.deps.NewRecognizer()
	}
	capture := media.NewCaptureSession(o.deps.Gate, rec, o.deps.Logger)

	if err := capture.Start(ctx); err != nil {
		if errors.Is(err, media.ErrNoSpeechSupport) {
			return err
		}
		return &PermissionError{Device: domain.DeviceMicrophone, Reason: media.ClassifyDenial(err)}
	}

	o.mu.Lock()
	if o.gen != gen || o.state != domain.StateQuestion {
		o.mu.Unlock()
		_, _ = capture.Stop(context.Background())
		return ErrSessionClosed
	}
	next, err := domain.Transition(o.state, domain.EventListen)
	if err != nil {
		o.mu.Unlock()
		_, _ = capture.Stop(context.Background())
		return err
	}
	o.state = next
	o.capture = capture
	o.mu.Unlock()

	// A recognizer failure auto-stops the capture; finish the turn with the
	// preserved partial transcript instead of waiting for the user.
	go func() {
		<-capture.Done()
		if capture.RecognizerErr() == nil {
			return
		}
		if _, err := o.FinishTurn(context.Background()); err != nil {
			log.Warn("auto-finishing degraded turn", "error", err)
		}
	}()

	log.Info("listening started")
	return nil
}

// TurnResult is the outcome of finishing one answer: the appended user
// message and the (possibly degraded) feedback for it.
type TurnResult struct {
	UserMessage domain.Message
	Feedback    domain.Feedback
}

// FinishTurn runs listening -> processing -> feedback: stops the capture,
// appends the user answer (possibly empty), scores it, and applies the
// feedback. A teardown racing the scoring call wins; the late result is
// discarded.
func (o *Orchestrator) FinishTurn(ctx context.Context) (*TurnResult, error) {
	o.mu.Lock()
	if o.state != domain.StateListening {
		state := o.state
		o.mu.Unlock()
		if state == domain.StateComplete {
			return nil, ErrSessionClosed
		}
		_, err := domain.Transition(state, domain.EventStopListening)
		return nil, err
	}
	next, err := domain.Transition(o.state, domain.EventStopListening)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.state = next
	capture := o.capture
	gen := o.gen
	o.mu.Unlock()

	log := o.logger(ctx)

	result, err := capture.Stop(ctx)
	if err != nil {
		// Stop on a started capture only fails before Start; treat as empty.
		log.Error("capture stop failed", "error", err)
		result = media.CaptureResult{}
	}
	if rerr := capture.RecognizerErr(); rerr != nil {
		log.Warn("turn captured with degraded recognition", "error", rerr)
	}

	o.mu.Lock()
	if o.gen != gen {
		o.mu.Unlock()
		return nil, ErrSessionClosed
	}
	o.capture = nil

	var audioRef string
	if len(result.Audio) > 0 {
		audioRef = fmt.Sprintf("audio_%d.webm", len(o.audio))
	}
	userMsg := o.appendMessageLocked(domain.RoleUser, result.Transcript, audioRef)
	if len(result.Audio) > 0 {
		o.audio = append(o.audio, domain.AudioClip{
			MessageID: userMsg.ID,
			MIMEType:  result.MIMEType,
			Data:      result.Audio,
		})
	}

	var questionText string
	if o.current != nil {
		questionText = o.current.Text
	}
	o.turns = append(o.turns, domain.Turn{Question: questionText, Answer: result.Transcript})
	o.mu.Unlock()

	feedback := o.deps.Scorer.Score(ctx, domain.ScoreRequest{
		Question:   questionText,
		Answer:     result.Transcript,
		ResumeText: o.session.ResumeText,
	})

	o.mu.Lock()
	if o.gen != gen || o.state != domain.StateProcessing {
		o.mu.Unlock()
		log.Info("discarding late scoring result")
		return nil, ErrSessionClosed
	}
	next, err = domain.Transition(o.state, domain.EventScored)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.state = next

	feedback.ID = domain.FeedbackID(uuid.New().String())
	feedback.SessionID = o.session.ID
	feedback.MessageID = userMsg.ID
	feedback.CreatedAt = o.deps.Now()
	o.feedback = append(o.feedback, feedback)
	o.mu.Unlock()

	log.Info("turn finished", "sentiment", feedback.Sentiment, "engagement", feedback.Engagement)
	return &TurnResult{UserMessage: userMsg, Feedback: feedback}, nil
}

// ContinueResult is the outcome of leaving feedback: either the next
// question or completion.
type ContinueResult struct {
	Done     bool
	Question domain.Question
	Message  domain.Message
}

// Continue runs feedback -> question while questions remain, otherwise
// feedback -> complete.
func (o *Orchestrator) Continue(ctx context.Context) (*ContinueResult, error) {
	o.mu.Lock()
	if o.state != domain.StateFeedback {
		state := o.state
		o.mu.Unlock()
		if state == domain.StateComplete {
			return nil, ErrSessionClosed
		}
		_, err := domain.Transition(state, domain.EventNextQuestion)
		return nil, err
	}

	if o.asked >= o.session.MaxQuestions {
		next, err := domain.Transition(o.state, domain.EventFinish)
		if err != nil {
			o.mu.Unlock()
			return nil, err
		}
		o.state = next
		o.stopClockLocked()
		o.mu.Unlock()

		o.deps.Gate.ReleaseAll()
		o.logger(ctx).Info("interview complete", "questions", o.asked)
		return &ContinueResult{Done: true}, nil
	}

	gen := o.gen
	history := make([]domain.Turn, len(o.turns))
	copy(history, o.turns)
	o.mu.Unlock()

	question := o.deps.Questions.Next(ctx, o.questionRequest(history))

	o.mu.Lock()
	if o.gen != gen || o.state != domain.StateFeedback {
		o.mu.Unlock()
		return nil, ErrSessionClosed
	}
	next, err := domain.Transition(o.state, domain.EventNextQuestion)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.state = next
	o.current = &question
	o.asked++
	msg := o.appendMessageLocked(domain.RoleAssistant, question.Text, "")
	o.mu.Unlock()

	o.logger(ctx).Info("next question", "number", o.asked)
	return &ContinueResult{Question: question, Message: msg}, nil
}

// Teardown cancels the session from any state: it force-stops any open
// capture, releases the camera, and stops the clock. Always legal and
// idempotent.
func (o *Orchestrator) Teardown() {
	o.mu.Lock()
	if o.state == domain.StateComplete {
		o.mu.Unlock()
		return
	}
	o.gen++
	o.state, _ = domain.Transition(o.state, domain.EventTeardown)
	capture := o.capture
	o.capture = nil
	o.stopClockLocked()
	o.mu.Unlock()

	if capture != nil {
		_, _ = capture.Stop(context.Background())
	}
	o.deps.Gate.ReleaseAll()

	o.logger(context.Background()).Info("session torn down")
}

// SetCamera toggles the camera preview while the session is running.
func (o *Orchestrator) SetCamera(ctx context.Context, on bool) error {
	o.mu.Lock()
	state := o.state
	gen := o.gen
	o.mu.Unlock()

	if state == domain.StateComplete || state == domain.StateIntro {
		return fmt.Errorf("camera toggle not available in state %s", state)
	}

	if !on {
		o.deps.Gate.Release(domain.DeviceCamera)
		return nil
	}
	if _, err := o.deps.Gate.Acquire(ctx, domain.DeviceCamera); err != nil {
		return &PermissionError{Device: domain.DeviceCamera, Reason: media.ClassifyDenial(err)}
	}

	// A teardown racing the acquire has already released everything; the
	// fresh handle must not outlive the session.
	o.mu.Lock()
	if o.gen != gen {
		o.mu.Unlock()
		o.deps.Gate.Release(domain.DeviceCamera)
		return ErrSessionClosed
	}
	o.mu.Unlock()
	return nil
}

// Timeline returns the session timeline messages in order.
func (o *Orchestrator) Timeline() []domain.Message {
	return o.timeline.All()
}

// FeedbackHistory returns all applied feedback in turn order.
func (o *Orchestrator) FeedbackHistory() []domain.Feedback {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.Feedback, len(o.feedback))
	copy(out, o.feedback)
	return out
}

// Snapshot exports the session for reporting. The snapshot is a copy.
func (o *Orchestrator) Snapshot() domain.SessionSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	feedback := make([]domain.Feedback, len(o.feedback))
	copy(feedback, o.feedback)
	audio := make([]domain.AudioClip, len(o.audio))
	copy(audio, o.audio)

	return domain.SessionSnapshot{
		Session:    o.session,
		State:      o.state,
		Messages:   o.timeline.All(),
		Feedback:   feedback,
		Audio:      audio,
		ElapsedSec: o.elapsedSecondsLocked(),
		ExportedAt: o.deps.Now(),
	}
}

// AppendWelcome adds the pre-interview assistant greeting to the timeline.
func (o *Orchestrator) AppendWelcome(text string) domain.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.appendMessageLocked(domain.RoleAssistant, text, "")
}

func (o *Orchestrator) appendMessageLocked(role domain.Role, content, audioRef string) domain.Message {
	msg := domain.Message{
		ID:        domain.MessageID(uuid.New().String()),
		SessionID: o.session.ID,
		Role:      role,
		Content:   content,
		CreatedAt: o.deps.Now(),
		AudioRef:  audioRef,
	}
	o.timeline.Append(msg)
	return msg
}

func (o *Orchestrator) questionRequest(history []domain.Turn) domain.QuestionRequest {
	return domain.QuestionRequest{
		History:         history,
		ResumeText:      o.session.ResumeText,
		ExperienceLevel: o.session.ExperienceLevel,
	}
}

func (o *Orchestrator) stopClockLocked() {
	if o.clockRunning {
		o.clockRunning = false
		o.clockStop = o.deps.Now()
	}
}

func (o *Orchestrator) logger(ctx context.Context) *slog.Logger {
	base := o.deps.Logger
	if base == nil {
		base = observability.LoggerFromContext(ctx)
	}
	return base.With("session_id", o.session.ID, "user_id", o.session.UserID)
}
