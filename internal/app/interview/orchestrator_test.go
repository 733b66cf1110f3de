package interview

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/intervu-api/internal/domain"
	"github.com/PabloGalante/intervu-api/internal/media"
	"github.com/PabloGalante/intervu-api/internal/observability"
)

type fakeQuestions struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeQuestions) Next(_ context.Context, req domain.QuestionRequest) domain.Question {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return domain.Question{
		Text:             fmt.Sprintf("Question %d (history %d)", f.calls, len(req.History)),
		FollowUpPossible: true,
	}
}

type fakeScorer struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (f *fakeScorer) Score(_ context.Context, req domain.ScoreRequest) domain.Feedback {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	return domain.Feedback{
		ContentNote: "Scored: " + req.Answer,
		ToneNote:    "Calm delivery.",
		ClarityNote: "Clear.",
		Sentiment:   domain.SentimentPositive,
		Engagement:  70,
		Confidence:  65,
		Keywords:    []string{"experience"},
	}
}

type fixture struct {
	orch     *Orchestrator
	provider *media.FakeProvider
	scorer   *fakeScorer
	clock    *fakeClock
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newFixture(maxQuestions int) *fixture {
	provider := media.NewFakeProvider()
	scorer := &fakeScorer{}
	clock := &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}

	session := domain.Session{
		ID:              domain.SessionID("sess-1"),
		UserID:          domain.UserID("user-1"),
		ResumeText:      "Six years of backend work.",
		ExperienceLevel: domain.LevelMid,
		MaxQuestions:    maxQuestions,
	}

	orch := NewOrchestrator(session, Deps{
		Questions: &fakeQuestions{},
		Scorer:    scorer,
		Gate:      media.NewGate(provider, observability.Logger()),
		NewRecognizer: func() domain.Recognizer {
			return media.NewStaticRecognizer("I led the platform migration.")
		},
		Logger: observability.Logger(),
		Now:    clock.Now,
	})

	return &fixture{orch: orch, provider: provider, scorer: scorer, clock: clock}
}

func runTurn(t *testing.T, f *fixture) *TurnResult {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.orch.StartListening(ctx))
	res, err := f.orch.FinishTurn(ctx)
	require.NoError(t, err)
	return res
}

func TestFullSessionReachesComplete(t *testing.T) {
	f := newFixture(3)
	ctx := context.Background()

	begin, err := f.orch.Begin(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.StateQuestion, f.orch.State())
	require.NotEmpty(t, begin.Question.Text)

	for i := 0; i < 3; i++ {
		turn := runTurn(t, f)
		require.Equal(t, domain.StateFeedback, f.orch.State())
		require.Equal(t, domain.RoleUser, turn.UserMessage.Role)
		require.Equal(t, "I led the platform migration.", turn.UserMessage.Content)
		require.Equal(t, domain.SentimentPositive, turn.Feedback.Sentiment)
		require.Equal(t, turn.UserMessage.ID, turn.Feedback.MessageID)

		cont, err := f.orch.Continue(ctx)
		require.NoError(t, err)
		if i < 2 {
			require.False(t, cont.Done)
			require.Equal(t, domain.StateQuestion, f.orch.State())
		} else {
			require.True(t, cont.Done)
			require.Equal(t, domain.StateComplete, f.orch.State())
		}
	}

	require.Len(t, f.orch.FeedbackHistory(), 3)
	require.Equal(t, 0, f.provider.LiveStreams())

	// 3 questions + 3 answers on the timeline, alternating and in order.
	msgs := f.orch.Timeline()
	require.Len(t, msgs, 6)
	for i, msg := range msgs {
		if i%2 == 0 {
			require.Equal(t, domain.RoleAssistant, msg.Role)
		} else {
			require.Equal(t, domain.RoleUser, msg.Role)
		}
		if i > 0 {
			require.False(t, msg.CreatedAt.Before(msgs[i-1].CreatedAt))
		}
	}
}

func TestCompletedSessionRejectsFurtherOps(t *testing.T) {
	f := newFixture(1)
	ctx := context.Background()

	_, err := f.orch.Begin(ctx)
	require.NoError(t, err)
	runTurn(t, f)
	cont, err := f.orch.Continue(ctx)
	require.NoError(t, err)
	require.True(t, cont.Done)

	require.ErrorIs(t, f.orch.StartListening(ctx), ErrSessionClosed)
	_, err = f.orch.Begin(ctx)
	require.ErrorIs(t, err, ErrSessionClosed)
	_, err = f.orch.Continue(ctx)
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestBeginDeniedMicStaysInIntro(t *testing.T) {
	f := newFixture(3)
	ctx := context.Background()

	f.provider.FailWith(domain.DeviceMicrophone, media.ErrPermissionDenied)

	_, err := f.orch.Begin(ctx)
	var perr *PermissionError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, domain.DeviceMicrophone, perr.Device)
	require.Equal(t, domain.DenyUserDenied, perr.Reason)

	require.Equal(t, domain.StateIntro, f.orch.State())
	require.Equal(t, 0, f.provider.LiveStreams())
	require.Equal(t, 0, f.orch.ElapsedSeconds())

	// After re-consent the same session can still start.
	f.provider.Allow(domain.DeviceMicrophone)
	_, err = f.orch.Begin(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.StateQuestion, f.orch.State())
}

func TestMicDeniedMidSessionStaysInQuestion(t *testing.T) {
	f := newFixture(3)
	ctx := context.Background()

	_, err := f.orch.Begin(ctx)
	require.NoError(t, err)

	f.provider.FailWith(domain.DeviceMicrophone, media.ErrPermissionDenied)
	err = f.orch.StartListening(ctx)
	var perr *PermissionError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, domain.DeviceMicrophone, perr.Device)
	require.Equal(t, domain.StateQuestion, f.orch.State())

	// Re-consent, retry, and the turn proceeds normally.
	f.provider.Allow(domain.DeviceMicrophone)
	require.NoError(t, f.orch.StartListening(ctx))
	require.Equal(t, domain.StateListening, f.orch.State())
	_, err = f.orch.FinishTurn(ctx)
	require.NoError(t, err)
}

func TestTeardownFromEveryState(t *testing.T) {
	steps := []struct {
		name    string
		arrange func(t *testing.T, f *fixture)
	}{
		{"intro", func(t *testing.T, f *fixture) {}},
		{"question", func(t *testing.T, f *fixture) {
			_, err := f.orch.Begin(context.Background())
			require.NoError(t, err)
		}},
		{"listening", func(t *testing.T, f *fixture) {
			_, err := f.orch.Begin(context.Background())
			require.NoError(t, err)
			require.NoError(t, f.orch.StartListening(context.Background()))
		}},
		{"feedback", func(t *testing.T, f *fixture) {
			_, err := f.orch.Begin(context.Background())
			require.NoError(t, err)
			runTurn(t, f)
		}},
	}

	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			f := newFixture(3)
			step.arrange(t, f)

			f.orch.Teardown()
			require.Equal(t, domain.StateComplete, f.orch.State())
			require.Equal(t, 0, f.provider.LiveStreams())

			// A second teardown is harmless.
			f.orch.Teardown()
			require.Equal(t, 0, f.provider.LiveStreams())
		})
	}
}

func TestTeardownDiscardsInFlightScoring(t *testing.T) {
	f := newFixture(3)
	f.scorer.release = make(chan struct{})
	ctx := context.Background()

	_, err := f.orch.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, f.orch.StartListening(ctx))

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.FinishTurn(ctx)
		done <- err
	}()

	// Wait until scoring is in flight, then cancel the session under it.
	require.Eventually(t, func() bool {
		f.scorer.mu.Lock()
		defer f.scorer.mu.Unlock()
		return f.scorer.calls == 1
	}, time.Second, 5*time.Millisecond)

	f.orch.Teardown()
	close(f.scorer.release)

	require.ErrorIs(t, <-done, ErrSessionClosed)
	require.Empty(t, f.orch.FeedbackHistory())
	require.Equal(t, domain.StateComplete, f.orch.State())
	require.Equal(t, 0, f.provider.LiveStreams())
}

func TestRecognizerErrorFinishesTurnWithPartial(t *testing.T) {
	provider := media.NewFakeProvider()
	scorer := &fakeScorer{}
	rec := media.NewScriptedRecognizer()

	orch := NewOrchestrator(domain.Session{
		ID:           domain.SessionID("sess-1"),
		UserID:       domain.UserID("user-1"),
		MaxQuestions: 3,
	}, Deps{
		Questions:     &fakeQuestions{},
		Scorer:        scorer,
		Gate:          media.NewGate(provider, observability.Logger()),
		NewRecognizer: func() domain.Recognizer { return rec },
		Logger:        observability.Logger(),
	})

	ctx := context.Background()
	_, err := orch.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, orch.StartListening(ctx))

	rec.Emit("I was saying")
	require.Eventually(t, func() bool {
		return orch.LiveTranscript() == "I was saying"
	}, time.Second, 5*time.Millisecond)

	rec.EmitError(fmt.Errorf("recognition service unavailable"))

	// The turn finishes on its own with the partial transcript preserved.
	require.Eventually(t, func() bool {
		return orch.State() == domain.StateFeedback
	}, time.Second, 5*time.Millisecond)

	msgs := orch.Timeline()
	require.Equal(t, "I was saying", msgs[len(msgs)-1].Content)
	require.Len(t, orch.FeedbackHistory(), 1)
}

func TestElapsedClockStopsAtComplete(t *testing.T) {
	f := newFixture(1)
	ctx := context.Background()

	require.Equal(t, 0, f.orch.ElapsedSeconds())

	_, err := f.orch.Begin(ctx)
	require.NoError(t, err)

	f.clock.Advance(90 * time.Second)
	runTurn(t, f)
	_, err = f.orch.Continue(ctx)
	require.NoError(t, err)

	frozen := f.orch.ElapsedSeconds()
	require.Greater(t, frozen, 89)

	f.clock.Advance(time.Hour)
	require.Equal(t, frozen, f.orch.ElapsedSeconds())
}

func TestCameraToggle(t *testing.T) {
	f := newFixture(3)
	ctx := context.Background()

	require.Error(t, f.orch.SetCamera(ctx, false))

	_, err := f.orch.Begin(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, f.provider.LiveStreams())

	require.NoError(t, f.orch.SetCamera(ctx, false))
	require.Equal(t, 0, f.provider.LiveStreams())

	require.NoError(t, f.orch.SetCamera(ctx, true))
	require.Equal(t, 1, f.provider.LiveStreams())

	f.orch.Teardown()
	require.Equal(t, 0, f.provider.LiveStreams())
}

// stallingProvider parks camera opens until released, so a teardown can be
// interleaved mid-acquire.
type stallingProvider struct {
	*media.FakeProvider

	mu      sync.Mutex
	stall   bool
	entered chan struct{}
	release chan struct{}
}

func (p *stallingProvider) Open(ctx context.Context, kind domain.DeviceKind) (domain.StreamHandle, error) {
	p.mu.Lock()
	stall := p.stall && kind == domain.DeviceCamera
	p.mu.Unlock()
	if stall {
		p.entered <- struct{}{}
		<-p.release
	}
	return p.FakeProvider.Open(ctx, kind)
}

func TestTeardownDuringCameraReopenLeavesNothingOpen(t *testing.T) {
	provider := &stallingProvider{
		FakeProvider: media.NewFakeProvider(),
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}

	orch := NewOrchestrator(domain.Session{
		ID:           domain.SessionID("sess-1"),
		UserID:       domain.UserID("user-1"),
		MaxQuestions: 3,
	}, Deps{
		Questions: &fakeQuestions{},
		Scorer:    &fakeScorer{},
		Gate:      media.NewGate(provider, observability.Logger()),
		NewRecognizer: func() domain.Recognizer {
			return media.NewStaticRecognizer("answer")
		},
		Logger: observability.Logger(),
	})

	ctx := context.Background()
	_, err := orch.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, orch.SetCamera(ctx, false))

	provider.mu.Lock()
	provider.stall = true
	provider.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- orch.SetCamera(ctx, true) }()

	// The camera open is in flight; cancel the session under it.
	<-provider.entered
	orch.Teardown()
	close(provider.release)

	require.ErrorIs(t, <-done, ErrSessionClosed)
	require.Equal(t, domain.StateComplete, orch.State())
	require.Equal(t, 0, provider.LiveStreams())
}

func TestSnapshotIsACopy(t *testing.T) {
	f := newFixture(2)
	ctx := context.Background()

	_, err := f.orch.Begin(ctx)
	require.NoError(t, err)
	runTurn(t, f)

	snap := f.orch.Snapshot()
	require.Len(t, snap.Messages, 2)
	require.Len(t, snap.Feedback, 1)

	snap.Messages[0].Content = "tampered"
	snap.Feedback[0].ContentNote = "tampered"
	require.NotEqual(t, "tampered", f.orch.Timeline()[0].Content)
	require.NotEqual(t, "tampered", f.orch.FeedbackHistory()[0].ContentNote)
}
