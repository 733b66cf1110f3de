package interview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/intervu-api/internal/adapters/storage/memory"
	"github.com/PabloGalante/intervu-api/internal/domain"
	"github.com/PabloGalante/intervu-api/internal/media"
)

func newTestService(provider *media.FakeProvider) *Service {
	return NewService(ServiceConfig{
		Questions: &fakeQuestions{},
		Scorer:    &fakeScorer{},
		Devices:   provider,
		NewRecognizer: func() domain.Recognizer {
			return media.NewStaticRecognizer("I shipped the billing rewrite.")
		},
		SessionStore:  memory.NewSessionStore(),
		MessageStore:  memory.NewMessageStore(),
		FeedbackStore: memory.NewFeedbackStore(),
		MaxQuestions:  2,
	})
}

func TestServiceCreateSessionPersistsWelcome(t *testing.T) {
	svc := newTestService(media.NewFakeProvider())
	ctx := context.Background()

	out, err := svc.CreateSession(ctx, CreateSessionInput{
		UserID:     domain.UserID("user-1"),
		ResumeText: "Five years of Go.",
	})
	require.NoError(t, err)
	require.Equal(t, domain.LevelMid, out.Session.ExperienceLevel)
	require.Equal(t, domain.RoleAssistant, out.Welcome.Role)
	require.Contains(t, out.Welcome.Content, "AI interviewer")

	view, err := svc.GetSession(ctx, out.Session.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StateIntro, view.State)
	require.Len(t, view.Messages, 1)
}

func TestServiceFullInterviewMirrorsStores(t *testing.T) {
	provider := media.NewFakeProvider()
	svc := newTestService(provider)
	ctx := context.Background()

	created, err := svc.CreateSession(ctx, CreateSessionInput{UserID: domain.UserID("user-1")})
	require.NoError(t, err)
	id := created.Session.ID

	_, err = svc.Begin(ctx, BeginInput{SessionID: id})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, svc.StartListening(ctx, ListenInput{SessionID: id}))
		ans, err := svc.Answer(ctx, AnswerInput{SessionID: id})
		require.NoError(t, err)
		require.Equal(t, "I shipped the billing rewrite.", ans.UserMessage.Content)

		cont, err := svc.Continue(ctx, ContinueInput{SessionID: id})
		require.NoError(t, err)
		require.Equal(t, i == 1, cont.Done)
	}

	view, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.StateComplete, view.State)
	require.Equal(t, 2, view.QuestionsDone)
	// welcome + 2 questions + 2 answers
	require.Len(t, view.Messages, 5)
	require.Equal(t, 0, provider.LiveStreams())

	snap, err := svc.Snapshot(ctx, id)
	require.NoError(t, err)
	require.Len(t, snap.Feedback, 2)

	// The stores saw every message and feedback as they happened.
	svc.Teardown(ctx, id)
	stored, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 5)
	require.Len(t, stored.Feedback, 2)
}

func TestServiceUnknownSession(t *testing.T) {
	svc := newTestService(media.NewFakeProvider())
	ctx := context.Background()

	_, err := svc.Begin(ctx, BeginInput{SessionID: domain.SessionID("missing")})
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	// Teardown of an unknown session is a no-op.
	svc.Teardown(ctx, domain.SessionID("missing"))
}
