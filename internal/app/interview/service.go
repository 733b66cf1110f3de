package interview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/intervu-api/internal/domain"
	"github.com/PabloGalante/intervu-api/internal/media"
	"github.com/PabloGalante/intervu-api/internal/observability"
)

const welcomeText = "Hello! I'm your AI interviewer today. I've reviewed your resume and I'm ready to ask you some questions about your experience and skills. When you're ready to begin, click the 'Start Interview' button."

// Service runs interview sessions. Each live session gets its own
// Orchestrator and media gate; timeline and feedback are mirrored into the
// stores as they happen so the admin listing and the report survive a
// process view of the session.
type Service struct {
	questions     domain.QuestionSource
	scorer        domain.ResponseScorer
	devices       domain.DeviceProvider
	newRecognizer func() domain.Recognizer
	sessionStore  domain.SessionStore
	messageStore  domain.MessageStore
	feedbackStore domain.FeedbackStore
	maxQuestions  int
	now           func() time.Time

	mu   sync.Mutex
	live map[domain.SessionID]*Orchestrator
}

type ServiceConfig struct {
	Questions     domain.QuestionSource
	Scorer        domain.ResponseScorer
	Devices       domain.DeviceProvider
	NewRecognizer func() domain.Recognizer
	SessionStore  domain.SessionStore
	MessageStore  domain.MessageStore
	FeedbackStore domain.FeedbackStore
	MaxQuestions  int
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = 5
	}
	return &Service{
		questions:     cfg.Questions,
		scorer:        cfg.Scorer,
		devices:       cfg.Devices,
		newRecognizer: cfg.NewRecognizer,
		sessionStore:  cfg.SessionStore,
		messageStore:  cfg.MessageStore,
		feedbackStore: cfg.FeedbackStore,
		maxQuestions:  cfg.MaxQuestions,
		now:           time.Now,
	}
}

type CreateSessionInput struct {
	UserID          domain.UserID
	ResumeText      string
	ExperienceLevel domain.ExperienceLevel
}

type CreateSessionOutput struct {
	Session *domain.Session
	Welcome *domain.Message
}

func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (*CreateSessionOutput, error) {
	now := s.now()

	log := observability.LoggerFromContext(ctx).With(
		"user_id", in.UserID,
		"experience_level", in.ExperienceLevel,
	)
	log.Info("creating interview session")

	level := in.ExperienceLevel
	if level == "" {
		level = domain.LevelMid
	}

	session := &domain.Session{
		ID:              domain.SessionID(uuid.New().String()),
		UserID:          in.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
		ResumeText:      in.ResumeText,
		ExperienceLevel: level,
		MaxQuestions:    s.maxQuestions,
	}

	if err := s.sessionStore.CreateSession(session); err != nil {
		log.Error("failed to create session", "error", err)
		return nil, err
	}

	orch := NewOrchestrator(*session, Deps{
		Questions:     s.questions,
		Scorer:        s.scorer,
		Gate:          media.NewGate(s.devices, observability.Logger()),
		NewRecognizer: s.newRecognizer,
		Logger:        observability.Logger(),
		Now:           s.now,
	})

	welcome := orch.AppendWelcome(welcomeText)
	if err := s.messageStore.AppendMessage(&welcome); err != nil {
		log.Error("failed to append welcome message", "error", err)
		return nil, err
	}

	s.mu.Lock()
	if s.live == nil {
		s.live = make(map[domain.SessionID]*Orchestrator)
	}
	s.live[session.ID] = orch
	s.mu.Unlock()

	log.Info("session created", "session_id", session.ID)

	return &CreateSessionOutput{Session: session, Welcome: &welcome}, nil
}

type BeginInput struct {
	SessionID domain.SessionID
}

type BeginOutput struct {
	Question domain.Question
	Message  *domain.Message
}

func (s *Service) Begin(ctx context.Context, in BeginInput) (*BeginOutput, error) {
	orch, err := s.orchestrator(in.SessionID)
	if err != nil {
		return nil, err
	}

	res, err := orch.Begin(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.messageStore.AppendMessage(&res.Message); err != nil {
		s.log(ctx, in.SessionID).Error("failed to persist question", "error", err)
	}
	s.touch(ctx, in.SessionID)

	return &BeginOutput{Question: res.Question, Message: &res.Message}, nil
}

type ListenInput struct {
	SessionID domain.SessionID
}

func (s *Service) StartListening(ctx context.Context, in ListenInput) error {
	orch, err := s.orchestrator(in.SessionID)
	if err != nil {
		return err
	}
	return orch.StartListening(ctx)
}

type AnswerInput struct {
	SessionID domain.SessionID
}

type AnswerOutput struct {
	UserMessage *domain.Message
	Feedback    *domain.Feedback
}

// Answer finishes the current turn: capture is stopped, the answer goes on
// the timeline and the scored feedback comes back with it.
func (s *Service) Answer(ctx context.Context, in AnswerInput) (*AnswerOutput, error) {
	orch, err := s.orchestrator(in.SessionID)
	if err != nil {
		return nil, err
	}

	res, err := orch.FinishTurn(ctx)
	if err != nil {
		return nil, err
	}

	log := s.log(ctx, in.SessionID)
	if err := s.messageStore.AppendMessage(&res.UserMessage); err != nil {
		log.Error("failed to persist answer", "error", err)
	}
	if err := s.feedbackStore.AppendFeedback(&res.Feedback); err != nil {
		log.Error("failed to persist feedback", "error", err)
	}
	s.touch(ctx, in.SessionID)

	return &AnswerOutput{UserMessage: &res.UserMessage, Feedback: &res.Feedback}, nil
}

type ContinueInput struct {
	SessionID domain.SessionID
}

type ContinueOutput struct {
	Done     bool
	Question domain.Question
	Message  *domain.Message
}

func (s *Service) Continue(ctx context.Context, in ContinueInput) (*ContinueOutput, error) {
	orch, err := s.orchestrator(in.SessionID)
	if err != nil {
		return nil, err
	}

	res, err := orch.Continue(ctx)
	if err != nil {
		return nil, err
	}
	s.touch(ctx, in.SessionID)

	if res.Done {
		return &ContinueOutput{Done: true}, nil
	}

	if err := s.messageStore.AppendMessage(&res.Message); err != nil {
		s.log(ctx, in.SessionID).Error("failed to persist question", "error", err)
	}
	return &ContinueOutput{Question: res.Question, Message: &res.Message}, nil
}

type CameraInput struct {
	SessionID domain.SessionID
	Enabled   bool
}

func (s *Service) SetCamera(ctx context.Context, in CameraInput) error {
	orch, err := s.orchestrator(in.SessionID)
	if err != nil {
		return err
	}
	return orch.SetCamera(ctx, in.Enabled)
}

// Teardown cancels a session and frees its devices. Idempotent: unknown or
// already-complete sessions are a no-op.
func (s *Service) Teardown(ctx context.Context, sessionID domain.SessionID) {
	s.mu.Lock()
	orch := s.live[sessionID]
	delete(s.live, sessionID)
	s.mu.Unlock()

	if orch == nil {
		return
	}
	orch.Teardown()
	s.touch(ctx, sessionID)
}

type SessionView struct {
	Session       *domain.Session
	State         domain.SessionState
	Question      *domain.Question
	Messages      []domain.Message
	Feedback      []domain.Feedback
	ElapsedSec    int
	MicStatus     domain.PermissionStatus
	CameraStatus  domain.PermissionStatus
	QuestionsDone int
}

// GetSession returns the live view of a session. For sessions no longer in
// memory, the persisted timeline is returned instead.
func (s *Service) GetSession(ctx context.Context, sessionID domain.SessionID) (*SessionView, error) {
	s.mu.Lock()
	orch := s.live[sessionID]
	s.mu.Unlock()

	if orch != nil {
		session := orch.Session()
		view := &SessionView{
			Session:      &session,
			State:        orch.State(),
			Messages:     orch.Timeline(),
			Feedback:     orch.FeedbackHistory(),
			ElapsedSec:   orch.ElapsedSeconds(),
			MicStatus:    orch.MicPermission(),
			CameraStatus: orch.CameraPermission(),
		}
		if q, ok := orch.CurrentQuestion(); ok {
			view.Question = &q
		}
		view.QuestionsDone = len(view.Feedback)
		return view, nil
	}

	session, err := s.sessionStore.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messageStore.GetMessagesBySession(sessionID, 0)
	if err != nil {
		return nil, err
	}
	fbs, err := s.feedbackStore.GetFeedbackBySession(sessionID, 0)
	if err != nil {
		return nil, err
	}

	view := &SessionView{
		Session:      session,
		State:        domain.StateComplete,
		MicStatus:    domain.PermissionUnknown,
		CameraStatus: domain.PermissionUnknown,
	}
	for _, m := range msgs {
		view.Messages = append(view.Messages, *m)
	}
	for _, f := range fbs {
		view.Feedback = append(view.Feedback, *f)
	}
	view.QuestionsDone = len(view.Feedback)
	return view, nil
}

// Snapshot exports a live session for report generation.
func (s *Service) Snapshot(ctx context.Context, sessionID domain.SessionID) (*domain.SessionSnapshot, error) {
	s.mu.Lock()
	orch := s.live[sessionID]
	s.mu.Unlock()

	if orch == nil {
		return nil, domain.ErrSessionNotFound
	}
	snap := orch.Snapshot()
	return &snap, nil
}

// ListSessions returns recent sessions for the admin view, newest first.
func (s *Service) ListSessions(ctx context.Context, limit int) ([]*domain.Session, error) {
	return s.sessionStore.ListSessions(limit)
}

func (s *Service) orchestrator(sessionID domain.SessionID) (*Orchestrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orch := s.live[sessionID]
	if orch == nil {
		return nil, domain.ErrSessionNotFound
	}
	return orch, nil
}

func (s *Service) touch(ctx context.Context, sessionID domain.SessionID) {
	session, err := s.sessionStore.GetSession(sessionID)
	if err != nil {
		return
	}
	session.UpdatedAt = s.now()
	if err := s.sessionStore.UpdateSession(session); err != nil {
		s.log(ctx, sessionID).Error("failed to update session", "error", err)
	}
}

func (s *Service) log(ctx context.Context, sessionID domain.SessionID) *slog.Logger {
	return observability.LoggerFromContext(ctx).With("session_id", sessionID)
}
