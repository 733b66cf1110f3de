package domain

import "context"

// QuestionRequest carries the context a QuestionSource needs for the next question.
type QuestionRequest struct {
	History         []Turn
	ResumeText      string
	ExperienceLevel ExperienceLevel
}

// QuestionSource produces the next interview question. Implementations never
// fail a turn: with empty history they return a fixed opening question without
// any remote call, and on remote or format problems they return a generic
// fallback question.
type QuestionSource interface {
	Next(ctx context.Context, req QuestionRequest) Question
}

// ScoreRequest carries one answered question for analysis.
type ScoreRequest struct {
	Question   string
	Answer     string
	ResumeText string
}

// ResponseScorer analyzes one answer. Implementations never fail a turn: on
// any remote or format problem they return neutral fallback feedback.
type ResponseScorer interface {
	Score(ctx context.Context, req ScoreRequest) Feedback
}

// SessionStore defines session persistence.
type SessionStore interface {
	CreateSession(session *Session) error
	UpdateSession(session *Session) error
	GetSession(id SessionID) (*Session, error)
	ListSessionsByUser(userID UserID, limit int) ([]*Session, error)
	ListSessions(limit int) ([]*Session, error)
}

// MessageStore defines timeline persistence.
type MessageStore interface {
	AppendMessage(msg *Message) error
	GetMessagesBySession(sessionID SessionID, limit int) ([]*Message, error)
}

// FeedbackStore defines per-turn feedback persistence.
type FeedbackStore interface {
	AppendFeedback(fb *Feedback) error
	GetFeedbackBySession(sessionID SessionID, limit int) ([]*Feedback, error)
}

// StreamHandle is one open device stream. A microphone handle delivers raw
// audio chunks on Chunks; a camera handle delivers nothing here, it only
// holds the device. Close releases the device and closes the chunk channel.
type StreamHandle interface {
	Kind() DeviceKind
	Chunks() <-chan []byte
	Close() error
}

// DeviceProvider opens device streams. Open errors wrap the deny-classified
// sentinels in the media package so the gate can map them to a DenyReason.
type DeviceProvider interface {
	Open(ctx context.Context, kind DeviceKind) (StreamHandle, error)
}

// RecognizerUpdate is one incremental speech-to-text result. Transcript
// replaces the whole live transcript, it is not a diff. A non-nil Err means
// the recognizer failed mid-capture and will emit nothing further.
type RecognizerUpdate struct {
	Transcript string
	Err        error
}

// Recognizer turns an audio chunk stream into a transcript.
// Start returns the update channel; Feed pushes raw audio; Stop halts the
// recognizer and returns the final transcript (possibly empty).
type Recognizer interface {
	Start(ctx context.Context) (<-chan RecognizerUpdate, error)
	Feed(chunk []byte)
	Stop(ctx context.Context) (string, error)
}
