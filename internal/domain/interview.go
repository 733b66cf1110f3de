package domain

// Message is one entry in a session timeline (assistant question or user answer).
// Messages are immutable once appended; corrections are new messages.
type Message struct {
	ID        MessageID
	SessionID SessionID
	Role      Role
	Content   string
	CreatedAt Timestamp

	// AudioRef points at the recorded audio for a user answer, when one exists.
	AudioRef string
}

// Question is one interview question produced by a QuestionSource.
type Question struct {
	Text             string
	FollowUpPossible bool
}

// Turn is one completed question/answer pair, used as question-source context.
type Turn struct {
	Question string
	Answer   string
}

// Feedback is the structured analysis of one user answer.
// Engagement and Confidence are always within [0,100] and Sentiment is always
// one of the three enumerated values; scorers coerce anything else.
type Feedback struct {
	ID        FeedbackID
	SessionID SessionID

	// MessageID is the user answer this feedback analyzes.
	MessageID MessageID

	ContentNote string
	ToneNote    string
	ClarityNote string
	Sentiment   Sentiment
	Engagement  int
	Confidence  int
	Keywords    []string

	CreatedAt Timestamp
}

// Session is one interview run for a user.
type Session struct {
	ID        SessionID
	UserID    UserID
	CreatedAt Timestamp
	UpdatedAt Timestamp

	// ResumeText and ExperienceLevel are threaded into every question and
	// scoring request as candidate context.
	ResumeText      string
	ExperienceLevel ExperienceLevel

	// MaxQuestions bounds the number of question/answer turns.
	MaxQuestions int
}

// AudioClip is one finalized per-turn recording attached to a snapshot.
type AudioClip struct {
	MessageID MessageID
	MIMEType  string
	Data      []byte
}

// SessionSnapshot is the exported view of a finished or in-progress session,
// consumed by report generation. It is a copy; mutating it does not affect
// the live session.
type SessionSnapshot struct {
	Session    Session
	State      SessionState
	Messages   []Message
	Feedback   []Feedback
	Audio      []AudioClip
	ElapsedSec int
	ExportedAt Timestamp
}
