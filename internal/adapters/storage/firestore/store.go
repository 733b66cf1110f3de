package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/intervu-api/internal/domain"
)

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store.
// Uses the project passed (INTERVU_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *Store) sessionDoc(id domain.SessionID) *firestore.DocumentRef {
	return s.sessionsCol().Doc(string(id))
}

func (s *Store) messagesCol(sessionID domain.SessionID) *firestore.CollectionRef {
	return s.sessionDoc(sessionID).Collection("messages")
}

func (s *Store) messageDoc(sessionID domain.SessionID, msgID domain.MessageID) *firestore.DocumentRef {
	return s.messagesCol(sessionID).Doc(string(msgID))
}

func (s *Store) feedbackCol(sessionID domain.SessionID) *firestore.CollectionRef {
	return s.sessionDoc(sessionID).Collection("feedback")
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type sessionDoc struct {
	UserID          string    `firestore:"user_id"`
	ResumeText      string    `firestore:"resume_text"`
	ExperienceLevel string    `firestore:"experience_level"`
	MaxQuestions    int       `firestore:"max_questions"`
	CreatedAt       time.Time `firestore:"created_at"`
	UpdatedAt       time.Time `firestore:"updated_at"`
}

type messageDoc struct {
	SessionID string    `firestore:"session_id"`
	Role      string    `firestore:"role"`
	Content   string    `firestore:"content"`
	CreatedAt time.Time `firestore:"created_at"`
	AudioRef  string    `firestore:"audio_ref"`
}

type feedbackDoc struct {
	SessionID   string    `firestore:"session_id"`
	MessageID   string    `firestore:"message_id"`
	ContentNote string    `firestore:"content_note"`
	ToneNote    string    `firestore:"tone_note"`
	ClarityNote string    `firestore:"clarity_note"`
	Sentiment   string    `firestore:"sentiment"`
	Engagement  int       `firestore:"engagement"`
	Confidence  int       `firestore:"confidence"`
	Keywords    []string  `firestore:"keywords"`
	CreatedAt   time.Time `firestore:"created_at"`
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateSession(session *domain.Session) error {
	ctx := context.Background()

	doc := sessionDoc{
		UserID:          string(session.UserID),
		ResumeText:      session.ResumeText,
		ExperienceLevel: string(session.ExperienceLevel),
		MaxQuestions:    session.MaxQuestions,
		CreatedAt:       session.CreatedAt,
		UpdatedAt:       session.UpdatedAt,
	}

	_, err := s.sessionDoc(session.ID).Create(ctx, doc)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return domain.ErrSessionExists
		}
		return fmt.Errorf("firestore CreateSession: %w", err)
	}
	return nil
}

func (s *Store) UpdateSession(session *domain.Session) error {
	ctx := context.Background()

	doc := map[string]interface{}{
		"user_id":          string(session.UserID),
		"resume_text":      session.ResumeText,
		"experience_level": string(session.ExperienceLevel),
		"max_questions":    session.MaxQuestions,
		"created_at":       session.CreatedAt,
		"updated_at":       session.UpdatedAt,
	}

	_, err := s.sessionDoc(session.ID).Set(ctx, doc, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("firestore UpdateSession: %w", err)
	}
	return nil
}

func (s *Store) GetSession(id domain.SessionID) (*domain.Session, error) {
	ctx := context.Background()

	snap, err := s.sessionDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("firestore GetSession: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetSession decode: %w", err)
	}

	return toSession(id, doc), nil
}

func (s *Store) ListSessionsByUser(userID domain.UserID, limit int) ([]*domain.Session, error) {
	q := s.sessionsCol().Where("user_id", "==", string(userID)).OrderBy("created_at", firestore.Desc)
	return s.listSessions(q, limit)
}

func (s *Store) ListSessions(limit int) ([]*domain.Session, error) {
	q := s.sessionsCol().OrderBy("created_at", firestore.Desc)
	return s.listSessions(q, limit)
}

func (s *Store) listSessions(q firestore.Query, limit int) ([]*domain.Session, error) {
	ctx := context.Background()

	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Session
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore listSessions: %w", err)
		}

		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode sessionDoc: %w", err)
		}

		out = append(out, toSession(domain.SessionID(snap.Ref.ID), doc))
	}
	return out, nil
}

func toSession(id domain.SessionID, doc sessionDoc) *domain.Session {
	return &domain.Session{
		ID:              id,
		UserID:          domain.UserID(doc.UserID),
		ResumeText:      doc.ResumeText,
		ExperienceLevel: domain.ExperienceLevel(doc.ExperienceLevel),
		MaxQuestions:    doc.MaxQuestions,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendMessage(msg *domain.Message) error {
	ctx := context.Background()

	doc := messageDoc{
		SessionID: string(msg.SessionID),
		Role:      string(msg.Role),
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
		AudioRef:  msg.AudioRef,
	}

	_, err := s.messageDoc(msg.SessionID, msg.ID).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore AppendMessage: %w", err)
	}
	return nil
}

func (s *Store) GetMessagesBySession(sessionID domain.SessionID, limit int) ([]*domain.Message, error) {
	ctx := context.Background()

	q := s.messagesCol(sessionID).OrderBy("created_at", firestore.Asc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Message
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore GetMessagesBySession: %w", err)
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}

		out = append(out, &domain.Message{
			ID:        domain.MessageID(snap.Ref.ID),
			SessionID: sessionID,
			Role:      domain.Role(doc.Role),
			Content:   doc.Content,
			CreatedAt: doc.CreatedAt,
			AudioRef:  doc.AudioRef,
		})
	}
	return out, nil
}

// ─────────────────────────────────────────
// FeedbackStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendFeedback(fb *domain.Feedback) error {
	ctx := context.Background()

	doc := feedbackDoc{
		SessionID:   string(fb.SessionID),
		MessageID:   string(fb.MessageID),
		ContentNote: fb.ContentNote,
		ToneNote:    fb.ToneNote,
		ClarityNote: fb.ClarityNote,
		Sentiment:   string(fb.Sentiment),
		Engagement:  fb.Engagement,
		Confidence:  fb.Confidence,
		Keywords:    fb.Keywords,
		CreatedAt:   fb.CreatedAt,
	}

	_, err := s.feedbackCol(fb.SessionID).Doc(string(fb.ID)).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore AppendFeedback: %w", err)
	}
	return nil
}

func (s *Store) GetFeedbackBySession(sessionID domain.SessionID, limit int) ([]*domain.Feedback, error) {
	ctx := context.Background()

	q := s.feedbackCol(sessionID).OrderBy("created_at", firestore.Asc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Feedback
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore GetFeedbackBySession: %w", err)
		}

		var doc feedbackDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode feedbackDoc: %w", err)
		}

		out = append(out, &domain.Feedback{
			ID:          domain.FeedbackID(snap.Ref.ID),
			SessionID:   sessionID,
			MessageID:   domain.MessageID(doc.MessageID),
			ContentNote: doc.ContentNote,
			ToneNote:    doc.ToneNote,
			ClarityNote: doc.ClarityNote,
			Sentiment:   domain.Sentiment(doc.Sentiment),
			Engagement:  doc.Engagement,
			Confidence:  doc.Confidence,
			Keywords:    doc.Keywords,
			CreatedAt:   doc.CreatedAt,
		})
	}
	return out, nil
}
