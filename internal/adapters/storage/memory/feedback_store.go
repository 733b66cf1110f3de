package memory

import (
	"sync"

	"github.com/PabloGalante/intervu-api/internal/domain"
)

type FeedbackStore struct {
	mu       sync.RWMutex
	feedback map[domain.SessionID][]*domain.Feedback
}

func NewFeedbackStore() *FeedbackStore {
	return &FeedbackStore{
		feedback: make(map[domain.SessionID][]*domain.Feedback),
	}
}

func (s *FeedbackStore) AppendFeedback(fb *domain.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.feedback[fb.SessionID] = append(s.feedback[fb.SessionID], fb)
	return nil
}

func (s *FeedbackStore) GetFeedbackBySession(sessionID domain.SessionID, limit int) ([]*domain.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fbs := s.feedback[sessionID]
	if limit > 0 && len(fbs) > limit {
		return fbs[len(fbs)-limit:], nil
	}
	return fbs, nil
}
