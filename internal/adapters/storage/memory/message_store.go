package memory

import (
	"sync"

	"github.com/PabloGalante/intervu-api/internal/domain"
)

// MessageStore keeps per-session message logs in memory. Messages are kept
// in append order, which is the timeline order the interview service writes
// them in. Entries are stored and handed out as copies: timeline messages
// are immutable once appended, and no caller can reach the stored ones.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[domain.SessionID][]domain.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[domain.SessionID][]domain.Message),
	}
}

func (s *MessageStore) AppendMessage(msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], *msg)
	return nil
}

// GetMessagesBySession returns the session's messages in append order.
// A positive limit keeps only the most recent entries.
func (s *MessageStore) GetMessagesBySession(sessionID domain.SessionID, limit int) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	out := make([]*domain.Message, 0, len(msgs))
	for _, m := range msgs {
		msg := m
		out = append(out, &msg)
	}
	return out, nil
}
