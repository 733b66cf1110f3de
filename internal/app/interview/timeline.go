package interview

import (
	"sync"

	"github.com/PabloGalante/intervu-api/internal/domain"
)

// Timeline is the append-only, ordered message log for one session. Insertion
// order is transcript order. Entries are stored by value and handed out as
// copies, so nothing can mutate a message after it is appended.
type Timeline struct {
	mu   sync.RWMutex
	msgs []domain.Message
}

func NewTimeline() *Timeline {
	return &Timeline{}
}

// Append adds one message to the end of the log.
func (t *Timeline) Append(msg domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, msg)
}

// All returns the messages in append order as a copy.
func (t *Timeline) All() []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len reports how many messages have been appended.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.msgs)
}
