package conversation

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cosmocart/cosmocart/pkg/models"
)

// Transcript is the append-only message log for one chat session. Messages
// are never mutated or removed once appended; the UI renders from snapshots.
type Transcript struct {
	mu       sync.RWMutex
	messages []models.Message
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a message and returns its assigned id.
func (t *Transcript) Append(sender models.Sender, content string, msgType models.MessageType, data interface{}) string {
	id := uuid.NewString()
	t.mu.Lock()
	t.messages = append(t.messages, models.Message{
		ID:      id,
		Sender:  sender,
		Content: content,
		Type:    msgType,
		Data:    data,
	})
	t.mu.Unlock()
	return id
}

// Messages returns a snapshot of the transcript in append order.
func (t *Transcript) Messages() []models.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len reports the number of appended messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns the most recent message, or false when the transcript is empty.
func (t *Transcript) Last() (models.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return models.Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}
