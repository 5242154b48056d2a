package history

import "sync"

// MemoryLog keeps conversations in a map. It is not persistent.
type MemoryLog struct {
	mu       sync.RWMutex
	messages map[string][]Message
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		messages: make(map[string][]Message),
	}
}

func (l *MemoryLog) Append(sessionID string, msg Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages[sessionID] = append(l.messages[sessionID], msg)
	return nil
}

// Read returns a copy, so callers never observe later appends.
func (l *MemoryLog) Read(sessionID string) ([]Message, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	msgs := l.messages[sessionID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (l *MemoryLog) Delete(sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.messages, sessionID)
	return nil
}
