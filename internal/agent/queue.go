package agent

import (
	"context"
	"sync"

	"github.com/Varamadon/auto-refactor/internal/history"
)

// CorrelationContext ties a brain reply to its session and, when a file is in
// flight, to the fingerprint of that file's content.
type CorrelationContext struct {
	SessionID   string
	Fingerprint string
}

// PendingReply is a brain reply waiting for dispatch.
type PendingReply struct {
	Message history.Message
	Context CorrelationContext
}

// ReplyQueue is an unbounded FIFO of pending replies shared by all sessions.
// Enqueue never blocks; Dequeue waits until an item is available.
type ReplyQueue struct {
	mu    sync.Mutex
	items []PendingReply
	ready chan struct{}
}

func NewReplyQueue() *ReplyQueue {
	return &ReplyQueue{ready: make(chan struct{}, 1)}
}

func (q *ReplyQueue) Enqueue(r PendingReply) {
	q.mu.Lock()
	q.items = append(q.items, r)
	q.mu.Unlock()
	q.signal()
}

// Dequeue removes the head of the queue, blocking while it is empty. It
// returns ctx.Err() if ctx is done first.
func (q *ReplyQueue) Dequeue(ctx context.Context) (PendingReply, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			r := q.items[0]
			q.items[0] = PendingReply{}
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return r, nil
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			return PendingReply{}, ctx.Err()
		}
	}
}

func (q *ReplyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *ReplyQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
