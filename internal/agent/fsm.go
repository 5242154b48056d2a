package agent

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"

	"github.com/Varamadon/auto-refactor/internal/logger"
)

// SessionState is the lifecycle state of a refactoring session.
type SessionState string

var (
	StateStarted       SessionState = "Started"       // system message stored, first brain call issued
	StateAwaitingReply SessionState = "AwaitingReply" // one reply queued for dispatch
	StateDispatching   SessionState = "Dispatching"
	StateFinished      SessionState = "Finished" // terminal
)

// Trigger moves a session between states.
type Trigger string

var (
	TriggerReplyQueued   Trigger = "ReplyQueued"
	TriggerReplyDequeued Trigger = "ReplyDequeued"
	TriggerFinish        Trigger = "Finish"
)

// session tracks one running refactoring session.
type session struct {
	id    string
	runID string
	log   *slog.Logger
	fsm   *stateless.StateMachine
}

func newSession(id string) *session {
	runID := uuid.NewString()
	s := &session{
		id:    id,
		runID: runID,
		log:   logger.ForSession(id, runID),
		fsm:   stateless.NewStateMachine(StateStarted),
	}

	s.fsm.Configure(StateStarted).
		Permit(TriggerReplyQueued, StateAwaitingReply).
		Permit(TriggerFinish, StateFinished)

	s.fsm.Configure(StateAwaitingReply).
		Permit(TriggerReplyDequeued, StateDispatching).
		Permit(TriggerFinish, StateFinished)

	// A dispatched reply either queues the next brain reply or ends the session.
	s.fsm.Configure(StateDispatching).
		Permit(TriggerReplyQueued, StateAwaitingReply).
		Permit(TriggerFinish, StateFinished)

	s.fsm.Configure(StateFinished).
		Ignore(TriggerFinish)

	s.fsm.OnTransitioned(func(_ context.Context, t stateless.Transition) {
		s.log.Debug("session transition", "from", t.Source, "to", t.Destination, "trigger", t.Trigger)
	})

	return s
}

func (s *session) fire(ctx context.Context, t Trigger) error {
	return s.fsm.FireCtx(ctx, t)
}

func (s *session) state() SessionState {
	return s.fsm.MustState().(SessionState)
}
