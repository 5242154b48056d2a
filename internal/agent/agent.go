// Package agent orchestrates refactoring sessions: it feeds the conversation
// log to the brain, queues every brain reply and dispatches replies one at a
// time against the remote tool.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Varamadon/auto-refactor/internal/brain"
	"github.com/Varamadon/auto-refactor/internal/history"
	"github.com/Varamadon/auto-refactor/internal/logger"
	"github.com/Varamadon/auto-refactor/pkg/plan"
)

var (
	// ErrNoFileInFlight is returned when the brain sends a plan while no file
	// has been handed to it.
	ErrNoFileInFlight = errors.New("action plan received with no file in flight")
	ErrSessionActive  = errors.New("session already active")
	ErrUnknownSession = errors.New("unknown session")
	ErrStopped        = errors.New("orchestrator stopped")
	ErrRunning        = errors.New("dispatch loop already running")
)

// Executor performs session commands against the remote tool that owns the
// repository.
type Executor interface {
	// FetchNextFile returns the next file's text, or "" when none is left.
	FetchNextFile(ctx context.Context, sessionID string) (string, error)
	ApplyActionPlan(ctx context.Context, sessionID string, p plan.ActionPlan) error
	Finish(ctx context.Context, sessionID string) error
}

// Orchestrator drives refactoring sessions. Replies of all sessions go
// through one queue and are dispatched strictly one at a time, in order.
type Orchestrator struct {
	brain       brain.Brain
	executor    Executor
	log         history.Log
	queue       *ReplyQueue
	fingerprint func(string) string

	mu       sync.Mutex
	sessions map[string]*session
	stopped  bool
	running  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Orchestrator)

// WithFingerprint replaces the file fingerprint function.
func WithFingerprint(fn func(string) string) Option {
	return func(o *Orchestrator) { o.fingerprint = fn }
}

func New(b brain.Brain, executor Executor, log history.Log, queue *ReplyQueue, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		brain:       b,
		executor:    executor,
		log:         log,
		queue:       queue,
		fingerprint: plan.Fingerprint,
		sessions:    make(map[string]*session),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run consumes the reply queue until ctx is done or Stop is called. Only
// one Run may be active at a time.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	switch {
	case o.stopped:
		o.mu.Unlock()
		return ErrStopped
	case o.running:
		o.mu.Unlock()
		return ErrRunning
	}
	o.running = true
	o.wg.Add(1)
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
		o.wg.Done()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(o.ctx, cancel)
	defer stop()

	logger.L.Info("dispatch loop started")
	for {
		reply, err := o.queue.Dequeue(ctx)
		if err != nil {
			logger.L.Info("dispatch loop stopped")
			return nil
		}
		o.dispatch(ctx, reply)
	}
}

// Start opens a session and asks the brain for its first reply. The brain
// call runs in the background; Start returns immediately.
func (o *Orchestrator) Start(sessionID string) error {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return ErrStopped
	}
	if _, ok := o.sessions[sessionID]; ok {
		o.mu.Unlock()
		return fmt.Errorf("start %s: %w", sessionID, ErrSessionActive)
	}
	s := newSession(sessionID)
	o.sessions[sessionID] = s
	o.wg.Add(1)
	o.mu.Unlock()

	s.log.Info("session started")
	go func() {
		defer o.wg.Done()
		if err := o.start(o.ctx, s); err != nil {
			s.log.Error("session start failed", "error", err)
			o.finish(o.ctx, s)
		}
	}()
	return nil
}

// Stop cancels the dispatch loop and in-flight session starts and waits for
// them to return. Queued replies are left undispatched.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
}

// State reports the lifecycle state of an active session.
func (o *Orchestrator) State(sessionID string) (SessionState, error) {
	s := o.session(sessionID)
	if s == nil {
		return "", fmt.Errorf("state %s: %w", sessionID, ErrUnknownSession)
	}
	return s.state(), nil
}

func (o *Orchestrator) session(id string) *session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessions[id]
}

// start resets whatever history a previous run left for the id, so the log
// always begins with the system message.
func (o *Orchestrator) start(ctx context.Context, s *session) error {
	if err := o.log.Delete(s.id); err != nil {
		return fmt.Errorf("reset history: %w", err)
	}
	if err := o.log.Append(s.id, o.brain.SystemStartMessage()); err != nil {
		return fmt.Errorf("append system message: %w", err)
	}
	return o.callBrain(ctx, s, "")
}

// callBrain asks the brain for the next reply of s and queues it with the
// given fingerprint as correlation.
func (o *Orchestrator) callBrain(ctx context.Context, s *session, fingerprint string) error {
	msgs, err := o.log.Read(s.id)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	answer := o.brain.NextAnswer(ctx, msgs)
	if err := o.log.Append(s.id, answer); err != nil {
		return fmt.Errorf("append answer: %w", err)
	}
	if err := s.fire(ctx, TriggerReplyQueued); err != nil {
		return err
	}
	o.queue.Enqueue(PendingReply{
		Message: answer,
		Context: CorrelationContext{SessionID: s.id, Fingerprint: fingerprint},
	})
	return nil
}

// dispatch handles one reply. Any fault ends the session so the loop can
// move on.
func (o *Orchestrator) dispatch(ctx context.Context, reply PendingReply) {
	s := o.session(reply.Context.SessionID)
	if s == nil {
		logger.L.Warn("dropping reply for unknown session", "session_id", reply.Context.SessionID)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("dispatch panicked, finishing session", "panic", r)
			o.finish(ctx, s)
		}
	}()

	if err := o.handle(ctx, s, reply); err != nil {
		s.log.Error("dispatch failed, finishing session", "error", err)
		o.finish(ctx, s)
	}
}

func (o *Orchestrator) handle(ctx context.Context, s *session, reply PendingReply) error {
	if err := s.fire(ctx, TriggerReplyDequeued); err != nil {
		return err
	}

	switch reply.Message.Content {
	case brain.CommandFinish:
		o.finish(ctx, s)
		return nil
	case brain.CommandNextFile:
		return o.nextFile(ctx, s)
	default:
		return o.applyPlan(ctx, s, reply)
	}
}

func (o *Orchestrator) nextFile(ctx context.Context, s *session) error {
	text, err := o.executor.FetchNextFile(ctx, s.id)
	if err != nil {
		return fmt.Errorf("fetch next file: %w", err)
	}
	fingerprint := o.fingerprint(text)
	s.log.Debug("file received", "fingerprint", fingerprint, "bytes", len(text))

	if err := o.log.Append(s.id, history.User(NumberLines(text))); err != nil {
		return fmt.Errorf("append file: %w", err)
	}
	return o.callBrain(ctx, s, fingerprint)
}

func (o *Orchestrator) applyPlan(ctx context.Context, s *session, reply PendingReply) error {
	if reply.Context.Fingerprint == "" {
		return ErrNoFileInFlight
	}

	items, err := plan.ParseItems(reply.Message.Content)
	if err != nil {
		s.log.Warn("unparsable action plan, applying empty plan", "error", err)
		items = plan.Items{}
	}

	p := plan.ActionPlan{FileHash: reply.Context.Fingerprint, Items: items}
	if err := o.executor.ApplyActionPlan(ctx, s.id, p); err != nil {
		return fmt.Errorf("apply action plan: %w", err)
	}
	s.log.Info("action plan applied", "fingerprint", p.FileHash, "items", len(items))

	return o.callBrain(ctx, s, "")
}

// finish deletes the session history, notifies the tool and forgets the
// session. The id stays reserved until cleanup is done, so a restart cannot
// lose its history or tool. Calling it again for a finished session does
// nothing.
func (o *Orchestrator) finish(ctx context.Context, s *session) {
	if s.state() == StateFinished {
		return
	}
	if err := s.fire(ctx, TriggerFinish); err != nil {
		s.log.Warn("finish transition failed", "error", err)
	}

	if err := o.log.Delete(s.id); err != nil {
		s.log.Warn("failed to delete history", "error", err)
	}
	if err := o.executor.Finish(ctx, s.id); err != nil {
		s.log.Warn("failed to notify tool of finish", "error", err)
	}

	o.mu.Lock()
	if o.sessions[s.id] == s {
		delete(o.sessions, s.id)
	}
	o.mu.Unlock()

	s.log.Info("session finished")
}
