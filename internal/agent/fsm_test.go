package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSession_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := newSession("repo")
	require.Equal(t, StateStarted, s.state())
	require.NotEmpty(t, s.runID)

	require.NoError(t, s.fire(ctx, TriggerReplyQueued))
	require.Equal(t, StateAwaitingReply, s.state())

	require.NoError(t, s.fire(ctx, TriggerReplyDequeued))
	require.Equal(t, StateDispatching, s.state())

	require.NoError(t, s.fire(ctx, TriggerReplyQueued))
	require.Equal(t, StateAwaitingReply, s.state())

	require.NoError(t, s.fire(ctx, TriggerFinish))
	require.Equal(t, StateFinished, s.state())

	require.NoError(t, s.fire(ctx, TriggerFinish))
	require.Equal(t, StateFinished, s.state())
}

func TestSession_RejectsOutOfOrderTriggers(t *testing.T) {
	ctx := context.Background()

	s := newSession("repo")
	require.Error(t, s.fire(ctx, TriggerReplyDequeued))
	require.Equal(t, StateStarted, s.state())

	require.NoError(t, s.fire(ctx, TriggerReplyQueued))
	require.Error(t, s.fire(ctx, TriggerReplyQueued))

	require.NoError(t, s.fire(ctx, TriggerFinish))
	require.Error(t, s.fire(ctx, TriggerReplyQueued))
}

func TestSession_FinishFromStarted(t *testing.T) {
	s := newSession("repo")
	require.NoError(t, s.fire(context.Background(), TriggerFinish))
	require.Equal(t, StateFinished, s.state())
}
