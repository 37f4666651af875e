package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/suviet/agent/checkpoint"
	"github.com/suviet/agent/types"
	"go.uber.org/zap"
)

// FragmentKind discriminates streamed turn events.
type FragmentKind string

const (
	// FragmentAnswer carries final answer text.
	FragmentAnswer FragmentKind = "answer"
	// FragmentError carries a turn-level failure.
	FragmentError FragmentKind = "error"
	// FragmentDone closes the turn.
	FragmentDone FragmentKind = "done"
)

// Fragment is one event emitted by RunTurn.
type Fragment struct {
	Kind    FragmentKind
	Content string
	Err     error
}

// threadLocks serializes turns per thread. Two concurrent turns on the
// same thread would race on the checkpoint's read-modify-write; turns on
// distinct threads never contend. Entries are refcounted and evicted
// once no turn holds or waits on them, so the map tracks in-flight
// threads rather than every thread ever seen.
type threadLocks struct {
	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

func newThreadLocks() *threadLocks {
	return &threadLocks{locks: make(map[string]*threadLock)}
}

// acquire blocks until the calling turn owns threadID's lock.
func (t *threadLocks) acquire(threadID string) *threadLock {
	t.mu.Lock()
	l, ok := t.locks[threadID]
	if !ok {
		l = &threadLock{}
		t.locks[threadID] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return l
}

// release unlocks and drops the entry when nobody else is waiting.
func (t *threadLocks) release(threadID string, l *threadLock) {
	l.mu.Unlock()

	t.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, threadID)
	}
	t.mu.Unlock()
}

// RunTurn executes one user turn on a thread and streams the result. The
// returned channel yields answer fragments followed by exactly one done
// or error fragment, then closes. Cancel ctx to abandon the turn; an
// abandoned turn is not checkpointed, so the thread replays cleanly.
func (a *Agent) RunTurn(ctx context.Context, threadID, userMessage string) <-chan Fragment {
	out := make(chan Fragment, 4)
	go func() {
		defer close(out)

		lock := a.locks.acquire(threadID)
		defer a.locks.release(threadID, lock)

		start := time.Now()
		state, err := a.seedState(ctx, threadID, userMessage)
		if err != nil {
			a.emitError(ctx, out, err)
			return
		}

		if err := a.executeTurn(ctx, state); err != nil {
			a.metrics.TurnsTotal.WithLabelValues(string(state.QueryType), "error").Inc()
			a.emitError(ctx, out, err)
			return
		}

		state.Messages = append(state.Messages, types.NewAssistantMessage(state.FinalAnswer))
		if err := a.saveSnapshot(ctx, threadID, state); err != nil {
			// The answer is already computed; losing the checkpoint only
			// costs continuity, not this turn's reply.
			a.logger.Error("checkpoint save failed", zap.String("thread_id", threadID), zap.Error(err))
		}

		a.metrics.TurnsTotal.WithLabelValues(string(state.QueryType), "ok").Inc()
		a.metrics.TurnDuration.Observe(time.Since(start).Seconds())

		a.emit(ctx, out, Fragment{Kind: FragmentAnswer, Content: state.FinalAnswer})
		a.emit(ctx, out, Fragment{Kind: FragmentDone})
	}()
	return out
}

// seedState loads persisted history and appends the new user message. A
// missing thread starts fresh; any other load error fails the turn.
func (a *Agent) seedState(ctx context.Context, threadID, userMessage string) (*ConversationState, error) {
	state := &ConversationState{}
	snap, err := a.checkpoints.Load(ctx, threadID)
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		// New thread.
	case err != nil:
		return nil, types.NewError(types.ErrCheckpointFailed, "load thread "+threadID).WithCause(err)
	default:
		state.Messages = snap.Messages
	}

	if limit := a.cfg.HistoryLimit; limit > 0 && len(state.Messages) > limit {
		state.Messages = state.Messages[len(state.Messages)-limit:]
	}
	state.Messages = append(state.Messages, types.NewUserMessage(userMessage))
	return state, nil
}

func (a *Agent) saveSnapshot(ctx context.Context, threadID string, state *ConversationState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.checkpoints.Save(ctx, threadID, &checkpoint.Snapshot{
		ThreadID:  threadID,
		Messages:  state.Messages,
		UpdatedAt: time.Now().UTC(),
	})
}

func (a *Agent) emit(ctx context.Context, out chan<- Fragment, f Fragment) {
	select {
	case out <- f:
	case <-ctx.Done():
	}
}

func (a *Agent) emitError(ctx context.Context, out chan<- Fragment, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	a.logger.Error("turn failed", zap.Error(err))
	a.emit(ctx, out, Fragment{Kind: FragmentError, Err: err})
}
