package chat

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session drives one send-and-receive exchange from submission to terminal
// resolution. It owns the session state exclusively: the decoder, the
// accumulation buffer, and the abort handle all live here, and incoming
// events mutate the state only through apply, in arrival order.
//
// A Session is single-use. Start may be called once; after a terminal phase
// is reached the session is discarded and a new one created for the next
// send. Exactly one of done, cancelled, or failed is reached by any run that
// leaves idle.
type Session struct {
	client *Client
	store  *Store
	logger *Logger

	mu         sync.Mutex
	phase      Phase
	req        ChatRequest
	text       strings.Builder
	tools      map[string]*LiveToolState
	toolOrder  []string
	toolCalls  []ToolCallResult
	convID     *string
	cached     bool
	degraded   bool
	incomplete bool
	failure    *Failure
	final      *FinalMessage
	cancel     context.CancelFunc
	started    bool
	closed     bool
	updates    chan Snapshot
}

// NewSession creates a session in the idle phase. The store may be nil, in
// which case nothing is persisted. A nil logger uses the package default.
func NewSession(client *Client, store *Store, logger *Logger) *Session {
	if logger == nil {
		logger = GetLogger()
	}
	return &Session{
		client:  client,
		store:   store,
		logger:  logger,
		phase:   PhaseIdle,
		tools:   make(map[string]*LiveToolState),
		updates: make(chan Snapshot, 64),
	}
}

// Updates returns the snapshot channel. A snapshot is published after every
// state change; the channel is closed once the session reaches a terminal
// phase. Slow consumers only lose intermediate snapshots, never the final
// one: each snapshot is the complete current state.
func (s *Session) Updates() <-chan Snapshot {
	return s.updates
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Request returns the request this session was started with.
func (s *Session) Request() ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.req
}

// Snapshot returns a read-only copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Final returns the finalized message once the session is done.
func (s *Session) Final() (*FinalMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.final == nil {
		return nil, false
	}
	cp := *s.final
	return &cp, true
}

// Start begins the exchange. Unless the session is idle the call is
// rejected, never queued. The stream is consumed on a background goroutine;
// progress arrives on Updates.
func (s *Session) Start(ctx context.Context, req ChatRequest) error {
	s.mu.Lock()
	if s.phase.Terminal() {
		s.mu.Unlock()
		return ErrSessionTerminal
	}
	if s.started {
		s.mu.Unlock()
		return ErrSessionActive
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.started = true
	s.req = req
	s.convID = req.ConversationID
	s.cancel = cancel
	s.phase = PhaseConnecting
	s.emitLocked()
	s.mu.Unlock()

	go s.run(runCtx)
	return nil
}

// Cancel aborts an in-flight exchange. It is safe to call at any time: when
// nothing is active or the session already finished it is a no-op returning
// false. On success the session is terminal immediately; the transport
// abort may still be in flight, and any events that straggle in afterwards
// are discarded.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.phase.Terminal() {
		return false
	}

	s.cancel()
	s.phase = PhaseCancelled
	s.logger.Info("session cancelled", "accumulated_bytes", s.text.Len())

	// Cancellation is a persistence boundary: keep whatever streamed so the
	// user can see how far generation got.
	if s.text.Len() > 0 || s.req.Prompt != "" {
		s.persistLocked()
	}

	s.emitLocked()
	s.closeLocked()
	return true
}

// run consumes the stream: connect (under the retry policy), decode chunks,
// apply events in arrival order, resolve exactly once.
func (s *Session) run(ctx context.Context) {
	stream, err := s.client.StreamChat(ctx, s.req)
	if err != nil {
		if ctx.Err() != nil {
			s.resolveInterrupted(ctx.Err())
			return
		}
		s.fail(classifyError(err))
		return
	}
	defer stream.Close()

	if stream.Degraded {
		s.mu.Lock()
		s.degraded = true
		s.mu.Unlock()
	}

	decoder := NewDecoder(s.logger)
	buf := make([]byte, 4096)

	for {
		n, err := stream.Body.Read(buf)
		if n > 0 {
			for _, ev := range decoder.Feed(buf[:n]) {
				if s.apply(ev) {
					return
				}
			}
		}
		if err == io.EOF {
			for _, ev := range decoder.Flush() {
				if s.apply(ev) {
					return
				}
			}
			s.finishEOF()
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				s.resolveInterrupted(ctx.Err())
				return
			}
			s.fail(newFailure(FailureNetwork, err, "connection lost mid-response"))
			return
		}
	}
}

// apply mutates session state for one decoded event and reports whether the
// session is now terminal. Events arriving after a terminal phase are
// discarded without effect.
func (s *Session) apply(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.Terminal() {
		return true
	}

	if unknown, ok := ev.(UnknownEvent); ok {
		s.logger.Debug("ignoring unknown event type", "type", unknown.Type)
		return false
	}

	// Any valid event proves a live stream, whether or not an explicit
	// start frame arrived first.
	if s.phase == PhaseConnecting {
		s.phase = PhaseStreaming
	}

	switch ev := ev.(type) {
	case StartEvent:
		if ev.ConversationID != nil {
			s.convID = ev.ConversationID
		}
		s.cached = ev.Cached

	case ContentEvent:
		s.text.WriteString(ev.Delta)

	case ToolBatchEvent:
		for _, name := range ev.ToolNames {
			if _, exists := s.tools[name]; exists {
				continue // idempotent merge: existing entries untouched
			}
			s.tools[name] = &LiveToolState{Name: name, Status: ToolRunning}
			s.toolOrder = append(s.toolOrder, name)
		}

	case ToolUpdateEvent:
		if existing, ok := s.tools[ev.ToolName]; ok {
			existing.Status = ev.Status
			existing.ErrorDetail = ev.ErrorDetail
		} else {
			s.tools[ev.ToolName] = &LiveToolState{
				Name:        ev.ToolName,
				Status:      ev.Status,
				ErrorDetail: ev.ErrorDetail,
			}
			s.toolOrder = append(s.toolOrder, ev.ToolName)
		}

	case DoneEvent:
		if ev.ConversationID != nil {
			s.convID = ev.ConversationID
		}
		s.toolCalls = ev.ToolCalls
		s.finalizeLocked()
		return true

	case ErrorEvent:
		s.failLocked(newFailure(FailureGeneric, nil, "%s", ev.Message))
		return true
	}

	s.emitLocked()
	return false
}

// resolveInterrupted resolves a run stopped by its context. Cancel flips the
// session terminal before cancelling the context, so a terminal phase here
// means the user aborted and nothing is left to do. Any other context end
// came from the caller's context (deadline or external cancellation) and
// still owes the session its one terminal resolution.
func (s *Session) resolveInterrupted(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return
	}
	s.failLocked(classifyError(err))
}

// finishEOF resolves a stream that ended without an explicit done frame.
// This is treated as graceful completion, even with zero content, for
// compatibility with responses that omit the terminator. The snapshot
// carries Incomplete for diagnostics.
func (s *Session) finishEOF() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.Terminal() {
		return
	}
	s.incomplete = true
	s.logger.Info("stream ended without done frame, finalizing with accumulated state",
		"accumulated_bytes", s.text.Len())
	s.finalizeLocked()
}

// finalizeLocked copies the accumulated state into an immutable finalized
// message, persists it, and resolves the session as done.
func (s *Session) finalizeLocked() {
	s.phase = PhaseFinalizing
	s.emitLocked()

	s.persistLocked()

	s.phase = PhaseDone
	s.cancel() // release the transport; nothing more will be read
	s.emitLocked()
	s.closeLocked()
}

// persistLocked writes the exchange to the store at a session boundary. A
// persistence failure is logged, not propagated: the answer on screen is
// worth more than the history entry.
func (s *Session) persistLocked() {
	convID := s.conversationIDLocked()
	now := time.Now().UTC()

	assistant := FinalMessage{
		ID:             uuid.NewString(),
		ConversationID: convID,
		Role:           "assistant",
		Content:        s.text.String(),
		ToolCalls:      s.toolCalls,
		Cached:         s.cached,
		CreatedAt:      now,
	}
	s.final = &assistant

	if s.store == nil {
		return
	}

	user := FinalMessage{
		ID:             uuid.NewString(),
		ConversationID: convID,
		Role:           "user",
		Content:        s.req.Prompt,
		CreatedAt:      now,
	}
	if err := s.store.SaveMessage(user); err != nil {
		s.logger.Error("persist user message", "error", err)
	}
	if err := s.store.SaveMessage(assistant); err != nil {
		s.logger.Error("persist assistant message", "error", err)
	}
}

// conversationIDLocked resolves the conversation id, minting one when
// neither the request nor the stream provided it.
func (s *Session) conversationIDLocked() string {
	if s.convID != nil && *s.convID != "" {
		return *s.convID
	}
	id := uuid.NewString()
	s.convID = &id
	return id
}

// fail resolves the session as failed, preserving accumulated text in the
// snapshot so the user can see how far generation progressed.
func (s *Session) fail(f *Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLocked(f)
}

func (s *Session) failLocked(f *Failure) {
	if s.phase.Terminal() {
		return
	}
	s.phase = PhaseFailed
	s.failure = f
	s.cancel()
	s.logger.Error("session failed", "class", f.Class, "message", f.Message)
	s.emitLocked()
	s.closeLocked()
}

// snapshotLocked builds a read-only copy of the current state. Tools are
// listed in first-appearance order.
func (s *Session) snapshotLocked() Snapshot {
	tools := make([]LiveToolState, 0, len(s.toolOrder))
	for _, name := range s.toolOrder {
		tools = append(tools, *s.tools[name])
	}

	var convID *string
	if s.convID != nil {
		id := *s.convID
		convID = &id
	}

	return Snapshot{
		Phase:          s.phase,
		Text:           s.text.String(),
		Tools:          tools,
		ConversationID: convID,
		Cached:         s.cached,
		Degraded:       s.degraded,
		Incomplete:     s.incomplete,
		Err:            s.failure,
	}
}

// emitLocked publishes the current snapshot without blocking. When the
// buffer is full the oldest snapshot is dropped; every snapshot carries the
// complete state, so only intermediate frames are ever lost.
func (s *Session) emitLocked() {
	if s.closed {
		return
	}
	snap := s.snapshotLocked()
	select {
	case s.updates <- snap:
	default:
		select {
		case <-s.updates:
		default:
		}
		select {
		case s.updates <- snap:
		default:
		}
	}
}

// closeLocked closes the updates channel exactly once.
func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.updates)
}
