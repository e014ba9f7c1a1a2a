package polyvox

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// VoiceClient runs real-time speech-translation streaming sessions against
// the Polyvox service. At most one session is active per client at a time.
type VoiceClient struct {
	options    ClientOptions
	negotiator Negotiator

	mu      sync.Mutex
	session *voiceSession
}

// NewVoiceClient creates a client that negotiates sessions over the service's
// REST API.
func NewVoiceClient(options ClientOptions) *VoiceClient {
	options.applyDefaults()
	return &VoiceClient{
		options:    options,
		negotiator: newRESTNegotiator(options),
	}
}

// NewVoiceClientWithNegotiator creates a client with a custom negotiator.
func NewVoiceClientWithNegotiator(options ClientOptions, negotiator Negotiator) *VoiceClient {
	options.applyDefaults()
	return &VoiceClient{options: options, negotiator: negotiator}
}

// Run streams the chunk source through one voice session and blocks until the
// server reports end of stream or the session fails. It resolves or fails
// exactly once. Cancelling ctx abandons the session immediately; use Stop for
// a graceful finish that lets the server flush final transcripts.
func (c *VoiceClient) Run(ctx context.Context, source ChunkSource, opts SessionOptions) (*VoiceSessionResult, error) {
	opts.applyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.session != nil && !c.session.State().IsTerminal() {
		c.mu.Unlock()
		return nil, ErrSessionAlreadyActive
	}
	s := newVoiceSession(c.options, c.negotiator, opts)
	c.session = s
	c.mu.Unlock()

	return s.run(ctx, source)
}

// State returns the state of the most recent session, or StateIdle if none
// has been started.
func (c *VoiceClient) State() StreamState {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return StateIdle
	}
	return s.State()
}

// Stop requests a graceful finish of the active session: the end-of-media
// marker is sent and the server is given the chance to flush its final
// transcripts before emitting end of stream.
func (c *VoiceClient) Stop() {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s != nil {
		s.stop()
	}
}

// Cancel abandons the active session immediately: the transport is closed and
// the pending Run fails with a canceled error.
func (c *VoiceClient) Cancel() {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s != nil {
		s.cancel()
	}
}

var errSessionEnded = errors.New("session ended")

// voiceSession orchestrates one streaming session: it exclusively owns the
// live transport and all transcript state, drives the sender across
// reconnects and funnels every outcome through a single completion path.
type voiceSession struct {
	clientOpts ClientOptions
	negotiator Negotiator
	opts       SessionOptions
	logger     *zap.Logger

	ctx context.Context

	mu           sync.Mutex
	state        StreamState
	sessionID    string
	token        string
	transport    *transport
	acc          *accumulator
	attempts     int
	openCh       chan struct{}
	openSignaled bool

	done   chan struct{}
	once   sync.Once
	result *VoiceSessionResult
	err    error

	stopOnce sync.Once
	stopCh   chan struct{}

	endMu   sync.Mutex
	endSent bool
}

func newVoiceSession(clientOpts ClientOptions, negotiator Negotiator, opts SessionOptions) *voiceSession {
	return &voiceSession{
		clientOpts: clientOpts,
		negotiator: negotiator,
		opts:       opts,
		logger:     clientOpts.Logger,
		state:      StateIdle,
		openCh:     make(chan struct{}),
		done:       make(chan struct{}),
		stopCh:     make(chan struct{}),
	}
}

func (s *voiceSession) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *voiceSession) setState(newState StreamState) {
	s.mu.Lock()
	oldState := s.state
	if oldState == newState || oldState.IsTerminal() {
		s.mu.Unlock()
		return
	}
	s.state = newState
	s.mu.Unlock()

	if cb := s.opts.OnStateChange; cb != nil {
		cb(oldState, newState)
	}
}

func (s *voiceSession) run(ctx context.Context, source ChunkSource) (*VoiceSessionResult, error) {
	s.ctx = ctx
	s.setState(StateConnecting)

	negotiated, err := s.negotiator.CreateSession(ctx, &CreateSessionRequest{
		SourceLanguage:     s.opts.SourceLanguage,
		SourceLanguageMode: s.opts.SourceLanguageMode,
		TargetLanguages:    s.opts.TargetLanguages,
		ContentType:        s.opts.ContentType,
		Formality:          s.opts.Formality,
		GlossaryID:         s.opts.GlossaryID,
	})
	if err != nil {
		s.finish(nil, err)
		return nil, err
	}

	s.mu.Lock()
	s.sessionID = negotiated.SessionID
	s.token = negotiated.Credential.Token
	s.acc = newAccumulator(s.opts.SourceLanguage, s.opts.TargetLanguages)
	s.mu.Unlock()

	t, err := dialTransport(ctx, negotiated.Credential, s.transportConfig())
	if err != nil {
		s.finish(nil, err)
		return nil, err
	}

	s.attachTransport(t)

	go s.sendLoop(ctx, source)

	select {
	case <-s.done:
	case <-ctx.Done():
		s.closeTransport()
		s.finish(nil, NewErrorWithCause(ErrorStatusCanceled, "session context canceled", ctx.Err()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

func (s *voiceSession) transportConfig() transportConfig {
	return transportConfig{
		trustedDomain:  s.clientOpts.TrustedDomain,
		allowPlaintext: s.clientOpts.AllowPlaintext,
		connectTimeout: s.clientOpts.ConnectTimeout,
		writeTimeout:   s.clientOpts.WriteTimeout,
		logger:         s.logger,
		onMessage:      s.handleMessage,
		onClose:        s.handleTransportClose,
	}
}

// sendLoop drains the chunk source in order, one chunk at a time. Chunks are
// never sent while the transport is down: the loop suspends until the
// connection reopens or the session terminates. A chunk in flight when the
// connection drops is lost and not retried.
func (s *voiceSession) sendLoop(ctx context.Context, source ChunkSource) {
	for {
		select {
		case <-s.stopCh:
			s.flushEndOfMedia(ctx)
			return
		case <-s.done:
			return
		default:
		}

		chunk, err := source.Next(ctx)
		if err == io.EOF {
			s.flushEndOfMedia(ctx)
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.closeTransport()
			s.finish(nil, err)
			return
		}

		if err := s.awaitOpen(ctx); err != nil {
			return
		}

		s.mu.Lock()
		t := s.transport
		s.mu.Unlock()
		if t == nil {
			continue
		}

		depth, err := t.SendChunk(chunk)
		if err != nil {
			// The transport dropped between awaitOpen and the send. The chunk
			// is lost; the loop waits for the reconnected transport.
			continue
		}
		s.setState(StateStreaming)

		if depth > BackpressureThreshold {
			s.logger.Debug("outbound buffer over threshold, backing off",
				zap.Int64("queued_bytes", depth))
			select {
			case <-time.After(DefaultChunkInterval):
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

// flushEndOfMedia delivers the end-of-source-media marker, retrying across
// reconnects until the write goes out or the session terminates, then leaves
// the session waiting for the server's end of stream.
func (s *voiceSession) flushEndOfMedia(ctx context.Context) {
	for {
		if err := s.awaitOpen(ctx); err != nil {
			return
		}
		if err := s.sendEndOfMedia(); err == nil {
			return
		}
		// The transport dropped before the marker went out. The session may
		// not have observed the drop yet; give it a beat, then wait for the
		// replacement transport.
		select {
		case <-time.After(10 * time.Millisecond):
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// sendEndOfMedia writes the marker at most once. The latch is taken only on a
// confirmed write so a transport dropping mid-send does not swallow the
// marker for good.
func (s *voiceSession) sendEndOfMedia() error {
	s.endMu.Lock()
	defer s.endMu.Unlock()
	if s.endSent {
		return nil
	}
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t == nil {
		return ErrTransportNotOpen
	}
	if err := t.SendEndOfMedia(); err != nil {
		return err
	}
	s.endSent = true
	return nil
}

// awaitOpen suspends until the transport can send, the session terminates or
// ctx is canceled. This is the wait-for-state primitive that keeps the sender
// from racing a reconnect.
func (s *voiceSession) awaitOpen(ctx context.Context) error {
	for {
		s.mu.Lock()
		state := s.state
		ch := s.openCh
		s.mu.Unlock()

		if state.IsTerminal() {
			return errSessionEnded
		}
		if state.CanSend() {
			return nil
		}

		select {
		case <-ch:
		case <-s.done:
			return errSessionEnded
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handleMessage is the single dispatch point for inbound server messages. It
// runs on the transport's read goroutine; transcripts are mutated only here.
func (s *voiceSession) handleMessage(msg ServerMessage) {
	switch m := msg.(type) {
	case *SourceTranscriptUpdate:
		s.mu.Lock()
		if s.state.IsTerminal() {
			s.mu.Unlock()
			return
		}
		s.acc.foldSource(detectedLanguage(m), m.Concluded)
		s.mu.Unlock()
		if cb := s.opts.OnSourceTranscript; cb != nil {
			cb(m)
		}

	case *TargetTranscriptUpdate:
		s.mu.Lock()
		if s.state.IsTerminal() {
			s.mu.Unlock()
			return
		}
		known := s.acc.foldTarget(m.Language, m.Concluded)
		s.mu.Unlock()
		if !known {
			// Guards against server/client drift on the negotiated targets.
			s.logger.Debug("dropping update for unrequested target language",
				zap.String("language", m.Language))
			return
		}
		if cb := s.opts.OnTargetTranscript; cb != nil {
			cb(m)
		}

	case *EndOfSourceTranscript:
		if cb := s.opts.OnEndOfSourceTranscript; cb != nil {
			cb()
		}

	case *EndOfTargetTranscript:
		if cb := s.opts.OnEndOfTargetTranscript; cb != nil {
			cb(m.Language)
		}

	case *EndOfStream:
		s.mu.Lock()
		result := s.acc.result(s.sessionID)
		s.mu.Unlock()
		s.closeTransport()
		s.finish(result, nil)

	case *StreamError:
		s.closeTransport()
		s.finish(nil, NewStreamError(m.ErrorMessage, m.ErrorCode, m.ReasonCode))
	}
}

// detectedLanguage picks the source language reported with an update: the
// top-level field when present, otherwise the last concluded segment that
// carries one.
func detectedLanguage(m *SourceTranscriptUpdate) string {
	if m.Language != "" {
		return m.Language
	}
	for i := len(m.Concluded) - 1; i >= 0; i-- {
		if m.Concluded[i].Language != "" {
			return m.Concluded[i].Language
		}
	}
	return ""
}

// handleTransportClose reacts to a connection that closed without a preceding
// end-of-stream or error message.
func (s *voiceSession) handleTransportClose(cause error) {
	s.mu.Lock()
	if s.state.IsTerminal() {
		s.mu.Unlock()
		return
	}
	// New senders block until the replacement transport is open.
	s.openCh = make(chan struct{})
	s.openSignaled = false
	s.transport = nil
	disabled := s.opts.Reconnect.Disabled
	s.mu.Unlock()

	if disabled {
		s.finish(nil, NewErrorWithCause(ErrorStatusUnexpectedClose,
			"connection closed before end of stream", cause))
		return
	}

	s.setState(StateReconnecting)
	go s.reconnectLoop(cause)
}

// reconnectLoop renews the credential with the current token and opens a
// replacement transport, retrying until it succeeds or the bounded attempts
// are exhausted. Already-delivered audio is never resent.
func (s *voiceSession) reconnectLoop(cause error) {
	for {
		s.mu.Lock()
		if s.state.IsTerminal() {
			s.mu.Unlock()
			return
		}
		if s.attempts >= s.opts.Reconnect.MaxAttempts {
			s.mu.Unlock()
			s.finish(nil, NewErrorWithCause(ErrorStatusUnexpectedClose,
				"reconnect attempts exhausted", cause))
			return
		}
		s.attempts++
		attempt := s.attempts
		token := s.token
		s.mu.Unlock()

		s.logger.Info("reconnecting voice session", zap.Int("attempt", attempt))
		if cb := s.opts.OnReconnect; cb != nil {
			cb(attempt)
		}

		cred, err := s.negotiator.RenewCredential(s.ctx, token)
		if err != nil {
			cause = err
			continue
		}

		s.mu.Lock()
		s.token = cred.Token
		s.mu.Unlock()

		t, err := dialTransport(s.ctx, *cred, s.transportConfig())
		if err != nil {
			cause = err
			continue
		}

		s.attachTransport(t)
		return
	}
}

// attachTransport installs a freshly dialed transport and releases any sender
// suspended in awaitOpen. The open channel is closed at most once per
// connection generation.
func (s *voiceSession) attachTransport(t *transport) {
	s.mu.Lock()
	if s.state.IsTerminal() {
		s.mu.Unlock()
		t.Close()
		return
	}
	s.transport = t
	ch := s.openCh
	signaled := s.openSignaled
	s.openSignaled = true
	s.mu.Unlock()

	s.setState(StateOpen)
	if !signaled {
		close(ch)
	}
}

func (s *voiceSession) stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.mu.Lock()
		canSend := s.state.CanSend()
		s.mu.Unlock()
		if canSend {
			// Best effort; the send loop retries through flushEndOfMedia if
			// this races a drop.
			_ = s.sendEndOfMedia()
		}
	})
}

func (s *voiceSession) cancel() {
	s.closeTransport()
	s.finish(nil, ErrSessionCanceled)
}

func (s *voiceSession) closeTransport() {
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t != nil {
		t.Close()
	}
}

// finish records the single resolution of the session. Every terminal path
// funnels through here so the caller sees exactly one outcome.
func (s *voiceSession) finish(result *VoiceSessionResult, err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.result = result
		s.err = err
		s.mu.Unlock()
		if err != nil {
			s.setState(StateErrored)
		} else {
			s.setState(StateClosed)
		}
		close(s.done)
	})
}
