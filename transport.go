package polyvox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// BackpressureThreshold is the outbound queue depth, in bytes, beyond which
// the sender should slow down. Exceeding it is a signal, not an error.
const BackpressureThreshold = 1 << 20

const sendQueueSlots = 64

// validateStreamingURL enforces the transport rules: secure WebSocket scheme
// and a hostname equal to, or a subdomain of, the trusted domain. Look-alike
// hosts (prefix or suffix tricks) are rejected.
func validateStreamingURL(raw, trustedDomain string, allowPlaintext bool) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, NewErrorWithCause(ErrorStatusInvalidStreamingURL, "unparsable streaming URL", err)
	}
	switch u.Scheme {
	case "wss":
	case "ws":
		if !allowPlaintext {
			return nil, NewError(ErrorStatusInvalidStreamingURL, "streaming URL must use the wss scheme")
		}
	default:
		return nil, NewError(ErrorStatusInvalidStreamingURL, "streaming URL must use the wss scheme")
	}
	host := u.Hostname()
	if host != trustedDomain && !strings.HasSuffix(host, "."+trustedDomain) {
		return nil, NewError(ErrorStatusInvalidStreamingURL, "streaming URL host is not on the trusted domain")
	}
	return u, nil
}

// redactURL strips the query string (which carries the token) for logging.
func redactURL(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.Fragment = ""
	return c.String()
}

type transportConfig struct {
	trustedDomain  string
	allowPlaintext bool
	connectTimeout time.Duration
	writeTimeout   time.Duration
	logger         *zap.Logger

	onMessage func(ServerMessage)
	onClose   func(err error)
}

type outboundFrame struct {
	data []byte
	// errc, when non-nil, receives the result of the write exactly once.
	errc chan error
}

// transport owns one WebSocket connection: dial, framed send via a writer
// pump, framed receive via a read loop, idempotent close. The session is the
// sole user; no other component sends on it directly.
type transport struct {
	conn   *websocket.Conn
	cfg    transportConfig
	logger *zap.Logger

	sendq      chan outboundFrame
	queued     atomic.Int64
	done       chan struct{}
	closeOnce  sync.Once
	notifyOnce sync.Once
	closed     atomic.Bool
}

// dialTransport validates the credential's URL, attaches the token as a query
// parameter (the target environments cannot set custom handshake headers) and
// opens the connection. The composed URL is sensitive and is never logged in
// full.
func dialTransport(ctx context.Context, cred Credential, cfg transportConfig) (*transport, error) {
	u, err := validateStreamingURL(cred.StreamingURL, cfg.trustedDomain, cfg.allowPlaintext)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", cred.Token)
	u.RawQuery = q.Encode()

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("dialing streaming endpoint", zap.String("url", redactURL(u)))

	dialCtx, cancel := context.WithTimeout(ctx, cfg.connectTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: cfg.connectTimeout}
	conn, _, err := dialer.DialContext(dialCtx, u.String(), http.Header{})
	if err != nil {
		return nil, NewErrorWithCause(ErrorStatusUnexpectedClose, "failed to connect to streaming endpoint", err)
	}

	t := &transport{
		conn:   conn,
		cfg:    cfg,
		logger: logger,
		sendq:  make(chan outboundFrame, sendQueueSlots),
		done:   make(chan struct{}),
	}
	go t.writePump()
	go t.readLoop()
	return t, nil
}

// SendChunk transmits one audio chunk and reports the outbound queue depth in
// bytes so the caller can detect backpressure against BackpressureThreshold.
func (t *transport) SendChunk(audio []byte) (int64, error) {
	msg := newChunkMessage(base64.StdEncoding.EncodeToString(audio))
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, NewErrorWithCause(ErrorStatusIO, "failed to encode audio chunk", err)
	}
	return t.enqueue(outboundFrame{data: data})
}

// SendEndOfMedia transmits the end-of-source-media marker and waits for the
// write to complete. The marker ends the stream, so unlike audio chunks its
// loss must be visible to the caller.
func (t *transport) SendEndOfMedia() error {
	data, err := json.Marshal(newEndOfSourceMediaMessage())
	if err != nil {
		return NewErrorWithCause(ErrorStatusIO, "failed to encode end-of-media message", err)
	}
	errc := make(chan error, 1)
	if _, err := t.enqueue(outboundFrame{data: data, errc: errc}); err != nil {
		return err
	}
	select {
	case werr := <-errc:
		if werr != nil {
			return NewErrorWithCause(ErrorStatusIO, "failed to write end-of-media message", werr)
		}
		return nil
	case <-t.done:
		// The write may still have completed just before the close.
		select {
		case werr := <-errc:
			if werr == nil {
				return nil
			}
			return NewErrorWithCause(ErrorStatusIO, "failed to write end-of-media message", werr)
		default:
		}
		return ErrTransportNotOpen
	}
}

func (t *transport) enqueue(frame outboundFrame) (int64, error) {
	if t.closed.Load() {
		return t.queued.Load(), ErrTransportNotOpen
	}
	depth := t.queued.Add(int64(len(frame.data)))
	select {
	case t.sendq <- frame:
		return depth, nil
	case <-t.done:
		t.queued.Add(-int64(len(frame.data)))
		return t.queued.Load(), ErrTransportNotOpen
	}
}

func (t *transport) writePump() {
	defer t.drainSendQueue()
	for {
		select {
		case frame := <-t.sendq:
			t.conn.SetWriteDeadline(time.Now().Add(t.cfg.writeTimeout))
			err := t.conn.WriteMessage(websocket.TextMessage, frame.data)
			t.queued.Add(-int64(len(frame.data)))
			if frame.errc != nil {
				frame.errc <- err
			}
			if err != nil {
				t.logger.Debug("write failed, closing transport", zap.Error(err))
				t.fail(err)
				return
			}
		case <-t.done:
			return
		}
	}
}

// drainSendQueue unblocks waiting senders and keeps the depth signal honest
// once the pump has stopped consuming frames.
func (t *transport) drainSendQueue() {
	for {
		select {
		case frame := <-t.sendq:
			t.queued.Add(-int64(len(frame.data)))
			if frame.errc != nil {
				frame.errc <- ErrTransportNotOpen
			}
		default:
			return
		}
	}
}

// fail tears the connection down after an I/O error and reports it upstream
// at most once. A close requested through Close stays silent: only failures
// on a connection the caller still considers live reach onClose.
func (t *transport) fail(err error) {
	requested := t.closed.Load()
	t.Close()
	if requested || t.cfg.onClose == nil {
		return
	}
	t.notifyOnce.Do(func() {
		t.cfg.onClose(err)
	})
}

func (t *transport) readLoop() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.fail(err)
			return
		}

		msg, err := decodeServerMessage(data)
		if err != nil || msg == nil {
			// Protocol noise (keepalives, unknown kinds): drop silently.
			continue
		}
		if t.cfg.onMessage != nil {
			t.cfg.onMessage(msg)
		}
	}
}

// QueuedBytes reports the current outbound buffer depth. A closed transport
// reports zero: frames stranded in the queue no longer count against
// backpressure.
func (t *transport) QueuedBytes() int64 {
	if t.closed.Load() {
		return 0
	}
	return t.queued.Load()
}

// Close is always safe to call and idempotent.
func (t *transport) Close() {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		close(t.done)
		t.conn.Close()
	})
}
