package polyvox

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestValidateStreamingURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		ok   bool
	}{
		{"trusted apex", "wss://trusted.com/v1/stream", true},
		{"trusted subdomain", "wss://api.trusted.com/v1/stream", true},
		{"deep subdomain", "wss://eu.voice.trusted.com/v1/stream", true},
		{"plain ws", "ws://trusted.com/v1/stream", false},
		{"http scheme", "http://trusted.com/v1/stream", false},
		{"https scheme", "https://trusted.com/v1/stream", false},
		{"untrusted host", "wss://evil.example.com/v1/stream", false},
		{"lookalike prefix", "wss://nottrusted.com/v1/stream", false},
		{"lookalike suffix", "wss://trusted.com.evil.com/v1/stream", false},
		{"unparsable", "wss://trusted.com/%zz\x7f", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validateStreamingURL(tt.url, "trusted.com", false)
			if tt.ok && err != nil {
				t.Errorf("expected %q to be accepted, got %v", tt.url, err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatalf("expected %q to be rejected", tt.url)
				}
				if !IsErrorStatus(err, ErrorStatusInvalidStreamingURL) {
					t.Errorf("expected invalid_streaming_url, got %v", err)
				}
			}
		})
	}
}

func TestValidateStreamingURLAllowPlaintext(t *testing.T) {
	if _, err := validateStreamingURL("ws://127.0.0.1:8080/stream", "127.0.0.1", true); err != nil {
		t.Errorf("plaintext opt-in should accept ws URLs, got %v", err)
	}
	if _, err := validateStreamingURL("ws://evil.example.com/stream", "127.0.0.1", true); err == nil {
		t.Error("plaintext opt-in must not bypass the host check")
	}
}

func TestRedactURLDropsQuery(t *testing.T) {
	u, err := url.Parse("wss://voice.trusted.com/v1/stream?token=super-secret&x=1")
	if err != nil {
		t.Fatal(err)
	}
	redacted := redactURL(u)
	if strings.Contains(redacted, "super-secret") {
		t.Errorf("token leaked into redacted URL: %s", redacted)
	}
	if !strings.Contains(redacted, "voice.trusted.com/v1/stream") {
		t.Errorf("host and path should survive redaction: %s", redacted)
	}
}

func testTransportConfig() transportConfig {
	return transportConfig{
		trustedDomain:  "127.0.0.1",
		allowPlaintext: true,
		connectTimeout: 5 * time.Second,
		writeTimeout:   5 * time.Second,
	}
}

func TestSendEndOfMediaReportsWriteFailure(t *testing.T) {
	wsURL := startVoiceServer(t, func(conn *websocket.Conn, r *http.Request) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	closed := make(chan error, 1)
	cfg := testTransportConfig()
	cfg.writeTimeout = time.Nanosecond
	cfg.onClose = func(err error) { closed <- err }

	tr, err := dialTransport(context.Background(), Credential{StreamingURL: wsURL, Token: "tok"}, cfg)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer tr.Close()

	if err := tr.SendEndOfMedia(); err == nil {
		t.Fatal("expected the expired write deadline to surface as an error")
	}

	// A failed write must reach onClose so the session can react.
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("write failure never reached the close callback")
	}
}

func TestQueuedBytesAfterClose(t *testing.T) {
	wsURL := startVoiceServer(t, func(conn *websocket.Conn, r *http.Request) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	tr, err := dialTransport(context.Background(), Credential{StreamingURL: wsURL, Token: "tok"}, testTransportConfig())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if _, err := tr.SendChunk([]byte("audio")); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	tr.Close()

	// A frame can slip into the queue while the pump is exiting; stranded
	// bytes must not keep inflating the depth signal.
	tr.queued.Add(512)
	tr.sendq <- outboundFrame{data: make([]byte, 512)}

	if got := tr.QueuedBytes(); got != 0 {
		t.Errorf("expected zero queued bytes after close, got %d", got)
	}
	if _, err := tr.SendChunk([]byte("more")); err != ErrTransportNotOpen {
		t.Errorf("expected ErrTransportNotOpen after close, got %v", err)
	}
}
