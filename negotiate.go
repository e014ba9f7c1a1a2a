package polyvox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Negotiator performs the REST exchange that yields WebSocket connection
// credentials for a voice session.
type Negotiator interface {
	// CreateSession creates a new voice session and returns its first credential.
	CreateSession(ctx context.Context, req *CreateSessionRequest) (*NegotiatedSession, error)

	// RenewCredential obtains a fresh credential for an existing session,
	// keyed by the most recent token. The returned token replaces it.
	RenewCredential(ctx context.Context, token string) (*Credential, error)
}

// CreateSessionRequest is the body of the session-creation call.
type CreateSessionRequest struct {
	SourceLanguage     string   `json:"source_language,omitempty"`
	SourceLanguageMode string   `json:"source_language_mode,omitempty"`
	TargetLanguages    []string `json:"target_languages"`
	ContentType        string   `json:"content_type"`
	Formality          string   `json:"formality,omitempty"`
	GlossaryID         string   `json:"glossary_id,omitempty"`
}

type createSessionResponse struct {
	StreamingURL string `json:"streaming_url"`
	Token        string `json:"token"`
	SessionID    string `json:"session_id"`
}

type renewResponse struct {
	StreamingURL string `json:"streaming_url"`
	Token        string `json:"token"`
}

type restNegotiator struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func newRESTNegotiator(opts ClientOptions) *restNegotiator {
	return &restNegotiator{
		baseURL:    opts.APIBaseURL,
		apiKey:     opts.APIKey,
		httpClient: &http.Client{Timeout: opts.ConnectTimeout},
		logger:     opts.Logger,
	}
}

func (n *restNegotiator) CreateSession(ctx context.Context, req *CreateSessionRequest) (*NegotiatedSession, error) {
	var resp createSessionResponse
	if err := n.post(ctx, "/v1/voice/sessions", n.apiKey, req, &resp); err != nil {
		return nil, err
	}
	n.logger.Debug("voice session created", zap.String("session_id", resp.SessionID))
	return &NegotiatedSession{
		SessionID: resp.SessionID,
		Credential: Credential{
			StreamingURL: resp.StreamingURL,
			Token:        resp.Token,
		},
	}, nil
}

func (n *restNegotiator) RenewCredential(ctx context.Context, token string) (*Credential, error) {
	var resp renewResponse
	if err := n.post(ctx, "/v1/voice/sessions/renew", token, struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &Credential{StreamingURL: resp.StreamingURL, Token: resp.Token}, nil
}

func (n *restNegotiator) post(ctx context.Context, path, bearer string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return NewErrorWithCause(ErrorStatusNegotiation, "failed to encode negotiation request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return NewErrorWithCause(ErrorStatusNegotiation, "failed to build negotiation request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+bearer)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	httpResp, err := n.httpClient.Do(httpReq)
	if err != nil {
		return NewErrorWithCause(ErrorStatusNegotiation, "negotiation request failed", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		msg := fmt.Sprintf("negotiation returned status %d", httpResp.StatusCode)
		if len(data) > 0 {
			msg += ": " + string(data)
		}
		return NewError(ErrorStatusNegotiation, msg)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return NewErrorWithCause(ErrorStatusNegotiation, "failed to decode negotiation response", err)
	}
	return nil
}
