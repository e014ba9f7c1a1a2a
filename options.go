package polyvox

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

const (
	DefaultAPIBaseURL           = "https://api.polyvox.com"
	DefaultTrustedDomain        = "polyvox.com"
	DefaultChunkSize            = 6400
	DefaultChunkInterval        = 200 * time.Millisecond
	DefaultMaxReconnectAttempts = 3
	DefaultConnectTimeout       = 30 * time.Second
	DefaultWriteTimeout         = 10 * time.Second

	// MaxTargetLanguages is the server-side cap on target languages per session.
	MaxTargetLanguages = 5
)

// ClientOptions configures a VoiceClient.
type ClientOptions struct {
	APIKey     string
	APIBaseURL string

	// TrustedDomain is the domain streaming URLs must belong to. A streaming
	// URL is accepted only if its hostname equals this domain or is a
	// subdomain of it.
	TrustedDomain string

	// AllowPlaintext permits ws:// streaming URLs. Only for local development
	// against an unencrypted endpoint; production streams are always wss.
	AllowPlaintext bool

	ConnectTimeout time.Duration
	WriteTimeout   time.Duration

	// Logger receives connection lifecycle logs. Tokens and URL query strings
	// are redacted before logging. Defaults to a no-op logger.
	Logger *zap.Logger
}

func (o *ClientOptions) applyDefaults() {
	if o.APIBaseURL == "" {
		o.APIBaseURL = DefaultAPIBaseURL
	}
	if o.TrustedDomain == "" {
		o.TrustedDomain = DefaultTrustedDomain
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// ReconnectPolicy bounds automatic resumption after an unexpected transport close.
type ReconnectPolicy struct {
	Disabled    bool
	MaxAttempts int
}

// SessionOptions configures one voice streaming session.
type SessionOptions struct {
	// SourceLanguage fixes the spoken language. Empty means auto-detect.
	SourceLanguage     string
	SourceLanguageMode string

	// TargetLanguages lists the translation targets, 1 to 5 entries.
	// Their order defines the ordering of transcripts in the result.
	TargetLanguages []string

	// ContentType is the MIME-like tag for the audio codec/container.
	ContentType string

	Formality  string
	GlossaryID string

	Reconnect ReconnectPolicy

	// Per-session observer callbacks. All run on the session's dispatch
	// goroutine and must not mutate the transcripts they are handed.
	OnStateChange           func(oldState, newState StreamState)
	OnSourceTranscript      func(update *SourceTranscriptUpdate)
	OnTargetTranscript      func(update *TargetTranscriptUpdate)
	OnEndOfSourceTranscript func()
	OnEndOfTargetTranscript func(language string)
	OnReconnect             func(attempt int)
}

func (o *SessionOptions) applyDefaults() {
	if o.Reconnect.MaxAttempts == 0 {
		o.Reconnect.MaxAttempts = DefaultMaxReconnectAttempts
	}
}

// Validate checks the session options before any network activity.
func (o *SessionOptions) Validate() error {
	var errs *multierror.Error
	if len(o.TargetLanguages) == 0 {
		errs = multierror.Append(errs, NewError(ErrorStatusValidation, "at least one target language is required"))
	}
	if len(o.TargetLanguages) > MaxTargetLanguages {
		errs = multierror.Append(errs, NewError(ErrorStatusValidation, "at most 5 target languages are supported"))
	}
	if o.ContentType == "" {
		errs = multierror.Append(errs, NewError(ErrorStatusValidation, "content type is required"))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return NewErrorWithCause(ErrorStatusValidation, "invalid session options", err)
	}
	return nil
}

var contentTypeByExtension = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".webm": "audio/webm",
	".pcm":  "audio/x-raw",
}

// DetectContentType maps a file extension to the audio content type expected
// by the service. Returns empty for unknown extensions; the caller must then
// pass the content type explicitly.
func DetectContentType(path string) string {
	return contentTypeByExtension[strings.ToLower(filepath.Ext(path))]
}
