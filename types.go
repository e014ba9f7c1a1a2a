package polyvox

import "encoding/json"

// TranscriptSegment is one finalized or provisional piece of transcript.
// Segments are immutable once received and are appended in arrival order.
type TranscriptSegment struct {
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Language  string  `json:"language,omitempty"`
}

// Transcript holds the accumulated transcript for one language.
// Text is the space-joined concatenation of concluded segment texts only;
// tentative text is surfaced through callbacks and never persisted here.
type Transcript struct {
	Language string              `json:"language"`
	Segments []TranscriptSegment `json:"segments"`
	Text     string              `json:"text"`
}

// Credential is the connection credential obtained from negotiation.
// It is consumed exactly once to open one WebSocket connection. The token
// authorizes the stream and must never be logged in full.
type Credential struct {
	StreamingURL string `json:"streaming_url"`
	Token        string `json:"token"`
}

// NegotiatedSession is the result of creating a new voice session.
type NegotiatedSession struct {
	SessionID  string
	Credential Credential
}

// VoiceSessionResult is the sole successful return value of a voice session,
// constructed exactly once when the server reports end of stream.
type VoiceSessionResult struct {
	SessionID string        `json:"session_id"`
	Source    *Transcript   `json:"source"`
	Targets   []*Transcript `json:"targets"`
}

// --- Client → server messages ---

type sourceMediaChunk struct {
	Data string `json:"data"` // base64-encoded audio bytes
}

type clientMessage struct {
	SourceMediaChunk *sourceMediaChunk `json:"source_media_chunk,omitempty"`
	EndOfSourceMedia *struct{}         `json:"end_of_source_media,omitempty"`
}

func newChunkMessage(encoded string) clientMessage {
	return clientMessage{SourceMediaChunk: &sourceMediaChunk{Data: encoded}}
}

func newEndOfSourceMediaMessage() clientMessage {
	return clientMessage{EndOfSourceMedia: &struct{}{}}
}

// --- Server → client messages ---

// ServerMessage is the closed set of messages the server can send over the
// streaming connection. Every inbound frame decodes to exactly one variant.
type ServerMessage interface {
	isServerMessage()
}

// SourceTranscriptUpdate carries new transcript segments for the source
// language. Language is set per segment or at the top level when the server
// is auto-detecting the spoken language.
type SourceTranscriptUpdate struct {
	Language  string              `json:"language,omitempty"`
	Concluded []TranscriptSegment `json:"concluded"`
	Tentative []TranscriptSegment `json:"tentative"`
}

// TargetTranscriptUpdate carries new translated segments for one target language.
type TargetTranscriptUpdate struct {
	Language  string              `json:"language"`
	Concluded []TranscriptSegment `json:"concluded"`
	Tentative []TranscriptSegment `json:"tentative"`
}

// EndOfSourceTranscript marks the source transcript as complete.
type EndOfSourceTranscript struct{}

// EndOfTargetTranscript marks one target language's transcript as complete.
type EndOfTargetTranscript struct {
	Language string `json:"language"`
}

// EndOfStream marks the whole session as complete. This is the only message
// that resolves a session successfully.
type EndOfStream struct{}

// StreamError is a server-reported in-band protocol error. Always fatal.
type StreamError struct {
	RequestType  string `json:"requestType"`
	ErrorCode    string `json:"errorCode"`
	ReasonCode   string `json:"reasonCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (*SourceTranscriptUpdate) isServerMessage() {}
func (*TargetTranscriptUpdate) isServerMessage() {}
func (*EndOfSourceTranscript) isServerMessage()  {}
func (*EndOfTargetTranscript) isServerMessage()  {}
func (*EndOfStream) isServerMessage()            {}
func (*StreamError) isServerMessage()            {}

// serverEnvelope mirrors the wire format: a JSON object with exactly one
// top-level key identifying the message kind.
type serverEnvelope struct {
	SourceTranscriptUpdate *SourceTranscriptUpdate `json:"source_transcript_update"`
	TargetTranscriptUpdate *TargetTranscriptUpdate `json:"target_transcript_update"`
	EndOfSourceTranscript  *EndOfSourceTranscript  `json:"end_of_source_transcript"`
	EndOfTargetTranscript  *EndOfTargetTranscript  `json:"end_of_target_transcript"`
	EndOfStream            *EndOfStream            `json:"end_of_stream"`
	Error                  *StreamError            `json:"error"`
}

// decodeServerMessage parses one inbound frame. A nil message with a nil
// error means the frame carried no recognized variant and should be dropped
// as protocol noise (e.g. keepalives).
func decodeServerMessage(data []byte) (ServerMessage, error) {
	var env serverEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch {
	case env.SourceTranscriptUpdate != nil:
		return env.SourceTranscriptUpdate, nil
	case env.TargetTranscriptUpdate != nil:
		return env.TargetTranscriptUpdate, nil
	case env.EndOfSourceTranscript != nil:
		return env.EndOfSourceTranscript, nil
	case env.EndOfTargetTranscript != nil:
		return env.EndOfTargetTranscript, nil
	case env.EndOfStream != nil:
		return env.EndOfStream, nil
	case env.Error != nil:
		return env.Error, nil
	}
	return nil, nil
}
