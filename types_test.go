package polyvox

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeServerMessage(t *testing.T) {
	tests := []struct {
		name string
		data string
		want func(ServerMessage) bool
	}{
		{
			name: "source update",
			data: `{"source_transcript_update":{"concluded":[{"text":"hello","start_time":0,"end_time":1}],"tentative":[]}}`,
			want: func(m ServerMessage) bool {
				u, ok := m.(*SourceTranscriptUpdate)
				return ok && len(u.Concluded) == 1 && u.Concluded[0].Text == "hello"
			},
		},
		{
			name: "target update",
			data: `{"target_transcript_update":{"language":"de","concluded":[],"tentative":[{"text":"hal","start_time":0,"end_time":0.5}]}}`,
			want: func(m ServerMessage) bool {
				u, ok := m.(*TargetTranscriptUpdate)
				return ok && u.Language == "de" && len(u.Tentative) == 1
			},
		},
		{
			name: "end of source transcript",
			data: `{"end_of_source_transcript":{}}`,
			want: func(m ServerMessage) bool { _, ok := m.(*EndOfSourceTranscript); return ok },
		},
		{
			name: "end of target transcript",
			data: `{"end_of_target_transcript":{"language":"fr"}}`,
			want: func(m ServerMessage) bool {
				u, ok := m.(*EndOfTargetTranscript)
				return ok && u.Language == "fr"
			},
		},
		{
			name: "end of stream",
			data: `{"end_of_stream":{}}`,
			want: func(m ServerMessage) bool { _, ok := m.(*EndOfStream); return ok },
		},
		{
			name: "error",
			data: `{"error":{"requestType":"stream","errorCode":"E123","reasonCode":"plan_ineligible","errorMessage":"nope"}}`,
			want: func(m ServerMessage) bool {
				u, ok := m.(*StreamError)
				return ok && u.ErrorCode == "E123" && u.ErrorMessage == "nope"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := decodeServerMessage([]byte(tt.data))
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if msg == nil {
				t.Fatal("expected a message, got nil")
			}
			if !tt.want(msg) {
				t.Errorf("decoded to unexpected variant: %#v", msg)
			}
		})
	}
}

func TestDecodeServerMessageUnknownKind(t *testing.T) {
	msg, err := decodeServerMessage([]byte(`{"keepalive":{}}`))
	if err != nil {
		t.Fatalf("unknown kinds are protocol noise, not errors: %v", err)
	}
	if msg != nil {
		t.Errorf("expected nil message for unknown kind, got %#v", msg)
	}
}

func TestDecodeServerMessageMalformed(t *testing.T) {
	if _, err := decodeServerMessage([]byte("not json at all")); err == nil {
		t.Error("expected error for malformed frame")
	}
}

func TestClientMessageWireFormat(t *testing.T) {
	data, err := json.Marshal(newChunkMessage("AAEC"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"source_media_chunk":{"data":"AAEC"}}` {
		t.Errorf("unexpected chunk message: %s", data)
	}

	data, err = json.Marshal(newEndOfSourceMediaMessage())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"end_of_source_media":{}`) {
		t.Errorf("unexpected end-of-media message: %s", data)
	}
	if strings.Contains(string(data), "source_media_chunk") {
		t.Errorf("messages must carry exactly one top-level key: %s", data)
	}
}
