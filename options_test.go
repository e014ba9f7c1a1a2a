package polyvox

import "testing"

func TestClientOptionsDefaults(t *testing.T) {
	opts := ClientOptions{}
	opts.applyDefaults()

	if opts.APIBaseURL != DefaultAPIBaseURL {
		t.Errorf("expected default API base URL, got %q", opts.APIBaseURL)
	}
	if opts.TrustedDomain != DefaultTrustedDomain {
		t.Errorf("expected default trusted domain, got %q", opts.TrustedDomain)
	}
	if opts.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("expected default connect timeout, got %v", opts.ConnectTimeout)
	}
	if opts.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("expected default write timeout, got %v", opts.WriteTimeout)
	}
	if opts.Logger == nil {
		t.Error("expected a no-op logger by default")
	}
}

func TestSessionOptionsDefaults(t *testing.T) {
	opts := SessionOptions{}
	opts.applyDefaults()

	if opts.Reconnect.Disabled {
		t.Error("reconnection should be enabled by default")
	}
	if opts.Reconnect.MaxAttempts != DefaultMaxReconnectAttempts {
		t.Errorf("expected %d default reconnect attempts, got %d",
			DefaultMaxReconnectAttempts, opts.Reconnect.MaxAttempts)
	}
}

func TestSessionOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		targets []string
		content string
		ok      bool
	}{
		{"one target", []string{"de"}, "audio/wav", true},
		{"five targets", []string{"de", "fr", "es", "it", "nl"}, "audio/wav", true},
		{"zero targets", nil, "audio/wav", false},
		{"six targets", []string{"de", "fr", "es", "it", "nl", "pt"}, "audio/wav", false},
		{"missing content type", []string{"de"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := SessionOptions{TargetLanguages: tt.targets, ContentType: tt.content}
			err := opts.Validate()
			if tt.ok && err != nil {
				t.Errorf("expected valid options, got %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !IsErrorStatus(err, ErrorStatusValidation) {
					t.Errorf("expected validation_error, got %v", err)
				}
			}
		})
	}
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"speech.wav", "audio/wav"},
		{"SPEECH.WAV", "audio/wav"},
		{"talk.mp3", "audio/mpeg"},
		{"voice.opus", "audio/opus"},
		{"raw.pcm", "audio/x-raw"},
		{"unknown.xyz", ""},
		{"noextension", ""},
	}
	for _, tt := range tests {
		if got := DetectContentType(tt.path); got != tt.want {
			t.Errorf("DetectContentType(%q): expected %q, got %q", tt.path, tt.want, got)
		}
	}
}
