package polyvox

import (
	"strings"
	"testing"
)

func TestNewError(t *testing.T) {
	err := NewError(ErrorStatusNegotiation, "boom")
	if err.Status != ErrorStatusNegotiation {
		t.Errorf("expected status %s, got %s", ErrorStatusNegotiation, err.Status)
	}
	if err.Message != "boom" {
		t.Errorf("expected message %q, got %q", "boom", err.Message)
	}
	if err.Cause != nil {
		t.Error("expected nil cause")
	}
}

func TestNewStreamErrorCarriesServerCodes(t *testing.T) {
	err := NewStreamError("quota exhausted", "E042", "plan_ineligible")
	if err.Status != ErrorStatusVoiceStream {
		t.Errorf("expected voice_stream_error, got %s", err.Status)
	}
	if err.Code != "E042" || err.ReasonCode != "plan_ineligible" {
		t.Errorf("server codes lost: %#v", err)
	}
	if !strings.Contains(err.Error(), "code=E042") {
		t.Errorf("Error() should contain the server code: %s", err.Error())
	}
}

func TestNewErrorWithCauseUnwraps(t *testing.T) {
	cause := NewError(ErrorStatusIO, "read failed")
	err := NewErrorWithCause(ErrorStatusUnexpectedClose, "closed", cause)
	if err.Unwrap() != cause {
		t.Error("Unwrap should return cause")
	}
}

func TestIsErrorStatus(t *testing.T) {
	err := NewError(ErrorStatusValidation, "bad options")
	if !IsErrorStatus(err, ErrorStatusValidation) {
		t.Error("expected IsErrorStatus to match")
	}
	if IsErrorStatus(err, ErrorStatusCanceled) {
		t.Error("expected IsErrorStatus to reject a different status")
	}
	if IsErrorStatus(nil, ErrorStatusCanceled) {
		t.Error("nil error matches nothing")
	}
}
