package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCodeUnresolvableKnot, "knot %q not found", "shade")
	if got, want := err.Error(), `UNRESOLVABLE_KNOT: knot "shade" not found`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	cause := errors.New("connection refused")
	wrapped := Wrap(ErrCodeNetwork, cause, "fetch layer %s", "terrain")
	if got, want := wrapped.Error(), "NETWORK_ERROR: fetch layer terrain: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(wrapped, cause) || errors.Unwrap(wrapped) != cause {
		t.Error("wrapped error should unwrap to its cause")
	}
}

func TestCodeLookup(t *testing.T) {
	join := New(ErrCodeDataIntegrity, "joined dataset for %s not applied", "terrain")
	chained := fmt.Errorf("process knot shade: %w", join)
	nested := Wrap(ErrCodeNetwork, New(ErrCodeInvalidInput, "inner"), "outer")

	tests := []struct {
		name     string
		err      error
		code     Code
		is       bool
		wantCode Code
	}{
		{"direct", join, ErrCodeDataIntegrity, true, ErrCodeDataIntegrity},
		{"through fmt wrap", chained, ErrCodeDataIntegrity, true, ErrCodeDataIntegrity},
		{"other code", join, ErrCodeNetwork, false, ErrCodeDataIntegrity},
		{"outermost code wins", nested, ErrCodeNetwork, true, ErrCodeNetwork},
		{"plain error", errors.New("boom"), ErrCodeInternal, false, ""},
		{"nil", nil, ErrCodeInternal, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.is {
				t.Errorf("Is() = %v, want %v", got, tt.is)
			}
			if got := GetCode(tt.err); got != tt.wantCode {
				t.Errorf("GetCode() = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeNotReady, "scene is initializing")); got != "scene is initializing" {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := UserMessage(errors.New("plain")); got != "plain" {
		t.Errorf("UserMessage() = %q", got)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		http int
		exit int
	}{
		{"invalid grammar", New(ErrCodeInvalidGrammar, "bad"), 400, 2},
		{"unresolvable knot", New(ErrCodeUnresolvableKnot, "k"), 404, 3},
		{"layer not found", New(ErrCodeLayerNotFound, "roads"), 404, 3},
		{"not ready", New(ErrCodeNotReady, "init"), 503, 1},
		{"data integrity", New(ErrCodeDataIntegrity, "join"), 422, 4},
		{"wrapped network", Wrap(ErrCodeNetwork, errors.New("dial"), "fetch"), 502, 5},
		{"plain", errors.New("boom"), 500, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.http {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.http)
			}
			if got := ExitCode(tt.err); got != tt.exit {
				t.Errorf("ExitCode() = %d, want %d", got, tt.exit)
			}
		})
	}
	if ExitCode(nil) != 0 {
		t.Error("ExitCode(nil) should be 0")
	}
}
