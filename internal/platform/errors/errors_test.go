package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	t.Parallel()

	base := New(CodeSlotAlreadySigned, "slot appointer already signed")
	other := New(CodeSlotAlreadySigned, "different message, same code")
	if !stderrors.Is(base, other) {
		t.Fatal("expected errors with the same code to match")
	}
	if stderrors.Is(base, New(CodeRecordNotFound, "missing")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("disk full")
	wrapped := Wrap(CodeUnknown, "persist record", cause)
	if !stderrors.Is(wrapped, cause) {
		t.Fatal("expected wrapped cause to be found in chain")
	}
}

func TestCodeOf(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("outer: %w", New(CodeTokenExpired, "token is expired"))
	if got := CodeOf(err); got != CodeTokenExpired {
		t.Fatalf("expected TOKEN_EXPIRED, got %s", got)
	}
	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("expected UNKNOWN for plain error, got %s", got)
	}
	if got := CodeOf(nil); got != CodeUnknown {
		t.Fatalf("expected UNKNOWN for nil error, got %s", got)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code Code
		want int
	}{
		{CodeRecordNotFound, http.StatusNotFound},
		{CodeSlotAlreadySigned, http.StatusConflict},
		{CodeRecordNotSignable, http.StatusConflict},
		{CodeVoterAlreadyVoted, http.StatusConflict},
		{CodeElectionNotOpen, http.StatusConflict},
		{CodeTokenExpired, http.StatusUnauthorized},
		{CodeTokenAlreadyConsumed, http.StatusUnauthorized},
		{CodeSignatureEmpty, http.StatusBadRequest},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("code %s: expected status %d, got %d", tc.code, tc.want, got)
		}
	}
}

func TestTokenSecurityClass(t *testing.T) {
	t.Parallel()

	for _, code := range []Code{CodeTokenNotFound, CodeTokenExpired, CodeTokenAlreadyConsumed, CodeTokenSuperseded, CodeTokenTargetMismatch, CodeTokenGrantInvalid} {
		if !code.TokenSecurity() {
			t.Fatalf("expected %s to be token-security", code)
		}
	}
	if CodeSlotAlreadySigned.TokenSecurity() {
		t.Fatal("expected SLOT_ALREADY_SIGNED not to be token-security")
	}
}
