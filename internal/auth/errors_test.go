package auth

import (
	"errors"
	"fmt"
	"testing"
)

func TestBannerMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{newError(CodeEmailInUse, nil), "Email is already in use."},
		{newError(CodeInvalidEmail, nil), "Invalid email format."},
		{newError(CodeWeakPassword, nil), "Password is too weak. Must be at least 6 characters."},
		{newError(CodeMissingFields, nil), "All fields are required."},
		{newError(CodeUserNotFound, nil), "Invalid email or password."},
		{newError(CodeWrongPassword, nil), "Invalid email or password."},
		{newError(CodeInvalidCredential, nil), "Invalid email or password."},
		{ErrTooManyRequests, "Too many attempts. Please try again later."},
		{fmt.Errorf("wrapped: %w", newError(CodeEmailInUse, nil)), "Email is already in use."},
		{newError("auth/network-request-failed", nil), "An unexpected error occurred. Please try again."},
		{errors.New("boom"), "An unexpected error occurred. Please try again."},
	}
	for _, tt := range tests {
		if got := BannerMessage(tt.err); got != tt.want {
			t.Errorf("BannerMessage(%v) = %q; want %q", tt.err, got, tt.want)
		}
	}
}

func TestFormMessagePrefersValidationText(t *testing.T) {
	err := &Error{Code: CodeWeakPassword, Msg: "Password must be at least 6 characters long."}
	if got := FormMessage(err); got != err.Msg {
		t.Errorf("FormMessage = %q", got)
	}
	if got := FormMessage(newError(CodeWeakPassword, nil)); got != "Password is too weak. Must be at least 6 characters." {
		t.Errorf("FormMessage without Msg = %q", got)
	}
}
