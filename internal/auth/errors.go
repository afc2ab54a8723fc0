package auth

import (
	"errors"
	"fmt"
)

// Error codes reported by the provider.
const (
	CodeEmailInUse        = "auth/email-already-in-use"
	CodeInvalidEmail      = "auth/invalid-email"
	CodeWeakPassword      = "auth/weak-password"
	CodeMissingFields     = "auth/missing-fields"
	CodeUserNotFound      = "auth/user-not-found"
	CodeWrongPassword     = "auth/wrong-password"
	CodeInvalidCredential = "auth/invalid-credential"
	CodeTooManyRequests   = "auth/too-many-requests"
	CodeInternal          = "auth/internal-error"
)

// Error is a provider failure with a stable code. Msg, when set, is the
// validation message shown by the sign-up form.
type Error struct {
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "":
		return e.Code + ": " + e.Msg
	case e.Err != nil:
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

func internalError(op string, err error) *Error {
	return &Error{Code: CodeInternal, Err: fmt.Errorf("%s: %w", op, err)}
}

// CodeOf returns the provider code carried by err, or "" when err is not an
// auth error.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

var banners = map[string]string{
	CodeEmailInUse:        "Email is already in use.",
	CodeInvalidEmail:      "Invalid email format.",
	CodeWeakPassword:      "Password is too weak. Must be at least 6 characters.",
	CodeMissingFields:     "All fields are required.",
	CodeUserNotFound:      "Invalid email or password.",
	CodeWrongPassword:     "Invalid email or password.",
	CodeInvalidCredential: "Invalid email or password.",
	CodeTooManyRequests:   "Too many attempts. Please try again later.",
}

const defaultBanner = "An unexpected error occurred. Please try again."

// BannerMessage maps err to the user-facing banner text.
func BannerMessage(err error) string {
	if msg, ok := banners[CodeOf(err)]; ok {
		return msg
	}
	return defaultBanner
}

// FormMessage is what the sign-up form shows: the validation message when the
// form itself was rejected, the banner otherwise.
func FormMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Msg != "" {
		return ae.Msg
	}
	return BannerMessage(err)
}
