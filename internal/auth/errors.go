package auth

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid auth flow transition")
	ErrFlowBusy          = errors.New("another auth operation is in progress")
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidToken      = errors.New("invalid session token")
	ErrChallengeNotFound = errors.New("otp challenge not found")
)

const (
	msgInvalidEmail   = "Unable to validate email address: invalid format"
	msgInvalidCode    = "Token has expired or is invalid"
	msgSendFailed     = "Error sending OTP email"
	msgSignInFailed   = "Unable to sign in right now. Please try again."
	msgRateLimitedFmt = "For security purposes, you can only request this after %d seconds."
)

// ProviderError carries a message meant to be shown to the user verbatim.
type ProviderError struct {
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func providerError(msg string, err error) *ProviderError {
	return &ProviderError{Message: msg, Err: err}
}
