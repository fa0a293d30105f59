package util

import "errors"

var (
	ErrServer               = errors.New("server error")
	ErrTestNotPublished     = errors.New("test not published or not accessible")
	ErrTestAlreadySubmitted = errors.New("test already submitted")
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrAttemptExpired       = errors.New("attempt expired")
	ErrRevealNotAllowed     = errors.New("reveal only available in practice mode")
	ErrSessionNotReady      = errors.New("session not ready")
	ErrNoQuestions          = errors.New("question set has no questions")
)
