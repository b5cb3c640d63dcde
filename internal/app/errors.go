package app

import (
	"errors"
	"fmt"

	"convoai/internal/quota"
)

var (
	ErrInvalidEmail         = errors.New("invalid email address")
	ErrEmailAlreadyExists   = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("incorrect email or password")
	ErrEmailNotVerified     = errors.New("email address not verified")
	ErrInvalidToken         = errors.New("invalid or expired token")
	ErrWeakPassword         = errors.New("password must be at least 8 characters")
	ErrEmptyMessage         = errors.New("message must not be empty")
	ErrConversationNotFound = errors.New("conversation not found")
)

// QuotaDeniedError carries the admission decision for a rejected chat
// request so the transport layer can map it to a status and Retry-After.
type QuotaDeniedError struct {
	Decision quota.Decision
}

func (e *QuotaDeniedError) Error() string {
	switch e.Decision.Reason {
	case quota.ReasonNoSubscription:
		return "no active subscription"
	case quota.ReasonDailyLimit:
		return fmt.Sprintf("daily limit of %d requests exceeded", e.Decision.Limit)
	case quota.ReasonMinuteLimit:
		return fmt.Sprintf("rate limit of %d requests per minute exceeded", e.Decision.Limit)
	}
	return "request denied"
}

// GenerationError marks a failure of the generation backend after admission.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
