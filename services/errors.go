package services

import (
	"errors"
	"fmt"
)

// Failures surfaced by the account, content and moderation services.
// Callers match them with errors.Is.
var (
	ErrDuplicateUsername     = errors.New("username already taken")
	ErrInvalidCredentials    = errors.New("invalid username or password")
	ErrAccountBanned         = errors.New("account is banned")
	ErrAccountNotFound       = errors.New("account not found")
	ErrPostNotFound          = errors.New("post not found")
	ErrCommentNotFound       = errors.New("comment not found")
	ErrParentCommentNotFound = errors.New("parent comment not found on this post")
	ErrNotificationNotFound  = errors.New("notification not found")
	ErrAccessDenied          = errors.New("access denied")
	ErrInvalidInput          = errors.New("invalid input")
	ErrBootstrapCredential   = errors.New("admin bootstrap credential not configured")

	// ErrStorageUnavailable wraps every failure of the underlying database. It is never retried here.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

var domainErrors = []error{
	ErrDuplicateUsername,
	ErrInvalidCredentials,
	ErrAccountBanned,
	ErrAccountNotFound,
	ErrPostNotFound,
	ErrCommentNotFound,
	ErrParentCommentNotFound,
	ErrNotificationNotFound,
	ErrAccessDenied,
	ErrInvalidInput,
	ErrBootstrapCredential,
	ErrStorageUnavailable,
}

// classify passes domain errors through and wraps anything else as ErrStorageUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
