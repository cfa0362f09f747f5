package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the ledger sync service
var (
	// Credential errors
	ErrNotFound       = errors.New("not found")
	ErrTokenCorrupted = errors.New("token corrupted or encrypted under a different key")
	ErrNotAuthorised  = errors.New("user has not authorised the application")

	// Session errors
	ErrAuthFailure   = errors.New("access token rejected after refresh")
	ErrRefreshFailed = errors.New("token refresh failed")
	ErrStateMismatch = errors.New("authorization state mismatch")

	// Transport errors
	ErrRateLimitUnknown  = errors.New("unknown rate limit problem")
	ErrProtocol          = errors.New("unexpected response from provider")
	ErrMalformedResponse = errors.New("malformed response")

	// Client errors
	ErrTenantNotSet = errors.New("tenant id not set")

	// Sync errors
	ErrSyncInProgress = errors.New("sync already in progress for tenant")
	ErrPersistFailed  = errors.New("failed while writing to db")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
