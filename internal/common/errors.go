// Package common defines sentinel errors and small helpers shared by the
// payguard security packages. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal   = errors.New("internal error")
	ErrorValidation = errors.New("validation error")

	// Key management errors.
	ErrConfiguration    = errors.New("master secret is required to initialize encryption")
	ErrInvalidMasterKey = errors.New("invalid master key - unable to decrypt encryption keys")
	ErrDecryptionFailed = errors.New("decryption failed")

	// Login errors. The messages shown to end users live in the auth package;
	// these only classify the failure.
	ErrLockedOut          = errors.New("account locked")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
