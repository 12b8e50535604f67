// Package common defines sentinel errors shared by the repository, service and
// HTTP layers. Callers should match them with errors.Is.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Identity and access.
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Request validation.
	ErrValidation = errors.New("validation failed")

	// Compilation and deployment.
	ErrCompilation = errors.New("compilation failed")
	ErrNotCompiled = errors.New("contract has not been compiled")

	// Collaborators outside the process.
	ErrExternalService = errors.New("external service failure")
	ErrNotConfigured   = errors.New("not configured")
)
