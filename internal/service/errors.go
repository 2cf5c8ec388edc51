package service

import "errors"

// Common service errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrShutdownIncomplete = errors.New("shutdown did not finish in time")
)

// Interview service specific errors
var (
	ErrNotJoined        = errors.New("join the interview pool first")
	ErrIdentityMismatch = errors.New("connection is bound to a different user")
	ErrAlreadyInSession = errors.New("already in an interview session")
)

// Execution service specific errors
var (
	ErrExecutionUnavailable = errors.New("code execution service unavailable")
)
