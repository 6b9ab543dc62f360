package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrValidation             = errors.New("validation failed")
	ErrStageNotPayable        = errors.New("stage not payable")
	ErrAlreadyPaid            = errors.New("stage already paid")
	ErrConcurrentModification = errors.New("request was modified concurrently")
	ErrGatewayFailure         = errors.New("payment gateway failure")
	// ErrProcessingPending means the gateway took the money but recording it
	// failed; a reconciliation task has been queued
	ErrProcessingPending = errors.New("payment received, processing pending")
	// ErrPaymentHeld comes wrapped with ErrProcessingPending when settled
	// funds were stored as unapplied because the stage could not take them
	ErrPaymentHeld       = errors.New("payment held for review")
	ErrPaymentInProgress = errors.New("payment initiation already in progress")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnauthorized      = errors.New("unauthorized")
	// ErrNumberUnavailable means no free request number was found; retrying helps
	ErrNumberUnavailable = errors.New("request number unavailable")
)

// ValidationError lists the missing or invalid input fields
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(fields []string) *ValidationError {
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return &ValidationError{Fields: out}
}
