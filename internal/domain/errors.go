package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyPaid       = errors.New("already paid")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrGatewayFailure    = errors.New("payment gateway failure")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrExpiredToken      = errors.New("token expired")
	ErrMalformedSession  = errors.New("malformed payment session")
)

// ValidationError carries per-field problems so the API can report them all
// at once instead of one at a time.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func NewInvalidTransition(from, to string) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

func NewInsufficientStock(product string, requested, available int) error {
	return fmt.Errorf("%w: %s: requested %d, available %d", ErrInsufficientStock, product, requested, available)
}
