// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// Validation
var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrAmountTooLow       = errors.New("amount is below the minimum unit")
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
)

// Configuration
var (
	ErrMissingCredentials     = errors.New("provider consumer key and secret are required")
	ErrMisconfiguredEndpoints = errors.New("callback and timeout urls must be configured")
)

// Provider
var (
	ErrTokenRequestFailed = errors.New("token request failed")
	ErrRequestRejected    = errors.New("payment request rejected")
	ErrClientError        = errors.New("provider rejected query")
	ErrQueryExhausted     = errors.New("status query attempts exhausted")
)

// Store
var (
	ErrProjectNotFound     = errors.New("project not found or inactive")
	ErrTransactionNotFound = errors.New("pending transaction not found")
	ErrInvalidPayload      = errors.New("invalid provider payload")
)

// InvalidPhoneNumberError carries the input that failed normalization.
type InvalidPhoneNumberError struct {
	Input string
}

func (e *InvalidPhoneNumberError) Error() string {
	return fmt.Sprintf("invalid phone number: %q", e.Input)
}

func (e *InvalidPhoneNumberError) Unwrap() error {
	return ErrInvalidPhoneNumber
}

// TokenRequestError is returned when the OAuth endpoint answers non-2xx.
type TokenRequestError struct {
	StatusCode int
	Body       string
}

func (e *TokenRequestError) Error() string {
	return fmt.Sprintf("token request failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *TokenRequestError) Unwrap() error {
	return ErrTokenRequestFailed
}
