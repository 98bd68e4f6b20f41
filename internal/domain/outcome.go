// internal/domain/outcome.go
package domain

// Outcome is the closed set of results a status query can classify into.
type Outcome string

const (
	OutcomeConfirmed Outcome = "CONFIRMED"
	OutcomeCancelled Outcome = "CANCELLED"
	OutcomeTimedOut  Outcome = "TIMED_OUT"
	OutcomeFailed    Outcome = "FAILED"
	OutcomePending   Outcome = "PENDING"
	OutcomeError     Outcome = "ERROR"
)

// IsTerminal reports whether the payer side of the payment is settled.
func (o Outcome) IsTerminal() bool {
	switch o {
	case OutcomeConfirmed, OutcomeCancelled, OutcomeTimedOut, OutcomeFailed:
		return true
	}
	return false
}

// FailureKind refines OutcomeFailed.
type FailureKind string

const (
	FailureInsufficientFunds FailureKind = "insufficient_funds"
	FailureBadCredential     FailureKind = "bad_credential"
	FailureDeclined          FailureKind = "declined"
)

// ErrorKind refines OutcomeError.
type ErrorKind string

const (
	ErrorKindClient         ErrorKind = "client_error"
	ErrorKindQueryExhausted ErrorKind = "query_exhausted"
	ErrorKindCredentials    ErrorKind = "credentials"
	ErrorKindCanceled       ErrorKind = "canceled"
)

// Exhaustion tells a caller why a status query gave up.
type Exhaustion string

const (
	ExhaustionStillPending  Exhaustion = "still_pending"
	ExhaustionIndeterminate Exhaustion = "indeterminate"
)

// TargetStatus maps a terminal non-success outcome to the pending-transaction
// status it resolves to. CONFIRMED has no target: completion needs the
// receipt that only the callback carries.
func (o Outcome) TargetStatus() (TransactionStatus, bool) {
	switch o {
	case OutcomeCancelled, OutcomeFailed:
		return TxStatusFailed, true
	case OutcomeTimedOut:
		return TxStatusTimeout, true
	}
	return "", false
}

// FailureReason is the tagged reason on a failed STK push result.
type FailureReason string

const (
	ReasonMissingFields          FailureReason = "MISSING_FIELDS"
	ReasonAmountTooLow           FailureReason = "AMOUNT_TOO_LOW"
	ReasonMisconfiguredEndpoints FailureReason = "MISCONFIGURED_ENDPOINTS"
	ReasonMissingCredentials     FailureReason = "MISSING_CREDENTIALS"
	ReasonTokenRequestFailed     FailureReason = "TOKEN_REQUEST_FAILED"
	ReasonInvalidPhoneNumber     FailureReason = "INVALID_PHONE_NUMBER"
	ReasonRequestRejected        FailureReason = "REQUEST_REJECTED"
)

// IsValidation reports reasons caused by caller input.
func (r FailureReason) IsValidation() bool {
	switch r {
	case ReasonMissingFields, ReasonAmountTooLow, ReasonInvalidPhoneNumber:
		return true
	}
	return false
}

// IsConfiguration reports reasons caused by deployment configuration.
func (r FailureReason) IsConfiguration() bool {
	return r == ReasonMissingCredentials || r == ReasonMisconfiguredEndpoints
}
