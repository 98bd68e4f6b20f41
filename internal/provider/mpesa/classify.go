// internal/provider/mpesa/classify.go
package mpesa

import (
	"encoding/json"
	"strings"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
)

// Classification is the outcome read from a provider result description.
type Classification struct {
	Outcome     domain.Outcome     `json:"outcome"`
	FailureKind domain.FailureKind `json:"failure_kind,omitempty"`
}

type keywordGroup struct {
	keywords []string
	result   Classification
}

// Order matters: the first matching group wins.
var descriptionGroups = []keywordGroup{
	{[]string{"success", "successfully"}, Classification{Outcome: domain.OutcomeConfirmed}},
	{[]string{"cancel", "cancelled"}, Classification{Outcome: domain.OutcomeCancelled}},
	{[]string{"timeout", "timed out", "expired"}, Classification{Outcome: domain.OutcomeTimedOut}},
	{[]string{"insufficient", "balance"}, Classification{Outcome: domain.OutcomeFailed, FailureKind: domain.FailureInsufficientFunds}},
	{[]string{"pin", "password", "wrong"}, Classification{Outcome: domain.OutcomeFailed, FailureKind: domain.FailureBadCredential}},
}

// negatedSuccess phrases contain a success keyword but report the opposite.
var negatedSuccess = []string{"unsuccessful", "not successful", "not success", "not processed successfully", "not completed successfully"}

var processingKeywords = []string{"processing", "being processed"}

// ClassifyDescription maps a free-text result description to an outcome.
// Unrecognized text is PENDING, not an error. A negated success never
// confirms: it falls through to the other groups and is FAILED (declined)
// when none of them match.
func ClassifyDescription(desc string) Classification {
	lower := strings.ToLower(desc)
	negated := containsAny(lower, negatedSuccess)
	for _, g := range descriptionGroups {
		if negated && g.result.Outcome == domain.OutcomeConfirmed {
			continue
		}
		if containsAny(lower, g.keywords) {
			return g.result
		}
	}
	if negated {
		return Classification{Outcome: domain.OutcomeFailed, FailureKind: domain.FailureDeclined}
	}
	return Classification{Outcome: domain.OutcomePending}
}

type errorBodyKind int

const (
	errorBodyUnknown errorBodyKind = iota
	errorBodyProcessing
	errorBodyTerminal
)

// classifyErrorBody inspects a non-2xx body. Only the provider's own error
// envelope (errorCode and errorMessage) is read; proxy and gateway bodies are
// unknown whatever their text says. Within the envelope only "still
// processing" and the cancel and timeout groups are recognized.
func classifyErrorBody(body []byte) (errorBodyKind, Classification) {
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil || e.ErrorCode == "" || e.ErrorMessage == "" {
		return errorBodyUnknown, Classification{}
	}
	lower := strings.ToLower(e.ErrorMessage)

	if containsAny(lower, processingKeywords) {
		return errorBodyProcessing, Classification{Outcome: domain.OutcomePending}
	}

	c := ClassifyDescription(lower)
	switch c.Outcome {
	case domain.OutcomeCancelled, domain.OutcomeTimedOut:
		return errorBodyTerminal, c
	}

	return errorBodyUnknown, Classification{}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
