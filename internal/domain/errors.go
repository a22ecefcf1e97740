package domain

import "errors"

// Error is a sentinel carrying the machine-readable code surfaced to API
// callers. Wrap it with fmt.Errorf("...: %w", ErrX) to add detail.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrValidation          = newError("validation_error", "validation failed")
	ErrUnauthorized        = newError("unauthorized", "unauthorized")
	ErrRateLimited         = newError("rate_limited", "rate limited")
	ErrNotFound            = newError("not_found", "not found")
	ErrConflict            = newError("conflict", "state does not permit this transition")
	ErrBoardClosed         = newError("board_closed", "dream board is not accepting contributions")
	ErrProviderUnavailable = newError("provider_unavailable", "payment provider is not available")
	ErrPaymentFailed       = newError("payment_failed", "payment could not be started")

	ErrInvalidSignature = newError("invalid_signature", "invalid signature")
	ErrInvalidPayload   = newError("invalid_payload", "invalid payload")
	ErrMissingReference = newError("missing_reference", "missing payment reference")
	ErrAmountMissing    = newError("amount_missing", "missing amount")
	ErrAmountMismatch   = newError("amount_mismatch", "amount does not match")
	ErrInvalidTimestamp = newError("invalid_timestamp", "timestamp outside accepted window")
	ErrInvalidSource    = newError("invalid_source", "notification source not allowed")

	ErrAutomationDisabled    = newError("automation_disabled", "payout automation is disabled")
	ErrUnsupportedPayoutType = newError("unsupported_payout_type", "payout type has no automation")
	ErrNotReadyForPayout     = newError("not_ready_for_payout", "dream board is not ready for payout")
)

// CodeOf returns the code of the first domain error in err's chain, or
// "internal" when there is none.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "internal"
}
