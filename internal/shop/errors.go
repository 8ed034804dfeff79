package shop

import "errors"

// Redemption failure taxonomy. Every failure aborts the whole attempt with
// no partial effects: no payment taken, nothing minted, replay ledger
// untouched. Only the replay ledger's "signature already used" is permanent
// for a given signature; everything else leaves the voucher retryable.
var (
	ErrVoucherExpired     = errors.New("voucher expired")
	ErrUnauthorizedSigner = errors.New("unauthorized signer")
	ErrLengthMismatch     = errors.New("length mismatch")
	ErrEmptyBatch         = errors.New("empty batch")
	ErrPaymentFailed      = errors.New("payment failed")
)
