package models

import "errors"

// Error taxonomy for the compensation engine. BrokenChain has no sentinel on
// purpose: a missing or dangling referrer edge is expected topology and is
// absorbed by truncating the ancestor walk.
var (
	// ErrValidation marks malformed or unknown input, rejected synchronously.
	ErrValidation = errors.New("validation failed")

	// ErrIntegrity marks upstream provisioning failures, e.g. an existing
	// member without a wallet row. Never healed silently.
	ErrIntegrity = errors.New("data integrity failure")

	// ErrConcurrencyConflict marks a write conflict on a contended ledger or
	// matrix row. Retried internally with bounded backoff before surfacing.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrWalletNotFound is returned by the wallet store when the owner has no
	// wallet row.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrInsufficientBalance rejects a withdrawal exceeding the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrSelfReferral rejects a member using their own referral code.
	ErrSelfReferral = errors.New("cannot use own referral code")

	// ErrReferralCycle rejects a referrer edge that would loop back to the
	// new member.
	ErrReferralCycle = errors.New("referral edge would create a cycle")

	// ErrReferralCodeNotFound rejects registration with an unknown code.
	ErrReferralCodeNotFound = errors.New("referral code not found")
)
