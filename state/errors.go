package state

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrOneActionInOneBlock = errors.New("one action per account per block")
)

// Tx envelope and account errors.
var (
	ErrTxSenderNoexists     = errors.New("sender noexists")
	ErrTxNonceInvalid       = errors.New("nonce invalid")
	ErrTxSigInvalid         = errors.New("signature invalid")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrAccountNoexists      = errors.New("account noexists")
	ErrInsufficientBalance  = errors.New("insufficient balance")
)

// Lock ledger errors.
var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrLockAlreadyExists = errors.New("lock already exists")
	ErrNoExistingLock    = errors.New("no existing lock")
	ErrLockExpired       = errors.New("lock expired")
	ErrLockNotExpired    = errors.New("lock not expired")
	ErrMaxLockExceeded   = errors.New("max lock exceeded")
)

// Delegation errors.
var (
	ErrInvalidDelegatee = errors.New("invalid delegatee")
)

// Voting-power query errors.
var (
	ErrHeightNotPast = errors.New("height not yet past")
)

// Council errors.
var (
	ErrProposalNoexists  = errors.New("proposal noexists")
	ErrSupplyTooLow      = errors.New("total supply too low")
	ErrThresholdNotMet   = errors.New("proposal threshold not met")
	ErrBelowThreshold    = errors.New("proposer below threshold")
	ErrAboveThreshold    = errors.New("proposer above threshold")
	ErrAlreadyPending    = errors.New("proposer already has a pending proposal")
	ErrAlreadyActive     = errors.New("proposer already has an active proposal")
	ErrAlreadyActivated  = errors.New("proposal already activated")
	ErrAlreadyVoted      = errors.New("already voted")
	ErrAlreadyQueued     = errors.New("proposal action already queued")
	ErrAlreadyExecuted   = errors.New("proposal already executed")
	ErrVoteClosed        = errors.New("vote closed")
	ErrNotQueued         = errors.New("proposal not queued")
	ErrFailedProposal    = errors.New("proposal not in succeeded state")
	ErrIdInvalid         = errors.New("proposal id invalid")
	ErrTooEarly          = errors.New("too early")
	ErrInvalidVoteType   = errors.New("invalid vote type")
	ErrInvalidSignature  = errors.New("invalid vote signature")
	ErrLengthMismatch    = errors.New("action arrays length mismatch")
	ErrNoActions         = errors.New("no actions")
	ErrTooManyActions    = errors.New("too many actions")
	ErrNotGuardian       = errors.New("caller is not the guardian")
	ErrParamOutOfBounds  = errors.New("param out of bounds")
)
