package tx

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parsdao/pars-gov/config"
)

type GovTxType uint8

const (
	GovTxTypeCreateLock GovTxType = iota + 1
	GovTxTypeIncreaseAmount
	GovTxTypeExtendLock
	GovTxTypeWithdraw
	GovTxTypeDelegate
	GovTxTypePropose
	GovTxTypeActivate
	GovTxTypeCastVote
	GovTxTypeCastVoteBySig
	GovTxTypeQueue
	GovTxTypeExecute
	GovTxTypeCancel
	GovTxTypeVeto
	GovTxTypeSetParams
)

// CreateLockTx escrows Amount from the sender's balance for Duration
// seconds. Duration is rounded down to a whole number of epochs.
type CreateLockTx struct {
	Amount   *big.Int `json:"amount"`
	Duration uint64   `json:"duration"`
}

// IncreaseAmountTx adds Amount to the sender's existing lock without
// touching its unlock time.
type IncreaseAmountTx struct {
	Amount *big.Int `json:"amount"`
}

// ExtendLockTx moves the sender's unlock time to now+Duration, epoch
// aligned. The new end must be strictly later than the current one.
type ExtendLockTx struct {
	Duration uint64 `json:"duration"`
}

// WithdrawTx returns the full escrowed amount of an expired lock to the
// sender's balance.
type WithdrawTx struct{}

// DelegateTx points the sender's voting power at Delegatee. The zero
// address clears the delegation.
type DelegateTx struct {
	Delegatee common.Address `json:"delegatee"`
}

// ProposeTx submits a batch of actions as one proposal. The four arrays
// are parallel; entry i of each describes action i.
type ProposeTx struct {
	Targets     []common.Address `json:"targets"`
	Values      []*big.Int       `json:"values"`
	Signatures  []string         `json:"signatures"`
	Datas       [][]byte         `json:"datas"`
	Description string           `json:"description"`
}

// ActivateTx opens voting on a pending proposal once its delay has passed.
type ActivateTx struct {
	ProposalId uint64 `json:"proposalId"`
}

type CastVoteTx struct {
	ProposalId uint64 `json:"proposalId"`
	Support    uint8  `json:"support"`
	Reason     string `json:"reason"`
}

// CastVoteBySigTx relays a vote signed off-chain by the voter. Sig is a
// 65-byte secp256k1 signature over the council voting digest; the voter is
// recovered from it, the envelope sender only pays the nonce.
type CastVoteBySigTx struct {
	ProposalId uint64 `json:"proposalId"`
	Support    uint8  `json:"support"`
	Sig        []byte `json:"sig"`
}

type QueueTx struct {
	ProposalId uint64 `json:"proposalId"`
}

type ExecuteTx struct {
	ProposalId uint64 `json:"proposalId"`
}

type CancelTx struct {
	ProposalId uint64 `json:"proposalId"`
}

// VetoTx is the guardian's unilateral kill switch for a proposal that has
// not yet executed.
type VetoTx struct {
	ProposalId uint64 `json:"proposalId"`
}

// SetParamsTx replaces the governance parameter set. Only accepted when the
// tx executes through a proposal, or from the guardian.
type SetParamsTx struct {
	Params config.GovParams `json:"params"`
}
