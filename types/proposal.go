package types

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ProposalState is derived from stored flags and the current height/time,
// never stored directly.
type ProposalState uint8

const (
	ProposalStatePending ProposalState = iota
	ProposalStateActive
	ProposalStateCanceled
	ProposalStateDefeated
	ProposalStateSucceeded
	ProposalStateQueued
	ProposalStateExpired
	ProposalStateExecuted
	ProposalStateVetoed
)

func (s ProposalState) String() string {
	switch s {
	case ProposalStatePending:
		return "Pending"
	case ProposalStateActive:
		return "Active"
	case ProposalStateCanceled:
		return "Canceled"
	case ProposalStateDefeated:
		return "Defeated"
	case ProposalStateSucceeded:
		return "Succeeded"
	case ProposalStateQueued:
		return "Queued"
	case ProposalStateExpired:
		return "Expired"
	case ProposalStateExecuted:
		return "Executed"
	case ProposalStateVetoed:
		return "Vetoed"
	default:
		return "Unknown"
	}
}

// Vote support choices.
const (
	VoteAgainst uint8 = 0
	VoteFor     uint8 = 1
	VoteAbstain uint8 = 2
)

// Action is one (target, value, signature, calldata) tuple of a proposal.
// CodeHash is the integrity hash pinned at propose time and verified by the
// timelock at execution.
type Action struct {
	Target    common.Address `json:"target"`
	Value     *big.Int       `json:"value"`
	Signature string         `json:"signature"`
	Data      []byte         `json:"data"`
	CodeHash  common.Hash    `json:"codeHash"`
}

// Receipt is one voter's ballot on one proposal, immutable once written.
type Receipt struct {
	HasVoted bool     `json:"hasVoted"`
	Support  uint8    `json:"support"`
	Votes    *big.Int `json:"votes"`
}

type Proposal struct {
	Id              uint64         `json:"id"`
	Proposer        common.Address `json:"proposer"`
	ProposerAddress string         `json:"proposerAddress"`
	Actions         []Action       `json:"actions"`

	// StartHeight and the threshold snapshot are fixed at creation.
	StartHeight       uint64   `json:"startHeight"`
	ThresholdSnapshot *big.Int `json:"thresholdSnapshot"`

	// Set once at activation.
	VotingStarted bool     `json:"votingStarted"`
	EndHeight     uint64   `json:"endHeight"`
	QuorumVotes   *big.Int `json:"quorumVotes"`

	ForVotes     *big.Int `json:"forVotes"`
	AgainstVotes *big.Int `json:"againstVotes"`
	AbstainVotes *big.Int `json:"abstainVotes"`

	Canceled bool   `json:"canceled"`
	Executed bool   `json:"executed"`
	Vetoed   bool   `json:"vetoed"`
	Eta      uint64 `json:"eta"` // unix, 0 until queued

	Receipts map[string]*Receipt `json:"receipts"` // keyed by voter hex address
}

func (p *Proposal) Receipt(voter common.Address) *Receipt {
	if p.Receipts == nil {
		return nil
	}
	return p.Receipts[voter.Hex()]
}

func (p *Proposal) SetReceipt(voter common.Address, r *Receipt) {
	if p.Receipts == nil {
		p.Receipts = make(map[string]*Receipt)
	}
	p.Receipts[voter.Hex()] = r
}

// Clone deep-copies via the JSON codec the proposal is persisted with.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	dat, _ := json.Marshal(p)
	n := new(Proposal)
	_ = json.Unmarshal(dat, n)
	return n
}
