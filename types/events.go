package types

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	abci "github.com/cometbft/cometbft/abci/types"
)

const (
	EventLockType            = "lock"
	EventDelegateType        = "delegate"
	EventProposalType        = "proposal"
	EventLifecycleType       = "proposal_lifecycle"
	EventVoteType            = "vote"
	EventUpdateValidatorType = "update_validator"
)

// Lifecycle phases carried in proposal_lifecycle events.
const (
	PhaseActivated = "activated"
	PhaseQueued    = "queued"
	PhaseExecuted  = "executed"
	PhaseCanceled  = "canceled"
	PhaseVetoed    = "vetoed"
)

// Lock ledger ops carried in lock events.
const (
	LockOpCreate   = "create"
	LockOpIncrease = "increase"
	LockOpExtend   = "extend"
	LockOpWithdraw = "withdraw"
)

type EventLock struct {
	Account string `json:"account"`
	Op      string `json:"op"`
	Amount  string `json:"amount"`
	End     uint64 `json:"end"`
	Votes   string `json:"votes"`
	Total   string `json:"total"`
}

func EncodeEventLock(event *EventLock) abci.Event {
	return abci.Event{
		Type: EventLockType,
		Attributes: []abci.EventAttribute{
			{Key: "account", Value: event.Account, Index: true},
			{Key: "op", Value: event.Op, Index: true},
			{Key: "amount", Value: event.Amount, Index: false},
			{Key: "end", Value: fmt.Sprintf("%v", event.End), Index: false},
			{Key: "votes", Value: event.Votes, Index: false},
			{Key: "total", Value: event.Total, Index: false},
		},
	}
}

func DecodeEventLock(originEvent abci.Event) *EventLock {
	event := &EventLock{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "account":
			event.Account = v.Value
		case "op":
			event.Op = v.Value
		case "amount":
			event.Amount = v.Value
		case "end":
			end, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.End = end
		case "votes":
			event.Votes = v.Value
		case "total":
			event.Total = v.Value
		}
	}
	return event
}

type EventDelegate struct {
	Account      string `json:"account"`
	OldDelegatee string `json:"oldDelegatee"`
	NewDelegatee string `json:"newDelegatee"`
}

func EncodeEventDelegate(event *EventDelegate) abci.Event {
	return abci.Event{
		Type: EventDelegateType,
		Attributes: []abci.EventAttribute{
			{Key: "account", Value: event.Account, Index: true},
			{Key: "old", Value: event.OldDelegatee, Index: false},
			{Key: "new", Value: event.NewDelegatee, Index: true},
		},
	}
}

func DecodeEventDelegate(originEvent abci.Event) *EventDelegate {
	event := &EventDelegate{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "account":
			event.Account = v.Value
		case "old":
			event.OldDelegatee = v.Value
		case "new":
			event.NewDelegatee = v.Value
		}
	}
	return event
}

type EventProposal struct {
	ProposalId  uint64 `json:"proposalId"`
	Proposer    string `json:"proposer"`
	StartHeight uint64 `json:"startHeight"`
	Threshold   string `json:"threshold"`
	Operations  uint64 `json:"operations"`
}

func EncodeEventProposal(event *EventProposal) abci.Event {
	return abci.Event{
		Type: EventProposalType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.ProposalId), Index: true},
			{Key: "proposer", Value: event.Proposer, Index: true},
			{Key: "startHeight", Value: fmt.Sprintf("%v", event.StartHeight), Index: false},
			{Key: "threshold", Value: event.Threshold, Index: false},
			{Key: "operations", Value: fmt.Sprintf("%v", event.Operations), Index: false},
		},
	}
}

func DecodeEventProposal(originEvent abci.Event) *EventProposal {
	event := &EventProposal{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.ProposalId = proposal
		case "proposer":
			event.Proposer = v.Value
		case "startHeight":
			startHeight, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.StartHeight = startHeight
		case "threshold":
			event.Threshold = v.Value
		case "operations":
			operations, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Operations = operations
		}
	}
	return event
}

type EventLifecycle struct {
	ProposalId uint64 `json:"proposalId"`
	Phase      string `json:"phase"`
	Caller     string `json:"caller"`
	EndHeight  uint64 `json:"endHeight"`
	Quorum     string `json:"quorum"`
	Eta        uint64 `json:"eta"`
}

func EncodeEventLifecycle(event *EventLifecycle) abci.Event {
	return abci.Event{
		Type: EventLifecycleType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.ProposalId), Index: true},
			{Key: "phase", Value: event.Phase, Index: true},
			{Key: "caller", Value: event.Caller, Index: false},
			{Key: "endHeight", Value: fmt.Sprintf("%v", event.EndHeight), Index: false},
			{Key: "quorum", Value: event.Quorum, Index: false},
			{Key: "eta", Value: fmt.Sprintf("%v", event.Eta), Index: false},
		},
	}
}

func DecodeEventLifecycle(originEvent abci.Event) *EventLifecycle {
	event := &EventLifecycle{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.ProposalId = proposal
		case "phase":
			event.Phase = v.Value
		case "caller":
			event.Caller = v.Value
		case "endHeight":
			endHeight, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.EndHeight = endHeight
		case "quorum":
			event.Quorum = v.Value
		case "eta":
			eta, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Eta = eta
		}
	}
	return event
}

type EventVote struct {
	ProposalId uint64 `json:"proposalId"`
	Voter      string `json:"voter"`
	Support    uint8  `json:"support"`
	Weight     string `json:"weight"`
	Reason     string `json:"reason"`
}

func EncodeEventVote(event *EventVote) abci.Event {
	return abci.Event{
		Type: EventVoteType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.ProposalId), Index: true},
			{Key: "voter", Value: event.Voter, Index: true},
			{Key: "support", Value: fmt.Sprintf("%v", event.Support), Index: false},
			{Key: "weight", Value: event.Weight, Index: false},
			{Key: "reason", Value: event.Reason, Index: false},
		},
	}
}

func DecodeEventVote(originEvent abci.Event) *EventVote {
	event := &EventVote{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.ProposalId = proposal
		case "voter":
			event.Voter = v.Value
		case "support":
			support, err := strconv.ParseUint(v.Value, 10, 8)
			if err != nil {
				return nil
			}
			event.Support = uint8(support)
		case "weight":
			event.Weight = v.Value
		case "reason":
			event.Reason = v.Value
		}
	}
	return event
}

type EventUpdateValidators struct {
	Updates []abci.ValidatorUpdate `json:"updates"`
}

func EncodeEventUpdateValidators(event *EventUpdateValidators) abci.Event {
	pks := make([]string, len(event.Updates))
	powers := make([]string, len(event.Updates))
	for i := range event.Updates {
		ed25519PK := event.Updates[i].PubKey.GetEd25519()
		pks[i] = hex.EncodeToString(ed25519PK)
		powers[i] = fmt.Sprintf("%v", event.Updates[i].Power)
	}
	return abci.Event{
		Type: EventUpdateValidatorType,
		Attributes: []abci.EventAttribute{
			{Key: "pks", Value: strings.Join(pks, ","), Index: false},
			{Key: "powers", Value: strings.Join(powers, ","), Index: false},
		},
	}
}

func DecodeEventUpdateValidators(originEvent abci.Event) *EventUpdateValidators {
	event := &EventUpdateValidators{
		Updates: []abci.ValidatorUpdate{},
	}
	pks := make([]string, 0)
	powers := make([]uint64, 0)
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "pks":
			pks = strings.Split(v.Value, ",")
		case "powers":
			powerStrs := strings.Split(v.Value, ",")
			for _, powerStr := range powerStrs {
				power, err := strconv.ParseUint(powerStr, 10, 64)
				if err != nil {
					return nil
				}
				powers = append(powers, power)
			}
		}
	}
	if len(pks) != len(powers) {
		return nil
	}
	for i := range pks {
		pk, err := hex.DecodeString(pks[i])
		if err != nil {
			return nil
		}
		event.Updates = append(event.Updates, abci.Ed25519ValidatorUpdate(pk, int64(powers[i])))
	}
	return event
}
