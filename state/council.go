package state

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/parsdao/pars-gov/config"
	"github.com/parsdao/pars-gov/timelock"
	"github.com/parsdao/pars-gov/tx"
	"github.com/parsdao/pars-gov/types"
)

func (s *State) getProposal(id uint64) (*types.Proposal, error) {
	if id == 0 || id > s.proposalMaxIndex {
		return nil, ErrIdInvalid
	}
	if p, ok := s.proposals[id]; ok {
		return p, nil
	}
	key := fmt.Sprintf(KeyProposalBody, id)
	val, err := s.db.Get([]byte(key))
	if err != nil {
		if err == leveldb.ErrNotFound {
			val = nil
		} else {
			return nil, err
		}
	}
	if val == nil {
		return nil, ErrProposalNoexists
	}
	p := new(types.Proposal)
	if err := json.Unmarshal(val, p); err != nil {
		return nil, err
	}
	s.proposals[id] = p
	return p, nil
}

func (s *State) setProposal(p *types.Proposal) {
	s.proposals[p.Id] = p
	s.modifiedProposals[p.Id] = true
}

func (s *State) getLatestProposal(proposer common.Address) (uint64, error) {
	if id, ok := s.latest[proposer]; ok {
		return id, nil
	}
	key := fmt.Sprintf(KeyLatestProposal, proposer.Bytes())
	val, err := s.db.Get([]byte(key))
	if err != nil {
		if err == leveldb.ErrNotFound {
			val = nil
		} else {
			return 0, err
		}
	}
	var id uint64
	if val != nil {
		if err := rlp.DecodeBytes(val, &id); err != nil {
			return 0, err
		}
	}
	s.latest[proposer] = id
	return id, nil
}

func (s *State) setLatestProposal(proposer common.Address, id uint64) {
	s.latest[proposer] = id
	s.modifiedLatest[proposer] = true
}

// defeated is the vote outcome test: no participation, approval ratio below
// the threshold, or for-votes short of the quorum snapshot. Any one condition
// defeats the proposal.
func (s *State) defeated(p *types.Proposal) bool {
	forVotes := p.ForVotes
	againstVotes := p.AgainstVotes
	if forVotes == nil {
		forVotes = new(big.Int)
	}
	if againstVotes == nil {
		againstVotes = new(big.Int)
	}
	if forVotes.Sign() == 0 && againstVotes.Sign() == 0 {
		return true
	}
	cast := new(big.Int).Add(forVotes, againstVotes)
	ratio := new(big.Int).Mul(forVotes, new(big.Int).SetUint64(config.Precision))
	ratio.Div(ratio, cast)
	if ratio.Cmp(new(big.Int).SetUint64(s.header.Params.ApprovalThresholdPct)) < 0 {
		return true
	}
	quorum := p.QuorumVotes
	if quorum == nil {
		quorum = new(big.Int)
	}
	return forVotes.Cmp(quorum) < 0
}

// proposalState derives the state from stored flags plus the current height
// and block time. The order of the checks is part of the contract: veto
// shadows cancel, cancel shadows everything time-derived.
func (s *State) proposalState(p *types.Proposal) types.ProposalState {
	height := s.header.Height
	now := s.header.Time
	switch {
	case p.Vetoed:
		return types.ProposalStateVetoed
	case p.Canceled:
		return types.ProposalStateCanceled
	case height <= p.StartHeight || !p.VotingStarted || p.EndHeight == 0:
		if height > p.StartHeight+s.header.Params.ActivationGracePeriod {
			return types.ProposalStateExpired
		}
		return types.ProposalStatePending
	case height <= p.EndHeight:
		return types.ProposalStateActive
	case s.defeated(p):
		return types.ProposalStateDefeated
	case p.Eta == 0:
		return types.ProposalStateSucceeded
	case p.Executed:
		return types.ProposalStateExecuted
	case now > p.Eta+s.timelock.GracePeriod():
		return types.ProposalStateExpired
	default:
		return types.ProposalStateQueued
	}
}

func (s *State) isGuardian(addr common.Address) bool {
	g := s.header.Params.Guardian
	return g != "" && strings.EqualFold(g, addr.Hex())
}

func (s *State) Propose(ptx *tx.ProposeTx, sender uint64, checkOnly bool) (ev *types.EventProposal, err error) {
	a, err := s.GetAccount(sender)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNoexists
	}
	n := len(ptx.Targets)
	if n == 0 {
		return nil, ErrNoActions
	}
	if n > config.MaxOperations {
		return nil, ErrTooManyActions
	}
	if len(ptx.Values) != n || len(ptx.Signatures) != n || len(ptx.Datas) != n {
		return nil, ErrLengthMismatch
	}
	total, err := s.TotalVotingPower()
	if err != nil {
		return nil, err
	}
	if total.Cmp(s.header.Params.MinSupply) < 0 {
		return nil, ErrSupplyTooLow
	}
	proposer := a.EthAddress()
	power, err := s.PriorVotes(proposer, s.header.Height-1)
	if err != nil {
		return nil, err
	}
	threshold := new(big.Int).Set(s.header.Params.ProposalThreshold)
	if power.Cmp(threshold) <= 0 {
		return nil, ErrThresholdNotMet
	}
	latest, err := s.getLatestProposal(proposer)
	if err != nil {
		return nil, err
	}
	if latest != 0 {
		prev, err := s.getProposal(latest)
		if err != nil {
			return nil, err
		}
		switch s.proposalState(prev) {
		case types.ProposalStatePending:
			return nil, ErrAlreadyPending
		case types.ProposalStateActive:
			return nil, ErrAlreadyActive
		}
	}
	if checkOnly {
		return nil, nil
	}

	s.touchAccount(a)
	s.proposalMaxIndex += 1
	id := s.proposalMaxIndex
	actions := make([]types.Action, n)
	for i := 0; i < n; i++ {
		value := ptx.Values[i]
		if value == nil {
			value = new(big.Int)
		}
		actions[i] = types.Action{
			Target:    ptx.Targets[i],
			Value:     new(big.Int).Set(value),
			Signature: ptx.Signatures[i],
			Data:      ptx.Datas[i],
			CodeHash:  s.executor.CodeHash(ptx.Targets[i]),
		}
	}
	p := &types.Proposal{
		Id:                id,
		Proposer:          proposer,
		ProposerAddress:   a.Address(),
		Actions:           actions,
		StartHeight:       s.header.Height + s.header.Params.VotingDelay,
		ThresholdSnapshot: threshold,
		ForVotes:          new(big.Int),
		AgainstVotes:      new(big.Int),
		AbstainVotes:      new(big.Int),
		Receipts:          make(map[string]*types.Receipt),
	}
	s.setProposal(p)
	s.setLatestProposal(proposer, id)
	s.logger.Info("propose", "proposal", id, "proposer", proposer.Hex(), "actions", n, "startHeight", p.StartHeight)
	return &types.EventProposal{
		ProposalId:  id,
		Proposer:    proposer.Hex(),
		StartHeight: p.StartHeight,
		Threshold:   threshold.String(),
		Operations:  uint64(n),
	}, nil
}

func (s *State) Activate(atx *tx.ActivateTx, sender uint64, checkOnly bool) (ev *types.EventLifecycle, err error) {
	a, err := s.GetAccount(sender)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNoexists
	}
	p, err := s.getProposal(atx.ProposalId)
	if err != nil {
		return nil, err
	}
	if p.VotingStarted || p.EndHeight != 0 {
		return nil, ErrAlreadyActivated
	}
	switch s.proposalState(p) {
	case types.ProposalStatePending:
	default:
		return nil, ErrVoteClosed
	}
	if s.header.Height <= p.StartHeight {
		return nil, ErrTooEarly
	}
	if checkOnly {
		return nil, nil
	}

	s.touchAccount(a)
	total, err := s.TotalVotingPower()
	if err != nil {
		return nil, err
	}
	quorum := new(big.Int).Mul(total, new(big.Int).SetUint64(s.header.Params.QuorumPct))
	quorum.Div(quorum, new(big.Int).SetUint64(config.Precision))
	np := p.Clone()
	np.VotingStarted = true
	np.EndHeight = s.header.Height + s.header.Params.VotingPeriod
	np.QuorumVotes = quorum
	s.setProposal(np)
	s.logger.Info("activate proposal", "proposal", np.Id, "endHeight", np.EndHeight, "quorum", quorum)
	return &types.EventLifecycle{
		ProposalId: np.Id,
		Phase:      types.PhaseActivated,
		Caller:     a.EthAddress().Hex(),
		EndHeight:  np.EndHeight,
		Quorum:     quorum.String(),
	}, nil
}

// castVote records one ballot. Weight is the smaller of the voter's power at
// the proposal's start height and at the height just before this block, so
// locking up more stake after seeing a proposal cannot inflate the vote.
func (s *State) castVote(p *types.Proposal, voter common.Address, support uint8, reason string, checkOnly bool) (*types.EventVote, error) {
	if support > types.VoteAbstain {
		return nil, ErrInvalidVoteType
	}
	if s.proposalState(p) != types.ProposalStateActive {
		return nil, ErrVoteClosed
	}
	if r := p.Receipt(voter); r != nil && r.HasVoted {
		return nil, ErrAlreadyVoted
	}
	atStart, err := s.PriorVotes(voter, p.StartHeight)
	if err != nil {
		return nil, err
	}
	atNow, err := s.PriorVotes(voter, s.header.Height-1)
	if err != nil {
		return nil, err
	}
	weight := atStart
	if atNow.Cmp(atStart) < 0 {
		weight = atNow
	}
	if checkOnly {
		return nil, nil
	}

	np := p.Clone()
	switch support {
	case types.VoteAgainst:
		np.AgainstVotes = new(big.Int).Add(np.AgainstVotes, weight)
	case types.VoteFor:
		np.ForVotes = new(big.Int).Add(np.ForVotes, weight)
	case types.VoteAbstain:
		np.AbstainVotes = new(big.Int).Add(np.AbstainVotes, weight)
	}
	np.SetReceipt(voter, &types.Receipt{
		HasVoted: true,
		Support:  support,
		Votes:    new(big.Int).Set(weight),
	})
	s.setProposal(np)
	s.logger.Info("cast vote", "proposal", np.Id, "voter", voter.Hex(), "support", support, "weight", weight)
	return &types.EventVote{
		ProposalId: np.Id,
		Voter:      voter.Hex(),
		Support:    support,
		Weight:     weight.String(),
		Reason:     reason,
	}, nil
}

func (s *State) CastVote(vtx *tx.CastVoteTx, sender uint64, checkOnly bool) (ev *types.EventVote, err error) {
	a, err := s.GetAccount(sender)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNoexists
	}
	p, err := s.getProposal(vtx.ProposalId)
	if err != nil {
		return nil, err
	}
	ev, err = s.castVote(p, a.EthAddress(), vtx.Support, vtx.Reason, checkOnly)
	if err != nil {
		return nil, err
	}
	if !checkOnly {
		s.touchAccount(a)
	}
	return ev, nil
}

// CastVoteBySig applies a vote authorized off-chain. The relaying envelope
// sender pays the nonce; the voter is whoever signed the vote digest.
func (s *State) CastVoteBySig(vtx *tx.CastVoteBySigTx, sender uint64, checkOnly bool) (ev *types.EventVote, err error) {
	a, err := s.GetAccount(sender)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNoexists
	}
	voter, err := tx.RecoverVoter(s.header.ChainId, vtx.ProposalId, vtx.Support, vtx.Sig)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	p, err := s.getProposal(vtx.ProposalId)
	if err != nil {
		return nil, err
	}
	ev, err = s.castVote(p, voter, vtx.Support, "", checkOnly)
	if err != nil {
		return nil, err
	}
	if !checkOnly {
		s.touchAccount(a)
	}
	return ev, nil
}

func (s *State) Queue(qtx *tx.QueueTx, sender uint64, checkOnly bool) (ev *types.EventLifecycle, err error) {
	a, err := s.GetAccount(sender)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNoexists
	}
	p, err := s.getProposal(qtx.ProposalId)
	if err != nil {
		return nil, err
	}
	switch s.proposalState(p) {
	case types.ProposalStateSucceeded:
	case types.ProposalStateQueued:
		return nil, ErrAlreadyQueued
	case types.ProposalStateExecuted:
		return nil, ErrAlreadyExecuted
	default:
		return nil, ErrFailedProposal
	}
	power, err := s.PriorVotes(p.Proposer, s.header.Height-1)
	if err != nil {
		return nil, err
	}
	if power.Cmp(p.ThresholdSnapshot) < 0 {
		return nil, ErrBelowThreshold
	}
	if checkOnly {
		return nil, nil
	}

	s.touchAccount(a)
	eta := s.header.Time + s.timelock.Delay()
	for _, action := range p.Actions {
		if _, err = s.timelock.QueueTransaction(s, p.Id, action, eta); err != nil {
			return nil, err
		}
	}
	np := p.Clone()
	np.Eta = eta
	s.setProposal(np)
	s.logger.Info("queue proposal", "proposal", np.Id, "eta", eta)
	return &types.EventLifecycle{
		ProposalId: np.Id,
		Phase:      types.PhaseQueued,
		Caller:     a.EthAddress().Hex(),
		EndHeight:  np.EndHeight,
		Eta:        eta,
	}, nil
}

// Execute marks the proposal executed before any action is dispatched, so a
// reentrant call through a target observes the Executed state and fails its
// own guard.
func (s *State) Execute(etx *tx.ExecuteTx, sender uint64, checkOnly bool) (ev *types.EventLifecycle, err error) {
	a, err := s.GetAccount(sender)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNoexists
	}
	p, err := s.getProposal(etx.ProposalId)
	if err != nil {
		return nil, err
	}
	switch s.proposalState(p) {
	case types.ProposalStateQueued:
	case types.ProposalStateExecuted:
		return nil, ErrAlreadyExecuted
	case types.ProposalStateSucceeded:
		return nil, ErrNotQueued
	default:
		return nil, ErrFailedProposal
	}
	power, err := s.PriorVotes(p.Proposer, s.header.Height-1)
	if err != nil {
		return nil, err
	}
	if power.Cmp(p.ThresholdSnapshot) < 0 {
		return nil, ErrBelowThreshold
	}
	for _, action := range p.Actions {
		if !s.Queued(timelock.TxHash(p.Id, action, p.Eta)) {
			return nil, ErrNotQueued
		}
	}
	if checkOnly {
		return nil, nil
	}

	s.touchAccount(a)
	np := p.Clone()
	np.Executed = true
	s.setProposal(np)
	for _, action := range np.Actions {
		if _, err = s.timelock.ExecuteTransaction(s, np.Id, action, np.Eta, s.header.Time); err != nil {
			return nil, err
		}
	}
	s.logger.Info("execute proposal", "proposal", np.Id)
	return &types.EventLifecycle{
		ProposalId: np.Id,
		Phase:      types.PhaseExecuted,
		Caller:     a.EthAddress().Hex(),
		EndHeight:  np.EndHeight,
		Eta:        np.Eta,
	}, nil
}

// Cancel by anyone other than the proposer requires the proposer's power to
// have fallen below the threshold snapshot; the proposer can always cancel
// their own proposal. Queued actions are withdrawn from the timelock,
// never-queued ones are skipped.
func (s *State) Cancel(ctx *tx.CancelTx, sender uint64, checkOnly bool) (ev *types.EventLifecycle, err error) {
	a, err := s.GetAccount(sender)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNoexists
	}
	p, err := s.getProposal(ctx.ProposalId)
	if err != nil {
		return nil, err
	}
	if s.proposalState(p) == types.ProposalStateExecuted {
		return nil, ErrAlreadyExecuted
	}
	caller := a.EthAddress()
	if caller != p.Proposer {
		power, err := s.PriorVotes(p.Proposer, s.header.Height-1)
		if err != nil {
			return nil, err
		}
		if power.Cmp(p.ThresholdSnapshot) >= 0 {
			return nil, ErrAboveThreshold
		}
	}
	if checkOnly {
		return nil, nil
	}

	s.touchAccount(a)
	np := p.Clone()
	np.Canceled = true
	s.setProposal(np)
	for _, action := range np.Actions {
		s.timelock.CancelTransaction(s, np.Id, action, np.Eta)
	}
	s.logger.Info("cancel proposal", "proposal", np.Id, "caller", caller.Hex())
	return &types.EventLifecycle{
		ProposalId: np.Id,
		Phase:      types.PhaseCanceled,
		Caller:     caller.Hex(),
		EndHeight:  np.EndHeight,
		Eta:        np.Eta,
	}, nil
}

func (s *State) Veto(vtx *tx.VetoTx, sender uint64, checkOnly bool) (ev *types.EventLifecycle, err error) {
	a, err := s.GetAccount(sender)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNoexists
	}
	caller := a.EthAddress()
	if !s.isGuardian(caller) {
		return nil, ErrNotGuardian
	}
	p, err := s.getProposal(vtx.ProposalId)
	if err != nil {
		return nil, err
	}
	if s.proposalState(p) == types.ProposalStateExecuted {
		return nil, ErrAlreadyExecuted
	}
	if checkOnly {
		return nil, nil
	}

	s.touchAccount(a)
	np := p.Clone()
	np.Vetoed = true
	s.setProposal(np)
	for _, action := range np.Actions {
		if s.Queued(timelock.TxHash(np.Id, action, np.Eta)) {
			s.timelock.CancelTransaction(s, np.Id, action, np.Eta)
		}
	}
	s.logger.Info("veto proposal", "proposal", np.Id, "guardian", caller.Hex())
	return &types.EventLifecycle{
		ProposalId: np.Id,
		Phase:      types.PhaseVetoed,
		Caller:     caller.Hex(),
		EndHeight:  np.EndHeight,
		Eta:        np.Eta,
	}, nil
}

// SetParams is the guardian-gated admin surface. The whole set is replaced
// at once and bounds-checked by Validate.
func (s *State) SetParams(stx *tx.SetParamsTx, sender uint64, checkOnly bool) (err error) {
	a, err := s.GetAccount(sender)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrAccountNoexists
	}
	if !s.isGuardian(a.EthAddress()) {
		return ErrNotGuardian
	}
	if err = stx.Params.Validate(); err != nil {
		return ErrParamOutOfBounds
	}
	if checkOnly {
		return nil
	}

	s.touchAccount(a)
	s.header.Params = stx.Params
	s.logger.Info("set params", "guardian", a.EthAddress().Hex())
	return nil
}

// ProposalStateById derives the state of one proposal at the current
// height and time.
func (s *State) ProposalStateById(id uint64) (types.ProposalState, error) {
	p, err := s.getProposal(id)
	if err != nil {
		return 0, err
	}
	return s.proposalState(p), nil
}

func (s *State) ProposalById(id uint64) (*types.Proposal, error) {
	p, err := s.getProposal(id)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

func (s *State) ProposalCount() uint64 {
	return s.proposalMaxIndex
}

func (s *State) LatestProposal(proposer common.Address) (uint64, error) {
	return s.getLatestProposal(proposer)
}
