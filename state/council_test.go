package state

import (
	"math/big"
	"testing"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/parsdao/pars-gov/config"
	"github.com/parsdao/pars-gov/timelock"
	"github.com/parsdao/pars-gov/tx"
	"github.com/parsdao/pars-gov/types"
)

type councilFixture struct {
	*testChain
	proposer *Account
	voter    *Account
	guardian *Account
}

// newCouncilFixture funds a proposer and a voter with max-duration locks,
// installs a guardian, tightens the block-count params so lifecycles fit in
// a few commits, and commits the genesis block.
func newCouncilFixture(t *testing.T) *councilFixture {
	c := newTestChain(t)

	guardian := c.addAccount(1000)
	proposer := c.addAccount(2_000_000)
	voter := c.addAccount(2_000_000)

	p := c.st.header.Params
	p.VotingDelay = 2
	p.VotingPeriod = 4
	p.ActivationGracePeriod = 10
	p.ProposalThreshold = big.NewInt(100)
	p.MinSupply = big.NewInt(1000)
	p.Guardian = guardian.EthAddress().Hex()
	c.st.header.Params = p

	c.createLock(proposer, 500_000, config.MaxLockDuration)
	c.createLock(voter, 400_000, config.MaxLockDuration)
	c.commit()

	return &councilFixture{testChain: c, proposer: proposer, voter: voter, guardian: guardian}
}

func (f *councilFixture) proposeOne(t *testing.T) uint64 {
	t.Helper()
	ev, err := f.st.Propose(&tx.ProposeTx{
		Targets:     []common.Address{{0x01}},
		Values:      []*big.Int{big.NewInt(0)},
		Signatures:  []string{"setValue(uint256)"},
		Datas:       [][]byte{{0x2a}},
		Description: "set the value",
	}, f.proposer.Index, false)
	require.NoError(t, err)
	return ev.ProposalId
}

func (f *councilFixture) activate(t *testing.T, id uint64, sender uint64) {
	t.Helper()
	p, err := f.st.ProposalById(id)
	require.NoError(t, err)
	for f.height() <= p.StartHeight {
		f.commit()
	}
	_, err = f.st.Activate(&tx.ActivateTx{ProposalId: id}, sender, false)
	require.NoError(t, err)
}

func (f *councilFixture) stateOf(t *testing.T, id uint64) types.ProposalState {
	t.Helper()
	st, err := f.st.ProposalStateById(id)
	require.NoError(t, err)
	return st
}

// succeed activates the proposal, votes it through with the voter's full
// weight and runs out the voting period.
func (f *councilFixture) succeed(t *testing.T, id uint64) {
	t.Helper()
	f.activate(t, id, f.voter.Index)
	f.commit()
	_, err := f.st.CastVote(&tx.CastVoteTx{ProposalId: id, Support: types.VoteFor}, f.voter.Index, false)
	require.NoError(t, err)
	p, err := f.st.ProposalById(id)
	require.NoError(t, err)
	for f.height() <= p.EndHeight {
		f.commit()
	}
	require.Equal(t, types.ProposalStateSucceeded, f.stateOf(t, id))
}

func TestProposeGuards(t *testing.T) {
	f := newCouncilFixture(t)

	_, err := f.st.Propose(&tx.ProposeTx{}, f.proposer.Index, false)
	require.ErrorIs(t, err, ErrNoActions)

	targets := make([]common.Address, config.MaxOperations+1)
	values := make([]*big.Int, config.MaxOperations+1)
	sigs := make([]string, config.MaxOperations+1)
	datas := make([][]byte, config.MaxOperations+1)
	_, err = f.st.Propose(&tx.ProposeTx{Targets: targets, Values: values, Signatures: sigs, Datas: datas}, f.proposer.Index, false)
	require.ErrorIs(t, err, ErrTooManyActions)

	_, err = f.st.Propose(&tx.ProposeTx{
		Targets:    []common.Address{{0x01}},
		Values:     []*big.Int{big.NewInt(0)},
		Signatures: []string{"a()", "b()"},
		Datas:      [][]byte{nil},
	}, f.proposer.Index, false)
	require.ErrorIs(t, err, ErrLengthMismatch)

	// the guardian holds no lock, so its prior votes sit at zero
	_, err = f.st.Propose(&tx.ProposeTx{
		Targets:    []common.Address{{0x01}},
		Values:     []*big.Int{big.NewInt(0)},
		Signatures: []string{"a()"},
		Datas:      [][]byte{nil},
	}, f.guardian.Index, false)
	require.ErrorIs(t, err, ErrThresholdNotMet)
}

func TestProposeSupplyBrake(t *testing.T) {
	f := newCouncilFixture(t)
	p := f.st.header.Params
	p.MinSupply = big.NewInt(10_000_000)
	f.st.header.Params = p

	_, err := f.st.Propose(&tx.ProposeTx{
		Targets:    []common.Address{{0x01}},
		Values:     []*big.Int{big.NewInt(0)},
		Signatures: []string{"a()"},
		Datas:      [][]byte{nil},
	}, f.proposer.Index, false)
	require.ErrorIs(t, err, ErrSupplyTooLow)
}

func TestProposeOneInFlight(t *testing.T) {
	f := newCouncilFixture(t)
	id := f.proposeOne(t)
	require.Equal(t, types.ProposalStatePending, f.stateOf(t, id))

	_, err := f.st.Propose(&tx.ProposeTx{
		Targets:    []common.Address{{0x02}},
		Values:     []*big.Int{big.NewInt(0)},
		Signatures: []string{"b()"},
		Datas:      [][]byte{nil},
	}, f.proposer.Index, false)
	require.ErrorIs(t, err, ErrAlreadyPending)
}

func TestActivateTooEarlyAndQuorumSnapshot(t *testing.T) {
	f := newCouncilFixture(t)
	id := f.proposeOne(t)

	_, err := f.st.Activate(&tx.ActivateTx{ProposalId: id}, f.voter.Index, false)
	require.ErrorIs(t, err, ErrTooEarly)

	f.activate(t, id, f.voter.Index)
	require.Equal(t, types.ProposalStateActive, f.stateOf(t, id))

	p, err := f.st.ProposalById(id)
	require.NoError(t, err)
	// quorum = custody total * 20%
	require.Equal(t, int64(180_000), p.QuorumVotes.Int64())
	require.Equal(t, f.height()+f.st.header.Params.VotingPeriod, p.EndHeight)

	_, err = f.st.Activate(&tx.ActivateTx{ProposalId: id}, f.voter.Index, false)
	require.ErrorIs(t, err, ErrAlreadyActivated)
}

func TestPendingProposalExpiresUnactivated(t *testing.T) {
	f := newCouncilFixture(t)
	id := f.proposeOne(t)

	p, err := f.st.ProposalById(id)
	require.NoError(t, err)
	for f.height() <= p.StartHeight+f.st.header.Params.ActivationGracePeriod {
		f.commit()
	}
	require.Equal(t, types.ProposalStateExpired, f.stateOf(t, id))

	_, err = f.st.Activate(&tx.ActivateTx{ProposalId: id}, f.voter.Index, false)
	require.ErrorIs(t, err, ErrVoteClosed)
}

func TestCastVoteRecordsClampedWeight(t *testing.T) {
	f := newCouncilFixture(t)
	id := f.proposeOne(t)
	f.activate(t, id, f.voter.Index)
	f.commit()

	p, err := f.st.ProposalById(id)
	require.NoError(t, err)
	atStart, err := f.st.PriorVotes(f.voter.EthAddress(), p.StartHeight)
	require.NoError(t, err)

	// locking more after the proposal started must not inflate the ballot
	_, err = f.st.IncreaseAmount(&tx.IncreaseAmountTx{Amount: big.NewInt(1_000_000)}, f.voter.Index, false)
	require.NoError(t, err)
	f.commit()

	ev, err := f.st.CastVote(&tx.CastVoteTx{ProposalId: id, Support: types.VoteFor, Reason: "ok"}, f.voter.Index, false)
	require.NoError(t, err)
	require.Equal(t, atStart.String(), ev.Weight)

	p, err = f.st.ProposalById(id)
	require.NoError(t, err)
	r := p.Receipt(f.voter.EthAddress())
	require.NotNil(t, r)
	require.True(t, r.HasVoted)
	require.Equal(t, atStart.String(), r.Votes.String())

	_, err = f.st.CastVote(&tx.CastVoteTx{ProposalId: id, Support: types.VoteAgainst}, f.voter.Index, false)
	require.ErrorIs(t, err, ErrAlreadyVoted)

	_, err = f.st.CastVote(&tx.CastVoteTx{ProposalId: id, Support: 3}, f.proposer.Index, false)
	require.ErrorIs(t, err, ErrInvalidVoteType)
}

func TestCastVoteBySigRecovery(t *testing.T) {
	f := newCouncilFixture(t)
	id := f.proposeOne(t)
	f.activate(t, id, f.voter.Index)
	f.commit()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	digest, err := tx.VoteDigest(f.st.header.ChainId, id, types.VoteFor)
	require.NoError(t, err)
	sig, err := crypto.Sign(digest[:], key)
	require.NoError(t, err)

	ev, err := f.st.CastVoteBySig(&tx.CastVoteBySigTx{ProposalId: id, Support: types.VoteFor, Sig: sig}, f.voter.Index, false)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), ev.Voter)

	_, err = f.st.CastVoteBySig(&tx.CastVoteBySigTx{ProposalId: id, Support: types.VoteFor, Sig: sig[:10]}, f.voter.Index, false)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestFullLifecycleQueueAndExecute(t *testing.T) {
	f := newCouncilFixture(t)
	id := f.proposeOne(t)
	f.activate(t, id, f.voter.Index)
	f.commit()

	_, err := f.st.CastVote(&tx.CastVoteTx{ProposalId: id, Support: types.VoteFor}, f.voter.Index, false)
	require.NoError(t, err)

	_, err = f.st.Queue(&tx.QueueTx{ProposalId: id}, f.voter.Index, false)
	require.ErrorIs(t, err, ErrFailedProposal)

	p, err := f.st.ProposalById(id)
	require.NoError(t, err)
	for f.height() <= p.EndHeight {
		f.commit()
	}
	require.Equal(t, types.ProposalStateSucceeded, f.stateOf(t, id))

	_, err = f.st.Execute(&tx.ExecuteTx{ProposalId: id}, f.voter.Index, false)
	require.ErrorIs(t, err, ErrNotQueued)

	ev, err := f.st.Queue(&tx.QueueTx{ProposalId: id}, f.voter.Index, false)
	require.NoError(t, err)
	require.Equal(t, f.now+f.tl.Delay(), ev.Eta)
	require.Equal(t, types.ProposalStateQueued, f.stateOf(t, id))

	_, err = f.st.Queue(&tx.QueueTx{ProposalId: id}, f.voter.Index, false)
	require.ErrorIs(t, err, ErrAlreadyQueued)

	p, err = f.st.ProposalById(id)
	require.NoError(t, err)
	require.True(t, f.st.Queued(timelock.TxHash(id, p.Actions[0], p.Eta)))

	// still locked: run the early attempt on a throwaway clone so the
	// working state stays consistent
	bad := f.st.Clone()
	_, err = bad.Execute(&tx.ExecuteTx{ProposalId: id}, f.voter.Index, false)
	require.ErrorIs(t, err, timelock.ErrBeforeEta)

	f.commit()
	f.setTime(p.Eta)
	_, err = f.st.Execute(&tx.ExecuteTx{ProposalId: id}, f.voter.Index, false)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStateExecuted, f.stateOf(t, id))

	calls := f.ex.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, id, calls[0].ProposalId)
	require.Equal(t, common.Address{0x01}, calls[0].Action.Target)

	_, err = f.st.Execute(&tx.ExecuteTx{ProposalId: id}, f.voter.Index, false)
	require.ErrorIs(t, err, ErrAlreadyExecuted)
}

func TestDefeatedWithoutParticipation(t *testing.T) {
	f := newCouncilFixture(t)
	id := f.proposeOne(t)
	f.activate(t, id, f.voter.Index)

	p, err := f.st.ProposalById(id)
	require.NoError(t, err)
	for f.height() <= p.EndHeight {
		f.commit()
	}
	require.Equal(t, types.ProposalStateDefeated, f.stateOf(t, id))

	_, err = f.st.Queue(&tx.QueueTx{ProposalId: id}, f.voter.Index, false)
	require.ErrorIs(t, err, ErrFailedProposal)
}

func TestDefeatedBelowApprovalThreshold(t *testing.T) {
	f := newCouncilFixture(t)
	id := f.proposeOne(t)
	f.activate(t, id, f.voter.Index)
	f.commit()

	// voter for, proposer against: 400k of 900k locked is under 51%
	_, err := f.st.CastVote(&tx.CastVoteTx{ProposalId: id, Support: types.VoteFor}, f.voter.Index, false)
	require.NoError(t, err)
	_, err = f.st.CastVote(&tx.CastVoteTx{ProposalId: id, Support: types.VoteAgainst}, f.proposer.Index, false)
	require.NoError(t, err)

	p, err := f.st.ProposalById(id)
	require.NoError(t, err)
	for f.height() <= p.EndHeight {
		f.commit()
	}
	require.Equal(t, types.ProposalStateDefeated, f.stateOf(t, id))
}

func TestCancelByProposerAndByOthers(t *testing.T) {
	f := newCouncilFixture(t)
	id := f.proposeOne(t)

	// a bystander cannot cancel while the proposer holds threshold power
	_, err := f.st.Cancel(&tx.CancelTx{ProposalId: id}, f.voter.Index, false)
	require.ErrorIs(t, err, ErrAboveThreshold)

	_, err = f.st.Cancel(&tx.CancelTx{ProposalId: id}, f.proposer.Index, false)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStateCanceled, f.stateOf(t, id))
}

func TestVetoGuardianOnly(t *testing.T) {
	f := newCouncilFixture(t)
	id := f.proposeOne(t)
	f.activate(t, id, f.voter.Index)
	f.commit()

	_, err := f.st.CastVote(&tx.CastVoteTx{ProposalId: id, Support: types.VoteFor}, f.voter.Index, false)
	require.NoError(t, err)
	p, err := f.st.ProposalById(id)
	require.NoError(t, err)
	for f.height() <= p.EndHeight {
		f.commit()
	}
	_, err = f.st.Queue(&tx.QueueTx{ProposalId: id}, f.voter.Index, false)
	require.NoError(t, err)

	_, err = f.st.Veto(&tx.VetoTx{ProposalId: id}, f.voter.Index, false)
	require.ErrorIs(t, err, ErrNotGuardian)

	_, err = f.st.Veto(&tx.VetoTx{ProposalId: id}, f.guardian.Index, false)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStateVetoed, f.stateOf(t, id))

	// the veto withdraws every queued action from the timelock
	p, err = f.st.ProposalById(id)
	require.NoError(t, err)
	require.False(t, f.st.Queued(timelock.TxHash(id, p.Actions[0], p.Eta)))
}

func TestSetParamsGuardianGate(t *testing.T) {
	f := newCouncilFixture(t)

	good := f.st.header.Params
	good.VotingPeriod = 500

	err := f.st.SetParams(&tx.SetParamsTx{Params: good}, f.voter.Index, false)
	require.ErrorIs(t, err, ErrNotGuardian)

	bad := good
	bad.VotingDelay = 0
	err = f.st.SetParams(&tx.SetParamsTx{Params: bad}, f.guardian.Index, false)
	require.ErrorIs(t, err, ErrParamOutOfBounds)

	err = f.st.SetParams(&tx.SetParamsTx{Params: good}, f.guardian.Index, false)
	require.NoError(t, err)
	require.Equal(t, uint64(500), f.st.Params().VotingPeriod)
}

func TestQueueAndExecuteReplayOnFreshStates(t *testing.T) {
	f := newCouncilFixture(t)
	id := f.proposeOne(t)
	f.succeed(t, id)
	f.commit()

	// the proposer's block applies the queue tx on one working state
	st1 := f.db.NewState()
	st1.BeginBlock(f.now)
	_, err := st1.Queue(&tx.QueueTx{ProposalId: id}, f.voter.Index, false)
	require.NoError(t, err)

	// finalization replays the same block on another; handles written by
	// the first state must not leak into the second
	st2 := f.db.NewState()
	st2.BeginBlock(f.now)
	_, err = st2.Queue(&tx.QueueTx{ProposalId: id}, f.voter.Index, false)
	require.NoError(t, err)

	p, err := st2.ProposalById(id)
	require.NoError(t, err)
	h := timelock.TxHash(id, p.Actions[0], p.Eta)

	// only a committed state carries the handle
	require.False(t, f.db.NewState().Queued(h))

	_, err = st2.Update()
	require.NoError(t, err)
	_, err = f.db.SetState(st2)
	require.NoError(t, err)
	f.st = f.db.NewState()
	f.st.BeginBlock(f.now)
	require.True(t, f.st.Queued(h))
	require.Equal(t, types.ProposalStateQueued, f.stateOf(t, id))

	// execute replays the same way once eta passes
	e1 := f.db.NewState()
	e1.BeginBlock(p.Eta)
	_, err = e1.Execute(&tx.ExecuteTx{ProposalId: id}, f.voter.Index, false)
	require.NoError(t, err)

	e2 := f.db.NewState()
	e2.BeginBlock(p.Eta)
	_, err = e2.Execute(&tx.ExecuteTx{ProposalId: id}, f.voter.Index, false)
	require.NoError(t, err)

	_, err = e2.Update()
	require.NoError(t, err)
	_, err = f.db.SetState(e2)
	require.NoError(t, err)
	require.False(t, f.db.NewState().Queued(h))
}

func TestQueuedHandlesSurviveRestart(t *testing.T) {
	f := newCouncilFixture(t)
	id := f.proposeOne(t)
	f.succeed(t, id)

	_, err := f.st.Queue(&tx.QueueTx{ProposalId: id}, f.voter.Index, false)
	require.NoError(t, err)
	p, err := f.st.ProposalById(id)
	require.NoError(t, err)
	f.commit()

	// reopen the database from disk, as a restarted node does
	require.NoError(t, f.db.Close())
	db, err := NewStateDB(f.dir, f.tl, f.ex, cmtlog.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st := db.NewState()
	st.BeginBlock(p.Eta)
	require.True(t, st.Queued(timelock.TxHash(id, p.Actions[0], p.Eta)))

	_, err = st.Execute(&tx.ExecuteTx{ProposalId: id}, f.voter.Index, false)
	require.NoError(t, err)
}

func TestDefeatedBelowQuorumSnapshot(t *testing.T) {
	f := newCouncilFixture(t)
	small := f.addAccount(200_000)
	f.createLock(small, 100_000, config.Epoch)
	f.commit()

	id := f.proposeOne(t)
	f.activate(t, id, f.voter.Index)
	f.commit()

	// unanimous approval, but a one-epoch lock carries almost no weight,
	// so the for votes land far below the quorum snapshot
	ev, err := f.st.CastVote(&tx.CastVoteTx{ProposalId: id, Support: types.VoteFor}, small.Index, false)
	require.NoError(t, err)
	weight, ok := new(big.Int).SetString(ev.Weight, 10)
	require.True(t, ok)
	require.Positive(t, weight.Sign())

	p, err := f.st.ProposalById(id)
	require.NoError(t, err)
	require.Less(t, weight.Int64(), p.QuorumVotes.Int64())

	for f.height() <= p.EndHeight {
		f.commit()
	}
	require.Equal(t, types.ProposalStateDefeated, f.stateOf(t, id))

	_, err = f.st.Queue(&tx.QueueTx{ProposalId: id}, f.voter.Index, false)
	require.ErrorIs(t, err, ErrFailedProposal)
}

func TestQueuedProposalExpiresPastGrace(t *testing.T) {
	f := newCouncilFixture(t)
	id := f.proposeOne(t)
	f.succeed(t, id)

	_, err := f.st.Queue(&tx.QueueTx{ProposalId: id}, f.voter.Index, false)
	require.NoError(t, err)
	p, err := f.st.ProposalById(id)
	require.NoError(t, err)
	f.commit()

	// at the grace bound the proposal still reads Queued
	f.setTime(p.Eta + f.tl.GracePeriod())
	require.Equal(t, types.ProposalStateQueued, f.stateOf(t, id))

	// one past it the window is spent
	f.setTime(p.Eta + f.tl.GracePeriod() + 1)
	require.Equal(t, types.ProposalStateExpired, f.stateOf(t, id))

	_, err = f.st.Execute(&tx.ExecuteTx{ProposalId: id}, f.voter.Index, false)
	require.ErrorIs(t, err, ErrFailedProposal)
}

func TestProposalLookupErrors(t *testing.T) {
	f := newCouncilFixture(t)

	_, err := f.st.ProposalById(0)
	require.ErrorIs(t, err, ErrIdInvalid)
	_, err = f.st.ProposalById(42)
	require.ErrorIs(t, err, ErrIdInvalid)
}
