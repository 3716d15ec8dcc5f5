package state

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/parsdao/pars-gov/config"
	"github.com/parsdao/pars-gov/tx"
)

func TestCreateLockPowerDecay(t *testing.T) {
	c := newTestChain(t)
	a := c.addAccount(2_000_000)
	addr := a.EthAddress()

	c.createLock(a, 1_000_000, config.MaxLockDuration)

	// base = Epoch*1000, end = floor((base+max)/Epoch)*Epoch
	end := epochAligned(config.Epoch*1000 + config.MaxLockDuration)
	lock, err := c.st.LockInfo(addr)
	require.NoError(t, err)
	require.Equal(t, end, lock.End)
	require.Equal(t, int64(1_000_000), lock.Amount.Int64())

	// 1_000_000 * 125_798_400 / 126_144_000, floor
	power, err := c.st.VotingPower(addr)
	require.NoError(t, err)
	require.Equal(t, int64(997_260), power.Int64())

	// halve the remaining time, the power halves (floor)
	c.setTime(end - (end-config.Epoch*1000)/2)
	power, err = c.st.VotingPower(addr)
	require.NoError(t, err)
	require.Equal(t, int64(498_630), power.Int64())

	// at the unlock time the weight is spent
	c.setTime(end)
	power, err = c.st.VotingPower(addr)
	require.NoError(t, err)
	require.Zero(t, power.Sign())
}

func TestCreateLockGuards(t *testing.T) {
	c := newTestChain(t)
	a := c.addAccount(1000)

	_, err := c.st.CreateLock(&tx.CreateLockTx{Amount: big.NewInt(0), Duration: config.Epoch}, a.Index, false)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = c.st.CreateLock(&tx.CreateLockTx{Amount: big.NewInt(100), Duration: config.MinLockDuration - 1}, a.Index, false)
	require.ErrorIs(t, err, ErrInvalidDuration)

	_, err = c.st.CreateLock(&tx.CreateLockTx{Amount: big.NewInt(100), Duration: config.MaxLockDuration + 1}, a.Index, false)
	require.ErrorIs(t, err, ErrInvalidDuration)

	_, err = c.st.CreateLock(&tx.CreateLockTx{Amount: big.NewInt(2000), Duration: config.Epoch}, a.Index, false)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	c.createLock(a, 500, config.Epoch)
	_, err = c.st.CreateLock(&tx.CreateLockTx{Amount: big.NewInt(100), Duration: config.Epoch}, a.Index, false)
	require.ErrorIs(t, err, ErrLockAlreadyExists)

	_, err = c.st.CreateLock(&tx.CreateLockTx{Amount: big.NewInt(100), Duration: config.Epoch}, 999999, false)
	require.ErrorIs(t, err, ErrAccountNoexists)
}

func TestIncreaseAmountKeepsEnd(t *testing.T) {
	c := newTestChain(t)
	a := c.addAccount(1_000_000)
	addr := a.EthAddress()

	_, err := c.st.IncreaseAmount(&tx.IncreaseAmountTx{Amount: big.NewInt(100)}, a.Index, false)
	require.ErrorIs(t, err, ErrNoExistingLock)

	c.createLock(a, 400_000, config.MaxLockDuration)
	lock, err := c.st.LockInfo(addr)
	require.NoError(t, err)
	end := lock.End

	_, err = c.st.IncreaseAmount(&tx.IncreaseAmountTx{Amount: big.NewInt(200_000)}, a.Index, false)
	require.NoError(t, err)

	lock, err = c.st.LockInfo(addr)
	require.NoError(t, err)
	require.Equal(t, end, lock.End)
	require.Equal(t, int64(600_000), lock.Amount.Int64())
	require.Equal(t, int64(600_000), c.st.TotalLocked().Int64())
}

func TestExtendLockBounds(t *testing.T) {
	c := newTestChain(t)
	a := c.addAccount(1_000_000)
	addr := a.EthAddress()
	base := config.Epoch * 1000

	c.createLock(a, 100_000, config.MinLockDuration)
	lock, err := c.st.LockInfo(addr)
	require.NoError(t, err)
	require.Equal(t, base+config.Epoch, lock.End)

	// sub-epoch extension aligns back onto the current end
	_, err = c.st.ExtendLock(&tx.ExtendLockTx{Duration: config.Epoch - 1}, a.Index, false)
	require.ErrorIs(t, err, ErrInvalidDuration)

	// a full max extension from the current end overshoots the cap
	_, err = c.st.ExtendLock(&tx.ExtendLockTx{Duration: config.MaxLockDuration}, a.Index, false)
	require.ErrorIs(t, err, ErrMaxLockExceeded)

	_, err = c.st.ExtendLock(&tx.ExtendLockTx{Duration: config.Epoch}, a.Index, false)
	require.NoError(t, err)
	lock, err = c.st.LockInfo(addr)
	require.NoError(t, err)
	require.Equal(t, base+2*config.Epoch, lock.End)
}

func TestWithdrawRoundTrip(t *testing.T) {
	c := newTestChain(t)
	a := c.addAccount(1_000_000)
	addr := a.EthAddress()

	c.createLock(a, 600_000, config.Epoch)
	lock, err := c.st.LockInfo(addr)
	require.NoError(t, err)

	_, err = c.st.Withdraw(&tx.WithdrawTx{}, a.Index, false)
	require.ErrorIs(t, err, ErrLockNotExpired)

	c.setTime(lock.End)
	ev, err := c.st.Withdraw(&tx.WithdrawTx{}, a.Index, false)
	require.NoError(t, err)
	require.Equal(t, "600000", ev.Amount)

	acnt, err := c.st.GetAccount(a.Index)
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), acnt.Balance.Int64())
	require.Zero(t, c.st.TotalLocked().Sign())

	_, err = c.st.Withdraw(&tx.WithdrawTx{}, a.Index, false)
	require.ErrorIs(t, err, ErrNoExistingLock)
}

func TestDelegationMovesCheckpointedPower(t *testing.T) {
	c := newTestChain(t)
	a := c.addAccount(2_000_000)
	b := c.addAccount(2_000_000)
	addrA, addrB := a.EthAddress(), b.EthAddress()

	c.createLock(a, 1_000_000, config.MaxLockDuration)
	c.createLock(b, 500_000, config.MaxLockDuration)
	c.commit()

	ownA, err := c.st.VotingPower(addrA)
	require.NoError(t, err)
	ownB, err := c.st.VotingPower(addrB)
	require.NoError(t, err)

	_, err = c.st.Delegate(&tx.DelegateTx{Delegatee: addrB}, a.Index, false)
	require.NoError(t, err)

	// the delegator's own instantaneous power drops to zero
	power, err := c.st.VotingPower(addrA)
	require.NoError(t, err)
	require.Zero(t, power.Sign())

	// delegating away does not write a checkpoint for the delegator
	cpsA, err := c.st.Checkpoints(addrA)
	require.NoError(t, err)
	require.Len(t, cpsA, 1)

	// the delegatee's log now carries both locks
	latestB, err := c.st.latestCheckpoint(checkpointSubject(addrB))
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Add(ownA, ownB).String(), latestB.String())

	c.commit()

	// prior votes resolve through the live delegatee
	combined, err := c.st.PriorVotes(addrA, c.height()-1)
	require.NoError(t, err)
	require.Equal(t, latestB.String(), combined.String())
}

func TestLockOpsCheckpointAccountNotDelegatee(t *testing.T) {
	c := newTestChain(t)
	a := c.addAccount(2_000_000)
	b := c.addAccount(2_000_000)
	addrA, addrB := a.EthAddress(), b.EthAddress()

	c.createLock(a, 1_000_000, config.MaxLockDuration)
	_, err := c.st.Delegate(&tx.DelegateTx{Delegatee: addrB}, a.Index, false)
	require.NoError(t, err)
	c.commit()

	before, err := c.st.latestCheckpoint(checkpointSubject(addrB))
	require.NoError(t, err)

	// a lock op checkpoints the account itself; the delegatee's log
	// stays stale until its next own checkpoint
	_, err = c.st.IncreaseAmount(&tx.IncreaseAmountTx{Amount: big.NewInt(500_000)}, a.Index, false)
	require.NoError(t, err)

	after, err := c.st.latestCheckpoint(checkpointSubject(addrB))
	require.NoError(t, err)
	require.Equal(t, before.String(), after.String())

	// the account's own checkpoint records zero while delegated away
	latestA, err := c.st.latestCheckpoint(checkpointSubject(addrA))
	require.NoError(t, err)
	require.Zero(t, latestA.Sign())
}

func TestUndelegateCheckpointsDelegator(t *testing.T) {
	c := newTestChain(t)
	a := c.addAccount(2_000_000)
	b := c.addAccount(2_000_000)
	addrA, addrB := a.EthAddress(), b.EthAddress()

	c.createLock(a, 1_000_000, config.MaxLockDuration)
	_, err := c.st.Delegate(&tx.DelegateTx{Delegatee: addrB}, a.Index, false)
	require.NoError(t, err)
	c.commit()

	_, err = c.st.Delegate(&tx.DelegateTx{Delegatee: common.Address{}}, a.Index, false)
	require.NoError(t, err)

	own, err := c.st.VotingPower(addrA)
	require.NoError(t, err)
	require.Positive(t, own.Sign())

	latestA, err := c.st.latestCheckpoint(checkpointSubject(addrA))
	require.NoError(t, err)
	require.Equal(t, own.String(), latestA.String())

	latestB, err := c.st.latestCheckpoint(checkpointSubject(addrB))
	require.NoError(t, err)
	require.Zero(t, latestB.Sign())
}

func TestDelegateGuards(t *testing.T) {
	c := newTestChain(t)
	a := c.addAccount(1000)

	_, err := c.st.Delegate(&tx.DelegateTx{Delegatee: a.EthAddress()}, a.Index, false)
	require.ErrorIs(t, err, ErrInvalidDelegatee)
}

func TestPriorVotesRequiresPastHeight(t *testing.T) {
	c := newTestChain(t)
	a := c.addAccount(1000)
	c.commit()

	_, err := c.st.PriorVotes(a.EthAddress(), c.height())
	require.ErrorIs(t, err, ErrHeightNotPast)

	_, err = c.st.PriorVotes(a.EthAddress(), c.height()+10)
	require.ErrorIs(t, err, ErrHeightNotPast)
}

func TestTotalSupplyTracksCustody(t *testing.T) {
	c := newTestChain(t)
	a := c.addAccount(2_000_000)

	c.createLock(a, 1_000_000, config.MaxLockDuration)
	c.commit()

	// the total log records undecayed custody, not decayed power
	total, err := c.st.TotalVotingPower()
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), total.Int64())
	require.Equal(t, int64(1_000_000), c.st.TotalLocked().Int64())
}
