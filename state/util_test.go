package state

import (
	"math/big"
	"testing"

	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/require"

	"github.com/parsdao/pars-gov/config"
	"github.com/parsdao/pars-gov/timelock"
	"github.com/parsdao/pars-gov/tx"
)

const testBlockInterval = 12

// testChain drives a StateDB through the same Update/SetState cycle the
// block execution loop uses, one commit per block.
type testChain struct {
	t   *testing.T
	dir string
	db  *StateDB
	tl  *timelock.Lockbox
	ex  *timelock.RecordingExecutor
	st  *State
	now uint64
}

func newTestChain(t *testing.T) *testChain {
	t.Helper()
	logger := cmtlog.NewNopLogger()
	ex := timelock.NewRecordingExecutor()
	tl := timelock.NewLockbox(config.TimelockDelay, config.TimelockGracePeriod, ex, logger)
	dir := t.TempDir()
	db, err := NewStateDB(dir, tl, ex, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	c := &testChain{
		t:   t,
		dir: dir,
		db:  db,
		tl:  tl,
		ex:  ex,
		// epoch aligned so lock-end arithmetic stays easy to follow
		now: config.Epoch * 1000,
	}
	c.st = db.NewState()
	c.st.SetChainId("parsgov-test")
	c.st.BeginBlock(c.now)
	return c
}

func (c *testChain) addAccount(balance uint64) *Account {
	c.t.Helper()
	pk := ed25519.GenPrivKey().PubKey()
	a := &Account{
		PubKey:  pk.Bytes(),
		Balance: new(big.Int).SetUint64(balance),
	}
	require.NoError(c.t, c.st.AddAccount(a))
	return a
}

func (c *testChain) createLock(a *Account, amount, duration uint64) {
	c.t.Helper()
	_, err := c.st.CreateLock(&tx.CreateLockTx{
		Amount:   new(big.Int).SetUint64(amount),
		Duration: duration,
	}, a.Index, false)
	require.NoError(c.t, err)
}

// commit flushes the working state, makes it durable, and opens the next
// block with the clock advanced by one interval.
func (c *testChain) commit() {
	c.t.Helper()
	_, err := c.st.Update()
	require.NoError(c.t, err)
	_, err = c.db.SetState(c.st)
	require.NoError(c.t, err)
	c.st = c.db.NewState()
	c.now += testBlockInterval
	c.st.BeginBlock(c.now)
}

func (c *testChain) commitN(n int) {
	for i := 0; i < n; i++ {
		c.commit()
	}
}

// setTime jumps the working block's clock without committing.
func (c *testChain) setTime(now uint64) {
	c.now = now
	c.st.BeginBlock(now)
}

func (c *testChain) height() uint64 {
	return c.st.header.Height
}

func epochAligned(t uint64) uint64 {
	return t / config.Epoch * config.Epoch
}
