package timelock

import (
	"math/big"
	"testing"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/parsdao/pars-gov/types"
)

const (
	testDelay = 100
	testGrace = 1000
)

// handleSet is a plain in-memory HandleStore for tests; the node backs the
// store with consensus state instead.
type handleSet map[common.Hash]bool

func (s handleSet) Queued(h common.Hash) bool { return s[h] }

func (s handleSet) SetQueued(h common.Hash, queued bool) {
	if queued {
		s[h] = true
		return
	}
	delete(s, h)
}

func newTestLockbox() (*Lockbox, handleSet, *RecordingExecutor) {
	ex := NewRecordingExecutor()
	return NewLockbox(testDelay, testGrace, ex, cmtlog.NewNopLogger()), make(handleSet), ex
}

func testAction() types.Action {
	return types.Action{
		Target:    common.Address{0x01},
		Value:     big.NewInt(0),
		Signature: "setValue(uint256)",
		Data:      []byte{0x2a},
	}
}

func TestTxHashDeterministic(t *testing.T) {
	action := testAction()
	h1 := TxHash(1, action, 500)
	h2 := TxHash(1, action, 500)
	require.Equal(t, h1, h2)

	require.NotEqual(t, h1, TxHash(2, action, 500))
	require.NotEqual(t, h1, TxHash(1, action, 501))

	other := testAction()
	other.Data = []byte{0x2b}
	require.NotEqual(t, h1, TxHash(1, other, 500))
}

func TestTxHashNilValue(t *testing.T) {
	action := testAction()
	withZero := TxHash(1, action, 500)
	action.Value = nil
	require.Equal(t, withZero, TxHash(1, action, 500))
}

func TestQueueAndCancel(t *testing.T) {
	lb, store, _ := newTestLockbox()
	action := testAction()

	h, err := lb.QueueTransaction(store, 1, action, 500)
	require.NoError(t, err)
	require.True(t, store.Queued(h))

	_, err = lb.QueueTransaction(store, 1, action, 500)
	require.ErrorIs(t, err, ErrAlreadyQueued)

	lb.CancelTransaction(store, 1, action, 500)
	require.False(t, store.Queued(h))

	// canceling an unqueued handle is a no-op
	lb.CancelTransaction(store, 1, action, 500)
	require.False(t, store.Queued(h))
}

func TestQueueIsPerStore(t *testing.T) {
	lb, store, _ := newTestLockbox()
	action := testAction()

	h, err := lb.QueueTransaction(store, 1, action, 500)
	require.NoError(t, err)

	// the lockbox keeps no handle state of its own: the same tx queued
	// into an independent store must not collide with the first
	other := make(handleSet)
	h2, err := lb.QueueTransaction(other, 1, action, 500)
	require.NoError(t, err)
	require.Equal(t, h, h2)
	require.True(t, store.Queued(h))
	require.True(t, other.Queued(h))

	// consuming the handle in one store leaves the other untouched
	_, err = lb.ExecuteTransaction(other, 1, action, 500, 500)
	require.NoError(t, err)
	require.False(t, other.Queued(h))
	require.True(t, store.Queued(h))
}

func TestExecuteWindow(t *testing.T) {
	lb, store, ex := newTestLockbox()
	action := testAction()
	eta := uint64(500)

	_, err := lb.ExecuteTransaction(store, 1, action, eta, eta)
	require.ErrorIs(t, err, ErrNotQueued)

	h, err := lb.QueueTransaction(store, 1, action, eta)
	require.NoError(t, err)

	_, err = lb.ExecuteTransaction(store, 1, action, eta, eta-1)
	require.ErrorIs(t, err, ErrBeforeEta)
	require.True(t, store.Queued(h), "a too-early attempt must not consume the handle")

	_, err = lb.ExecuteTransaction(store, 1, action, eta, eta+testGrace+1)
	require.ErrorIs(t, err, ErrPastGracePeriod)
	require.True(t, store.Queued(h), "a stale attempt must not consume the handle")

	_, err = lb.ExecuteTransaction(store, 1, action, eta, eta+testGrace)
	require.NoError(t, err)
	require.False(t, store.Queued(h))

	calls := ex.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, uint64(1), calls[0].ProposalId)
	require.Equal(t, action.Target, calls[0].Action.Target)
}

func TestExecuteCodeHashPinned(t *testing.T) {
	lb, store, ex := newTestLockbox()
	action := testAction()
	action.CodeHash = common.HexToHash("0xabcdef")
	eta := uint64(500)

	_, err := lb.QueueTransaction(store, 1, action, eta)
	require.NoError(t, err)

	// the target was upgraded since propose time
	ex.SetCodeHash(action.Target, common.HexToHash("0x123456"))
	_, err = lb.ExecuteTransaction(store, 1, action, eta, eta)
	require.ErrorIs(t, err, ErrCodeHashMismatch)

	_, err = lb.QueueTransaction(store, 2, action, eta)
	require.NoError(t, err)
	ex.SetCodeHash(action.Target, action.CodeHash)
	_, err = lb.ExecuteTransaction(store, 2, action, eta, eta)
	require.NoError(t, err)
}

func TestExecuteZeroCodeHashSkipsCheck(t *testing.T) {
	lb, store, ex := newTestLockbox()
	action := testAction()
	eta := uint64(500)

	ex.SetCodeHash(action.Target, common.HexToHash("0x123456"))
	_, err := lb.QueueTransaction(store, 1, action, eta)
	require.NoError(t, err)
	_, err = lb.ExecuteTransaction(store, 1, action, eta, eta)
	require.NoError(t, err)
}
