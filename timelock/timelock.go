package timelock

import (
	"errors"
	"math/big"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/parsdao/pars-gov/types"
)

var (
	ErrAlreadyQueued    = errors.New("transaction already queued")
	ErrNotQueued        = errors.New("transaction not queued")
	ErrEtaTooSoon       = errors.New("eta below timelock delay")
	ErrBeforeEta        = errors.New("transaction locked until eta")
	ErrPastGracePeriod  = errors.New("transaction stale, past grace period")
	ErrCodeHashMismatch = errors.New("target code hash mismatch")
)

// Executor is the capability through which queued actions reach their
// targets. The council never dispatches a call itself; tests substitute a
// recording executor.
type Executor interface {
	Call(proposalId uint64, action types.Action) (ret []byte, err error)
	// CodeHash reports the current integrity hash of a target so the
	// timelock can verify it against the hash pinned at propose time.
	CodeHash(target common.Address) common.Hash
}

// HandleStore holds the set of live queued handles. The node backs it with
// consensus state so every replay of a block and every restarted node agree
// on which handles are queued.
type HandleStore interface {
	Queued(txHash common.Hash) bool
	SetQueued(txHash common.Hash, queued bool)
}

// Timelock is the mandatory delay between a proposal succeeding and its
// actions executing. The council derives eta from Delay and treats a queued
// transaction past Eta+GracePeriod as expired. Handle bookkeeping happens in
// the caller's store.
type Timelock interface {
	Delay() uint64
	GracePeriod() uint64
	QueueTransaction(store HandleStore, proposalId uint64, action types.Action, eta uint64) (common.Hash, error)
	CancelTransaction(store HandleStore, proposalId uint64, action types.Action, eta uint64)
	ExecuteTransaction(store HandleStore, proposalId uint64, action types.Action, eta, now uint64) ([]byte, error)
}

// TxHash derives the deterministic handle of a queued action. Both the
// council and the timelock must agree on this derivation exactly.
func TxHash(proposalId uint64, action types.Action, eta uint64) common.Hash {
	value := action.Value
	if value == nil {
		value = new(big.Int)
	}
	enc, err := rlp.EncodeToBytes([]interface{}{
		proposalId,
		action.Target,
		value,
		action.Signature,
		action.Data,
		eta,
	})
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(enc)
}

// Lockbox is the Timelock used by the node. It carries no handle state of
// its own: queued handles live in the HandleStore passed per call, so a
// discarded state copy discards its timelock mutations with it and a node
// restart recovers the queued set from the committed state.
type Lockbox struct {
	logger   cmtlog.Logger
	delay    uint64
	grace    uint64
	executor Executor
}

func NewLockbox(delay, grace uint64, executor Executor, logger cmtlog.Logger) *Lockbox {
	return &Lockbox{
		logger:   logger.With("module", "timelock"),
		delay:    delay,
		grace:    grace,
		executor: executor,
	}
}

func (l *Lockbox) Delay() uint64 {
	return l.delay
}

func (l *Lockbox) GracePeriod() uint64 {
	return l.grace
}

func (l *Lockbox) QueueTransaction(store HandleStore, proposalId uint64, action types.Action, eta uint64) (h common.Hash, err error) {
	h = TxHash(proposalId, action, eta)
	if store.Queued(h) {
		err = ErrAlreadyQueued
		return
	}
	store.SetQueued(h, true)
	l.logger.Debug("queue transaction", "proposal", proposalId, "hash", h, "eta", eta)
	return
}

// CancelTransaction is a no-op for handles that were never queued; a
// proposal can be canceled before it reaches the timelock.
func (l *Lockbox) CancelTransaction(store HandleStore, proposalId uint64, action types.Action, eta uint64) {
	h := TxHash(proposalId, action, eta)
	if !store.Queued(h) {
		return
	}
	store.SetQueued(h, false)
	l.logger.Debug("cancel transaction", "proposal", proposalId, "hash", h)
}

func (l *Lockbox) ExecuteTransaction(store HandleStore, proposalId uint64, action types.Action, eta, now uint64) (ret []byte, err error) {
	h := TxHash(proposalId, action, eta)
	if !store.Queued(h) {
		return nil, ErrNotQueued
	}
	if now < eta {
		return nil, ErrBeforeEta
	}
	if now > eta+l.grace {
		return nil, ErrPastGracePeriod
	}
	store.SetQueued(h, false)

	if action.CodeHash != (common.Hash{}) && l.executor.CodeHash(action.Target) != action.CodeHash {
		return nil, ErrCodeHashMismatch
	}
	ret, err = l.executor.Call(proposalId, action)
	if err != nil {
		l.logger.Error("execute transaction fail", "proposal", proposalId, "hash", h, "err", err)
		return
	}
	l.logger.Info("execute transaction", "proposal", proposalId, "hash", h)
	return
}
