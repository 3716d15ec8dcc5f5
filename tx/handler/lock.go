package handler

import (
	"context"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/parsdao/pars-gov/state"
	"github.com/parsdao/pars-gov/tx"
	"github.com/parsdao/pars-gov/types"
)

// LockTxHandler applies the four escrow mutations. An account gets at most
// one escrow mutation per block so amount and end never interleave.
type LockTxHandler struct {
	logger cmtlog.Logger

	senderSet map[uint64]bool
}

func NewLockTxHandler(logger cmtlog.Logger) (h *LockTxHandler) {
	logger = logger.With("module", "lockTx")
	h = &LockTxHandler{
		logger:    logger,
		senderSet: make(map[uint64]bool),
	}
	return
}

func (h *LockTxHandler) apply(st *state.State, btx *tx.GovTx, checkOnly bool) (event *types.EventLock, err error) {
	switch itx := btx.Tx.(type) {
	case *tx.CreateLockTx:
		return st.CreateLock(itx, btx.Sender, checkOnly)
	case *tx.IncreaseAmountTx:
		return st.IncreaseAmount(itx, btx.Sender, checkOnly)
	case *tx.ExtendLockTx:
		return st.ExtendLock(itx, btx.Sender, checkOnly)
	case *tx.WithdrawTx:
		return st.Withdraw(itx, btx.Sender, checkOnly)
	default:
		return nil, tx.ErrUnknownTxType
	}
}

func (h *LockTxHandler) Check(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: 0}
	_, err1 := h.apply(st, btx, true)
	if err1 != nil {
		h.logger.Info("CheckTx lock fail", "err", err1)
		res.Code = 1
		res.Log = err1.Error()
	}
	return
}

func (h *LockTxHandler) NewContext(ctx context.Context) {
	h.senderSet = make(map[uint64]bool)
}

func (h *LockTxHandler) handle(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	if _, ok := h.senderSet[btx.Sender]; ok {
		return nil, state.ErrOneActionInOneBlock
	}
	event, err := h.apply(st, btx, false)
	if err != nil {
		return nil, err
	}

	h.senderSet[btx.Sender] = true
	res = &abcitypes.ExecTxResult{}
	res.Events = append(res.Events, types.EncodeEventLock(event))
	return
}

func (h *LockTxHandler) Prepare(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}

func (h *LockTxHandler) Process(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}
