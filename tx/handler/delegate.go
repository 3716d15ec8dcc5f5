package handler

import (
	"context"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/parsdao/pars-gov/state"
	"github.com/parsdao/pars-gov/tx"
	"github.com/parsdao/pars-gov/types"
)

type DelegateTxHandler struct {
	logger cmtlog.Logger

	senderSet map[uint64]bool
}

func NewDelegateTxHandler(logger cmtlog.Logger) (h *DelegateTxHandler) {
	logger = logger.With("module", "delegateTx")
	h = &DelegateTxHandler{
		logger:    logger,
		senderSet: make(map[uint64]bool),
	}
	return
}

func (h *DelegateTxHandler) Check(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: 0}
	dtx := btx.Tx.(*tx.DelegateTx)
	_, err1 := st.Delegate(dtx, btx.Sender, true)
	if err1 != nil {
		h.logger.Info("CheckTx delegate fail", "err", err1)
		res.Code = 1
		res.Log = err1.Error()
	}
	return
}

func (h *DelegateTxHandler) NewContext(ctx context.Context) {
	h.senderSet = make(map[uint64]bool)
}

func (h *DelegateTxHandler) handle(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	if _, ok := h.senderSet[btx.Sender]; ok {
		return nil, state.ErrOneActionInOneBlock
	}
	dtx := btx.Tx.(*tx.DelegateTx)
	event, err := st.Delegate(dtx, btx.Sender, false)
	if err != nil {
		return nil, err
	}

	h.senderSet[btx.Sender] = true
	res = &abcitypes.ExecTxResult{}
	res.Events = append(res.Events, types.EncodeEventDelegate(event))
	return
}

func (h *DelegateTxHandler) Prepare(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}

func (h *DelegateTxHandler) Process(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}
