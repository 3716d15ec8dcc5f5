package handler

import (
	"context"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/parsdao/pars-gov/state"
	"github.com/parsdao/pars-gov/tx"
)

type ParamsTxHandler struct {
	logger cmtlog.Logger
}

func NewParamsTxHandler(logger cmtlog.Logger) (h *ParamsTxHandler) {
	logger = logger.With("module", "paramsTx")
	h = &ParamsTxHandler{
		logger: logger,
	}
	return
}

func (h *ParamsTxHandler) Check(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: 0}
	stx := btx.Tx.(*tx.SetParamsTx)
	err1 := st.SetParams(stx, btx.Sender, true)
	if err1 != nil {
		h.logger.Info("CheckTx set params fail", "err", err1)
		res.Code = 1
		res.Log = err1.Error()
	}
	return
}

func (h *ParamsTxHandler) NewContext(ctx context.Context) {
}

func (h *ParamsTxHandler) handle(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	stx := btx.Tx.(*tx.SetParamsTx)
	if err = st.SetParams(stx, btx.Sender, false); err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{}
	return
}

func (h *ParamsTxHandler) Prepare(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}

func (h *ParamsTxHandler) Process(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}
