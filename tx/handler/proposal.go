package handler

import (
	"context"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/parsdao/pars-gov/state"
	"github.com/parsdao/pars-gov/tx"
	"github.com/parsdao/pars-gov/types"
)

// ProposalTxHandler covers propose and activate.
type ProposalTxHandler struct {
	logger cmtlog.Logger
}

func NewProposalTxHandler(logger cmtlog.Logger) (h *ProposalTxHandler) {
	logger = logger.With("module", "proposalTx")
	h = &ProposalTxHandler{
		logger: logger,
	}
	return
}

func (h *ProposalTxHandler) Check(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: 0}
	var err1 error
	switch itx := btx.Tx.(type) {
	case *tx.ProposeTx:
		_, err1 = st.Propose(itx, btx.Sender, true)
	case *tx.ActivateTx:
		_, err1 = st.Activate(itx, btx.Sender, true)
	default:
		err1 = tx.ErrUnknownTxType
	}
	if err1 != nil {
		h.logger.Info("CheckTx proposal fail", "err", err1)
		res.Code = 1
		res.Log = err1.Error()
	}
	return
}

func (h *ProposalTxHandler) NewContext(ctx context.Context) {
}

func (h *ProposalTxHandler) handle(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	res = &abcitypes.ExecTxResult{}
	switch itx := btx.Tx.(type) {
	case *tx.ProposeTx:
		event, err := st.Propose(itx, btx.Sender, false)
		if err != nil {
			return nil, err
		}
		res.Events = append(res.Events, types.EncodeEventProposal(event))
	case *tx.ActivateTx:
		event, err := st.Activate(itx, btx.Sender, false)
		if err != nil {
			return nil, err
		}
		res.Events = append(res.Events, types.EncodeEventLifecycle(event))
	default:
		return nil, tx.ErrUnknownTxType
	}
	return
}

func (h *ProposalTxHandler) Prepare(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}

func (h *ProposalTxHandler) Process(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}
