package handler

import (
	"context"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/parsdao/pars-gov/state"
	"github.com/parsdao/pars-gov/tx"
	"github.com/parsdao/pars-gov/types"
)

// ExecutionTxHandler covers the post-vote lifecycle: queue, execute, cancel
// and veto. One lifecycle transition per proposal per block.
type ExecutionTxHandler struct {
	logger cmtlog.Logger

	proposalSet map[uint64]bool
}

func NewExecutionTxHandler(logger cmtlog.Logger) (h *ExecutionTxHandler) {
	logger = logger.With("module", "executionTx")
	h = &ExecutionTxHandler{
		logger:      logger,
		proposalSet: make(map[uint64]bool),
	}
	return
}

func (h *ExecutionTxHandler) apply(st *state.State, btx *tx.GovTx, checkOnly bool) (proposal uint64, event *types.EventLifecycle, err error) {
	switch itx := btx.Tx.(type) {
	case *tx.QueueTx:
		event, err = st.Queue(itx, btx.Sender, checkOnly)
		return itx.ProposalId, event, err
	case *tx.ExecuteTx:
		event, err = st.Execute(itx, btx.Sender, checkOnly)
		return itx.ProposalId, event, err
	case *tx.CancelTx:
		event, err = st.Cancel(itx, btx.Sender, checkOnly)
		return itx.ProposalId, event, err
	case *tx.VetoTx:
		event, err = st.Veto(itx, btx.Sender, checkOnly)
		return itx.ProposalId, event, err
	default:
		return 0, nil, tx.ErrUnknownTxType
	}
}

func (h *ExecutionTxHandler) Check(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: 0}
	_, _, err1 := h.apply(st, btx, true)
	if err1 != nil {
		h.logger.Info("CheckTx execution fail", "err", err1)
		res.Code = 1
		res.Log = err1.Error()
	}
	return
}

func (h *ExecutionTxHandler) NewContext(ctx context.Context) {
	h.proposalSet = make(map[uint64]bool)
}

func proposalIdOf(btx *tx.GovTx) uint64 {
	switch itx := btx.Tx.(type) {
	case *tx.QueueTx:
		return itx.ProposalId
	case *tx.ExecuteTx:
		return itx.ProposalId
	case *tx.CancelTx:
		return itx.ProposalId
	case *tx.VetoTx:
		return itx.ProposalId
	}
	return 0
}

func (h *ExecutionTxHandler) handle(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	proposal := proposalIdOf(btx)
	if _, ok := h.proposalSet[proposal]; ok {
		return nil, state.ErrOneActionInOneBlock
	}
	_, event, err := h.apply(st, btx, false)
	if err != nil {
		return nil, err
	}

	h.proposalSet[proposal] = true
	res = &abcitypes.ExecTxResult{}
	res.Events = append(res.Events, types.EncodeEventLifecycle(event))
	return
}

func (h *ExecutionTxHandler) Prepare(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}

func (h *ExecutionTxHandler) Process(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}
