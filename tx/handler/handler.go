package handler

import (
	"context"

	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/parsdao/pars-gov/state"
	"github.com/parsdao/pars-gov/tx"
)

// TxHandler executes one tx type against the state. Check runs guards only
// (checkOnly), Prepare runs during block construction on a throwaway clone,
// Process runs during finalization. NewContext resets per-block bookkeeping.
type TxHandler interface {
	Check(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ResponseCheckTx, err error)
	NewContext(ctx context.Context)
	Prepare(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error)
	Process(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error)
}
