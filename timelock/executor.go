package timelock

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parsdao/pars-gov/types"
)

// RecordedCall is one dispatched action, kept for inspection.
type RecordedCall struct {
	ProposalId uint64
	Action     types.Action
}

// RecordingExecutor records every dispatched action and returns canned
// results. It is the node's default executor (the replay substrate has no
// real call targets) and the test double for the council.
type RecordingExecutor struct {
	mtx sync.Mutex

	calls      []RecordedCall
	codeHashes map[common.Address]common.Hash
	returnData []byte
	callErr    error
}

func NewRecordingExecutor() *RecordingExecutor {
	return &RecordingExecutor{
		codeHashes: make(map[common.Address]common.Hash),
	}
}

func (e *RecordingExecutor) Call(proposalId uint64, action types.Action) ([]byte, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if e.callErr != nil {
		return nil, e.callErr
	}
	e.calls = append(e.calls, RecordedCall{ProposalId: proposalId, Action: action})
	return e.returnData, nil
}

func (e *RecordingExecutor) CodeHash(target common.Address) common.Hash {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.codeHashes[target]
}

func (e *RecordingExecutor) SetCodeHash(target common.Address, h common.Hash) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.codeHashes[target] = h
}

func (e *RecordingExecutor) FailWith(err error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.callErr = err
}

func (e *RecordingExecutor) Calls() []RecordedCall {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	out := make([]RecordedCall, len(e.calls))
	copy(out, e.calls)
	return out
}
