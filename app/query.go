package app

import (
	"context"
	"encoding/json"
	"strings"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"

	"github.com/parsdao/pars-gov/state"
	"github.com/parsdao/pars-gov/types"
)

func (app *GovApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res = &abcitypes.ResponseQuery{}
		res.Code = 404
		return
	}
	res, err = q.Query(ctx, req)
	return
}

type Querier interface {
	Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error)
}

type AccountQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewAccountQuerier(db *state.StateDB, logger cmtlog.Logger) (q *AccountQuerier) {
	q = &AccountQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *AccountQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	var a *state.Account
	var height uint64
	if len(req.Data) == 20 {
		a, height, _ = q.db.GetAccountByAddress(req.Data)
	} else if len(req.Data) <= 8 {
		var idx uint64
		for _, v := range req.Data {
			idx <<= 8
			idx |= uint64(v)
		}
		a, height, _ = q.db.GetAccountByIndex(idx)
	}
	if a != nil {
		res.Value, _ = json.Marshal(a)
		res.Height = int64(height)
	} else {
		res.Code = 1
	}
	return
}

type ValidatorQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewValidatorQuerier(db *state.StateDB, logger cmtlog.Logger) (q *ValidatorQuerier) {
	q = &ValidatorQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *ValidatorQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	validators, height, err := q.db.State().ValidatorAccounts()
	if err != nil {
		res.Code = 1
		return
	}
	res.Height = int64(height)
	res.Value, _ = json.Marshal(validators)
	return
}

type LockQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewLockQuerier(db *state.StateDB, logger cmtlog.Logger) (q *LockQuerier) {
	q = &LockQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *LockQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	if len(req.Data) != 20 {
		res.Code = 1
		res.Log = "expect 20 byte address"
		return
	}
	lock, height, err := q.db.GetLock(common.BytesToAddress(req.Data))
	if err != nil {
		res.Code = 1
		res.Log = err.Error()
		return res, nil
	}
	res.Height = int64(height)
	res.Value, _ = json.Marshal(lock)
	return
}

// PowerQuerier answers instantaneous power for a 20-byte address, or prior
// votes when 8 big-endian height bytes follow the address.
type PowerQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewPowerQuerier(db *state.StateDB, logger cmtlog.Logger) (q *PowerQuerier) {
	q = &PowerQuerier{
		db:     db,
		logger: logger,
	}
	return
}

type PowerResult struct {
	Account string `json:"account"`
	Power   string `json:"power"`
	Height  uint64 `json:"height"`
}

func (q *PowerQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	switch len(req.Data) {
	case 20:
		addr := common.BytesToAddress(req.Data)
		power, height, err := q.db.GetVotingPower(addr)
		if err != nil {
			res.Code = 1
			res.Log = err.Error()
			return res, nil
		}
		res.Height = int64(height)
		res.Value, _ = json.Marshal(&PowerResult{Account: addr.Hex(), Power: power.String(), Height: height})
	case 28:
		addr := common.BytesToAddress(req.Data[:20])
		var height uint64
		for _, v := range req.Data[20:] {
			height <<= 8
			height |= uint64(v)
		}
		power, err := q.db.GetPriorVotes(addr, height)
		if err != nil {
			res.Code = 1
			res.Log = err.Error()
			return res, nil
		}
		res.Height = int64(height)
		res.Value, _ = json.Marshal(&PowerResult{Account: addr.Hex(), Power: power.String(), Height: height})
	default:
		res.Code = 1
		res.Log = "expect address or address+height"
	}
	return
}

type DelegateQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewDelegateQuerier(db *state.StateDB, logger cmtlog.Logger) (q *DelegateQuerier) {
	q = &DelegateQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *DelegateQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	if len(req.Data) != 20 {
		res.Code = 1
		res.Log = "expect 20 byte address"
		return
	}
	delegatee, err := q.db.GetDelegate(common.BytesToAddress(req.Data))
	if err != nil {
		res.Code = 1
		res.Log = err.Error()
		return res, nil
	}
	res.Value = []byte(delegatee.Hex())
	return
}

type ProposalQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewProposalQuerier(db *state.StateDB, logger cmtlog.Logger) (q *ProposalQuerier) {
	q = &ProposalQuerier{
		db:     db,
		logger: logger,
	}
	return
}

type ProposalResult struct {
	Proposal *types.Proposal `json:"proposal"`
	State    string          `json:"state"`
}

func (q *ProposalQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	if len(req.Data) == 0 || len(req.Data) > 8 {
		res.Code = 1
		res.Log = "expect proposal id bytes"
		return
	}
	var id uint64
	for _, v := range req.Data {
		id <<= 8
		id |= uint64(v)
	}
	p, st, err := q.db.GetProposal(id)
	if err != nil {
		res.Code = 1
		res.Log = err.Error()
		return res, nil
	}
	res.Value, _ = json.Marshal(&ProposalResult{Proposal: p, State: st.String()})
	return
}

type SupplyQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewSupplyQuerier(db *state.StateDB, logger cmtlog.Logger) (q *SupplyQuerier) {
	q = &SupplyQuerier{
		db:     db,
		logger: logger,
	}
	return
}

type SupplyResult struct {
	TotalLocked string `json:"totalLocked"`
	TotalPower  string `json:"totalPower"`
}

func (q *SupplyQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	locked, power, err := q.db.GetTotalSupply()
	if err != nil {
		res.Code = 1
		res.Log = err.Error()
		return res, nil
	}
	res.Value, _ = json.Marshal(&SupplyResult{TotalLocked: locked.String(), TotalPower: power.String()})
	return
}
