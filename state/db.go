package state

import (
	"math/big"
	"sync"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"

	"github.com/parsdao/pars-gov/timelock"
	"github.com/parsdao/pars-gov/types"
)

// StateDB owns the committed state and serializes access to it. Block
// execution mutates a working State obtained from NewState and commits it
// back with SetState; queriers read the committed one under the read lock.
type StateDB struct {
	mtx sync.RWMutex

	dir    string
	logger cmtlog.Logger
	db     *iavl.MutableTree

	state *State
}

func NewStateDB(dir string, tl timelock.Timelock, ex timelock.Executor, logger cmtlog.Logger) (db *StateDB, err error) {
	logger = logger.With("module", "govdb")
	ldb, err := dbm.NewDB("parsgov", "goleveldb", dir)
	if err != nil {
		return nil, err
	}
	tdb := iavl.NewMutableTree(ldb, 128, true, Cometbft2CosmosLogger(logger))
	version, err := tdb.Load()
	if err != nil {
		return nil, err
	}
	logger.Info("load db success", "version", version)
	st := newState(tdb, tl, ex, logger)
	err = st.load()
	if err != nil {
		logger.Error("from govdb load fail", "err", err)
		return nil, err
	}
	db = &StateDB{
		dir:    dir,
		logger: logger,
		db:     tdb,
		state:  st,
	}
	return
}

func (db *StateDB) Close() (err error) {
	err = db.db.Close()
	return
}

func (db *StateDB) Header() (header *StateHeader) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	header = db.state.Header()
	return
}

func (db *StateDB) State() *State {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state
}

func (db *StateDB) NewState() (st *State) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	st = db.state.nextState()
	return
}

func (db *StateDB) SetState(st *State) (hash common.Hash, err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	hash, err = st.save()
	if err != nil {
		return
	}
	db.state = st
	return
}

func (db *StateDB) GetAccountByIndex(idx uint64) (acnt *Account, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	acnt, err = db.state.GetAccount(idx)
	if err != nil {
		return
	}
	if acnt != nil {
		acnt = acnt.Clone()
	}
	height = db.state.header.Height

	return
}

func (db *StateDB) GetAccountByAddress(addr []byte) (acnt *Account, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	acnt, err = db.state.FindAccount(addr)
	if err != nil {
		return
	}
	if acnt != nil {
		acnt = acnt.Clone()
	}
	height = db.state.header.Height

	return
}

func (db *StateDB) GetLock(addr common.Address) (lock *types.Lock, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	lock, err = db.state.LockInfo(addr)
	height = db.state.header.Height
	return
}

func (db *StateDB) GetVotingPower(addr common.Address) (power *big.Int, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	power, err = db.state.VotingPower(addr)
	height = db.state.header.Height
	return
}

func (db *StateDB) GetPriorVotes(addr common.Address, height uint64) (power *big.Int, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	power, err = db.state.PriorVotes(addr, height)
	return
}

func (db *StateDB) GetDelegate(addr common.Address) (delegatee common.Address, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	delegatee, err = db.state.Delegates(addr)
	return
}

func (db *StateDB) GetProposal(id uint64) (p *types.Proposal, st types.ProposalState, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	p, err = db.state.ProposalById(id)
	if err != nil {
		return
	}
	st, err = db.state.ProposalStateById(id)
	return
}

func (db *StateDB) GetTotalSupply() (locked, power *big.Int, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	locked = db.state.TotalLocked()
	power, err = db.state.TotalVotingPower()
	return
}
