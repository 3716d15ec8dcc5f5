package state

import (
	"bytes"
	"container/heap"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	abci_types "github.com/cometbft/cometbft/abci/types"
	cmtcrypto "github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/parsdao/pars-gov/config"
	"github.com/parsdao/pars-gov/timelock"
	"github.com/parsdao/pars-gov/tx"
	"github.com/parsdao/pars-gov/types"
)

const (
	StartAccountIdx = 65536

	ModifiedFlagNew = 1 << 0
	ModifiedFlagMod = 1 << 1
	ModifiedFlagPK  = 1 << 2

	MaxValidators = 100
)

var (
	KeyState          = "s"
	KeyAccountIndex   = "i%s"
	KeyAccountBody    = "a%x"
	KeyLockBody       = "l%x"
	KeyDelegate       = "g%x"
	KeyDelegators     = "ds%x"
	KeyCheckpoints    = "c%s"
	KeyProposalBody   = "p%v"
	KeyProposalIndex  = "pi"
	KeyLatestProposal = "lp%x"
	KeyQueuedTx       = "q%x"
)

// SubjectTotal is the checkpoint subject tracking aggregate voting power.
const SubjectTotal = "total"

// StateHeader is the per-height consensus header of the app state.
// TotalLocked is the custody balance the total-supply checkpoints follow.
type StateHeader struct {
	ChainId     string           `json:"chainId"`
	Height      uint64           `json:"height"`
	Time        uint64           `json:"time"` // block time, unix seconds
	AccountIdx  uint64           `json:"accountIdx"`
	TotalLocked *big.Int         `json:"totalLocked"`
	Params      config.GovParams `json:"params"`
	RootHash    []byte           `json:"rootHash"`
	Hash        []byte           `json:"hash"`
}

func (h *StateHeader) Clone() *StateHeader {
	dat, _ := json.Marshal(h)
	n := new(StateHeader)
	_ = json.Unmarshal(dat, n)
	return n
}

// State applies governance transactions on top of a versioned iavl tree.
// All mutating entry points run to completion under the block execution
// loop; nothing here is safe for concurrent mutation (see StateDB).
type State struct {
	logger   cmtlog.Logger
	db       *iavl.MutableTree
	dbVer    int64
	timelock timelock.Timelock
	executor timelock.Executor

	header     *StateHeader
	validators []abci_types.ValidatorUpdate
	idxs       map[string]uint64
	acnts      map[uint64]*Account

	locks      map[common.Address]*types.Lock
	delegates  map[common.Address]common.Address
	delegators map[common.Address][]common.Address
	ckpts      map[string][]types.Checkpoint
	proposals  map[uint64]*types.Proposal
	latest     map[common.Address]uint64
	queued     map[common.Hash]bool

	modifiedAcnts      map[uint64]uint32
	modifiedLocks      map[common.Address]bool
	modifiedDelegates  map[common.Address]bool
	modifiedDelegators map[common.Address]bool
	modifiedCkpts      map[string]bool
	modifiedProposals  map[uint64]bool
	modifiedLatest     map[common.Address]bool
	modifiedQueued     map[common.Hash]bool

	proposalMaxIndex uint64
}

func newState(db *iavl.MutableTree, tl timelock.Timelock, ex timelock.Executor, logger cmtlog.Logger) *State {
	s := &State{
		logger:   logger,
		db:       db,
		dbVer:    0,
		timelock: tl,
		executor: ex,

		header:     new(StateHeader),
		validators: []abci_types.ValidatorUpdate{},
		idxs:       make(map[string]uint64),
		acnts:      make(map[uint64]*Account),

		locks:      make(map[common.Address]*types.Lock),
		delegates:  make(map[common.Address]common.Address),
		delegators: make(map[common.Address][]common.Address),
		ckpts:      make(map[string][]types.Checkpoint),
		proposals:  make(map[uint64]*types.Proposal),
		latest:     make(map[common.Address]uint64),
		queued:     make(map[common.Hash]bool),

		modifiedAcnts:      make(map[uint64]uint32),
		modifiedLocks:      make(map[common.Address]bool),
		modifiedDelegates:  make(map[common.Address]bool),
		modifiedDelegators: make(map[common.Address]bool),
		modifiedCkpts:      make(map[string]bool),
		modifiedProposals:  make(map[uint64]bool),
		modifiedLatest:     make(map[common.Address]bool),
		modifiedQueued:     make(map[common.Hash]bool),
	}
	s.header.AccountIdx = StartAccountIdx
	s.header.TotalLocked = new(big.Int)
	s.header.Params = config.DefaultGovParams()
	return s
}

func (s *State) nextState() *State {
	n := newState(s.db, s.timelock, s.executor, s.logger)
	n.dbVer = s.dbVer
	n.proposalMaxIndex = s.proposalMaxIndex
	n.header = s.header.Clone()
	if len(s.header.Hash) != 0 {
		n.header.Height = s.header.Height + 1
	}
	return n
}

// Clone deep-copies the pending state so PrepareProposal can apply txs
// tentatively and discard the copy on failure.
func (s *State) Clone() *State {
	n := newState(s.db, s.timelock, s.executor, s.logger)
	n.dbVer = s.dbVer
	n.proposalMaxIndex = s.proposalMaxIndex
	n.header = s.header.Clone()

	n.validators = append(n.validators, s.validators...)
	for k, v := range s.idxs {
		n.idxs[k] = v
	}
	for k, v := range s.acnts {
		n.acnts[k] = v.Clone()
	}
	for k, v := range s.locks {
		n.locks[k] = v.Clone()
	}
	for k, v := range s.delegates {
		n.delegates[k] = v
	}
	for k, v := range s.delegators {
		n.delegators[k] = append([]common.Address{}, v...)
	}
	for k, v := range s.ckpts {
		cp := make([]types.Checkpoint, len(v))
		for i := range v {
			cp[i] = types.Checkpoint{FromHeight: v[i].FromHeight, Votes: new(big.Int).Set(v[i].Votes)}
		}
		n.ckpts[k] = cp
	}
	for k, v := range s.proposals {
		n.proposals[k] = v.Clone()
	}
	for k, v := range s.latest {
		n.latest[k] = v
	}
	for k, v := range s.queued {
		n.queued[k] = v
	}
	for k, v := range s.modifiedAcnts {
		n.modifiedAcnts[k] = v
	}
	for k, v := range s.modifiedLocks {
		n.modifiedLocks[k] = v
	}
	for k, v := range s.modifiedDelegates {
		n.modifiedDelegates[k] = v
	}
	for k, v := range s.modifiedDelegators {
		n.modifiedDelegators[k] = v
	}
	for k, v := range s.modifiedCkpts {
		n.modifiedCkpts[k] = v
	}
	for k, v := range s.modifiedProposals {
		n.modifiedProposals[k] = v
	}
	for k, v := range s.modifiedLatest {
		n.modifiedLatest[k] = v
	}
	for k, v := range s.modifiedQueued {
		n.modifiedQueued[k] = v
	}
	return n
}

func (s *State) load() (err error) {
	val, err := s.db.Get([]byte(KeyProposalIndex))
	if err != nil {
		if err != leveldb.ErrNotFound {
			return err
		}
	}
	s.proposalMaxIndex = new(big.Int).SetBytes(val).Uint64()
	val, err = s.db.Get([]byte(KeyState))
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil
		}
		return err
	}
	if val != nil {
		err = json.Unmarshal(val, s.header)
		if err != nil {
			return
		}
		if s.header.TotalLocked == nil {
			s.header.TotalLocked = new(big.Int)
		}
		h := s.db.Hash()
		if h != nil {
			s.calcHash(h, true)
		}
	}
	return
}

func (s *State) calcHash(rootHash []byte, update bool) (h common.Hash) {
	h = crypto.Keccak256Hash(rootHash)
	if update {
		if s.header.RootHash == nil {
			s.header.RootHash = make([]byte, len(rootHash))
		}
		copy(s.header.RootHash, rootHash)
		if s.header.Hash == nil {
			s.header.Hash = make([]byte, len(h))
		}
		copy(s.header.Hash, h[:])
	}
	return
}

// Update flushes every modified record into the working tree in a
// deterministic order and returns the working hash. Nothing is made durable
// until save.
func (s *State) Update() (h common.Hash, err error) {
	var hash []byte
	defer func() {
		if hash == nil {
			s.db.Rollback()
		}
	}()
	var val []byte
	val, err = json.Marshal(s.header)
	if err != nil {
		return
	}
	_, err = s.db.Set([]byte(KeyState), val)
	if err != nil {
		return
	}

	if len(s.modifiedProposals) != 0 {
		_, err = s.db.Set([]byte(KeyProposalIndex), new(big.Int).SetUint64(s.proposalMaxIndex).Bytes())
		if err != nil {
			return
		}
		ids := sortedKeysUint64(s.modifiedProposals)
		for _, id := range ids {
			key := fmt.Sprintf(KeyProposalBody, id)
			var proposalBz []byte
			proposalBz, err = json.Marshal(s.proposals[id])
			if err != nil {
				return
			}
			_, err = s.db.Set([]byte(key), proposalBz)
			if err != nil {
				return
			}
		}
	}

	for _, addr := range sortedKeysAddr(s.modifiedLocks) {
		key := fmt.Sprintf(KeyLockBody, addr.Bytes())
		val, err = json.Marshal(s.locks[addr])
		if err != nil {
			return
		}
		_, err = s.db.Set([]byte(key), val)
		if err != nil {
			return
		}
	}

	for _, addr := range sortedKeysAddr(s.modifiedDelegates) {
		key := fmt.Sprintf(KeyDelegate, addr.Bytes())
		_, err = s.db.Set([]byte(key), s.delegates[addr].Bytes())
		if err != nil {
			return
		}
	}

	for _, addr := range sortedKeysAddr(s.modifiedDelegators) {
		key := fmt.Sprintf(KeyDelegators, addr.Bytes())
		val, err = json.Marshal(s.delegators[addr])
		if err != nil {
			return
		}
		_, err = s.db.Set([]byte(key), val)
		if err != nil {
			return
		}
	}

	if len(s.modifiedCkpts) != 0 {
		subjects := make([]string, 0, len(s.modifiedCkpts))
		for subject := range s.modifiedCkpts {
			subjects = append(subjects, subject)
		}
		sort.Strings(subjects)
		for _, subject := range subjects {
			key := fmt.Sprintf(KeyCheckpoints, subject)
			val, err = json.Marshal(s.ckpts[subject])
			if err != nil {
				return
			}
			_, err = s.db.Set([]byte(key), val)
			if err != nil {
				return
			}
		}
	}

	for _, addr := range sortedKeysAddr(s.modifiedLatest) {
		key := fmt.Sprintf(KeyLatestProposal, addr.Bytes())
		val, err = rlp.EncodeToBytes(s.latest[addr])
		if err != nil {
			return
		}
		_, err = s.db.Set([]byte(key), val)
		if err != nil {
			return
		}
	}

	for _, qh := range sortedKeysHash(s.modifiedQueued) {
		key := fmt.Sprintf(KeyQueuedTx, qh.Bytes())
		if s.queued[qh] {
			_, err = s.db.Set([]byte(key), []byte{1})
		} else {
			_, _, err = s.db.Remove([]byte(key))
		}
		if err != nil {
			return
		}
	}

	n := len(s.modifiedAcnts)
	if n > 0 {
		idxs := make([]uint64, n)
		i := 0
		for idx := range s.modifiedAcnts {
			idxs[i] = idx
			i += 1
		}
		sort.Slice(idxs, func(i, j int) bool {
			return idxs[i] < idxs[j]
		})
		for _, idx := range idxs {
			flag := s.modifiedAcnts[idx]
			acnt := s.acnts[idx]
			key := fmt.Sprintf(KeyAccountBody, acnt.Index)
			val, err = json.Marshal(acnt)
			if err != nil {
				return
			}
			_, err = s.db.Set([]byte(key), val)
			if err != nil {
				return
			}
			if (flag&ModifiedFlagNew == ModifiedFlagNew) || (flag&ModifiedFlagPK == ModifiedFlagPK) {
				key = fmt.Sprintf(KeyAccountIndex, acnt.Address())
				val, err = rlp.EncodeToBytes(acnt.Index)
				if err != nil {
					return
				}
				_, err = s.db.Set([]byte(key), val)
				if err != nil {
					return
				}
			}
		}
	}
	hash = s.db.WorkingHash()
	h = s.calcHash(hash, false)
	s.modifiedAcnts = make(map[uint64]uint32)
	return
}

func (s *State) save() (h common.Hash, err error) {
	hash, ver, err := s.db.SaveVersion()
	if err != nil {
		return h, err
	}

	s.dbVer = ver
	h = s.calcHash(hash, true)

	return
}

func (s *State) Header() *StateHeader {
	return s.header
}

func (s *State) Hash() (h common.Hash) {
	if s.header.Hash != nil {
		copy(h[:], s.header.Hash)
	}
	return
}

func (s *State) SetChainId(chainId string) {
	s.header.ChainId = chainId
}

// BeginBlock injects the consensus block time before txs are applied. The
// height was already advanced by nextState.
func (s *State) BeginBlock(blockTime uint64) {
	s.header.Time = blockTime
}

func (s *State) Params() config.GovParams {
	return s.header.Params
}

// Queued reports whether a timelock handle is live. Handles are part of the
// replicated state: a discarded working copy drops its queue mutations, and
// a restarted node reads them back from the tree.
func (s *State) Queued(h common.Hash) bool {
	if q, ok := s.queued[h]; ok {
		return q
	}
	key := fmt.Sprintf(KeyQueuedTx, h.Bytes())
	val, err := s.db.Get([]byte(key))
	if err != nil && err != leveldb.ErrNotFound {
		s.logger.Error("read queued handle fail", "hash", h, "err", err)
		return false
	}
	q := len(val) != 0
	s.queued[h] = q
	return q
}

// SetQueued flips a timelock handle. Only the timelock calls this.
func (s *State) SetQueued(h common.Hash, queued bool) {
	s.queued[h] = queued
	s.modifiedQueued[h] = true
}

func (s *State) GetAccount(idx uint64) (acnt *Account, err error) {
	if idx >= s.header.AccountIdx {
		err = ErrAccountNoexists
		return
	}
	acnt = s.acnts[idx]
	if acnt != nil {
		return
	}
	key := fmt.Sprintf(KeyAccountBody, idx)
	val, err := s.db.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	if val == nil {
		err = ErrNotFound
		return
	}
	acnt = new(Account)
	err = json.Unmarshal(val, acnt)
	if err != nil {
		acnt = nil
		return
	}
	s.acnts[idx] = acnt
	return
}

func (s *State) FindAccount(addr []byte) (acnt *Account, err error) {
	saddr := cmtcrypto.Address(addr).String()
	idx, ok := s.idxs[saddr]
	if !ok {
		key := fmt.Sprintf(KeyAccountIndex, saddr)
		val, err := s.db.Get([]byte(key))
		if err != nil {
			if err == leveldb.ErrNotFound {
				return nil, nil
			}
			return nil, err
		}
		if val == nil {
			return nil, nil
		}
		err = rlp.DecodeBytes(val, &idx)
		if err != nil {
			return nil, err
		}
		s.idxs[saddr] = idx
	}
	acnt, err = s.GetAccount(idx)

	return
}

func (s *State) AddAccount(acnt *Account) (err error) {
	a, err := s.FindAccount(acnt.AddrBytes())
	if err != nil {
		return err
	}
	if a != nil {
		err = ErrAccountAlreadyExists
		return
	}
	if acnt.Balance == nil {
		acnt.Balance = new(big.Int)
	}
	acnt.Index = s.header.AccountIdx
	s.header.AccountIdx += 1
	s.acnts[acnt.Index] = acnt.Clone()
	s.modifiedAcnts[acnt.Index] = ModifiedFlagNew
	return
}

func (s *State) touchAccount(a *Account) {
	a.Nonce += 1
	v := s.modifiedAcnts[a.Index]
	v |= ModifiedFlagMod
	s.modifiedAcnts[a.Index] = v
	s.acnts[a.Index] = a.Clone()
}

func (s *State) Verify(btx *tx.GovTx, allowNonceGap bool) (succ bool, err error) {
	a, err := s.GetAccount(btx.Sender)
	if err != nil {
		return succ, err
	}
	if a == nil {
		err = ErrTxSenderNoexists
		return
	}
	if !(a.Nonce == btx.Nonce || (allowNonceGap && a.Nonce < btx.Nonce)) {
		err = ErrTxNonceInvalid
		return
	}
	dat, err := btx.SigData([]byte(s.header.ChainId))
	if err != nil {
		return succ, err
	}
	succ = a.Verify(dat, btx.Sig)
	if !succ {
		err = ErrTxSigInvalid
	}
	return
}

// Validators recomputes the validator set from escrow custody: power follows
// the locked amount, capped to the top MaxValidators.
func (s *State) Validators() (updateVals map[string]abci_types.ValidatorUpdate, err error) {
	updateVals = make(map[string]abci_types.ValidatorUpdate, 0)
	start := []byte(fmt.Sprintf(KeyAccountBody, ""))
	end := PrefixEndBytes(start)
	aIterator, err := s.db.Iterator(start, end, true)
	if err != nil {
		return nil, err
	}

	valsQueue := &PowerQueue{}
	heap.Init(valsQueue)
	for ; aIterator.Valid(); aIterator.Next() {
		var act Account
		valBytes := aIterator.Value()
		err = json.Unmarshal(valBytes, &act)
		if err != nil {
			return nil, err
		}
		// read the lock from the tree, not the cache: the set before and
		// after Update must differ for the validator diff to fire
		lockKey := fmt.Sprintf(KeyLockBody, act.AddrBytes())
		lockBz, err := s.db.Get([]byte(lockKey))
		if err != nil && err != leveldb.ErrNotFound {
			return nil, err
		}
		var lock types.Lock
		if lockBz != nil {
			if err = json.Unmarshal(lockBz, &lock); err != nil {
				return nil, err
			}
		}
		power := config.PowerPerStake(lock.Amount, s.header.Height)
		if power > 0 {
			heap.Push(valsQueue, validatorWithPower{
				Index:  act.Index,
				Pubkey: act.PubKey,
				Power:  power,
			})
		}
	}

	vals := make([]abci_types.ValidatorUpdate, 0)
	for valsQueue.Len() > 0 && len(vals) < MaxValidators {
		val := heap.Pop(valsQueue).(validatorWithPower)
		vals = append(vals, abci_types.Ed25519ValidatorUpdate(val.Pubkey, val.Power))
	}
	s.validators = vals

	for _, val := range vals {
		updateVals[val.PubKey.String()] = val
	}

	return updateVals, nil
}

func (s *State) ValidatorsUpdate(curVals map[string]abci_types.ValidatorUpdate) (updateVals []abci_types.ValidatorUpdate, err error) {
	nextVals, err := s.Validators()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(nextVals))
	for key := range nextVals {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		val := nextVals[key]
		if v, ok := curVals[key]; ok {
			if v.Power != val.Power {
				updateVals = append(updateVals, val)
			}
		} else {
			updateVals = append(updateVals, val)
		}
	}

	curKeys := make([]string, 0, len(curVals))
	for key := range curVals {
		curKeys = append(curKeys, key)
	}
	sort.Strings(curKeys)
	for _, key := range curKeys {
		if _, ok := nextVals[key]; !ok {
			curVal := curVals[key]
			curVal.Power = 0
			updateVals = append(updateVals, curVal)
		}
	}
	return
}

func (s *State) ValidatorAccounts() (acounts []*Account, height uint64, err error) {
	vals := s.validators
	for _, val := range vals {
		pk := ed25519.PubKey(val.PubKey.GetEd25519()[:])
		addr := pk.Address()[:]
		act, _ := s.FindAccount(addr)
		if act != nil {
			acounts = append(acounts, act)
		}
	}
	height = s.header.Height
	return
}

func sortedKeysUint64(m map[uint64]bool) []uint64 {
	out := make([]uint64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedKeysAddr(m map[common.Address]bool) []common.Address {
	out := make([]common.Address, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Bytes(), out[j].Bytes()) < 0
	})
	return out
}

func sortedKeysHash(m map[common.Hash]bool) []common.Hash {
	out := make([]common.Hash, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Bytes(), out[j].Bytes()) < 0
	})
	return out
}

type validatorWithPower struct {
	Index  uint64
	Pubkey []byte
	Power  int64
}

type PowerQueue []validatorWithPower

func (pq PowerQueue) Len() int { return len(pq) }

func (pq PowerQueue) Less(i, j int) bool {
	if pq[i].Power == pq[j].Power {
		return pq[i].Index < pq[j].Index
	}
	return pq[i].Power > pq[j].Power
}

func (pq PowerQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *PowerQueue) Push(x any) {
	item := x.(validatorWithPower)
	*pq = append(*pq, item)
}

func (pq *PowerQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[0 : n-1]
	return item
}

func PrefixEndBytes(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}

	end := make([]byte, len(prefix))
	copy(end, prefix)

	for {
		if end[len(end)-1] != byte(255) {
			end[len(end)-1]++
			break
		}

		end = end[:len(end)-1]

		if len(end) == 0 {
			end = nil
			break
		}
	}

	return end
}
