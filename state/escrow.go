package state

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/parsdao/pars-gov/config"
	"github.com/parsdao/pars-gov/tx"
	"github.com/parsdao/pars-gov/types"
)

func epochFloor(t uint64) uint64 {
	return t / config.Epoch * config.Epoch
}

func (s *State) getLock(addr common.Address) (*types.Lock, error) {
	if l, ok := s.locks[addr]; ok {
		return l, nil
	}
	key := fmt.Sprintf(KeyLockBody, addr.Bytes())
	val, err := s.db.Get([]byte(key))
	if err != nil {
		if err == leveldb.ErrNotFound {
			val = nil
		} else {
			return nil, err
		}
	}
	l := &types.Lock{Amount: new(big.Int)}
	if val != nil {
		if err := json.Unmarshal(val, l); err != nil {
			return nil, err
		}
		if l.Amount == nil {
			l.Amount = new(big.Int)
		}
	}
	s.locks[addr] = l
	return l, nil
}

func (s *State) setLock(addr common.Address, l *types.Lock) {
	s.locks[addr] = l
	s.modifiedLocks[addr] = true
}

func (s *State) getDelegate(addr common.Address) (common.Address, error) {
	if d, ok := s.delegates[addr]; ok {
		return d, nil
	}
	key := fmt.Sprintf(KeyDelegate, addr.Bytes())
	val, err := s.db.Get([]byte(key))
	if err != nil {
		if err == leveldb.ErrNotFound {
			val = nil
		} else {
			return common.Address{}, err
		}
	}
	d := common.BytesToAddress(val)
	s.delegates[addr] = d
	return d, nil
}

func (s *State) setDelegate(addr, delegatee common.Address) {
	s.delegates[addr] = delegatee
	s.modifiedDelegates[addr] = true
}

func (s *State) getDelegators(addr common.Address) ([]common.Address, error) {
	if ds, ok := s.delegators[addr]; ok {
		return ds, nil
	}
	key := fmt.Sprintf(KeyDelegators, addr.Bytes())
	val, err := s.db.Get([]byte(key))
	if err != nil {
		if err == leveldb.ErrNotFound {
			val = nil
		} else {
			return nil, err
		}
	}
	ds := []common.Address{}
	if val != nil {
		if err := json.Unmarshal(val, &ds); err != nil {
			return nil, err
		}
	}
	s.delegators[addr] = ds
	return ds, nil
}

// addDelegator keeps the reverse index sorted so delegatee recomputes
// iterate it in a stable order.
func (s *State) addDelegator(delegatee, delegator common.Address) error {
	ds, err := s.getDelegators(delegatee)
	if err != nil {
		return err
	}
	i := sort.Search(len(ds), func(i int) bool {
		return ds[i].Hex() >= delegator.Hex()
	})
	if i < len(ds) && ds[i] == delegator {
		return nil
	}
	ds = append(ds, common.Address{})
	copy(ds[i+1:], ds[i:])
	ds[i] = delegator
	s.delegators[delegatee] = ds
	s.modifiedDelegators[delegatee] = true
	return nil
}

func (s *State) removeDelegator(delegatee, delegator common.Address) error {
	ds, err := s.getDelegators(delegatee)
	if err != nil {
		return err
	}
	for i := range ds {
		if ds[i] == delegator {
			ds = append(ds[:i], ds[i+1:]...)
			s.delegators[delegatee] = ds
			s.modifiedDelegators[delegatee] = true
			return nil
		}
	}
	return nil
}

// lockPower is the decayed weight of a lock at the current block time:
// amount * remaining / MaxLockDuration, floor division against the fixed
// maximum, never the lock's own duration.
func (s *State) lockPower(l *types.Lock) *big.Int {
	if !l.Active() || l.End <= s.header.Time {
		return new(big.Int)
	}
	remaining := new(big.Int).SetUint64(l.End - s.header.Time)
	p := new(big.Int).Mul(l.Amount, remaining)
	return p.Div(p, new(big.Int).SetUint64(config.MaxLockDuration))
}

// computeVotes is the checkpointed value for addr: its own lock power (zero
// while delegated away) plus the lock power of everyone delegating to it.
func (s *State) computeVotes(addr common.Address) (*big.Int, error) {
	votes := new(big.Int)
	d, err := s.getDelegate(addr)
	if err != nil {
		return nil, err
	}
	if d == (common.Address{}) {
		l, err := s.getLock(addr)
		if err != nil {
			return nil, err
		}
		votes.Add(votes, s.lockPower(l))
	}
	ds, err := s.getDelegators(addr)
	if err != nil {
		return nil, err
	}
	for _, from := range ds {
		l, err := s.getLock(from)
		if err != nil {
			return nil, err
		}
		votes.Add(votes, s.lockPower(l))
	}
	return votes, nil
}

func (s *State) checkpointAccount(addr common.Address) (*big.Int, error) {
	votes, err := s.computeVotes(addr)
	if err != nil {
		return nil, err
	}
	if err := s.writeCheckpoint(checkpointSubject(addr), s.header.Height, votes); err != nil {
		return nil, err
	}
	return votes, nil
}

// checkpointTotal records the custody balance as the total-supply value. The
// total log deliberately tracks undecayed custody, not the sum of decayed
// per-account powers; quorum snapshots inherit that approximation.
func (s *State) checkpointTotal() error {
	return s.writeCheckpoint(SubjectTotal, s.header.Height, s.header.TotalLocked)
}

func (s *State) CreateLock(ltx *tx.CreateLockTx, sender uint64, checkOnly bool) (ev *types.EventLock, err error) {
	a, err := s.GetAccount(sender)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNoexists
	}
	if ltx.Amount == nil || ltx.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if ltx.Duration < config.MinLockDuration || ltx.Duration > config.MaxLockDuration {
		return nil, ErrInvalidDuration
	}
	addr := a.EthAddress()
	l, err := s.getLock(addr)
	if err != nil {
		return nil, err
	}
	if l.Active() {
		return nil, ErrLockAlreadyExists
	}
	if a.Balance.Cmp(ltx.Amount) < 0 {
		return nil, ErrInsufficientBalance
	}
	end := epochFloor(s.header.Time + ltx.Duration)
	if checkOnly {
		return nil, nil
	}

	a.Balance = new(big.Int).Sub(a.Balance, ltx.Amount)
	s.touchAccount(a)
	s.setLock(addr, &types.Lock{Amount: new(big.Int).Set(ltx.Amount), End: end})
	s.header.TotalLocked = new(big.Int).Add(s.header.TotalLocked, ltx.Amount)
	votes, err := s.checkpointAccount(addr)
	if err != nil {
		return nil, err
	}
	if err = s.checkpointTotal(); err != nil {
		return nil, err
	}
	s.logger.Info("create lock", "account", addr.Hex(), "amount", ltx.Amount, "end", end)
	return &types.EventLock{
		Account: addr.Hex(),
		Op:      types.LockOpCreate,
		Amount:  ltx.Amount.String(),
		End:     end,
		Votes:   votes.String(),
		Total:   s.header.TotalLocked.String(),
	}, nil
}

func (s *State) IncreaseAmount(ltx *tx.IncreaseAmountTx, sender uint64, checkOnly bool) (ev *types.EventLock, err error) {
	a, err := s.GetAccount(sender)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNoexists
	}
	if ltx.Amount == nil || ltx.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	addr := a.EthAddress()
	l, err := s.getLock(addr)
	if err != nil {
		return nil, err
	}
	if !l.Active() {
		return nil, ErrNoExistingLock
	}
	if s.header.Time >= l.End {
		return nil, ErrLockExpired
	}
	if a.Balance.Cmp(ltx.Amount) < 0 {
		return nil, ErrInsufficientBalance
	}
	if checkOnly {
		return nil, nil
	}

	a.Balance = new(big.Int).Sub(a.Balance, ltx.Amount)
	s.touchAccount(a)
	nl := l.Clone()
	nl.Amount.Add(nl.Amount, ltx.Amount)
	s.setLock(addr, nl)
	s.header.TotalLocked = new(big.Int).Add(s.header.TotalLocked, ltx.Amount)
	votes, err := s.checkpointAccount(addr)
	if err != nil {
		return nil, err
	}
	if err = s.checkpointTotal(); err != nil {
		return nil, err
	}
	s.logger.Info("increase lock", "account", addr.Hex(), "amount", ltx.Amount)
	return &types.EventLock{
		Account: addr.Hex(),
		Op:      types.LockOpIncrease,
		Amount:  ltx.Amount.String(),
		End:     nl.End,
		Votes:   votes.String(),
		Total:   s.header.TotalLocked.String(),
	}, nil
}

func (s *State) ExtendLock(ltx *tx.ExtendLockTx, sender uint64, checkOnly bool) (ev *types.EventLock, err error) {
	a, err := s.GetAccount(sender)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNoexists
	}
	addr := a.EthAddress()
	l, err := s.getLock(addr)
	if err != nil {
		return nil, err
	}
	if !l.Active() {
		return nil, ErrNoExistingLock
	}
	if s.header.Time >= l.End {
		return nil, ErrLockExpired
	}
	newEnd := epochFloor(l.End + ltx.Duration)
	maxEnd := epochFloor(s.header.Time + config.MaxLockDuration)
	if newEnd > maxEnd {
		return nil, ErrMaxLockExceeded
	}
	if newEnd <= l.End {
		return nil, ErrInvalidDuration
	}
	if checkOnly {
		return nil, nil
	}

	s.touchAccount(a)
	nl := l.Clone()
	nl.End = newEnd
	s.setLock(addr, nl)
	votes, err := s.checkpointAccount(addr)
	if err != nil {
		return nil, err
	}
	if err = s.checkpointTotal(); err != nil {
		return nil, err
	}
	s.logger.Info("extend lock", "account", addr.Hex(), "end", newEnd)
	return &types.EventLock{
		Account: addr.Hex(),
		Op:      types.LockOpExtend,
		Amount:  nl.Amount.String(),
		End:     newEnd,
		Votes:   votes.String(),
		Total:   s.header.TotalLocked.String(),
	}, nil
}

func (s *State) Withdraw(_ *tx.WithdrawTx, sender uint64, checkOnly bool) (ev *types.EventLock, err error) {
	a, err := s.GetAccount(sender)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNoexists
	}
	addr := a.EthAddress()
	l, err := s.getLock(addr)
	if err != nil {
		return nil, err
	}
	if !l.Active() {
		return nil, ErrNoExistingLock
	}
	if s.header.Time < l.End {
		return nil, ErrLockNotExpired
	}
	if checkOnly {
		return nil, nil
	}

	amount := new(big.Int).Set(l.Amount)
	a.Balance = new(big.Int).Add(a.Balance, amount)
	s.touchAccount(a)
	s.setLock(addr, &types.Lock{Amount: new(big.Int)})
	s.header.TotalLocked = new(big.Int).Sub(s.header.TotalLocked, amount)
	votes, err := s.checkpointAccount(addr)
	if err != nil {
		return nil, err
	}
	if err = s.checkpointTotal(); err != nil {
		return nil, err
	}
	s.logger.Info("withdraw lock", "account", addr.Hex(), "amount", amount)
	return &types.EventLock{
		Account: addr.Hex(),
		Op:      types.LockOpWithdraw,
		Amount:  amount.String(),
		End:     0,
		Votes:   votes.String(),
		Total:   s.header.TotalLocked.String(),
	}, nil
}

// Delegate repoints the sender's voting power. The old and new delegatees
// are re-checkpointed, in that order. The sender is only checkpointed when
// clearing a delegation: while delegated its own power is zero by formula,
// but once un-delegated the log must show the power returning.
func (s *State) Delegate(dtx *tx.DelegateTx, sender uint64, checkOnly bool) (ev *types.EventDelegate, err error) {
	a, err := s.GetAccount(sender)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNoexists
	}
	addr := a.EthAddress()
	if dtx.Delegatee == addr {
		return nil, ErrInvalidDelegatee
	}
	old, err := s.getDelegate(addr)
	if err != nil {
		return nil, err
	}
	if checkOnly {
		return nil, nil
	}

	s.touchAccount(a)
	s.setDelegate(addr, dtx.Delegatee)
	if old != (common.Address{}) {
		if err = s.removeDelegator(old, addr); err != nil {
			return nil, err
		}
	}
	if dtx.Delegatee != (common.Address{}) {
		if err = s.addDelegator(dtx.Delegatee, addr); err != nil {
			return nil, err
		}
	}
	if old != (common.Address{}) {
		if _, err = s.checkpointAccount(old); err != nil {
			return nil, err
		}
	}
	if dtx.Delegatee != (common.Address{}) {
		if _, err = s.checkpointAccount(dtx.Delegatee); err != nil {
			return nil, err
		}
	} else {
		// un-delegating: the sender wields its own power again and the
		// log has to say so from this height on
		if _, err = s.checkpointAccount(addr); err != nil {
			return nil, err
		}
	}
	s.logger.Info("delegate", "account", addr.Hex(), "old", old.Hex(), "new", dtx.Delegatee.Hex())
	return &types.EventDelegate{
		Account:      addr.Hex(),
		OldDelegatee: old.Hex(),
		NewDelegatee: dtx.Delegatee.Hex(),
	}, nil
}

// VotingPower is the sender-facing instantaneous power: the decayed weight
// of the account's own lock, zero while delegated away. Delegated-in power
// shows up in checkpoints, not here.
func (s *State) VotingPower(addr common.Address) (*big.Int, error) {
	d, err := s.getDelegate(addr)
	if err != nil {
		return nil, err
	}
	if d != (common.Address{}) {
		return new(big.Int), nil
	}
	l, err := s.getLock(addr)
	if err != nil {
		return nil, err
	}
	return s.lockPower(l), nil
}

// PriorVotes answers "how many votes did addr command at height". The
// delegatee is resolved through the live mapping, not the mapping at the
// target height; an account that has re-delegated since will answer with
// its current delegatee's history. Callers must query strictly past heights.
func (s *State) PriorVotes(addr common.Address, height uint64) (*big.Int, error) {
	if height >= s.header.Height {
		return nil, ErrHeightNotPast
	}
	effective := addr
	d, err := s.getDelegate(addr)
	if err != nil {
		return nil, err
	}
	if d != (common.Address{}) {
		effective = d
	}
	return s.checkpointsAt(checkpointSubject(effective), height)
}

func (s *State) TotalVotingPower() (*big.Int, error) {
	return s.latestCheckpoint(SubjectTotal)
}

func (s *State) Delegates(addr common.Address) (common.Address, error) {
	return s.getDelegate(addr)
}

func (s *State) LockInfo(addr common.Address) (*types.Lock, error) {
	l, err := s.getLock(addr)
	if err != nil {
		return nil, err
	}
	return l.Clone(), nil
}

func (s *State) TotalLocked() *big.Int {
	return new(big.Int).Set(s.header.TotalLocked)
}
