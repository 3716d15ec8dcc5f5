package state

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/parsdao/pars-gov/types"
)

func checkpointSubject(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func (s *State) getCheckpoints(subject string) ([]types.Checkpoint, error) {
	if cps, ok := s.ckpts[subject]; ok {
		return cps, nil
	}
	key := fmt.Sprintf(KeyCheckpoints, subject)
	val, err := s.db.Get([]byte(key))
	if err != nil {
		if err == leveldb.ErrNotFound {
			val = nil
		} else {
			return nil, err
		}
	}
	cps := []types.Checkpoint{}
	if val != nil {
		if err := json.Unmarshal(val, &cps); err != nil {
			return nil, err
		}
	}
	s.ckpts[subject] = cps
	return cps, nil
}

// writeCheckpoint appends (height, votes) to a subject's log. A second write
// at the same height overwrites the previous one, so each height keeps only
// its final value.
func (s *State) writeCheckpoint(subject string, height uint64, votes *big.Int) error {
	cps, err := s.getCheckpoints(subject)
	if err != nil {
		return err
	}
	cp := types.Checkpoint{FromHeight: height, Votes: new(big.Int).Set(votes)}
	n := len(cps)
	if n > 0 && cps[n-1].FromHeight == height {
		cps[n-1] = cp
	} else {
		cps = append(cps, cp)
	}
	s.ckpts[subject] = cps
	s.modifiedCkpts[subject] = true
	return nil
}

// checkpointsAt resolves a subject's recorded votes as of height: the value
// of the rightmost checkpoint at or before it, zero if the log starts later.
func (s *State) checkpointsAt(subject string, height uint64) (*big.Int, error) {
	cps, err := s.getCheckpoints(subject)
	if err != nil {
		return nil, err
	}
	n := len(cps)
	if n == 0 || cps[0].FromHeight > height {
		return new(big.Int), nil
	}
	// sort.Search returns the first index whose FromHeight exceeds height;
	// the entry before it is the rightmost one at or below.
	i := sort.Search(n, func(i int) bool {
		return cps[i].FromHeight > height
	})
	return new(big.Int).Set(cps[i-1].Votes), nil
}

func (s *State) latestCheckpoint(subject string) (*big.Int, error) {
	cps, err := s.getCheckpoints(subject)
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return new(big.Int), nil
	}
	return new(big.Int).Set(cps[len(cps)-1].Votes), nil
}

// Checkpoints exposes a copy of an account's full log for queriers.
func (s *State) Checkpoints(addr common.Address) ([]types.Checkpoint, error) {
	cps, err := s.getCheckpoints(checkpointSubject(addr))
	if err != nil {
		return nil, err
	}
	out := make([]types.Checkpoint, len(cps))
	for i := range cps {
		out[i] = types.Checkpoint{FromHeight: cps[i].FromHeight, Votes: new(big.Int).Set(cps[i].Votes)}
	}
	return out, nil
}
