package types

import (
	"math/big"
)

// Lock is one account's vote-escrow position. End is a unix timestamp aligned
// down to an epoch boundary. Amount == 0 means no active lock; End is
// meaningless in that case.
type Lock struct {
	Amount *big.Int `json:"amount"`
	End    uint64   `json:"end"`
}

func (l *Lock) Active() bool {
	return l != nil && l.Amount != nil && l.Amount.Sign() > 0
}

func (l *Lock) Clone() *Lock {
	if l == nil {
		return nil
	}
	n := &Lock{End: l.End}
	if l.Amount != nil {
		n.Amount = new(big.Int).Set(l.Amount)
	}
	return n
}

// Checkpoint records a subject's voting power effective from FromHeight until
// superseded by the next entry. Logs are append-only; writes in the same
// block coalesce into one entry.
type Checkpoint struct {
	FromHeight uint64   `json:"fromHeight"`
	Votes      *big.Int `json:"votes"`
}

const GovModuleName = "parsgov"
const DefaultPower = 1000

const (
	FlagHome      = "home"
	FlagChainID   = "chain-id"
	FlagOverwrite = "overwrite"
)
