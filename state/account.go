package state

import (
	"encoding/json"
	"math/big"

	"github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/ethereum/go-ethereum/common"
)

// Account is a registered key on the chain. Balance is the liquid staked
// asset; creating a lock moves value from Balance into escrow custody and
// withdraw moves it back.
type Account struct {
	Index   uint64         `json:"index"`
	PubKey  ed25519.PubKey `json:"pubKey"`
	Balance *big.Int       `json:"balance"`
	Nonce   uint64         `json:"nonce"`
}

func (a *Account) Clone() *Account {
	dat, _ := json.Marshal(a)
	n := new(Account)
	_ = json.Unmarshal(dat, n)
	return n
}

func (a *Account) SetPubKey(pkey []byte) {
	if a.PubKey == nil {
		a.PubKey = make([]byte, len(pkey))
	}
	copy(a.PubKey, pkey)
}

func (a *Account) AddrBytes() []byte {
	pk := ed25519.PubKey(a.PubKey[:])
	return pk.Address()[:]
}

func (a *Account) Address() string {
	pk := ed25519.PubKey(a.PubKey[:])
	return pk.Address().String()
}

// EthAddress is the 20-byte address governance records are keyed by.
func (a *Account) EthAddress() common.Address {
	return common.BytesToAddress(a.AddrBytes())
}

func (a *Account) Verify(msg []byte, sigs [][]byte) (succ bool) {
	if len(sigs) != 1 {
		return false
	}
	pk := ed25519.PubKey(a.PubKey[:])
	return pk.VerifySignature(msg, sigs[0])
}
