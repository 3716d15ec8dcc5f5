package tx

import (
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum/crypto"
)

const TxVersion = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported tx version")
	ErrUnknownTxType      = errors.New("unknown tx type")
)

// GovTx is the signed envelope every governance transaction travels in.
// Sender is the account index assigned at registration; Sig holds one
// ed25519 signature over SigData.
type GovTx struct {
	Version uint64    `json:"version"`
	Type    GovTxType `json:"type"`
	Nonce   uint64    `json:"nonce"`
	Sender  uint64    `json:"sender"`
	Tx      any       `json:"tx"`
	Sig     [][]byte  `json:"sig,omitempty"`
}

// SigData is the digest the sender signs: the envelope without its
// signature, bound to the chain id.
func (t *GovTx) SigData(chainId []byte) ([]byte, error) {
	unsigned := GovTx{
		Version: t.Version,
		Type:    t.Type,
		Nonce:   t.Nonce,
		Sender:  t.Sender,
		Tx:      t.Tx,
	}
	dat, err := json.Marshal(&unsigned)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(dat, chainId), nil
}

func (t *GovTx) Marshal() ([]byte, error) {
	return json.Marshal(t)
}

type rawGovTx struct {
	Version uint64          `json:"version"`
	Type    GovTxType       `json:"type"`
	Nonce   uint64          `json:"nonce"`
	Sender  uint64          `json:"sender"`
	Tx      json.RawMessage `json:"tx"`
	Sig     [][]byte        `json:"sig,omitempty"`
}

// UnmarshalGovTx decodes the envelope first, then the payload according to
// the declared type.
func UnmarshalGovTx(bz []byte) (*GovTx, error) {
	var raw rawGovTx
	if err := json.Unmarshal(bz, &raw); err != nil {
		return nil, err
	}
	if raw.Version != TxVersion {
		return nil, ErrUnsupportedVersion
	}
	var inner any
	switch raw.Type {
	case GovTxTypeCreateLock:
		inner = new(CreateLockTx)
	case GovTxTypeIncreaseAmount:
		inner = new(IncreaseAmountTx)
	case GovTxTypeExtendLock:
		inner = new(ExtendLockTx)
	case GovTxTypeWithdraw:
		inner = new(WithdrawTx)
	case GovTxTypeDelegate:
		inner = new(DelegateTx)
	case GovTxTypePropose:
		inner = new(ProposeTx)
	case GovTxTypeActivate:
		inner = new(ActivateTx)
	case GovTxTypeCastVote:
		inner = new(CastVoteTx)
	case GovTxTypeCastVoteBySig:
		inner = new(CastVoteBySigTx)
	case GovTxTypeQueue:
		inner = new(QueueTx)
	case GovTxTypeExecute:
		inner = new(ExecuteTx)
	case GovTxTypeCancel:
		inner = new(CancelTx)
	case GovTxTypeVeto:
		inner = new(VetoTx)
	case GovTxTypeSetParams:
		inner = new(SetParamsTx)
	default:
		return nil, ErrUnknownTxType
	}
	if len(raw.Tx) != 0 {
		if err := json.Unmarshal(raw.Tx, inner); err != nil {
			return nil, err
		}
	}
	return &GovTx{
		Version: raw.Version,
		Type:    raw.Type,
		Nonce:   raw.Nonce,
		Sender:  raw.Sender,
		Tx:      inner,
		Sig:     raw.Sig,
	}, nil
}
