package tx

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestGovTxRoundTrip(t *testing.T) {
	btx := &GovTx{
		Version: TxVersion,
		Type:    GovTxTypeCreateLock,
		Nonce:   5,
		Sender:  65536,
		Tx:      &CreateLockTx{Amount: big.NewInt(1000), Duration: 604800},
		Sig:     [][]byte{{0x01, 0x02}},
	}
	bz, err := btx.Marshal()
	require.NoError(t, err)

	decoded, err := UnmarshalGovTx(bz)
	require.NoError(t, err)
	require.Equal(t, btx.Type, decoded.Type)
	require.Equal(t, btx.Nonce, decoded.Nonce)
	require.Equal(t, btx.Sender, decoded.Sender)
	require.Equal(t, btx.Sig, decoded.Sig)

	inner, ok := decoded.Tx.(*CreateLockTx)
	require.True(t, ok)
	require.Equal(t, int64(1000), inner.Amount.Int64())
	require.Equal(t, uint64(604800), inner.Duration)
}

func TestUnmarshalGovTxRejectsBadEnvelope(t *testing.T) {
	btx := &GovTx{Version: 99, Type: GovTxTypeWithdraw, Tx: &WithdrawTx{}}
	bz, err := btx.Marshal()
	require.NoError(t, err)
	_, err = UnmarshalGovTx(bz)
	require.ErrorIs(t, err, ErrUnsupportedVersion)

	btx = &GovTx{Version: TxVersion, Type: GovTxType(200), Tx: &WithdrawTx{}}
	bz, err = btx.Marshal()
	require.NoError(t, err)
	_, err = UnmarshalGovTx(bz)
	require.ErrorIs(t, err, ErrUnknownTxType)
}

func TestSigDataBindsChainId(t *testing.T) {
	btx := &GovTx{
		Version: TxVersion,
		Type:    GovTxTypeWithdraw,
		Nonce:   1,
		Sender:  65536,
		Tx:      &WithdrawTx{},
	}
	d1, err := btx.SigData([]byte("chain-a"))
	require.NoError(t, err)
	d2, err := btx.SigData([]byte("chain-b"))
	require.NoError(t, err)
	require.NotEqual(t, d1, d2)

	// the signature field must not feed the digest
	btx.Sig = [][]byte{{0xff}}
	d3, err := btx.SigData([]byte("chain-a"))
	require.NoError(t, err)
	require.Equal(t, d1, d3)
}

func TestRecoverVoterRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	digest, err := VoteDigest("parsgov-test", 7, 1)
	require.NoError(t, err)
	sig, err := crypto.Sign(digest[:], key)
	require.NoError(t, err)

	voter, err := RecoverVoter("parsgov-test", 7, 1, sig)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), voter)

	// a different support recovers a different key
	other, err := RecoverVoter("parsgov-test", 7, 0, sig)
	if err == nil {
		require.NotEqual(t, voter, other)
	}

	_, err = RecoverVoter("parsgov-test", 7, 1, sig[:10])
	require.ErrorIs(t, err, ErrBadVoteSig)
}
