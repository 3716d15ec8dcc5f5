package tx

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

const voteDomainName = "ParsGov Council"

var ErrBadVoteSig = errors.New("malformed vote signature")

// VoteDigest is the message a voter signs off-chain to authorize a relayed
// vote. The domain separator binds the signature to this council and chain.
func VoteDigest(chainId string, proposalId uint64, support uint8) (common.Hash, error) {
	domain := crypto.Keccak256([]byte(voteDomainName), []byte(chainId))
	body, err := rlp.EncodeToBytes([]interface{}{proposalId, support})
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(domain, body), nil
}

// RecoverVoter resolves the voter address from a 65-byte secp256k1
// signature over the vote digest.
func RecoverVoter(chainId string, proposalId uint64, support uint8, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrBadVoteSig
	}
	digest, err := VoteDigest(chainId, proposalId, support)
	if err != nil {
		return common.Address{}, err
	}
	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return common.Address{}, ErrBadVoteSig
	}
	return crypto.PubkeyToAddress(*pub), nil
}
