package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/parsdao/pars-gov/tx"
)

type voteArguments struct {
	signerArguments
	ProposalId uint64
	Support    uint8
	Reason     string
	Sig        string
}

var voteArgs voteArguments

var voteCmd = &cobra.Command{
	Use:   "vote",
	Short: "Cast a vote; pass --votersig to relay an off-chain signed vote",
	Long:  ``,
	Run:   voteRun,
}

func init() {
	signerFlagsFor(voteCmd, &voteArgs.signerArguments)
	voteCmd.Flags().Uint64VarP(&voteArgs.ProposalId, "proposal", "p", 0, "proposal id")
	voteCmd.Flags().Uint8VarP(&voteArgs.Support, "support", "v", 0, "0 against, 1 for, 2 abstain")
	voteCmd.Flags().StringVarP(&voteArgs.Reason, "reason", "r", "", "vote reason")
	voteCmd.Flags().StringVarP(&voteArgs.Sig, "votersig", "", "", "voter's 65 byte secp256k1 signature, hex")
}

func voteRun(cmd *cobra.Command, args []string) {
	if voteArgs.Sig != "" {
		sig := common.FromHex(voteArgs.Sig)
		if len(sig) != 65 {
			fmt.Printf("expect 65 byte signature, got %v bytes\n", len(sig))
			return
		}
		sendGovTx(voteArgs.signerArguments, tx.GovTxTypeCastVoteBySig, &tx.CastVoteBySigTx{
			ProposalId: voteArgs.ProposalId,
			Support:    voteArgs.Support,
			Sig:        sig,
		})
		return
	}
	sendGovTx(voteArgs.signerArguments, tx.GovTxTypeCastVote, &tx.CastVoteTx{
		ProposalId: voteArgs.ProposalId,
		Support:    voteArgs.Support,
		Reason:     voteArgs.Reason,
	})
}
