package main

import (
	"github.com/spf13/cobra"

	"github.com/parsdao/pars-gov/tx"
)

type lifecycleArguments struct {
	signerArguments
	ProposalId uint64
}

var lifecycleArgs lifecycleArguments

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Queue a succeeded proposal into the timelock",
	Long:  ``,
	Run: func(cmd *cobra.Command, args []string) {
		sendGovTx(lifecycleArgs.signerArguments, tx.GovTxTypeQueue, &tx.QueueTx{ProposalId: lifecycleArgs.ProposalId})
	},
}

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Execute a queued proposal after its eta",
	Long:  ``,
	Run: func(cmd *cobra.Command, args []string) {
		sendGovTx(lifecycleArgs.signerArguments, tx.GovTxTypeExecute, &tx.ExecuteTx{ProposalId: lifecycleArgs.ProposalId})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a proposal",
	Long:  ``,
	Run: func(cmd *cobra.Command, args []string) {
		sendGovTx(lifecycleArgs.signerArguments, tx.GovTxTypeCancel, &tx.CancelTx{ProposalId: lifecycleArgs.ProposalId})
	},
}

var vetoCmd = &cobra.Command{
	Use:   "veto",
	Short: "Veto a proposal (guardian only)",
	Long:  ``,
	Run: func(cmd *cobra.Command, args []string) {
		sendGovTx(lifecycleArgs.signerArguments, tx.GovTxTypeVeto, &tx.VetoTx{ProposalId: lifecycleArgs.ProposalId})
	},
}

func init() {
	for _, c := range []*cobra.Command{queueCmd, executeCmd, cancelCmd, vetoCmd} {
		signerFlagsFor(c, &lifecycleArgs.signerArguments)
		c.Flags().Uint64VarP(&lifecycleArgs.ProposalId, "proposal", "p", 0, "proposal id")
	}
}
