package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/parsdao/pars-gov/tx"
)

type delegateArguments struct {
	signerArguments
	Delegatee string
}

var delegateArgs delegateArguments

var delegateCmd = &cobra.Command{
	Use:   "delegate",
	Short: "Delegate voting power, or clear it with the zero address",
	Long:  ``,
	Run:   delegateRun,
}

func init() {
	signerFlagsFor(delegateCmd, &delegateArgs.signerArguments)
	delegateCmd.Flags().StringVarP(&delegateArgs.Delegatee, "delegatee", "a", "", "delegatee hex address, zero clears")
}

func delegateRun(cmd *cobra.Command, args []string) {
	if !common.IsHexAddress(delegateArgs.Delegatee) {
		fmt.Printf("invalid delegatee:%v\n", delegateArgs.Delegatee)
		return
	}
	sendGovTx(delegateArgs.signerArguments, tx.GovTxTypeDelegate, &tx.DelegateTx{
		Delegatee: common.HexToAddress(delegateArgs.Delegatee),
	})
}
