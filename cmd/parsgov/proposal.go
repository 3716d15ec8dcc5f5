package main

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/parsdao/pars-gov/tx"
)

type proposeArguments struct {
	signerArguments
	Targets     []string
	Values      []string
	Signatures  []string
	Datas       []string
	Description string
}

var proposeArgs proposeArguments

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Submit a proposal; repeat the action flags for a batch",
	Long:  ``,
	Run:   proposeRun,
}

func init() {
	signerFlagsFor(proposeCmd, &proposeArgs.signerArguments)
	proposeCmd.Flags().StringArrayVarP(&proposeArgs.Targets, "target", "t", nil, "action target address")
	proposeCmd.Flags().StringArrayVarP(&proposeArgs.Values, "value", "v", nil, "action value in wei")
	proposeCmd.Flags().StringArrayVarP(&proposeArgs.Signatures, "signature", "g", nil, "action function signature")
	proposeCmd.Flags().StringArrayVarP(&proposeArgs.Datas, "data", "d", nil, "action calldata, hex")
	proposeCmd.Flags().StringVarP(&proposeArgs.Description, "description", "m", "", "proposal description")
}

func proposeRun(cmd *cobra.Command, args []string) {
	n := len(proposeArgs.Targets)
	if len(proposeArgs.Values) != n || len(proposeArgs.Signatures) != n || len(proposeArgs.Datas) != n {
		fmt.Printf("action arrays must have equal length\n")
		return
	}
	stx := &tx.ProposeTx{
		Targets:     make([]common.Address, 0, n),
		Values:      make([]*big.Int, 0, n),
		Signatures:  proposeArgs.Signatures,
		Datas:       make([][]byte, 0, n),
		Description: proposeArgs.Description,
	}
	for i := 0; i < n; i++ {
		if !common.IsHexAddress(proposeArgs.Targets[i]) {
			fmt.Printf("invalid target:%v\n", proposeArgs.Targets[i])
			return
		}
		stx.Targets = append(stx.Targets, common.HexToAddress(proposeArgs.Targets[i]))
		value, ok := new(big.Int).SetString(proposeArgs.Values[i], 10)
		if !ok || value.Sign() < 0 {
			fmt.Printf("invalid value:%v\n", proposeArgs.Values[i])
			return
		}
		stx.Values = append(stx.Values, value)
		stx.Datas = append(stx.Datas, common.FromHex(proposeArgs.Datas[i]))
	}
	sendGovTx(proposeArgs.signerArguments, tx.GovTxTypePropose, stx)
}

type activateArguments struct {
	signerArguments
	ProposalId uint64
}

var activateArgs activateArguments

var activateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Open voting on a pending proposal",
	Long:  ``,
	Run:   activateRun,
}

func init() {
	signerFlagsFor(activateCmd, &activateArgs.signerArguments)
	activateCmd.Flags().Uint64VarP(&activateArgs.ProposalId, "proposal", "p", 0, "proposal id")
}

func activateRun(cmd *cobra.Command, args []string) {
	sendGovTx(activateArgs.signerArguments, tx.GovTxTypeActivate, &tx.ActivateTx{ProposalId: activateArgs.ProposalId})
}
