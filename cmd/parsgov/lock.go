package main

import (
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/parsdao/pars-gov/tx"
)

type lockArguments struct {
	signerArguments
	Amount   string
	Duration uint64
}

var lockArgs lockArguments

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Escrow operations: create, increase, extend, withdraw",
	Long:  ``,
}

var lockCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Lock an amount for a duration",
	Long:  ``,
	Run:   lockCreateRun,
}

var lockIncreaseCmd = &cobra.Command{
	Use:   "increase",
	Short: "Add to an existing lock without changing its end",
	Long:  ``,
	Run:   lockIncreaseRun,
}

var lockExtendCmd = &cobra.Command{
	Use:   "extend",
	Short: "Push an existing lock's end further out",
	Long:  ``,
	Run:   lockExtendRun,
}

var lockWithdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Withdraw an expired lock",
	Long:  ``,
	Run:   lockWithdrawRun,
}

func init() {
	for _, c := range []*cobra.Command{lockCreateCmd, lockIncreaseCmd, lockExtendCmd, lockWithdrawCmd} {
		signerFlagsFor(c, &lockArgs.signerArguments)
		lockCmd.AddCommand(c)
	}
	lockCreateCmd.Flags().StringVarP(&lockArgs.Amount, "amount", "a", "", "amount to lock, in wei")
	lockCreateCmd.Flags().Uint64VarP(&lockArgs.Duration, "duration", "t", 0, "lock duration in seconds")
	lockIncreaseCmd.Flags().StringVarP(&lockArgs.Amount, "amount", "a", "", "amount to add, in wei")
	lockExtendCmd.Flags().Uint64VarP(&lockArgs.Duration, "duration", "t", 0, "additional duration in seconds")
}

func parseAmount(s string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() <= 0 {
		fmt.Printf("invalid amount:%v\n", s)
		return nil, false
	}
	return amount, true
}

func lockCreateRun(cmd *cobra.Command, args []string) {
	amount, ok := parseAmount(lockArgs.Amount)
	if !ok {
		return
	}
	sendGovTx(lockArgs.signerArguments, tx.GovTxTypeCreateLock, &tx.CreateLockTx{
		Amount:   amount,
		Duration: lockArgs.Duration,
	})
}

func lockIncreaseRun(cmd *cobra.Command, args []string) {
	amount, ok := parseAmount(lockArgs.Amount)
	if !ok {
		return
	}
	sendGovTx(lockArgs.signerArguments, tx.GovTxTypeIncreaseAmount, &tx.IncreaseAmountTx{Amount: amount})
}

func lockExtendRun(cmd *cobra.Command, args []string) {
	sendGovTx(lockArgs.signerArguments, tx.GovTxTypeExtendLock, &tx.ExtendLockTx{Duration: lockArgs.Duration})
}

func lockWithdrawRun(cmd *cobra.Command, args []string) {
	sendGovTx(lockArgs.signerArguments, tx.GovTxTypeWithdraw, &tx.WithdrawTx{})
}
