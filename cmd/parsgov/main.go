package main

import (
	"fmt"
	"os"
)

func main() {
	clCmd.AddCommand(accountCmd)
	clCmd.AddCommand(initCmd)
	clCmd.AddCommand(versionCmd)
	clCmd.AddCommand(pubkeyCmd)
	clCmd.AddCommand(lockCmd)
	clCmd.AddCommand(delegateCmd)
	clCmd.AddCommand(proposeCmd)
	clCmd.AddCommand(activateCmd)
	clCmd.AddCommand(voteCmd)
	clCmd.AddCommand(queueCmd)
	clCmd.AddCommand(executeCmd)
	clCmd.AddCommand(cancelCmd)
	clCmd.AddCommand(vetoCmd)
	if err := clCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
