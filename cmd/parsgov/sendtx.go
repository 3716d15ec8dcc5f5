package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/spf13/cobra"

	"github.com/parsdao/pars-gov/crypto"
	"github.com/parsdao/pars-gov/tx"
)

// signerArguments are the flags every tx-sending command shares.
type signerArguments struct {
	Url    string
	Index  uint64
	Nonce  uint64
	Skey   string
	NoSend bool
}

func signerFlagsFor(cmd *cobra.Command, args *signerArguments) {
	urlFlag(cmd, &args.Url)
	signerFlags(cmd, &args.Index, &args.Nonce, &args.Skey)
	cmd.Flags().BoolVarP(&args.NoSend, "nosend", "", false, "not send transaction but print signature")
}

// sendGovTx builds the envelope, signs its digest against the chain id, and
// broadcasts the JSON encoding. A zero nonce queries the node for the
// account's current one.
func sendGovTx(args signerArguments, typ tx.GovTxType, payload any) {
	cli, err := http.New(args.Url, "/websocket")
	if err != nil {
		fmt.Printf("new client err:%v\n", err)
		return
	}
	ctx := context.Background()
	gres, err := cli.Genesis(ctx)
	if err != nil {
		fmt.Printf("get chain genesis err:%v\n", err)
		return
	}
	chainId := gres.Genesis.ChainID
	nonce := args.Nonce
	if nonce == 0 {
		act, err := queryAccount(args.Url, args.Index, "")
		if err != nil {
			return
		}
		nonce = act.Nonce
	}
	btx := tx.GovTx{
		Version: tx.TxVersion,
		Type:    typ,
		Nonce:   nonce,
		Sender:  args.Index,
		Tx:      payload,
	}
	dat, err := btx.SigData([]byte(chainId))
	if err != nil {
		fmt.Printf("tx sign data err:%v\n", err)
		return
	}
	println("data signed:", hex.EncodeToString(dat))
	pv := crypto.LoadFilePV(args.Skey)
	sig, err := pv.Sign(dat)
	if err != nil {
		fmt.Printf("sign tx err:%v\n", err)
		return
	}
	println("pubkey:", hex.EncodeToString(pv.PublicKey()))
	println("address:", pv.Address())
	sigs := [][]byte{sig}
	if args.NoSend {
		fmt.Println("transaction signatures:")
		for _, sig := range sigs {
			fmt.Println(hex.EncodeToString(sig))
		}
		return
	}
	btx.Sig = sigs
	dat, err = btx.Marshal()
	if err != nil {
		fmt.Printf("encode tx err:%v\n", err)
		return
	}
	res, err := cli.BroadcastTxSync(ctx, dat)
	if err != nil {
		fmt.Printf("broadcast tx err:%v\n", err)
		return
	}
	dat, _ = json.Marshal(res)
	fmt.Printf("%v\n", string(dat))
}
