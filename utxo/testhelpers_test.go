package utxo

import (
	"testing"

	bt "github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/require"
)

// coinbaseTx builds a coinbase transaction (one input, all-zero
// previous txid, max sequence number) with one output per satoshis
// value. label only varies LockTime so distinct calls produce distinct
// serialized bytes, and therefore distinct txids, without needing
// valid scripts or signatures.
func coinbaseTx(t *testing.T, label uint32, satoshis ...uint64) *bt.Tx {
	t.Helper()
	tx := bt.NewTx()
	tx.LockTime = label

	in := &bt.Input{SequenceNumber: bt.DefaultSequenceNumber, PreviousTxOutIndex: bt.DefaultSequenceNumber}
	require.NoError(t, in.PreviousTxIDAdd(&chainhash.Hash{}))
	tx.Inputs = append(tx.Inputs, in)

	for _, sats := range satoshis {
		tx.Outputs = append(tx.Outputs, &bt.Output{Satoshis: sats})
	}
	return tx
}

// spendingTx builds a single-input, single-output transaction whose
// input spends (spentTxid, vout).
func spendingTx(t *testing.T, label uint32, spentTxid chainhash.Hash, vout uint32, satoshis uint64) *bt.Tx {
	t.Helper()
	tx := bt.NewTx()
	tx.LockTime = label

	in := &bt.Input{PreviousTxOutIndex: vout, SequenceNumber: 0}
	require.NoError(t, in.PreviousTxIDAdd(&spentTxid))
	tx.Inputs = append(tx.Inputs, in)

	tx.Outputs = append(tx.Outputs, &bt.Output{Satoshis: satoshis})
	return tx
}
