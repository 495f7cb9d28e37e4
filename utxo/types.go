package utxo

import (
	bt "github.com/bsv-blockchain/go-bt/v2"
	"github.com/icellan/blockparser/blockdesc"
)

// OutputStatus is the spend status of one transaction output as of the
// end of the range the pipeline was run over.
type OutputStatus int

const (
	// StatusUnknown is reported for every output when Pipeline.First
	// runs with no filter attached: with nothing to consult, the
	// pipeline records the output's amount unconditionally and defers
	// any spent/unspent verdict entirely.
	StatusUnknown OutputStatus = iota
	// StatusUnspent means the output was not consumed by any input in
	// the range.
	StatusUnspent
	// StatusSpent means a later transaction in the range consumed this
	// output.
	StatusSpent
)

func (s OutputStatus) String() string {
	switch s {
	case StatusUnspent:
		return "unspent"
	case StatusSpent:
		return "spent"
	default:
		return "unknown"
	}
}

// Amount is a satoshi value, the unit the amount map stores per
// tracked output.
type Amount = uint64

// UtxoTransaction is one transaction's contribution to the pipeline's
// output: the spend status of each of its outputs, and the amount
// consumed by each of its non-coinbase inputs.
type UtxoTransaction struct {
	Tx      *bt.Tx
	Outputs []OutputStatus
	Inputs  []Amount
}

// UtxoBlock is a decoded block annotated with per-transaction spend
// status and input amounts. It is the terminal value the UTXO parser
// produces per block.
type UtxoBlock struct {
	Header *blockdesc.Header
	Txs    []UtxoTransaction
}

// ToBlock discards the UTXO annotations and returns the plain decoded
// block, for callers that ran the pipeline only to warm the filter or
// amount map and now want the underlying data.
func (b UtxoBlock) ToBlock() *blockdesc.Block {
	txs := make(bt.Txs, len(b.Txs))
	for i, t := range b.Txs {
		txs[i] = t.Tx
	}
	return &blockdesc.Block{Header: b.Header, Txs: txs}
}
