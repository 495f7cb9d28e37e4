package utxo

import (
	"errors"
	"fmt"

	bt "github.com/bsv-blockchain/go-bt/v2"
	"github.com/icellan/blockparser/blockdesc"
	"github.com/icellan/blockparser/shardedmap"
)

// ErrInvariant marks a violation of the pipeline's core invariant: a
// non-coinbase input consuming an outpoint the amount map has no entry
// for. Given a filter built over the same range, this can only happen
// if the filter and the blocks fed to the pipeline disagree about that
// range, which is a caller bug, not a recoverable data condition.
// LoadFilterForRange also returns it, wrapped with its own message, when
// a saved filter does not cover the requested range.
var ErrInvariant = errors.New("utxo: input spends an outpoint the amount map never recorded")

// estimatedAmountMapBuckets mirrors SplitSwissMap's default; the amount
// map's working set is every output recorded in stage one and not yet
// consumed by stage two, so its size tracks block-range UTXO churn
// rather than total chain size.
const estimatedAmountMapBuckets = 1024

// Pipeline runs the two-stage UTXO accounting over a
// single pass of blocks in blockchain order. Stage one (First) decides
// every output's final status up front by consulting the filter built
// over the whole range, and records the amount of any output the
// filter says is not in the end-of-range unspent set (it will be
// consumed later by stage two). Stage two (Second) resolves every
// non-coinbase input by removing its outpoint's amount from the map.
//
// A nil filter puts the pipeline in filter-less mode: every output is
// reported Unknown and every output's amount is recorded regardless,
// since there's no end-of-range information to skip tracking with.
type Pipeline struct {
	filter  *ShortOutPointFilter
	amounts *shardedmap.Map[ShortOutPoint, Amount]
}

// NewPipeline builds a Pipeline. filter may be nil to run without the
// unspent-set optimization; see the Pipeline doc comment.
func NewPipeline(filter *ShortOutPointFilter, estimatedUTXOs int) *Pipeline {
	return &Pipeline{
		filter:  filter,
		amounts: shardedmap.New[ShortOutPoint, Amount](estimatedUTXOs, estimatedAmountMapBuckets),
	}
}

// First runs stage one over tx and returns the status of each of its
// outputs, in output order.
func (p *Pipeline) First(tx *bt.Tx) []OutputStatus {
	txid := tx.TxIDChainHash()
	statuses := make([]OutputStatus, len(tx.Outputs))

	for i, out := range tx.Outputs {
		key := NewShortOutPoint(*txid, uint32(i))

		if p.filter == nil {
			p.amounts.Insert(key, out.Satoshis)
			statuses[i] = StatusUnknown
			continue
		}

		if p.filter.Contains(key) {
			statuses[i] = StatusUnspent
			continue
		}
		p.amounts.Insert(key, out.Satoshis)
		statuses[i] = StatusSpent
	}
	return statuses
}

// Second runs stage two over tx: every non-coinbase input's amount is
// looked up and removed from the amount map. The returned slice has
// one entry per input, aligned with tx.Inputs; coinbase transactions
// have no real inputs to account for and Second returns a single
// zero-amount entry for them, matching the "append the zero
// amount and skip" rule.
func (p *Pipeline) Second(tx *bt.Tx) ([]Amount, error) {
	if tx.IsCoinbase() {
		return []Amount{0}, nil
	}

	amounts := make([]Amount, len(tx.Inputs))
	for i, in := range tx.Inputs {
		key := NewShortOutPoint(*in.PreviousTxIDChainHash(), in.PreviousTxOutIndex)
		amt, ok := p.amounts.Remove(key)
		if !ok {
			return nil, fmt.Errorf("%w: tx %s input %d spends %x", ErrInvariant, tx.TxID(), i, key)
		}
		amounts[i] = amt
	}
	return amounts, nil
}

// Block runs First then Second over every transaction in blk, in
// order, and returns the fully annotated UtxoBlock. Running both
// stages per block (rather than First over the whole range, then
// Second over the whole range) is what lets a transaction spend an
// output created earlier in the same block.
func (p *Pipeline) Block(blk *blockdesc.Block) (*UtxoBlock, error) {
	out := &UtxoBlock{Header: blk.Header, Txs: make([]UtxoTransaction, len(blk.Txs))}
	for i, tx := range blk.Txs {
		statuses := p.First(tx)
		inputs, err := p.Second(tx)
		if err != nil {
			return nil, err
		}
		out.Txs[i] = UtxoTransaction{Tx: tx, Outputs: statuses, Inputs: inputs}
	}
	return out, nil
}
