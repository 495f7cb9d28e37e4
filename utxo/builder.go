package utxo

import (
	"sync"

	"github.com/icellan/blockparser/blockdesc"
)

// FilterBuilder runs the UTXO filter builder: the
// single full pass over a block range that inserts every created
// output into a cuckoo filter and removes every consumed output,
// leaving a filter describing exactly the set of outpoints unspent at
// the end of the range.
//
// The insert-then-remove order within a block matters: a transaction
// may spend an output created earlier in the same block, so both
// steps run per-block rather than as two separate passes. Blocks
// themselves must also arrive in blockchain order: a block's remove
// only ever targets an outpoint inserted by an earlier block's
// AddBlock call, so if a later block's spend reaches the filter before
// its output's creating block does, Remove silently no-ops (it only
// ever removes keys already present) and the creating block's insert
// then lands after it, leaving a truly-spent output marked present
// forever. AddBlock guards its own state with a mutex so concurrent
// calls are safe to issue, but callers must still serialize them in
// blockchain order; Parser.BuildFilter does this by running the engine
// with OrderOutput enabled.
type FilterBuilder struct {
	mu     sync.Mutex
	filter *ShortOutPointFilter
}

// NewFilterBuilder builds an empty FilterBuilder sized for roughly
// estimatedUTXOs entries.
func NewFilterBuilder(estimatedUTXOs uint) *FilterBuilder {
	return &FilterBuilder{filter: NewShortOutPointFilter(estimatedUTXOs)}
}

// AddBlock folds one block's outputs and inputs into the filter.
func (b *FilterBuilder) AddBlock(blk *blockdesc.Block) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, tx := range blk.Txs {
		txid := tx.TxIDChainHash()
		for i := range tx.Outputs {
			if err := b.filter.Insert(NewShortOutPoint(*txid, uint32(i))); err != nil {
				return err
			}
		}
	}
	for _, tx := range blk.Txs {
		if tx.IsCoinbase() {
			continue
		}
		for _, in := range tx.Inputs {
			key := NewShortOutPoint(*in.PreviousTxIDChainHash(), in.PreviousTxOutIndex)
			b.filter.Remove(key)
		}
	}
	return nil
}

// Filter returns the filter built so far. Call this only after every
// block in the range has been added.
func (b *FilterBuilder) Filter() *ShortOutPointFilter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter
}
