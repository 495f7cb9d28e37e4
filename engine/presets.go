package engine

import "github.com/icellan/blockparser/blockdesc"

// ParallelParser is the identity Parser over whole blocks, tuned for
// maximum throughput with no ordering guarantee: BatchSize defaults to
// 1 so a single slow block cannot hold up a batch of otherwise-ready
// blocks. opts are applied after that default and can override it.
func ParallelParser(opts ...Option) *Parser[*blockdesc.Block] {
	allOpts := append([]Option{WithBatchSize(1)}, opts...)
	return New(wholeBlock, allOpts...)
}

// InOrderParser is ParallelParser with OrderOutput enabled, for callers
// that need to see blocks in descriptor order (e.g. stateful UTXO
// tracking) but don't need custom extraction.
func InOrderParser(opts ...Option) *Parser[*blockdesc.Block] {
	allOpts := append([]Option{WithBatchSize(1), WithOrderOutput()}, opts...)
	return New(wholeBlock, allOpts...)
}

func wholeBlock(b *blockdesc.Block) []*blockdesc.Block {
	return []*blockdesc.Block{b}
}
