package utxo

import (
	"testing"

	bt "github.com/bsv-blockchain/go-bt/v2"
	"github.com/icellan/blockparser/blockdesc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFilterBuilderS1 covers three synthetic blocks
// where block 2 spends block 1's coinbase and block 3 spends block 2's
// coinbase. After the builder runs over all three, only block 3's
// coinbase output remains in the filter's unspent set.
func TestFilterBuilderS1(t *testing.T) {
	cb1 := coinbaseTx(t, 1, 50)
	block1 := &blockdesc.Block{Header: &blockdesc.Header{}, Txs: bt.Txs{cb1}}

	cb1Txid := cb1.TxIDChainHash()
	spend1 := spendingTx(t, 2, *cb1Txid, 0, 49)
	cb2 := coinbaseTx(t, 2, 50)
	block2 := &blockdesc.Block{Header: &blockdesc.Header{}, Txs: bt.Txs{cb2, spend1}}

	cb2Txid := cb2.TxIDChainHash()
	spend2 := spendingTx(t, 3, *cb2Txid, 0, 49)
	cb3 := coinbaseTx(t, 3, 50)
	block3 := &blockdesc.Block{Header: &blockdesc.Header{}, Txs: bt.Txs{cb3, spend2}}

	builder := NewFilterBuilder(10)
	require.NoError(t, builder.AddBlock(block1))
	require.NoError(t, builder.AddBlock(block2))
	require.NoError(t, builder.AddBlock(block3))

	filter := builder.Filter()

	assert.False(t, filter.Contains(NewShortOutPoint(*cb1Txid, 0)), "block 1 coinbase was spent")
	assert.False(t, filter.Contains(NewShortOutPoint(*cb2Txid, 0)), "block 2 coinbase was spent")

	cb3Txid := cb3.TxIDChainHash()
	assert.True(t, filter.Contains(NewShortOutPoint(*cb3Txid, 0)), "block 3 coinbase is unspent at end of range")

	spend1Txid := spend1.TxIDChainHash()
	assert.True(t, filter.Contains(NewShortOutPoint(*spend1Txid, 0)), "spend1's own output is never consumed")
}

func TestFilterBuilderHandlesSpendWithinSameBlock(t *testing.T) {
	cb := coinbaseTx(t, 1, 100)
	cbTxid := cb.TxIDChainHash()
	spend := spendingTx(t, 2, *cbTxid, 0, 99)

	block := &blockdesc.Block{Header: &blockdesc.Header{}, Txs: bt.Txs{cb, spend}}

	builder := NewFilterBuilder(10)
	require.NoError(t, builder.AddBlock(block))

	filter := builder.Filter()
	assert.False(t, filter.Contains(NewShortOutPoint(*cbTxid, 0)))

	spendTxid := spend.TxIDChainHash()
	assert.True(t, filter.Contains(NewShortOutPoint(*spendTxid, 0)))
}
