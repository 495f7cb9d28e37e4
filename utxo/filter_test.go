package utxo

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	boom "github.com/tylertreat/BoomFilters"
)

func TestFilterInsertContainsRemove(t *testing.T) {
	f := NewShortOutPointFilter(1000)

	var txid chainhash.Hash
	txid[0] = 7
	key := NewShortOutPoint(txid, 0)

	assert.False(t, f.Contains(key))

	require.NoError(t, f.Insert(key))
	assert.True(t, f.Contains(key))

	f.Remove(key)
	assert.False(t, f.Contains(key))
}

func TestFilterGrowsPastInitialCapacity(t *testing.T) {
	f := NewShortOutPointFilter(4)

	var txid chainhash.Hash
	for i := 0; i < 32; i++ {
		txid[0] = byte(i)
		require.NoError(t, f.Insert(NewShortOutPoint(txid, 0)))
	}
	assert.GreaterOrEqual(t, len(f.filters), 1)

	for i := 0; i < 32; i++ {
		txid[0] = byte(i)
		assert.True(t, f.Contains(NewShortOutPoint(txid, 0)))
	}
}

func TestShrinkToFitDropsEmptyGrownFilters(t *testing.T) {
	f := NewShortOutPointFilter(1000)

	var txid chainhash.Hash
	txid[0] = 1
	key := NewShortOutPoint(txid, 0)
	require.NoError(t, f.Insert(key))

	// Simulate growth by appending a second, still-empty underlying
	// filter, as Insert would once the first genuinely fills up.
	f.filters = append(f.filters, boom.NewCuckooFilter(1000))
	require.Equal(t, 2, len(f.filters))

	f.ShrinkToFit()
	assert.Equal(t, 1, len(f.filters), "the empty grown filter should be dropped")
	assert.True(t, f.Contains(key), "the surviving filter must still answer for its own keys")
}

func TestShrinkToFitKeepsOneFilterWhenAllAreEmpty(t *testing.T) {
	f := NewShortOutPointFilter(10)
	f.filters = append(f.filters, boom.NewCuckooFilter(10), boom.NewCuckooFilter(10))
	require.Equal(t, 3, len(f.filters))

	f.ShrinkToFit()
	assert.Equal(t, 1, len(f.filters), "shrinking an all-empty multi-filter set must not drop every filter")
}

func TestShrinkToFitNeverEmptiesAllFilters(t *testing.T) {
	f := NewShortOutPointFilter(10)
	f.ShrinkToFit()
	assert.Equal(t, 1, len(f.filters), "an all-empty filter keeps at least one underlying filter")
}

func TestSaveLoadFilterRoundTrip(t *testing.T) {
	f := NewShortOutPointFilter(100)
	var txid chainhash.Hash
	txid[0] = 9
	key := NewShortOutPoint(txid, 3)
	require.NoError(t, f.Insert(key))

	path := filepath.Join(t.TempDir(), "filter.gob")
	meta := FilterMeta{FromHeight: 0, ToHeight: 99}
	require.NoError(t, SaveFilter(path, meta, f))

	loaded, loadedMeta, err := LoadFilter(path)
	require.NoError(t, err)
	assert.Equal(t, meta, loadedMeta)
	assert.True(t, loaded.Contains(key))

	var other chainhash.Hash
	other[0] = 10
	assert.False(t, loaded.Contains(NewShortOutPoint(other, 0)))
}

func TestLoadFilterForRangeAcceptsWiderCoverage(t *testing.T) {
	f := NewShortOutPointFilter(10)
	path := filepath.Join(t.TempDir(), "filter.gob")
	require.NoError(t, SaveFilter(path, FilterMeta{FromHeight: 0, ToHeight: 200}, f))

	loaded, err := LoadFilterForRange(path, FilterMeta{FromHeight: 0, ToHeight: 100})
	require.NoError(t, err)
	assert.NotNil(t, loaded)
}

func TestLoadFilterForRangeRejectsNarrowerCoverage(t *testing.T) {
	f := NewShortOutPointFilter(10)
	path := filepath.Join(t.TempDir(), "filter.gob")
	require.NoError(t, SaveFilter(path, FilterMeta{FromHeight: 0, ToHeight: 50}, f))

	_, err := LoadFilterForRange(path, FilterMeta{FromHeight: 0, ToHeight: 100})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestLoadOrCreateFilterFallsBackWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.gob")
	want := FilterMeta{FromHeight: 0, ToHeight: 10}

	f, err := LoadOrCreateFilter(path, want, 100)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, 1, len(f.filters))
}
