package blkreader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/icellan/blockparser/blockdesc"
	"github.com/icellan/blockparser/internal/xor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emptyTxVector is one VarInt tx count (1) followed by one minimal
// empty transaction: 4-byte version, input count 0, output count 0,
// 4-byte locktime. go-bt/v2's Tx.ReadFrom special-cases a zero input
// count followed by a zero output count as a valid (if degenerate)
// transaction rather than a segwit marker, so this round-trips cleanly.
var emptyTxVector = []byte{
	0x01,                   // tx count
	0x00, 0x00, 0x00, 0x00, // version
	0x00,                   // input count
	0x00,                   // output count
	0x00, 0x00, 0x00, 0x00, // locktime
}

func writeObfuscated(t *testing.T, path string, key xor.Key, plain []byte) {
	t.Helper()
	out := make([]byte, len(plain))
	for i, b := range plain {
		out[i] = b ^ key[i%xor.KeyLen]
	}
	require.NoError(t, os.WriteFile(path, out, 0o644))
}

func TestReadDecodesTransactionVector(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blk00000.dat")
	var key xor.Key

	writeObfuscated(t, path, key, emptyTxVector)

	desc := blockdesc.BlockDescriptor{
		Path:   path,
		Offset: 0,
		Mask:   key,
		Header: &blockdesc.Header{},
	}

	blk, err := Read(desc)
	require.NoError(t, err)
	assert.Len(t, blk.Txs, 1)
	assert.Same(t, desc.Header, blk.Header)
}

func TestReadUndoesXorMask(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blk00000.dat")
	key := xor.Key{1, 2, 3, 4, 5, 6, 7, 8}

	writeObfuscated(t, path, key, emptyTxVector)

	desc := blockdesc.BlockDescriptor{Path: path, Offset: 0, Mask: key, Header: &blockdesc.Header{}}
	blk, err := Read(desc)
	require.NoError(t, err)
	assert.Len(t, blk.Txs, 1)
}

func TestReadRespectsOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blk00000.dat")
	var key xor.Key

	padding := make([]byte, 17)
	writeObfuscated(t, path, key, append(padding, emptyTxVector...))

	desc := blockdesc.BlockDescriptor{Path: path, Offset: 17, Mask: key, Header: &blockdesc.Header{}}
	blk, err := Read(desc)
	require.NoError(t, err)
	assert.Len(t, blk.Txs, 1)
}

func TestReadErrorsOnMissingFile(t *testing.T) {
	desc := blockdesc.BlockDescriptor{Path: "/nonexistent/blk00000.dat", Header: &blockdesc.Header{}}
	_, err := Read(desc)
	assert.Error(t, err)
}

func TestReadErrorsOnTruncatedData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blk00000.dat")
	var key xor.Key
	writeObfuscated(t, path, key, emptyTxVector[:len(emptyTxVector)-2])

	desc := blockdesc.BlockDescriptor{Path: path, Mask: key, Header: &blockdesc.Header{}}
	_, err := Read(desc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
}
