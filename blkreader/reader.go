// Package blkreader is the external block-reader collaborator described
// given a BlockDescriptor it opens the underlying blk*.dat
// file, undoes bitcoind's XOR obfuscation, seeks to the transaction
// vector, and decodes it with the consensus transaction codec
// (github.com/bsv-blockchain/go-bt/v2).
package blkreader

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	bt "github.com/bsv-blockchain/go-bt/v2"
	"github.com/icellan/blockparser/blockdesc"
	"github.com/icellan/blockparser/internal/xor"
)

// ErrDecode wraps any failure to deserialize a block's transaction list.
var ErrDecode = errors.New("blkreader: malformed block data")

// bufferSize is the read-ahead buffer used per block. Most blocks are
// well under 4MB; a larger buffer just trades memory for fewer syscalls.
const bufferSize = 64 * 1024

// Read opens desc.Path, applies the XOR mask, seeks to desc.Offset and
// decodes the transaction vector that follows into a blockdesc.Block
// carrying desc.Header.
func Read(desc blockdesc.BlockDescriptor) (*blockdesc.Block, error) {
	f, err := os.Open(desc.Path)
	if err != nil {
		return nil, fmt.Errorf("blkreader: open %s: %w", desc.Path, err)
	}
	defer f.Close()

	if _, err := f.Seek(desc.Offset, os.SEEK_SET); err != nil {
		return nil, fmt.Errorf("blkreader: seek %s: %w", desc.Path, err)
	}

	r := bufio.NewReaderSize(xor.NewReaderAt(f, desc.Mask, desc.Offset), bufferSize)

	var txs bt.Txs
	if _, err := txs.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: %s at %d: %v", ErrDecode, desc.Path, desc.Offset, err)
	}

	return &blockdesc.Block{Header: desc.Header, Txs: txs}, nil
}
