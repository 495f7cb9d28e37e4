// Package utxo implements the two-phase UTXO tracker:
// a filter-building pass over a block range followed by a two-stage
// pipeline that turns each transaction's inputs and outputs into spend
// status and amount information, bounding memory with a probabilistic
// filter instead of retaining every output ever seen.
package utxo

import (
	"encoding/binary"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// shortOutPointSize is 2 bytes of output index plus 12 bytes of txid.
const shortOutPointSize = 14

// ShortOutPoint is the compact, comparable key used in
// place of a full 36-byte outpoint (32-byte txid + 4-byte index) to
// bound the amount map's memory: the low 2 bytes of the output index
// and the first 12 bytes of the txid. Collisions are possible but rare
// enough in practice to accept, given the filter already absorbs most
// of the false-positive risk for spend tracking.
type ShortOutPoint [shortOutPointSize]byte

// NewShortOutPoint builds a ShortOutPoint from a transaction id and an
// output index.
func NewShortOutPoint(txid chainhash.Hash, vout uint32) ShortOutPoint {
	var s ShortOutPoint
	binary.LittleEndian.PutUint16(s[0:2], uint16(vout))
	copy(s[2:], txid[:12])
	return s
}

// Bytes returns the ShortOutPoint's 14 bytes, suitable as a probabilistic
// filter key.
func (s ShortOutPoint) Bytes() []byte {
	return s[:]
}
