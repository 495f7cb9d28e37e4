// Package blockdesc holds the data model shared between the header
// collaborator, the block reader, and the parallel engine: the
// BlockDescriptor handed into the engine, and the decoded Header/Block
// types that come out of it.
package blockdesc

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// HeaderSize is the fixed wire size of a Bitcoin block header.
const HeaderSize = 80

// Header is the 80-byte Bitcoin block header. It has no dependency on
// any transaction in the block and can be parsed independently of the
// (much larger) transaction list that follows it on disk.
type Header struct {
	Version    int32
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

// ReadHeader decodes a Header from the next HeaderSize bytes of r.
func ReadHeader(r io.Reader) (*Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, fmt.Errorf("read block header: %w", err)
	}

	h := &Header{
		Version:   int32(binary.LittleEndian.Uint32(buf[0:4])),
		Timestamp: binary.LittleEndian.Uint32(buf[68:72]),
		Bits:      binary.LittleEndian.Uint32(buf[72:76]),
		Nonce:     binary.LittleEndian.Uint32(buf[76:80]),
	}
	copy(h.PrevBlock[:], buf[4:36])
	copy(h.MerkleRoot[:], buf[36:68])
	return h, nil
}

// Bytes serializes the header back to its 80-byte wire form.
func (h *Header) Bytes() []byte {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Version))
	copy(buf[4:36], h.PrevBlock[:])
	copy(buf[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(buf[68:72], h.Timestamp)
	binary.LittleEndian.PutUint32(buf[72:76], h.Bits)
	binary.LittleEndian.PutUint32(buf[76:80], h.Nonce)
	return buf[:]
}

// Hash returns the block hash: the double-SHA256 of the serialized
// header, in internal byte order. chainhash.Hash.String prints it
// byte-reversed, the usual display form.
//
// This is computed with crypto/sha256 directly rather than a vendored
// hash helper: the only third-party double-hash helper in the pack
// (go-sdk/primitives/hash, used by go-bt for Tx IDs) lives in a module
// this design otherwise has no use for, so pulling it in for one
// two-line function isn't worth the dependency.
func (h *Header) Hash() chainhash.Hash {
	first := sha256.Sum256(h.Bytes())
	second := sha256.Sum256(first[:])
	return chainhash.Hash(second)
}
