package blockdesc

import "github.com/icellan/blockparser/internal/xor"

// BlockDescriptor is the immutable unit the header collaborator produces
// and the parallel engine consumes. It carries everything the block
// reader needs to locate and decode one block's transaction list without
// re-reading the header: the file it lives in, the byte offset at which
// the transaction vector begins, and the obfuscation key needed to
// undo bitcoind's XOR masking.
//
// A BlockDescriptor is never mutated after construction; the engine
// passes around a read-only slice of them.
type BlockDescriptor struct {
	Path   string
	Offset int64
	Mask   xor.Key
	Header *Header
}
