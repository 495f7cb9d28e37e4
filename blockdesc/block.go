package blockdesc

import bt "github.com/bsv-blockchain/go-bt/v2"

// Block is a decoded block: a header plus its ordered transaction list.
// The engine owns a Block only between decode and the return of the
// user's extract function; nothing should retain a Block past that call.
type Block struct {
	Header *Header
	Txs    bt.Txs
}
