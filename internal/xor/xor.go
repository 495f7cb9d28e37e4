// Package xor implements the byte-cycling XOR cipher bitcoind uses to
// obfuscate blk*.dat files on disk.
package xor

import "io"

// KeyLen is the length of the obfuscation key bitcoind writes to
// blocks/xor.dat, beside the blk*.dat files.
const KeyLen = 8

// Key is the fixed-size obfuscation mask applied to a blk*.dat file.
type Key [KeyLen]byte

// Reader wraps an io.Reader and XORs every byte read against Key, cycling
// the key by the absolute byte offset within the underlying file so that
// seeking and re-reading from an arbitrary offset still produces the
// correct plaintext.
type Reader struct {
	src    io.Reader
	key    Key
	offset int
}

// NewReader returns a Reader that starts cycling the key at position 0.
// Use NewReaderAt when the underlying reader is already positioned past
// the start of the file.
func NewReader(src io.Reader, key Key) *Reader {
	return &Reader{src: src, key: key}
}

// NewReaderAt returns a Reader positioned as if offset bytes of the
// underlying plaintext had already been consumed, so the key cycle lines
// up correctly after a Seek.
func NewReaderAt(src io.Reader, key Key, offset int64) *Reader {
	return &Reader{src: src, key: key, offset: int(offset % int64(KeyLen))}
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	for i := 0; i < n; i++ {
		p[i] ^= r.key[(r.offset+i)%KeyLen]
	}
	r.offset += n
	return n, err
}
