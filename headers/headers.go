// Package headers is the external header-discovery collaborator from
// given a blocks directory it returns a dense,
// blockchain-ordered sequence of BlockDescriptor values covering every
// block the node has on disk. The engine trusts this order completely
// and never re-orders or de-duplicates it.
//
// bitcoind writes blk*.dat files append-only and in ascending numeric
// order during normal operation (including initial sync), so walking the
// files in filename order and the blocks within each file in on-disk
// order already yields blockchain order for the common case. A reorg-aware
// implementation would need to follow each header's PrevBlock pointer;
// that is out of scope here.
package headers

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/icellan/blockparser/blockdesc"
	"github.com/icellan/blockparser/internal/xor"
)

// ErrIO covers any failure to open, read, or stat a blk*.dat or the
// obfuscation key file.
var ErrIO = errors.New("headers: i/o error")

// defaultMagic is Bitcoin mainnet's message-start bytes, used to frame
// blocks within a blk*.dat file. Pass a custom Option if the directory
// belongs to a different network.
var defaultMagic = [4]byte{0xf9, 0xbe, 0xb4, 0xd9}

// Option configures Parse.
type Option func(*config)

type config struct {
	magic [4]byte
}

// WithMagic overrides the 4-byte network message-start sequence used to
// frame blocks inside each blk*.dat file.
func WithMagic(magic [4]byte) Option {
	return func(c *config) { c.magic = magic }
}

// Parse scans dir for blk*.dat files and returns their blocks as an
// ordered slice of BlockDescriptor.
func Parse(dir string, opts ...Option) ([]blockdesc.BlockDescriptor, error) {
	cfg := config{magic: defaultMagic}
	for _, opt := range opts {
		opt(&cfg)
	}

	mask, err := readObfuscationKey(dir)
	if err != nil {
		return nil, err
	}

	files, err := blkFiles(dir)
	if err != nil {
		return nil, err
	}

	var out []blockdesc.BlockDescriptor
	for _, path := range files {
		descs, err := scanFile(path, mask, cfg.magic)
		if err != nil {
			return nil, err
		}
		out = append(out, descs...)
	}
	return out, nil
}

// blkFiles returns the blk*.dat files in dir sorted by filename, which
// for bitcoind's zero-padded naming scheme is also numeric order.
func blkFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "blk[0-9][0-9][0-9][0-9][0-9].dat"))
	if err != nil {
		return nil, fmt.Errorf("%w: glob %s: %v", ErrIO, dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// readObfuscationKey loads the 8-byte XOR key bitcoind stores alongside
// the blk*.dat files. Its absence is not an error: older/unobfuscated
// data directories simply use the zero key, which is a no-op XOR mask.
func readObfuscationKey(dir string) (xor.Key, error) {
	var key xor.Key
	data, err := os.ReadFile(filepath.Join(dir, "xor.dat"))
	if err != nil {
		if os.IsNotExist(err) {
			return key, nil
		}
		return key, fmt.Errorf("%w: reading xor.dat: %v", ErrIO, err)
	}
	copy(key[:], data)
	return key, nil
}

// scanFile walks one blk*.dat file, framing each block by its magic
// bytes and 4-byte little-endian size, and returns a descriptor per
// block found.
func scanFile(path string, mask xor.Key, magic [4]byte) ([]blockdesc.BlockDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}
	defer f.Close()

	r := bufio.NewReader(xor.NewReader(f, mask))

	var out []blockdesc.BlockDescriptor
	var offset int64
	for {
		var frame [8]byte
		if _, err := io.ReadFull(r, frame[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("%w: frame header in %s at %d: %v", ErrIO, path, offset, err)
		}
		offset += 8

		if frame[0] != magic[0] || frame[1] != magic[1] || frame[2] != magic[2] || frame[3] != magic[3] {
			// Padding/zero-fill at the tail of a preallocated file.
			break
		}
		size := int64(binary.LittleEndian.Uint32(frame[4:8]))
		if size == 0 {
			break
		}

		header, err := blockdesc.ReadHeader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: header in %s at %d: %v", ErrIO, path, offset, err)
		}
		offset += blockdesc.HeaderSize

		out = append(out, blockdesc.BlockDescriptor{
			Path:   path,
			Offset: offset,
			Mask:   mask,
			Header: header,
		})

		remaining := size - blockdesc.HeaderSize
		if _, err := io.CopyN(io.Discard, r, remaining); err != nil {
			return nil, fmt.Errorf("%w: skip body in %s at %d: %v", ErrIO, path, offset, err)
		}
		offset += remaining
	}
	return out, nil
}
