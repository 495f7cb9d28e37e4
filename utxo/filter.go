package utxo

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"sync"

	boom "github.com/tylertreat/BoomFilters"
)

// filterSeed is a fixed seed value for the filter's random source. It
// is not passed to anything: BoomFilters' CuckooFilter exposes no way to
// inject a random source for its internal eviction kicks, so two builds
// over the same block range are not guaranteed to place entries
// identically or to produce byte-identical filter files.
const filterSeed = 0x2c76c58e13b3a812

// initialFilterCapacity is the size of the first underlying cuckoo
// filter when no UTXO estimate is given, and the size of every filter
// ShortOutPointFilter adds whenever the most recent one reports itself
// full, which is what makes it "scalable" rather than fixed-capacity.
const initialFilterCapacity = 1_000_000

// ErrFilterFull means a cuckoo filter insert failed even immediately
// after growing, which should not happen in practice and indicates a
// corrupt or mis-sized filter.
var ErrFilterFull = errors.New("utxo: cuckoo filter insert failed after growth")

// ShortOutPointFilter is a scalable cuckoo filter:
// an approximate membership set of ShortOutPoints, built once up front
// over the target block range and then queried read-only by the
// pipeline. A negative answer from Contains is certain; a positive
// answer carries the filter's false-positive rate, which is why the
// pipeline treats "filter says unspent" as a fast path rather than a
// proof.
type ShortOutPointFilter struct {
	mu      sync.Mutex
	filters []*boom.CuckooFilter
}

// NewShortOutPointFilter builds an empty filter sized for roughly
// estimatedUTXOs entries.
func NewShortOutPointFilter(estimatedUTXOs uint) *ShortOutPointFilter {
	capacity := initialFilterCapacity
	if estimatedUTXOs > 0 {
		capacity = int(estimatedUTXOs)
	}
	return &ShortOutPointFilter{
		filters: []*boom.CuckooFilter{boom.NewCuckooFilter(uint(capacity))},
	}
}

// Insert adds key to the most recently added underlying filter, growing
// by adding a fresh one if that filter rejects it. Earlier filters are
// not retried.
func (f *ShortOutPointFilter) Insert(key ShortOutPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	last := f.filters[len(f.filters)-1]
	if last.InsertUnique(key.Bytes()) {
		return nil
	}

	grown := boom.NewCuckooFilter(initialFilterCapacity)
	f.filters = append(f.filters, grown)
	if !grown.InsertUnique(key.Bytes()) {
		return fmt.Errorf("%w: %x", ErrFilterFull, key)
	}
	return nil
}

// ShrinkToFit drops any underlying filter left empty by Remove calls,
// trimming capacity added by growth that later spends emptied out
// entirely. BoomFilters' CuckooFilter has no in-place resize of its own
// (its bucket array is fixed at construction), so this is the only
// shrink available on top of a slice-of-filters scalable design: it
// cannot compact a partially-filled filter, only drop ones that hold
// nothing at all. Call once after a full build pass, once Insert will
// never be called again.
func (f *ShortOutPointFilter) ShrinkToFit() {
	f.mu.Lock()
	defer f.mu.Unlock()

	original := f.filters
	kept := original[:0]
	for _, cf := range original {
		if cf.Count() == 0 && len(original) > 1 {
			continue
		}
		kept = append(kept, cf)
	}
	if len(kept) == 0 {
		kept = append(kept, original[len(original)-1])
	}
	f.filters = kept
}

// Remove deletes key from whichever underlying filter holds it. It is
// a no-op if key was never inserted, matching cuckoo filters' normal
// semantics (deleting an absent key is safe but deleting a key that
// was never inserted, after a false positive elsewhere, is not — the
// filter builder only ever removes keys it just inserted in the same
// pass, so this can't arise here).
func (f *ShortOutPointFilter) Remove(key ShortOutPoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cf := range f.filters {
		if cf.Delete(key.Bytes()) {
			return
		}
	}
}

// Contains reports whether key might be in the filter. A false return
// is definitive; a true return is probabilistic.
func (f *ShortOutPointFilter) Contains(key ShortOutPoint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cf := range f.filters {
		if cf.Lookup(key.Bytes()) {
			return true
		}
	}
	return false
}

// FilterMeta records the block range a saved filter was built over, so
// LoadFilterForRange can refuse a filter that does not cover the range
// the caller is about to parse.
type FilterMeta struct {
	FromHeight int
	ToHeight   int
}

type filterFile struct {
	Meta    FilterMeta
	Filters []*boom.CuckooFilter
}

// SaveFilter gob-encodes f and meta to path.
func SaveFilter(path string, meta FilterMeta, f *ShortOutPointFilter) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("utxo: create filter file %s: %w", path, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if err := gob.NewEncoder(w).Encode(filterFile{Meta: meta, Filters: f.filters}); err != nil {
		return fmt.Errorf("utxo: encode filter file %s: %w", path, err)
	}
	return w.Flush()
}

// LoadFilter decodes a filter previously written by SaveFilter.
func LoadFilter(path string) (*ShortOutPointFilter, FilterMeta, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, FilterMeta{}, fmt.Errorf("utxo: open filter file %s: %w", path, err)
	}
	defer file.Close()

	var ff filterFile
	if err := gob.NewDecoder(bufio.NewReader(file)).Decode(&ff); err != nil {
		return nil, FilterMeta{}, fmt.Errorf("utxo: decode filter file %s: %w", path, err)
	}
	return &ShortOutPointFilter{filters: ff.Filters}, ff.Meta, nil
}

// LoadFilterForRange loads path and checks that it covers want: a
// filter built over a wider range than requested is fine to reuse (the
// extra entries are simply never queried), but one built over a
// narrower range is not, since outputs created past its recorded end
// were never inserted and would be reported as definitely-not-present
// instead of unknown.
func LoadFilterForRange(path string, want FilterMeta) (*ShortOutPointFilter, error) {
	f, meta, err := LoadFilter(path)
	if err != nil {
		return nil, err
	}
	if meta.FromHeight > want.FromHeight || meta.ToHeight < want.ToHeight {
		return nil, fmt.Errorf("%w: filter file %s covers heights %d-%d, requested range needs %d-%d",
			ErrInvariant, path, meta.FromHeight, meta.ToHeight, want.FromHeight, want.ToHeight)
	}
	return f, nil
}

// LoadOrCreateFilter loads path if it exists and its FilterMeta matches
// want, otherwise it returns a fresh empty filter sized for
// estimatedUTXOs. It performs no build pass of its own: a caller on the
// empty-filter path is expected to populate it (see Parser.BuildFilter,
// which does this against a header range rather than going through this
// function).
func LoadOrCreateFilter(path string, want FilterMeta, estimatedUTXOs uint) (*ShortOutPointFilter, error) {
	if path != "" {
		if f, meta, err := LoadFilter(path); err == nil {
			if meta == want {
				return f, nil
			}
		}
	}
	return NewShortOutPointFilter(estimatedUTXOs), nil
}
