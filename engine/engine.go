// Package engine is the parallel parsing engine: a decode
// pool reads and decodes blocks concurrently, an extract function projects
// each block down to the items a caller cares about, an optional batch
// function folds those items before they reach the caller's map, and an
// optional reorder stage restores descriptor order at the cost of some
// parallelism.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/icellan/blockparser/blkreader"
	"github.com/icellan/blockparser/blockdesc"
	"github.com/icellan/blockparser/headers"
)

// Extract projects a decoded block down to the items a caller wants to
// carry forward. It runs once per block, on one of NumThreads decode
// workers.
type Extract[B any] func(*blockdesc.Block) []B

// Reduce folds the items extracted from one batch of blocks before they
// are mapped and emitted. The default Reduce is the identity function.
type Reduce[B any] func([]B) []B

// Parser pairs an Extract function with an optional Reduce and the
// Options controlling the worker pools. Build one with New and run it
// with Parse, ParseWithOpts, or ParseDir.
type Parser[B any] struct {
	extract Extract[B]
	reduce  Reduce[B]
	opts    Options
}

// New builds a Parser with the identity Reduce and DefaultOptions,
// modified by opts.
func New[B any](extract Extract[B], opts ...Option) *Parser[B] {
	return &Parser[B]{
		extract: extract,
		reduce:  func(items []B) []B { return items },
		opts:    NewOptions(opts...),
	}
}

// WithReduce replaces the Reduce function. It returns the receiver for
// chaining.
func (p *Parser[B]) WithReduce(reduce Reduce[B]) *Parser[B] {
	p.reduce = reduce
	return p
}

// Options returns the Parser's current Options.
func (p *Parser[B]) Options() Options { return p.opts }

// Result is one item on a Parse output channel: either a successfully
// mapped value, or an error tagged with the batch index that produced
// it. Exactly one of Err being nil or non-nil holds for any Result.
type Result[C any] struct {
	BatchIndex int
	Value      C
	Err        error
}

// batchOutcome is the internal unit passed from the decode pool to the
// reduce/map stage: everything one batch produced, bundled so ordered
// mode only ever has one pending entry per index.
type batchOutcome[B any] struct {
	index int
	items []B
	errs  []error
}

// Parse runs p over hdrs, calling mapFn on every item that survives
// extraction and Reduce, and returns a channel of Result values. The
// channel is closed once every descriptor has been processed or ctx is
// canceled.
func Parse[B, C any](ctx context.Context, p *Parser[B], hdrs []blockdesc.BlockDescriptor, mapFn func(B) C) (<-chan Result[C], error) {
	return ParseWithOpts(ctx, p, hdrs, p.opts, mapFn)
}

// ParseDir discovers block descriptors under dir via headers.Parse and
// runs Parse over them.
func ParseDir[B, C any](ctx context.Context, p *Parser[B], dir string, mapFn func(B) C) (<-chan Result[C], error) {
	hdrs, err := headers.Parse(dir)
	if err != nil {
		return nil, err
	}
	return Parse(ctx, p, hdrs, mapFn)
}

// ParseWithOpts runs p over hdrs using opts instead of p.Options(),
// without mutating p. Useful for one-off overrides (e.g. ParallelParser
// with a caller-supplied NumThreads).
func ParseWithOpts[B, C any](ctx context.Context, p *Parser[B], hdrs []blockdesc.BlockDescriptor, opts Options, mapFn func(B) C) (<-chan Result[C], error) {
	return ParseFallibleWithOpts(ctx, p, hdrs, opts, func(b B) (C, error) { return mapFn(b), nil })
}

// ParseFallible is Parse for a mapFn that can itself fail (for example,
// a stateful reducer enforcing an invariant across blocks). A mapFn
// error is reported as a Result with Err set, exactly like a decode
// error, and does not stop the remaining input from being processed.
func ParseFallible[B, C any](ctx context.Context, p *Parser[B], hdrs []blockdesc.BlockDescriptor, mapFn func(B) (C, error)) (<-chan Result[C], error) {
	return ParseFallibleWithOpts(ctx, p, hdrs, p.opts, mapFn)
}

// ParseFallibleWithOpts is ParseWithOpts for a fallible mapFn; see
// ParseFallible.
func ParseFallibleWithOpts[B, C any](ctx context.Context, p *Parser[B], hdrs []blockdesc.BlockDescriptor, opts Options, mapFn func(B) (C, error)) (<-chan Result[C], error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	batches := batchHeaders(hdrs, opts.BatchSize)
	jobs := make(chan int, len(batches))
	for i := range batches {
		jobs <- i
	}
	close(jobs)

	outcomes := make(chan batchOutcome[B], opts.ChannelBufferSize)

	var parsed uint64
	start := time.Now()

	var decodeWG sync.WaitGroup
	decodeWG.Add(opts.NumThreads)
	for w := 0; w < opts.NumThreads; w++ {
		go func() {
			defer decodeWG.Done()
			for idx := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				oc := runBatch(ctx, p, idx, batches[idx], &parsed, start, opts)
				select {
				case outcomes <- oc:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		decodeWG.Wait()
		close(outcomes)
	}()

	out := make(chan Result[C], opts.ChannelBufferSize)

	if opts.OrderOutput {
		go runOrdered(ctx, p, outcomes, mapFn, out)
	} else {
		go runUnordered(ctx, p, outcomes, mapFn, out, opts.NumThreads)
	}

	return out, nil
}

// runBatch decodes and extracts every descriptor in a batch. A decode
// failure is recorded against that descriptor and does not stop the
// remaining descriptors in the batch from being processed.
func runBatch[B any](ctx context.Context, p *Parser[B], index int, batch []blockdesc.BlockDescriptor, parsed *uint64, start time.Time, opts Options) batchOutcome[B] {
	oc := batchOutcome[B]{index: index}
	for _, desc := range batch {
		block, err := blkreader.Read(desc)
		n := atomic.AddUint64(parsed, 1)
		if opts.LogAt > 0 && n%uint64(opts.LogAt) == 0 {
			logProgress(opts, n, start)
		}
		if err != nil {
			oc.errs = append(oc.errs, fmt.Errorf("batch %d, %s at %d: %w", index, desc.Path, desc.Offset, err))
			continue
		}
		oc.items = append(oc.items, p.extract(block)...)
	}
	return oc
}

func logProgress(opts Options, n uint64, start time.Time) {
	elapsed := time.Since(start)
	rate := float64(n) / elapsed.Seconds()
	opts.Logger.Info("parse progress", "blocks", n, "elapsed", elapsed.Round(time.Second), "blocks_per_sec", rate)
}

// emit turns one batchOutcome into zero or more Results: one error per
// failed descriptor, followed by one mapped value per surviving item
// after Reduce runs on them. Reduce never sees a descriptor's failure,
// only the items that were successfully extracted.
func emit[B, C any](p *Parser[B], oc batchOutcome[B], mapFn func(B) (C, error), out chan<- Result[C]) {
	for _, err := range oc.errs {
		out <- Result[C]{BatchIndex: oc.index, Err: err}
	}
	if len(oc.items) == 0 {
		return
	}
	for _, item := range p.reduce(oc.items) {
		val, err := mapFn(item)
		if err != nil {
			out <- Result[C]{BatchIndex: oc.index, Err: err}
			continue
		}
		out <- Result[C]{BatchIndex: oc.index, Value: val}
	}
}

// runUnordered fans batch outcomes out across NumThreads reduce/map
// workers, with no ordering guarantee across batches.
func runUnordered[B, C any](ctx context.Context, p *Parser[B], outcomes <-chan batchOutcome[B], mapFn func(B) (C, error), out chan<- Result[C], numThreads int) {
	defer close(out)
	var wg sync.WaitGroup
	wg.Add(numThreads)
	for w := 0; w < numThreads; w++ {
		go func() {
			defer wg.Done()
			for oc := range outcomes {
				select {
				case <-ctx.Done():
					return
				default:
				}
				emit(p, oc, mapFn, out)
			}
		}()
	}
	wg.Wait()
}

// runOrdered reassembles batch outcomes in index order before running
// Reduce/mapFn, on a single goroutine, so descriptor order is preserved
// on the output channel.
func runOrdered[B, C any](ctx context.Context, p *Parser[B], outcomes <-chan batchOutcome[B], mapFn func(B) (C, error), out chan<- Result[C]) {
	defer close(out)
	pending := make(map[int]batchOutcome[B])
	next := 0
	for oc := range outcomes {
		pending[oc.index] = oc
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			select {
			case <-ctx.Done():
				return
			default:
			}
			emit(p, ready, mapFn, out)
		}
	}
}

// batchHeaders splits hdrs into consecutive slices of at most size
// descriptors each, preserving order.
func batchHeaders(hdrs []blockdesc.BlockDescriptor, size int) [][]blockdesc.BlockDescriptor {
	if len(hdrs) == 0 {
		return nil
	}
	var batches [][]blockdesc.BlockDescriptor
	for i := 0; i < len(hdrs); i += size {
		end := i + size
		if end > len(hdrs) {
			end = len(hdrs)
		}
		batches = append(batches, hdrs[i:end])
	}
	return batches
}
