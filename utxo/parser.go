package utxo

import (
	"context"
	"fmt"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/icellan/blockparser/blockdesc"
	"github.com/icellan/blockparser/engine"
	"github.com/icellan/blockparser/headers"
)

func discoverHeaders(dir string) ([]blockdesc.BlockDescriptor, error) {
	return headers.Parse(dir)
}

// Parser wires the parallel engine to the UTXO filter builder and
// pipeline, implementing two full passes, both in blockchain order:
// one that builds the filter, and one that runs the two-stage
// pipeline over every block using that filter.
type Parser struct {
	estimatedUTXOs uint
	filterPath     string
	blockRangeEnd  int
	debugChecks    bool
	engineOpts     []engine.Option
}

// NewParser builds a Parser with conservative engine defaults.
func NewParser(opts ...Option) *Parser {
	p := &Parser{estimatedUTXOs: 0}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Option configures a Parser.
type Option func(*Parser)

// WithEstimatedUTXOs sizes the filter and amount map up front, avoiding
// growth churn for callers who know roughly how many UTXOs the range
// holds.
func WithEstimatedUTXOs(n uint) Option {
	return func(p *Parser) { p.estimatedUTXOs = n }
}

// WithFilterPath points BuildFilter at a filter file: it is loaded if
// it covers the block range, otherwise BuildFilter builds a new filter
// and saves it to this path.
func WithFilterPath(path string) Option {
	return func(p *Parser) { p.filterPath = path }
}

// WithBlockRangeEnd records the height the caller intends to parse up
// to. It sets FilterMeta.ToHeight for the filter BuildFilter loads or
// saves; it does not truncate the headers either pass runs over.
func WithBlockRangeEnd(height int) Option {
	return func(p *Parser) { p.blockRangeEnd = height }
}

// WithDebugChecks enables the non-genesis-start sanity check described
// at the Parser's Parse method. It costs nothing on the hot path when
// disabled, so it defaults off.
func WithDebugChecks() Option {
	return func(p *Parser) { p.debugChecks = true }
}

// WithEngineOptions passes through engine.Option values to both of the
// Parser's internal passes.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(p *Parser) { p.engineOpts = append(p.engineOpts, opts...) }
}

// filterMetaFor returns the FilterMeta a filter built or loaded for
// hdrs should carry: ToHeight defaults to the last index in hdrs
// unless the caller pinned an explicit end via WithBlockRangeEnd.
func (p *Parser) filterMetaFor(hdrs []blockdesc.BlockDescriptor) FilterMeta {
	end := len(hdrs) - 1
	if p.blockRangeEnd != 0 {
		end = p.blockRangeEnd
	}
	return FilterMeta{FromHeight: 0, ToHeight: end}
}

// checkGenesisStart panics if debugChecks is enabled and hdrs' first
// header isn't a plausible genesis block (previous-block hash all
// zero). The amount map only ever sees outputs created within the
// range it was asked to track, so starting mid-chain makes every spend
// of an output created before the range's start fail with
// ErrInvariant partway through the run; this check catches that
// mistake up front during development.
func (p *Parser) checkGenesisStart(hdrs []blockdesc.BlockDescriptor) {
	if !p.debugChecks || len(hdrs) == 0 {
		return
	}
	var zero chainhash.Hash
	if hdrs[0].Header.PrevBlock != zero {
		panic("utxo: WithDebugChecks: first header is not a genesis block (non-zero previous-block hash)")
	}
}

// BuildFilter runs the filter-building pass over hdrs, in blockchain
// order, and returns the resulting filter. A block's remove only ever
// targets an outpoint an earlier block's insert created, so this pass
// runs with engine.WithOrderOutput() the same as Parse does, even
// though AddBlock itself would accept concurrent calls. Run this once
// per block range before Parse; with WithFilterPath set, a saved filter
// covering the range is loaded instead of rebuilt.
func (p *Parser) BuildFilter(ctx context.Context, hdrs []blockdesc.BlockDescriptor) (*ShortOutPointFilter, error) {
	want := p.filterMetaFor(hdrs)
	if p.filterPath != "" {
		if f, err := LoadFilterForRange(p.filterPath, want); err == nil {
			return f, nil
		}
	}

	builder := NewFilterBuilder(p.estimatedUTXOs)
	opts := append([]engine.Option{engine.WithOrderOutput()}, p.engineOpts...)
	par := engine.New(func(b *blockdesc.Block) []*blockdesc.Block { return []*blockdesc.Block{b} }, opts...)

	ch, err := engine.ParseFallible(ctx, par, hdrs, func(b *blockdesc.Block) (struct{}, error) {
		return struct{}{}, builder.AddBlock(b)
	})
	if err != nil {
		return nil, fmt.Errorf("utxo: starting filter pass: %w", err)
	}
	if err := engine.ForEach(ch, func(struct{}) error { return nil }); err != nil {
		return nil, fmt.Errorf("utxo: building filter: %w", err)
	}
	builder.Filter().ShrinkToFit()

	if p.filterPath != "" {
		if err := SaveFilter(p.filterPath, want, builder.Filter()); err != nil {
			return nil, fmt.Errorf("utxo: saving filter: %w", err)
		}
	}
	return builder.Filter(), nil
}

// Parse runs the ordered UTXO pipeline pass over hdrs using filter
// (which may be nil; see Pipeline) and returns a channel of annotated
// blocks in blockchain order. hdrs must start at the genesis block:
// the pipeline's amount map only knows about outputs created within
// the range it is given, so starting partway through the chain makes
// every output already unspent at that point look like a missing
// entry when it's later spent, reported as an ErrInvariant Result.
// Build with WithDebugChecks to turn this precondition into an early
// panic instead.
func (p *Parser) Parse(ctx context.Context, hdrs []blockdesc.BlockDescriptor, filter *ShortOutPointFilter) (<-chan engine.Result[*UtxoBlock], error) {
	p.checkGenesisStart(hdrs)
	pipeline := NewPipeline(filter, int(p.estimatedUTXOs))

	opts := append([]engine.Option{engine.WithBatchSize(1), engine.WithOrderOutput()}, p.engineOpts...)
	par := engine.New(func(b *blockdesc.Block) []*blockdesc.Block { return []*blockdesc.Block{b} }, opts...)

	return engine.ParseFallible(ctx, par, hdrs, pipeline.Block)
}

// ParseDir is Parse over the descriptors found in dir.
func (p *Parser) ParseDir(ctx context.Context, dir string, filter *ShortOutPointFilter) (<-chan engine.Result[*UtxoBlock], error) {
	hdrs, err := discoverHeaders(dir)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, hdrs, filter)
}
