package fusion

import (
	"fmt"

	"github.com/flier/gohs/hyperscan"

	"github.com/ieql/engine/pkg/ieql"
	"github.com/ieql/engine/pkg/threshold"
)

// patternOrigin is one entry of the reverse table G: the global pattern
// index assigned during Build maps back to the query that owns it and
// that query's dense local trigger index.
type patternOrigin struct {
	queryIndex int
	localIndex int
}

// Bucket is a CompiledQueryGroup's scanner for one ContentKind: a single
// fused hyperscan database over every trigger pattern of every query
// routed to this content kind, plus a second fused database over the
// same queries' URL-scope patterns, so a document's scope pass is one
// scan rather than N.
type Bucket struct {
	Kind ieql.ContentKind

	Queries       []CompilingQuery
	TriggerCounts []int

	triggerDB hyperscan.BlockDatabase
	origins   []patternOrigin

	scopeDB hyperscan.BlockDatabase
}

// CompiledQueryGroup is the immutable, worker-shared scan plan produced
// by Build. It holds at most one Bucket per ContentKind actually used
// by the input queries.
type CompiledQueryGroup struct {
	Buckets map[ieql.ContentKind]*Bucket
}

// Build partitions compiled queries by their scope content kind and
// constructs one fused automaton per kind. Failure aborts the whole
// group: no partially-usable group is ever returned.
func Build(queries []CompilingQuery) (*CompiledQueryGroup, error) {
	if err := checkGroupCompatible(queries); err != nil {
		return nil, err
	}

	byKind := make(map[ieql.ContentKind][]CompilingQuery)
	for _, q := range queries {
		kind := q.Query.Scope.Content
		byKind[kind] = append(byKind[kind], q)
	}

	group := &CompiledQueryGroup{Buckets: make(map[ieql.ContentKind]*Bucket, len(byKind))}
	for kind, bucketQueries := range byKind {
		bucket, err := buildBucket(kind, bucketQueries)
		if err != nil {
			group.Close()
			return nil, err
		}
		group.Buckets[kind] = bucket
	}
	return group, nil
}

// checkGroupCompatible rejects a set of queries that cannot be merged
// into one CompiledQueryGroup: two distinct queries sharing the same
// non-empty id would make the reverse pattern-index table and emitted
// responses ambiguous about which query a hit belongs to.
func checkGroupCompatible(queries []CompilingQuery) error {
	seen := make(map[string]struct{}, len(queries))
	for _, q := range queries {
		id := q.Query.ID
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			return &ieql.IncompatibleGroupError{
				Reason: fmt.Sprintf("duplicate query id %q across the group", id),
			}
		}
		seen[id] = struct{}{}
	}
	return nil
}

func buildBucket(kind ieql.ContentKind, queries []CompilingQuery) (*Bucket, error) {
	var triggerPatterns []*hyperscan.Pattern
	var origins []patternOrigin
	triggerCounts := make([]int, len(queries))

	for qIdx, cq := range queries {
		wantsExcerpt := cq.Query.Response.Wants(ieql.IncludeExcerpt)
		triggerCounts[qIdx] = len(cq.Query.Triggers)

		for localIdx, t := range cq.Query.Triggers {
			flags := hyperscan.Utf8Mode
			if wantsExcerpt {
				flags |= hyperscan.SomLeftMost
			}
			p := hyperscan.NewPattern(t.Pattern.HyperscanExpression(), flags)
			p.Id = len(triggerPatterns)
			triggerPatterns = append(triggerPatterns, p)
			origins = append(origins, patternOrigin{queryIndex: qIdx, localIndex: localIdx})
		}
	}

	triggerDB, err := buildBlockDatabase(triggerPatterns, func(qIdx, localIdx int) (string, string) {
		return queries[qIdx].Query.ID, queries[qIdx].TriggerIDs[localIdx]
	}, origins)
	if err != nil {
		return nil, err
	}

	scopePatterns := make([]*hyperscan.Pattern, len(queries))
	for qIdx, cq := range queries {
		p := hyperscan.NewPattern(cq.Query.Scope.Pattern.HyperscanExpression(), hyperscan.Utf8Mode|hyperscan.AllowEmpty|hyperscan.SingleMatch)
		p.Id = qIdx
		scopePatterns[qIdx] = p
	}
	scopeDB, err := buildBlockDatabase(scopePatterns, func(qIdx, _ int) (string, string) {
		return queries[qIdx].Query.ID, "scope"
	}, nil)
	if err != nil {
		if triggerDB != nil {
			triggerDB.Close()
		}
		return nil, err
	}

	return &Bucket{
		Kind:          kind,
		Queries:       queries,
		TriggerCounts: triggerCounts,
		triggerDB:     triggerDB,
		origins:       origins,
		scopeDB:       scopeDB,
	}, nil
}

// buildBlockDatabase compiles patterns into a hyperscan.BlockDatabase.
// describe resolves a pattern's (queryIndex, localIndex) to a
// human-readable (query id, trigger id) pair for error reporting;
// origins is nil when patterns are one-per-query (the scope database).
// A nil database is returned for an empty pattern set, since hyperscan
// cannot compile zero expressions; callers treat nil as "nothing ever
// fires".
func buildBlockDatabase(patterns []*hyperscan.Pattern, describe func(queryIndex, localIndex int) (string, string), origins []patternOrigin) (hyperscan.BlockDatabase, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	builder := &hyperscan.DatabaseBuilder{
		Patterns: patterns,
		Mode:     hyperscan.BlockMode,
		Platform: hyperscan.PopulatePlatform(),
	}
	db, err := builder.Build()
	if err != nil {
		offender := findOffendingPattern(patterns)
		qIdx, localIdx := patterns[offender].Id, 0
		if origins != nil {
			qIdx, localIdx = origins[offender].queryIndex, origins[offender].localIndex
		}
		queryID, triggerID := describe(qIdx, localIdx)
		return nil, &ieql.InvalidPatternError{
			Where:   "query:" + queryID + " trigger:" + triggerID,
			Content: string(patterns[offender].Expression),
			Cause:   err,
		}
	}
	return db.(hyperscan.BlockDatabase), nil
}

// findOffendingPattern recompiles each pattern alone to identify which
// one a failed multi-pattern build choked on. Falls back to the first
// pattern if every one compiles in isolation (the failure was a
// whole-set condition, e.g. resource limits).
func findOffendingPattern(patterns []*hyperscan.Pattern) int {
	for i, p := range patterns {
		db, err := hyperscan.NewBlockDatabase(p)
		if err != nil {
			return i
		}
		db.Close()
	}
	return 0
}

// Close releases the hyperscan databases held by every bucket. It is
// safe to call on a partially-built group; it must be called only once.
func (g *CompiledQueryGroup) Close() {
	if g == nil {
		return
	}
	for _, b := range g.Buckets {
		if b.triggerDB != nil {
			b.triggerDB.Close()
		}
		if b.scopeDB != nil {
			b.scopeDB.Close()
		}
	}
}

// Scratch is worker-local hyperscan scratch space, one trigger and one
// scope scratch buffer per bucket. It holds no fired-bitsets; Fired
// allocates those on each call. It must not be shared across
// goroutines; each worker owns one.
type Scratch struct {
	triggerScratch map[ieql.ContentKind]*hyperscan.Scratch
	scopeScratch   map[ieql.ContentKind]*hyperscan.Scratch
}

// NewScratch allocates scratch space sized for every bucket in the
// group.
func (g *CompiledQueryGroup) NewScratch() (*Scratch, error) {
	s := &Scratch{
		triggerScratch: make(map[ieql.ContentKind]*hyperscan.Scratch, len(g.Buckets)),
		scopeScratch:   make(map[ieql.ContentKind]*hyperscan.Scratch, len(g.Buckets)),
	}
	for kind, b := range g.Buckets {
		if b.triggerDB != nil {
			ts, err := hyperscan.NewScratch(b.triggerDB)
			if err != nil {
				return nil, fmt.Errorf("fusion: allocating trigger scratch: %w", err)
			}
			s.triggerScratch[kind] = ts
		}
		ss, err := hyperscan.NewScratch(b.scopeDB)
		if err != nil {
			return nil, fmt.Errorf("fusion: allocating scope scratch: %w", err)
		}
		s.scopeScratch[kind] = ss
	}
	return s, nil
}

// Close frees the underlying hyperscan scratch buffers.
func (s *Scratch) Close() {
	for _, sc := range s.triggerScratch {
		sc.Free()
	}
	for _, sc := range s.scopeScratch {
		sc.Free()
	}
}

// ScopeMatches scans url against the bucket's fused scope database and
// returns the set of query indices (positions in Bucket.Queries) whose
// scope pattern matched.
func (b *Bucket) ScopeMatches(url []byte, scratch *Scratch) ([]int, error) {
	var matched []int
	err := b.scopeDB.Scan(url, scratch.scopeScratch[b.Kind], func(id uint, from, to uint64, flags uint, context interface{}) error {
		matched = append(matched, int(id))
		return nil
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("fusion: scope scan: %w", err)
	}
	return matched, nil
}

// Span is a byte range within the scanned content, used to carry a
// trigger's leftmost match location through to excerpt building.
type Span struct {
	Start, End int
}

// Fired scans content against the bucket's fused trigger database and
// returns, per query index present in passing, a Bitset over that
// query's local trigger indices plus the leftmost match span recorded
// for each fired trigger (only meaningful for queries whose response
// requested an Excerpt; for others Start is always 0 and End is the
// first match's end offset). Only query indices
// listed in passing get an entry; callers pass the scope-matched set
// from ScopeMatches.
func (b *Bucket) Fired(content []byte, passing []int, scratch *Scratch) (map[int]threshold.Bitset, map[int]map[int]Span, error) {
	fired := make(map[int]threshold.Bitset, len(passing))
	spans := make(map[int]map[int]Span, len(passing))
	allow := make(map[int]struct{}, len(passing))
	for _, qIdx := range passing {
		allow[qIdx] = struct{}{}
		fired[qIdx] = threshold.NewBitset(b.TriggerCounts[qIdx])
		spans[qIdx] = make(map[int]Span)
	}

	if b.triggerDB == nil {
		return fired, spans, nil
	}

	err := b.triggerDB.Scan(content, scratch.triggerScratch[b.Kind], func(id uint, from, to uint64, flags uint, context interface{}) error {
		origin := b.origins[int(id)]
		if _, ok := allow[origin.queryIndex]; !ok {
			return nil
		}
		bs := fired[origin.queryIndex]
		firstFire := !bs.Get(origin.localIndex)
		bs.Set(origin.localIndex)
		fired[origin.queryIndex] = bs
		if firstFire {
			spans[origin.queryIndex][origin.localIndex] = Span{Start: int(from), End: int(to)}
		}
		return nil
	}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("fusion: trigger scan: %w", err)
	}
	return fired, spans, nil
}
