// Package scan drives a worker pool that evaluates documents against a
// compiled query group: URL-scope filtering, content extraction,
// fused pattern scanning, threshold evaluation, and response building.
package scan

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ieql/engine/internal/common/textextract"
	"github.com/ieql/engine/internal/metrics"
	"github.com/ieql/engine/pkg/fusion"
	"github.com/ieql/engine/pkg/ieql"
	"github.com/ieql/engine/pkg/response"
	"github.com/ieql/engine/pkg/threshold"
)

// Config holds the options a Driver is constructed with: the group
// construction options plus worker-pool sizing.
type Config struct {
	WorkerCount              int
	InputQueueCapacity       int
	OutputQueueCapacity      int
	ExcerptWindowBytes       int
	AllowPartialTextFallback bool

	// DocumentTimeout bounds how long a single document may occupy a
	// worker. Zero means unbounded.
	DocumentTimeout time.Duration
}

// Driver is a running worker pool scanning documents against an
// immutable, worker-shared fusion.CompiledQueryGroup. It is modeled on
// the fixed-size acquire/release pool idiom, simplified to a
// channel-fed worker pool since scan workers have no per-instance
// identity to hand back to callers.
type Driver struct {
	group     *fusion.CompiledQueryGroup
	extractor textextract.Extractor
	config    Config
	logger    *zap.Logger
	metrics   *metrics.ScanMetrics

	input  chan ieql.Document
	output chan ieql.Response

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Driver. It does not start workers; call Start.
func New(group *fusion.CompiledQueryGroup, config Config, m *metrics.ScanMetrics, logger *zap.Logger) *Driver {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Driver{
		group:     group,
		extractor: textextract.HTMLExtractor{},
		config:    config,
		logger:    logger,
		metrics:   m,
		input:     make(chan ieql.Document, config.InputQueueCapacity),
		output:    make(chan ieql.Response, config.OutputQueueCapacity),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the worker pool.
func (d *Driver) Start() {
	for i := 0; i < d.config.WorkerCount; i++ {
		d.wg.Add(1)
		go d.runWorker(i)
	}
	d.logger.Info("scan driver started", zap.Int("workers", d.config.WorkerCount))
}

// Submit enqueues a document for scanning. It blocks until the input
// queue has room or the driver is shut down, in which case it returns
// ieql.ErrScanAborted.
func (d *Driver) Submit(doc ieql.Document) (err error) {
	// Shutdown closes the input queue; a send on it after, or blocked
	// during, Shutdown panics, which is reported as an abort.
	defer func() {
		if recover() != nil {
			err = ieql.ErrScanAborted
		}
	}()
	select {
	case d.input <- doc:
		if d.metrics != nil {
			d.metrics.SetQueueDepth("input", len(d.input))
		}
		return nil
	case <-d.ctx.Done():
		return ieql.ErrScanAborted
	}
}

// Results returns the channel responses are published on. Callers
// should drain it concurrently with submitting documents to avoid
// deadlocking a bounded output queue.
func (d *Driver) Results() <-chan ieql.Response {
	return d.output
}

// Shutdown stops accepting new documents, waits for in-flight
// documents to finish (bounded by ctx), and closes the results
// channel. It is safe to call exactly once.
func (d *Driver) Shutdown(ctx context.Context) error {
	close(d.input)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		d.cancel()
		<-done
	}

	close(d.output)
	d.logger.Info("scan driver stopped")
	return ctx.Err()
}

func (d *Driver) runWorker(id int) {
	defer d.wg.Done()

	scratch, err := d.group.NewScratch()
	if err != nil {
		d.logger.Error("failed to allocate worker scratch", zap.Int("worker", id), zap.Error(err))
		return
	}
	defer scratch.Close()

	for doc := range d.input {
		select {
		case <-d.ctx.Done():
			return
		default:
		}

		start := time.Now()
		responses, extractionFailed, err, strayDone := d.evaluateBounded(doc, scratch)
		if strayDone != nil {
			// The scan is still running in the background and still
			// owns scratch; this worker must not touch it again until
			// the straggler returns, so it switches to a fresh one and
			// leaves the old one to be closed once that happens.
			stale := scratch
			d.logger.Error("document scan exceeded timeout, retiring worker scratch",
				zap.Int("worker", id), zap.String("url", doc.URL))
			fresh, allocErr := d.group.NewScratch()
			if allocErr != nil {
				d.logger.Error("failed to allocate replacement worker scratch", zap.Int("worker", id), zap.Error(allocErr))
				return
			}
			scratch = fresh
			go func() {
				<-strayDone
				stale.Close()
			}()
		}
		if d.metrics != nil {
			d.metrics.RecordScanDuration(time.Since(start).Seconds())
		}
		if err != nil {
			d.logger.Warn("document scan failed", zap.String("url", doc.URL), zap.Error(err))
			if d.metrics != nil {
				d.metrics.RecordDocumentScanned(metrics.OutcomeScanFailed)
			}
			continue
		}

		outcome := metrics.OutcomeNoMatch
		switch {
		case len(responses) > 0:
			outcome = metrics.OutcomeMatched
		case extractionFailed:
			outcome = metrics.OutcomeExtractionFailed
		}
		if d.metrics != nil {
			d.metrics.RecordDocumentScanned(outcome)
		}

		for _, r := range responses {
			select {
			case d.output <- r:
				if d.metrics != nil {
					d.metrics.RecordResponseEmitted(r.QueryID)
					d.metrics.SetQueueDepth("output", len(d.output))
				}
			case <-d.ctx.Done():
				return
			}
		}
	}
}

// evaluateBounded runs evaluate, optionally giving up on waiting past
// DocumentTimeout. Hyperscan's Scan has no cancellation hook, so a
// document that is still running past the deadline is abandoned, not
// interrupted: on timeout evaluateBounded returns immediately with
// ErrScanAborted and a non-nil strayDone channel that the caller must
// wait on before reusing scratch, since the abandoned goroutine still
// owns it until it finishes.
func (d *Driver) evaluateBounded(doc ieql.Document, scratch *fusion.Scratch) ([]ieql.Response, bool, error, <-chan struct{}) {
	if d.config.DocumentTimeout <= 0 {
		responses, extractionFailed, err := d.evaluate(doc, scratch)
		return responses, extractionFailed, err, nil
	}

	type result struct {
		responses        []ieql.Response
		extractionFailed bool
		err              error
	}
	results := make(chan result, 1)
	done := make(chan struct{})
	go func() {
		responses, extractionFailed, err := d.evaluate(doc, scratch)
		results <- result{responses, extractionFailed, err}
		close(done)
	}()

	select {
	case r := <-results:
		return r.responses, r.extractionFailed, r.err, nil
	case <-time.After(d.config.DocumentTimeout):
		return nil, false, ieql.ErrScanAborted, done
	}
}

// evaluate runs one document through every content-kind bucket of the
// compiled group and returns the responses for every query that
// matched.
func (d *Driver) evaluate(doc ieql.Document, scratch *fusion.Scratch) ([]ieql.Response, bool, error) {
	var extractedText string
	var textExtracted bool
	var extractionFailed bool

	var responses []ieql.Response

	for kind, bucket := range d.group.Buckets {
		passing, err := bucket.ScopeMatches([]byte(doc.URL), scratch)
		if err != nil {
			return nil, false, err
		}
		if len(passing) == 0 {
			continue
		}

		content, ok := d.contentFor(doc, kind, &extractedText, &textExtracted)
		if !ok {
			extractionFailed = true
			d.logger.Warn("skipping content kind: text extraction unavailable and partial fallback disabled",
				zap.String("url", doc.URL), zap.String("content_kind", kind.String()))
			continue
		}

		fired, spans, err := bucket.Fired(content, passing, scratch)
		if err != nil {
			return nil, false, err
		}

		for _, qIdx := range passing {
			cq := bucket.Queries[qIdx]
			bits, ok := fired[qIdx]
			if !ok {
				continue
			}

			matched, witness := cq.Threshold.Eval(bits, bucket.TriggerCounts[qIdx])
			if !matched {
				continue
			}

			excerptSpan := firstWitnessSpan(witness, bucket.TriggerCounts[qIdx], spans[qIdx])
			windowBytes := d.config.ExcerptWindowBytes
			responses = append(responses, response.Build(doc, cq.Query.Response, cq.Query.ID, excerptSpan, content, windowBytes))
		}
	}

	return responses, extractionFailed, nil
}

// contentFor resolves the bytes a bucket's content kind should be
// scanned against, extracting text at most once per document and
// caching the result across buckets.
func (d *Driver) contentFor(doc ieql.Document, kind ieql.ContentKind, extractedText *string, textExtracted *bool) ([]byte, bool) {
	if kind == ieql.Raw {
		return doc.Content, true
	}

	if !*textExtracted {
		text, ok := d.extractor.Extract(doc.Content)
		if !ok {
			if !d.config.AllowPartialTextFallback {
				return nil, false
			}
			text = string(doc.Content)
		}
		*extractedText = text
		*textExtracted = true
	}
	return []byte(*extractedText), true
}

// firstWitnessSpan picks the lowest-indexed witness trigger's recorded
// span and converts it to a response.Span, or returns nil if no witness
// trigger has a recorded span (e.g. the witness set is empty).
func firstWitnessSpan(witness threshold.Bitset, n int, spans map[int]fusion.Span) *response.Span {
	indices := witness.Indices(make([]int, 0, n))
	for _, i := range indices {
		if sp, ok := spans[i]; ok {
			return &response.Span{Start: sp.Start, End: sp.End}
		}
	}
	return nil
}
