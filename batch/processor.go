package batch

import (
	"context"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/notegen/core"
	"github.com/poiesic/notegen/ledger"
	"github.com/poiesic/notegen/operation"
	"github.com/poiesic/notegen/queue"
)

// Executor runs one operation request. *operation.Manager satisfies it.
type Executor interface {
	Execute(ctx context.Context, req core.OperationRequest, opts ...operation.ExecuteOption) (*operation.Result, error)
}

// Ledger is the subset of *ledger.Ledger the processor needs.
type Ledger interface {
	NeedsProcessing(id string, modifiedAt time.Time) bool
	StartCooldown(id string)
	MarkProcessed(id string, result ledger.Result)
	RecordStatsSample(sample core.ProcessingStatsSample)
}

// DocumentReader loads the content of an item.
type DocumentReader interface {
	ReadItem(ctx context.Context, id string) (string, error)
}

// ResultSink applies a successful result to the item, typically by writing
// the document. It returns the item's new modification time, or the zero
// time when the item was not modified.
type ResultSink interface {
	Apply(ctx context.Context, item core.ItemRef, result *operation.Result) (time.Time, error)
}

// ItemError describes an item that ended in error.
type ItemError struct {
	ItemID   string `json:"itemId"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}

// Result is the aggregate outcome of a run. Processed + Errors + Skipped
// always equals the number of input items.
type Result struct {
	Processed  int                        `json:"processed"`
	Errors     int                        `json:"errors"`
	Skipped    int                        `json:"skipped"`
	ItemErrors []ItemError                `json:"itemErrors,omitempty"`
	Cancelled  bool                       `json:"cancelled"`
	Duration   time.Duration              `json:"duration"`
	Sample     core.ProcessingStatsSample `json:"sample"`
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithResultSink applies successful results through sink.
func WithResultSink(sink ResultSink) ProcessorOption {
	return func(p *Processor) { p.sink = sink }
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger.With("component", "batch")
		}
	}
}

// Processor runs operations over a set of items in chunks, skipping items
// the ledger reports as up to date and retrying failed items with backoff.
// One run is active at a time.
type Processor struct {
	exec   Executor
	ledger Ledger
	reader DocumentReader
	sink   ResultSink
	logger *slog.Logger

	runMu   sync.Mutex
	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// NewProcessor creates a batch processor.
func NewProcessor(exec Executor, l Ledger, reader DocumentReader, opts ...ProcessorOption) (*Processor, error) {
	if exec == nil || l == nil || reader == nil {
		return nil, errors.New("batch processor: executor, ledger and reader are required")
	}
	p := &Processor{
		exec:   exec,
		ledger: l,
		reader: reader,
		logger: slog.Default().With("component", "batch"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Initialize satisfies the service lifecycle.
func (p *Processor) Initialize(ctx context.Context) error {
	return nil
}

// Destroy stops an active run after its current chunk and waits for it.
func (p *Processor) Destroy(ctx context.Context) error {
	p.Stop()
	done := make(chan struct{})
	go func() {
		p.runMu.Lock()
		p.runMu.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a run is active.
func (p *Processor) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stop asks the active run to stop after its current chunk. Operations
// already dispatched run to completion. It is a no-op when idle.
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running && p.stop != nil {
		select {
		case <-p.stop:
		default:
			close(p.stop)
		}
	}
}

// Run processes items. It returns an error only when the run cannot start;
// item failures are reported in the Result. Cancelling ctx behaves like Stop.
func (p *Processor) Run(ctx context.Context, items []core.ItemRef, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, ErrRunInProgress
	}
	p.running = true
	p.stop = make(chan struct{})
	stop := p.stop
	p.mu.Unlock()

	p.runMu.Lock()
	defer func() {
		p.runMu.Unlock()
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	r := &run{
		p:       p,
		opts:    opts,
		types:   opts.operationTypes(),
		started: time.Now(),
		opCtx:   context.WithoutCancel(ctx),
	}
	if opts.Progress != nil {
		r.progress = NewProgressTracker(opts.Progress, len(items), opts.ReportInterval)
		r.progress.Start()
	}

	q, err := queue.New(
		func(item core.ItemRef) string { return item.ID },
		func(_ context.Context, item core.ItemRef) error { return r.process(item) },
		opts.MaxConcurrent,
		queue.WithLogger(p.logger),
	)
	if err != nil {
		return nil, err
	}
	defer q.Release()

	p.logger.Info("batch started", "items", len(items), "operations", r.types, "chunkSize", opts.ChunkSize)

	visited := 0
	err = ForEachChunk(ctx, items, opts.ChunkSize, func(index int, chunk []core.ItemRef) error {
		if index > 0 {
			if !r.pause(ctx, stop) {
				return errStopped
			}
		}
		if stopped(stop) {
			return errStopped
		}
		for _, item := range chunk {
			if err := q.Enqueue(item); err != nil {
				p.logger.Warn("item not enqueued", "item", item.ID, "err", err)
				r.skip(1)
			}
		}
		visited += len(chunk)
		// chunk barrier: in-flight operations always finish
		return q.Wait(context.Background())
	})
	if err != nil {
		r.mu.Lock()
		r.result.Cancelled = true
		r.mu.Unlock()
		r.skip(len(items) - visited)
		p.logger.Info("batch stopped", "visited", visited, "remaining", len(items)-visited)
	}

	return r.finish(len(items)), nil
}

// ProcessItem runs the selected operations for a single item with the same
// retry, sink and ledger handling as Run. Unlike Run it does not consult the
// ledger first; the caller decides whether the item is due. It may be called
// while a run is active.
func (p *Processor) ProcessItem(ctx context.Context, item core.ItemRef, opts *Options) error {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	r := &run{
		p:       p,
		opts:    opts,
		types:   opts.operationTypes(),
		started: time.Now(),
		opCtx:   ctx,
	}
	return r.handle(item)
}

var errStopped = errors.New("batch stopped")

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// run holds the state of one Processor.Run call.
type run struct {
	p        *Processor
	opts     *Options
	types    []core.OperationType
	started  time.Time
	opCtx    context.Context
	progress *ProgressTracker

	mu      sync.Mutex
	result  Result
	totalMs float64
}

// pause waits out the inter-chunk delay. It returns false when the run was
// stopped or ctx ended while waiting.
func (r *run) pause(ctx context.Context, stop <-chan struct{}) bool {
	if r.opts.ChunkDelay <= 0 {
		return ctx.Err() == nil && !stopped(stop)
	}
	timer := time.NewTimer(r.opts.ChunkDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	}
}

func (r *run) process(item core.ItemRef) error {
	if !r.p.ledger.NeedsProcessing(item.ID, item.ModifiedAt) {
		r.skip(1)
		return nil
	}
	r.p.ledger.StartCooldown(item.ID)
	return r.handle(item)
}

// handle executes, applies and records one item.
func (r *run) handle(item core.ItemRef) error {
	ctx := r.opCtx
	started := time.Now()
	res, attempts, err := r.execute(ctx, item)
	modifiedAt := item.ModifiedAt
	if err == nil && r.p.sink != nil {
		var written time.Time
		written, err = r.p.sink.Apply(ctx, item, res)
		if err != nil {
			err = errors.Wrap(err, "apply result")
		} else if written.After(modifiedAt) {
			modifiedAt = written
		}
	}
	elapsed := time.Since(started)

	outcome := ledger.Result{
		Succeeded:      err == nil,
		ProcessingTime: elapsed,
		ModifiedAt:     modifiedAt,
		Err:            err,
	}
	if res != nil {
		outcome.ResultKinds = res.Kinds()
	}
	r.p.ledger.MarkProcessed(item.ID, outcome)

	r.mu.Lock()
	r.totalMs += float64(elapsed) / float64(time.Millisecond)
	if err != nil {
		r.result.Errors++
		r.result.ItemErrors = append(r.result.ItemErrors, ItemError{ItemID: item.ID, Error: err.Error(), Attempts: attempts})
	} else {
		r.result.Processed++
	}
	r.mu.Unlock()

	if r.progress != nil {
		if err != nil {
			r.progress.Failed()
		} else {
			r.progress.Processed()
		}
	}
	return err
}

// execute reads the item and runs its request, retrying failed attempts.
func (r *run) execute(ctx context.Context, item core.ItemRef) (*operation.Result, int, error) {
	content, err := r.p.reader.ReadItem(ctx, item.ID)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "read %s", item.ID)
	}
	req := r.request(item, content)

	var res *operation.Result
	var lastStatus string
	attempts := 0
	err = RetryWithBackoff(ctx, func(attempt int) error {
		attempts = attempt
		var execOpts []operation.ExecuteOption
		if lastStatus != "" {
			execOpts = append(execOpts, operation.RetryOf(lastStatus))
		}
		var err error
		res, err = r.p.exec.Execute(ctx, req, execOpts...)
		if res != nil {
			lastStatus = res.Status.ID
		}
		if errors.Is(err, operation.ErrInvalidInput) || errors.Is(err, operation.ErrAdapterUnavailable) {
			return Permanent(err)
		}
		return err
	}, r.opts.MaxRetries+1, r.opts.RetryDelay)
	return res, attempts, err
}

func (r *run) request(item core.ItemRef, content string) core.OperationRequest {
	req := core.OperationRequest{
		TargetID:    item.ID,
		Provider:    r.opts.Provider,
		ModelName:   r.opts.Model,
		UserContext: r.opts.UserContext,
		Payload: map[string]string{
			core.PayloadContent: content,
			core.PayloadTitle:   TitleFromID(item.ID),
		},
	}
	if r.opts.Candidates != nil {
		req.Payload[core.PayloadCandidates] = strings.Join(r.opts.Candidates, "\n")
	}
	if len(r.types) == 1 {
		req.Type = r.types[0]
	} else {
		req.Type = core.OperationBatch
		req.Operations = append([]core.OperationType(nil), r.types...)
	}
	return req
}

func (r *run) skip(n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	r.result.Skipped += n
	r.mu.Unlock()
	if r.progress != nil {
		r.progress.Skipped(n)
	}
}

func (r *run) finish(total int) *Result {
	finished := time.Now()

	r.mu.Lock()
	result := r.result
	result.ItemErrors = slices.Clone(r.result.ItemErrors)
	attempted := result.Processed + result.Errors
	avg := 0.0
	if attempted > 0 {
		avg = r.totalMs / float64(attempted)
	}
	r.mu.Unlock()

	slices.SortFunc(result.ItemErrors, func(a, b ItemError) int { return strings.Compare(a.ItemID, b.ItemID) })
	result.Duration = finished.Sub(r.started)
	result.Sample = core.ProcessingStatsSample{
		TotalItems:              total,
		ProcessedItems:          result.Processed,
		ErrorItems:              result.Errors,
		SkippedItems:            result.Skipped,
		StartedAt:               r.started,
		FinishedAt:              finished,
		AverageProcessingTimeMs: avg,
		Timestamp:               finished,
	}
	r.p.ledger.RecordStatsSample(result.Sample)

	if r.progress != nil {
		r.progress.Finish()
	}
	r.p.logger.Info("batch finished",
		"processed", result.Processed,
		"errors", result.Errors,
		"skipped", result.Skipped,
		"cancelled", result.Cancelled,
		"elapsed", result.Duration)
	return &result
}

// TitleFromID derives a note title from its path: the base name without
// extension.
func TitleFromID(id string) string {
	base := path.Base(id)
	return strings.TrimSuffix(base, path.Ext(base))
}
