package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/notegen/core"
	"github.com/poiesic/notegen/storage"
)

const snapshotVersion = 1

// Result describes the outcome of one processing attempt.
type Result struct {
	Succeeded      bool
	ProcessingTime time.Duration
	// ModifiedAt is the item's modification time at processing. Zero means now.
	ModifiedAt  time.Time
	ResultKinds []core.OperationType
	Err         error
}

// Summary is derived from the stats history on every read.
type Summary struct {
	TotalProcessed     int       `json:"totalProcessed"`
	TotalErrors        int       `json:"totalErrors"`
	TotalSkipped       int       `json:"totalSkipped"`
	AverageTimeMs      float64   `json:"averageTimeMs"`
	SuccessRatePercent float64   `json:"successRatePercent"`
	LastProcessedAt    time.Time `json:"lastProcessedAt"`
	Runs               int       `json:"runs"`
	Records            int       `json:"records"`
}

// snapshot is the persisted shape. Unknown fields are ignored on load and
// missing fields take their zero value.
type snapshot struct {
	Version int                                  `json:"version"`
	Records map[string]*core.ProcessedItemRecord `json:"records"`
	Stats   []core.ProcessingStatsSample         `json:"stats"`
}

// Ledger is the durable record of which items were processed, when, and
// with what outcome. It is the only writer of its blob in the store.
type Ledger struct {
	store   storage.BlobStore
	opts    *Options
	flusher *flusher
	logger  *slog.Logger

	mu        sync.RWMutex
	records   map[string]*core.ProcessedItemRecord
	stats     []core.ProcessingStatsSample
	cooldowns map[string]time.Time
}

// New creates a ledger persisting to store. Call Initialize to load the
// previous snapshot.
func New(store storage.BlobStore, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("ledger: store is required")
	}
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}

	l := &Ledger{
		store:     store,
		opts:      o,
		logger:    slog.Default().With("component", "ledger"),
		records:   make(map[string]*core.ProcessedItemRecord),
		cooldowns: make(map[string]time.Time),
	}
	l.flusher = newFlusher(o.Debounce, o.MaxDebounce, l.persist, l.logger)
	return l, nil
}

// Initialize loads the persisted snapshot. A missing snapshot is a fresh
// install, not an error.
func (l *Ledger) Initialize(ctx context.Context) error {
	data, err := l.store.Load(ctx, l.opts.Key)
	if errors.Is(err, storage.ErrNotFound) {
		l.logger.Info("no ledger snapshot found, starting empty")
		return nil
	}
	if err != nil {
		return persistenceFailed("load snapshot", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return persistenceFailed("decode snapshot", err)
	}

	l.mu.Lock()
	for id, rec := range snap.Records {
		if rec == nil {
			continue
		}
		if rec.ItemID == "" {
			rec.ItemID = id
		}
		l.records[id] = rec
	}
	l.stats = snap.Stats
	if over := len(l.stats) - l.opts.MaxHistory; over > 0 {
		l.stats = slices.Clone(l.stats[over:])
	}
	count := len(l.records)
	l.mu.Unlock()

	l.logger.Info("ledger loaded", "records", count, "stats", len(snap.Stats), "version", snap.Version)
	l.PruneIfNeeded()
	return nil
}

// Destroy flushes any unsaved changes and stops the write timer.
func (l *Ledger) Destroy(ctx context.Context) error {
	l.flusher.stop()
	return l.Flush(ctx)
}

// Flush writes unsaved changes immediately.
func (l *Ledger) Flush(ctx context.Context) error {
	return l.flusher.flush(ctx)
}

// Dirty reports whether changes are waiting to be written.
func (l *Ledger) Dirty() bool {
	return l.flusher.pending()
}

func (l *Ledger) persist(ctx context.Context) error {
	l.mu.RLock()
	data, err := json.Marshal(snapshot{
		Version: snapshotVersion,
		Records: l.records,
		Stats:   l.stats,
	})
	l.mu.RUnlock()
	if err != nil {
		return persistenceFailed("encode snapshot", err)
	}
	if err := l.store.Save(ctx, l.opts.Key, data); err != nil {
		return persistenceFailed("save snapshot", err)
	}
	l.logger.Debug("ledger saved", "bytes", len(data))
	return nil
}

// StartCooldown suppresses NeedsProcessing for id for the cooldown window.
func (l *Ledger) StartCooldown(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cooldowns[id] = l.opts.Clock()
}

// InCooldown reports whether id is inside an active cooldown window.
func (l *Ledger) InCooldown(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inCooldownLocked(id, l.opts.Clock())
}

func (l *Ledger) inCooldownLocked(id string, now time.Time) bool {
	started, ok := l.cooldowns[id]
	if !ok {
		return false
	}
	if now.Sub(started) < l.opts.Cooldown {
		return true
	}
	delete(l.cooldowns, id)
	return false
}

// NeedsProcessing reports whether id should be processed given its current
// modification time. Items in cooldown never need processing; otherwise an
// item needs processing when it has no record, was modified after its last
// recorded modification, or carries an unresolved error.
func (l *Ledger) NeedsProcessing(id string, modifiedAt time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inCooldownLocked(id, l.opts.Clock()) {
		return false
	}
	rec, ok := l.records[id]
	switch {
	case !ok:
		return true
	case rec.HasError():
		return true
	default:
		return modifiedAt.After(rec.LastModifiedAt)
	}
}

// MarkProcessed upserts the record for id and schedules a debounced save.
// RetryCount increments only when an existing record is updated. A new
// record that takes the ledger past PruneThreshold triggers a prune.
func (l *Ledger) MarkProcessed(id string, result Result) {
	now := l.opts.Clock()
	modifiedAt := result.ModifiedAt
	if modifiedAt.IsZero() {
		modifiedAt = now
	}

	l.mu.Lock()
	rec, exists := l.records[id]
	if !exists {
		rec = &core.ProcessedItemRecord{ItemID: id}
		l.records[id] = rec
	} else {
		rec.RetryCount++
	}
	rec.LastProcessedAt = now
	rec.LastModifiedAt = modifiedAt
	rec.ProcessingTimeMs = result.ProcessingTime.Milliseconds()
	if result.Succeeded {
		rec.LastError = ""
		rec.ResultKinds = mergeKinds(rec.ResultKinds, result.ResultKinds)
	} else {
		rec.LastError = "processing failed"
		if result.Err != nil {
			rec.LastError = result.Err.Error()
		}
	}
	l.mu.Unlock()

	if !exists {
		l.PruneIfNeeded()
	}
	l.flusher.schedule()
}

// Reset forgets id so it is processed again on the next pass.
func (l *Ledger) Reset(id string) bool {
	l.mu.Lock()
	_, ok := l.records[id]
	delete(l.records, id)
	delete(l.cooldowns, id)
	l.mu.Unlock()

	if ok {
		l.flusher.schedule()
	}
	return ok
}

// Record returns a copy of the record for id.
func (l *Ledger) Record(id string) (core.ProcessedItemRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[id]
	if !ok {
		return core.ProcessedItemRecord{}, false
	}
	return copyRecord(rec), true
}

// Records returns copies of all records ordered by item ID.
func (l *Ledger) Records() []core.ProcessedItemRecord {
	l.mu.RLock()
	out := make([]core.ProcessedItemRecord, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, copyRecord(rec))
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

// RecordStatsSample appends sample to the ring buffer, evicting the oldest
// entries beyond MaxHistory.
func (l *Ledger) RecordStatsSample(sample core.ProcessingStatsSample) {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = l.opts.Clock()
	}

	l.mu.Lock()
	l.stats = append(l.stats, sample)
	if over := len(l.stats) - l.opts.MaxHistory; over > 0 {
		l.stats = slices.Clone(l.stats[over:])
	}
	l.mu.Unlock()

	l.flusher.schedule()
}

// Stats returns a copy of the stats history, oldest first.
func (l *Ledger) Stats() []core.ProcessingStatsSample {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.stats)
}

// PruneIfNeeded drops error-free records older than the retention window
// once the ledger holds more than PruneThreshold records. Records carrying
// an error are always kept. Returns the number of records removed.
func (l *Ledger) PruneIfNeeded() int {
	l.mu.Lock()
	if len(l.records) <= l.opts.PruneThreshold {
		l.mu.Unlock()
		return 0
	}
	cutoff := l.opts.Clock().Add(-l.opts.Retention)
	removed := 0
	for id, rec := range l.records {
		if rec.HasError() {
			continue
		}
		if rec.LastProcessedAt.Before(cutoff) {
			delete(l.records, id)
			removed++
		}
	}
	remaining := len(l.records)
	l.mu.Unlock()

	if removed > 0 {
		l.logger.Info("pruned ledger", "removed", removed, "remaining", remaining)
		l.flusher.schedule()
	}
	return removed
}

// Summary aggregates the stats history. An empty history reports a 100%
// success rate and zero counts.
func (l *Ledger) Summary() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Summary{Runs: len(l.stats), Records: len(l.records), SuccessRatePercent: 100}
	var weightedMs float64
	var attempts int
	for _, sample := range l.stats {
		s.TotalProcessed += sample.ProcessedItems
		s.TotalErrors += sample.ErrorItems
		s.TotalSkipped += sample.SkippedItems
		n := sample.ProcessedItems + sample.ErrorItems
		weightedMs += sample.AverageProcessingTimeMs * float64(n)
		attempts += n

		last := sample.FinishedAt
		if last.IsZero() {
			last = sample.Timestamp
		}
		if last.After(s.LastProcessedAt) {
			s.LastProcessedAt = last
		}
	}
	if attempts > 0 {
		s.AverageTimeMs = weightedMs / float64(attempts)
		s.SuccessRatePercent = float64(s.TotalProcessed) / float64(attempts) * 100
	}
	return s
}

func copyRecord(rec *core.ProcessedItemRecord) core.ProcessedItemRecord {
	c := *rec
	c.ResultKinds = slices.Clone(rec.ResultKinds)
	return c
}

// mergeKinds returns the sorted union of existing and added.
func mergeKinds(existing, added []core.OperationType) []core.OperationType {
	out := slices.Clone(existing)
	for _, k := range added {
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}
