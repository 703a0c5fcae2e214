// Package ledger records which items have been processed, when, and with
// what outcome, so repeat passes over a document set only redo stale or
// failed work.
//
// The ledger keeps its state in memory and persists a JSON snapshot to a
// storage.BlobStore through a coalescing write buffer: a burst of
// MarkProcessed calls inside the debounce window produces a single Save.
// Destroy always flushes the final window.
//
//	l, err := ledger.New(store, ledger.WithCooldown(5*time.Second))
//	if err := l.Initialize(ctx); err != nil { ... }
//	defer l.Destroy(ctx)
//
//	if l.NeedsProcessing(item.ID, item.ModifiedAt) {
//	    l.StartCooldown(item.ID)
//	    // ...
//	    l.MarkProcessed(item.ID, ledger.Result{Succeeded: true, ModifiedAt: item.ModifiedAt})
//	}
package ledger
