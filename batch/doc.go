// Package batch runs AI operations over many items.
//
// A Processor walks the input in fixed-size chunks. Within a chunk, items
// are dispatched to a bounded worker queue; the next chunk starts only
// after every item of the current one has finished and the configured
// delay has elapsed. Items the ledger reports as up to date are skipped,
// and failed items are retried with exponential backoff before being
// recorded as errors.
//
// Basic usage:
//
//	p, err := batch.NewProcessor(manager, ledger, vault, batch.WithResultSink(vault))
//	if err != nil {
//	    return err
//	}
//	result, err := p.Run(ctx, items, batch.DefaultOptions())
//
// Stop (or cancelling ctx) ends a run after its current chunk. Operations
// already dispatched run to completion.
package batch
