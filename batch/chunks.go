package batch

import "context"

// DefaultChunkSize is the number of items processed before the inter-chunk delay.
const DefaultChunkSize = 10

// ForEachChunk calls fn with consecutive chunks of items, in order.
// Iteration stops on the first error from fn. Context cancellation is
// checked before every chunk.
func ForEachChunk[T any](ctx context.Context, items []T, size int, fn func(index int, chunk []T) error) error {
	if size <= 0 {
		size = DefaultChunkSize
	}

	for i, n := 0, 0; i < len(items); i, n = i+size, n+1 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := min(i+size, len(items))
		if err := fn(n, items[i:end]); err != nil {
			return err
		}
	}
	return nil
}
