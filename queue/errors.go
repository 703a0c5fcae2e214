package queue

import "github.com/poiesic/notegen/core"

const errorSource = "queue"

var (
	// ErrDuplicate indicates an item with the same key is already queued or running.
	ErrDuplicate = core.NewKind(errorSource, "duplicate")

	// ErrDraining indicates the queue is draining and accepts no new items.
	ErrDraining = core.NewKind(errorSource, "draining")

	// ErrReleased indicates the queue's worker pool has been released.
	ErrReleased = core.NewKind(errorSource, "released")
)
