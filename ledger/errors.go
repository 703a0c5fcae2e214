package ledger

import "github.com/poiesic/notegen/core"

const errorSource = "ledger"

// ErrPersistenceFailed indicates the ledger could not be loaded from or saved to its store.
var ErrPersistenceFailed = core.NewKind(errorSource, "persistence_failed")

func persistenceFailed(message string, cause error) error {
	return core.NewError(errorSource, ErrPersistenceFailed.Kind, message, cause)
}

// ErrUpToDate indicates an item needs no processing: its record is current
// or it is inside its cooldown window.
var ErrUpToDate = core.NewKind(errorSource, "up_to_date")
