package batch

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is not positive.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrRunInProgress is returned when Run is called while another run is active.
	ErrRunInProgress = errors.New("a batch run is already in progress")

	// ErrNoOperations is returned when the options select no operation.
	ErrNoOperations = errors.New("no operations selected")

	// errPermanent marks errors RetryWithBackoff must not retry.
	errPermanent = errors.New("permanent failure")
)

// Permanent marks err so RetryWithBackoff returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, errPermanent)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, errPermanent)
}
