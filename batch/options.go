package batch

import (
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/notegen/core"
)

// MaxRetriesLimit bounds Options.MaxRetries.
const MaxRetriesLimit = 10

// Options configures one batch run.
type Options struct {
	// GenerateFrontMatter selects the front matter operation.
	GenerateFrontMatter bool

	// GenerateWikilinks selects the wikilink operation.
	GenerateWikilinks bool

	// Operations selects further operation types, run after the two above.
	Operations []core.OperationType

	// ChunkSize is the number of items per chunk.
	// Default: 10
	ChunkSize int

	// ChunkDelay is the pause between chunks.
	// Default: 1s
	ChunkDelay time.Duration

	// MaxRetries is the number of retries after the first failed attempt,
	// at most MaxRetriesLimit.
	// Default: 3
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff between attempts.
	// Default: 500ms
	RetryDelay time.Duration

	// MaxConcurrent bounds the items in flight within a chunk.
	// Default: 3
	MaxConcurrent int

	// Provider and Model select the adapter; empty means the configured default.
	Provider string
	Model    string

	// UserContext is passed to every generator prompt.
	UserContext string

	// Candidates lists existing note titles that link generation may target.
	Candidates []string

	// Progress, if set, receives progress lines every ReportInterval items.
	Progress       io.Writer
	ReportInterval int
}

// DefaultOptions returns Options with front matter and wikilinks enabled.
func DefaultOptions() *Options {
	return &Options{
		GenerateFrontMatter: true,
		GenerateWikilinks:   true,
		ChunkSize:           DefaultChunkSize,
		ChunkDelay:          time.Second,
		MaxRetries:          3,
		RetryDelay:          500 * time.Millisecond,
		MaxConcurrent:       3,
		ReportInterval:      10,
	}
}

// Validate checks that the options are usable.
func (o *Options) Validate() error {
	if len(o.operationTypes()) == 0 {
		return ErrNoOperations
	}
	for _, t := range o.Operations {
		if err := core.ValidateOperationType(t); err != nil {
			return err
		}
		if t == core.OperationBatch {
			return core.ErrNestedBatch
		}
	}
	if o.ChunkSize < 1 {
		return errors.New("batch options: ChunkSize must be at least 1")
	}
	if o.MaxConcurrent < 1 {
		return errors.New("batch options: MaxConcurrent must be at least 1")
	}
	if o.MaxRetries < 0 || o.MaxRetries > MaxRetriesLimit {
		return errors.Newf("batch options: MaxRetries must be between 0 and %d", MaxRetriesLimit)
	}
	if o.ChunkDelay < 0 || o.RetryDelay < 0 {
		return errors.New("batch options: delays cannot be negative")
	}
	return nil
}

// operationTypes returns the selected types without duplicates.
func (o *Options) operationTypes() []core.OperationType {
	var types []core.OperationType
	add := func(t core.OperationType) {
		for _, have := range types {
			if have == t {
				return
			}
		}
		types = append(types, t)
	}
	if o.GenerateFrontMatter {
		add(core.OperationFrontMatter)
	}
	if o.GenerateWikilinks {
		add(core.OperationWikilinks)
	}
	for _, t := range o.Operations {
		add(t)
	}
	return types
}
