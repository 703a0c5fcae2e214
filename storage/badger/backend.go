package badger

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// gcDiscardRatio is the fraction of a value log file that must be stale
// before GC rewrites it.
const gcDiscardRatio = 0.5

// Backend owns a BadgerDB instance. Stores built on it share the database.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger

	stopGC chan struct{}
	gcDone chan struct{}
	once   sync.Once
}

// BackendOption configures OpenBackend.
type BackendOption func(*backendOptions)

type backendOptions struct {
	logger     *slog.Logger
	gcInterval time.Duration
	syncWrites bool
}

// WithLogger routes badger's own log output through logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) BackendOption {
	return func(o *backendOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithValueLogGC runs value log garbage collection every interval until the
// backend is closed. Zero disables it.
func WithValueLogGC(interval time.Duration) BackendOption {
	return func(o *backendOptions) { o.gcInterval = interval }
}

// WithSyncWrites makes every commit wait for fsync.
func WithSyncWrites(sync bool) BackendOption {
	return func(o *backendOptions) { o.syncWrites = sync }
}

// slogAdapter satisfies badger.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = slogAdapter{}

func (a slogAdapter) Errorf(msg string, items ...any)   { a.logger.Error(fmt.Sprintf(msg, items...)) }
func (a slogAdapter) Warningf(msg string, items ...any) { a.logger.Warn(fmt.Sprintf(msg, items...)) }
func (a slogAdapter) Infof(msg string, items ...any)    { a.logger.Debug(fmt.Sprintf(msg, items...)) }
func (a slogAdapter) Debugf(msg string, items ...any)   { a.logger.Debug(fmt.Sprintf(msg, items...)) }

// OpenBackend opens the database in dir, creating the directory if needed.
// An empty dir opens an in-memory database.
func OpenBackend(dir string, opts ...BackendOption) (*Backend, error) {
	o := &backendOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger.With("component", "badger")

	var bopts badger.Options
	if dir == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
		o.gcInterval = 0
	} else {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
		bopts = badger.DefaultOptions(dir).WithSyncWrites(o.syncWrites)
	}
	bopts.Logger = slogAdapter{logger: logger}
	bopts.Compression = options.None

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, errors.Wrap(err, "open badger")
	}

	b := &Backend{db: db, logger: logger}
	if o.gcInterval > 0 {
		b.stopGC = make(chan struct{})
		b.gcDone = make(chan struct{})
		go b.runGC(o.gcInterval)
	}
	return b, nil
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "stat %s", dir)
	}
	if !info.IsDir() {
		return errors.Newf("%s is not a directory", dir)
	}
	return nil
}

func (b *Backend) runGC(interval time.Duration) {
	defer close(b.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopGC:
			return
		case <-ticker.C:
			// one call rewrites at most one file; repeat until nothing is left
			for b.db.RunValueLogGC(gcDiscardRatio) == nil {
			}
		}
	}
}

// Close stops GC and closes the database. It is safe to call more than once.
func (b *Backend) Close() error {
	var err error
	b.once.Do(func() {
		if b.stopGC != nil {
			close(b.stopGC)
			<-b.gcDone
		}
		err = b.db.Close()
	})
	return err
}

// IsClosed reports whether the database has been closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// View runs fn in a read-only transaction.
func (b *Backend) View(fn func(tx *badger.Txn) error) error {
	return b.db.View(fn)
}

// Update runs fn in a read-write transaction and commits it if fn succeeds.
func (b *Backend) Update(fn func(tx *badger.Txn) error) error {
	return b.db.Update(fn)
}
