package contactcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/yndnr/gatemesh-go/internal/core/domain"
)

const (
	// DefaultMaxAge is how long a stored contact stays usable.
	DefaultMaxAge = 24 * time.Hour
	// DefaultGCInterval is the value log GC period.
	DefaultGCInterval = 10 * time.Minute

	gcDiscardRatio = 0.5
)

var contactPrefix = []byte("contact/")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("contact cache closed")

// Config configures a Cache.
type Config struct {
	// Dir is the Badger directory. Required.
	Dir        string
	MaxAge     time.Duration
	GCInterval time.Duration
	// InMemory keeps the database in memory; Dir is ignored.
	InMemory bool
	Logger   *slog.Logger
}

// Cache is a Badger-backed session.ContactCache.
type Cache struct {
	db     *badger.DB
	cfg    Config
	logger *slog.Logger

	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Open opens or creates the cache.
func Open(cfg Config) (*Cache, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, domain.ErrInvalidConfiguration.WithDetails("contact-cache-dir is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = DefaultGCInterval
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: cfg.Logger}
	// The set is a handful of small keys. The memtable keeps badger's
	// default: a smaller one caps the batch size below ValueThreshold and
	// Open rejects the options.
	opts.NumVersionsToKeep = 1
	opts.ValueLogFileSize = 16 << 20

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	c := &Cache{
		db:     db,
		cfg:    cfg,
		logger: cfg.Logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go c.gcLoop()

	c.logger.Debug("contact cache opened", "dir", cfg.Dir, "max_age", cfg.MaxAge)
	return c, nil
}

// Load returns the stored contacts that have not expired, sorted.
func (c *Cache) Load(ctx context.Context) ([]domain.EndpointID, error) {
	if c.closed() {
		return nil, ErrClosed
	}
	var out []domain.EndpointID
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = contactPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().Key()
			out = append(out, domain.EndpointID(key[len(contactPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Store replaces the stored contact set.
func (c *Cache) Store(ctx context.Context, contacts []domain.EndpointID) error {
	if c.closed() {
		return ErrClosed
	}
	keep := make(map[string]struct{}, len(contacts))
	for _, addr := range contacts {
		if addr != "" {
			keep[string(addr)] = struct{}{}
		}
	}

	err := c.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = contactPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if _, ok := keep[string(key[len(contactPrefix):])]; !ok {
				stale = append(stale, key)
			}
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		seen := []byte(time.Now().UTC().Format(time.RFC3339))
		for addr := range keep {
			if err := ctx.Err(); err != nil {
				return err
			}
			e := badger.NewEntry(contactKey(domain.EndpointID(addr)), seen).WithTTL(c.cfg.MaxAge)
			if err := txn.SetEntry(e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store contacts: %w", err)
	}
	return nil
}

// Close stops the GC loop and closes the database. It is safe to call more
// than once.
func (c *Cache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stopCh)
		<-c.doneCh
		if cerr := c.db.Close(); cerr != nil {
			err = fmt.Errorf("close db: %w", cerr)
		}
	})
	return err
}

func (c *Cache) closed() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Cache) gcLoop() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.cfg.InMemory {
				continue
			}
			for {
				if err := c.db.RunValueLogGC(gcDiscardRatio); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						c.logger.Warn("contact cache gc failed", "error", err)
					}
					break
				}
			}
		case <-c.stopCh:
			return
		}
	}
}

func contactKey(addr domain.EndpointID) []byte {
	return append(append([]byte{}, contactPrefix...), addr...)
}

// badgerLogger adapts slog.Logger to Badger's Logger interface. Badger's
// info chatter is demoted to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
