// Package store persists feature records: a badger cache that skips
// repeated extraction, and a SQLite sink for finished runs.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/RyanBlaney/sonido-voice/audio"
	"github.com/RyanBlaney/sonido-voice/features"
	"github.com/RyanBlaney/sonido-voice/logging"
)

// CacheOptions configures the record cache.
type CacheOptions struct {
	// Dir holds the badger files. Required unless InMemory is set.
	Dir string
	// InMemory keeps everything in memory.
	InMemory bool
	Logger   logging.Logger
}

// Cache maps extraction keys to records.
type Cache struct {
	db     *badger.DB
	logger logging.Logger
}

// OpenCache opens or creates the cache.
func OpenCache(opts CacheOptions) (*Cache, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("cache directory is required for on-disk mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.WithFields(logging.Fields{"component": "record_cache"})
	}

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return &Cache{db: db, logger: logger}, nil
}

// Get returns the cached record for key. ok is false on a miss.
func (c *Cache) Get(_ context.Context, key string) (rec *features.Record, ok bool, err error) {
	var data []byte
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache read: %w", err)
	}

	rec = &features.Record{}
	if err := msgpack.Unmarshal(data, rec); err != nil {
		return nil, false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return rec, true, nil
}

// Put stores rec under key.
func (c *Cache) Put(_ context.Context, key string, rec *features.Record) error {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Close flushes and closes the cache.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key identifies one extraction: the audio content, the interval and the
// configuration fingerprint. Renaming a file keeps its key.
func Key(path string, iv audio.Interval, fingerprint string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return fmt.Sprintf("rec:%s:%s:%.6f:%.6f", fingerprint, hex.EncodeToString(h.Sum(nil)), iv.Start, iv.End), nil
}

// Fingerprint hashes a configuration dump so that records computed under
// other settings miss the cache.
func Fingerprint(config []byte) string {
	sum := sha256.Sum256(config)
	return hex.EncodeToString(sum[:8])
}

// badgerLogger routes badger's messages to the package logger. Badger is
// chatty at info level, so info goes to debug.
type badgerLogger struct {
	logger logging.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Errorf(format, args...), "badger")
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
