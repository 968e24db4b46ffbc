package pebble

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pebbledb "github.com/cockroachdb/pebble"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/cluster"
	"github.com/xraph/conveyor/cron"
	"github.com/xraph/conveyor/dlq"
	"github.com/xraph/conveyor/event"
	"github.com/xraph/conveyor/job"
)

// Interface compliance checks.
var (
	_ conveyor.Storer = (*Store)(nil)
	_ job.Store       = (*Store)(nil)
	_ cron.Store      = (*Store)(nil)
	_ dlq.Store       = (*Store)(nil)
	_ event.Store     = (*Store)(nil)
	_ cluster.Store   = (*Store)(nil)
)

// defaultSyncInterval enables group commit: Pebble coalesces WAL syncs
// for writes landing within the window.
const defaultSyncInterval = 5 * time.Millisecond

// Store implements all persistence contracts on an embedded Pebble
// database. A single mutex serializes mutations; the database is owned
// by one process, so this also makes every operation atomic with
// respect to the others.
type Store struct {
	db     *pebbledb.DB
	logger *slog.Logger

	mu  sync.Mutex
	seq uint64

	// readyCh is closed and replaced whenever a job may have become
	// ready. WaitReady callers select on the current channel.
	readyCh chan struct{}
}

// Option configures the store.
type Option func(*config)

type config struct {
	logger       *slog.Logger
	syncInterval time.Duration
	pebbleOpts   *pebbledb.Options
}

// WithLogger sets the logger used for internal warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithSyncInterval sets the WAL group-commit window. Zero forces a sync
// on every commit.
func WithSyncInterval(d time.Duration) Option {
	return func(c *config) { c.syncInterval = d }
}

// WithPebbleOptions passes tuned Pebble options through. Sync behavior
// from WithSyncInterval still applies on top.
func WithPebbleOptions(opts *pebbledb.Options) Option {
	return func(c *config) { c.pebbleOpts = opts }
}

// Open creates or opens a Pebble-backed store at the given directory.
func Open(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("conveyor/pebble: data directory is required")
	}

	cfg := config{
		logger:       slog.Default(),
		syncInterval: defaultSyncInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	po := cfg.pebbleOpts
	if po == nil {
		po = &pebbledb.Options{}
	}
	if cfg.syncInterval > 0 {
		interval := cfg.syncInterval
		po.WALMinSyncInterval = func() time.Duration { return interval }
	}

	db, err := pebbledb.Open(dir, po)
	if err != nil {
		return nil, fmt.Errorf("conveyor/pebble: open %s: %w", dir, err)
	}

	s := &Store{
		db:      db,
		logger:  cfg.logger,
		readyCh: make(chan struct{}),
	}

	// Restore the sequence counter so restarts keep FIFO order intact.
	if raw, getErr := s.get([]byte(metaSeqKey)); getErr == nil && len(raw) >= 8 {
		s.seq = binary.BigEndian.Uint64(raw[:8])
	}

	return s, nil
}

// Migrate is a no-op: the key layout needs no setup.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the database is open and readable.
func (s *Store) Ping(_ context.Context) error {
	_, err := s.get([]byte(metaSeqKey))
	if err != nil && !errors.Is(err, pebbledb.ErrNotFound) {
		return fmt.Errorf("conveyor/pebble: ping: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying Pebble database for maintenance tooling.
func (s *Store) DB() *pebbledb.DB { return s.db }

// notifyReady wakes all WaitReady callers. Must be called with s.mu held.
func (s *Store) notifyReady() {
	close(s.readyCh)
	s.readyCh = make(chan struct{})
}

// nextSeq reserves the next sequence number and records it in the batch.
// Must be called with s.mu held.
func (s *Store) nextSeq(b *pebbledb.Batch) uint64 {
	s.seq++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], s.seq)
	_ = b.Set([]byte(metaSeqKey), buf[:], nil) //nolint:errcheck // batch writes only fail on commit
	return s.seq
}

// commit applies the batch. With a sync interval configured the WAL
// write is async and Pebble groups the syncs.
func (s *Store) commit(b *pebbledb.Batch) error {
	defer func() { _ = b.Close() }()
	return b.Commit(pebbledb.NoSync)
}

// get copies the value for key out of the database.
func (s *Store) get(key []byte) ([]byte, error) {
	val, closer, err := s.db.Get(key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closer.Close() }()
	return append([]byte(nil), val...), nil
}

// getJSON loads and decodes a JSON record. Returns notFound when the
// key is absent.
func (s *Store) getJSON(key []byte, out interface{}, notFound error) error {
	raw, err := s.get(key)
	if err != nil {
		if errors.Is(err, pebbledb.ErrNotFound) {
			return notFound
		}
		return fmt.Errorf("conveyor/pebble: get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("conveyor/pebble: decode %s: %w", key, err)
	}
	return nil
}

// setJSON encodes a record into the batch.
func setJSON(b *pebbledb.Batch, key []byte, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("conveyor/pebble: encode %s: %w", key, err)
	}
	if err := b.Set(key, raw, nil); err != nil {
		return fmt.Errorf("conveyor/pebble: set %s: %w", key, err)
	}
	return nil
}

// decodeJSON decodes a record from an iterator value, which is only
// valid until the iterator advances.
func decodeJSON(raw []byte, out interface{}) error {
	return json.Unmarshal(raw, out)
}

func binaryUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// prefixIter opens an iterator bounded to the given prefix.
func (s *Store) prefixIter(prefix []byte) (*pebbledb.Iterator, error) {
	iter, err := s.db.NewIter(&pebbledb.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("conveyor/pebble: iterator: %w", err)
	}
	return iter, nil
}
