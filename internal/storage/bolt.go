package storage

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	defaultBoltBucket  = "keyval"
	defaultBoltTimeout = time.Second
)

// BoltConfig configures the bbolt backend.
type BoltConfig struct {
	Path    string        `json:"path" yaml:"path"`
	Bucket  string        `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Workers int           `json:"workers,omitempty" yaml:"workers,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// Nonblocking makes calls fail with a ScheduleError instead of waiting
	// when every worker is busy.
	Nonblocking bool               `json:"nonblocking,omitempty" yaml:"nonblocking,omitempty"`
	Logger      logrus.FieldLogger `json:"-" yaml:"-"`
}

// BoltStore is a Store backed by a bbolt file. bbolt calls block on disk
// I/O and file locks, so every call runs on a worker pool instead of the
// caller's goroutine. It has no notion of expiry; wrap it in a TTLOverlay
// for TTL support.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
	pool   *workerPool
	log    logrus.FieldLogger

	closeOnce sync.Once
	closeErr  error
}

// OpenBoltStore opens or creates the database at cfg.Path.
func OpenBoltStore(cfg *BoltConfig) (*BoltStore, error) {
	conf, err := normalizeBoltConfig(cfg)
	if err != nil {
		return nil, err
	}
	log := conf.Logger.WithField("backend", BackendBolt)

	db, err := bolt.Open(conf.Path, 0o600, &bolt.Options{Timeout: conf.Timeout})
	if err != nil {
		return nil, errors.Wrapf(err, "opening bolt database %s", conf.Path)
	}
	bucket := []byte(conf.Bucket)
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "creating bucket %q", conf.Bucket)
	}

	pool, err := newWorkerPool(BackendBolt, conf.Workers, conf.Nonblocking, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{"path": conf.Path, "bucket": conf.Bucket}).Debug("bolt store opened")
	return &BoltStore{db: db, bucket: bucket, pool: pool, log: log}, nil
}

func normalizeBoltConfig(cfg *BoltConfig) (*BoltConfig, error) {
	if cfg == nil {
		return nil, errors.New("bolt config is required")
	}
	conf := *cfg
	if conf.Path == "" {
		return nil, errors.New("bolt path is required")
	}
	if conf.Bucket == "" {
		conf.Bucket = defaultBoltBucket
	}
	if conf.Workers <= 0 {
		conf.Workers = defaultPoolWorkers
	}
	if conf.Timeout <= 0 {
		conf.Timeout = defaultBoltTimeout
	}
	if conf.Logger == nil {
		conf.Logger = logrus.StandardLogger()
	}
	return &conf, nil
}

// BackendName implements Named.
func (s *BoltStore) BackendName() string { return BackendBolt }

func (s *BoltStore) Insert(ctx context.Context, key, value []byte) error {
	err := s.pool.run(ctx, func() error {
		return s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(s.bucket).Put(key, value)
		})
	})
	return s.MapError("insert", err)
}

func (s *BoltStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	var (
		out   []byte
		found bool
	)
	err := s.pool.run(ctx, func() error {
		return s.db.View(func(tx *bolt.Tx) error {
			k, v := tx.Bucket(s.bucket).Cursor().Seek(key)
			if k == nil || !bytes.Equal(k, key) {
				return nil
			}
			found = true
			// v is only valid for the life of the transaction.
			out = copyBytes(v)
			return nil
		})
	})
	if err != nil {
		return nil, s.MapError("get", err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *BoltStore) Remove(ctx context.Context, key []byte) error {
	err := s.pool.run(ctx, func() error {
		return s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(s.bucket).Delete(key)
		})
	})
	return s.MapError("remove", err)
}

// MapError implements ErrorMapper. Pool rejections stay ScheduleErrors;
// anything bbolt returns becomes a BackendError.
func (s *BoltStore) MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *ScheduleError
	if errors.As(err, &se) || isTaxonomy(err) {
		return err
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return err
	}
	return &BackendError{Backend: BackendBolt, Op: op, Err: errors.Wrap(err, "bolt")}
}

// Path returns the database file path.
func (s *BoltStore) Path() string {
	return s.db.Path()
}

// Close releases the worker pool and closes the database. It is idempotent.
// Calls made after Close fail with a ScheduleError.
func (s *BoltStore) Close() error {
	s.closeOnce.Do(func() {
		if err := s.pool.close(); err != nil {
			s.log.WithError(err).Warn("worker pool did not drain before close")
		}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
