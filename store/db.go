package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"

	"github.com/xdg-go/recjson"
	"github.com/xdg-go/recjson/internal/logging"
)

// Backend names.
const (
	BackendBolt = "bolt"
	BackendMem  = "mem"
)

const classesBucket = "classes"

// Options configure a database.
type Options struct {
	// Backend is BackendBolt, the default, or BackendMem.  The mem backend
	// ignores the path and keeps nothing after Close.
	Backend string
	// Codec encodes records written from now on.  Records already stored
	// keep the codec they were written with.
	Codec CodecID
	// Compression applies to records written from now on.
	Compression Compression
	// Timeout bounds the wait for the bolt file lock.  Zero waits forever.
	Timeout time.Duration
	Logger  *slog.Logger
}

// DB stores records in one bucket per cluster.  Each record is kept under
// its big-endian position; positions come from the bucket's sequence.
// Clusters are numbered per class name, with cluster 0 holding records that
// have no class.
type DB struct {
	st     storage
	opts   Options
	log    *logging.Logger
	closed atomic.Bool
}

// Open opens or creates the database at path.
func Open(path string, opts Options) (*DB, error) {
	if _, ok := opts.Codec.Codec(); !ok {
		return nil, fmt.Errorf("unknown codec %d", opts.Codec)
	}
	if opts.Compression > CompressionLZ4 {
		return nil, fmt.Errorf("unknown compression %d", opts.Compression)
	}
	if opts.Backend == "" {
		opts.Backend = BackendBolt
	}

	var st storage
	switch opts.Backend {
	case BackendBolt:
		bdb, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: opts.Timeout})
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		st = newBoltStorage(bdb)
	case BackendMem:
		st = newMemStorage()
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.Backend)
	}

	db := &DB{
		st:   st,
		opts: opts,
		log:  logging.Wrap(opts.Logger).WithBackend(opts.Backend),
	}
	db.log.Debug("database opened", "path", path, "codec", opts.Codec, "compression", opts.Compression)
	return db, nil
}

// Close releases the database.  Transactions still open fail afterwards.
func (db *DB) Close() error {
	if db.closed.Swap(true) {
		return nil
	}
	return db.st.Close()
}

// Begin starts a unit of work.  Nothing is written to storage before Commit.
func (db *DB) Begin() (*Tx, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	return newTx(db), nil
}

// Update runs fn in a new unit of work and commits it if fn returns nil.
func (db *DB) Update(fn func(tx *Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (db *DB) view(fn func(stx storageTx) error) error {
	if db.closed.Load() {
		return ErrClosed
	}
	stx, err := db.st.BeginTx(false)
	if err != nil {
		return err
	}
	defer stx.Rollback()
	return fn(stx)
}

// Load reads the record stored under rid.  Its links are left unbound.
func (db *DB) Load(rid recjson.RID) (*recjson.Record, error) {
	var rec *recjson.Record
	err := db.view(func(stx storageTx) error {
		var err error
		rec, err = readRecord(stx, rid)
		return err
	})
	return rec, err
}

// Exists reports whether a record is stored under rid.
func (db *DB) Exists(rid recjson.RID) (bool, error) {
	var ok bool
	err := db.view(func(stx storageTx) error {
		ok = recordExists(stx, rid)
		return nil
	})
	return ok, err
}

// Scan calls fn with every record of cluster in position order.  It stops at
// the first error fn returns and returns it.
func (db *DB) Scan(cluster int32, fn func(rec *recjson.Record) error) error {
	return db.view(func(stx storageTx) error {
		b := stx.Bucket(clusterBucket(cluster))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			rid := recjson.RID{Cluster: cluster, Position: int64(binary.BigEndian.Uint64(k))}
			rec, err := decodeRecord(rid, slices.Clone(v))
			if err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of records in cluster.
func (db *DB) Count(cluster int32) (int, error) {
	var n int
	err := db.view(func(stx storageTx) error {
		if b := stx.Bucket(clusterBucket(cluster)); b != nil {
			n = b.KeyCount()
		}
		return nil
	})
	return n, err
}

// Cluster returns the cluster records of class are stored in.  It reports
// false for a class that was never stored.
func (db *DB) Cluster(class string) (int32, bool, error) {
	if class == "" {
		return 0, true, nil
	}
	var cluster int32
	var ok bool
	err := db.view(func(stx storageTx) error {
		if b := stx.Bucket(classesBucket); b != nil {
			if v := b.Get([]byte(class)); len(v) == 4 {
				cluster, ok = int32(binary.BigEndian.Uint32(v)), true
			}
		}
		return nil
	})
	return cluster, ok, err
}

// encode returns the stored value of rec written as version.
func (db *DB) encode(rec *recjson.Record, version int32) ([]byte, error) {
	codec, _ := db.opts.Codec.Codec()
	sr := toStored(rec)
	sr.Version = version
	body, err := codec.Marshal(sr)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", rec.Identity(), err)
	}
	return appendValue(nil, db.opts.Codec, db.opts.Compression, body)
}

func decodeRecord(rid recjson.RID, data []byte) (*recjson.Record, error) {
	id, body, err := decodeValue(data)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", rid, err)
	}
	codec, ok := id.Codec()
	if !ok {
		return nil, fmt.Errorf("record %s: %w", rid, dataErrf(data, 0, nil, "invalid value: unknown codec %d", id))
	}
	var sr storedRecord
	if err := codec.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("record %s: %w", rid, dataErrf(data, len(data)-len(body), err, "invalid %s body", codec.Name()))
	}
	rec, err := fromStored(&sr)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", rid, err)
	}
	rec.SetIdentity(rid)
	return rec, nil
}

func readRecord(stx storageTx, rid recjson.RID) (*recjson.Record, error) {
	if !rid.IsPersistent() {
		return nil, fmt.Errorf("load %s: %w", rid, ErrNotFound)
	}
	b := stx.Bucket(clusterBucket(rid.Cluster))
	if b == nil {
		return nil, fmt.Errorf("load %s: %w", rid, ErrNotFound)
	}
	v := b.Get(positionKey(rid.Position))
	if v == nil {
		return nil, fmt.Errorf("load %s: %w", rid, ErrNotFound)
	}
	return decodeRecord(rid, slices.Clone(v))
}

func recordExists(stx storageTx, rid recjson.RID) bool {
	if !rid.IsPersistent() {
		return false
	}
	b := stx.Bucket(clusterBucket(rid.Cluster))
	return b != nil && b.Get(positionKey(rid.Position)) != nil
}

// classCluster returns the cluster of class, registering the class if it is
// new.
func classCluster(stx storageTx, class string) (int32, error) {
	if class == "" {
		return 0, nil
	}
	b, err := stx.CreateBucket(classesBucket)
	if err != nil {
		return 0, err
	}
	if v := b.Get([]byte(class)); v != nil {
		if len(v) != 4 {
			return 0, dataErrf(v, 0, nil, "invalid cluster id for class %q", class)
		}
		return int32(binary.BigEndian.Uint32(v)), nil
	}
	seq, err := b.NextSequence()
	if err != nil {
		return 0, err
	}
	if seq > 1<<31-1 {
		return 0, errors.New("cluster ids exhausted")
	}
	if err := b.Put([]byte(class), binary.BigEndian.AppendUint32(nil, uint32(seq))); err != nil {
		return 0, err
	}
	return int32(seq), nil
}

// allocate returns a new identity in the cluster of class.
func allocate(stx storageTx, class string) (recjson.RID, error) {
	cluster, err := classCluster(stx, class)
	if err != nil {
		return recjson.NoRID, err
	}
	b, err := stx.CreateBucket(clusterBucket(cluster))
	if err != nil {
		return recjson.NoRID, err
	}
	for {
		seq, err := b.NextSequence()
		if err != nil {
			return recjson.NoRID, err
		}
		pos := int64(seq - 1)
		// Positions written explicitly by callers are skipped.
		if b.Get(positionKey(pos)) == nil {
			return recjson.RID{Cluster: cluster, Position: pos}, nil
		}
	}
}

func clusterBucket(cluster int32) string {
	return "cluster:" + strconv.Itoa(int(cluster))
}

func positionKey(pos int64) []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), uint64(pos))
}
