package store

// storage is a key-value backend holding one bucket per cluster.
type storage interface {
	// BeginTx starts a new transaction.  Only one writable transaction runs
	// at a time; others block until it finishes.
	BeginTx(writable bool) (storageTx, error)
	Close() error
}

type storageTx interface {
	Writable() bool

	// Bucket returns nil if the bucket doesn't exist.
	Bucket(name string) storageBucket

	// CreateBucket creates a bucket if it doesn't exist.
	CreateBucket(name string) (storageBucket, error)

	Commit() error

	// Rollback aborts the transaction.  It is safe to call more than once
	// and after Commit.
	Rollback() error
}

// storageBucket is a sorted key-value collection with its own sequence.
type storageBucket interface {
	// Get returns nil if key is not found.  The slice is only valid for the
	// life of the transaction.
	Get(key []byte) []byte
	Put(key, value []byte) error
	Delete(key []byte) error
	Cursor() storageCursor

	// NextSequence returns the next value of the bucket's sequence, starting
	// at 1.
	NextSequence() (uint64, error)

	KeyCount() int
}

type storageCursor interface {
	First() (key, value []byte)
	Seek(seek []byte) (key, value []byte)
	Next() (key, value []byte)
}
