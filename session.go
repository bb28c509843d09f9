package recjson

// Lookup loads records by identity.
type Lookup interface {
	Load(rid RID) (*Record, error)
	Exists(rid RID) (bool, error)
}

// RecordFactory allocates new records.
type RecordFactory interface {
	NewRecord(class string) *Record
}

// UnitOfWork is the transactional scope that new records and the links
// between them are resolved in.
//
// Records read from a link snapshot without an identity are created with
// NewRecord and handed to Attach, which gives them a temporary identity and
// registers them with the Resolver.  Commit assigns persistent identities and
// fails with a *LinkError if any link of the unit of work cannot be
// satisfied.
type UnitOfWork interface {
	RecordFactory
	Resolver() *Resolver
	Attach(rec *Record) RID
	Commit() error
	Rollback() error
}

// TempRID returns the n-th temporary identity, counting from 1.  Temporary
// identities are #-1:-2, #-1:-3 and so on.
func TempRID(n int64) RID {
	return RID{Cluster: -1, Position: -1 - n}
}
