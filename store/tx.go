package store

import (
	"errors"
	"fmt"

	"github.com/xdg-go/recjson"
	"github.com/xdg-go/recjson/internal/logging"
)

// Tx is a unit of work over a DB.  It implements recjson.UnitOfWork, so a
// decoder bound to it creates new records in it, and recjson.Lookup, so an
// encoder can expand links to stored records.
//
// Records are only written by Commit.  A Tx is not safe for concurrent use.
type Tx struct {
	db       *DB
	log      *logging.Logger
	res      *recjson.Resolver
	attached []*attachment
	byRec    map[*recjson.Record]*attachment
	deleted  map[recjson.RID]bool
	dropped  map[*recjson.Record]bool
	temps    int64
	done     bool
}

type attachment struct {
	rec *recjson.Record
	// Identity before the record was attached, given back on rollback.
	orig recjson.RID
}

var (
	_ recjson.UnitOfWork = (*Tx)(nil)
	_ recjson.Lookup     = (*Tx)(nil)
	_ recjson.Lookup     = (*DB)(nil)
)

func newTx(db *DB) *Tx {
	return &Tx{
		db:      db,
		log:     db.log,
		res:     recjson.NewResolver(),
		byRec:   make(map[*recjson.Record]*attachment),
		deleted: make(map[recjson.RID]bool),
		dropped: make(map[*recjson.Record]bool),
	}
}

func (tx *Tx) NewRecord(class string) *recjson.Record { return recjson.NewRecord(class) }

func (tx *Tx) Resolver() *recjson.Resolver { return tx.res }

// Attach adds rec to the records written on commit.  A record without a
// persistent identity gets a temporary one, which it keeps until Commit.
func (tx *Tx) Attach(rec *recjson.Record) recjson.RID {
	if _, ok := tx.byRec[rec]; ok {
		return rec.Identity()
	}
	a := &attachment{rec: rec, orig: rec.Identity()}
	tx.res.AssignTemp(rec, &tx.temps)
	tx.attached = append(tx.attached, a)
	tx.byRec[rec] = a
	delete(tx.dropped, rec)
	delete(tx.deleted, rec.Identity())
	tx.res.Register(rec)
	return rec.Identity()
}

// Save marks rec to be written on commit.
func (tx *Tx) Save(rec *recjson.Record) error {
	if tx.done {
		return ErrTxDone
	}
	if rec.Owner() != nil {
		return ErrEmbedded
	}
	tx.Attach(rec)
	return nil
}

// Decode parses a single JSON object into target with links resolved in tx,
// and saves target.
func (tx *Tx) Decode(data []byte, target *recjson.Record) error {
	if tx.done {
		return ErrTxDone
	}
	if err := recjson.UnmarshalWith(data, target, tx); err != nil {
		return err
	}
	return tx.Save(target)
}

// Load returns the record with identity rid.  A record already loaded, saved
// or created in tx is returned as is; otherwise it is read from storage.
func (tx *Tx) Load(rid recjson.RID) (*recjson.Record, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	if tx.deleted[rid] {
		return nil, fmt.Errorf("load %s: %w", rid, ErrNotFound)
	}
	if rec, ok := tx.res.Lookup(rid); ok {
		return rec, nil
	}
	var rec *recjson.Record
	err := tx.db.view(func(stx storageTx) error {
		var err error
		rec, err = readRecord(stx, rid)
		return err
	})
	if err != nil {
		return nil, err
	}
	tx.res.Register(rec)
	return rec, nil
}

// Exists reports whether rid names a record of tx or a stored record.
func (tx *Tx) Exists(rid recjson.RID) (bool, error) {
	if tx.done {
		return false, ErrTxDone
	}
	if tx.deleted[rid] {
		return false, nil
	}
	if _, ok := tx.res.Lookup(rid); ok {
		return true, nil
	}
	return tx.db.Exists(rid)
}

// Delete removes the record with identity rid.  Deleting a record created in
// tx only drops it from tx; a stored record is deleted on commit, which fails
// with ErrNotFound if it no longer exists.  Links to a deleted record fail the
// commit.
func (tx *Tx) Delete(rid recjson.RID) error {
	if tx.done {
		return ErrTxDone
	}
	if rec, ok := tx.res.Lookup(rid); ok {
		if a, ok := tx.byRec[rec]; ok {
			tx.detach(a)
		}
	}
	tx.res.Forget(rid)
	if rid.IsPersistent() {
		tx.deleted[rid] = true
	}
	return nil
}

func (tx *Tx) detach(a *attachment) {
	delete(tx.byRec, a.rec)
	tx.dropped[a.rec] = true
	for i, b := range tx.attached {
		if b == a {
			tx.attached = append(tx.attached[:i], tx.attached[i+1:]...)
			break
		}
	}
	if !a.orig.IsPersistent() {
		a.rec.SetIdentity(a.orig)
	}
}

// Rollback abandons tx.  Records attached to it lose their temporary
// identities.
func (tx *Tx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.restore()
	tx.log.LogRollback(len(tx.attached))
	return nil
}

func (tx *Tx) restore() {
	for _, a := range tx.attached {
		if a.rec.Identity() != a.orig {
			a.rec.SetIdentity(a.orig)
		}
	}
	tx.res.Reset()
}

// Commit writes tx to storage.  It assigns persistent identities to the new
// records, checks that every link can be satisfied, and writes every new or
// changed attached record and every deletion in one storage transaction.
// On any error nothing is written and tx is rolled back.
func (tx *Tx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true

	if err := tx.res.Err(); err != nil {
		tx.log.LogLinkFailure(err)
		tx.restore()
		tx.log.LogRollback(len(tx.attached))
		return err
	}

	written, err := tx.commit()
	tx.log.LogCommit(written, len(tx.deleted), err)
	if err != nil {
		var le *recjson.LinkError
		if errors.As(err, &le) {
			tx.log.LogLinkFailure(err)
		}
		tx.restore()
		tx.log.LogRollback(len(tx.attached))
		return err
	}
	return nil
}

type pendingWrite struct {
	a       *attachment
	version int32
}

func (tx *Tx) commit() (int, error) {
	if tx.db.closed.Load() {
		return 0, ErrClosed
	}
	stx, err := tx.db.st.BeginTx(true)
	if err != nil {
		return 0, err
	}
	defer stx.Rollback()

	tx.attachLinked()

	var writes []pendingWrite
	for _, a := range tx.attached {
		isNew := !a.rec.Identity().IsPersistent()
		if isNew {
			old := a.rec.Identity()
			rid, err := allocate(stx, a.rec.Class())
			if err != nil {
				return 0, fmt.Errorf("assign identity: %w", err)
			}
			a.rec.SetIdentity(rid)
			tx.res.Rekey(old, a.rec)
		}
		if isNew || a.rec.IsDirty() {
			writes = append(writes, pendingWrite{a: a, version: a.rec.Version() + 1})
		}
	}

	if err := tx.verifyLinks(stx, writes); err != nil {
		return 0, err
	}

	for rid := range tx.deleted {
		b := stx.Bucket(clusterBucket(rid.Cluster))
		key := positionKey(rid.Position)
		if b == nil || b.Get(key) == nil {
			return 0, fmt.Errorf("delete %s: %w", rid, ErrNotFound)
		}
		if err := b.Delete(key); err != nil {
			return 0, fmt.Errorf("delete %s: %w", rid, err)
		}
	}

	for _, w := range writes {
		rid := w.a.rec.Identity()
		data, err := tx.db.encode(w.a.rec, w.version)
		if err != nil {
			return 0, err
		}
		b, err := stx.CreateBucket(clusterBucket(rid.Cluster))
		if err != nil {
			return 0, err
		}
		if err := b.Put(positionKey(rid.Position), data); err != nil {
			return 0, fmt.Errorf("write %s: %w", rid, err)
		}
	}

	if err := stx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	for _, w := range writes {
		w.a.rec.SetVersion(w.version)
		w.a.rec.ClearDirty()
	}
	return len(writes), nil
}

// attachLinked attaches the records without identity that attached records
// link to, directly or through other such records.
func (tx *Tx) attachLinked() {
	for i := 0; i < len(tx.attached); i++ {
		for _, ref := range tx.attached[i].rec.Links() {
			if rec := ref.Link.Record(); rec != nil && !rec.Identity().IsPersistent() && !tx.dropped[rec] {
				tx.Attach(rec)
			}
		}
	}
}

// verifyLinks checks the links of the records being written and the links
// the resolver could not bind.  Every target must be a record of tx or a
// stored record that is not being deleted.
func (tx *Tx) verifyLinks(stx storageTx, writes []pendingWrite) error {
	var errs []error
	seen := make(map[*recjson.Link]bool)
	check := func(ref recjson.LinkRef) {
		if seen[ref.Link] {
			return
		}
		seen[ref.Link] = true
		rid := ref.Link.RID()
		if rec := ref.Link.Record(); rec != nil && tx.dropped[rec] {
			errs = append(errs, &recjson.LinkError{Path: ref.Path, RID: rid, Err: recjson.ErrDanglingLink})
			return
		}
		switch {
		case !rid.IsValid():
			errs = append(errs, &recjson.LinkError{Path: ref.Path, RID: rid, Err: recjson.ErrInvalidLink})
		case tx.deleted[rid]:
			errs = append(errs, &recjson.LinkError{Path: ref.Path, RID: rid, Err: recjson.ErrDanglingLink})
		case !rid.IsPersistent():
			errs = append(errs, &recjson.LinkError{Path: ref.Path, RID: rid, Err: recjson.ErrDanglingLink})
		case ref.Link.IsBound():
		default:
			if _, ok := tx.res.Lookup(rid); ok {
				return
			}
			if !recordExists(stx, rid) {
				errs = append(errs, &recjson.LinkError{Path: ref.Path, RID: rid, Err: recjson.ErrDanglingLink})
			}
		}
	}

	for _, ref := range tx.res.Pending() {
		check(ref)
	}
	for _, w := range writes {
		for _, ref := range w.a.rec.Links() {
			check(ref)
		}
	}
	return errors.Join(errs...)
}
