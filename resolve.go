package recjson

import (
	"errors"
	"sort"
)

// Resolver is the link resolution table of one unit of work.  It maps
// identities to the record instances loaded, created or saved in the unit of
// work, and holds the links that could not be bound yet.
//
// A Resolver is not safe for concurrent use.
type Resolver struct {
	records map[RID]*Record
	pending map[RID][]LinkRef
	errs    []error
}

// LinkRef is a link together with the field path it was read from.
type LinkRef struct {
	Path string
	Link *Link
}

// NewResolver returns an empty resolution table.
func NewResolver() *Resolver {
	return &Resolver{
		records: make(map[RID]*Record),
		pending: make(map[RID][]LinkRef),
	}
}

// Register adds rec to the table under its current identity and binds any
// pending links to it.  Records without an identity are ignored.
func (r *Resolver) Register(rec *Record) {
	rid := rec.Identity()
	if !rid.IsValid() {
		return
	}
	r.records[rid] = rec
	if refs, ok := r.pending[rid]; ok {
		for _, ref := range refs {
			ref.Link.bind(rec)
		}
		delete(r.pending, rid)
	}
}

// Rekey moves rec from old to its current identity.  It is used when a
// temporary identity is replaced by a persistent one, or back on rollback.
func (r *Resolver) Rekey(old RID, rec *Record) {
	if r.records[old] == rec {
		delete(r.records, old)
	}
	r.Register(rec)
}

// AssignTemp gives rec the temporary identity it keeps until commit and
// returns it.  A persistent identity is left alone, as is a temporary one the
// record already holds when no other record in the table uses it; a document
// may declare such an id with @rid.  Otherwise *counter is advanced until
// TempRID(*counter) is free.
func (r *Resolver) AssignTemp(rec *Record, counter *int64) RID {
	rid := rec.Identity()
	if rid.IsPersistent() {
		return rid
	}
	if rid.IsTemporary() {
		if other, ok := r.records[rid]; !ok || other == rec {
			return rid
		}
	}
	for {
		*counter++
		rid = TempRID(*counter)
		if _, ok := r.records[rid]; !ok {
			break
		}
	}
	rec.SetIdentity(rid)
	return rid
}

// Forget removes rid from the table.
func (r *Resolver) Forget(rid RID) {
	delete(r.records, rid)
}

// Lookup returns the record registered under rid.
func (r *Resolver) Lookup(rid RID) (*Record, bool) {
	rec, ok := r.records[rid]
	return rec, ok
}

// Records returns the number of registered records.
func (r *Resolver) Records() int { return len(r.records) }

// Resolve applies the resolution rules to a link read from path:
//
//   - a link to NoRID records an ErrInvalidLink error;
//   - a link to a registered identity is bound to that record;
//   - any other link stays pending until a record with its identity is
//     registered.
func (r *Resolver) Resolve(l *Link, path string) {
	rid := l.RID()
	if !rid.IsValid() {
		if l.rec == nil {
			r.AddError(&LinkError{Path: path, RID: rid, Err: ErrInvalidLink})
		}
		return
	}
	if l.rec != nil {
		return
	}
	if rec, ok := r.records[rid]; ok {
		l.bind(rec)
		return
	}
	r.pending[rid] = append(r.pending[rid], LinkRef{Path: path, Link: l})
}

// AddError records a link error.  The unit of work fails when it commits.
func (r *Resolver) AddError(err error) {
	r.errs = append(r.errs, err)
}

// Err returns the recorded link errors joined together, or nil.
func (r *Resolver) Err() error {
	return errors.Join(r.errs...)
}

// Pending returns the links still unbound, ordered by identity and path.
// Links to temporary identities among them can never be satisfied; links to
// persistent identities refer to records that were never loaded in this unit
// of work and must be checked against storage.
func (r *Resolver) Pending() []LinkRef {
	var out []LinkRef
	for _, refs := range r.pending {
		for _, ref := range refs {
			if !ref.Link.IsBound() {
				out = append(out, ref)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Link.RID(), out[j].Link.RID()
		if a != b {
			if a.Cluster != b.Cluster {
				return a.Cluster < b.Cluster
			}
			return a.Position < b.Position
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// Reset empties the table.
func (r *Resolver) Reset() {
	r.records = make(map[RID]*Record)
	r.pending = make(map[RID][]LinkRef)
	r.errs = nil
}
