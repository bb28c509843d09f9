package recjson

import (
	"errors"
	"os"
	"strings"
	"testing"
)

// canonicalFormat is the format test outputs are written with.
const canonicalFormat = "class,keepTypes"

type unmarshalTestCase struct {
	label  string
	input  string
	output string
	errStr string
}

func testWithUnmarshal(t *testing.T, cases []unmarshalTestCase, extJSON bool) {
	t.Helper()

	for _, c := range cases {
		c := c
		t.Run(c.label, func(t *testing.T) {
			t.Parallel()

			rec := NewRecord("")
			var err error
			if extJSON {
				err = UnmarshalExtJSON([]byte(c.input), rec)
			} else {
				err = Unmarshal([]byte(c.input), rec)
			}
			if c.errStr != "" {
				var got string
				if err != nil {
					got = err.Error()
				}
				if !strings.Contains(got, c.errStr) {
					t.Errorf("expected error with '%s', but got %v", c.errStr, got)
				}
				if rec.Len() != 0 {
					t.Errorf("failed decode modified the record: %v", rec)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				} else {
					got, err := Marshal(rec, canonicalFormat)
					if err != nil {
						t.Fatalf("error writing result: %v", err)
					}
					if string(got) != c.output {
						t.Fatalf("Unmarshal doesn't match expected:\nGot:    %s\nExpect: %s", got, c.output)
					}
				}
			}
		})
	}
}

func getTestFiles(t *testing.T, dir, prefix, suffix string) []string {
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	keep := make([]string, 0)
	for _, file := range files {
		name := file.Name()
		if prefix != "" {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
		}
		if suffix != "" {
			if !strings.HasSuffix(name, suffix) {
				continue
			}
		}
		keep = append(keep, name)
	}

	return keep
}

func mustSet(t *testing.T, rec *Record, name string, v Value) {
	t.Helper()
	if err := rec.Set(name, v); err != nil {
		t.Fatalf("setting %q: %v", name, err)
	}
}

func mustGet(t *testing.T, rec *Record, name string) Value {
	t.Helper()
	v, ok := rec.Get(name)
	if !ok {
		t.Fatalf("field %q missing from %v", name, rec)
	}
	return v
}

func roundTrip(t *testing.T, rec *Record, format string) *Record {
	t.Helper()
	data, err := Marshal(rec, format)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := NewRecord("")
	if err := Unmarshal(data, got); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return got
}

// testUnit is a unit of work that keeps committed records in memory.
type testUnit struct {
	res      *Resolver
	attached []*Record
	temps    int64
	cluster  int32
	next     int64
	stored   map[RID]*Record
}

func newTestUnit() *testUnit {
	return &testUnit{
		res:     NewResolver(),
		cluster: 9,
		stored:  make(map[RID]*Record),
	}
}

func (u *testUnit) NewRecord(class string) *Record { return NewRecord(class) }

func (u *testUnit) Resolver() *Resolver { return u.res }

func (u *testUnit) Attach(rec *Record) RID {
	for _, a := range u.attached {
		if a == rec {
			return rec.Identity()
		}
	}
	u.res.AssignTemp(rec, &u.temps)
	u.attached = append(u.attached, rec)
	u.res.Register(rec)
	return rec.Identity()
}

func (u *testUnit) Commit() error {
	if err := u.res.Err(); err != nil {
		return err
	}
	for i := 0; i < len(u.attached); i++ {
		for _, ref := range u.attached[i].Links() {
			if rec := ref.Link.Record(); rec != nil && !rec.Identity().IsValid() {
				u.Attach(rec)
			}
		}
	}
	for _, rec := range u.attached {
		if old := rec.Identity(); old.IsTemporary() {
			rec.SetIdentity(RID{Cluster: u.cluster, Position: u.next})
			u.next++
			u.res.Rekey(old, rec)
		}
	}
	var errs []error
	for _, ref := range u.res.Pending() {
		rid := ref.Link.RID()
		if _, ok := u.stored[rid]; ok && rid.IsPersistent() {
			continue
		}
		errs = append(errs, &LinkError{Path: ref.Path, RID: rid, Err: ErrDanglingLink})
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	for _, rec := range u.attached {
		u.stored[rec.Identity()] = rec
	}
	u.attached = nil
	return nil
}

func (u *testUnit) Rollback() error {
	u.attached = nil
	u.res.Reset()
	return nil
}
