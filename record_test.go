package recjson

import (
	"errors"
	"strings"
	"testing"
)

func TestRecordFields(t *testing.T) {
	rec := NewRecord("Thing")
	if rec.IsDirty() || rec.Len() != 0 {
		t.Fatal("new record should be empty and clean")
	}
	mustSet(t, rec, "a", Int(1))
	mustSet(t, rec, "b", Int(2))
	mustSet(t, rec, "c", Int(3))
	if !rec.IsDirty() {
		t.Error("set should make the record dirty")
	}

	// Replacing keeps the position.
	mustSet(t, rec, "a", String("one"))
	if got := strings.Join(rec.Fields(), ","); got != "a,b,c" {
		t.Errorf("got fields %s", got)
	}
	if mustGet(t, rec, "a").Str() != "one" {
		t.Error("value not replaced")
	}

	if !rec.Delete("b") || rec.Delete("b") {
		t.Error("delete should report whether the field existed")
	}
	if got := strings.Join(rec.Fields(), ","); got != "a,c" {
		t.Errorf("got fields %s", got)
	}
	if mustGet(t, rec, "c").Int() != 3 {
		t.Error("index not updated after delete")
	}

	rec.ClearDirty()
	rec.Clear()
	if rec.Len() != 0 || rec.Has("a") || !rec.IsDirty() {
		t.Errorf("clear left %v", rec)
	}
	if rec.Class() != "Thing" {
		t.Error("clear shouldn't touch the class")
	}
}

func TestRecordIdentity(t *testing.T) {
	rec := NewRecord("")
	if rec.Identity() != NoRID || !rec.IsNew() {
		t.Error("new record should have no identity")
	}

	// The zero RID is a real identity.
	rec.SetIdentity(RID{})
	if rec.Identity() != (RID{}) || rec.IsNew() {
		t.Errorf("got %v", rec.Identity())
	}

	rec.SetIdentity(TempRID(3))
	if !rec.IsNew() || !rec.Identity().IsTemporary() {
		t.Error("temporary identity should count as new")
	}

	rec.SetIdentity(NoRID)
	if rec.Identity() != NoRID {
		t.Error("identity not cleared")
	}
}

func TestRecordEqual(t *testing.T) {
	a := NewRecord("C")
	mustSet(t, a, "x", Int(1))
	mustSet(t, a, "y", String("s"))
	b := NewRecord("C")
	mustSet(t, b, "y", String("s"))
	mustSet(t, b, "x", Int(1))
	b.SetIdentity(RID{Cluster: 1, Position: 1})
	b.SetVersion(5)

	if !a.Equal(b) {
		t.Error("field order, identity and version shouldn't matter")
	}
	b.SetClass("D")
	if a.Equal(b) {
		t.Error("class should matter")
	}
	b.SetClass("C")
	mustSet(t, b, "x", Long(1))
	if a.Equal(b) {
		t.Error("kind should matter")
	}
}

func TestEmbeddedOwnership(t *testing.T) {
	parent := NewRecord("")
	child := NewRecord("Child")

	mustSet(t, parent, "a", Embedded(child))
	if child.Owner() != parent {
		t.Fatal("embedded record should be owned by its field")
	}
	// Writing the same field again is fine.
	mustSet(t, parent, "a", Embedded(child))

	err := parent.Set("b", Embedded(child))
	if !errors.Is(err, ErrAliasedEmbedded) {
		t.Errorf("expected ErrAliasedEmbedded, got %v", err)
	}
	if parent.Has("b") {
		t.Error("failed set shouldn't add the field")
	}

	other := NewRecord("")
	if err := other.Set("x", List(Embedded(child))); !errors.Is(err, ErrAliasedEmbedded) {
		t.Errorf("expected ErrAliasedEmbedded inside a list, got %v", err)
	}

	// Once released, the record can move.
	parent.Delete("a")
	if child.Owner() != nil {
		t.Error("delete should release the embedded record")
	}
	mustSet(t, other, "x", List(Embedded(child)))
	if child.Owner() != other {
		t.Error("embedded record in list not owned")
	}

	// Replacing the value releases the old one.
	mustSet(t, other, "x", Null())
	if child.Owner() != nil {
		t.Error("replacing should release the embedded record")
	}
}

func TestEmbeddedCycles(t *testing.T) {
	rec := NewRecord("")
	if err := rec.Set("self", Embedded(rec)); !errors.Is(err, ErrAliasedEmbedded) {
		t.Errorf("expected error embedding a record in itself, got %v", err)
	}

	outer := NewRecord("")
	inner := NewRecord("")
	mustSet(t, outer, "inner", Embedded(inner))
	if err := inner.Set("outer", Embedded(outer)); !errors.Is(err, ErrAliasedEmbedded) {
		t.Errorf("expected error embedding an enclosing record, got %v", err)
	}

	twice := NewRecord("")
	if err := rec.Set("l", List(Embedded(twice), Embedded(twice))); !errors.Is(err, ErrAliasedEmbedded) {
		t.Errorf("expected error embedding a record twice, got %v", err)
	}

	// Links are not ownership: a record may link to itself.
	mustSet(t, rec, "me", LinkToRecord(rec))
}

func TestRecordLinks(t *testing.T) {
	addr := NewRecord("")
	mustSet(t, addr, "owner", LinkTo(RID{Cluster: 1, Position: 1}))

	rec := NewRecord("")
	mustSet(t, rec, "friend", LinkTo(RID{Cluster: 2, Position: 1}))
	mustSet(t, rec, "addr", Embedded(addr))
	mustSet(t, rec, "list", List(Int(1), LinkTo(RID{Cluster: 2, Position: 2})))
	mustSet(t, rec, "map", Map(MapEntry{Key: "k", Value: LinkTo(RID{Cluster: 2, Position: 3})}))
	mustSet(t, rec, "bag", LinkBagOf(RID{Cluster: 2, Position: 4}))

	var paths []string
	for _, ref := range rec.Links() {
		paths = append(paths, ref.Path+"="+ref.Link.RID().String())
	}
	expect := "friend=#2:1 addr.owner=#1:1 list[1]=#2:2 map.k=#2:3 bag[0]=#2:4"
	if got := strings.Join(paths, " "); got != expect {
		t.Errorf("got %s\nexpected %s", got, expect)
	}
}

func TestDecodedEmbeddedIsClean(t *testing.T) {
	rec := NewRecord("")
	if err := Unmarshal([]byte(`{"e":{"@type":"d","x":1}}`), rec); err != nil {
		t.Fatal(err)
	}
	e := mustGet(t, rec, "e").Record()
	if e.IsDirty() {
		t.Error("embedded record read from JSON should be clean")
	}
	if e.Owner() != rec {
		t.Error("embedded record should be owned by the decoded record")
	}
}
