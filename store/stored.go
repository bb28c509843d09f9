package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/xdg-go/recjson"
)

// storedRecord is the body of a stored value.  Its shape is shared by every
// codec; the record's own identity is the storage key and is not repeated.
type storedRecord struct {
	Class   string        `bson:"c,omitempty" msgpack:"c,omitempty"`
	Version int32         `bson:"v,omitempty" msgpack:"v,omitempty"`
	Fields  []storedField `bson:"f,omitempty" msgpack:"f,omitempty"`
}

type storedField struct {
	Name  string      `bson:"n" msgpack:"n"`
	Value storedValue `bson:"v" msgpack:"v"`
}

// storedValue holds one recjson.Value.  Num carries the bits of every
// numeric kind, the epoch milliseconds of dates and the position of a link.
type storedValue struct {
	Kind    uint8         `bson:"k" msgpack:"k"`
	Num     int64         `bson:"n,omitempty" msgpack:"n,omitempty"`
	Cluster int32         `bson:"c,omitempty" msgpack:"c,omitempty"`
	Str     string        `bson:"s,omitempty" msgpack:"s,omitempty"`
	Bin     []byte        `bson:"b,omitempty" msgpack:"b,omitempty"`
	Rec     *storedRecord `bson:"r,omitempty" msgpack:"r,omitempty"`
	Keys    []string      `bson:"ks,omitempty" msgpack:"ks,omitempty"`
	Items   []storedValue `bson:"i,omitempty" msgpack:"i,omitempty"`
}

func toStored(rec *recjson.Record) *storedRecord {
	sr := &storedRecord{Class: rec.Class(), Version: rec.Version()}
	for _, name := range rec.Fields() {
		v, _ := rec.Get(name)
		sr.Fields = append(sr.Fields, storedField{Name: name, Value: toStoredValue(v)})
	}
	return sr
}

func toStoredValue(v recjson.Value) storedValue {
	sv := storedValue{Kind: uint8(v.Kind())}
	switch v.Kind() {
	case recjson.KindBool:
		if v.Bool() {
			sv.Num = 1
		}
	case recjson.KindShort, recjson.KindInt, recjson.KindLong, recjson.KindByte:
		sv.Num, _ = v.AsInt64()
	case recjson.KindFloat:
		sv.Num = int64(math.Float32bits(v.Float()))
	case recjson.KindDouble:
		sv.Num = int64(math.Float64bits(v.Double()))
	case recjson.KindBinary:
		sv.Bin = v.Binary()
	case recjson.KindString:
		sv.Str = v.Str()
	case recjson.KindDecimal:
		hi, lo := v.Decimal().GetBytes()
		sv.Bin = binary.BigEndian.AppendUint64(binary.BigEndian.AppendUint64(nil, hi), lo)
	case recjson.KindDate, recjson.KindDateTime:
		sv.Num = v.Millis()
	case recjson.KindLink:
		rid := v.Link().RID()
		sv.Cluster, sv.Num = rid.Cluster, rid.Position
	case recjson.KindEmbedded:
		sv.Rec = toStored(v.Record())
	case recjson.KindMap:
		sv.Keys = append([]string(nil), v.Keys()...)
		fallthrough
	case recjson.KindList, recjson.KindSet, recjson.KindLinkBag:
		for _, item := range v.Items() {
			sv.Items = append(sv.Items, toStoredValue(item))
		}
	}
	return sv
}

// fromStored rebuilds a clean record from its stored form.
func fromStored(sr *storedRecord) (*recjson.Record, error) {
	rec := recjson.NewRecord(sr.Class)
	rec.SetVersion(sr.Version)
	for _, f := range sr.Fields {
		v, err := fromStoredValue(&f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		if err := rec.Set(f.Name, v); err != nil {
			return nil, err
		}
	}
	rec.ClearDirty()
	return rec, nil
}

func fromStoredValue(sv *storedValue) (recjson.Value, error) {
	switch recjson.Kind(sv.Kind) {
	case recjson.KindNull:
		return recjson.Null(), nil
	case recjson.KindBool:
		return recjson.Bool(sv.Num != 0), nil
	case recjson.KindShort:
		return recjson.Short(int16(sv.Num)), nil
	case recjson.KindInt:
		return recjson.Int(int32(sv.Num)), nil
	case recjson.KindLong:
		return recjson.Long(sv.Num), nil
	case recjson.KindFloat:
		return recjson.Float(math.Float32frombits(uint32(sv.Num))), nil
	case recjson.KindDouble:
		return recjson.Double(math.Float64frombits(uint64(sv.Num))), nil
	case recjson.KindByte:
		return recjson.Byte(byte(sv.Num)), nil
	case recjson.KindBinary:
		return recjson.Binary(sv.Bin), nil
	case recjson.KindString:
		return recjson.String(sv.Str), nil
	case recjson.KindDecimal:
		if len(sv.Bin) != 16 {
			return recjson.Value{}, fmt.Errorf("decimal of %d bytes", len(sv.Bin))
		}
		hi, lo := binary.BigEndian.Uint64(sv.Bin), binary.BigEndian.Uint64(sv.Bin[8:])
		return recjson.Decimal(primitive.NewDecimal128(hi, lo)), nil
	case recjson.KindDate:
		return recjson.Date(time.UnixMilli(sv.Num).UTC()), nil
	case recjson.KindDateTime:
		return recjson.DateTime(time.UnixMilli(sv.Num)), nil
	case recjson.KindLink:
		return recjson.LinkTo(recjson.RID{Cluster: sv.Cluster, Position: sv.Num}), nil
	case recjson.KindEmbedded:
		if sv.Rec == nil {
			return recjson.Value{}, fmt.Errorf("embedded value without record")
		}
		rec, err := fromStored(sv.Rec)
		if err != nil {
			return recjson.Value{}, err
		}
		return recjson.Embedded(rec), nil
	case recjson.KindList, recjson.KindSet, recjson.KindLinkBag, recjson.KindMap:
		items := make([]recjson.Value, len(sv.Items))
		for i := range sv.Items {
			v, err := fromStoredValue(&sv.Items[i])
			if err != nil {
				return recjson.Value{}, err
			}
			items[i] = v
		}
		return fromStoredItems(recjson.Kind(sv.Kind), sv.Keys, items)
	}
	return recjson.Value{}, fmt.Errorf("unknown value kind %d", sv.Kind)
}

func fromStoredItems(kind recjson.Kind, keys []string, items []recjson.Value) (recjson.Value, error) {
	switch kind {
	case recjson.KindList:
		return recjson.List(items...), nil
	case recjson.KindSet:
		return recjson.Set(items...), nil
	case recjson.KindLinkBag:
		for _, item := range items {
			if item.Kind() != recjson.KindLink {
				return recjson.Value{}, fmt.Errorf("link bag item of kind %s", item.Kind())
			}
		}
		return recjson.LinkBag(items...), nil
	}
	if len(keys) != len(items) {
		return recjson.Value{}, fmt.Errorf("map with %d keys and %d values", len(keys), len(items))
	}
	entries := make([]recjson.MapEntry, len(keys))
	for i, k := range keys {
		entries[i] = recjson.MapEntry{Key: k, Value: items[i]}
	}
	return recjson.Map(entries...), nil
}
