package store

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/bson"
)

// Codec encodes record bodies.  Implementations must be safe for concurrent
// use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// CodecID is the stable number of a built-in codec, kept in the header of
// every stored value.  Changing a codec's number breaks existing databases.
type CodecID uint8

const (
	CodecBSON    CodecID = 0
	CodecMsgPack CodecID = 1
)

// BSON encodes bodies as BSON documents.
type BSON struct{}

func (BSON) Marshal(v any) ([]byte, error)      { return bson.Marshal(v) }
func (BSON) Unmarshal(data []byte, v any) error { return bson.Unmarshal(data, v) }
func (BSON) Name() string                       { return "bson" }

// MsgPack encodes bodies as MessagePack.
type MsgPack struct{}

func (MsgPack) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (MsgPack) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
func (MsgPack) Name() string                       { return "msgpack" }

func (id CodecID) Codec() (Codec, bool) {
	switch id {
	case CodecBSON:
		return BSON{}, true
	case CodecMsgPack:
		return MsgPack{}, true
	}
	return nil, false
}

func (id CodecID) String() string {
	if c, ok := id.Codec(); ok {
		return c.Name()
	}
	return fmt.Sprintf("codec(%d)", uint8(id))
}

// ParseCodec returns the codec called name.  The empty name is CodecBSON.
func ParseCodec(name string) (CodecID, error) {
	switch name {
	case "", "bson":
		return CodecBSON, nil
	case "msgpack":
		return CodecMsgPack, nil
	}
	return 0, fmt.Errorf("unknown codec %q", name)
}
