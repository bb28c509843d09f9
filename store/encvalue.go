package store

import (
	"encoding/binary"
)

// A stored value is a uvarint flags word, the uvarint size of the body before
// compression when the body is compressed, and the body: a record encoded by
// the codec the flags name.
type valueFlags uint64

const (
	vfVerBit0 = valueFlags(1 << iota)
	vfVerBit1
	vfVerBit2
	vfVerBit3
	vfCodecBit0
	vfCodecBit1
	vfCompressionBit0
	vfCompressionBit1

	vfVerMask         = vfVerBit0 | vfVerBit1 | vfVerBit2 | vfVerBit3
	vfCodecMask       = vfCodecBit0 | vfCodecBit1
	vfCompressionMask = vfCompressionBit0 | vfCompressionBit1
	vfCodecShift      = 4
	vfCompressShift   = 6

	vfVer1          = vfVerBit0
	vfSupportedMask = vfVer1 | vfCodecMask | vfCompressionMask

	minValueSize = 2
)

func makeValueFlags(codec CodecID, c Compression) valueFlags {
	return vfVer1 | valueFlags(codec)<<vfCodecShift | valueFlags(c)<<vfCompressShift
}

func (vf valueFlags) ver() valueFlags { return vf & vfVerMask }

func (vf valueFlags) codec() CodecID { return CodecID((vf & vfCodecMask) >> vfCodecShift) }

func (vf valueFlags) compression() Compression {
	return Compression((vf & vfCompressionMask) >> vfCompressShift)
}

// appendValue appends the stored form of body to buf.
func appendValue(buf []byte, codec CodecID, c Compression, body []byte) ([]byte, error) {
	packed, err := compress(body, c)
	if err != nil {
		return nil, err
	}
	if packed == nil {
		c = CompressionNone
	}
	buf = binary.AppendUvarint(buf, uint64(makeValueFlags(codec, c)))
	if c == CompressionNone {
		return append(buf, body...), nil
	}
	buf = binary.AppendUvarint(buf, uint64(len(body)))
	return append(buf, packed...), nil
}

// decodeValue returns the codec and the uncompressed body of a stored value.
func decodeValue(data []byte) (CodecID, []byte, error) {
	orig := data
	if len(data) < minValueSize {
		return 0, nil, dataErrf(orig, 0, nil, "invalid value: at least %d bytes required", minValueSize)
	}

	v, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, nil, dataErrf(orig, 0, nil, "invalid value: bad flags")
	}
	vf := valueFlags(v)
	if vf&^vfSupportedMask != 0 || vf.ver() != vfVer1 {
		return 0, nil, dataErrf(orig, 0, nil, "invalid value: unsupported flags %x", v)
	}
	data = data[n:]

	c := vf.compression()
	if c == CompressionNone {
		return vf.codec(), data, nil
	}

	size, n := binary.Uvarint(data)
	if n <= 0 || size > maxBodySize {
		return 0, nil, dataErrf(orig, len(orig)-len(data), nil, "invalid value: bad body size")
	}
	data = data[n:]
	body, err := decompress(data, c, int(size))
	if err != nil {
		return 0, nil, dataErrf(orig, len(orig)-len(data), err, "invalid value: cannot decompress %s body", c)
	}
	return vf.codec(), body, nil
}

// maxBodySize bounds the allocation made for a corrupt size prefix.
const maxBodySize = 1 << 30
