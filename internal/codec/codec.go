// Package codec compresses individual blocks for backends where bytes on
// the wire cost more than CPU (object stores).
//
// Encoded format: [uncompressed u32][compressed u32][payload...], little
// endian. compressed == 0 means the payload is stored raw, which is also
// what Encode falls back to when compression does not pay off.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type selects the compression algorithm.
type Type uint8

const (
	// None stores blocks uncompressed.
	None Type = iota
	// LZ4 is fast and suits hot metadata blocks.
	LZ4
	// ZSTD trades CPU for a better ratio.
	ZSTD
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(t))
	}
}

// Parse maps a name accepted on command lines to a Type.
func Parse(s string) (Type, error) {
	switch s {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	}
	return None, fmt.Errorf("codec: unknown compression %q", s)
}

const headerSize = 8

// ErrCorrupt is returned when an encoded block cannot be decoded.
var ErrCorrupt = errors.New("codec: corrupt block")

var (
	zstdEncoders sync.Pool
	zstdDecoders sync.Pool
)

func getEncoder() *zstd.Encoder {
	if v := zstdEncoders.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getDecoder() *zstd.Decoder {
	if v := zstdDecoders.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode compresses data with t and prepends the header.
func Encode(t Type, data []byte) ([]byte, error) {
	var packed []byte
	switch t {
	case None:
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("codec: lz4: %w", err)
		}
		packed = buf[:n] // n == 0: incompressible
	case ZSTD:
		enc := getEncoder()
		packed = enc.EncodeAll(data, nil)
		zstdEncoders.Put(enc)
	default:
		return nil, fmt.Errorf("codec: unknown type %d", t)
	}

	// Not worth it unless we save at least 10%.
	if len(packed) == 0 || len(packed)*10 > len(data)*9 {
		out := make([]byte, headerSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		copy(out[headerSize:], data)
		return out, nil
	}

	out := make([]byte, headerSize+len(packed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(packed)))
	copy(out[headerSize:], packed)
	return out, nil
}

// Decode reverses Encode into dst, which must be exactly the original
// length. t must match the type used to encode compressed payloads.
func Decode(t Type, src, dst []byte) error {
	if len(src) < headerSize {
		return fmt.Errorf("%w: %d bytes", ErrCorrupt, len(src))
	}
	raw := binary.LittleEndian.Uint32(src[0:])
	packed := binary.LittleEndian.Uint32(src[4:])
	if int(raw) != len(dst) {
		return fmt.Errorf("%w: size %d, want %d", ErrCorrupt, raw, len(dst))
	}
	body := src[headerSize:]

	if packed == 0 {
		if len(body) < len(dst) {
			return fmt.Errorf("%w: truncated raw payload", ErrCorrupt)
		}
		copy(dst, body)
		return nil
	}
	if uint32(len(body)) < packed {
		return fmt.Errorf("%w: truncated payload", ErrCorrupt)
	}
	body = body[:packed]

	switch t {
	case LZ4:
		n, err := lz4.UncompressBlock(body, dst)
		if err != nil {
			return fmt.Errorf("%w: lz4: %v", ErrCorrupt, err)
		}
		if n != len(dst) {
			return fmt.Errorf("%w: lz4 size mismatch", ErrCorrupt)
		}
	case ZSTD:
		dec := getDecoder()
		out, err := dec.DecodeAll(body, dst[:0])
		zstdDecoders.Put(dec)
		if err != nil {
			return fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
		}
		if len(out) != len(dst) {
			return fmt.Errorf("%w: zstd size mismatch", ErrCorrupt)
		}
	default:
		return fmt.Errorf("%w: compressed payload with type %v", ErrCorrupt, t)
	}
	return nil
}
