package archive

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies the algorithm applied to an archived record.
// Stored as one byte in the envelope; the values are format constants.
type Compression uint8

const (
	// CompressionNone stores the wire record as-is. Class streams and
	// high-entropy payloads often do not compress.
	CompressionNone Compression = 0

	// CompressionZstd stores the wire record zstd-compressed at the
	// default level. Effective for sparse or repetitive buffers.
	CompressionZstd Compression = 1
)

// String returns the human-readable name of a compression mode.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// envelope is the CBOR record an archived shard is stored as. The
// shard itself travels as its own wire format inside Data; the envelope
// adds the addressing and compression metadata the store needs without
// parsing the record.
type envelope struct {
	ProjectionID string      `cbor:"projection_id"`
	RegionKey    string      `cbor:"region"`
	Compression  Compression `cbor:"compression"`
	Data         []byte      `cbor:"data"`
}

// Deterministic CBOR encoding, so identical shards archive to identical
// bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("archive: CBOR encoder initialization failed: " + err.Error())
	}
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic("archive: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("archive: zstd decoder initialization failed: " + err.Error())
	}
}

func compress(data []byte, mode Compression) ([]byte, error) {
	switch mode {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		return zstdEncoder.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("unknown compression mode %d", uint8(mode))
	}
}

func decompress(data []byte, mode Compression) ([]byte, error) {
	switch mode {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		return zstdDecoder.DecodeAll(data, nil)
	default:
		return nil, fmt.Errorf("unknown compression mode %d", uint8(mode))
	}
}
