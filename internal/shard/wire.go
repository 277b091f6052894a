package shard

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/dreamware/hologram/internal/lattice"
	"github.com/dreamware/hologram/internal/projection"
)

// Wire format errors. All leave the destination untouched.
var (
	// ErrTruncatedRecord is returned when a record ends before its
	// declared contents.
	ErrTruncatedRecord = errors.New("truncated shard record")

	// ErrMalformedRecord is returned when a record's fields contradict
	// each other (payload length vs region size, page count, bounds).
	ErrMalformedRecord = errors.New("malformed shard record")
)

// headerSize is the fixed-size prefix before the payload:
// kind(1) + start(4) + end(4) + pages(2) + payloadLen(4).
const headerSize = 1 + 4 + 4 + 2 + 4

// Marshal serializes the shard to its wire record.
// Layout: [kind u8][start u32][end u32][pages u16][payloadLen u32][payload]
// [deltaCount u16][(block u16, delta u8)...][global u8][checksum u8],
// all little-endian.
func (s *Shard) Marshal() ([]byte, error) {
	if err := s.Region.Validate(); err != nil {
		return nil, err
	}
	if uint32(len(s.Payload)) != s.Region.Size() {
		return nil, fmt.Errorf("%w: payload %d bytes for region %s", ErrMalformedRecord, len(s.Payload), s.Region)
	}

	size := headerSize + len(s.Payload) + 2 + 3*len(s.Deltas) + 2
	buf := bytes.NewBuffer(make([]byte, 0, size))

	buf.WriteByte(uint8(s.Kind))
	binary.Write(buf, binary.LittleEndian, s.Region.Start)
	binary.Write(buf, binary.LittleEndian, s.Region.End)
	binary.Write(buf, binary.LittleEndian, s.Region.Pages())
	binary.Write(buf, binary.LittleEndian, uint32(len(s.Payload)))
	buf.Write(s.Payload)

	binary.Write(buf, binary.LittleEndian, uint16(len(s.Deltas)))
	for _, d := range s.Deltas {
		binary.Write(buf, binary.LittleEndian, d.Block)
		buf.WriteByte(d.Delta)
	}
	buf.WriteByte(s.GlobalChecksum)
	buf.WriteByte(s.Checksum)

	return buf.Bytes(), nil
}

// Unmarshal parses a wire record into a new shard. Records with an
// unrecognized kind tag are rejected with projection.ErrUnknownKind
// rather than misinterpreted; structural contradictions fail with
// ErrMalformedRecord and short input with ErrTruncatedRecord.
//
// Unmarshal validates structure only. Call Verify on the result to
// check the payload against its checksum.
func Unmarshal(data []byte) (*Shard, error) {
	r := bytes.NewReader(data)

	kind, err := r.ReadByte()
	if err != nil {
		return nil, ErrTruncatedRecord
	}
	if projection.Kind(kind) != projection.Linear && projection.Kind(kind) != projection.R96Fourier {
		return nil, fmt.Errorf("%w: tag %d", projection.ErrUnknownKind, kind)
	}

	var start, end uint32
	var pages uint16
	var payloadLen uint32
	if err := binary.Read(r, binary.LittleEndian, &start); err != nil {
		return nil, ErrTruncatedRecord
	}
	if err := binary.Read(r, binary.LittleEndian, &end); err != nil {
		return nil, ErrTruncatedRecord
	}
	if err := binary.Read(r, binary.LittleEndian, &pages); err != nil {
		return nil, ErrTruncatedRecord
	}
	if err := binary.Read(r, binary.LittleEndian, &payloadLen); err != nil {
		return nil, ErrTruncatedRecord
	}

	region := lattice.Region{Start: start, End: end}
	if err := region.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if payloadLen != region.Size() || pages != region.Pages() {
		return nil, fmt.Errorf("%w: region %s, pages %d, payload %d", ErrMalformedRecord, region, pages, payloadLen)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, ErrTruncatedRecord
	}

	var deltaCount uint16
	if err := binary.Read(r, binary.LittleEndian, &deltaCount); err != nil {
		return nil, ErrTruncatedRecord
	}
	var deltas []projection.BlockDelta
	for i := 0; i < int(deltaCount); i++ {
		var block uint16
		if err := binary.Read(r, binary.LittleEndian, &block); err != nil {
			return nil, ErrTruncatedRecord
		}
		delta, err := r.ReadByte()
		if err != nil {
			return nil, ErrTruncatedRecord
		}
		if block >= lattice.PageCount || delta >= lattice.Modulus {
			return nil, fmt.Errorf("%w: delta (%d,%d)", ErrMalformedRecord, block, delta)
		}
		deltas = append(deltas, projection.BlockDelta{Block: block, Delta: delta})
	}

	global, err := r.ReadByte()
	if err != nil {
		return nil, ErrTruncatedRecord
	}
	checksum, err := r.ReadByte()
	if err != nil {
		return nil, ErrTruncatedRecord
	}
	if global >= lattice.Modulus || checksum >= lattice.Modulus {
		return nil, fmt.Errorf("%w: checksum bytes %d/%d", ErrMalformedRecord, global, checksum)
	}

	s := &Shard{
		Region:         region,
		Kind:           projection.Kind(kind),
		Payload:        payload,
		Deltas:         deltas,
		GlobalChecksum: global,
		Checksum:       checksum,
	}
	if s.Kind == projection.R96Fourier {
		s.RegionClass = dominantClass(payload)
	}
	return s, nil
}
