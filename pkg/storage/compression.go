package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/klauspost/compress/zstd"

	"github.com/vjranagit/tsview/pkg/types"
)

// errCorruptBlock is returned when a block payload cannot be decoded
var errCorruptBlock = errors.New("corrupt block")

// Compressor encodes point blocks: timestamps as delta-of-delta varints,
// values as XOR'd float bits, the whole payload compressed with zstd.
type Compressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCompressor creates a new compressor. Levels run from 1 (fastest) to 4 (best).
func NewCompressor(level int) (*Compressor, error) {
	encLevel := zstd.SpeedDefault
	switch level {
	case 1:
		encLevel = zstd.SpeedFastest
	case 2:
		encLevel = zstd.SpeedDefault
	case 3:
		encLevel = zstd.SpeedBetterCompression
	case 4:
		encLevel = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	return &Compressor{
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// EncodeBlock encodes points ordered by timestamp
func (c *Compressor) EncodeBlock(points []types.Point) []byte {
	return c.encoder.EncodeAll(appendPoints(nil, points), nil)
}

// DecodeBlock decodes a payload produced by EncodeBlock
func (c *Compressor) DecodeBlock(data []byte) ([]types.Point, error) {
	if len(data) == 0 {
		return nil, nil
	}

	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}
	return decodePoints(raw)
}

// appendPoints appends the uncompressed encoding of points to buf. Values
// are stored as raw float bits, so NaN and infinities survive.
func appendPoints(buf []byte, points []types.Point) []byte {
	buf = slices.Grow(buf, binary.MaxVarintLen64*(1+2*len(points)))
	buf = binary.AppendUvarint(buf, uint64(len(points)))

	var prevTS, prevDelta int64
	var prevBits uint64
	for i, p := range points {
		switch i {
		case 0:
			buf = binary.AppendVarint(buf, p.Timestamp)
		default:
			delta := p.Timestamp - prevTS
			buf = binary.AppendVarint(buf, delta-prevDelta)
			prevDelta = delta
		}
		prevTS = p.Timestamp

		bits := math.Float64bits(p.Value)
		buf = binary.AppendUvarint(buf, bits^prevBits)
		prevBits = bits
	}
	return buf
}

// decodePoints decodes a payload produced by appendPoints
func decodePoints(raw []byte) ([]types.Point, error) {
	count, n := binary.Uvarint(raw)
	if n <= 0 || count > uint64(len(raw)) {
		return nil, fmt.Errorf("%w: bad point count", errCorruptBlock)
	}
	raw = raw[n:]

	points := make([]types.Point, count)
	var prevTS, prevDelta int64
	var prevBits uint64
	for i := range points {
		v, n := binary.Varint(raw)
		if n <= 0 {
			return nil, fmt.Errorf("%w: truncated timestamp at %d", errCorruptBlock, i)
		}
		raw = raw[n:]

		ts := v
		if i > 0 {
			delta := v + prevDelta
			ts = prevTS + delta
			prevDelta = delta
		}
		prevTS = ts

		x, n := binary.Uvarint(raw)
		if n <= 0 {
			return nil, fmt.Errorf("%w: truncated value at %d", errCorruptBlock, i)
		}
		raw = raw[n:]
		bits := x ^ prevBits
		prevBits = bits

		points[i] = types.Point{Timestamp: ts, Value: math.Float64frombits(bits)}
	}

	return points, nil
}

// Close closes the compressor resources
func (c *Compressor) Close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
}
