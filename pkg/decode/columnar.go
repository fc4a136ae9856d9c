package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/rosterkit/rosterkit/pkg/record"
)

// The RCT1 container is a compact columnar table: a fixed header, then
// per column a name, a type tag, a null bitmap, and a zstd-compressed
// value block holding the non-null values in row order.
//
// Layout, all integers big-endian:
//
//	magic "RCT1" | uint16 version | uint32 columns | uint32 rows
//	per column:
//	  uint16 nameLen | name | byte typeTag
//	  null bitmap (ceil(rows/8) bytes, set bit = null)
//	  uint32 blockLen | zstd-compressed value block
const (
	columnarMagic   = "RCT1"
	columnarVersion = 1
)

// Column type tags.
const (
	colTypeString byte = iota + 1
	colTypeInt64
	colTypeFloat64
	colTypeBool
	colTypeTimestamp
)

var errNotColumnar = errors.New("not a columnar container (bad magic)")

// rowLimit caps the declared row and column counts so a corrupt header
// cannot trigger a huge allocation.
const (
	maxColumnarRows    = 10_000_000
	maxColumnarColumns = 4096
)

func decodeColumnar(data []byte) ([]record.Record, error) {
	r := &byteReader{buf: data}

	magic, err := r.bytes(4)
	if err != nil || string(magic) != columnarMagic {
		return nil, errNotColumnar
	}
	version, err := r.uint16()
	if err != nil {
		return nil, err
	}
	if version != columnarVersion {
		return nil, fmt.Errorf("unsupported container version %d", version)
	}
	columnCount, err := r.uint32()
	if err != nil {
		return nil, err
	}
	rowCount, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if columnCount > maxColumnarColumns {
		return nil, fmt.Errorf("implausible column count %d", columnCount)
	}
	if rowCount > maxColumnarRows {
		return nil, fmt.Errorf("implausible row count %d", rowCount)
	}
	if columnCount == 0 && rowCount != 0 {
		return nil, fmt.Errorf("%d rows declared with no columns", rowCount)
	}

	// Every column carries at least its fixed framing plus a full null
	// bitmap, so the declared geometry must fit the bytes actually
	// present. Checked before any row allocation: a forged header inside
	// the count caps must not drive allocations the input cannot back.
	const columnFraming = 2 + 1 + 4 // name length, type tag, block length
	if need := int(columnCount) * (columnFraming + bitmapLen(int(rowCount))); r.remaining() < need {
		return nil, fmt.Errorf("declared %d columns x %d rows needs at least %d bytes, have %d", columnCount, rowCount, need, r.remaining())
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer dec.Close()

	recs := make([]record.Record, rowCount)
	for i := range recs {
		recs[i] = make(record.Record)
	}

	for c := uint32(0); c < columnCount; c++ {
		nameLen, err := r.uint16()
		if err != nil {
			return nil, err
		}
		nameBytes, err := r.bytes(int(nameLen))
		if err != nil {
			return nil, err
		}
		name := string(nameBytes)

		tag, err := r.byte()
		if err != nil {
			return nil, err
		}

		bitmap, err := r.bytes(bitmapLen(int(rowCount)))
		if err != nil {
			return nil, err
		}

		blockLen, err := r.uint32()
		if err != nil {
			return nil, err
		}
		compressed, err := r.bytes(int(blockLen))
		if err != nil {
			return nil, err
		}
		block, err := dec.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("column %q: decompressing value block: %w", name, err)
		}

		if err := fillColumn(recs, name, tag, bitmap, block); err != nil {
			return nil, err
		}
	}

	if r.remaining() > 0 {
		return nil, fmt.Errorf("%d trailing bytes after last column", r.remaining())
	}
	return recs, nil
}

// fillColumn writes the column's non-null values into the row records.
func fillColumn(recs []record.Record, name string, tag byte, bitmap, block []byte) error {
	vr := &byteReader{buf: block}
	for row := range recs {
		if bitmapNull(bitmap, row) {
			continue
		}
		v, err := readValue(vr, tag)
		if err != nil {
			return fmt.Errorf("column %q row %d: %w", name, row, err)
		}
		recs[row][name] = v
	}
	if vr.remaining() > 0 {
		return fmt.Errorf("column %q: %d trailing bytes in value block", name, vr.remaining())
	}
	return nil
}

func readValue(r *byteReader, tag byte) (any, error) {
	switch tag {
	case colTypeString:
		n, err := r.uint32()
		if err != nil {
			return nil, err
		}
		b, err := r.bytes(int(n))
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case colTypeInt64:
		n, err := r.uint64()
		if err != nil {
			return nil, err
		}
		return int64(n), nil
	case colTypeFloat64:
		n, err := r.uint64()
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(n), nil
	case colTypeBool:
		b, err := r.byte()
		if err != nil {
			return nil, err
		}
		return b != 0, nil
	case colTypeTimestamp:
		n, err := r.uint64()
		if err != nil {
			return nil, err
		}
		return time.UnixMilli(int64(n)).UTC(), nil
	default:
		return nil, fmt.Errorf("unknown column type tag %d", tag)
	}
}

// EncodeColumnar renders records as an RCT1 container. The column set is
// the union of all attribute names, sorted for a deterministic layout;
// a column's type comes from its first non-null value and later values
// of a different type are an error. Intended for fixtures and for the
// export side of host applications.
func EncodeColumnar(recs []record.Record) ([]byte, error) {
	names, types, err := columnSchema(recs)
	if err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd writer: %w", err)
	}
	defer enc.Close()

	out := make([]byte, 0, 256)
	out = append(out, columnarMagic...)
	out = binary.BigEndian.AppendUint16(out, columnarVersion)
	out = binary.BigEndian.AppendUint32(out, uint32(len(names)))
	out = binary.BigEndian.AppendUint32(out, uint32(len(recs)))

	for _, name := range names {
		tag := types[name]

		bitmap := make([]byte, bitmapLen(len(recs)))
		block := make([]byte, 0, len(recs)*8)
		for row, rec := range recs {
			v, ok := rec[name]
			if !ok || v == nil {
				bitmapSetNull(bitmap, row)
				continue
			}
			block, err = appendValue(block, tag, v)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", name, row, err)
			}
		}
		compressed := enc.EncodeAll(block, make([]byte, 0, len(block)/2))

		out = binary.BigEndian.AppendUint16(out, uint16(len(name)))
		out = append(out, name...)
		out = append(out, tag)
		out = append(out, bitmap...)
		out = binary.BigEndian.AppendUint32(out, uint32(len(compressed)))
		out = append(out, compressed...)
	}
	return out, nil
}

// columnSchema returns the sorted column names and the type tag of each,
// inferred from the first non-null value.
func columnSchema(recs []record.Record) ([]string, map[string]byte, error) {
	types := make(map[string]byte)
	for _, rec := range recs {
		for name, v := range rec {
			if v == nil {
				if _, seen := types[name]; !seen {
					types[name] = 0 // type still unknown
				}
				continue
			}
			tag, err := typeTagOf(v)
			if err != nil {
				return nil, nil, fmt.Errorf("column %q: %w", name, err)
			}
			prev, seen := types[name]
			if seen && prev != 0 && prev != tag {
				return nil, nil, fmt.Errorf("column %q: mixed value types", name)
			}
			types[name] = tag
		}
	}

	names := make([]string, 0, len(types))
	for name, tag := range types {
		if tag == 0 {
			types[name] = colTypeString // all-null column, type is arbitrary
		}
		if len(name) > math.MaxUint16 {
			return nil, nil, fmt.Errorf("column name of %d bytes is too long", len(name))
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, types, nil
}

func typeTagOf(v any) (byte, error) {
	switch v.(type) {
	case string:
		return colTypeString, nil
	case int64:
		return colTypeInt64, nil
	case float64:
		return colTypeFloat64, nil
	case bool:
		return colTypeBool, nil
	case time.Time:
		return colTypeTimestamp, nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}

func appendValue(block []byte, tag byte, v any) ([]byte, error) {
	want, err := typeTagOf(v)
	if err != nil {
		return nil, err
	}
	if want != tag {
		return nil, fmt.Errorf("mixed value types")
	}
	switch tag {
	case colTypeString:
		s := v.(string)
		block = binary.BigEndian.AppendUint32(block, uint32(len(s)))
		return append(block, s...), nil
	case colTypeInt64:
		return binary.BigEndian.AppendUint64(block, uint64(v.(int64))), nil
	case colTypeFloat64:
		return binary.BigEndian.AppendUint64(block, math.Float64bits(v.(float64))), nil
	case colTypeBool:
		if v.(bool) {
			return append(block, 1), nil
		}
		return append(block, 0), nil
	case colTypeTimestamp:
		return binary.BigEndian.AppendUint64(block, uint64(v.(time.Time).UnixMilli())), nil
	default:
		return nil, fmt.Errorf("unknown column type tag %d", tag)
	}
}

func bitmapLen(rows int) int {
	return (rows + 7) / 8
}

func bitmapSetNull(bitmap []byte, row int) {
	bitmap[row/8] |= 1 << (row % 8)
}

func bitmapNull(bitmap []byte, row int) bool {
	return bitmap[row/8]&(1<<(row%8)) != 0
}

// byteReader is a bounds-checked cursor over a byte slice. Reads past
// the end return io.ErrUnexpectedEOF-style errors with the offset.
type byteReader struct {
	buf []byte
	off int
}

func (r *byteReader) remaining() int {
	return len(r.buf) - r.off
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("truncated input at offset %d (want %d bytes, have %d)", r.off, n, r.remaining())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *byteReader) byte() (byte, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *byteReader) uint16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *byteReader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *byteReader) uint64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}
