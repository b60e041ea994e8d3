package heap

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tuannm99/pagedb/internal/bx"
	"github.com/tuannm99/pagedb/internal/pagefile"
	"github.com/tuannm99/pagedb/internal/record"
)

var ErrBadMetadata = errors.New("heap: malformed table metadata")

// tableMeta is the table-level state persisted on the metadata page.
type tableMeta struct {
	numTuples     int
	firstFreePage int
	recordSize    int
	schema        record.Schema
}

// metaSize is the serialised width of the metadata block:
// numTuples, firstFreePage, recordSize, numAttr, then per attribute a
// 20-byte zero-padded name plus dataType and typeLength, then keySize and
// the key attribute indices. All counters are little-endian int32.
func metaSize(s record.Schema) int {
	return 16 + s.NumAttrs()*(record.MaxAttrNameLen+8) + 4 + len(s.Keys)*4
}

func encodeMeta(buf []byte, m tableMeta) error {
	if metaSize(m.schema) > len(buf) {
		return fmt.Errorf("%w: metadata (%d bytes) does not fit a page", ErrBadMetadata, metaSize(m.schema))
	}
	for i := range buf {
		buf[i] = 0
	}

	bx.PutI32At(buf, 0, int32(m.numTuples))
	bx.PutI32At(buf, 4, int32(m.firstFreePage))
	bx.PutI32At(buf, 8, int32(m.recordSize))
	bx.PutI32At(buf, 12, int32(m.schema.NumAttrs()))

	off := 16
	for _, a := range m.schema.Attrs {
		copy(buf[off:off+record.MaxAttrNameLen], a.Name)
		off += record.MaxAttrNameLen
		bx.PutI32At(buf, off, int32(a.Type))
		off += 4
		bx.PutI32At(buf, off, int32(a.Length))
		off += 4
	}

	bx.PutI32At(buf, off, int32(len(m.schema.Keys)))
	off += 4
	for _, k := range m.schema.Keys {
		bx.PutI32At(buf, off, int32(k))
		off += 4
	}
	return nil
}

func decodeMeta(buf []byte) (tableMeta, error) {
	var m tableMeta
	if len(buf) < 16 {
		return m, fmt.Errorf("%w: short buffer", ErrBadMetadata)
	}

	m.numTuples = int(bx.I32At(buf, 0))
	m.firstFreePage = int(bx.I32At(buf, 4))
	m.recordSize = int(bx.I32At(buf, 8))
	numAttr := int(bx.I32At(buf, 12))

	if m.numTuples < 0 || m.firstFreePage < firstDataPage || m.recordSize <= 0 {
		return m, fmt.Errorf("%w: counters numTuples=%d firstFreePage=%d recordSize=%d",
			ErrBadMetadata, m.numTuples, m.firstFreePage, m.recordSize)
	}
	if numAttr <= 0 || 16+numAttr*(record.MaxAttrNameLen+8) > pagefile.PageSize {
		return m, fmt.Errorf("%w: numAttr=%d", ErrBadMetadata, numAttr)
	}

	off := 16
	for i := 0; i < numAttr; i++ {
		if off+record.MaxAttrNameLen+8 > len(buf) {
			return m, fmt.Errorf("%w: truncated attribute %d", ErrBadMetadata, i)
		}
		name := buf[off : off+record.MaxAttrNameLen]
		if n := bytes.IndexByte(name, 0); n >= 0 {
			name = name[:n]
		}
		off += record.MaxAttrNameLen
		typ := record.DataType(bx.I32At(buf, off))
		off += 4
		length := int(bx.I32At(buf, off))
		off += 4
		m.schema.Attrs = append(m.schema.Attrs, record.Attr{
			Name:   string(name),
			Type:   typ,
			Length: length,
		})
	}

	if off+4 > len(buf) {
		return m, fmt.Errorf("%w: missing key count", ErrBadMetadata)
	}
	keySize := int(bx.I32At(buf, off))
	off += 4
	if keySize < 0 || off+keySize*4 > len(buf) {
		return m, fmt.Errorf("%w: keySize=%d", ErrBadMetadata, keySize)
	}
	for j := 0; j < keySize; j++ {
		m.schema.Keys = append(m.schema.Keys, int(bx.I32At(buf, off)))
		off += 4
	}

	if err := m.schema.Validate(); err != nil {
		return m, fmt.Errorf("%w: %v", ErrBadMetadata, err)
	}
	if m.recordSize != m.schema.RecordSize() {
		return m, fmt.Errorf("%w: recordSize %d does not match schema (%d)",
			ErrBadMetadata, m.recordSize, m.schema.RecordSize())
	}
	return m, nil
}
