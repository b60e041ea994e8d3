package record

import (
	"bytes"
	"fmt"
	"math"

	"github.com/tuannm99/pagedb/internal/bx"
)

// RID addresses a record by its data page and slot. Slot 0 is valid.
type RID struct {
	Page int
	Slot int
}

func (r RID) String() string { return fmt.Sprintf("(%d,%d)", r.Page, r.Slot) }

// Record is a packed payload of exactly Schema.RecordSize() bytes plus the
// RID it was read from (or assigned on insert).
type Record struct {
	ID   RID
	Data []byte
}

// NewRecord allocates a zeroed record sized for the schema.
func NewRecord(s Schema) *Record {
	return &Record{Data: make([]byte, s.RecordSize())}
}

// GetAttr decodes attribute i of the record payload.
// Fields are little-endian; STRING reads stop at the first NUL.
func GetAttr(rec *Record, s Schema, i int) (Value, error) {
	if rec == nil {
		return Value{}, fmt.Errorf("%w: nil record", ErrBadSchema)
	}
	off, err := s.Offset(i)
	if err != nil {
		return Value{}, err
	}
	a := s.Attrs[i]
	if off+typeWidth(a) > len(rec.Data) {
		return Value{}, fmt.Errorf("record: payload too short for attribute %q", a.Name)
	}

	switch a.Type {
	case TypeInt:
		return IntValue(bx.I32At(rec.Data, off)), nil
	case TypeFloat:
		return FloatValue(math.Float32frombits(bx.U32At(rec.Data, off))), nil
	case TypeBool:
		return BoolValue(rec.Data[off] != 0), nil
	case TypeString:
		field := rec.Data[off : off+a.Length]
		if n := bytes.IndexByte(field, 0); n >= 0 {
			field = field[:n]
		}
		return StringValue(string(field)), nil
	default:
		return Value{}, fmt.Errorf("%w: unknown type %d", ErrBadSchema, a.Type)
	}
}

// SetAttr encodes v into attribute i of the record payload. STRING values
// are truncated to the field width and the residue is zero-padded.
func SetAttr(rec *Record, s Schema, i int, v Value) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrBadSchema)
	}
	off, err := s.Offset(i)
	if err != nil {
		return err
	}
	a := s.Attrs[i]
	if v.Type != a.Type {
		return fmt.Errorf("%w: attribute %q is %s, value is %s", ErrTypeMismatch, a.Name, a.Type, v.Type)
	}
	if off+typeWidth(a) > len(rec.Data) {
		return fmt.Errorf("record: payload too short for attribute %q", a.Name)
	}

	switch a.Type {
	case TypeInt:
		bx.PutI32At(rec.Data, off, v.I)
	case TypeFloat:
		bx.PutU32At(rec.Data, off, math.Float32bits(v.F))
	case TypeBool:
		if v.B {
			rec.Data[off] = 1
		} else {
			rec.Data[off] = 0
		}
	case TypeString:
		field := rec.Data[off : off+a.Length]
		n := copy(field, v.S)
		for j := n; j < a.Length; j++ {
			field[j] = 0
		}
	default:
		return fmt.Errorf("%w: unknown type %d", ErrBadSchema, a.Type)
	}
	return nil
}
