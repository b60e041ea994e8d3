// Package record describes table schemas and the packed fixed-width record
// payloads stored in heap pages. Records stay opaque byte slices; decoding
// happens only in GetAttr/SetAttr and in predicate evaluation.
package record

import (
	"errors"
	"fmt"
)

// DataType enumerates the column types. The numeric values are part of the
// on-disk table metadata and must not change.
type DataType int32

const (
	TypeInt    DataType = 0
	TypeString DataType = 1
	TypeFloat  DataType = 2
	TypeBool   DataType = 3
)

func (t DataType) String() string {
	switch t {
	case TypeInt:
		return "INT"
	case TypeString:
		return "STRING"
	case TypeFloat:
		return "FLOAT"
	case TypeBool:
		return "BOOL"
	default:
		return "UNKNOWN"
	}
}

// MaxAttrNameLen is the on-disk attribute name width; longer names are
// rejected at table creation.
const MaxAttrNameLen = 20

var (
	ErrBadSchema    = errors.New("record: invalid schema")
	ErrNoSuchAttr   = errors.New("record: attribute index out of range")
	ErrTypeMismatch = errors.New("record: value type does not match attribute type")
)

// Attr is one column: a name, a type and, for STRING, the fixed byte width.
type Attr struct {
	Name   string
	Type   DataType
	Length int // meaningful only for TypeString
}

// Schema is an immutable ordered attribute list plus informational key
// attribute indices (not enforced).
type Schema struct {
	Attrs []Attr
	Keys  []int
}

func (s Schema) NumAttrs() int { return len(s.Attrs) }

// Validate checks the constraints the on-disk metadata format imposes.
func (s Schema) Validate() error {
	if len(s.Attrs) == 0 {
		return fmt.Errorf("%w: no attributes", ErrBadSchema)
	}
	for i, a := range s.Attrs {
		if a.Name == "" {
			return fmt.Errorf("%w: attribute %d has no name", ErrBadSchema, i)
		}
		if len(a.Name) > MaxAttrNameLen {
			return fmt.Errorf("%w: attribute name %q longer than %d bytes", ErrBadSchema, a.Name, MaxAttrNameLen)
		}
		switch a.Type {
		case TypeInt, TypeFloat, TypeBool:
		case TypeString:
			if a.Length <= 0 {
				return fmt.Errorf("%w: attribute %q: STRING needs a positive length", ErrBadSchema, a.Name)
			}
		default:
			return fmt.Errorf("%w: attribute %q has unknown type %d", ErrBadSchema, a.Name, a.Type)
		}
	}
	for _, k := range s.Keys {
		if k < 0 || k >= len(s.Attrs) {
			return fmt.Errorf("%w: key attribute index %d out of range", ErrBadSchema, k)
		}
	}
	return nil
}

// typeWidth is the packed byte width of one attribute.
func typeWidth(a Attr) int {
	switch a.Type {
	case TypeInt, TypeFloat:
		return 4
	case TypeBool:
		return 1
	case TypeString:
		return a.Length
	default:
		return 0
	}
}

// RecordSize is the packed payload width: the sum of all attribute widths.
func (s Schema) RecordSize() int {
	size := 0
	for _, a := range s.Attrs {
		size += typeWidth(a)
	}
	return size
}

// Offset is the byte offset of attribute i inside a record payload.
func (s Schema) Offset(i int) (int, error) {
	if i < 0 || i >= len(s.Attrs) {
		return 0, fmt.Errorf("%w: %d", ErrNoSuchAttr, i)
	}
	off := 0
	for j := 0; j < i; j++ {
		off += typeWidth(s.Attrs[j])
	}
	return off, nil
}

// Equal reports structural equality of two schemas.
func (s Schema) Equal(o Schema) bool {
	if len(s.Attrs) != len(o.Attrs) || len(s.Keys) != len(o.Keys) {
		return false
	}
	for i := range s.Attrs {
		if s.Attrs[i] != o.Attrs[i] {
			return false
		}
	}
	for i := range s.Keys {
		if s.Keys[i] != o.Keys[i] {
			return false
		}
	}
	return true
}
