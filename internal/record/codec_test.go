package record

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// testSchema is the classic three-column layout: (a INT, b STRING(4), c INT).
func testSchema(t *testing.T) Schema {
	t.Helper()
	s := Schema{
		Attrs: []Attr{
			{Name: "a", Type: TypeInt},
			{Name: "b", Type: TypeString, Length: 4},
			{Name: "c", Type: TypeInt},
		},
		Keys: []int{0},
	}
	require.NoError(t, s.Validate())
	return s
}

func TestSchema_RecordSizeAndOffsets(t *testing.T) {
	s := testSchema(t)
	require.Equal(t, 12, s.RecordSize())

	off, err := s.Offset(0)
	require.NoError(t, err)
	require.Equal(t, 0, off)

	off, err = s.Offset(1)
	require.NoError(t, err)
	require.Equal(t, 4, off)

	off, err = s.Offset(2)
	require.NoError(t, err)
	require.Equal(t, 8, off)

	_, err = s.Offset(3)
	require.ErrorIs(t, err, ErrNoSuchAttr)
}

func TestSchema_AllTypeWidths(t *testing.T) {
	s := Schema{
		Attrs: []Attr{
			{Name: "i", Type: TypeInt},
			{Name: "f", Type: TypeFloat},
			{Name: "b", Type: TypeBool},
			{Name: "s", Type: TypeString, Length: 7},
		},
	}
	require.NoError(t, s.Validate())
	require.Equal(t, 4+4+1+7, s.RecordSize())
}

func TestSchema_Validate(t *testing.T) {
	require.Error(t, Schema{}.Validate())

	long := Schema{Attrs: []Attr{{Name: "this_name_is_way_too_long", Type: TypeInt}}}
	require.ErrorIs(t, long.Validate(), ErrBadSchema)

	noLen := Schema{Attrs: []Attr{{Name: "s", Type: TypeString}}}
	require.ErrorIs(t, noLen.Validate(), ErrBadSchema)

	badKey := Schema{Attrs: []Attr{{Name: "a", Type: TypeInt}}, Keys: []int{1}}
	require.ErrorIs(t, badKey.Validate(), ErrBadSchema)
}

func TestSetGetAttr_RoundTripAllTypes(t *testing.T) {
	s := Schema{
		Attrs: []Attr{
			{Name: "i", Type: TypeInt},
			{Name: "f", Type: TypeFloat},
			{Name: "b", Type: TypeBool},
			{Name: "s", Type: TypeString, Length: 8},
		},
	}
	require.NoError(t, s.Validate())
	rec := NewRecord(s)

	require.NoError(t, SetAttr(rec, s, 0, IntValue(-12345)))
	require.NoError(t, SetAttr(rec, s, 1, FloatValue(3.5)))
	require.NoError(t, SetAttr(rec, s, 2, BoolValue(true)))
	require.NoError(t, SetAttr(rec, s, 3, StringValue("hello")))

	v, err := GetAttr(rec, s, 0)
	require.NoError(t, err)
	require.Equal(t, IntValue(-12345), v)

	v, err = GetAttr(rec, s, 1)
	require.NoError(t, err)
	require.Equal(t, FloatValue(3.5), v)

	v, err = GetAttr(rec, s, 2)
	require.NoError(t, err)
	require.Equal(t, BoolValue(true), v)

	v, err = GetAttr(rec, s, 3)
	require.NoError(t, err)
	require.Equal(t, StringValue("hello"), v)
}

func TestSetAttr_StringTruncatesAndPads(t *testing.T) {
	s := testSchema(t)
	rec := NewRecord(s)

	require.NoError(t, SetAttr(rec, s, 1, StringValue("toolong")))
	v, err := GetAttr(rec, s, 1)
	require.NoError(t, err)
	require.Equal(t, "tool", v.S)

	// A shorter value zero-pads the residue left by the longer one.
	require.NoError(t, SetAttr(rec, s, 1, StringValue("ab")))
	v, err = GetAttr(rec, s, 1)
	require.NoError(t, err)
	require.Equal(t, "ab", v.S)
	require.Equal(t, byte(0), rec.Data[4+2])
	require.Equal(t, byte(0), rec.Data[4+3])
}

func TestSetAttr_TypeMismatch(t *testing.T) {
	s := testSchema(t)
	rec := NewRecord(s)

	err := SetAttr(rec, s, 0, StringValue("nope"))
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestSetAttr_DoesNotDisturbNeighbours(t *testing.T) {
	s := testSchema(t)
	rec := NewRecord(s)

	require.NoError(t, SetAttr(rec, s, 0, IntValue(7)))
	require.NoError(t, SetAttr(rec, s, 2, IntValue(9)))
	require.NoError(t, SetAttr(rec, s, 1, StringValue("zzzz")))

	v, err := GetAttr(rec, s, 0)
	require.NoError(t, err)
	require.Equal(t, int32(7), v.I)

	v, err = GetAttr(rec, s, 2)
	require.NoError(t, err)
	require.Equal(t, int32(9), v.I)
}

func TestValue_EqualsAndLess(t *testing.T) {
	eq, err := IntValue(3).Equals(IntValue(3))
	require.NoError(t, err)
	require.True(t, eq)

	lt, err := StringValue("abc").Less(StringValue("abd"))
	require.NoError(t, err)
	require.True(t, lt)

	lt, err = BoolValue(false).Less(BoolValue(true))
	require.NoError(t, err)
	require.True(t, lt)

	_, err = IntValue(1).Equals(StringValue("1"))
	require.ErrorIs(t, err, ErrTypeMismatch)
}
