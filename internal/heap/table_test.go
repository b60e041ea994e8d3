package heap

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/pagedb/internal/record"
)

// newTestTable creates and opens a table with the classic three-column
// schema (a INT, b STRING(4), c INT) and returns it with its file path for
// reopen tests.
func newTestTable(t *testing.T) (*Table, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "users.tbl")
	schema := record.Schema{
		Attrs: []record.Attr{
			{Name: "a", Type: record.TypeInt},
			{Name: "b", Type: record.TypeString, Length: 4},
			{Name: "c", Type: record.TypeInt},
		},
		Keys: []int{0},
	}
	require.NoError(t, CreateTable(path, schema))

	tbl, err := OpenTable(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		if !tbl.closed {
			_ = tbl.Close()
		}
	})
	return tbl, path
}

// makeRow builds a record (a, b, c) for the test schema.
func makeRow(t *testing.T, tbl *Table, a int32, b string, c int32) *record.Record {
	t.Helper()
	rec := record.NewRecord(tbl.Schema)
	require.NoError(t, record.SetAttr(rec, tbl.Schema, 0, record.IntValue(a)))
	require.NoError(t, record.SetAttr(rec, tbl.Schema, 1, record.StringValue(b)))
	require.NoError(t, record.SetAttr(rec, tbl.Schema, 2, record.IntValue(c)))
	return rec
}

func TestCreateTable_RejectsBadSchemas(t *testing.T) {
	dir := t.TempDir()

	long := record.Schema{Attrs: []record.Attr{
		{Name: "a_name_that_is_far_too_long_for_disk", Type: record.TypeInt},
	}}
	err := CreateTable(filepath.Join(dir, "x.tbl"), long)
	require.ErrorIs(t, err, record.ErrBadSchema)

	wide := record.Schema{Attrs: []record.Attr{
		{Name: "blob", Type: record.TypeString, Length: 8192},
	}}
	err = CreateTable(filepath.Join(dir, "y.tbl"), wide)
	require.ErrorIs(t, err, ErrRecordTooLarge)
}

func TestOpenTable_MissingFileFails(t *testing.T) {
	_, err := OpenTable(filepath.Join(t.TempDir(), "missing.tbl"))
	require.Error(t, err)
}

func TestInsertGet_RoundTrip(t *testing.T) {
	tbl, _ := newTestTable(t)

	in := makeRow(t, tbl, 1, "aaaa", 10)
	require.NoError(t, tbl.Insert(in))
	require.Equal(t, record.RID{Page: 2, Slot: 0}, in.ID)
	require.Equal(t, 1, tbl.NumTuples())

	out := record.NewRecord(tbl.Schema)
	require.NoError(t, tbl.Get(in.ID, out))
	require.Equal(t, in.Data, out.Data)
	require.Equal(t, in.ID, out.ID)
}

func TestGet_BadRIDs(t *testing.T) {
	tbl, _ := newTestTable(t)

	out := record.NewRecord(tbl.Schema)
	require.ErrorIs(t, tbl.Get(record.RID{Page: 1, Slot: 0}, out), ErrInvalidRID)
	require.ErrorIs(t, tbl.Get(record.RID{Page: 2, Slot: tbl.SlotsPerPage()}, out), ErrInvalidRID)

	// Valid position, never written.
	require.ErrorIs(t, tbl.Get(record.RID{Page: 2, Slot: 0}, out), ErrTupleNotFound)
}

func TestUpdate_OverwritesPayload(t *testing.T) {
	tbl, _ := newTestTable(t)

	rec := makeRow(t, tbl, 1, "aaaa", 10)
	require.NoError(t, tbl.Insert(rec))

	upd := makeRow(t, tbl, 1, "zzzz", 99)
	upd.ID = rec.ID
	require.NoError(t, tbl.Update(upd))

	out := record.NewRecord(tbl.Schema)
	require.NoError(t, tbl.Get(rec.ID, out))
	v, err := record.GetAttr(out, tbl.Schema, 1)
	require.NoError(t, err)
	require.Equal(t, "zzzz", v.S)

	require.Equal(t, 1, tbl.NumTuples())
}

func TestDelete_TombstonesSlot(t *testing.T) {
	tbl, _ := newTestTable(t)

	rec := makeRow(t, tbl, 1, "aaaa", 10)
	require.NoError(t, tbl.Insert(rec))
	require.NoError(t, tbl.Delete(rec.ID))
	require.Equal(t, 0, tbl.NumTuples())

	out := record.NewRecord(tbl.Schema)
	require.ErrorIs(t, tbl.Get(rec.ID, out), ErrTupleNotFound)
	require.ErrorIs(t, tbl.Delete(rec.ID), ErrTupleNotFound)
	require.ErrorIs(t, tbl.Update(rec), ErrTupleNotFound)
}

func TestInsert_DoesNotReuseTombstones(t *testing.T) {
	tbl, _ := newTestTable(t)

	r1 := makeRow(t, tbl, 1, "aaaa", 10)
	r2 := makeRow(t, tbl, 2, "bbbb", 20)
	require.NoError(t, tbl.Insert(r1))
	require.NoError(t, tbl.Insert(r2))
	require.NoError(t, tbl.Delete(r1.ID))

	r3 := makeRow(t, tbl, 3, "cccc", 30)
	require.NoError(t, tbl.Insert(r3))
	require.NotEqual(t, r1.ID, r3.ID)
	require.Equal(t, record.RID{Page: 2, Slot: 2}, r3.ID)
}

// With slotsPerPage == 3, seven inserts land on pages 2, 3 and 4 in slot
// order and the free-page hint follows the last insert.
func TestInsert_FirstFreePageAdvances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wide.tbl")
	schema := record.Schema{
		Attrs: []record.Attr{
			{Name: "pad", Type: record.TypeString, Length: 1020},
			{Name: "n", Type: record.TypeInt},
		},
	}
	require.NoError(t, CreateTable(path, schema))

	tbl, err := OpenTable(path)
	require.NoError(t, err)
	defer tbl.Close()

	require.Equal(t, 3, tbl.SlotsPerPage())

	want := []record.RID{
		{Page: 2, Slot: 0}, {Page: 2, Slot: 1}, {Page: 2, Slot: 2},
		{Page: 3, Slot: 0}, {Page: 3, Slot: 1}, {Page: 3, Slot: 2},
		{Page: 4, Slot: 0},
	}
	for i, w := range want {
		rec := record.NewRecord(tbl.Schema)
		require.NoError(t, record.SetAttr(rec, tbl.Schema, 1, record.IntValue(int32(i))))
		require.NoError(t, tbl.Insert(rec))
		require.Equal(t, w, rec.ID)
	}
	require.Equal(t, 4, tbl.FirstFreePage())
	require.Equal(t, 7, tbl.NumTuples())
}

// Counters and schema survive a close/open cycle.
func TestCloseOpen_PersistsMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.tbl")
	schema := record.Schema{
		Attrs: []record.Attr{
			{Name: "id", Type: record.TypeInt},
			{Name: "name", Type: record.TypeString, Length: 8},
		},
		Keys: []int{0},
	}
	require.NoError(t, CreateTable(path, schema))

	tbl, err := OpenTable(path)
	require.NoError(t, err)
	for i := int32(0); i < 5; i++ {
		rec := record.NewRecord(tbl.Schema)
		require.NoError(t, record.SetAttr(rec, tbl.Schema, 0, record.IntValue(i)))
		require.NoError(t, record.SetAttr(rec, tbl.Schema, 1, record.StringValue("row")))
		require.NoError(t, tbl.Insert(rec))
	}
	require.NoError(t, tbl.Close())

	reopened, err := OpenTable(path)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, 5, reopened.NumTuples())
	require.True(t, schema.Equal(reopened.Schema))

	// The rows themselves are readable after the round trip.
	out := record.NewRecord(reopened.Schema)
	require.NoError(t, reopened.Get(record.RID{Page: 2, Slot: 4}, out))
	v, err := record.GetAttr(out, reopened.Schema, 0)
	require.NoError(t, err)
	require.Equal(t, int32(4), v.I)
}

func TestDeleteTable_RemovesFile(t *testing.T) {
	tbl, path := newTestTable(t)
	require.NoError(t, tbl.Close())

	require.NoError(t, DeleteTable(path))
	_, err := OpenTable(path)
	require.Error(t, err)
}

func TestClosedTable_RejectsOperations(t *testing.T) {
	tbl, _ := newTestTable(t)
	require.NoError(t, tbl.Close())

	rec := makeRow(t, tbl, 1, "aaaa", 10)
	require.ErrorIs(t, tbl.Insert(rec), ErrTableClosed)
	require.ErrorIs(t, tbl.Close(), ErrTableClosed)
}
