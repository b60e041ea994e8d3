// Package heap lays out fixed-width records on slotted data pages pinned
// through the buffer pool. Page 0 is reserved, page 1 holds the table
// metadata, pages from 2 up hold data. Each data page is carved into
// recordSize+1 byte slots: a one-byte marker followed by the payload.
package heap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tuannm99/pagedb/internal/bufferpool"
	"github.com/tuannm99/pagedb/internal/pagefile"
	"github.com/tuannm99/pagedb/internal/record"
)

const (
	metaPage      = 1
	firstDataPage = 2

	markerFree      = byte(0x00)
	markerLive      = byte('#')
	markerTombstone = byte('$')
)

var (
	// ErrTupleNotFound is returned when a slot addressed by RID does not
	// hold a live record.
	ErrTupleNotFound = errors.New("heap: tuple not found")

	ErrTableClosed = errors.New("heap: table is closed")

	ErrInvalidRID = errors.New("heap: rid out of range")

	ErrRecordTooLarge = errors.New("heap: record does not fit a page")
)

// Table is an open heap table. It owns its buffer pool; Close writes the
// metadata counters back and shuts the pool down.
type Table struct {
	Name   string
	Schema record.Schema

	pool          *bufferpool.Pool
	recordSize    int
	slotsPerPage  int
	numTuples     int
	firstFreePage int
	closed        bool
}

// CreateTable creates the page file for a new table and writes its metadata
// page. Data pages are materialised on demand by Insert.
func CreateTable(name string, schema record.Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	recordSize := schema.RecordSize()
	if recordSize+1 > pagefile.PageSize {
		return fmt.Errorf("%w: record size %d", ErrRecordTooLarge, recordSize)
	}
	if metaSize(schema) > pagefile.PageSize {
		return fmt.Errorf("%w: metadata does not fit a page", record.ErrBadSchema)
	}

	if err := pagefile.Create(name); err != nil {
		return err
	}
	pf, err := pagefile.Open(name)
	if err != nil {
		return err
	}
	defer pf.Close()

	if err := pf.EnsureCapacity(firstDataPage); err != nil {
		return err
	}

	buf := make([]byte, pagefile.PageSize)
	meta := tableMeta{
		numTuples:     0,
		firstFreePage: firstDataPage,
		recordSize:    recordSize,
		schema:        schema,
	}
	if err := encodeMeta(buf, meta); err != nil {
		return err
	}
	if err := pf.WriteBlock(metaPage, buf); err != nil {
		return err
	}

	slog.Debug("heap: table created", "name", name, "recordSize", recordSize)
	return nil
}

// OpenTable opens a table with a default pool (10 LRU frames).
func OpenTable(name string) (*Table, error) {
	return OpenTableWithPool(name, bufferpool.DefaultCapacity, bufferpool.LRU)
}

// OpenTableWithPool opens a table over a pool of the given size and policy
// and decodes the metadata page into the table state.
func OpenTableWithPool(name string, numFrames int, policy bufferpool.Policy) (*Table, error) {
	pool, err := bufferpool.Open(name, numFrames, policy)
	if err != nil {
		return nil, err
	}

	h, err := pool.Pin(metaPage)
	if err != nil {
		pool.Close()
		return nil, err
	}
	meta, err := decodeMeta(h.Data)
	if err != nil {
		pool.Unpin(h)
		pool.Close()
		return nil, err
	}
	if err := pool.Unpin(h); err != nil {
		pool.Close()
		return nil, err
	}

	t := &Table{
		Name:          name,
		Schema:        meta.schema,
		pool:          pool,
		recordSize:    meta.recordSize,
		slotsPerPage:  pagefile.PageSize / (meta.recordSize + 1),
		numTuples:     meta.numTuples,
		firstFreePage: meta.firstFreePage,
	}
	slog.Debug("heap: table opened", "name", name,
		"numTuples", t.numTuples, "firstFreePage", t.firstFreePage, "slotsPerPage", t.slotsPerPage)
	return t, nil
}

// Close writes the tuple count and free-page hint back to the metadata page
// and shuts down the buffer pool, flushing all dirty data pages.
func (t *Table) Close() error {
	if t == nil || t.closed {
		return ErrTableClosed
	}

	h, err := t.pool.Pin(metaPage)
	if err != nil {
		return err
	}
	meta := tableMeta{
		numTuples:     t.numTuples,
		firstFreePage: t.firstFreePage,
		recordSize:    t.recordSize,
		schema:        t.Schema,
	}
	if err := encodeMeta(h.Data, meta); err != nil {
		t.pool.Unpin(h)
		return err
	}
	if err := t.pool.MarkDirty(h); err != nil {
		t.pool.Unpin(h)
		return err
	}
	if err := t.pool.Unpin(h); err != nil {
		return err
	}

	if err := t.pool.Close(); err != nil {
		return err
	}
	t.closed = true
	return nil
}

// DeleteTable destroys the table's page file.
func DeleteTable(name string) error {
	return pagefile.Destroy(name)
}

// NumTuples reports the number of live records.
func (t *Table) NumTuples() int { return t.numTuples }

// RecordSize reports the packed payload width of this table's records.
func (t *Table) RecordSize() int { return t.recordSize }

// SlotsPerPage reports how many slots fit one data page.
func (t *Table) SlotsPerPage() int { return t.slotsPerPage }

// FirstFreePage reports the current insertion hint.
func (t *Table) FirstFreePage() int { return t.firstFreePage }

// Pool exposes the table's buffer pool for IO statistics.
func (t *Table) Pool() *bufferpool.Pool { return t.pool }

func (t *Table) slotOffset(slot int) int { return slot * (t.recordSize + 1) }

func (t *Table) checkRID(id record.RID) error {
	if id.Page < firstDataPage || id.Slot < 0 || id.Slot >= t.slotsPerPage {
		return fmt.Errorf("%w: %s", ErrInvalidRID, id)
	}
	return nil
}

func (t *Table) ensureOpen() error {
	if t == nil || t.closed {
		return ErrTableClosed
	}
	return nil
}

// Insert places the record payload in the first never-written slot at or
// after the free-page hint, allocating fresh pages through the buffer pool
// as needed. Tombstoned slots are not reused. On success the record's ID is
// set to the slot it landed in.
func (t *Table) Insert(rec *record.Record) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	if rec == nil || len(rec.Data) != t.recordSize {
		return fmt.Errorf("%w: payload must be %d bytes", record.ErrBadSchema, t.recordSize)
	}

	for page := t.firstFreePage; ; page++ {
		h, err := t.pool.Pin(page)
		if err != nil {
			return err
		}

		slot := -1
		for s := 0; s < t.slotsPerPage; s++ {
			if h.Data[t.slotOffset(s)] == markerFree {
				slot = s
				break
			}
		}
		if slot == -1 {
			if err := t.pool.Unpin(h); err != nil {
				return err
			}
			continue
		}

		off := t.slotOffset(slot)
		h.Data[off] = markerLive
		copy(h.Data[off+1:off+1+t.recordSize], rec.Data)

		if err := t.pool.MarkDirty(h); err != nil {
			t.pool.Unpin(h)
			return err
		}
		if err := t.pool.Unpin(h); err != nil {
			return err
		}

		t.firstFreePage = page
		t.numTuples++
		rec.ID = record.RID{Page: page, Slot: slot}
		slog.Debug("heap: inserted", "table", t.Name, "rid", rec.ID, "numTuples", t.numTuples)
		return nil
	}
}

// Get copies the payload of the live record at id into out.
func (t *Table) Get(id record.RID, out *record.Record) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	if err := t.checkRID(id); err != nil {
		return err
	}

	h, err := t.pool.Pin(id.Page)
	if err != nil {
		return err
	}
	off := t.slotOffset(id.Slot)
	if h.Data[off] != markerLive {
		t.pool.Unpin(h)
		return fmt.Errorf("%w: %s", ErrTupleNotFound, id)
	}

	if len(out.Data) != t.recordSize {
		out.Data = make([]byte, t.recordSize)
	}
	copy(out.Data, h.Data[off+1:off+1+t.recordSize])
	out.ID = id

	return t.pool.Unpin(h)
}

// Update overwrites the payload of the live record at rec.ID. The slot
// marker is untouched.
func (t *Table) Update(rec *record.Record) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	if rec == nil || len(rec.Data) != t.recordSize {
		return fmt.Errorf("%w: payload must be %d bytes", record.ErrBadSchema, t.recordSize)
	}
	if err := t.checkRID(rec.ID); err != nil {
		return err
	}

	h, err := t.pool.Pin(rec.ID.Page)
	if err != nil {
		return err
	}
	off := t.slotOffset(rec.ID.Slot)
	if h.Data[off] != markerLive {
		t.pool.Unpin(h)
		return fmt.Errorf("%w: %s", ErrTupleNotFound, rec.ID)
	}

	copy(h.Data[off+1:off+1+t.recordSize], rec.Data)

	if err := t.pool.MarkDirty(h); err != nil {
		t.pool.Unpin(h)
		return err
	}
	return t.pool.Unpin(h)
}

// Delete tombstones the live record at id.
func (t *Table) Delete(id record.RID) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	if err := t.checkRID(id); err != nil {
		return err
	}

	h, err := t.pool.Pin(id.Page)
	if err != nil {
		return err
	}
	off := t.slotOffset(id.Slot)
	if h.Data[off] != markerLive {
		t.pool.Unpin(h)
		return fmt.Errorf("%w: %s", ErrTupleNotFound, id)
	}

	h.Data[off] = markerTombstone
	t.numTuples--

	if err := t.pool.MarkDirty(h); err != nil {
		t.pool.Unpin(h)
		return err
	}
	if err := t.pool.Unpin(h); err != nil {
		return err
	}
	slog.Debug("heap: deleted", "table", t.Name, "rid", id, "numTuples", t.numTuples)
	return nil
}
