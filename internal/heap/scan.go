package heap

import (
	"errors"
	"fmt"

	"github.com/tuannm99/pagedb/internal/record"
)

// ErrNoMoreTuples signals scan exhaustion. It is the normal end of stream,
// not a fault.
var ErrNoMoreTuples = errors.New("heap: no more tuples")

// Scan walks a table's slots in row-major (page, slot) order and emits the
// live records matching its predicate. It borrows the table for its
// lifetime and is single-pass: after ErrNoMoreTuples the cursor is reset
// and Next starts over.
type Scan struct {
	t    *Table
	pred *record.Expr

	page  int
	slot  int
	count int // live rows visited so far
}

// StartScan opens a cursor over the table. A nil predicate matches all
// rows.
func (t *Table) StartScan(pred *record.Expr) *Scan {
	return &Scan{t: t, pred: pred, page: firstDataPage}
}

func (sc *Scan) reset() {
	sc.page = firstDataPage
	sc.slot = 0
	sc.count = 0
}

// Next advances to the next matching record and copies it into out.
// Tombstoned and never-written slots are skipped. The scan ends at the
// on-disk page bound, or earlier once every live row has been visited.
func (sc *Scan) Next(out *record.Record) error {
	t := sc.t
	if err := t.ensureOpen(); err != nil {
		return err
	}
	if t.numTuples == 0 {
		sc.reset()
		return ErrNoMoreTuples
	}

	for sc.page < t.pool.TotalPages() && sc.count < t.numTuples {
		h, err := t.pool.Pin(sc.page)
		if err != nil {
			return err
		}

		for ; sc.slot < t.slotsPerPage; sc.slot++ {
			off := t.slotOffset(sc.slot)
			if h.Data[off] != markerLive {
				continue
			}
			sc.count++

			// Borrow the payload in place for predicate evaluation;
			// only matches are copied out.
			cur := &record.Record{
				ID:   record.RID{Page: sc.page, Slot: sc.slot},
				Data: h.Data[off+1 : off+1+t.recordSize],
			}

			if sc.pred != nil {
				v, err := record.EvalExpr(cur, t.Schema, sc.pred)
				if err != nil {
					t.pool.Unpin(h)
					return err
				}
				if v.Type != record.TypeBool {
					t.pool.Unpin(h)
					return fmt.Errorf("%w: predicate yields %s, want BOOL", record.ErrBadExpr, v.Type)
				}
				if !v.B {
					continue
				}
			}

			if len(out.Data) != t.recordSize {
				out.Data = make([]byte, t.recordSize)
			}
			copy(out.Data, cur.Data)
			out.ID = cur.ID

			sc.slot++
			return t.pool.Unpin(h)
		}

		if err := t.pool.Unpin(h); err != nil {
			return err
		}
		sc.page++
		sc.slot = 0
	}

	sc.reset()
	return ErrNoMoreTuples
}
