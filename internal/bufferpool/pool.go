// Package bufferpool caches page-file blocks in a fixed set of frames and
// mediates all disk I/O for the layers above it. A page is at most once
// resident; pinned frames are never evicted; dirty frames are written back
// on eviction, on force, and on close.
package bufferpool

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tuannm99/pagedb/internal/pagefile"
)

const logPrefix = "bufferpool: "

// NoPage marks an empty frame in FrameContents.
const NoPage = -1

// DefaultCapacity is the frame count used when a caller does not care.
const DefaultCapacity = 10

var (
	// ErrNoFreeFrame is returned when a miss finds every frame pinned.
	ErrNoFreeFrame = errors.New("bufferpool: no free frame available (all pinned)")

	// ErrPageNotResident is returned by operations addressing a page that
	// is not in any frame.
	ErrPageNotResident = errors.New("bufferpool: page not resident")

	// ErrPinnedPages is returned by Close while any frame is still pinned.
	ErrPinnedPages = errors.New("bufferpool: outstanding pinned pages")

	// ErrClosed is returned by every operation on a closed pool. It wraps
	// ErrInvalidArgument.
	ErrClosed = fmt.Errorf("%w: pool is closed", ErrInvalidArgument)

	ErrInvalidArgument = errors.New("bufferpool: invalid argument")
)

// PageHandle is a pinned view of one page. Data is borrowed from the frame
// and is valid only until the matching Unpin; after that the frame may be
// evicted at any time.
type PageHandle struct {
	PageNum int
	Data    []byte
}

type frame struct {
	pageNum  int // NoPage when empty
	buf      []byte
	dirty    bool
	fixCount int
}

// Pool is a fixed-size buffer pool bound to one page file. It owns the file
// for its lifetime; Close flushes and closes it.
type Pool struct {
	file      *pagefile.File
	frames    []frame
	pageTable map[int]int // pageNum -> frame index
	repl      Replacer
	policy    Policy

	readIO  int
	writeIO int
	closed  bool
}

// Open opens the named page file (which must exist) and builds a pool of
// numFrames empty frames with the given replacement policy.
func Open(fileName string, numFrames int, policy Policy) (*Pool, error) {
	if fileName == "" || numFrames <= 0 {
		return nil, fmt.Errorf("%w: fileName=%q numFrames=%d", ErrInvalidArgument, fileName, numFrames)
	}

	f, err := pagefile.Open(fileName)
	if err != nil {
		return nil, err
	}

	frames := make([]frame, numFrames)
	for i := range frames {
		frames[i].pageNum = NoPage
		frames[i].buf = make([]byte, pagefile.PageSize)
	}

	slog.Debug(logPrefix+"pool opened", "file", fileName, "frames", numFrames, "policy", policy.Kind.String())

	return &Pool{
		file:      f,
		frames:    frames,
		pageTable: make(map[int]int, numFrames),
		repl:      newReplacer(policy, numFrames),
		policy:    policy,
	}, nil
}

// Pin makes pageNum resident and increments its fix count. A pin past the
// end of the file extends the file and reads a zero page. When every frame
// is pinned the miss fails with ErrNoFreeFrame and no state changes.
func (p *Pool) Pin(pageNum int) (*PageHandle, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if pageNum < 0 {
		return nil, fmt.Errorf("%w: page %d", ErrInvalidArgument, pageNum)
	}

	// Hit: the page is already resident.
	if idx, ok := p.pageTable[pageNum]; ok {
		f := &p.frames[idx]
		f.fixCount++
		p.repl.OnPin(idx, true)
		slog.Debug(logPrefix+"pin hit", "page", pageNum, "frame", idx, "fixCount", f.fixCount)
		return &PageHandle{PageNum: pageNum, Data: f.buf}, nil
	}

	// Miss: choose a frame, empty ones first in lowest-index order.
	idx := -1
	for i := range p.frames {
		if p.frames[i].pageNum == NoPage {
			idx = i
			break
		}
	}
	if idx == -1 {
		victim, ok := p.repl.Victim(func(i int) bool { return p.frames[i].fixCount == 0 })
		if !ok {
			slog.Debug(logPrefix+"pin miss with all frames pinned", "page", pageNum)
			return nil, fmt.Errorf("%w: while pinning page %d", ErrNoFreeFrame, pageNum)
		}
		idx = victim
		if err := p.evict(idx); err != nil {
			return nil, err
		}
	}

	f := &p.frames[idx]

	// A pin beyond the current file length materialises the page.
	if pageNum >= p.file.TotalPages() {
		if err := p.file.EnsureCapacity(pageNum + 1); err != nil {
			return nil, err
		}
	}
	if err := p.file.ReadBlock(pageNum, f.buf); err != nil {
		return nil, err
	}
	p.readIO++

	f.pageNum = pageNum
	f.dirty = false
	f.fixCount = 1
	p.pageTable[pageNum] = idx
	p.repl.OnPin(idx, false)

	slog.Debug(logPrefix+"pin miss loaded", "page", pageNum, "frame", idx, "readIO", p.readIO)
	return &PageHandle{PageNum: pageNum, Data: f.buf}, nil
}

// evict writes out a dirty victim and detaches it from the page table. The
// caller reuses the frame immediately after.
func (p *Pool) evict(idx int) error {
	f := &p.frames[idx]
	if f.dirty {
		slog.Debug(logPrefix+"writing dirty victim", "page", f.pageNum, "frame", idx)
		if err := p.file.WriteBlock(f.pageNum, f.buf); err != nil {
			return err
		}
		p.writeIO++
		f.dirty = false
	}
	delete(p.pageTable, f.pageNum)
	f.pageNum = NoPage
	return nil
}

// Unpin decrements the fix count of the frame holding the handle's page.
// Fix counts saturate at zero.
func (p *Pool) Unpin(h *PageHandle) error {
	if p.closed {
		return ErrClosed
	}
	if h == nil {
		return fmt.Errorf("%w: nil handle", ErrInvalidArgument)
	}
	idx, ok := p.pageTable[h.PageNum]
	if !ok {
		return fmt.Errorf("%w: page %d", ErrPageNotResident, h.PageNum)
	}
	f := &p.frames[idx]
	if f.fixCount > 0 {
		f.fixCount--
	}
	slog.Debug(logPrefix+"unpin", "page", h.PageNum, "frame", idx, "fixCount", f.fixCount)
	return nil
}

// MarkDirty flags the frame holding the handle's page as modified.
func (p *Pool) MarkDirty(h *PageHandle) error {
	if p.closed {
		return ErrClosed
	}
	if h == nil {
		return fmt.Errorf("%w: nil handle", ErrInvalidArgument)
	}
	idx, ok := p.pageTable[h.PageNum]
	if !ok {
		return fmt.Errorf("%w: page %d", ErrPageNotResident, h.PageNum)
	}
	p.frames[idx].dirty = true
	return nil
}

// ForcePage writes the handle's page out if dirty, regardless of pins.
func (p *Pool) ForcePage(h *PageHandle) error {
	if p.closed {
		return ErrClosed
	}
	if h == nil {
		return fmt.Errorf("%w: nil handle", ErrInvalidArgument)
	}
	idx, ok := p.pageTable[h.PageNum]
	if !ok {
		return fmt.Errorf("%w: page %d", ErrPageNotResident, h.PageNum)
	}
	f := &p.frames[idx]
	if !f.dirty {
		return nil
	}
	if err := p.file.WriteBlock(f.pageNum, f.buf); err != nil {
		return err
	}
	p.writeIO++
	f.dirty = false
	return nil
}

// ForceFlush writes out every dirty frame whose fix count is zero.
func (p *Pool) ForceFlush() error {
	if p.closed {
		return ErrClosed
	}
	for i := range p.frames {
		f := &p.frames[i]
		if f.pageNum == NoPage || !f.dirty || f.fixCount != 0 {
			continue
		}
		slog.Debug(logPrefix+"flushing frame", "page", f.pageNum, "frame", i)
		if err := p.file.WriteBlock(f.pageNum, f.buf); err != nil {
			return err
		}
		p.writeIO++
		f.dirty = false
	}
	return nil
}

// Close fails with ErrPinnedPages while any frame is pinned; otherwise it
// flushes all dirty frames and closes the page file. A second Close returns
// ErrClosed.
func (p *Pool) Close() error {
	if p.closed {
		return ErrClosed
	}
	for i := range p.frames {
		if p.frames[i].fixCount > 0 {
			return fmt.Errorf("%w: page %d (frame %d, fixCount %d)",
				ErrPinnedPages, p.frames[i].pageNum, i, p.frames[i].fixCount)
		}
	}
	if err := p.ForceFlush(); err != nil {
		return err
	}
	p.closed = true
	slog.Debug(logPrefix+"pool closed", "file", p.file.Name(), "readIO", p.readIO, "writeIO", p.writeIO)
	return p.file.Close()
}

// TotalPages reports the current page count of the underlying file.
func (p *Pool) TotalPages() int { return p.file.TotalPages() }

// FrameContents returns the page number held by each frame, NoPage for
// empty frames.
func (p *Pool) FrameContents() []int {
	out := make([]int, len(p.frames))
	for i := range p.frames {
		out[i] = p.frames[i].pageNum
	}
	return out
}

// DirtyFlags returns the dirty flag of each frame.
func (p *Pool) DirtyFlags() []bool {
	out := make([]bool, len(p.frames))
	for i := range p.frames {
		out[i] = p.frames[i].dirty
	}
	return out
}

// FixCounts returns the fix count of each frame.
func (p *Pool) FixCounts() []int {
	out := make([]int, len(p.frames))
	for i := range p.frames {
		out[i] = p.frames[i].fixCount
	}
	return out
}

// ReadIOCount reports pages read from disk since the pool was opened.
func (p *Pool) ReadIOCount() int { return p.readIO }

// WriteIOCount reports pages written to disk since the pool was opened.
func (p *Pool) WriteIOCount() int { return p.writeIO }
