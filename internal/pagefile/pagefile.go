// Package pagefile implements the fixed-size block file that backs every
// table. A file is an ordered sequence of PageSize-byte blocks; block n
// occupies bytes [n*PageSize, (n+1)*PageSize). The total page count is
// derived from the file length, so a length that is not a multiple of
// PageSize means the file is corrupt.
package pagefile

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

const (
	// PageSize is the unit of disk I/O and of caching. Frozen at compile
	// time; files written with a different page size are not readable.
	PageSize = 4096
)

var (
	ErrFileExists   = errors.New("pagefile: file already exists")
	ErrFileNotFound = errors.New("pagefile: file not found")
	ErrCorruptFile  = errors.New("pagefile: file length is not a multiple of page size")
	ErrNoSuchPage   = errors.New("pagefile: page number out of range")
	ErrClosed       = errors.New("pagefile: file handle is not open")
)

// File is an open page file. The cursor (CurrentPos) is the page last read
// or written by ReadBlock or WriteBlock; the ReadXxxBlock convenience calls
// read relative to it.
type File struct {
	name       string
	f          *os.File
	totalPages int
	curPage    int
}

// Create creates a fresh page file holding a single zero-filled page.
func Create(name string) error {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrFileExists, name)
		}
		return err
	}
	defer f.Close()

	zero := make([]byte, PageSize)
	if _, err := f.Write(zero); err != nil {
		return err
	}
	return f.Sync()
}

// Open opens an existing page file and reads its page count from the file
// length.
func Open(name string) (*File, error) {
	f, err := os.OpenFile(name, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size()%PageSize != 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrCorruptFile, name, info.Size())
	}

	return &File{
		name:       name,
		f:          f,
		totalPages: int(info.Size() / PageSize),
		curPage:    0,
	}, nil
}

// Destroy removes the page file from disk.
func Destroy(name string) error {
	if err := os.Remove(name); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return err
	}
	return nil
}

func (pf *File) Close() error {
	if pf == nil || pf.f == nil {
		return ErrClosed
	}
	err := pf.f.Close()
	pf.f = nil
	return err
}

func (pf *File) Name() string { return pf.name }

// TotalPages returns the number of pages currently in the file.
func (pf *File) TotalPages() int { return pf.totalPages }

// CurrentPos returns the page the read cursor sits on.
func (pf *File) CurrentPos() int { return pf.curPage }

// ReadBlock reads page n into dst. dst must be exactly PageSize bytes.
func (pf *File) ReadBlock(n int, dst []byte) error {
	if pf == nil || pf.f == nil {
		return ErrClosed
	}
	if len(dst) != PageSize {
		return fmt.Errorf("pagefile: dst must be exactly %d bytes", PageSize)
	}
	if n < 0 || n >= pf.totalPages {
		return fmt.Errorf("%w: %d (have %d)", ErrNoSuchPage, n, pf.totalPages)
	}
	if _, err := pf.f.ReadAt(dst, int64(n)*PageSize); err != nil {
		return fmt.Errorf("pagefile: read page %d: %w", n, err)
	}
	pf.curPage = n
	return nil
}

// WriteBlock overwrites page n with src. src must be exactly PageSize bytes.
// The write is synced so that callers can treat it as authoritative.
func (pf *File) WriteBlock(n int, src []byte) error {
	if pf == nil || pf.f == nil {
		return ErrClosed
	}
	if len(src) != PageSize {
		return fmt.Errorf("pagefile: src must be exactly %d bytes", PageSize)
	}
	if n < 0 || n >= pf.totalPages {
		return fmt.Errorf("%w: %d (have %d)", ErrNoSuchPage, n, pf.totalPages)
	}
	wn, err := pf.f.WriteAt(src, int64(n)*PageSize)
	if err != nil {
		return fmt.Errorf("pagefile: write page %d: %w", n, err)
	}
	if wn != PageSize {
		return io.ErrShortWrite
	}
	pf.curPage = n
	return pf.f.Sync()
}

// ReadFirstBlock reads page 0 and leaves the cursor there.
func (pf *File) ReadFirstBlock(dst []byte) error { return pf.ReadBlock(0, dst) }

// ReadLastBlock reads the last page and leaves the cursor there.
func (pf *File) ReadLastBlock(dst []byte) error { return pf.ReadBlock(pf.totalPages-1, dst) }

// ReadCurrentBlock re-reads the page under the cursor.
func (pf *File) ReadCurrentBlock(dst []byte) error { return pf.ReadBlock(pf.curPage, dst) }

// ReadPreviousBlock reads the page before the cursor.
func (pf *File) ReadPreviousBlock(dst []byte) error { return pf.ReadBlock(pf.curPage-1, dst) }

// ReadNextBlock reads the page after the cursor.
func (pf *File) ReadNextBlock(dst []byte) error { return pf.ReadBlock(pf.curPage+1, dst) }

// AppendEmptyBlock extends the file by one zero-filled page.
func (pf *File) AppendEmptyBlock() error {
	if pf == nil || pf.f == nil {
		return ErrClosed
	}
	zero := make([]byte, PageSize)
	if _, err := pf.f.WriteAt(zero, int64(pf.totalPages)*PageSize); err != nil {
		return fmt.Errorf("pagefile: append page %d: %w", pf.totalPages, err)
	}
	pf.totalPages++
	return nil
}

// EnsureCapacity appends empty pages until the file holds at least m pages.
func (pf *File) EnsureCapacity(m int) error {
	if pf == nil || pf.f == nil {
		return ErrClosed
	}
	if pf.totalPages >= m {
		return nil
	}
	slog.Debug("pagefile: extending file", "name", pf.name, "from", pf.totalPages, "to", m)
	for pf.totalPages < m {
		if err := pf.AppendEmptyBlock(); err != nil {
			return err
		}
	}
	return nil
}
