package pager

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Pager owns the file handle and the in-memory page cache for exactly
// one data file. It is the only component that touches the file
// system; the B+ tree never opens, reads, or writes the file directly.
//
// Every cached page is considered dirty — the pager does not track a
// per-page dirty bit, matching the teaching reference this is built
// from. Eviction is not supported: MaxPages is a hard ceiling, not a
// working-set size.
type Pager struct {
	file      *os.File
	pages     [MaxPages][]byte
	pageCount uint32
}

// Open opens path for read-write access, creating it if it does not
// already exist. The file's length must be a multiple of PageSize.
func Open(path string) (*Pager, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("pager: open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("pager: stat %s: %w", path, err)
	}

	if info.Size()%PageSize != 0 {
		file.Close()
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrCorruptFile, path, info.Size())
	}

	return &Pager{
		file:      file,
		pageCount: uint32(info.Size() / PageSize),
	}, nil
}

// NumPages returns the current page count, including pages that exist
// only in the cache and have not yet been written to disk.
func (p *Pager) NumPages() uint32 {
	return p.pageCount
}

// GetPage returns the in-memory buffer for page i, loading it from
// disk or allocating a fresh zero page as needed. The returned slice
// aliases the pager's cache; mutations are visible to later GetPage
// calls for the same page without any extra Put step.
func (p *Pager) GetPage(i uint32) ([]byte, error) {
	if i >= MaxPages {
		return nil, fmt.Errorf("%w: page %d, max %d", ErrTooManyPages, i, MaxPages)
	}

	if p.pages[i] != nil {
		return p.pages[i], nil
	}

	switch {
	case i < p.pageCount:
		buf := make([]byte, PageSize)
		n, err := p.file.ReadAt(buf, int64(i)*PageSize)
		if err != nil && n != PageSize {
			return nil, fmt.Errorf("%w: reading page %d: %v", ErrIOError, i, err)
		}
		p.pages[i] = buf
		return buf, nil

	case i == p.pageCount:
		buf := make([]byte, PageSize)
		p.pages[i] = buf
		p.pageCount++
		return buf, nil

	default:
		return nil, fmt.Errorf("%w: page %d requested, only %d allocated", ErrPageOutOfRange, i, p.pageCount)
	}
}

// FlushAllAndClose writes every cached page back to its file offset
// and closes the file. It fsyncs before closing so a clean shutdown
// is durable on disk, mirroring the teaching reference's use of
// unix.Msync at the equivalent point in its mmap-backed pager.
func (p *Pager) FlushAllAndClose() error {
	for i := uint32(0); i < p.pageCount; i++ {
		page := p.pages[i]
		if page == nil {
			continue
		}
		n, err := p.file.WriteAt(page, int64(i)*PageSize)
		if err != nil || n != PageSize {
			return fmt.Errorf("%w: writing page %d: %v", ErrIOError, i, err)
		}
	}

	if err := unix.Fsync(int(p.file.Fd())); err != nil {
		return fmt.Errorf("%w: fsync: %v", ErrIOError, err)
	}

	if err := p.file.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrIOError, err)
	}

	return nil
}
