// Package pager manages on-demand, page-based access to a single flat
// data file. There is no file header, no magic number, and no version:
// the file is a raw sequence of PageSize-byte pages, and page 0 is
// always the B+ tree root.
package pager

import "errors"

// PageSize is the size of each page in bytes.
const PageSize = 4096

// MaxPages is the fixed size of the pager's in-memory page cache. The
// pager never evicts, so this is a hard ceiling on how large a file it
// can manage in one process lifetime.
const MaxPages = 100

// Errors surfaced by the pager. TooManyPages, PageOutOfRange,
// CorruptFile, and IOError are fatal per the error taxonomy: callers
// are expected to log and abort rather than recover.
var (
	ErrTooManyPages  = errors.New("pager: too many pages")
	ErrPageOutOfRange = errors.New("pager: page out of range")
	ErrCorruptFile    = errors.New("pager: file length is not a multiple of page size")
	ErrIOError        = errors.New("pager: short read or write")
)
