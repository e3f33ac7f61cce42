package pager

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.FlushAllAndClose()

	if p.NumPages() != 0 {
		t.Errorf("expected 0 pages for a new file, got %d", p.NumPages())
	}
}

func TestGetPageAllocatesSequentially(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.FlushAllAndClose()

	page0, err := p.GetPage(0)
	if err != nil {
		t.Fatalf("GetPage(0) failed: %v", err)
	}
	if len(page0) != PageSize {
		t.Errorf("expected page size %d, got %d", PageSize, len(page0))
	}
	if p.NumPages() != 1 {
		t.Errorf("expected 1 page after allocating page 0, got %d", p.NumPages())
	}

	if _, err := p.GetPage(5); err == nil || !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange requesting page 5 with only 1 page allocated, got %v", err)
	}

	if _, err := p.GetPage(1); err != nil {
		t.Fatalf("GetPage(1) should allocate the next page, got %v", err)
	}
	if p.NumPages() != 2 {
		t.Errorf("expected 2 pages, got %d", p.NumPages())
	}
}

func TestGetPageTooManyPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.FlushAllAndClose()

	if _, err := p.GetPage(MaxPages); err == nil || !errors.Is(err, ErrTooManyPages) {
		t.Fatalf("expected ErrTooManyPages for page %d, got %v", MaxPages, err)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	p1, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	page, err := p1.GetPage(0)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	copy(page[0:5], []byte("hello"))

	if err := p1.FlushAllAndClose(); err != nil {
		t.Fatalf("FlushAllAndClose failed: %v", err)
	}

	p2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer p2.FlushAllAndClose()

	if p2.NumPages() != 1 {
		t.Errorf("expected 1 page after reopen, got %d", p2.NumPages())
	}

	page2, err := p2.GetPage(0)
	if err != nil {
		t.Fatalf("GetPage after reopen failed: %v", err)
	}
	if string(page2[0:5]) != "hello" {
		t.Errorf("data should persist, got %q", string(page2[0:5]))
	}
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := p.GetPage(0); err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if err := p.FlushAllAndClose(); err != nil {
		t.Fatalf("FlushAllAndClose failed: %v", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		t.Fatalf("reopening for truncate failed: %v", err)
	}
	if err := f.Truncate(PageSize / 2); err != nil {
		t.Fatalf("truncate failed: %v", err)
	}
	f.Close()

	if _, err := Open(path); err == nil || !errors.Is(err, ErrCorruptFile) {
		t.Fatalf("expected ErrCorruptFile, got %v", err)
	}
}
