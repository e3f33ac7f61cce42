package node

import (
	"bytes"
	"testing"

	"github.com/oda/minidb/internal/row"
)

func valueFor(id uint32) []byte {
	buf := make([]byte, row.Size)
	r := row.Row{ID: id, Username: "user", Email: "person@example.com"}
	row.Serialize(&r, buf)
	return buf
}

func TestLeafInsertAndFind(t *testing.T) {
	page := make([]byte, PageSize)
	InitLeaf(page)

	if NumCells(page) != 0 {
		t.Fatalf("expected 0 cells, got %d", NumCells(page))
	}

	ids := []uint32{10, 5, 15, 7}
	for _, id := range ids {
		at := LeafFind(page, id)
		InsertCell(page, at, id, valueFor(id))
	}

	if NumCells(page) != 4 {
		t.Fatalf("expected 4 cells, got %d", NumCells(page))
	}

	want := []uint32{5, 7, 10, 15}
	for i, w := range want {
		if got := CellKey(page, i); got != w {
			t.Errorf("cell %d: got key %d, want %d", i, got, w)
		}
	}

	at := LeafFind(page, 7)
	if !bytes.Equal(CellValue(page, at), valueFor(7)) {
		t.Errorf("cell value at key 7 mismatch")
	}
}

func TestLeafFindInsertionPoint(t *testing.T) {
	page := make([]byte, PageSize)
	InitLeaf(page)

	for _, id := range []uint32{1, 2, 3} {
		InsertCell(page, int(NumCells(page)), id, valueFor(id))
	}

	if at := LeafFind(page, 4); at != 3 {
		t.Errorf("expected insertion point 3 for key past the end, got %d", at)
	}
	if at := LeafFind(page, 0); at != 0 {
		t.Errorf("expected insertion point 0 for key before the start, got %d", at)
	}
}

func TestLeafMaxKeyEmpty(t *testing.T) {
	page := make([]byte, PageSize)
	InitLeaf(page)

	if got := LeafMaxKey(page); got != 0 {
		t.Errorf("expected max key 0 for empty leaf, got %d", got)
	}
}

func TestLeafNodeMaxCellsMatchesConstants(t *testing.T) {
	if LeafNodeMaxCells != 13 {
		t.Errorf("LeafNodeMaxCells = %d, want 13", LeafNodeMaxCells)
	}
	if CellSize != 297 {
		t.Errorf("CellSize = %d, want 297", CellSize)
	}
}
