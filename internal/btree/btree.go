// Package btree implements the on-disk B+ tree: point lookup, the
// start-of-table and find cursors, ordered insert with leaf and
// internal splits, full table scans, and the pre-order tree dump used
// by the REPL's ".btree" command. It is the only package that
// interprets node.go's byte layouts as a connected tree; the pager
// below it knows nothing about keys, and the row package above it
// knows nothing about pages.
package btree

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/oda/minidb/internal/node"
	"github.com/oda/minidb/internal/pager"
	"github.com/oda/minidb/internal/row"
)

// ErrDuplicateKey is returned by Insert when the id is already present.
var ErrDuplicateKey = errors.New("btree: duplicate key")

// Tree is a B+ tree rooted at page 0 of a pager-managed file.
type Tree struct {
	pager *pager.Pager
}

// Open opens path via the pager and ensures page 0 exists as an empty
// leaf root, as required of a freshly created data file.
func Open(path string) (*Tree, error) {
	p, err := pager.Open(path)
	if err != nil {
		return nil, err
	}

	t := &Tree{pager: p}

	if p.NumPages() == 0 {
		root, err := p.GetPage(0)
		if err != nil {
			return nil, err
		}
		node.InitLeaf(root)
		node.SetIsRoot(root, true)
	}

	return t, nil
}

// Close flushes every cached page and closes the underlying file.
func (t *Tree) Close() error {
	return t.pager.FlushAllAndClose()
}

// Cursor identifies a logical position in the table: a cell within a
// leaf page, or the position just past the last row.
type Cursor struct {
	PageNum    uint32
	CellNum    uint32
	EndOfTable bool
}

// Find descends from the root to the leaf that would contain key,
// returning a cursor at the smallest cell index whose key is >= key.
func (t *Tree) Find(key uint32) (Cursor, error) {
	pageNum := uint32(0)
	for {
		page, err := t.pager.GetPage(pageNum)
		if err != nil {
			return Cursor{}, err
		}
		if node.NodeType(page) == node.TypeLeaf {
			return Cursor{PageNum: pageNum, CellNum: uint32(node.LeafFind(page, key))}, nil
		}
		pageNum = node.ChildForKey(page, key)
	}
}

// TableStart returns a cursor at the first row in key order.
func (t *Tree) TableStart() (Cursor, error) {
	pageNum := uint32(0)
	for {
		page, err := t.pager.GetPage(pageNum)
		if err != nil {
			return Cursor{}, err
		}
		if node.NodeType(page) == node.TypeLeaf {
			return Cursor{PageNum: pageNum, CellNum: 0, EndOfTable: node.NumCells(page) == 0}, nil
		}
		pageNum = node.InternalChild(page, 0)
	}
}

// Advance moves cur to the next cell in key order, following the
// sibling chain across leaf boundaries.
func (t *Tree) Advance(cur *Cursor) error {
	page, err := t.pager.GetPage(cur.PageNum)
	if err != nil {
		return err
	}

	cur.CellNum++
	if cur.CellNum < node.NumCells(page) {
		return nil
	}

	next := node.NextLeaf(page)
	if next == 0 {
		cur.EndOfTable = true
		return nil
	}
	cur.PageNum = next
	cur.CellNum = 0
	return nil
}

// RowAt deserializes the row at the cursor's current position.
func (t *Tree) RowAt(cur Cursor, dst *row.Row) error {
	page, err := t.pager.GetPage(cur.PageNum)
	if err != nil {
		return err
	}
	row.Deserialize(node.CellValue(page, int(cur.CellNum)), dst)
	return nil
}

// Insert adds r to the tree, splitting nodes as needed. Returns
// ErrDuplicateKey if r.ID is already present.
func (t *Tree) Insert(r *row.Row) error {
	cur, err := t.Find(r.ID)
	if err != nil {
		return err
	}

	page, err := t.pager.GetPage(cur.PageNum)
	if err != nil {
		return err
	}

	if int(cur.CellNum) < int(node.NumCells(page)) && node.CellKey(page, int(cur.CellNum)) == r.ID {
		return ErrDuplicateKey
	}

	buf := make([]byte, row.Size)
	row.Serialize(r, buf)

	if node.NumCells(page) < node.LeafNodeMaxCells {
		node.InsertCell(page, int(cur.CellNum), r.ID, buf)
		return nil
	}

	return t.splitLeafAndInsert(cur.PageNum, int(cur.CellNum), r.ID, buf)
}

type leafCell struct {
	key   uint32
	value []byte
}

// splitLeafAndInsert distributes the leaf's existing cells plus the
// new one across the original page and a freshly allocated sibling,
// then links the new sibling into its parent.
func (t *Tree) splitLeafAndInsert(origPageNum uint32, at int, key uint32, value []byte) error {
	origPage, err := t.pager.GetPage(origPageNum)
	if err != nil {
		return err
	}

	wasRoot := node.IsRoot(origPage)
	origParent := node.Parent(origPage)
	origNext := node.NextLeaf(origPage)

	n := int(node.NumCells(origPage))
	cells := make([]leafCell, 0, n+1)
	for i := 0; i < n; i++ {
		v := make([]byte, row.Size)
		copy(v, node.CellValue(origPage, i))
		cells = append(cells, leafCell{key: node.CellKey(origPage, i), value: v})
	}
	tail := append([]leafCell{}, cells[at:]...)
	cells = append(cells[:at], leafCell{key: key, value: value})
	cells = append(cells, tail...)

	leftCount := (len(cells) + 1) / 2

	node.SetNumCells(origPage, 0)
	for i, c := range cells[:leftCount] {
		node.InsertCell(origPage, i, c.key, c.value)
	}

	rightPageNum := t.pager.NumPages()
	rightPage, err := t.pager.GetPage(rightPageNum)
	if err != nil {
		return err
	}
	node.InitLeaf(rightPage)
	for i, c := range cells[leftCount:] {
		node.InsertCell(rightPage, i, c.key, c.value)
	}

	node.SetNextLeaf(rightPage, origNext)
	node.SetNextLeaf(origPage, rightPageNum)
	node.SetParent(rightPage, origParent)

	if wasRoot {
		return t.createNewRootAfterSplit(origPageNum, rightPageNum)
	}
	return t.internalInsert(origParent, origPageNum, rightPageNum)
}

// createNewRootAfterSplit preserves page 0's identity as the root: the
// old root's bytes move to a freshly allocated page N, and page 0 is
// rewritten in place as a fresh internal node with two children, N and
// right.
func (t *Tree) createNewRootAfterSplit(leftPageNum, rightPageNum uint32) error {
	leftPage, err := t.pager.GetPage(leftPageNum)
	if err != nil {
		return err
	}

	newLeftPageNum := t.pager.NumPages()
	newLeftPage, err := t.pager.GetPage(newLeftPageNum)
	if err != nil {
		return err
	}
	copy(newLeftPage, leftPage)
	node.SetIsRoot(newLeftPage, false)
	node.SetParent(newLeftPage, 0)

	if err := t.reparentChildren(newLeftPage, newLeftPageNum); err != nil {
		return err
	}

	rightPage, err := t.pager.GetPage(rightPageNum)
	if err != nil {
		return err
	}
	node.SetIsRoot(rightPage, false)
	node.SetParent(rightPage, 0)

	node.InitInternal(leftPage)
	node.SetIsRoot(leftPage, true)
	node.SetParent(leftPage, 0)
	node.SetNumKeys(leftPage, 1)
	node.SetInternalChild(leftPage, 0, newLeftPageNum)
	node.SetInternalKey(leftPage, 0, t.maxKey(newLeftPageNum))
	node.SetRightChild(leftPage, rightPageNum)

	return nil
}

// reparentChildren fixes the parent pointer of every child of an
// internal node that has just moved to a new page number. Leaves have
// no children and are left untouched.
func (t *Tree) reparentChildren(page []byte, newParent uint32) error {
	if node.NodeType(page) == node.TypeLeaf {
		return nil
	}
	for i := 0; i < int(node.NumKeys(page)); i++ {
		child, err := t.pager.GetPage(node.InternalChild(page, i))
		if err != nil {
			return err
		}
		node.SetParent(child, newParent)
	}
	rc, err := t.pager.GetPage(node.RightChild(page))
	if err != nil {
		return err
	}
	node.SetParent(rc, newParent)
	return nil
}

// maxKey returns the largest key stored in the subtree rooted at pageNum.
func (t *Tree) maxKey(pageNum uint32) uint32 {
	page, err := t.pager.GetPage(pageNum)
	if err != nil {
		return 0
	}
	if node.NodeType(page) == node.TypeLeaf {
		return node.LeafMaxKey(page)
	}
	return t.maxKey(node.RightChild(page))
}

// findChildCell returns the index of the cell in parent whose child
// pointer is childPageNum. If childPageNum is parent's right_child
// instead, isRightChild is true and idx is meaningless: right_child
// carries no stored key to update.
func findChildCell(parent []byte, childPageNum uint32) (idx int, isRightChild bool) {
	n := int(node.NumKeys(parent))
	for i := 0; i < n; i++ {
		if node.InternalChild(parent, i) == childPageNum {
			return i, false
		}
	}
	return -1, true
}

// internalInsert links newChild into parent after leftChild (whose
// max key may have just changed) has been split or otherwise grown a
// sibling. It corresponds to the reference's Internal-insert routine:
// the stale separator for leftChild is refreshed before the new entry
// is placed.
func (t *Tree) internalInsert(parentPageNum, leftChildPageNum, newChildPageNum uint32) error {
	parentPage, err := t.pager.GetPage(parentPageNum)
	if err != nil {
		return err
	}

	if idx, isRight := findChildCell(parentPage, leftChildPageNum); !isRight {
		node.SetInternalKey(parentPage, idx, t.maxKey(leftChildPageNum))
	}

	newChildMax := t.maxKey(newChildPageNum)
	rightChildBefore := node.RightChild(parentPage)
	rightChildBeforeMax := t.maxKey(rightChildBefore)

	if int(node.NumKeys(parentPage)) < node.InternalNodeMaxCells {
		newChildPage, err := t.pager.GetPage(newChildPageNum)
		if err != nil {
			return err
		}

		if newChildMax > rightChildBeforeMax {
			at := int(node.NumKeys(parentPage))
			node.InsertInternalCell(parentPage, at, rightChildBefore, rightChildBeforeMax)
			node.SetRightChild(parentPage, newChildPageNum)
		} else {
			at := node.InternalFind(parentPage, newChildMax)
			node.InsertInternalCell(parentPage, at, newChildPageNum, newChildMax)
		}
		node.SetParent(newChildPage, parentPageNum)
		return nil
	}

	return t.splitInternalAndInsert(parentPageNum, newChildPageNum, newChildMax)
}

type internalPair struct {
	child uint32
	key   uint32
}

// splitInternalAndInsert handles the full internal node, symmetric to
// splitLeafAndInsert: the node's existing cells, its current
// right_child (assigned its subtree max as a sort key), and the new
// child are combined, sorted, and split at the midpoint. The combined
// entry with the largest key never gets a stored key of its own —
// it becomes the right_child of whichever half it lands in.
func (t *Tree) splitInternalAndInsert(parentPageNum, newChildPageNum, newChildMax uint32) error {
	parentPage, err := t.pager.GetPage(parentPageNum)
	if err != nil {
		return err
	}

	wasRoot := node.IsRoot(parentPage)
	grandparent := node.Parent(parentPage)

	n := int(node.NumKeys(parentPage))
	pairs := make([]internalPair, 0, n+2)
	for i := 0; i < n; i++ {
		pairs = append(pairs, internalPair{child: node.InternalChild(parentPage, i), key: node.InternalKey(parentPage, i)})
	}
	rightChildBefore := node.RightChild(parentPage)
	pairs = append(pairs, internalPair{child: rightChildBefore, key: t.maxKey(rightChildBefore)})
	pairs = append(pairs, internalPair{child: newChildPageNum, key: newChildMax})

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	leftCount := (len(pairs) + 1) / 2
	left := pairs[:leftCount]
	right := pairs[leftCount:]
	promotedKey := left[leftCount-1].key

	node.InitInternal(parentPage)
	node.SetParent(parentPage, grandparent)
	for i := 0; i < leftCount-1; i++ {
		node.InsertInternalCell(parentPage, i, left[i].child, left[i].key)
	}
	node.SetRightChild(parentPage, left[leftCount-1].child)

	newRightPageNum := t.pager.NumPages()
	newRightPage, err := t.pager.GetPage(newRightPageNum)
	if err != nil {
		return err
	}
	node.InitInternal(newRightPage)
	node.SetParent(newRightPage, grandparent)
	for i := 0; i < len(right)-1; i++ {
		node.InsertInternalCell(newRightPage, i, right[i].child, right[i].key)
		childPage, err := t.pager.GetPage(right[i].child)
		if err != nil {
			return err
		}
		node.SetParent(childPage, newRightPageNum)
	}
	node.SetRightChild(newRightPage, right[len(right)-1].child)
	lastChildPage, err := t.pager.GetPage(right[len(right)-1].child)
	if err != nil {
		return err
	}
	node.SetParent(lastChildPage, newRightPageNum)

	if wasRoot {
		return t.createNewRootAfterInternalSplit(parentPageNum, newRightPageNum, promotedKey)
	}
	return t.internalInsert(grandparent, parentPageNum, newRightPageNum)
}

// createNewRootAfterInternalSplit is createNewRootAfterSplit's
// counterpart for an internal root: the page-0 identity rule applies
// the same way, but the promoted separator is supplied directly
// rather than recomputed from the left child's max key.
func (t *Tree) createNewRootAfterInternalSplit(leftPageNum, rightPageNum, promotedKey uint32) error {
	leftPage, err := t.pager.GetPage(leftPageNum)
	if err != nil {
		return err
	}

	newLeftPageNum := t.pager.NumPages()
	newLeftPage, err := t.pager.GetPage(newLeftPageNum)
	if err != nil {
		return err
	}
	copy(newLeftPage, leftPage)
	node.SetIsRoot(newLeftPage, false)
	node.SetParent(newLeftPage, 0)
	if err := t.reparentChildren(newLeftPage, newLeftPageNum); err != nil {
		return err
	}

	rightPage, err := t.pager.GetPage(rightPageNum)
	if err != nil {
		return err
	}
	node.SetIsRoot(rightPage, false)
	node.SetParent(rightPage, 0)

	node.InitInternal(leftPage)
	node.SetIsRoot(leftPage, true)
	node.SetParent(leftPage, 0)
	node.SetNumKeys(leftPage, 1)
	node.SetInternalChild(leftPage, 0, newLeftPageNum)
	node.SetInternalKey(leftPage, 0, promotedKey)
	node.SetRightChild(leftPage, rightPageNum)

	return nil
}

// Select calls fn for every row in ascending key order, stopping early
// if fn returns false.
func (t *Tree) Select(fn func(r *row.Row) bool) error {
	cur, err := t.TableStart()
	if err != nil {
		return err
	}

	var r row.Row
	for !cur.EndOfTable {
		if err := t.RowAt(cur, &r); err != nil {
			return err
		}
		if !fn(&r) {
			return nil
		}
		if err := t.Advance(&cur); err != nil {
			return err
		}
	}
	return nil
}

// Print writes the pre-order tree dump used by ".btree" to w.
func (t *Tree) Print(w io.Writer) error {
	return t.printNode(w, 0, 0)
}

func (t *Tree) printNode(w io.Writer, pageNum uint32, depth int) error {
	page, err := t.pager.GetPage(pageNum)
	if err != nil {
		return err
	}

	indent := func(extra int) string {
		return strings.Repeat("  ", depth+extra)
	}

	if node.NodeType(page) == node.TypeLeaf {
		n := int(node.NumCells(page))
		fmt.Fprintf(w, "%sleaf (size %d)\n", indent(0), n)
		for i := 0; i < n; i++ {
			fmt.Fprintf(w, "%s- %d : %d\n", indent(1), i, node.CellKey(page, i))
		}
		return nil
	}

	numKeys := int(node.NumKeys(page))
	fmt.Fprintf(w, "%sinternal (size %d)\n", indent(0), numKeys)
	for i := 0; i < numKeys; i++ {
		if err := t.printNode(w, node.InternalChild(page, i), depth+1); err != nil {
			return err
		}
		fmt.Fprintf(w, "%skey %d\n", indent(1), node.InternalKey(page, i))
	}
	return t.printNode(w, node.RightChild(page), depth+1)
}
