// Package repl implements the line-oriented front end: meta-command
// dispatch (the dot-commands), statement parsing and validation, and
// the exact prompt/output formatting the external interface requires.
// It is the only package that talks to stdin/stdout; everything below
// it works in terms of rows and cursors, not text.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/oda/minidb/internal/btree"
	"github.com/oda/minidb/internal/node"
	"github.com/oda/minidb/internal/pager"
	"github.com/oda/minidb/internal/row"
)

const prompt = "db > "

var errUnrecognizedStatement = errors.New("repl: unrecognized statement")

// REPL owns the input/output streams and the tree it drives.
type REPL struct {
	tree *btree.Tree
	in   *bufio.Scanner
	out  io.Writer
}

// New wraps a tree with an input/output pair. in is typically stdin,
// out stdout.
func New(tree *btree.Tree, in io.Reader, out io.Writer) *REPL {
	return &REPL{tree: tree, in: bufio.NewScanner(in), out: out}
}

// Run reads lines until EOF or ".exit", dispatching each to a
// meta-command or statement handler. It returns the process exit code:
// 0 on a clean ".exit" or EOF, non-zero if a fatal pager error surfaces.
func (r *REPL) Run() int {
	for {
		fmt.Fprint(r.out, prompt)

		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			return 0
		}

		line := strings.TrimSpace(r.in.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			code, done := r.doMeta(line)
			if done {
				fmt.Fprintln(r.out)
				return code
			}
			continue
		}

		if err := r.doStatement(line); err != nil {
			if errors.Is(err, pager.ErrTooManyPages) || errors.Is(err, pager.ErrPageOutOfRange) ||
				errors.Is(err, pager.ErrCorruptFile) || errors.Is(err, pager.ErrIOError) {
				log.Printf("minidb: %v", err)
				return 1
			}
			fmt.Fprintln(r.out, translate(err))
		}
	}
}

// translate maps an internal sentinel error to the exact message the
// external interface requires.
func translate(err error) string {
	switch {
	case errors.Is(err, row.ErrNegativeID):
		return "ID must be positive."
	case errors.Is(err, row.ErrStringTooLong):
		return "String is too long."
	case errors.Is(err, row.ErrSyntax), errors.Is(err, errUnrecognizedStatement):
		return "Syntax error. Could not parse statement."
	case errors.Is(err, btree.ErrDuplicateKey):
		return "Error: Duplicate key."
	default:
		return err.Error()
	}
}

// doMeta handles a dot-command. done is true when the REPL should
// stop, in which case code is the process exit code.
func (r *REPL) doMeta(line string) (code int, done bool) {
	switch line {
	case ".exit":
		if err := r.tree.Close(); err != nil {
			fmt.Fprintln(r.out, err)
			return 1, true
		}
		return 0, true

	case ".btree":
		fmt.Fprintln(r.out, "Tree:")
		if err := r.tree.Print(r.out); err != nil {
			log.Printf("minidb: %v", err)
			return 1, true
		}
		return 0, false

	case ".constants":
		fmt.Fprintln(r.out, "Constants:")
		fmt.Fprintf(r.out, "ROW_SIZE: %d\n", row.Size)
		fmt.Fprintf(r.out, "COMMON_NODE_HEADER_SIZE: %d\n", node.CommonNodeHeaderSize)
		fmt.Fprintln(r.out, "LEAF_NODE_HEADER_SIZE: 10")
		fmt.Fprintf(r.out, "LEAF_NODE_CELL_SIZE: %d\n", node.CellSize)
		fmt.Fprintln(r.out, "LEAF_NODE_SPACE_FOR_CELLS: 4086")
		fmt.Fprintf(r.out, "LEAF_NODE_MAX_CELLS: %d\n", node.LeafNodeMaxCells)
		return 0, false

	default:
		fmt.Fprintf(r.out, "Unrecognized command '%s'.\n", line)
		return 0, false
	}
}

// doStatement parses and executes "insert ..." or "select". Recoverable
// errors are returned for the caller to print; they never terminate
// the loop.
func (r *REPL) doStatement(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return row.ErrSyntax
	}

	switch fields[0] {
	case "insert":
		return r.doInsert(fields)
	case "select":
		return r.doSelect()
	default:
		return errUnrecognizedStatement
	}
}

func (r *REPL) doInsert(fields []string) error {
	if len(fields) != 4 {
		return row.ErrSyntax
	}

	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return row.ErrSyntax
	}
	if id < 0 {
		return row.ErrNegativeID
	}

	username, email := fields[2], fields[3]
	if err := row.Validate(username, email); err != nil {
		return err
	}

	rec := row.Row{ID: uint32(id), Username: username, Email: email}
	if err := r.tree.Insert(&rec); err != nil {
		return err
	}

	fmt.Fprintln(r.out, "Executed.")
	return nil
}

func (r *REPL) doSelect() error {
	err := r.tree.Select(func(rec *row.Row) bool {
		fmt.Fprintf(r.out, "(%d, %s, %s)\n", rec.ID, rec.Username, rec.Email)
		return true
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Executed.")
	return nil
}
