// Command minidb is a line-oriented client for a single disk-backed
// table: a fixed (id, username, email) schema stored in a B+ tree.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/oda/minidb/internal/btree"
	"github.com/oda/minidb/internal/repl"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: minidb <dbfile>")
		os.Exit(1)
	}

	tree, err := btree.Open(os.Args[1])
	if err != nil {
		log.Fatalf("minidb: %v", err)
	}

	os.Exit(repl.New(tree, os.Stdin, os.Stdout).Run())
}
