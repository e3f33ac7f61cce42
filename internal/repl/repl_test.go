package repl

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/oda/minidb/internal/btree"
)

func run(t *testing.T, path, input string) string {
	t.Helper()
	tree, err := btree.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	var out strings.Builder
	New(tree, strings.NewReader(input), &out).Run()
	return out.String()
}

func TestScenarioA_BasicInsertSelect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	input := "insert 1 user1 person1@example.com\nselect\n.exit\n"
	want := "db > Executed.\n" +
		"db > (1, user1, person1@example.com)\nExecuted.\n" +
		"db > \n"

	if got := run(t, path, input); got != want {
		t.Errorf("output mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestScenarioB_DuplicateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	input := "insert 1 user1 person1@example.com\n" +
		"insert 1 user1 person1@example.com\n" +
		"select\n.exit\n"
	want := "db > Executed.\n" +
		"db > Error: Duplicate key.\n" +
		"db > (1, user1, person1@example.com)\nExecuted.\n" +
		"db > \n"

	if got := run(t, path, input); got != want {
		t.Errorf("output mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestScenarioD_OverLengthStrings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	input := "insert 1 " + strings.Repeat("a", 33) + " " + strings.Repeat("a", 256) + "\n" +
		"select\n.exit\n"
	want := "db > String is too long.\n" +
		"db > Executed.\n" +
		"db > \n"

	if got := run(t, path, input); got != want {
		t.Errorf("output mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestScenarioE_NegativeID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	input := "insert -1 cstack foo@bar.com\n.exit\n"
	want := "db > ID must be positive.\n" +
		"db > \n"

	if got := run(t, path, input); got != want {
		t.Errorf("output mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestScenarioF_Constants(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	want := "db > Constants:\n" +
		"ROW_SIZE: 293\n" +
		"COMMON_NODE_HEADER_SIZE: 6\n" +
		"LEAF_NODE_HEADER_SIZE: 10\n" +
		"LEAF_NODE_CELL_SIZE: 297\n" +
		"LEAF_NODE_SPACE_FOR_CELLS: 4086\n" +
		"LEAF_NODE_MAX_CELLS: 13\n" +
		"db > \n"

	if got := run(t, path, ".constants\n.exit\n"); got != want {
		t.Errorf("output mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestScenarioG_ThreeRowTreeDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	input := "insert 3 u e\ninsert 1 u e\ninsert 2 u e\n.btree\n.exit\n"
	want := "db > Executed.\n" +
		"db > Executed.\n" +
		"db > Executed.\n" +
		"db > Tree:\n" +
		"leaf (size 3)\n" +
		"  - 0 : 1\n" +
		"  - 1 : 2\n" +
		"  - 2 : 3\n" +
		"db > \n"

	if got := run(t, path, input); got != want {
		t.Errorf("output mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestScenarioH_PersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	run(t, path, "insert 1 user1 person1@example.com\n.exit\n")

	got := run(t, path, "select\n.exit\n")
	want := "db > (1, user1, person1@example.com)\nExecuted.\n" +
		"db > \n"

	if got != want {
		t.Errorf("output mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}
