package migrate

import (
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("create table a(id int); insert into a values (1);")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
}

func TestSplitStatementsRespectsQuotedSemicolons(t *testing.T) {
	stmts := splitStatements(`insert into notes(body) values ('a; b; c'); select 1;`)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if !strings.Contains(stmts[0], "'a; b; c'") {
		t.Fatalf("quoted semicolons must stay inside the statement: %q", stmts[0])
	}
}

func TestSplitStatementsKeepsTrailingFragment(t *testing.T) {
	stmts := splitStatements("select 1")
	if len(stmts) != 1 {
		t.Fatalf("expected trailing fragment, got %q", stmts)
	}
	if len(splitStatements("   \n  ")) != 0 {
		t.Fatal("whitespace-only input should yield nothing")
	}
}
