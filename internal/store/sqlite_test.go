package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chatport/chatport/internal/sqlgen"
	"github.com/chatport/chatport/internal/webui"
)

const testSchema = `
CREATE TABLE chat (
	id TEXT PRIMARY KEY,
	user_id TEXT,
	title TEXT,
	share_id TEXT,
	archived INTEGER,
	created_at INTEGER,
	updated_at INTEGER,
	chat TEXT,
	pinned INTEGER,
	meta TEXT,
	folder_id TEXT
);
CREATE TABLE file (
	id TEXT PRIMARY KEY,
	user_id TEXT,
	hash TEXT,
	filename TEXT,
	data TEXT,
	meta TEXT,
	path TEXT,
	created_at INTEGER,
	updated_at INTEGER
);
CREATE TABLE tag (
	id TEXT,
	name TEXT,
	user_id TEXT,
	meta TEXT,
	PRIMARY KEY (id, user_id)
);
`

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "webui.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Apply(context.Background(), testSchema); err != nil {
		t.Fatal(err)
	}
	return s
}

// Applying the same emitted script twice must leave exactly one row per
// stable id.
func TestApply_ReplayConverges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := sqlgen.New("main")
	tags := sqlgen.TagSet([]string{"imported"})

	var stmts []string
	stmts = append(stmts, e.TagUpserts("u1", tags)...)
	stmts = append(stmts, e.FileStatements(&webui.FileRow{
		ID: "f1", UserID: "u1", Hash: "h", Filename: "a.bin",
		Path: "uploads/f1_a.bin", CreatedAt: 1, UpdatedAt: 1,
	})...)
	stmts = append(stmts, e.ChatStatements("c1", "u1", "twice", 1, `{"title":"twice"}`, `{"tags":["imported"]}`)...)
	script := strings.Join(stmts, "\n")

	if err := s.Apply(ctx, script); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := s.Apply(ctx, script); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	for _, q := range []struct {
		table string
		want  int
	}{
		{"chat", 1},
		{"file", 1},
		{"tag", len(tags)},
	} {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+q.table).Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != q.want {
			t.Errorf("%s rows = %d, want %d", q.table, n, q.want)
		}
	}

	var title string
	if err := s.db.QueryRowContext(ctx, "SELECT title FROM chat WHERE id = 'c1'").Scan(&title); err != nil {
		t.Fatal(err)
	}
	if title != "twice" {
		t.Errorf("title = %q", title)
	}
}
