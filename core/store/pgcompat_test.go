package store

import "testing"

func TestRewritePlaceholders(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM users WHERE id=?", "SELECT * FROM users WHERE id=$1"},
		{"INSERT INTO t(a,b,c) VALUES(?,?,?)", "INSERT INTO t(a,b,c) VALUES($1,$2,$3)"},
		{"SELECT * FROM t WHERE name='a?b' AND id=?", "SELECT * FROM t WHERE name='a?b' AND id=$1"},
		{`SELECT "odd?col" FROM t WHERE id=?`, `SELECT "odd?col" FROM t WHERE id=$1`},
	}
	for _, tc := range cases {
		if got := rewritePlaceholders(tc.in); got != tc.want {
			t.Errorf("rewrite(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
