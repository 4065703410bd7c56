package lint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodDoc = `
kind: financial_report
version: 1
fields:
  - name: report_id
    type: string
    constraints:
      pattern: "^RPT-[0-9]{6}$"
  - name: client_id
    type: string
  - name: gross_amount
    type: decimal
rules:
  - name: amounts_non_negative
    kind: cross-field
    predicate: non_negative
reconcile_key: [client_id]
`

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestFileClean(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "good.yaml", goodDoc)
	assert.Empty(t, File(filepath.Join(dir, "good.yaml")))
}

func TestFileProblems(t *testing.T) {
	cases := map[string]struct {
		doc  string
		want string
	}{
		"missing kind": {
			doc:  "version: 1\nfields:\n  - name: a\n    type: string\n",
			want: "kind is required",
		},
		"zero version": {
			doc:  "kind: x\nfields:\n  - name: a\n    type: string\n",
			want: "version must be positive",
		},
		"no fields": {
			doc:  "kind: x\nversion: 1\n",
			want: "at least one field is required",
		},
		"duplicate field": {
			doc:  "kind: x\nversion: 1\nfields:\n  - name: a\n    type: string\n  - name: a\n    type: int\n",
			want: `duplicate field "a"`,
		},
		"unknown type": {
			doc:  "kind: x\nversion: 1\nfields:\n  - name: a\n    type: varchar\n",
			want: `unknown type "varchar"`,
		},
		"bad pattern": {
			doc:  "kind: x\nversion: 1\nfields:\n  - name: a\n    type: string\n    constraints:\n      pattern: \"(\"\n",
			want: "invalid pattern",
		},
		"unknown rule kind": {
			doc:  "kind: x\nversion: 1\nfields:\n  - name: a\n    type: string\nrules:\n  - name: r\n    kind: per-field\n",
			want: `unknown kind "per-field"`,
		},
		"unknown predicate": {
			doc:  "kind: x\nversion: 1\nfields:\n  - name: a\n    type: string\nrules:\n  - name: r\n    kind: cross-field\n    predicate: sounds_plausible\n",
			want: `unknown predicate "sounds_plausible"`,
		},
		"ghost reconcile key": {
			doc:  "kind: x\nversion: 1\nfields:\n  - name: a\n    type: string\nreconcile_key: [ghost]\n",
			want: `reconcile_key references unknown field "ghost"`,
		},
	}

	dir := t.TempDir()
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "doc.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.doc), 0o644))
			errs := File(path)
			require.NotEmpty(t, errs)
			found := false
			for _, err := range errs {
				if strings.Contains(err.Error(), tc.want) {
					found = true
				}
			}
			assert.True(t, found, "expected an error containing %q, got %v", tc.want, errs)
		})
	}
}

func TestFileMultiDocument(t *testing.T) {
	dir := t.TempDir()
	bad := "kind: x\nversion: 1\nfields:\n  - name: a\n    type: varchar\n"
	writeDoc(t, dir, "multi.yaml", goodDoc+"\n---\n"+bad)

	errs := File(filepath.Join(dir, "multi.yaml"))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "document 1")
}

func TestFileUnparseable(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "broken.yaml", "kind: [unclosed\n")
	assert.NotEmpty(t, File(filepath.Join(dir, "broken.yaml")))
}

func TestDir(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "good.yaml", goodDoc)
	writeDoc(t, dir, "bad.yml", "kind: x\nversion: 1\n")
	writeDoc(t, dir, "ignored.txt", "not yaml")

	results, err := Dir(dir)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Empty(t, results["good.yaml"])
	assert.NotEmpty(t, results["bad.yml"])
}

func TestDirMissing(t *testing.T) {
	_, err := Dir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
