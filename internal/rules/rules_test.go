package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/sarifer/internal/findings"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name    string
		defs    []Definition
		wantErr string
	}{
		{
			name: "valid definitions",
			defs: []Definition{
				{ID: "SPAM001", ContentsRegex: `password\s*=`},
				{ID: "SPAM002", ContentsRegex: `TODO`, FileNameAllowRegex: `\.go$`},
			},
		},
		{
			name:    "missing id",
			defs:    []Definition{{ContentsRegex: "x"}},
			wantErr: "rule definition is missing an id",
		},
		{
			name:    "missing contents regex",
			defs:    []Definition{{ID: "SPAM003"}},
			wantErr: `rule "SPAM003": contentsRegex is required`,
		},
		{
			name:    "duplicate id",
			defs:    []Definition{{ID: "A", ContentsRegex: "a"}, {ID: "A", ContentsRegex: "b"}},
			wantErr: `duplicate rule id "A"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := Compile(tt.defs)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, rs, len(tt.defs))
		})
	}
}

func TestCompileInvalidRegex(t *testing.T) {
	_, err := Compile([]Definition{{ID: "BAD", ContentsRegex: "("}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `rule "BAD"`)
}

func TestAppliesTo(t *testing.T) {
	r, err := CompileDefinition(Definition{
		ID:                 "GO",
		ContentsRegex:      "x",
		FileNameAllowRegex: `\.go$`,
		FileNameDenyRegex:  `_test\.go$`,
	})
	require.NoError(t, err)

	assert.True(t, r.AppliesTo("src/main.go"))
	assert.False(t, r.AppliesTo("src/main_test.go"))
	assert.False(t, r.AppliesTo("README.md"))
}

func TestMatch(t *testing.T) {
	r, err := CompileDefinition(Definition{
		ID:            "SECRET",
		Name:          "HardcodedSecret",
		Level:         "Error",
		Message:       "secret assigned to ${key}",
		ContentsRegex: `(?P<key>\w+)\s*=\s*"s3cr3t"`,
	})
	require.NoError(t, err)

	text := "package main\n\nvar token = \"s3cr3t\"\n"
	got := r.Match("main.go", text, NewLineIndex(text))
	require.Len(t, got, 1)

	f := got[0]
	assert.Equal(t, findings.KindFail, f.Kind)
	assert.Equal(t, findings.LevelError, f.Level)
	assert.Equal(t, "secret assigned to token", f.Message)
	assert.Equal(t, 3, f.StartLine)
	assert.Equal(t, 5, f.StartColumn)
	assert.Equal(t, 3, f.EndLine)
	assert.Equal(t, `token = "s3cr3t"`, f.Snippet)
}

func TestMatchWithoutHitsIsPass(t *testing.T) {
	r, err := CompileDefinition(Definition{ID: "NONE", ContentsRegex: "never"})
	require.NoError(t, err)

	got := r.Match("a.txt", "nothing here", NewLineIndex("nothing here"))
	require.Len(t, got, 1)
	assert.Equal(t, findings.KindPass, got[0].Kind)
	assert.Equal(t, findings.LevelNone, got[0].Level)
	assert.False(t, got[0].HasRegion())
}

func TestLineIndexPosition(t *testing.T) {
	idx := NewLineIndex("ab\nçd\n")

	line, col := idx.Position(0)
	assert.Equal(t, []int{1, 1}, []int{line, col})

	// "ç" is two bytes but one column.
	line, col = idx.Position(5)
	assert.Equal(t, []int{2, 2}, []int{line, col})

	line, col = idx.Position(100)
	assert.Equal(t, []int{3, 1}, []int{line, col})
	assert.Equal(t, 3, idx.Lines())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"definitions":[{"id":"A","contentsRegex":"a"}]}`), 0o644))

	defs, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Definition{{ID: "A", ContentsRegex: "a"}}, defs)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}
