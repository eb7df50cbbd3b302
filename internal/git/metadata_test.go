package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepository(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "main.go"), []byte("package main\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("src/main.go")
	require.NoError(t, err)

	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "sarifer", Email: "sarifer@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{"https://github.com/scan-io-git/sarifer.git"},
	})
	require.NoError(t, err)

	return dir, hash.String()
}

func mkdirs(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(p, 0o755))
	}
}

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))
	return path
}

func TestInspectCheckout(t *testing.T) {
	dir, hash := initRepository(t)

	co, err := InspectCheckout(filepath.Join(dir, "src"))
	require.NoError(t, err)

	require.NotNil(t, co.Revision)
	assert.Equal(t, hash, *co.Revision)
	require.NotNil(t, co.Branch)
	assert.Equal(t, "master", *co.Branch)
	require.NotNil(t, co.OriginURL)
	assert.Equal(t, "https://github.com/scan-io-git/sarifer.git", *co.OriginURL, "the remote is kept as configured")
	assert.Equal(t, "src", co.ProjectPath)
	assert.Equal(t, filepath.Clean(dir), co.WorkTree)

	co, err = InspectCheckout(dir)
	require.NoError(t, err)
	assert.Empty(t, co.ProjectPath)
}

func TestInspectCheckoutOutsideRepository(t *testing.T) {
	dir := t.TempDir()

	co, err := InspectCheckout(dir)
	assert.Error(t, err)
	require.NotNil(t, co)
	assert.Equal(t, filepath.Clean(dir), co.WorkTree)
	assert.Nil(t, co.Revision)
	assert.Nil(t, co.OriginURL)

	_, err = InspectCheckout("")
	assert.Error(t, err)
}

func TestRootResolver(t *testing.T) {
	repo, _ := initRepository(t)
	mkdirs(t, filepath.Join(repo, "services", "api", ".spam"))

	plain := t.TempDir()
	mkdirs(t, filepath.Join(plain, ".spam"))
	nested := touch(t, filepath.Join(plain, "a", "b", "c", "notes.txt"))

	bare := t.TempDir()
	loose := touch(t, filepath.Join(bare, "x", "loose.txt"))

	tests := []struct {
		name    string
		bound   string
		target  string
		want    string
		wantErr bool
	}{
		{name: "Git checkout top", target: filepath.Join(repo, "src", "main.go"), want: repo},
		{name: "Rules folder closer than the checkout", target: touch(t, filepath.Join(repo, "services", "api", "h", "x.go")), want: filepath.Join(repo, "services", "api")},
		{name: "Nested file outside any checkout", target: nested, want: plain},
		{name: "Nested file within a bound", bound: plain, target: nested, want: plain},
		{name: "Directory target", target: filepath.Join(plain, "a"), want: plain},
		{name: "Bound is the fallback root", bound: bare, target: loose, want: bare},
		{name: "Unbound fallback is the target folder", target: loose, want: filepath.Join(bare, "x")},
		{name: "Target outside the bound", bound: plain, target: loose, wantErr: true},
		{name: "Empty target", target: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := NewRootResolver(".spam", tt.bound)(tt.target)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Clean(tt.want), root)
		})
	}
}
