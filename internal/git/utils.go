package git

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// NewRootResolver returns a function mapping a target to its project root. Walking up
// from the target's directory, the first folder that either holds rulesFolder or is the
// top of a git checkout wins. A non-empty bound stops the walk: it is the last folder
// looked at, targets outside it are rejected, and it is the root when nothing closer matches.
// Without a bound an unmatched target falls back to its own directory.
func NewRootResolver(rulesFolder, bound string) func(target string) (string, error) {
	if bound != "" {
		if abs, err := filepath.Abs(bound); err == nil {
			bound = abs
		}
		bound = filepath.Clean(bound)
	}

	return func(target string) (string, error) {
		if target == "" {
			return "", fmt.Errorf("target is not set")
		}
		abs, err := filepath.Abs(target)
		if err != nil {
			return "", fmt.Errorf("failed to resolve target %q: %w", target, err)
		}

		dir := abs
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			dir = filepath.Dir(abs)
		}
		if bound != "" && !within(bound, dir) {
			return "", fmt.Errorf("target %q is outside %q", target, bound)
		}

		for cur := dir; ; {
			if rulesFolder != "" && isDir(filepath.Join(cur, rulesFolder)) {
				return cur, nil
			}
			if _, err := git.PlainOpen(cur); err == nil {
				return cur, nil
			}
			parent := filepath.Dir(cur)
			if cur == bound || parent == cur {
				break
			}
			cur = parent
		}

		if bound != "" {
			return bound, nil
		}
		return dir, nil
	}
}

// openEnclosing opens the nearest checkout at or above dir.
func openEnclosing(dir string) (string, *git.Repository, bool) {
	for {
		if repo, err := git.PlainOpen(dir); err == nil {
			return dir, repo, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil, false
		}
		dir = parent
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
