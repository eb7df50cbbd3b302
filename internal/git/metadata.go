package git

import (
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// Checkout describes the git work tree a project root lives in.
type Checkout struct {
	// WorkTree is the top of the checkout. It equals the project root when
	// the project is not under version control.
	WorkTree string
	// ProjectPath is the project root relative to WorkTree, slash separated.
	// Empty when the project is the whole checkout.
	ProjectPath string
	Branch      *string
	Revision    *string
	// OriginURL is the first url of the origin remote, exactly as configured.
	OriginURL *string
}

// InspectCheckout reads the head and origin of the checkout containing projectRoot.
// Outside a checkout it returns an error together with a Checkout holding only the root.
func InspectCheckout(projectRoot string) (*Checkout, error) {
	if projectRoot == "" {
		return nil, fmt.Errorf("project root is not set")
	}

	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root %q: %w", projectRoot, err)
	}
	co := &Checkout{WorkTree: filepath.Clean(abs)}

	top, repo, ok := openEnclosing(co.WorkTree)
	if !ok {
		return co, fmt.Errorf("%q is not inside a git checkout", abs)
	}
	co.WorkTree = top
	if rel, err := filepath.Rel(top, abs); err == nil && rel != "." {
		co.ProjectPath = filepath.ToSlash(rel)
	}

	if head, err := repo.Head(); err == nil {
		if head.Name().IsBranch() {
			branch := head.Name().Short()
			co.Branch = &branch
		}
		rev := head.Hash().String()
		co.Revision = &rev
	}

	if remote, err := repo.Remote(git.DefaultRemoteName); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			origin := urls[0]
			co.OriginURL = &origin
		}
	}
	return co, nil
}
