package sarif

import (
	"path/filepath"
	"strings"

	"github.com/gitsight/go-vcsurl"
	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/scan-io-git/sarifer/internal/git"
)

// Uri base ids written into originalUriBaseIds.
const (
	// SourceRootID is the top of the checkout; version control provenance maps to it.
	SourceRootID = "SRCROOT"
	// ProjectRootID is the analysed project, relative to SourceRootID. It is only
	// written when the project is a subfolder of the checkout.
	ProjectRootID = "PROJECTROOT"
)

// WithVersionControl records where the analysed project came from. A checkout without
// an origin remote only contributes the uri base ids.
func WithVersionControl(log *ResultLog, co *git.Checkout) {
	run := log.Run()
	if run == nil || co == nil {
		return
	}

	if co.WorkTree != "" {
		bases := map[string]*sarif.ArtifactLocation{
			SourceRootID: sarif.NewArtifactLocation().WithUri("file://" + folderURI(co.WorkTree)),
		}
		if co.ProjectPath != "" {
			bases[ProjectRootID] = sarif.NewArtifactLocation().
				WithUri(folderURI(co.ProjectPath)).
				WithUriBaseId(SourceRootID)
		}
		run.WithOriginalUriBaseIds(bases)
	}

	if co.OriginURL == nil || *co.OriginURL == "" {
		return
	}

	vcd := sarif.NewVersionControlDetails().WithRepositoryURI(repositoryURI(*co.OriginURL))
	if co.Revision != nil {
		vcd.WithRevisionID(*co.Revision)
	}
	if co.Branch != nil {
		vcd.WithBranch(*co.Branch)
	}
	vcd.WithMappedTo(sarif.NewArtifactLocation().WithUriBaseId(SourceRootID))
	run.AddVersionControlProvenance(vcd)
}

func folderURI(path string) string {
	uri := filepath.ToSlash(path)
	if !strings.HasSuffix(uri, "/") {
		uri += "/"
	}
	return uri
}

// repositoryURI normalises ssh and scp-like remotes into their https form without
// the .git suffix. Remotes go-vcsurl does not recognise are only trimmed.
func repositoryURI(remote string) string {
	uri := remote
	if info, err := vcsurl.Parse(remote); err == nil {
		if https, err := info.Remote(vcsurl.HTTPS); err == nil && https != "" {
			uri = https
		}
	}
	return strings.TrimSuffix(uri, ".git")
}
