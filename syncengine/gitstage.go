package syncengine

import (
	"os"

	shutil "github.com/termie/go-shutil"

	"github.com/dhovart/cargo-local-registry/internal/regerr"
)

// stageGitCheckout copies a git-sourced package's checkout into a fresh
// staging directory under a temp root, dropping .git, so archivebuilder
// enumerates exactly the tree a crate publish would ship — never the VCS
// metadata, and never a tree the resolver's own checkout might still be
// mutating underneath us.
func stageGitCheckout(gitRoot, stagingParent string) (string, error) {
	staged, err := os.MkdirTemp(stagingParent, "gitstage-*")
	if err != nil {
		return "", regerr.Wrap(regerr.ArchiveRead, "create git staging dir", err)
	}

	cfg := &shutil.CopyTreeOptions{
		Symlinks:     true,
		CopyFunction: shutil.Copy,
		Ignore: func(src string, contents []os.FileInfo) []string {
			var ignore []string
			for _, fi := range contents {
				if fi.IsDir() && fi.Name() == ".git" {
					ignore = append(ignore, fi.Name())
				}
			}
			return ignore
		},
	}

	// CopyTree requires the destination not already exist.
	if err := os.Remove(staged); err != nil {
		return "", regerr.Wrap(regerr.ArchiveRead, "clear staging dir placeholder", err)
	}
	if err := shutil.CopyTree(gitRoot, staged, cfg); err != nil {
		return "", regerr.Wrap(regerr.ArchiveRead, "stage git checkout for "+gitRoot, err)
	}
	return staged, nil
}
