// Package resolverapi is the thin façade the sync engine uses to talk to
// the external dependency resolver. The resolver is a collaborator, not
// something this system reimplements: given a manifest and an upstream, it
// already knows how to compute a package graph. This package's only job is
// invoking it and parsing what it hands back.
package resolverapi

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/Masterminds/semver"
	"github.com/sirupsen/logrus"

	"github.com/dhovart/cargo-local-registry/index"
	"github.com/dhovart/cargo-local-registry/internal/regerr"
)

var log = logrus.WithField("component", "resolver")

// Source identifies where a resolved package's bytes come from.
type Source string

const (
	SourceRegistry Source = "registry"
	SourceGit      Source = "git"
	SourceOther    Source = "other"
)

// PackageID identifies one resolved package version.
type PackageID struct {
	Name    string
	Version string
}

// PackageMetadata is everything the sync engine needs to know about one
// resolved package: its dependency list, features, checksum, where its
// bytes currently live, and which FileTask kind applies to it.
type PackageMetadata struct {
	ID       PackageID
	Source   Source
	Deps     []index.Dependency
	Features map[string][]string
	Cksum    string

	// CachePath is populated when Source == SourceRegistry: the path to the
	// already-downloaded archive in the resolver's own cache area.
	CachePath string

	// GitRoot is populated when Source == SourceGit: the path to the
	// checked-out package source tree, rooted so that archivebuilder can
	// enumerate it directly.
	GitRoot string
}

// Graph is the full transitive package set a resolve produced.
type Graph struct {
	Packages map[PackageID]PackageMetadata
	// Order preserves the resolver's own emission order, which the sync
	// engine's planning phase relies on for "multiple versions of the
	// same crate in one run" to be handled deterministically.
	Order []PackageID
}

// resolverOutput is the on-disk shape the external resolver binary writes
// to its lock output path: a flat list of resolved packages. The resolver
// is free to use any lock format internally; this is only the interchange
// shape it must produce for us.
type resolverOutput struct {
	Packages []struct {
		Name      string              `json:"name"`
		Version   string              `json:"version"`
		Source    string              `json:"source"`
		Deps      []index.Dependency  `json:"deps"`
		Features  map[string][]string `json:"features"`
		Cksum     string              `json:"cksum"`
		CachePath string              `json:"cache_path"`
		GitRoot   string              `json:"git_root"`
	} `json:"packages"`
}

// Gateway invokes an external resolver binary. BinaryPath defaults to
// "resolver" (resolved via PATH) when empty.
type Gateway struct {
	BinaryPath string
}

// ResolveLockfile resolves lockfilePath against upstream and returns the
// full transitive package graph.
func (g Gateway) ResolveLockfile(ctx context.Context, lockfilePath, upstream string) (Graph, error) {
	out, err := g.run(ctx, "resolve-lockfile", "--lockfile", lockfilePath, "--upstream", upstream)
	if err != nil {
		return Graph{}, err
	}
	return parseResolverOutput(out)
}

// ResolveSingle builds a synthetic manifest depending only on name at req
// (defaulting req to "*" when empty), resolves it against upstream, and
// returns the path to the resolver's lock output — used by the
// add-a-single-crate flow.
func (g Gateway) ResolveSingle(ctx context.Context, name, req, upstream string) (string, error) {
	if req == "" {
		req = "*"
	}
	// Reject a malformed requirement here rather than letting the resolver
	// fail on a synthetic manifest it never shows the user.
	if _, err := semver.NewConstraint(req); err != nil {
		return "", regerr.Wrap(regerr.Resolver, "invalid version requirement "+req+" for "+name, err)
	}
	out, err := g.run(ctx, "resolve-one", "--name", name, "--req", req, "--upstream", upstream)
	if err != nil {
		return "", err
	}

	lockPath := bytes.TrimSpace(out)
	if len(lockPath) == 0 {
		return "", regerr.New(regerr.Resolver, "resolver produced no lock path for "+name)
	}
	return string(lockPath), nil
}

func (g Gateway) run(ctx context.Context, args ...string) ([]byte, error) {
	bin := g.BinaryPath
	if bin == "" {
		bin = "resolver"
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = os.Environ()

	log.WithField("args", args).Debug("invoking resolver")

	if err := cmd.Run(); err != nil {
		return nil, regerr.Wrap(regerr.Resolver, "resolver invocation failed: "+stderr.String(), err)
	}
	return stdout.Bytes(), nil
}

func parseResolverOutput(raw []byte) (Graph, error) {
	var ro resolverOutput
	if err := json.Unmarshal(raw, &ro); err != nil {
		return Graph{}, regerr.Wrap(regerr.Resolver, "parse resolver output", err)
	}

	graph := Graph{
		Packages: make(map[PackageID]PackageMetadata, len(ro.Packages)),
		Order:    make([]PackageID, 0, len(ro.Packages)),
	}
	for _, p := range ro.Packages {
		id := PackageID{Name: p.Name, Version: p.Version}
		meta := PackageMetadata{
			ID:        id,
			Source:    Source(p.Source),
			Deps:      p.Deps,
			Features:  p.Features,
			Cksum:     p.Cksum,
			CachePath: p.CachePath,
			GitRoot:   p.GitRoot,
		}
		if meta.CachePath != "" {
			meta.CachePath = filepath.Clean(meta.CachePath)
		}
		if meta.GitRoot != "" {
			meta.GitRoot = filepath.Clean(meta.GitRoot)
		}
		graph.Packages[id] = meta
		graph.Order = append(graph.Order, id)
	}
	return graph, nil
}

// ReadLockfile loads a lock output file produced by ResolveSingle into a
// Graph, so the add-one-crate flow can feed it straight into the sync
// engine without invoking the resolver a second time.
func ReadLockfile(path string) (Graph, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Graph{}, regerr.Wrap(regerr.LockLoad, "read lockfile "+path, err)
	}
	return parseResolverOutput(b)
}
