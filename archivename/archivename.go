// Package archivename splits a `{name}-{version}.crate` filename into its
// name and version parts.
//
// A greedy, rightmost dash split is not sufficient: versions carry build
// metadata that itself contains dashes (`0.4.80+curl-8.12.1`), and crate
// names routinely end in digits or contain dashes of their own
// (`sec1-0.7.3.crate`, `curl-sys-0.4.80+curl-8.12.1.crate`). Instead we walk
// every dash position left to right and accept the first one whose suffix
// parses as a valid semantic version and whose prefix is non-empty.
package archivename

import (
	"strings"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"

	"github.com/dhovart/cargo-local-registry/internal/regerr"
)

const suffix = ".crate"

// Parse splits filename into (name, version). It returns a *regerr.Error of
// kind regerr.Parse if filename does not have the form
// `<name>-<vers>.crate` for a non-empty name and valid semver vers.
func Parse(filename string) (name string, version string, err error) {
	if !strings.HasSuffix(filename, suffix) {
		return "", "", regerr.New(regerr.Parse, "missing .crate suffix: "+filename)
	}
	trimmed := strings.TrimSuffix(filename, suffix)

	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] != '-' {
			continue
		}
		candidateName := trimmed[:i]
		candidateVers := trimmed[i+1:]
		if candidateName == "" || candidateVers == "" {
			continue
		}
		if isStrictVersion(candidateVers) {
			return candidateName, candidateVers, nil
		}
	}

	return "", "", regerr.Wrap(regerr.Parse, "no valid version suffix found", errors.Errorf("%q", filename))
}

// isStrictVersion reports whether s is a full major.minor.patch semantic
// version. Masterminds' own parser is lenient — it accepts a missing minor
// or patch and a leading "v", so it reads "5-0.10.6" as the valid
// 5.0.0-0.10.6 — and under the left-to-right dash scan that leniency would
// split names like md-5 at the wrong position. Registry version strings
// always carry all three components, so anything less is a name fragment,
// not a version.
func isStrictVersion(s string) bool {
	core := s
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, c := range p {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	// Masterminds still vets the pre-release/build-metadata syntax.
	_, err := semver.NewVersion(s)
	return err == nil
}
