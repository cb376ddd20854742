// Package shard maps a package name to the relative path of its index file,
// mirroring the upstream registry's own sharding so that proxied fetches use
// an identical directory layout.
package shard

import "strings"

// Path returns name's index-file location relative to the registry's
// index/ directory. Sharding is computed on the lowercased name; the
// returned path's final segment preserves the lowercased name too — callers
// that need the original casing must keep it in the record they write, not
// in the path.
func Path(name string) string {
	lower := strings.ToLower(name)
	switch len(lower) {
	case 0:
		return ""
	case 1:
		return "1/" + lower
	case 2:
		return "2/" + lower
	case 3:
		return "3/" + lower[:1] + "/" + lower
	default:
		return lower[:2] + "/" + lower[2:4] + "/" + lower
	}
}
