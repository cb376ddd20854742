// Package index implements the one-record-per-line JSON index format: fixed
// field order on encode, tolerant decode, and the sort/merge primitives the
// sync and serve engines share.
//
// Byte-stability is the point: two logical-equal records must encode to
// identical bytes, map iteration must never leak into the output, and
// re-encoding a decoded record must drop anything not in the fixed schema.
package index

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Dependency is one entry in a Record's deps list. Field order is fixed:
// name, req, features, optional, default_features, target, kind, package.
type Dependency struct {
	Name            string   `json:"name"`
	Req             string   `json:"req"`
	Features        []string `json:"features"`
	Optional        bool     `json:"optional"`
	DefaultFeatures bool     `json:"default_features"`
	Target          *string  `json:"target"`
	Kind            *string  `json:"kind"`
	Package         *string  `json:"package"`
}

// Record is one decoded index line. Field order is fixed: name, vers,
// deps, cksum, features, yanked.
type Record struct {
	Name     string              `json:"name"`
	Vers     string              `json:"vers"`
	Deps     []Dependency        `json:"deps"`
	Cksum    string              `json:"cksum"`
	Features map[string][]string `json:"features"`
	Yanked   *bool               `json:"yanked"`
}

// normalize sorts Deps lexicographically and each Features expression list,
// so map iteration and caller-supplied ordering never leak into the encoded
// form. Absent collections become empty ones: a registry client reads
// `deps` as a list and `features` as a map, so they must encode as `[]`
// and `{}`, never `null`.
func (r Record) normalize() Record {
	out := r
	out.Deps = make([]Dependency, len(r.Deps))
	copy(out.Deps, r.Deps)
	for i := range out.Deps {
		if out.Deps[i].Features == nil {
			out.Deps[i].Features = []string{}
		}
	}
	sort.Slice(out.Deps, func(i, j int) bool {
		return dependencyLess(out.Deps[i], out.Deps[j])
	})

	out.Features = make(map[string][]string, len(r.Features))
	for k, v := range r.Features {
		sorted := append([]string(nil), v...)
		sort.Strings(sorted)
		out.Features[k] = sorted
	}
	return out
}

func dependencyLess(a, b Dependency) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	if a.Req != b.Req {
		return a.Req < b.Req
	}
	// Same name and requirement (e.g. a normal and a dev dependency on one
	// crate): fall back to the full encoding so the order is still total.
	ea, _ := json.Marshal(a)
	eb, _ := json.Marshal(b)
	return string(ea) < string(eb)
}

// EncodeLine serializes r to one compact JSON line (no trailing newline),
// fields in the schema's fixed order, deps and feature lists sorted.
func EncodeLine(r Record) (string, error) {
	b, err := json.Marshal(r.normalize())
	if err != nil {
		return "", errors.Wrap(err, "encode index record")
	}
	return string(b), nil
}

// DecodeLine parses one index line into a Record. Unknown JSON fields are
// silently dropped (forward compatibility); re-encoding the result never
// reproduces them.
func DecodeLine(line string) (Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(line), &r); err != nil {
		return Record{}, errors.Wrapf(err, "decode index record: %q", line)
	}
	return r, nil
}

// ParseFile splits the contents of an index file into its Records, skipping
// blank lines (including a possible trailing newline).
func ParseFile(data []byte) ([]Record, error) {
	lines := strings.Split(string(data), "\n")
	records := make([]Record, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		r, err := DecodeLine(line)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// EncodeFile serializes records into index-file bytes: one encoded line
// per record, sorted lexicographically over the encoded line, each
// terminated by "\n".
func EncodeFile(records []Record) ([]byte, error) {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		line, err := EncodeLine(r)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	sort.Strings(lines)

	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// UniqueVersions reports whether records contains no two entries sharing a
// Vers value.
func UniqueVersions(records []Record) bool {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, ok := seen[r.Vers]; ok {
			return false
		}
		seen[r.Vers] = struct{}{}
	}
	return true
}

// ReplaceVersion returns records with any entry whose Vers equals
// replacement.Vers removed, then replacement appended. It does not sort;
// call EncodeFile on the result before writing.
func ReplaceVersion(records []Record, replacement Record) []Record {
	out := make([]Record, 0, len(records)+1)
	for _, r := range records {
		if r.Vers == replacement.Vers {
			continue
		}
		out = append(out, r)
	}
	return append(out, replacement)
}
