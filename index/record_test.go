package index_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhovart/cargo-local-registry/index"
)

func boolPtr(b bool) *bool { return &b }

func TestEncodeLineFieldOrder(t *testing.T) {
	r := index.Record{
		Name:  "serde",
		Vers:  "1.0.130",
		Cksum: "abc123",
		Deps: []index.Dependency{
			{Name: "serde_derive", Req: "^1.0", Features: []string{}, DefaultFeatures: true},
		},
		Features: map[string][]string{"derive": {"serde_derive"}},
		Yanked:   boolPtr(false),
	}
	line, err := index.EncodeLine(r)
	require.NoError(t, err)

	nameIdx := indexOf(t, line, `"name"`)
	versIdx := indexOf(t, line, `"vers"`)
	depsIdx := indexOf(t, line, `"deps"`)
	cksumIdx := indexOf(t, line, `"cksum"`)
	// the dependency object has its own "features" list; the record's
	// feature map is the one whose value is an object
	featuresIdx := indexOf(t, line, `"features":{`)
	yankedIdx := indexOf(t, line, `"yanked"`)

	assert.Less(t, nameIdx, versIdx)
	assert.Less(t, versIdx, depsIdx)
	assert.Less(t, depsIdx, cksumIdx)
	assert.Less(t, cksumIdx, featuresIdx)
	assert.Less(t, featuresIdx, yankedIdx)
}

func TestEncodeLineDeterministic(t *testing.T) {
	r := index.Record{
		Name: "libc",
		Vers: "0.2.7",
		Deps: []index.Dependency{
			{Name: "zzz", Req: "*"},
			{Name: "aaa", Req: "*"},
		},
		Features: map[string][]string{
			"default": {"b", "a"},
		},
		Yanked: boolPtr(false),
	}
	l1, err := index.EncodeLine(r)
	require.NoError(t, err)
	l2, err := index.EncodeLine(r)
	require.NoError(t, err)
	assert.Equal(t, l1, l2)
	// deps must come out sorted lexicographically by name
	assert.Less(t, indexOf(t, l1, `"aaa"`), indexOf(t, l1, `"zzz"`))
	// feature expression lists must come out sorted
	assert.Less(t, indexOf(t, l1, `"a"`), indexOf(t, l1, `"b"`))
}

func TestEncodeLineEmptyCollections(t *testing.T) {
	r := index.Record{
		Name:   "cfg-if",
		Vers:   "1.0.0",
		Cksum:  "dd",
		Yanked: boolPtr(false),
	}
	line, err := index.EncodeLine(r)
	require.NoError(t, err)
	assert.Contains(t, line, `"deps":[]`)
	assert.Contains(t, line, `"features":{}`)
	assert.NotContains(t, line, "null")

	// a dependency with no feature list encodes it as [], not null
	r.Deps = []index.Dependency{{Name: "libc", Req: "^0.2"}}
	line, err = index.EncodeLine(r)
	require.NoError(t, err)
	assert.Contains(t, line, `"features":[]`)
}

func TestDecodeDropsUnknownFields(t *testing.T) {
	line := `{"name":"serde","vers":"1.0.0","deps":[],"cksum":"","features":{},"yanked":false,"unknown_field":"ignored"}`
	r, err := index.DecodeLine(line)
	require.NoError(t, err)
	reencoded, err := index.EncodeLine(r)
	require.NoError(t, err)
	assert.NotContains(t, reencoded, "unknown_field")
}

func TestYankedTriState(t *testing.T) {
	line := `{"name":"serde","vers":"1.0.0","deps":[],"cksum":"","features":{},"yanked":null}`
	r, err := index.DecodeLine(line)
	require.NoError(t, err)
	assert.Nil(t, r.Yanked)

	reencoded, err := index.EncodeLine(r)
	require.NoError(t, err)
	assert.Contains(t, reencoded, `"yanked":null`)
}

func TestUniqueVersions(t *testing.T) {
	records := []index.Record{{Name: "a", Vers: "1.0.0"}, {Name: "a", Vers: "1.0.1"}}
	assert.True(t, index.UniqueVersions(records))

	records = append(records, index.Record{Name: "a", Vers: "1.0.0"})
	assert.False(t, index.UniqueVersions(records))
}

func TestReplaceVersion(t *testing.T) {
	records := []index.Record{{Name: "a", Vers: "1.0.0"}, {Name: "a", Vers: "1.0.1"}}
	out := index.ReplaceVersion(records, index.Record{Name: "a", Vers: "1.0.0", Cksum: "new"})
	require.Len(t, out, 2)
	found := false
	for _, r := range out {
		if r.Vers == "1.0.0" {
			found = true
			assert.Equal(t, "new", r.Cksum)
		}
	}
	assert.True(t, found)
}

func TestEncodeFileSortedAndNoDuplicates(t *testing.T) {
	records := []index.Record{
		{Name: "a", Vers: "2.0.0", Yanked: boolPtr(false)},
		{Name: "a", Vers: "1.0.0", Yanked: boolPtr(false)},
	}
	data, err := index.EncodeFile(records)
	require.NoError(t, err)

	parsed, err := index.ParseFile(data)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.True(t, index.UniqueVersions(parsed))
	// lines sorted lexicographically: "1.0.0" < "2.0.0" in the encoded vers field
	assert.Less(t, indexOf(t, string(data), `"1.0.0"`), indexOf(t, string(data), `"2.0.0"`))
}

func indexOf(t *testing.T, s, substr string) int {
	t.Helper()
	i := -1
	for k := 0; k+len(substr) <= len(s); k++ {
		if s[k:k+len(substr)] == substr {
			i = k
			break
		}
	}
	require.NotEqual(t, -1, i, "substring %q not found in %q", substr, s)
	return i
}
