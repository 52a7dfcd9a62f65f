package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoad(t *testing.T) {
	input := `{"id": 101, "title": "Cat", "tags": ["fluffy", "cat", "fluffy"], "reaction": "like"}

{"id": "abc", "url": "https://example.com/abc", "tags": {"species": ["cat"], "general": ["fluffy"], "invalid": ["bad_tag"]}}
`
	records, err := Load(strings.NewReader(input), nil)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, ID("101"), first.ID)
	assert.Equal(t, "Cat", first.Title)
	assert.Equal(t, "like", first.Reaction)
	assert.Equal(t, Tags{"fluffy", "cat"}, first.Tags, "tags are deduplicated")

	second := records[1]
	assert.Equal(t, ID("abc"), second.ID)
	assert.Equal(t, "https://example.com/abc", second.URL)
	// Groups are flattened in name order, without the excluded group.
	assert.Equal(t, Tags{"fluffy", "cat"}, second.Tags)
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	input := `{"id": 1, "tags": ["a"]}
not json
{"title": "no id"}
{"id": true}
{"id": 2, "tags": "oops"}
{"id": 3}
`
	records, err := Load(strings.NewReader(input), zap.New(core))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ID("1"), records[0].ID)
	assert.Equal(t, ID("3"), records[1].ID)
	assert.Equal(t, 4, logs.FilterMessage("catalog_line_skipped").Len())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"id": 7, "tags": ["x"]}`+"\n"), 0644))

	records, err := LoadFile(path, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, ID("7"), records[0].ID)

	empty := filepath.Join(dir, "empty.jsonl")
	require.NoError(t, os.WriteFile(empty, []byte("\n\n"), 0644))
	_, err = LoadFile(empty, nil)
	assert.Error(t, err, "file with no records")

	_, err = LoadFile(filepath.Join(dir, "missing.jsonl"), nil)
	assert.Error(t, err, "missing file")
}

func TestItemsKeepsLastRecord(t *testing.T) {
	records := []Record{
		{ID: "1", Tags: Tags{"a"}},
		{ID: "2", Tags: Tags{"b"}},
		{ID: "1", Title: "updated <em>twice</em>", Tags: Tags{"c"}},
	}
	items := Items(records)
	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].ID)
	assert.Equal(t, "updated twice", items[0].Title)
	assert.Equal(t, []string{"c"}, items[0].Tags)

	items[0].Tags[0] = "mutated"
	assert.Equal(t, Tags{"c"}, records[2].Tags, "Items copies tags")
}

func TestHistory(t *testing.T) {
	records := []Record{
		{ID: "1", Reaction: "like"},
		{ID: "2", Reaction: "fav"},
		{ID: "3"},
		{ID: "1", Reaction: "like"},
		{ID: "4", Reaction: "like"},
	}
	assert.Equal(t, map[string][]string{
		"like": {"1", "4"},
		"fav":  {"2"},
	}, History(records))
}

func TestStripHTML(t *testing.T) {
	cases := map[string]string{
		"plain title":                   "plain title",
		"  padded ":                     "padded",
		"Show HN: <b>Rust</b> &amp; Go": "Show HN: Rust & Go",
		"<p>line\n  break</p>":          "line break",
		"Tom &quot;the cat&quot; &lt;3": `Tom "the cat" <3`,
	}
	for in, want := range cases {
		assert.Equal(t, want, StripHTML(in), "StripHTML(%q)", in)
	}
}
