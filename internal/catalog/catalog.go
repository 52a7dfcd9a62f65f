package catalog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/cognicore/reactrank/pkg/reactrank/store"
)

// maxLineBytes bounds one JSONL record.
const maxLineBytes = 4 << 20

// ExcludedGroup is the tag group dropped when flattening grouped tags.
const ExcludedGroup = "invalid"

// Record is one line of a catalog or history file:
//
//	{"id": 123, "title": "...", "tags": ["a", "b"], "reaction": "like"}
//
// Tags may also be grouped, {"general": ["a"], "species": ["b"]}, in which
// case they are flattened and the ExcludedGroup group is dropped.
type Record struct {
	ID       ID        `json:"id"`
	Title    string    `json:"title"`
	URL      string    `json:"url"`
	Tags     Tags      `json:"tags"`
	Reaction string    `json:"reaction"`
	AddedAt  time.Time `json:"added_at"`
}

// ID accepts a JSON string or number.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %s", string(data))
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("id must be a string or number: %s", string(data))
	}
	*id = ID(n.String())
	return nil
}

// Tags is a flat, deduplicated tag list.
type Tags []string

// UnmarshalJSON accepts a list or an object of grouped lists.
func (t *Tags) UnmarshalJSON(data []byte) error {
	var flat []string
	if err := json.Unmarshal(data, &flat); err == nil {
		*t = dedupe(flat)
		return nil
	}

	var grouped map[string][]string
	if err := json.Unmarshal(data, &grouped); err != nil {
		return fmt.Errorf("tags must be a list or an object of lists: %w", err)
	}
	groups := make([]string, 0, len(grouped))
	for g := range grouped {
		if g != ExcludedGroup {
			groups = append(groups, g)
		}
	}
	sort.Strings(groups)
	var all []string
	for _, g := range groups {
		all = append(all, grouped[g]...)
	}
	*t = dedupe(all)
	return nil
}

// Item converts the record to a catalog item.
func (r Record) Item() store.Item {
	return store.Item{
		ID:      string(r.ID),
		Title:   StripHTML(r.Title),
		URL:     r.URL,
		Tags:    append([]string(nil), r.Tags...),
		AddedAt: r.AddedAt,
	}
}

// Load reads JSONL records. Blank lines are ignored; malformed lines and
// records without an id are logged and skipped.
func Load(r io.Reader, logger *zap.Logger) ([]Record, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var records []Record
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			logger.Warn("catalog_line_skipped", zap.Int("line", line), zap.Error(err))
			continue
		}
		if rec.ID == "" {
			logger.Warn("catalog_line_skipped", zap.Int("line", line), zap.String("reason", "missing id"))
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan catalog: %w", err)
	}
	return records, nil
}

// LoadFile loads records from a JSONL file. A file with no valid record is an
// error.
func LoadFile(path string, logger *zap.Logger) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	defer f.Close()

	records, err := Load(f, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no valid records found in %s", path)
	}
	return records, nil
}

// Items converts records to catalog items, keeping the last record per id.
func Items(records []Record) []store.Item {
	index := make(map[string]int, len(records))
	var out []store.Item
	for _, rec := range records {
		it := rec.Item()
		if i, ok := index[it.ID]; ok {
			out[i] = it
			continue
		}
		index[it.ID] = len(out)
		out = append(out, it)
	}
	return out
}

// History groups the ids of records carrying a reaction by reaction name.
// Within a group, ids keep file order and appear once.
func History(records []Record) map[string][]string {
	out := make(map[string][]string)
	seen := make(map[string]map[string]struct{})
	for _, rec := range records {
		if rec.Reaction == "" {
			continue
		}
		if seen[rec.Reaction] == nil {
			seen[rec.Reaction] = make(map[string]struct{})
		}
		if _, dup := seen[rec.Reaction][string(rec.ID)]; dup {
			continue
		}
		seen[rec.Reaction][string(rec.ID)] = struct{}{}
		out[rec.Reaction] = append(out[rec.Reaction], string(rec.ID))
	}
	return out
}

func dedupe(in []string) []string {
	set := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// StripHTML returns the text content of an HTML fragment with whitespace
// collapsed. Feed titles often carry markup and entities.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(buf.String()), " ")
}
