package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"nmrdeposit/internal/star/schema"
	"nmrdeposit/internal/star/startest"
)

func loadFixture(t *testing.T) *Entry {
	t.Helper()
	e, err := Decode(startest.EntryWithSchema())
	require.NoError(t, err)
	return e
}

func testCatalog(t *testing.T) *schema.Catalog {
	t.Helper()
	cat, err := schema.Build(startest.Schema())
	require.NoError(t, err)
	return cat
}

func sfTag(t *testing.T, e *Entry, sfName, tag string) *Tag {
	t.Helper()
	sf, ok := e.Saveframe(sfName)
	require.True(t, ok, "saveframe %s", sfName)
	tg, ok := sf.Tag(tag)
	require.True(t, ok, "tag %s in %s", tag, sfName)
	return tg
}

func loopOf(t *testing.T, e *Entry, sfName, category string) *Loop {
	t.Helper()
	sf, ok := e.Saveframe(sfName)
	require.True(t, ok, "saveframe %s", sfName)
	l, ok := sf.Loop(category)
	require.True(t, ok, "loop %s in %s", category, sfName)
	return l
}

func cell(t *testing.T, e *Entry, sfName, category string, row int, column string) *Tag {
	t.Helper()
	tg, ok := loopOf(t, e, sfName, category).Cell(row, column)
	require.True(t, ok, "cell %s.%s[%d]", category, column, row)
	return tg
}

func set(t *testing.T, e *Entry, sfName, tag, value string) {
	t.Helper()
	require.NoError(t, e.Apply(SetTagValue{Saveframe: sfName, Tag: tag, Value: &value}))
}

func setCellValue(t *testing.T, e *Entry, sfName, loop string, row int, column, value string) {
	t.Helper()
	require.NoError(t, e.Apply(SetTagValue{Saveframe: sfName, Loop: loop, Row: row, Tag: column, Value: &value}))
}

func enumValues(tg *Tag) []string {
	out := make([]string, 0, len(tg.Enums))
	for _, en := range tg.Enums {
		out = append(out, en.Value)
	}
	return out
}

// withoutSaveframe returns the fixture payload with one saveframe removed.
func withoutSaveframe(t *testing.T, name string) []byte {
	t.Helper()
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(startest.EntryWithSchema(), &doc))
	var frames []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc["saveframes"], &frames))
	kept := frames[:0]
	for _, f := range frames {
		var n string
		require.NoError(t, json.Unmarshal(f["name"], &n))
		if n != name {
			kept = append(kept, f)
		}
	}
	require.Len(t, kept, len(frames)-1, "saveframe %s", name)
	raw, err := json.Marshal(kept)
	require.NoError(t, err)
	doc["saveframes"] = raw
	out, err := json.Marshal(doc)
	require.NoError(t, err)
	return out
}
