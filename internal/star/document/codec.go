package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"nmrdeposit/internal/star/schema"
)

type entryJSON struct {
	EntryID        string          `json:"entry_id"`
	Schema         json.RawMessage `json:"schema,omitempty"`
	EmailValidated bool            `json:"email_validated"`
	Nickname       string          `json:"deposition_nickname"`
	Deposited      bool            `json:"entry_deposited"`
	Commit         []string        `json:"commit"`
	Unsaved        bool            `json:"unsaved"`
	Saveframes     []saveframeJSON `json:"saveframes"`
}

type saveframeJSON struct {
	Name      string     `json:"name"`
	Category  string     `json:"category"`
	TagPrefix string     `json:"tag_prefix"`
	Tags      [][]any    `json:"tags"`
	Loops     []loopJSON `json:"loops"`
}

type loopJSON struct {
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	Data     [][]any  `json:"data"`
}

// Decode builds an entry from a load payload carrying its own dictionary
// under "schema".
func Decode(raw []byte) (*Entry, error) {
	var head struct {
		Schema json.RawMessage `json:"schema"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	if len(head.Schema) == 0 || bytes.Equal(head.Schema, []byte("null")) {
		return nil, ErrNoSchema
	}
	cat, err := schema.Build(head.Schema)
	if err != nil {
		return nil, err
	}
	return DecodeWithCatalog(raw, cat)
}

// DecodeWithCatalog builds an entry against an already parsed dictionary,
// ignoring any "schema" member of the payload. The file registry is rebuilt
// from the upload loop before the first refresh.
func DecodeWithCatalog(raw []byte, cat *schema.Catalog) (*Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc entryJSON
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	e := NewEntry(doc.EntryID, cat)
	e.EmailValidated = doc.EmailValidated
	e.Nickname = doc.Nickname
	e.Deposited = doc.Deposited
	e.Commit = doc.Commit
	e.Unsaved = doc.Unsaved
	for i, sj := range doc.Saveframes {
		prefix := sj.TagPrefix
		if prefix == "" {
			prefix = cat.Prefix(sj.Category)
		}
		if prefix == "" {
			return nil, fmt.Errorf("saveframe %d (%s) has no tag prefix: %w", i, sj.Name, ErrStructure)
		}
		sf := newSaveframe(cat, sj.Name, sj.Category, prefix)
		for _, pair := range sj.Tags {
			if len(pair) == 0 {
				continue
			}
			name := cellValue(pair[0])
			if name == nil {
				continue
			}
			var value *string
			if len(pair) > 1 {
				value = cellValue(pair[1])
			}
			sf.addTag(*name, value)
		}
		if sf.Name == "" {
			if v := sf.TagValue(FramecodeTag); v != nil {
				sf.Name = *v
			}
		}
		for _, lj := range sj.Loops {
			l := newLoop(cat, lj.Category, lj.Tags)
			for _, row := range lj.Data {
				values := make([]*string, len(row))
				for c, v := range row {
					values[c] = cellValue(v)
				}
				l.appendRow(values)
			}
			sf.Loops = append(sf.Loops, l)
		}
		e.AddSaveframe(sf, -1, false)
	}
	e.regenerateFiles()
	e.Refresh()
	return e, nil
}

// cellValue accepts the loosely typed cells a payload may carry.
func cellValue(v any) *string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return &x
	case json.Number:
		s := x.String()
		return &s
	case bool:
		s := "no"
		if x {
			s = "yes"
		}
		return &s
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		return &s
	default:
		s := fmt.Sprint(x)
		return &s
	}
}

func (e *Entry) encode(withSchema bool) ([]byte, error) {
	doc := entryJSON{
		EntryID:        e.ID,
		EmailValidated: e.EmailValidated,
		Nickname:       e.Nickname,
		Deposited:      e.Deposited,
		Commit:         e.Commit,
		Unsaved:        e.Unsaved,
		Saveframes:     make([]saveframeJSON, 0, len(e.Saveframes)),
	}
	if doc.Commit == nil {
		doc.Commit = []string{}
	}
	if withSchema {
		doc.Schema = e.Schema.Raw()
	}
	for _, sf := range e.Saveframes {
		sj := saveframeJSON{
			Name:      sf.Name,
			Category:  sf.category,
			TagPrefix: sf.tagPrefix,
			Tags:      make([][]any, 0, len(sf.Tags)),
			Loops:     make([]loopJSON, 0, len(sf.Loops)),
		}
		for _, t := range sf.Tags {
			sj.Tags = append(sj.Tags, []any{t.Name, t.Value})
		}
		for _, l := range sf.Loops {
			lj := loopJSON{Category: l.category, Tags: l.Columns(), Data: make([][]any, 0, len(l.Rows))}
			for _, row := range l.Rows {
				cells := make([]any, len(row))
				for i, t := range row {
					cells[i] = t.Value
				}
				lj.Data = append(lj.Data, cells)
			}
			sj.Loops = append(sj.Loops, lj)
		}
		doc.Saveframes = append(doc.Saveframes, sj)
	}
	return json.Marshal(doc)
}

// SaveJSON is the recurring save payload; the dictionary is persisted
// separately and left out.
func (e *Entry) SaveJSON() ([]byte, error) { return e.encode(false) }

// ExportJSON is the full payload including the dictionary.
func (e *Entry) ExportJSON() ([]byte, error) { return e.encode(true) }
