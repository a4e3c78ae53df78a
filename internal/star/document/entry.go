// Package document holds the in-memory NMR-STAR deposition tree: an Entry
// owns Saveframes, a Saveframe owns Tags and Loops, a Loop owns rows of Tags.
// Derived state (display, validity, enums, navigation) is recomputed wholesale
// by Refresh and never patched incrementally.
package document

import (
	"fmt"
	"log"
	"strconv"
	"sync"

	"nmrdeposit/internal/star/schema"
)

// Entry is the root of one deposition.
type Entry struct {
	ID             string
	Schema         *schema.Catalog
	EmailValidated bool
	Nickname       string
	Deposited      bool
	Commit         []string
	Unsaved        bool
	Saveframes     []*Saveframe
	Files          *FileRegistry
	ShowAll        bool

	Valid                   bool
	FirstIncompleteCategory string
	CategoryOrder           []string
	SuperGroups             []SupergroupStatus
	Categories              map[string]CategoryStatus

	enumTies map[string][]string

	warnMu sync.Mutex
	warned map[string]struct{}
}

// CategoryStatus aggregates the saveframes of one category.
type CategoryStatus struct {
	Category string         `json:"category"`
	Display  schema.Display `json:"display"`
	Valid    bool           `json:"valid"`
	Count    int            `json:"count"`
}

// SupergroupStatus aggregates the categories of one supergroup.
type SupergroupStatus struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Display     schema.Display   `json:"display"`
	Valid       bool             `json:"valid"`
	Categories  []CategoryStatus `json:"categories"`
}

// NewEntry returns an empty entry bound to a dictionary.
func NewEntry(id string, cat *schema.Catalog) *Entry {
	return &Entry{
		ID:         id,
		Schema:     cat,
		Files:      newFileRegistry(),
		Valid:      true,
		Categories: make(map[string]CategoryStatus),
		enumTies:   make(map[string][]string),
		warned:     make(map[string]struct{}),
	}
}

// Saveframe returns the saveframe with the given framecode.
func (e *Entry) Saveframe(name string) (*Saveframe, bool) {
	for _, sf := range e.Saveframes {
		if sf.Name == name {
			return sf, true
		}
	}
	return nil, false
}

// SaveframesByCategory returns the saveframes of a category in document
// order, soft-deleted ones included.
func (e *Entry) SaveframesByCategory(category string) []*Saveframe {
	var out []*Saveframe
	for _, sf := range e.Saveframes {
		if sf.category == category {
			out = append(out, sf)
		}
	}
	return out
}

func (e *Entry) indexOf(sf *Saveframe) int {
	for i, s := range e.Saveframes {
		if s == sf {
			return i
		}
	}
	return -1
}

// GetTagValue returns the first non-null value of a fully-qualified tag,
// scanning saveframe tags and then loop columns of every saveframe except skip.
func (e *Entry) GetTagValue(fqtn string, skip *Saveframe) *string {
	prefix, tag := schema.SplitName(fqtn)
	for _, sf := range e.Saveframes {
		if sf == skip {
			continue
		}
		if sf.tagPrefix == prefix {
			if v := sf.TagValue(tag); v != nil {
				return v
			}
			continue
		}
		l, ok := sf.Loop(prefix)
		if !ok {
			continue
		}
		col := l.ColumnIndex(tag)
		if col < 0 {
			continue
		}
		for _, row := range l.Rows {
			if col < len(row) && row[col].Value != nil {
				return row[col].Value
			}
		}
	}
	return nil
}

// AddSaveframe inserts sf at pos; a negative or out of range pos appends.
// Bulk loaders pass refresh=false and refresh once at the end.
func (e *Entry) AddSaveframe(sf *Saveframe, pos int, refresh bool) {
	if pos < 0 || pos >= len(e.Saveframes) {
		e.Saveframes = append(e.Saveframes, sf)
	} else {
		e.Saveframes = append(e.Saveframes[:pos], append([]*Saveframe{sf}, e.Saveframes[pos:]...)...)
	}
	if refresh {
		e.Refresh()
	}
}

// nextFramecode returns "<category>_N" for the smallest N >= 1 not in use.
func (e *Entry) nextFramecode(category string) string {
	for n := 1; ; n++ {
		name := category + "_" + strconv.Itoa(n)
		if _, taken := e.Saveframe(name); !taken {
			return name
		}
	}
}

// DuplicateSaveframe copies src under a fresh framecode and inserts the copy
// right after it. With clearValues set every tag is reset to its dictionary
// default and each loop keeps a single default row.
func (e *Entry) DuplicateSaveframe(src *Saveframe, clearValues bool) (*Saveframe, error) {
	at := e.indexOf(src)
	if at < 0 {
		return nil, fmt.Errorf("saveframe %s: %w", src.Name, ErrNotFound)
	}
	name := e.nextFramecode(src.category)
	dup := newSaveframe(e.Schema, name, src.category, src.tagPrefix)
	for _, t := range src.Tags {
		switch t.Name {
		case DeletedTag:
			continue
		case FramecodeTag:
			dup.addTag(t.Name, strp(name))
			continue
		case CategoryTag:
			dup.addTag(t.Name, t.Value)
			continue
		}
		v := t.Value
		if clearValues {
			v = t.rule.Default
		}
		dup.addTag(t.Name, v)
	}
	for _, l := range src.Loops {
		dup.Loops = append(dup.Loops, l.clone(clearValues))
	}
	e.AddSaveframe(dup, at+1, true)
	return dup, nil
}

func (e *Entry) warnOnce(key, format string, args ...any) {
	e.warnMu.Lock()
	if e.warned == nil {
		e.warned = make(map[string]struct{})
	}
	_, seen := e.warned[key]
	e.warned[key] = struct{}{}
	e.warnMu.Unlock()
	if !seen {
		log.Printf(format, args...)
	}
}
