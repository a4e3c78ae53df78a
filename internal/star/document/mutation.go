package document

import (
	"encoding/json"
	"fmt"
	"strings"

	"nmrdeposit/internal/star/schema"
)

// effect tells Apply which re-derivations a mutation needs before refresh.
type effect uint8

const (
	effectNone effect = iota
	// effectFiles: registry changed, rewrite the upload loop from it.
	effectFiles
	// effectUploadLoop: upload loop edited directly, rebuild the registry.
	effectUploadLoop
)

// Mutation is one edit of the tree. Apply is the only way to run one.
type Mutation interface {
	apply(e *Entry) (effect, error)
}

// Apply runs a mutation and every re-derivation it requires, ending with a
// full refresh. On error the tree is left as it was.
func (e *Entry) Apply(m Mutation) error {
	eff, err := m.apply(e)
	if err != nil {
		return err
	}
	switch eff {
	case effectFiles:
		e.updateUploadedData()
	case effectUploadLoop:
		e.regenerateFiles()
	}
	if _, view := m.(SetShowAll); !view {
		e.Unsaved = true
	}
	e.Refresh()
	return nil
}

func (e *Entry) mustSaveframe(name string) (*Saveframe, error) {
	sf, ok := e.Saveframe(name)
	if !ok {
		return nil, fmt.Errorf("saveframe %s: %w", name, ErrNotFound)
	}
	return sf, nil
}

func (e *Entry) mustLoop(sfName, category string) (*Loop, error) {
	sf, err := e.mustSaveframe(sfName)
	if err != nil {
		return nil, err
	}
	l, ok := sf.Loop(category)
	if !ok {
		return nil, fmt.Errorf("loop %s in %s: %w", category, sfName, ErrNotFound)
	}
	return l, nil
}

// SetTagValue writes a saveframe tag, or a loop cell when Loop is set. Tag
// may be the short or the fully-qualified name.
type SetTagValue struct {
	Saveframe string  `json:"saveframe"`
	Loop      string  `json:"loop,omitempty"`
	Row       int     `json:"row,omitempty"`
	Tag       string  `json:"tag"`
	Value     *string `json:"value"`
}

func (m SetTagValue) apply(e *Entry) (effect, error) {
	sf, err := e.mustSaveframe(m.Saveframe)
	if err != nil {
		return effectNone, err
	}
	if m.Loop == "" {
		t, ok := sf.Tag(m.Tag)
		if !ok {
			return effectNone, fmt.Errorf("tag %s in %s: %w", m.Tag, m.Saveframe, ErrNotFound)
		}
		if t.Disabled {
			return effectNone, fmt.Errorf("tag %s: %w", t.FullName(), ErrDisabled)
		}
		t.Value = normalizeValue(m.Value)
		return effectNone, nil
	}
	l, ok := sf.Loop(m.Loop)
	if !ok {
		return effectNone, fmt.Errorf("loop %s in %s: %w", m.Loop, m.Saveframe, ErrNotFound)
	}
	column := m.Tag
	if prefix, tag := schema.SplitName(m.Tag); strings.HasPrefix(m.Tag, "_") && prefix == l.category {
		column = tag
	}
	t, ok := l.Cell(m.Row, column)
	if !ok {
		return effectNone, fmt.Errorf("cell %s.%s row %d in %s: %w", l.category, column, m.Row, m.Saveframe, ErrNotFound)
	}
	if t.Disabled {
		return effectNone, fmt.Errorf("tag %s: %w", t.FullName(), ErrDisabled)
	}
	t.Value = normalizeValue(m.Value)
	if l.category == UploadLoop {
		return effectUploadLoop, nil
	}
	return effectNone, nil
}

// AddRow appends a default row to a loop.
type AddRow struct {
	Saveframe string `json:"saveframe"`
	Loop      string `json:"loop"`
}

func (m AddRow) apply(e *Entry) (effect, error) {
	l, err := e.mustLoop(m.Saveframe, m.Loop)
	if err != nil {
		return effectNone, err
	}
	l.AddRow()
	if l.category == UploadLoop {
		return effectUploadLoop, nil
	}
	return effectNone, nil
}

// DeleteRow removes one row of a loop.
type DeleteRow struct {
	Saveframe string `json:"saveframe"`
	Loop      string `json:"loop"`
	Row       int    `json:"row"`
}

func (m DeleteRow) apply(e *Entry) (effect, error) {
	l, err := e.mustLoop(m.Saveframe, m.Loop)
	if err != nil {
		return effectNone, err
	}
	if err := l.DeleteRow(m.Row); err != nil {
		return effectNone, err
	}
	if l.category == UploadLoop {
		return effectUploadLoop, nil
	}
	return effectNone, nil
}

// AddSaveframe appends a new saveframe of a category built from the
// dictionary. An empty Name picks the next free "<category>_N".
type AddSaveframe struct {
	Category string `json:"category"`
	Name     string `json:"name,omitempty"`
}

func (m AddSaveframe) apply(e *Entry) (effect, error) {
	name := m.Name
	if name == "" {
		name = e.nextFramecode(m.Category)
	}
	if _, taken := e.Saveframe(name); taken {
		return effectNone, fmt.Errorf("saveframe %s: %w", name, ErrExists)
	}
	sf, err := NewSaveframe(e.Schema, name, m.Category)
	if err != nil {
		return effectNone, err
	}
	e.AddSaveframe(sf, -1, false)
	return effectNone, nil
}

// DuplicateSaveframe copies a saveframe next to itself.
type DuplicateSaveframe struct {
	Saveframe   string `json:"saveframe"`
	ClearValues bool   `json:"clear_values,omitempty"`
}

func (m DuplicateSaveframe) apply(e *Entry) (effect, error) {
	sf, err := e.mustSaveframe(m.Saveframe)
	if err != nil {
		return effectNone, err
	}
	_, err = e.DuplicateSaveframe(sf, m.ClearValues)
	return effectNone, err
}

// DeleteSaveframe soft-deletes a saveframe; it keeps its position.
type DeleteSaveframe struct {
	Saveframe string `json:"saveframe"`
}

func (m DeleteSaveframe) apply(e *Entry) (effect, error) {
	sf, err := e.mustSaveframe(m.Saveframe)
	if err != nil {
		return effectNone, err
	}
	sf.setDeleted(true)
	return effectNone, nil
}

// RestoreSaveframe clears the soft-delete marker.
type RestoreSaveframe struct {
	Saveframe string `json:"saveframe"`
}

func (m RestoreSaveframe) apply(e *Entry) (effect, error) {
	sf, err := e.mustSaveframe(m.Saveframe)
	if err != nil {
		return effectNone, err
	}
	sf.setDeleted(false)
	return effectNone, nil
}

// AddFile registers an uploaded file, moving a known one to the end.
type AddFile struct {
	Name string `json:"name"`
}

func (m AddFile) apply(e *Entry) (effect, error) {
	if strings.TrimSpace(m.Name) == "" {
		return effectNone, fmt.Errorf("file name: %w", ErrNotFound)
	}
	e.Files.Add(m.Name)
	return effectFiles, nil
}

// RenameFile renames a file, merging into an existing record of that name.
type RenameFile struct {
	Name    string `json:"name"`
	NewName string `json:"new_name"`
}

func (m RenameFile) apply(e *Entry) (effect, error) {
	if err := e.Files.Rename(m.Name, m.NewName); err != nil {
		return effectNone, err
	}
	return effectFiles, nil
}

// DeleteFile forgets an uploaded file.
type DeleteFile struct {
	Name string `json:"name"`
}

func (m DeleteFile) apply(e *Entry) (effect, error) {
	if err := e.Files.Delete(m.Name); err != nil {
		return effectNone, err
	}
	return effectFiles, nil
}

// SetFileTypes replaces the content types of a file, by description.
type SetFileTypes struct {
	Name  string   `json:"name"`
	Types []string `json:"types"`
}

func (m SetFileTypes) apply(e *Entry) (effect, error) {
	types := make([]schema.FileUploadType, 0, len(m.Types))
	for _, desc := range m.Types {
		ft, ok := e.Schema.FileUploadType(desc)
		if !ok {
			return effectNone, fmt.Errorf("content type %q: %w", desc, ErrNotFound)
		}
		types = append(types, ft)
	}
	if err := e.Files.SetTypes(m.Name, types); err != nil {
		return effectNone, err
	}
	return effectFiles, nil
}

// SetShowAll toggles whether optional categories join the navigation order.
type SetShowAll struct {
	ShowAll bool `json:"show_all"`
}

func (m SetShowAll) apply(e *Entry) (effect, error) {
	e.ShowAll = m.ShowAll
	return effectNone, nil
}

// DecodeMutation reads a mutation from {"op": "...", ...}.
func DecodeMutation(raw []byte) (Mutation, error) {
	var head struct {
		Op string `json:"op"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode mutation: %w", err)
	}
	var m Mutation
	var err error
	switch head.Op {
	case "set_tag_value":
		m, err = decodeAs[SetTagValue](raw)
	case "add_row":
		m, err = decodeAs[AddRow](raw)
	case "delete_row":
		m, err = decodeAs[DeleteRow](raw)
	case "add_saveframe":
		m, err = decodeAs[AddSaveframe](raw)
	case "duplicate_saveframe":
		m, err = decodeAs[DuplicateSaveframe](raw)
	case "delete_saveframe":
		m, err = decodeAs[DeleteSaveframe](raw)
	case "restore_saveframe":
		m, err = decodeAs[RestoreSaveframe](raw)
	case "add_file":
		m, err = decodeAs[AddFile](raw)
	case "rename_file":
		m, err = decodeAs[RenameFile](raw)
	case "delete_file":
		m, err = decodeAs[DeleteFile](raw)
	case "set_file_types":
		m, err = decodeAs[SetFileTypes](raw)
	case "set_show_all":
		m, err = decodeAs[SetShowAll](raw)
	default:
		return nil, fmt.Errorf("mutation op %q: %w", head.Op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("decode mutation %s: %w", head.Op, err)
	}
	return m, nil
}

func decodeAs[T Mutation](raw []byte) (Mutation, error) {
	var m T
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
