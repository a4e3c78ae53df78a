package document

import (
	"fmt"
	"strconv"

	"nmrdeposit/internal/star/schema"
)

// Upload-data loop layout.
const (
	DataFilesCategory = "deposited_data_files"
	InterviewCategory = "entry_interview"
	UploadLoop        = "_Upload_data"
	uploadNameColumn  = "Data_file_name"
	uploadTypeColumn  = "Data_file_content_type"
	uploadSfCatColumn = "Data_file_Sf_category"
)

var uploadColumns = []string{IDColumn, uploadNameColumn, uploadTypeColumn, uploadSfCatColumn}

// DataFile is one uploaded file and the content types the depositor says it
// holds.
type DataFile struct {
	Name  string                  `json:"name"`
	Types []schema.FileUploadType `json:"types"`
}

// HasType reports whether the file carries the content type description.
func (f *DataFile) HasType(description string) bool {
	for _, t := range f.Types {
		if t.Description == description {
			return true
		}
	}
	return false
}

func (f *DataFile) addType(ft schema.FileUploadType) {
	if !f.HasType(ft.Description) {
		f.Types = append(f.Types, ft)
	}
}

// FileRegistry is the name-keyed, recency-ordered list of uploaded files.
type FileRegistry struct {
	files []*DataFile
	index map[string]int
}

func newFileRegistry() *FileRegistry {
	return &FileRegistry{index: make(map[string]int)}
}

func (r *FileRegistry) reindex() {
	r.index = make(map[string]int, len(r.files))
	for i, f := range r.files {
		r.index[f.Name] = i
	}
}

// Files returns the records in order.
func (r *FileRegistry) Files() []*DataFile {
	return append([]*DataFile(nil), r.files...)
}

// Names returns the file names in order.
func (r *FileRegistry) Names() []string {
	out := make([]string, len(r.files))
	for i, f := range r.files {
		out[i] = f.Name
	}
	return out
}

// Get returns the record for name.
func (r *FileRegistry) Get(name string) (*DataFile, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.files[i], true
}

// Add registers name. Adding a known name moves its record to the end.
func (r *FileRegistry) Add(name string) *DataFile {
	if i, ok := r.index[name]; ok {
		f := r.files[i]
		r.files = append(r.files[:i], r.files[i+1:]...)
		r.files = append(r.files, f)
		r.reindex()
		return f
	}
	return r.ensure(name)
}

// ensure returns the record for name, appending one without reordering.
func (r *FileRegistry) ensure(name string) *DataFile {
	if f, ok := r.Get(name); ok {
		return f
	}
	f := &DataFile{Name: name}
	r.files = append(r.files, f)
	r.index[name] = len(r.files) - 1
	return f
}

// Rename moves a record to a new name. When newName is already registered the
// two records merge into the existing one.
func (r *FileRegistry) Rename(oldName, newName string) error {
	src, ok := r.Get(oldName)
	if !ok {
		return fmt.Errorf("file %s: %w", oldName, ErrNotFound)
	}
	if oldName == newName {
		return nil
	}
	if dst, ok := r.Get(newName); ok {
		for _, t := range src.Types {
			dst.addType(t)
		}
		i := r.index[oldName]
		r.files = append(r.files[:i], r.files[i+1:]...)
		r.reindex()
		return nil
	}
	src.Name = newName
	r.reindex()
	return nil
}

// Delete forgets a file.
func (r *FileRegistry) Delete(name string) error {
	i, ok := r.index[name]
	if !ok {
		return fmt.Errorf("file %s: %w", name, ErrNotFound)
	}
	r.files = append(r.files[:i], r.files[i+1:]...)
	r.reindex()
	return nil
}

// SetTypes replaces the content types of a file.
func (r *FileRegistry) SetTypes(name string, types []schema.FileUploadType) error {
	f, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("file %s: %w", name, ErrNotFound)
	}
	f.Types = nil
	for _, t := range types {
		f.addType(t)
	}
	return nil
}

func (e *Entry) uploadSaveframe() (*Saveframe, bool) {
	for _, sf := range e.Saveframes {
		if sf.category == DataFilesCategory && !sf.Deleted() {
			return sf, true
		}
	}
	return nil, false
}

// regenerateFiles rebuilds the registry from the upload-data loop. Rows are
// grouped by file name in first-seen order; content types are matched by
// exact description and unknown ones are dropped.
func (e *Entry) regenerateFiles() {
	reg := newFileRegistry()
	e.Files = reg
	sf, ok := e.uploadSaveframe()
	if !ok {
		return
	}
	l, ok := sf.Loop(UploadLoop)
	if !ok {
		return
	}
	nameCol, typeCol := l.ColumnIndex(uploadNameColumn), l.ColumnIndex(uploadTypeColumn)
	if nameCol < 0 {
		e.warnOnce("upload:columns", "files: %s has no %s column", UploadLoop, uploadNameColumn)
		return
	}
	for _, row := range l.Rows {
		if nameCol >= len(row) || row[nameCol].Value == nil {
			continue
		}
		f := reg.ensure(*row[nameCol].Value)
		if typeCol < 0 || typeCol >= len(row) || row[typeCol].Value == nil {
			continue
		}
		desc := *row[typeCol].Value
		ft, ok := e.Schema.FileUploadType(desc)
		if !ok {
			e.warnOnce("upload:type:"+desc, "files: unknown content type %q on %s dropped", desc, f.Name)
			continue
		}
		f.addType(ft)
	}
}

// updateUploadedData writes the registry back into the upload-data loop and
// flips the interview flags fed by file content types.
func (e *Entry) updateUploadedData() {
	if sf, ok := e.uploadSaveframe(); ok {
		l, ok := sf.Loop(UploadLoop)
		if !ok {
			l = newLoop(e.Schema, UploadLoop, uploadColumns)
			sf.Loops = append(sf.Loops, l)
		}
		l.Rows = nil
		id := 0
		writeRow := func(name string, ft *schema.FileUploadType) {
			id++
			values := make([]*string, len(l.columns))
			for i, c := range l.columns {
				switch {
				case c == IDColumn:
					values[i] = strp(strconv.Itoa(id))
				case c == uploadNameColumn:
					values[i] = strp(name)
				case c == uploadTypeColumn && ft != nil:
					values[i] = strp(ft.Description)
				case c == uploadSfCatColumn && ft != nil && ft.Category != "":
					values[i] = strp(ft.Category)
				}
			}
			l.appendRow(values)
		}
		for _, f := range e.Files.files {
			if len(f.Types) == 0 {
				writeRow(f.Name, nil)
				continue
			}
			for i := range f.Types {
				writeRow(f.Name, &f.Types[i])
			}
		}
	} else {
		e.warnOnce("upload:sf", "files: no %s saveframe, upload loop not written", DataFilesCategory)
	}

	// Several content types may feed one interview tag; it is "yes" when any
	// of them is in use.
	var tags []string
	used := make(map[string]bool)
	for _, ft := range e.Schema.FileUploadTypes() {
		if ft.InterviewTag == "" {
			continue
		}
		if _, seen := used[ft.InterviewTag]; !seen {
			tags = append(tags, ft.InterviewTag)
			used[ft.InterviewTag] = false
		}
		for _, f := range e.Files.files {
			if f.HasType(ft.Description) {
				used[ft.InterviewTag] = true
				break
			}
		}
	}
	for _, fqtn := range tags {
		value := "no"
		if used[fqtn] {
			value = "yes"
		}
		prefix, tag := schema.SplitName(fqtn)
		for _, sf := range e.Saveframes {
			if sf.tagPrefix != prefix {
				continue
			}
			if t, ok := sf.Tag(tag); ok {
				t.Value = strp(value)
			} else {
				sf.addTag(tag, strp(value))
			}
		}
	}
}
