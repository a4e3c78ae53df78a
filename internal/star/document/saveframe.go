package document

import (
	"fmt"
	"log"
	"strings"

	"nmrdeposit/internal/star/schema"
)

// Reserved saveframe tag names.
const (
	FramecodeTag = "Sf_framecode"
	CategoryTag  = "Sf_category"
	NameTag      = "Name"
	DeletedTag   = "_Deleted"
)

var deletedRule = &schema.TagRule{
	Name:           DeletedTag,
	Tag:            DeletedTag,
	DefaultDisplay: schema.DisplayHidden,
	Interface:      schema.InterfaceStandard,
}

// Saveframe is a named block of tags and loops. Its category and tag prefix
// never change after construction.
type Saveframe struct {
	Name             string
	Tags             []*Tag
	Loops            []*Loop
	Display          schema.Display
	Valid            bool
	Index            int
	NextCategory     string
	PreviousCategory string

	category  string
	tagPrefix string
	tagDict   map[string]*Tag
	rule      *schema.SaveframeRule
	catalog   *schema.Catalog
}

func newSaveframe(cat *schema.Catalog, name, category, prefix string) *Saveframe {
	return &Saveframe{
		Name:      name,
		Valid:     true,
		Display:   schema.DisplayHidden,
		category:  category,
		tagPrefix: prefix,
		tagDict:   make(map[string]*Tag),
		rule:      cat.Saveframe(category),
		catalog:   cat,
	}
}

// NewSaveframe builds an empty saveframe of a category from the dictionary:
// every saveframe-level tag at its default, and every loop with one default row.
func NewSaveframe(cat *schema.Catalog, name, category string) (*Saveframe, error) {
	prefix := cat.Prefix(category)
	if prefix == "" {
		return nil, fmt.Errorf("saveframe category %s: %w", category, ErrNotFound)
	}
	sf := newSaveframe(cat, name, category, prefix)
	var loopOrder []string
	loopCols := make(map[string][]string)
	for _, r := range cat.TagsFor(category) {
		if r.Category == prefix {
			sf.addTag(r.Tag, r.Default)
			continue
		}
		if _, ok := loopCols[r.Category]; !ok {
			loopOrder = append(loopOrder, r.Category)
		}
		loopCols[r.Category] = append(loopCols[r.Category], r.Tag)
	}
	sf.ensureTag(CategoryTag, category)
	sf.ensureTag(FramecodeTag, name)
	for _, lc := range loopOrder {
		l := newLoop(cat, lc, loopCols[lc])
		l.AddRow()
		sf.Loops = append(sf.Loops, l)
	}
	return sf, nil
}

// Category is the saveframe category, e.g. "entity".
func (sf *Saveframe) Category() string { return sf.category }

// TagPrefix is the tag category of saveframe-level tags, e.g. "_Entity".
func (sf *Saveframe) TagPrefix() string { return sf.tagPrefix }

// Rule returns the dictionary rule of the saveframe category.
func (sf *Saveframe) Rule() *schema.SaveframeRule { return sf.rule }

func (sf *Saveframe) fullName(name string) string {
	if strings.HasPrefix(name, "_") && strings.Contains(name, ".") {
		return name
	}
	return sf.tagPrefix + "." + name
}

// Tag looks a saveframe-level tag up by short or fully-qualified name.
func (sf *Saveframe) Tag(name string) (*Tag, bool) {
	t, ok := sf.tagDict[sf.fullName(name)]
	return t, ok
}

// TagValue returns the value of a saveframe-level tag, nil when absent.
func (sf *Saveframe) TagValue(name string) *string {
	if t, ok := sf.Tag(name); ok {
		return t.Value
	}
	return nil
}

// Loop returns the loop of the given category.
func (sf *Saveframe) Loop(category string) (*Loop, bool) {
	for _, l := range sf.Loops {
		if l.category == category {
			return l, true
		}
	}
	return nil, false
}

// addTag appends a tag. A repeated name updates the existing tag instead,
// keeping names unique.
func (sf *Saveframe) addTag(name string, value *string) *Tag {
	fq := sf.fullName(name)
	if t, ok := sf.tagDict[fq]; ok {
		log.Printf("saveframe %s: duplicate tag %s, keeping one", sf.Name, fq)
		t.Value = normalizeValue(value)
		return t
	}
	_, short := schema.SplitName(fq)
	rule := deletedRule
	if short != DeletedTag {
		rule = sf.catalog.Tag(fq)
	}
	t := newTag(SaveframeTag, sf.tagPrefix, short, value, rule)
	sf.Tags = append(sf.Tags, t)
	sf.tagDict[fq] = t
	return t
}

func (sf *Saveframe) ensureTag(name, value string) {
	if t, ok := sf.Tag(name); ok {
		t.Value = strp(value)
		return
	}
	sf.addTag(name, strp(value))
}

// Deleted reports whether the saveframe carries the soft-delete marker.
func (sf *Saveframe) Deleted() bool {
	t, ok := sf.Tag(DeletedTag)
	return ok && t.Is("yes")
}

func (sf *Saveframe) setDeleted(deleted bool) {
	if deleted {
		sf.ensureTag(DeletedTag, "yes")
		return
	}
	if t, ok := sf.Tag(DeletedTag); ok {
		t.Value = nil
	}
}

// Label is the saveframe's Name tag, falling back to its framecode.
func (sf *Saveframe) Label() string {
	if v := sf.TagValue(NameTag); v != nil {
		return *v
	}
	return sf.Name + " (unnamed)"
}

func (sf *Saveframe) eachTag(fn func(*Tag)) {
	for _, t := range sf.Tags {
		fn(t)
	}
	for _, l := range sf.Loops {
		for _, row := range l.Rows {
			for _, t := range row {
				fn(t)
			}
		}
	}
}
