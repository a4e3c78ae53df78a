package document

import (
	"strings"

	"nmrdeposit/internal/star/schema"
)

// TagKind tells a saveframe-level tag from a loop cell.
type TagKind uint8

const (
	SaveframeTag TagKind = iota
	LoopTag
)

// Enum is one resolved candidate value of a tag.
type Enum struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Tag is a single scalar field. Display, Valid, ValidationMessage and Enums
// are derived and only meaningful after Entry.Refresh.
type Tag struct {
	Name              string
	Value             *string
	Display           schema.Display
	Valid             bool
	ValidationMessage string
	Interface         schema.InterfaceType
	Enums             []Enum
	Disabled          bool

	kind   TagKind
	prefix string
	rule   *schema.TagRule
}

func newTag(kind TagKind, prefix, name string, value *string, rule *schema.TagRule) *Tag {
	t := &Tag{
		Name:   name,
		Value:  normalizeValue(value),
		kind:   kind,
		prefix: prefix,
		rule:   rule,
		Valid:  true,
	}
	t.Interface = rule.Interface
	t.Display = rule.DefaultDisplay
	return t
}

// Kind reports whether the tag belongs to a saveframe or a loop row.
func (t *Tag) Kind() TagKind { return t.kind }

// FullName is the fully-qualified "_Category.Name" of the tag.
func (t *Tag) FullName() string { return t.prefix + "." + t.Name }

// Rule returns the dictionary rule backing the tag.
func (t *Tag) Rule() *schema.TagRule { return t.rule }

// Text returns the value or "" for null.
func (t *Tag) Text() string {
	if t.Value == nil {
		return ""
	}
	return *t.Value
}

// Is reports whether the value equals s.
func (t *Tag) Is(s string) bool {
	return t.Value != nil && *t.Value == s
}

func (t *Tag) invalidate(msg string) {
	t.Valid = false
	if t.ValidationMessage == "" {
		t.ValidationMessage = msg
	}
}

func (t *Tag) hasEnum(v string) bool {
	for _, e := range t.Enums {
		if e.Value == v {
			return true
		}
	}
	return false
}

// normalizeValue folds the STAR null markers and blank input into nil.
func normalizeValue(v *string) *string {
	if v == nil {
		return nil
	}
	switch strings.TrimSpace(*v) {
	case "", ".", "?":
		return nil
	}
	out := *v
	return &out
}

func strp(s string) *string { return &s }
