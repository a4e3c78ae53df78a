// Package schema turns the NMR-STAR dictionary payload into typed, immutable
// lookup tables: tag rules, saveframe rules, override rules and the
// supergroup hierarchy. Nothing in this package is mutated after Build.
package schema

import (
	"regexp"
	"strings"
)

// Display is the tri-state visibility of a tag, loop or saveframe.
type Display string

const (
	DisplayMandatory Display = "Y"
	DisplayOptional  Display = "N"
	DisplayHidden    Display = "H"

	// DisplayRestore only appears in override rules: put the default back.
	DisplayRestore Display = "O"
)

// ParseDisplay maps a dictionary cell to a Display. Unknown values fall back
// to DisplayOptional.
func ParseDisplay(raw string) Display {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "Y":
		return DisplayMandatory
	case "H":
		return DisplayHidden
	case "O":
		return DisplayRestore
	default:
		return DisplayOptional
	}
}

// Rank orders displays from least to most visible.
func (d Display) Rank() int {
	switch d {
	case DisplayMandatory:
		return 2
	case DisplayOptional:
		return 1
	default:
		return 0
	}
}

// Max returns the more visible of two displays.
func (d Display) Max(o Display) Display {
	if o.Rank() > d.Rank() {
		return o
	}
	return d
}

// InterfaceType selects how a tag's candidate values are resolved and checked.
type InterfaceType string

const (
	InterfaceStandard   InterfaceType = "standard"
	InterfaceClosedEnum InterfaceType = "closed_enum"
	InterfaceOpenEnum   InterfaceType = "open_enum"
	InterfaceYesNo      InterfaceType = "yes_no"
	InterfaceSfPointer  InterfaceType = "sf_pointer"
	InterfaceDataFile   InterfaceType = "data_file"
)

func parseInterface(raw string) (InterfaceType, bool) {
	switch InterfaceType(strings.ToLower(strings.TrimSpace(raw))) {
	case InterfaceStandard:
		return InterfaceStandard, true
	case InterfaceClosedEnum:
		return InterfaceClosedEnum, true
	case InterfaceOpenEnum:
		return InterfaceOpenEnum, true
	case InterfaceYesNo:
		return InterfaceYesNo, true
	case InterfaceSfPointer:
		return InterfaceSfPointer, true
	case InterfaceDataFile:
		return InterfaceDataFile, true
	}
	return "", false
}

// Closed reports whether values outside the resolved enumeration are invalid.
func (it InterfaceType) Closed() bool {
	switch it {
	case InterfaceClosedEnum, InterfaceYesNo, InterfaceSfPointer, InterfaceDataFile:
		return true
	}
	return false
}

// Matcher decides whether a (nullable) value satisfies a rule.
type Matcher interface {
	Match(value *string) bool
}

type anyValue struct{}

func (anyValue) Match(v *string) bool { return v != nil }

type always struct{}

func (always) Match(*string) bool { return true }

type pattern struct {
	re *regexp.Regexp
}

func (p pattern) Match(v *string) bool {
	return v != nil && p.re.MatchString(*v)
}

// AnyValue matches every non-null value.
func AnyValue() Matcher { return anyValue{} }

// Literal compiles an anchored equality matcher for an override trigger.
// The trigger "*" matches everything, including null.
func Literal(trigger string) Matcher {
	if trigger == "*" {
		return always{}
	}
	return pattern{re: regexp.MustCompile("^" + regexp.QuoteMeta(trigger) + "$")}
}

// compileDataType anchors a dictionary regex. ok is false when RE2 rejects it.
func compileDataType(expr string) (Matcher, bool) {
	re, err := regexp.Compile(`(?s)^(?:` + expr + `)$`)
	if err != nil {
		return anyValue{}, false
	}
	return pattern{re: re}, true
}

// TagRule is everything the dictionary says about one fully-qualified tag.
type TagRule struct {
	Name              string // _Category.Tag
	Category          string // _Category
	Tag               string // Tag
	SaveframeCategory string
	DataType          string
	Default           *string
	DefaultDisplay    Display
	Enumerations      []string
	EnumTie           string
	ForeignTable      string
	Interface         InterfaceType
	Prompt            string
	Example           string
	Description       string
	Sequence          float64

	// Synthetic marks a permissive rule invented for a tag the dictionary
	// does not know.
	Synthetic bool

	matcher Matcher
}

// Valid reports whether a non-null value satisfies the data type.
func (r *TagRule) Valid(value *string) bool {
	if r == nil || r.matcher == nil {
		return value != nil
	}
	return r.matcher.Match(value)
}

// SfPointer reports whether the tag references another saveframe.
func (r *TagRule) SfPointer() bool {
	return r != nil && r.Interface == InterfaceSfPointer
}

// SaveframeRule describes one saveframe category.
type SaveframeRule struct {
	Category   string
	Mandatory  bool
	GroupName  string
	Replicable bool
	Help       string
	Synthetic  bool
}

// OverrideRule conditionally changes the display of a tag, loop or saveframe.
type OverrideRule struct {
	Conditional       string // _Category.Tag
	ConditionalPrefix string // _Category
	ConditionalTag    string // Tag
	TargetCategory    string
	TargetTag         string // tag name or "*"
	View              Display
	Trigger           string
	Order             float64

	matcher Matcher
}

// Triggered evaluates the compiled trigger against the conditional value.
func (o OverrideRule) Triggered(value *string) bool {
	if o.matcher == nil {
		return false
	}
	return o.matcher.Match(value)
}

// Wildcard reports whether the rule targets every tag of its category.
func (o OverrideRule) Wildcard() bool { return o.TargetTag == "*" }

// Supergroup is a top-level navigation group of saveframe categories.
type Supergroup struct {
	Name        string
	Description string
	Categories  []string
}

// FileUploadType is one content type a deposited data file can carry.
type FileUploadType struct {
	Description  string
	Category     string
	InterviewTag string
}

// SplitName splits "_Category.Tag" into its prefix and tag name.
func SplitName(fqtn string) (prefix, tag string) {
	i := strings.LastIndex(fqtn, ".")
	if i < 0 {
		return "", fqtn
	}
	return fqtn[:i], fqtn[i+1:]
}
