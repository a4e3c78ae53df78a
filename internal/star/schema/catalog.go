package schema

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Catalog is the parsed dictionary. It is safe for concurrent reads.
type Catalog struct {
	Version string

	tags        map[string]*TagRule
	tagOrder    []*TagRule
	saveframes  map[string]*SaveframeRule
	overrides   []OverrideRule
	supergroups []Supergroup
	fileTypes   []FileUploadType
	prefixes    map[string]string // saveframe category -> tag prefix

	raw json.RawMessage

	warnMu sync.Mutex
	warned map[string]struct{}
}

type rawTable struct {
	Headers []string `json:"headers"`
	Values  [][]any  `json:"values"`
}

type rawSchema struct {
	Version                any               `json:"version"`
	Tags                   rawTable          `json:"tags"`
	Saveframes             rawTable          `json:"saveframes"`
	DataTypes              map[string]any    `json:"data_types"`
	Overrides              rawTable          `json:"overrides"`
	CategorySupergroups    json.RawMessage   `json:"category_supergroups"`
	SupergroupDescriptions map[string]string `json:"supergroup_descriptions"`
	FileUploadTypes        [][]any           `json:"file_upload_types"`
}

// Build parses the dictionary payload. Only a payload that is not a JSON
// object is an error; malformed rows are skipped with a warning.
func Build(raw []byte) (*Catalog, error) {
	var rs rawSchema
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	c := &Catalog{
		Version:    cellString(rs.Version),
		tags:       make(map[string]*TagRule),
		saveframes: make(map[string]*SaveframeRule),
		prefixes:   make(map[string]string),
		raw:        append(json.RawMessage(nil), raw...),
		warned:     make(map[string]struct{}),
	}
	dataTypes := make(map[string]string, len(rs.DataTypes))
	for k, v := range rs.DataTypes {
		if s, ok := v.(string); ok {
			dataTypes[strings.ToLower(k)] = s
		}
	}
	c.buildTags(rs.Tags, dataTypes)
	c.buildSaveframes(rs.Saveframes)
	c.buildOverrides(rs.Overrides)
	groups, err := decodeSupergroups(rs.CategorySupergroups)
	if err != nil {
		log.Printf("catalog: category_supergroups ignored: %v", err)
	}
	for i := range groups {
		groups[i].Description = rs.SupergroupDescriptions[groups[i].Name]
	}
	c.supergroups = groups
	c.buildFileTypes(rs.FileUploadTypes)
	return c, nil
}

// Raw returns the payload the catalog was built from.
func (c *Catalog) Raw() json.RawMessage {
	if c == nil {
		return nil
	}
	return c.raw
}

var freeTextTypes = map[string]struct{}{
	"text":      {},
	"line":      {},
	"framecode": {},
}

func (c *Catalog) buildTags(t rawTable, dataTypes map[string]string) {
	tbl := newTable("tags", t)
	for i, row := range tbl.rows {
		name, ok := tbl.key(row, "Tag")
		if !ok || !strings.HasPrefix(name, "_") || !strings.Contains(name, ".") {
			log.Printf("catalog: tags row %d skipped: missing or malformed Tag", i)
			continue
		}
		prefix, tag := SplitName(name)
		r := &TagRule{
			Name:              name,
			Category:          prefix,
			Tag:               tag,
			SaveframeCategory: tbl.str(row, "SFCategory"),
			DataType:          tbl.str(row, "BMRB data type"),
			DefaultDisplay:    ParseDisplay(tbl.str(row, "User full view")),
			EnumTie:           tbl.str(row, "Enumeration ties"),
			ForeignTable:      strings.TrimPrefix(tbl.str(row, "Foreign Table"), "_"),
			Prompt:            tbl.str(row, "Prompt"),
			Example:           tbl.str(row, "Example"),
			Description:       tbl.str(row, "Description"),
			Sequence:          tbl.num(row, "Dictionary sequence", float64(i)),
		}
		if r.DefaultDisplay == DisplayRestore {
			r.DefaultDisplay = DisplayOptional
		}
		if def := tbl.str(row, "Default value"); def != "" && def != "?" {
			r.Default = &def
		}
		r.Enumerations = tbl.list(row, "enumerations")
		r.Interface = deriveInterface(
			tbl.str(row, "Interface type"),
			tbl.flag(row, "Sf pointer"),
			tbl.flag(row, "Item enumerated"),
			tbl.flag(row, "Item enumeration closed"),
		)
		r.matcher = AnyValue()
		if _, free := freeTextTypes[strings.ToLower(r.DataType)]; !free && r.DataType != "" {
			if expr, ok := dataTypes[strings.ToLower(r.DataType)]; ok {
				m, ok := compileDataType(expr)
				if !ok {
					log.Printf("catalog: data type %q for %s has an unsupported regex, accepting any value", r.DataType, name)
				}
				r.matcher = m
			}
		}
		if _, dup := c.tags[name]; dup {
			log.Printf("catalog: duplicate tag %s, keeping the first", name)
			continue
		}
		c.tags[name] = r
		c.tagOrder = append(c.tagOrder, r)
		if tag == "Sf_category" && r.SaveframeCategory != "" {
			if _, ok := c.prefixes[r.SaveframeCategory]; !ok {
				c.prefixes[r.SaveframeCategory] = prefix
			}
		}
	}
	sort.SliceStable(c.tagOrder, func(i, j int) bool {
		return c.tagOrder[i].Sequence < c.tagOrder[j].Sequence
	})
}

func deriveInterface(explicit string, pointer, enumerated, closed bool) InterfaceType {
	if it, ok := parseInterface(explicit); ok {
		return it
	}
	switch {
	case pointer:
		return InterfaceSfPointer
	case enumerated && closed:
		return InterfaceClosedEnum
	case enumerated:
		return InterfaceOpenEnum
	default:
		return InterfaceStandard
	}
}

func (c *Catalog) buildSaveframes(t rawTable) {
	tbl := newTable("saveframes", t)
	for i, row := range tbl.rows {
		category, ok := tbl.key(row, "saveframe_category")
		if !ok {
			log.Printf("catalog: saveframes row %d skipped: missing saveframe_category", i)
			continue
		}
		c.saveframes[category] = &SaveframeRule{
			Category:   category,
			Mandatory:  tbl.num(row, "mandatory_number", 0) > 0,
			GroupName:  tbl.str(row, "category_group_view_name"),
			Replicable: tbl.flag(row, "ADIT replicable"),
			Help:       tbl.str(row, "help_text"),
		}
	}
}

func (c *Catalog) buildOverrides(t rawTable) {
	tbl := newTable("overrides", t)
	for i, row := range tbl.rows {
		target, ok := tbl.key(row, "Tag")
		cond, ok2 := tbl.key(row, "Conditional tag")
		if !ok || !ok2 {
			log.Printf("catalog: overrides row %d skipped: missing Tag or Conditional tag", i)
			continue
		}
		view := strings.TrimSpace(tbl.str(row, "Override view value"))
		if view == "" {
			log.Printf("catalog: overrides row %d skipped: missing Override view value", i)
			continue
		}
		condPrefix, condTag := SplitName(cond)
		targetPrefix, targetTag := SplitName(target)
		if condPrefix == "" || targetPrefix == "" {
			log.Printf("catalog: overrides row %d skipped: tag names must be fully qualified", i)
			continue
		}
		trigger := tbl.str(row, "Override value")
		c.overrides = append(c.overrides, OverrideRule{
			Conditional:       cond,
			ConditionalPrefix: condPrefix,
			ConditionalTag:    condTag,
			TargetCategory:    targetPrefix,
			TargetTag:         targetTag,
			View:              ParseDisplay(view),
			Trigger:           trigger,
			Order:             tbl.num(row, "Order of operations", 0),
			matcher:           Literal(trigger),
		})
	}
	sort.SliceStable(c.overrides, func(i, j int) bool {
		return c.overrides[i].Order < c.overrides[j].Order
	})
}

func (c *Catalog) buildFileTypes(rows [][]any) {
	for i, row := range rows {
		if len(row) < 2 {
			log.Printf("catalog: file_upload_types row %d skipped: want [description, category, tag]", i)
			continue
		}
		ft := FileUploadType{
			Description: cellString(row[0]),
			Category:    cellString(row[1]),
		}
		if len(row) > 2 {
			ft.InterviewTag = cellString(row[2])
		}
		if ft.Description == "" {
			log.Printf("catalog: file_upload_types row %d skipped: empty description", i)
			continue
		}
		c.fileTypes = append(c.fileTypes, ft)
	}
}

// LookupTag returns the dictionary rule for a fully-qualified tag name.
func (c *Catalog) LookupTag(fqtn string) (*TagRule, bool) {
	if c == nil {
		return nil, false
	}
	r, ok := c.tags[fqtn]
	return r, ok
}

// Tag returns the rule for fqtn, or a permissive synthetic rule (free text,
// always displayed) when the dictionary does not know the tag.
func (c *Catalog) Tag(fqtn string) *TagRule {
	if r, ok := c.LookupTag(fqtn); ok {
		return r
	}
	c.warnOnce("tag:"+fqtn, "catalog: tag %s not in dictionary, using a free-text rule", fqtn)
	prefix, tag := SplitName(fqtn)
	return &TagRule{
		Name:           fqtn,
		Category:       prefix,
		Tag:            tag,
		DefaultDisplay: DisplayMandatory,
		Interface:      InterfaceStandard,
		Synthetic:      true,
		matcher:        AnyValue(),
	}
}

// Saveframe returns the rule for a saveframe category, synthesizing an
// optional, non-mandatory rule for unknown categories.
func (c *Catalog) Saveframe(category string) *SaveframeRule {
	if c != nil {
		if r, ok := c.saveframes[category]; ok {
			return r
		}
	}
	c.warnOnce("sf:"+category, "catalog: saveframe category %s not in dictionary", category)
	return &SaveframeRule{Category: category, GroupName: category, Synthetic: true}
}

// SaveframeRules returns the dictionary's saveframe rules ordered by
// category. Synthesized rules for unknown categories are not included.
func (c *Catalog) SaveframeRules() []*SaveframeRule {
	if c == nil {
		return nil
	}
	out := make([]*SaveframeRule, 0, len(c.saveframes))
	for _, r := range c.saveframes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// TagsFor returns the dictionary rules of one saveframe category in
// dictionary order, saveframe-level tags and loop columns alike.
func (c *Catalog) TagsFor(sfCategory string) []*TagRule {
	if c == nil {
		return nil
	}
	var out []*TagRule
	for _, r := range c.tagOrder {
		if r.SaveframeCategory == sfCategory {
			out = append(out, r)
		}
	}
	return out
}

// Prefix returns the tag prefix of a saveframe category ("" if unknown).
func (c *Catalog) Prefix(sfCategory string) string {
	if c == nil {
		return ""
	}
	return c.prefixes[sfCategory]
}

// Overrides returns the override rules in evaluation order.
func (c *Catalog) Overrides() []OverrideRule {
	if c == nil {
		return nil
	}
	return c.overrides
}

// Supergroups returns the declared supergroup hierarchy.
func (c *Catalog) Supergroups() []Supergroup {
	if c == nil {
		return nil
	}
	return c.supergroups
}

// FileUploadTypes returns the known data file content types.
func (c *Catalog) FileUploadTypes() []FileUploadType {
	if c == nil {
		return nil
	}
	return c.fileTypes
}

// FileUploadType resolves a content type by its exact description.
func (c *Catalog) FileUploadType(description string) (FileUploadType, bool) {
	for _, ft := range c.FileUploadTypes() {
		if ft.Description == description {
			return ft, true
		}
	}
	return FileUploadType{}, false
}

func (c *Catalog) warnOnce(key, format string, args ...any) {
	if c == nil {
		log.Printf(format, args...)
		return
	}
	c.warnMu.Lock()
	_, seen := c.warned[key]
	if !seen {
		c.warned[key] = struct{}{}
	}
	c.warnMu.Unlock()
	if !seen {
		log.Printf(format, args...)
	}
}

// table resolves header names to column positions once.
type table struct {
	name string
	idx  map[string]int
	rows [][]any
}

func newTable(name string, t rawTable) table {
	idx := make(map[string]int, len(t.Headers))
	for i, h := range t.Headers {
		idx[h] = i
	}
	return table{name: name, idx: idx, rows: t.Values}
}

func (t table) cell(row []any, header string) (any, bool) {
	i, ok := t.idx[header]
	if !ok || i >= len(row) {
		return nil, false
	}
	return row[i], true
}

func (t table) key(row []any, header string) (string, bool) {
	v, ok := t.cell(row, header)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	s = strings.TrimSpace(s)
	return s, ok && s != ""
}

func (t table) str(row []any, header string) string {
	v, _ := t.cell(row, header)
	return cellString(v)
}

func (t table) flag(row []any, header string) bool {
	v, _ := t.cell(row, header)
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return strings.EqualFold(strings.TrimSpace(x), "Y") || strings.EqualFold(strings.TrimSpace(x), "yes")
	}
	return false
}

func (t table) num(row []any, header string, fallback float64) float64 {
	v, _ := t.cell(row, header)
	switch x := v.(type) {
	case float64:
		return x
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
	}
	return fallback
}

func (t table) list(row []any, header string) []string {
	v, _ := t.cell(row, header)
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		// Enumerations are sometimes [value, description] pairs.
		if pair, ok := it.([]any); ok && len(pair) > 0 {
			it = pair[0]
		}
		if s := cellString(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "Y"
		}
		return "N"
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
