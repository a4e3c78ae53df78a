package document

import (
	"fmt"

	"nmrdeposit/internal/star/schema"
)

// Refresh recomputes every derived field of the entry from scratch: display,
// validity, enums, aggregates and navigation.
func (e *Entry) Refresh() {
	e.reset()
	e.syncChemShiftRows()
	e.collectEnumTies()
	e.applyOverrides()
	e.applyDisplayRules()
	e.validateTags()
	e.applyValidityRules()
	e.aggregate()
	e.navigate()
}

func (e *Entry) reset() {
	e.Valid = true
	e.enumTies = make(map[string][]string)
	for _, sf := range e.Saveframes {
		sf.Display = schema.DisplayHidden
		sf.Valid = true
		for _, t := range sf.Tags {
			resetTag(t)
			switch t.Name {
			case FramecodeTag, CategoryTag, DeletedTag:
				t.Disabled = true
			}
		}
		for _, l := range sf.Loops {
			l.Display = schema.DisplayHidden
			l.Valid = true
			for i := range l.columnDisplay {
				l.columnDisplay[i] = l.rules[i].DefaultDisplay
			}
			for _, row := range l.Rows {
				for _, t := range row {
					resetTag(t)
				}
			}
		}
	}
}

func resetTag(t *Tag) {
	t.Display = t.rule.DefaultDisplay
	t.Interface = t.rule.Interface
	t.Valid = true
	t.ValidationMessage = ""
	t.Enums = nil
	t.Disabled = false
}

// collectEnumTies gathers the current values of tied tags in document order.
func (e *Entry) collectEnumTies() {
	for _, sf := range e.Saveframes {
		sf.eachTag(func(t *Tag) {
			tie := t.rule.EnumTie
			if tie == "" || t.Value == nil {
				return
			}
			for _, v := range e.enumTies[tie] {
				if v == *t.Value {
					return
				}
			}
			e.enumTies[tie] = append(e.enumTies[tie], *t.Value)
		})
	}
}

// resolveEnums computes the candidate values of a tag.
func (e *Entry) resolveEnums(t *Tag) []Enum {
	r := t.rule
	switch t.Interface {
	case schema.InterfaceYesNo:
		return []Enum{{Value: "yes", Label: "yes"}, {Value: "no", Label: "no"}}
	case schema.InterfaceSfPointer:
		var out []Enum
		for _, sf := range e.Saveframes {
			if sf.Deleted() || sf.tagPrefix != "_"+r.ForeignTable {
				continue
			}
			out = append(out, Enum{Value: "$" + sf.Name, Label: sf.Label()})
		}
		return out
	case schema.InterfaceDataFile:
		var out []Enum
		for _, name := range e.Files.Names() {
			out = append(out, Enum{Value: name, Label: name})
		}
		return out
	}
	var out []Enum
	seen := make(map[string]struct{})
	add := func(v string) {
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, Enum{Value: v, Label: v})
	}
	for _, v := range r.Enumerations {
		add(v)
	}
	if r.EnumTie != "" {
		for _, v := range e.enumTies[r.EnumTie] {
			add(v)
		}
	}
	return out
}

func (e *Entry) validateTags() {
	for _, sf := range e.Saveframes {
		sf.eachTag(e.validateTag)
	}
}

func (e *Entry) validateTag(t *Tag) {
	t.Enums = e.resolveEnums(t)
	if t.Name == DeletedTag {
		return
	}
	if t.Value == nil {
		if t.Display == schema.DisplayMandatory {
			t.invalidate("Value is required.")
		}
		return
	}
	if !t.rule.Valid(t.Value) {
		t.invalidate(fmt.Sprintf("Value does not match the %s format.", t.rule.DataType))
		return
	}
	if !t.Interface.Closed() || t.hasEnum(*t.Value) {
		return
	}
	if t.Interface == schema.InterfaceSfPointer {
		t.invalidate("The referenced saveframe does not exist.")
		return
	}
	t.invalidate("Value is not one of the allowed values.")
}

// aggregate derives loop, saveframe and entry display and validity. Only
// tags and loops displayed as Y count towards validity. A mandatory category
// without a live saveframe invalidates the entry.
func (e *Entry) aggregate() {
	for _, sf := range e.Saveframes {
		display := schema.DisplayHidden
		valid := true
		for _, t := range sf.Tags {
			if t.Name == DeletedTag {
				continue
			}
			display = display.Max(t.Display)
			if t.Display == schema.DisplayMandatory && !t.Valid {
				valid = false
			}
		}
		for _, l := range sf.Loops {
			l.aggregate()
			display = display.Max(l.Display)
			if l.Display == schema.DisplayMandatory && !l.Valid {
				valid = false
			}
		}
		if sf.rule.Mandatory {
			display = schema.DisplayMandatory
		}
		if sf.Deleted() {
			display = schema.DisplayHidden
			valid = true
		}
		sf.Display = display
		sf.Valid = valid
		if sf.Display == schema.DisplayMandatory && !sf.Valid {
			e.Valid = false
		}
	}
	for _, r := range e.Schema.SaveframeRules() {
		if r.Mandatory && len(e.live(r.Category)) == 0 {
			e.Valid = false
		}
	}
}

func (l *Loop) aggregate() {
	display := schema.DisplayHidden
	for _, d := range l.columnDisplay {
		display = display.Max(d)
	}
	valid := true
	for _, row := range l.Rows {
		for _, t := range row {
			display = display.Max(t.Display)
			if t.Display == schema.DisplayMandatory && !t.Valid {
				valid = false
			}
		}
	}
	if display == schema.DisplayMandatory && len(l.Rows) == 0 {
		valid = false
	}
	l.Display = display
	l.Valid = valid
	l.Empty = !l.hasData()
}

// navigate derives category order, per-saveframe next/previous pointers,
// the first incomplete category, and supergroup summaries.
func (e *Entry) navigate() {
	cats := make(map[string]CategoryStatus)
	var seen []string
	for _, sf := range e.Saveframes {
		cs, ok := cats[sf.category]
		if !ok {
			cs = CategoryStatus{Category: sf.category, Display: schema.DisplayHidden, Valid: true}
			seen = append(seen, sf.category)
		}
		if !sf.Deleted() {
			cs.Count++
			sf.Index = cs.Count
			cs.Display = cs.Display.Max(sf.Display)
			cs.Valid = cs.Valid && sf.Valid
		} else {
			sf.Index = 0
		}
		cats[sf.category] = cs
	}
	for c, cs := range cats {
		if cs.Count > 0 && e.Schema.Saveframe(c).Mandatory {
			cs.Display = schema.DisplayMandatory
			cats[c] = cs
		}
	}
	e.Categories = cats

	var ordered []string
	placed := make(map[string]struct{})
	for _, g := range e.Schema.Supergroups() {
		for _, c := range g.Categories {
			if _, ok := cats[c]; ok {
				ordered = append(ordered, c)
				placed[c] = struct{}{}
			}
		}
	}
	for _, c := range seen {
		if _, ok := placed[c]; !ok {
			ordered = append(ordered, c)
		}
	}
	e.CategoryOrder = make([]string, 0, len(ordered))
	for _, c := range ordered {
		if e.visible(cats[c].Display) {
			e.CategoryOrder = append(e.CategoryOrder, c)
		}
	}

	pos := make(map[string]int, len(e.CategoryOrder))
	for i, c := range e.CategoryOrder {
		pos[c] = i
	}
	for _, sf := range e.Saveframes {
		i, ok := pos[sf.category]
		if !ok {
			continue
		}
		sf.PreviousCategory, sf.NextCategory = "", ""
		if i > 0 {
			sf.PreviousCategory = e.CategoryOrder[i-1]
		}
		if i+1 < len(e.CategoryOrder) {
			sf.NextCategory = e.CategoryOrder[i+1]
		}
	}

	e.FirstIncompleteCategory = ""
	for _, c := range e.CategoryOrder {
		if !cats[c].Valid {
			e.FirstIncompleteCategory = c
			break
		}
	}

	e.SuperGroups = nil
	for _, g := range e.Schema.Supergroups() {
		sg := SupergroupStatus{Name: g.Name, Description: g.Description, Display: schema.DisplayHidden, Valid: true}
		for _, c := range g.Categories {
			cs, ok := cats[c]
			if !ok {
				continue
			}
			sg.Categories = append(sg.Categories, cs)
			sg.Display = sg.Display.Max(cs.Display)
			if cs.Display == schema.DisplayMandatory && !cs.Valid {
				sg.Valid = false
			}
		}
		e.SuperGroups = append(e.SuperGroups, sg)
	}
}

func (e *Entry) visible(d schema.Display) bool {
	return d == schema.DisplayMandatory || (e.ShowAll && d == schema.DisplayOptional)
}
