package document

import (
	"strconv"
	"strings"
	"unicode"

	"nmrdeposit/internal/star/schema"
)

const (
	citationCategory   = "citations"
	citationClassTag   = "Class"
	entryCitation      = "entry citation"
	citationMessage    = `At least one citation must have the class "entry citation".`
	contactLoop        = "_Contact_person"
	contactRoleColumn  = "Role"
	principalRole      = "principal investigator"
	contactMessage     = `At least one contact person must have the role "principal investigator".`
	entityCategory     = "entity"
	nstdMonomerTag     = "Nstd_monomer"
	sequenceTag        = "Polymer_seq_one_letter_code"
	polymerTypeTag     = "Polymer_type"
	polymerTypeDetails = "Polymer_type_details"
	defaultPolymerType = "polypeptide(L)"
	nstdMessage        = `Non-standard monomer must be "yes" exactly when the sequence contains X.`
	chemShiftCategory  = "chem_shift_reference"
	chemShiftLoop      = "_Chem_shift_ref"
	otherShiftsFlag    = "Other_shifts_flag"
	chemShiftMessage   = "At least one chemical shift type must be referenced."
)

// referenceAtom is the IUPAC DSS reference of one nucleus.
type referenceAtom struct {
	flag    string
	atom    string
	isotope int
	ratio   string
	refType string
}

var referenceAtoms = []referenceAtom{
	{flag: "Proton_shifts_flag", atom: "H", isotope: 1, ratio: "1.0", refType: "direct"},
	{flag: "Carbon_shifts_flag", atom: "C", isotope: 13, ratio: "0.251449530", refType: "indirect"},
	{flag: "Nitrogen_shifts_flag", atom: "N", isotope: 15, ratio: "0.101329118", refType: "indirect"},
	{flag: "Phosphorus_shifts_flag", atom: "P", isotope: 31, ratio: "0.404808636", refType: "indirect"},
}

func (a referenceAtom) iupacRow() map[string]string {
	return map[string]string{
		"Atom_type":            a.atom,
		"Atom_isotope_number":  strconv.Itoa(a.isotope),
		"Mol_common_name":      "DSS",
		"Atom_group":           "methyl protons",
		"Chem_shift_units":     "ppm",
		"Chem_shift_val":       "0",
		"Ref_method":           "internal",
		"Ref_type":             a.refType,
		"Indirect_shift_ratio": a.ratio,
	}
}

func (e *Entry) live(category string) []*Saveframe {
	var out []*Saveframe
	for _, sf := range e.Saveframes {
		if sf.category == category && !sf.Deleted() {
			out = append(out, sf)
		}
	}
	return out
}

// syncChemShiftRows makes the reference loop follow the shift flags: "yes"
// ensures a row for the nucleus, "IUPAC" fills and locks it, "no" drops it.
func (e *Entry) syncChemShiftRows() {
	for _, sf := range e.live(chemShiftCategory) {
		l, ok := sf.Loop(chemShiftLoop)
		if !ok {
			continue
		}
		atomCol := l.ColumnIndex("Atom_type")
		if atomCol < 0 {
			continue
		}
		for _, a := range referenceAtoms {
			flag := sf.TagValue(a.flag)
			if flag == nil {
				continue
			}
			switch *flag {
			case "no":
				for i := len(l.Rows) - 1; i >= 0; i-- {
					if atomCol < len(l.Rows[i]) && l.Rows[i][atomCol].Is(a.atom) {
						l.Rows = append(l.Rows[:i], l.Rows[i+1:]...)
					}
				}
			case "yes", "IUPAC":
				rows := atomRows(l, atomCol, a.atom)
				if len(rows) == 0 {
					row := l.AddRow()
					setCell(l, row, "Atom_type", a.atom)
					setCell(l, row, "Atom_isotope_number", strconv.Itoa(a.isotope))
					rows = append(rows, row)
				}
				if *flag != "IUPAC" {
					continue
				}
				for _, row := range rows {
					for col, v := range a.iupacRow() {
						setCell(l, row, col, v)
					}
					for _, t := range row {
						t.Disabled = true
					}
				}
			}
		}
	}
}

func atomRows(l *Loop, atomCol int, atom string) [][]*Tag {
	var out [][]*Tag
	for _, row := range l.Rows {
		if atomCol < len(row) && row[atomCol].Is(atom) {
			out = append(out, row)
		}
	}
	return out
}

func setCell(l *Loop, row []*Tag, column, value string) {
	if i := l.ColumnIndex(column); i >= 0 && i < len(row) {
		row[i].Value = strp(value)
	}
}

// applyDisplayRules forces entity details to Y whenever they are required.
func (e *Entry) applyDisplayRules() {
	for _, sf := range e.live(entityCategory) {
		details, ok := sf.Tag(polymerTypeDetails)
		if !ok {
			continue
		}
		if entityNeedsDetails(sf) {
			details.Display = schema.DisplayMandatory
		}
	}
}

func entityNeedsDetails(sf *Saveframe) bool {
	if v := sf.TagValue(nstdMonomerTag); v != nil && *v == "yes" {
		return true
	}
	if v := sf.TagValue(sequenceTag); v != nil && strings.IndexFunc(*v, unicode.IsLower) >= 0 {
		return true
	}
	if v := sf.TagValue(polymerTypeTag); v != nil && *v != defaultPolymerType {
		return true
	}
	return false
}

func (e *Entry) applyValidityRules() {
	e.checkCitations()
	e.checkContacts()
	e.checkEntities()
	e.checkChemShiftFlags()
}

func (e *Entry) checkCitations() {
	frames := e.live(citationCategory)
	if len(frames) == 0 {
		e.Valid = false
		return
	}
	for _, sf := range frames {
		if t, ok := sf.Tag(citationClassTag); ok && t.Is(entryCitation) {
			return
		}
	}
	for _, sf := range frames {
		if t, ok := sf.Tag(citationClassTag); ok {
			t.invalidate(citationMessage)
		}
	}
}

func (e *Entry) checkContacts() {
	for _, sf := range e.Saveframes {
		if sf.Deleted() {
			continue
		}
		l, ok := sf.Loop(contactLoop)
		if !ok {
			continue
		}
		col := l.ColumnIndex(contactRoleColumn)
		if col < 0 {
			continue
		}
		found := false
		for _, row := range l.Rows {
			if col < len(row) && row[col].Is(principalRole) {
				found = true
				break
			}
		}
		if found {
			continue
		}
		for _, row := range l.Rows {
			if col < len(row) {
				row[col].invalidate(contactMessage)
			}
		}
	}
}

func (e *Entry) checkEntities() {
	for _, sf := range e.live(entityCategory) {
		nstd, ok := sf.Tag(nstdMonomerTag)
		if !ok {
			continue
		}
		seq, ok := sf.Tag(sequenceTag)
		if !ok {
			continue
		}
		hasX := strings.ContainsAny(seq.Text(), "Xx")
		if nstd.Is("yes") == hasX {
			continue
		}
		nstd.invalidate(nstdMessage)
		seq.invalidate(nstdMessage)
	}
}

func (e *Entry) checkChemShiftFlags() {
	for _, sf := range e.live(chemShiftCategory) {
		var flags []*Tag
		referenced := false
		for _, name := range shiftFlags() {
			t, ok := sf.Tag(name)
			if !ok {
				continue
			}
			flags = append(flags, t)
			if t.Value != nil && *t.Value != "no" {
				referenced = true
			}
		}
		if referenced {
			continue
		}
		for _, t := range flags {
			t.invalidate(chemShiftMessage)
		}
	}
}

func shiftFlags() []string {
	out := make([]string, 0, len(referenceAtoms)+1)
	for _, a := range referenceAtoms {
		out = append(out, a.flag)
	}
	return append(out, otherShiftsFlag)
}
