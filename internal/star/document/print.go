package document

import (
	"fmt"
	"strings"

	"nmrdeposit/internal/star/schema"
	"nmrdeposit/internal/star/starfmt"
)

const experimentIDColumn = "Experiment_ID"

// Saveframe categories written even when they hold no data.
var alwaysPrinted = map[string]struct{}{
	"entry_information": {},
	InterviewCategory:   {},
	DataFilesCategory:   {},
}

// Print renders the entry as NMR-STAR text. It fails only on a structurally
// corrupted loop.
func (e *Entry) Print() (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "data_%s\n\n", e.ID)
	for _, sf := range e.Saveframes {
		s, err := sf.Print()
		if err != nil {
			return "", fmt.Errorf("saveframe %s: %w", sf.Name, err)
		}
		if s == "" {
			continue
		}
		b.WriteString(s)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// Print renders one saveframe block, or "" for a soft-deleted or empty frame.
func (sf *Saveframe) Print() (string, error) {
	if sf.Deleted() {
		return "", nil
	}
	// A frame is empty only when every loop is empty; a loop with data that
	// is hidden still keeps its frame in the output.
	loops := make([]string, 0, len(sf.Loops))
	hasLoopData := false
	for _, l := range sf.Loops {
		s, err := l.Print()
		if err != nil {
			return "", err
		}
		if l.hasData() {
			hasLoopData = true
		}
		loops = append(loops, s)
	}

	tags := make([]*Tag, 0, len(sf.Tags))
	hasTagData := false
	width := 0
	for _, t := range sf.Tags {
		if t.Name == DeletedTag {
			continue
		}
		tags = append(tags, t)
		if t.Value != nil && t.Display != schema.DisplayHidden {
			hasTagData = true
		}
		width = max(width, len(t.Name))
	}
	if !hasTagData && !hasLoopData {
		if _, ok := alwaysPrinted[sf.category]; !ok {
			return "", nil
		}
	}
	width += len(sf.tagPrefix) + 1

	var b strings.Builder
	fmt.Fprintf(&b, "save_%s\n", sf.Name)
	for _, t := range tags {
		v := starfmt.CleanValue(t.Value)
		if starfmt.Multiline(v) {
			fmt.Fprintf(&b, "   %s\n;\n%s;\n", t.FullName(), v)
			continue
		}
		fmt.Fprintf(&b, "   %-*s  %s\n", width, t.FullName(), v)
	}
	for _, s := range loops {
		b.WriteString(s)
	}
	b.WriteString("\nsave_\n")
	return b.String(), nil
}

// Print renders the loop block, or "" when the loop holds no data or is
// entirely hidden. The upload-data loop is written whenever it has rows.
func (l *Loop) Print() (string, error) {
	if err := l.checkStructure(); err != nil {
		return "", err
	}
	upload := l.category == UploadLoop
	if upload {
		if len(l.Rows) == 0 {
			return "", nil
		}
	} else if !l.hasData() || !l.visible() {
		return "", nil
	}

	var cols []int
	for i, c := range l.columns {
		if upload || c == IDColumn || c == experimentIDColumn || l.columnVisible(i) {
			cols = append(cols, i)
		}
	}

	cleaned := make([][]string, len(l.Rows))
	widths := make([]int, len(l.columns))
	for r, row := range l.Rows {
		cleaned[r] = make([]string, len(row))
		for _, i := range cols {
			v := starfmt.CleanValue(row[i].Value)
			cleaned[r][i] = v
			if !starfmt.Multiline(v) {
				widths[i] = max(widths[i], len(v))
			}
		}
	}

	var b strings.Builder
	b.WriteString("\n   loop_\n")
	for _, i := range cols {
		fmt.Fprintf(&b, "      %s.%s\n", l.category, l.columns[i])
	}
	b.WriteString("\n")
	for r := range l.Rows {
		b.WriteString("     ")
		for _, i := range cols {
			v := cleaned[r][i]
			if starfmt.Multiline(v) {
				fmt.Fprintf(&b, "\n;\n%s;\n", v)
				continue
			}
			fmt.Fprintf(&b, "%-*s", widths[i]+3, v)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n   stop_\n")
	return b.String(), nil
}

func (l *Loop) visible() bool {
	for i := range l.columns {
		if l.columnVisible(i) {
			return true
		}
	}
	return false
}

func (l *Loop) columnVisible(i int) bool {
	if l.columnDisplay[i] != schema.DisplayHidden {
		return true
	}
	for _, row := range l.Rows {
		if i < len(row) && row[i].Display != schema.DisplayHidden {
			return true
		}
	}
	return false
}
