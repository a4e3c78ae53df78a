package document

import (
	"nmrdeposit/internal/star/schema"
)

// overrideTarget is what one rule resolves to inside a saveframe.
type overrideTarget struct {
	sf   *Saveframe
	tag  *Tag  // a single saveframe tag
	loop *Loop // a loop, with column < 0 meaning every column
	col  int
	all  bool // the whole saveframe
}

func (e *Entry) applyOverrides() {
	rules := e.Schema.Overrides()
	for _, sf := range e.Saveframes {
		for _, rule := range rules {
			target, ok := e.resolveTarget(sf, rule)
			if !ok {
				continue
			}
			e.evaluate(sf, rule, target)
		}
	}
}

// resolveTarget finds the rule's target within sf. ok is false when the rule
// does not concern sf or names something sf does not have.
func (e *Entry) resolveTarget(sf *Saveframe, rule schema.OverrideRule) (overrideTarget, bool) {
	if rule.TargetCategory == sf.tagPrefix {
		if rule.Wildcard() {
			return overrideTarget{sf: sf, all: true}, true
		}
		t, ok := sf.Tag(rule.TargetTag)
		if !ok {
			e.warnOnce("override:"+sf.Name+":"+rule.TargetCategory+"."+rule.TargetTag,
				"refresh: override targets %s.%s, missing from saveframe %s", rule.TargetCategory, rule.TargetTag, sf.Name)
			return overrideTarget{}, false
		}
		return overrideTarget{sf: sf, tag: t}, true
	}
	l, ok := sf.Loop(rule.TargetCategory)
	if !ok {
		return overrideTarget{}, false
	}
	if rule.Wildcard() {
		return overrideTarget{sf: sf, loop: l, col: -1}, true
	}
	col := l.ColumnIndex(rule.TargetTag)
	if col < 0 {
		e.warnOnce("override:"+sf.Name+":"+rule.TargetCategory+"."+rule.TargetTag,
			"refresh: override targets %s.%s, missing from loop in saveframe %s", rule.TargetCategory, rule.TargetTag, sf.Name)
		return overrideTarget{}, false
	}
	return overrideTarget{sf: sf, loop: l, col: col}, true
}

// evaluate picks the scope of the conditional tag and applies the rule when
// its trigger matches. A conditional tag in a loop is read from the first loop
// of that category only.
func (e *Entry) evaluate(sf *Saveframe, rule schema.OverrideRule, target overrideTarget) {
	if rule.ConditionalPrefix == sf.tagPrefix {
		if rule.Triggered(sf.TagValue(rule.ConditionalTag)) {
			target.apply(rule.View, -1)
		}
		return
	}
	if l, ok := sf.Loop(rule.ConditionalPrefix); ok {
		col := l.ColumnIndex(rule.ConditionalTag)
		if col < 0 {
			e.warnOnce("override-cond:"+sf.Name+":"+rule.Conditional,
				"refresh: override condition %s missing from loop in saveframe %s", rule.Conditional, sf.Name)
			return
		}
		if target.loop == l {
			for i, row := range l.Rows {
				if col < len(row) && rule.Triggered(row[col].Value) {
					target.apply(rule.View, i)
				}
			}
			return
		}
		for _, row := range l.Rows {
			if col < len(row) && rule.Triggered(row[col].Value) {
				target.apply(rule.View, -1)
				return
			}
		}
		return
	}
	if rule.Triggered(e.GetTagValue(rule.Conditional, sf)) {
		target.apply(rule.View, -1)
	}
}

// apply sets the display of the target. row >= 0 restricts a loop target to
// that row and leaves the column display alone.
func (t overrideTarget) apply(view schema.Display, row int) {
	switch {
	case t.all:
		for _, tag := range t.sf.Tags {
			if tag.Name != DeletedTag {
				setDisplay(tag, view)
			}
		}
		for _, l := range t.sf.Loops {
			applyLoop(l, -1, view, -1)
		}
	case t.tag != nil:
		setDisplay(t.tag, view)
	case t.loop != nil:
		applyLoop(t.loop, t.col, view, row)
	}
}

func applyLoop(l *Loop, col int, view schema.Display, row int) {
	for c := range l.columns {
		if col >= 0 && c != col {
			continue
		}
		if row < 0 {
			l.columnDisplay[c] = overridden(l.rules[c], view)
		}
		for i, r := range l.Rows {
			if (row >= 0 && i != row) || c >= len(r) {
				continue
			}
			setDisplay(r[c], view)
		}
	}
}

func setDisplay(t *Tag, view schema.Display) {
	t.Display = overridden(t.rule, view)
}

func overridden(r *schema.TagRule, view schema.Display) schema.Display {
	if view == schema.DisplayRestore {
		return r.DefaultDisplay
	}
	return view
}
