package document

import "nmrdeposit/internal/star/schema"

// Status is a read-only snapshot of the boundary signals navigation and
// submission gating consume.
type Status struct {
	EntryID                 string             `json:"entry_id"`
	Valid                   bool               `json:"valid"`
	Unsaved                 bool               `json:"unsaved"`
	ShowAll                 bool               `json:"show_all"`
	FirstIncompleteCategory string             `json:"first_incomplete_category,omitempty"`
	CategoryOrder           []string           `json:"category_order"`
	SuperGroups             []SupergroupStatus `json:"super_groups"`
	Saveframes              []SaveframeStatus  `json:"saveframes"`
	Files                   []string           `json:"files"`
}

// SaveframeStatus summarizes one saveframe.
type SaveframeStatus struct {
	Name             string         `json:"name"`
	Category         string         `json:"category"`
	Display          schema.Display `json:"display"`
	Valid            bool           `json:"valid"`
	Deleted          bool           `json:"deleted,omitempty"`
	Index            int            `json:"index"`
	NextCategory     string         `json:"next_category,omitempty"`
	PreviousCategory string         `json:"previous_category,omitempty"`
}

// Status snapshots the entry as of the last refresh.
func (e *Entry) Status() Status {
	st := Status{
		EntryID:                 e.ID,
		Valid:                   e.Valid,
		Unsaved:                 e.Unsaved,
		ShowAll:                 e.ShowAll,
		FirstIncompleteCategory: e.FirstIncompleteCategory,
		CategoryOrder:           append([]string{}, e.CategoryOrder...),
		SuperGroups:             append([]SupergroupStatus{}, e.SuperGroups...),
		Files:                   e.Files.Names(),
	}
	for _, sf := range e.Saveframes {
		st.Saveframes = append(st.Saveframes, SaveframeStatus{
			Name:             sf.Name,
			Category:         sf.category,
			Display:          sf.Display,
			Valid:            sf.Valid,
			Deleted:          sf.Deleted(),
			Index:            sf.Index,
			NextCategory:     sf.NextCategory,
			PreviousCategory: sf.PreviousCategory,
		})
	}
	return st
}
