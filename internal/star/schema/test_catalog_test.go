package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmrdeposit/internal/star/startest"
)

func strp(s string) *string { return &s }

func TestBuildSkipsMalformedRows(t *testing.T) {
	c, err := Build(startest.Schema())
	require.NoError(t, err)

	assert.Equal(t, "3.2.1.15", c.Version)
	_, ok := c.LookupTag("not_a_tag")
	assert.False(t, ok)
	_, ok = c.LookupTag("_Entity.Name")
	assert.True(t, ok)

	// Rows without a Tag or a Conditional tag are dropped, the rest keep
	// their declared order within the same Order of operations.
	var targets []string
	for _, o := range c.Overrides() {
		targets = append(targets, o.TargetCategory+"."+o.TargetTag)
	}
	assert.Equal(t, []string{
		"_Citation.Journal_abbrev",
		"_Citation.PubMed_ID",
		"_Sample_component.Isotopic_labeling",
		"_Sample.Solvent_system",
		"_Entity_comp_index.*",
		"_Citation.PubMed_ID",
		"_Citation.Missing_tag",
	}, targets)
}

func TestBuildRejectsNonObject(t *testing.T) {
	_, err := Build([]byte(`[1, 2, 3]`))
	require.Error(t, err)
}

func TestTagRules(t *testing.T) {
	c, err := Build(startest.Schema())
	require.NoError(t, err)

	id := c.Tag("_Entry.ID")
	assert.Nil(t, id.Default, "'?' default is normalized away")
	assert.Equal(t, DisplayHidden, id.DefaultDisplay)

	pt := c.Tag("_Entity.Polymer_type")
	require.NotNil(t, pt.Default)
	assert.Equal(t, "polypeptide(L)", *pt.Default)
	assert.Equal(t, InterfaceClosedEnum, pt.Interface)
	assert.Contains(t, pt.Enumerations, "polyribonucleotide")

	assert.Equal(t, InterfaceSfPointer, c.Tag("_Entity_assembly.Entity_label").Interface)
	assert.Equal(t, "Entity", c.Tag("_Entity_assembly.Entity_label").ForeignTable)
	assert.Equal(t, InterfaceOpenEnum, c.Tag("_Sample_component.Mol_common_name").Interface)
	assert.Equal(t, "1", c.Tag("_Sample_component.Mol_common_name").EnumTie)
	assert.Equal(t, InterfaceYesNo, c.Tag("_Entity.Nstd_monomer").Interface)
	assert.Equal(t, InterfaceDataFile, c.Tag("_Upload_data.Data_file_name").Interface)
}

func TestDataTypeMatchers(t *testing.T) {
	c, err := Build(startest.Schema())
	require.NoError(t, err)

	tests := []struct {
		tag   string
		value *string
		want  bool
	}{
		{"_Citation.PubMed_ID", strp("123"), true},
		{"_Citation.PubMed_ID", strp("12a"), false},
		{"_Citation.PubMed_ID", nil, false},
		{"_Sample_component.Concentration_val", strp("0.5"), true},
		{"_Sample_component.Concentration_val", strp("1e-3"), true},
		{"_Sample_component.Concentration_val", strp("lots"), false},
		{"_Contact_person.Email_address", strp("a@b.org"), true},
		{"_Contact_person.Email_address", strp("nobody"), false},
		{"_Entry.Title", strp("multi\nline"), true},
	}
	for _, tt := range tests {
		got := c.Tag(tt.tag).Valid(tt.value)
		assert.Equal(t, tt.want, got, "%s %v", tt.tag, tt.value)
	}
}

func TestUnknownTagIsPermissive(t *testing.T) {
	c, err := Build(startest.Schema())
	require.NoError(t, err)

	r := c.Tag("_Entity.Not_in_dictionary")
	assert.True(t, r.Synthetic)
	assert.Equal(t, DisplayMandatory, r.DefaultDisplay)
	assert.Equal(t, InterfaceStandard, r.Interface)
	assert.True(t, r.Valid(strp("anything at all")))

	sf := c.Saveframe("no_such_category")
	assert.True(t, sf.Synthetic)
	assert.False(t, sf.Mandatory)
}

func TestSaveframeRulesAndPrefixes(t *testing.T) {
	c, err := Build(startest.Schema())
	require.NoError(t, err)

	assert.True(t, c.Saveframe("citations").Mandatory)
	assert.Equal(t, "Citations", c.Saveframe("citations").GroupName)
	assert.Equal(t, "_Citation", c.Prefix("citations"))
	assert.Equal(t, "_Chem_shift_reference", c.Prefix("chem_shift_reference"))

	all := c.SaveframeRules()
	require.Len(t, all, 9)
	assert.Equal(t, "assembly", all[0].Category)
	assert.Equal(t, "sample", all[8].Category)
	for _, r := range all {
		assert.False(t, r.Synthetic, r.Category)
	}
	c.Saveframe("no_such_category")
	assert.Len(t, c.SaveframeRules(), 9)

	rules := c.TagsFor("assembly")
	require.Len(t, rules, 6)
	assert.Equal(t, "_Assembly.Sf_category", rules[0].Name)
	assert.Equal(t, "_Entity_assembly.Entity_label", rules[5].Name)
}

func TestSupergroupsKeepDeclarationOrder(t *testing.T) {
	c, err := Build(startest.Schema())
	require.NoError(t, err)

	groups := c.Supergroups()
	require.Len(t, groups, 3)
	assert.Equal(t, "Entry information", groups[0].Name)
	assert.Equal(t, "Molecular assembly", groups[1].Name)
	assert.Equal(t, []string{"assembly", "entity"}, groups[1].Categories)
	assert.Equal(t, "How the data were collected", groups[2].Description)

	pairs, err := decodeSupergroups([]byte(`[["B", ["x"]], ["A", ["y", "z"]]]`))
	require.NoError(t, err)
	assert.Equal(t, []Supergroup{{Name: "B", Categories: []string{"x"}}, {Name: "A", Categories: []string{"y", "z"}}}, pairs)
}

func TestMalformedSupergroupsAreSkipped(t *testing.T) {
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(startest.Schema(), &doc))
	doc["category_supergroups"] = json.RawMessage(`[["Broken"], ["Entry information", ["entry_information", "citations"]], ["Samples", ["sample"]]]`)
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	c, err := Build(raw)
	require.NoError(t, err)
	groups := c.Supergroups()
	require.Len(t, groups, 2)
	assert.Equal(t, "Entry information", groups[0].Name)
	assert.Equal(t, []string{"sample"}, groups[1].Categories)

	pairs, err := decodeSupergroups([]byte(`[7, ["A", "y"], ["B", ["x"]], [1, ["z"]]]`))
	require.NoError(t, err)
	assert.Equal(t, []Supergroup{{Name: "B", Categories: []string{"x"}}}, pairs)

	pairs, err = decodeSupergroups([]byte(`{"A": "y", "B": ["x"], "C": {"z": 1}, "D": []}`))
	require.NoError(t, err)
	assert.Equal(t, []Supergroup{{Name: "B", Categories: []string{"x"}}, {Name: "D", Categories: []string{}}}, pairs)

	_, err = decodeSupergroups([]byte(`"flat"`))
	assert.Error(t, err)
}

func TestFileUploadTypes(t *testing.T) {
	c, err := Build(startest.Schema())
	require.NoError(t, err)

	require.Len(t, c.FileUploadTypes(), 3)
	ft, ok := c.FileUploadType("Spectral peak lists")
	require.True(t, ok)
	assert.Equal(t, "spectral_peak_list", ft.Category)
	assert.Equal(t, "_Entry_interview.Spectral_peak_lists", ft.InterviewTag)

	_, ok = c.FileUploadType("spectral peak lists")
	assert.False(t, ok, "descriptions match exactly")
}

func TestLiteralMatcher(t *testing.T) {
	assert.True(t, Literal("*").Match(nil))
	assert.True(t, Literal("a.b").Match(strp("a.b")))
	assert.False(t, Literal("a.b").Match(strp("axb")))
	assert.False(t, Literal("yes").Match(strp("yes please")))
	assert.False(t, Literal("yes").Match(nil))
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, DisplayMandatory, ParseDisplay("y"))
	assert.Equal(t, DisplayOptional, ParseDisplay("?"))
	assert.Equal(t, DisplayMandatory, DisplayOptional.Max(DisplayMandatory))
	assert.Equal(t, DisplayOptional, DisplayHidden.Max(DisplayOptional))
}
