package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmrdeposit/internal/star/schema"
)

func TestPrintSaveframe(t *testing.T) {
	e := loadFixture(t)
	sf, _ := e.Saveframe("citations_1")

	got, err := sf.Print()
	require.NoError(t, err)
	want := "save_citations_1\n" +
		"   _Citation.Sf_category     citations\n" +
		"   _Citation.Sf_framecode    citations_1\n" +
		"   _Citation.Class           'entry citation'\n" +
		"   _Citation.Title           'A test citation'\n" +
		"   _Citation.Status          published\n" +
		"   _Citation.PubMed_ID       123456\n" +
		"   _Citation.Journal_abbrev  'J. Biomol. NMR'\n" +
		"\nsave_\n"
	assert.Equal(t, want, got)
}

func TestPrintLoop(t *testing.T) {
	e := loadFixture(t)
	got, err := loopOf(t, e, "entity_1", "_Entity_comp_index").Print()
	require.NoError(t, err)
	want := "\n   loop_\n" +
		"      _Entity_comp_index.ID\n" +
		"      _Entity_comp_index.Comp_ID\n" +
		"\n" +
		"     1   MET   \n" +
		"     2   GLN   \n" +
		"\n   stop_\n"
	assert.Equal(t, want, got)
}

func TestPrintAllNullLoopIsEmpty(t *testing.T) {
	l := newLoop(testCatalog(t), "_Sample_component", []string{"ID", "Mol_common_name", "Type"})
	l.appendRow([]*string{nil, nil, nil})
	l.appendRow([]*string{nil, nil, nil})

	got, err := l.Print()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPrintHiddenLoopIsEmpty(t *testing.T) {
	e := loadFixture(t)
	set(t, e, "entity_1", "Polymer_type", "polyribonucleotide")

	got, err := loopOf(t, e, "entity_1", "_Entity_comp_index").Print()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPrintDeletedSaveframeIsEmpty(t *testing.T) {
	e := loadFixture(t)
	require.NoError(t, e.Apply(DeleteSaveframe{Saveframe: "entity_1"}))
	sf, _ := e.Saveframe("entity_1")

	got, err := sf.Print()
	require.NoError(t, err)
	assert.Empty(t, got)

	text, err := e.Print()
	require.NoError(t, err)
	assert.NotContains(t, text, "save_entity_1")
	assert.NotContains(t, text, DeletedTag)
}

func TestPrintSkipsEmptySaveframes(t *testing.T) {
	e := loadFixture(t)
	require.NoError(t, e.Apply(AddSaveframe{Category: "citations"}))
	sf, _ := e.Saveframe("citations_2")

	got, err := sf.Print()
	require.NoError(t, err)
	assert.Empty(t, got)

	interview, _ := e.Saveframe("entry_interview")
	for _, tg := range interview.Tags {
		tg.Value = nil
	}
	got, err = interview.Print()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "save_entry_interview\n"))
}

func TestPrintKeepsFrameWithHiddenLoopData(t *testing.T) {
	e := loadFixture(t)
	set(t, e, "entity_1", "Polymer_type", "polyribonucleotide")
	entity, _ := e.Saveframe("entity_1")
	for _, tg := range entity.Tags {
		if tg.Display != schema.DisplayHidden {
			tg.Value = nil
		}
	}

	got, err := entity.Print()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "save_entity_1\n"))
	assert.NotContains(t, got, "_Entity_comp_index")
}

func TestPrintMultiline(t *testing.T) {
	e := loadFixture(t)
	set(t, e, "entity_1", "Polymer_seq_one_letter_code", "MQIFV\nKTLTG")

	text, err := e.Print()
	require.NoError(t, err)
	assert.Contains(t, text, "   _Entity.Polymer_seq_one_letter_code\n;\nMQIFV\nKTLTG\n;\n")
}

func TestPrintEntry(t *testing.T) {
	e := loadFixture(t)
	text, err := e.Print()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, "data_12345\n\nsave_entry_information\n"))
	assert.Equal(t, 9, strings.Count(text, "\nsave_\n"))
	assert.Contains(t, text, "      _Upload_data.Data_file_Sf_category\n")
	assert.Contains(t, text, "      _Experiment_file.Experiment_ID\n")
	assert.Contains(t, text, "   _Entity_assembly.Entity_label")
	assert.Contains(t, text, "$entity_1")
}

func TestPrintRejectsCorruptedLoop(t *testing.T) {
	e := loadFixture(t)
	l := loopOf(t, e, "sample_1", "_Sample_component")
	s := "short"
	l.appendRow([]*string{&s})

	_, err := l.Print()
	assert.ErrorIs(t, err, ErrStructure)
	_, err = e.Print()
	assert.ErrorIs(t, err, ErrStructure)

	bare := newLoop(testCatalog(t), "", nil)
	_, err = bare.Print()
	assert.ErrorIs(t, err, ErrStructure)
}

func TestRoundTrip(t *testing.T) {
	e := loadFixture(t)
	set(t, e, "entity_1", "Polymer_seq_one_letter_code", "MQIFV\nKTLTG")
	setCellValue(t, e, "sample_1", "_Sample_component", 1, "Isotopic_labeling", "it's \"natural\"")
	require.NoError(t, e.Apply(DuplicateSaveframe{Saveframe: "sample_1"}))
	require.NoError(t, e.Apply(DeleteSaveframe{Saveframe: "citations_1"}))

	want, err := e.Print()
	require.NoError(t, err)

	saved, err := e.SaveJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(saved), `"schema"`)
	again, err := DecodeWithCatalog(saved, e.Schema)
	require.NoError(t, err)
	got, err := again.Print()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	exported, err := e.ExportJSON()
	require.NoError(t, err)
	fromExport, err := Decode(exported)
	require.NoError(t, err)
	got, err = fromExport.Print()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	restored, ok := fromExport.Saveframe("citations_1")
	require.True(t, ok)
	assert.True(t, restored.Deleted())
}
