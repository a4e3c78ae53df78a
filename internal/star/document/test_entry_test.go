package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmrdeposit/internal/star/schema"
	"nmrdeposit/internal/star/startest"
)

func TestDecodeFixture(t *testing.T) {
	e := loadFixture(t)

	assert.Equal(t, "12345", e.ID)
	assert.True(t, e.EmailValidated)
	assert.Equal(t, "ubiquitin backbone", e.Nickname)
	assert.Equal(t, []string{"initial"}, e.Commit)
	assert.Len(t, e.Saveframes, 9)
	assert.Equal(t, []string{"shifts.str"}, e.Files.Names())

	assert.True(t, e.Valid)
	assert.Empty(t, e.FirstIncompleteCategory)
	assert.Equal(t, []string{
		"entry_information", "entry_interview", "deposited_data_files", "citations",
		"assembly", "entity",
		"sample", "experiment_list", "chem_shift_reference",
	}, e.CategoryOrder)

	entity, ok := e.Saveframe("entity_1")
	require.True(t, ok)
	assert.Equal(t, "assembly", entity.PreviousCategory)
	assert.Equal(t, "sample", entity.NextCategory)
	assert.Equal(t, 1, entity.Index)
	assert.Equal(t, "_Entity", entity.TagPrefix())
	assert.Equal(t, "entity", entity.Category())
}

func TestDecodeWithoutSchema(t *testing.T) {
	_, err := Decode(startest.Entry())
	assert.ErrorIs(t, err, ErrNoSchema)

	_, err = Decode([]byte("not json"))
	assert.Error(t, err)
}

func TestDecodeNormalizesNulls(t *testing.T) {
	raw := []byte(`{"entry_id": "1", "saveframes": [{
		"name": "citations_1", "category": "citations", "tag_prefix": "_Citation",
		"tags": [["Sf_category", "citations"], ["Sf_framecode", "citations_1"], ["Title", "."], ["Status", "?"], ["PubMed_ID", 42], ["Class", ""]],
		"loops": []
	}]}`)
	e, err := DecodeWithCatalog(raw, testCatalog(t))
	require.NoError(t, err)

	assert.Nil(t, sfTag(t, e, "citations_1", "Title").Value)
	assert.Nil(t, sfTag(t, e, "citations_1", "Status").Value)
	assert.Nil(t, sfTag(t, e, "citations_1", "Class").Value)
	assert.Equal(t, "42", sfTag(t, e, "citations_1", "PubMed_ID").Text())
}

func TestDisplayIsTriState(t *testing.T) {
	e := loadFixture(t)
	for _, sf := range e.Saveframes {
		sf.eachTag(func(tg *Tag) {
			assert.Contains(t, []schema.Display{schema.DisplayMandatory, schema.DisplayOptional, schema.DisplayHidden},
				tg.Display, tg.FullName())
		})
	}
}

func TestHiddenTagNeverInvalidatesParent(t *testing.T) {
	e := loadFixture(t)
	setCellValue(t, e, "entity_1", "_Entity_comp_index", 0, "ID", "not-a-number")

	id := cell(t, e, "entity_1", "_Entity_comp_index", 0, "ID")
	assert.Equal(t, schema.DisplayHidden, id.Display)
	assert.False(t, id.Valid)

	assert.True(t, loopOf(t, e, "entity_1", "_Entity_comp_index").Valid)
	sf, _ := e.Saveframe("entity_1")
	assert.True(t, sf.Valid)
	assert.True(t, e.Valid)
}

func TestGetTagValue(t *testing.T) {
	e := loadFixture(t)

	assert.Equal(t, "ubiquitin", *e.GetTagValue("_Entity.Name", nil))
	assert.Equal(t, "solute", *e.GetTagValue("_Sample_component.Type", nil))
	assert.Nil(t, e.GetTagValue("_Entity.Polymer_type_details", nil))

	entity, _ := e.Saveframe("entity_1")
	assert.Nil(t, e.GetTagValue("_Entity.Name", entity))
}

func TestDuplicateSaveframe(t *testing.T) {
	e := loadFixture(t)

	require.NoError(t, e.Apply(DuplicateSaveframe{Saveframe: "entity_1"}))
	dup, ok := e.Saveframe("entity_2")
	require.True(t, ok)
	assert.Same(t, dup, e.Saveframes[5])
	assert.Equal(t, "entity_2", *dup.TagValue(FramecodeTag))
	assert.Equal(t, "entity", *dup.TagValue(CategoryTag))
	assert.Equal(t, "ubiquitin", *dup.TagValue(NameTag))
	assert.Len(t, dup.Loops[0].Rows, 2)
	assert.Equal(t, 2, dup.Index)
	assert.True(t, e.Valid)

	require.NoError(t, e.Apply(DuplicateSaveframe{Saveframe: "entity_1", ClearValues: true}))
	clean, ok := e.Saveframe("entity_3")
	require.True(t, ok)
	assert.Same(t, clean, e.Saveframes[5])
	assert.Nil(t, clean.TagValue(NameTag))
	assert.Equal(t, "polypeptide(L)", *clean.TagValue("Polymer_type"))
	assert.Equal(t, "no", *clean.TagValue("Nstd_monomer"))
	require.Len(t, clean.Loops[0].Rows, 1)
	assert.Equal(t, "1", clean.Loops[0].Rows[0][0].Text())
	assert.Nil(t, clean.Loops[0].Rows[0][1].Value)

	assert.False(t, e.Valid)
	assert.Equal(t, "entity", e.FirstIncompleteCategory)
	assert.Equal(t, 3, e.Categories["entity"].Count)
}

func TestDuplicateNeverCopiesDeleteMarker(t *testing.T) {
	e := loadFixture(t)
	require.NoError(t, e.Apply(DeleteSaveframe{Saveframe: "sample_1"}))
	src, _ := e.Saveframe("sample_1")
	dup, err := e.DuplicateSaveframe(src, false)
	require.NoError(t, err)
	assert.Equal(t, "sample_2", dup.Name)
	assert.False(t, dup.Deleted())
	_, has := dup.Tag(DeletedTag)
	assert.False(t, has)
}

func TestSoftDeleteAndRestore(t *testing.T) {
	e := loadFixture(t)
	require.NoError(t, e.Apply(DeleteSaveframe{Saveframe: "entity_1"}))

	entity, _ := e.Saveframe("entity_1")
	assert.True(t, entity.Deleted())
	assert.True(t, entity.Valid)
	assert.Equal(t, 0, entity.Index)
	assert.Len(t, e.Saveframes, 9)

	// The pointer now dangles: flagged, but left in place.
	label := cell(t, e, "assembly_1", "_Entity_assembly", 0, "Entity_label")
	assert.Equal(t, "$entity_1", label.Text())
	assert.False(t, label.Valid)
	assert.NotEmpty(t, label.ValidationMessage)
	assert.Empty(t, label.Enums)
	assert.False(t, e.Valid)
	assert.Equal(t, "assembly", e.FirstIncompleteCategory)

	require.NoError(t, e.Apply(RestoreSaveframe{Saveframe: "entity_1"}))
	assert.False(t, entity.Deleted())
	assert.True(t, cell(t, e, "assembly_1", "_Entity_assembly", 0, "Entity_label").Valid)
	assert.True(t, e.Valid)
}

func TestSfPointerEnums(t *testing.T) {
	e := loadFixture(t)
	label := cell(t, e, "assembly_1", "_Entity_assembly", 0, "Entity_label")
	assert.Equal(t, []Enum{{Value: "$entity_1", Label: "ubiquitin"}}, label.Enums)

	require.NoError(t, e.Apply(DuplicateSaveframe{Saveframe: "entity_1", ClearValues: true}))
	label = cell(t, e, "assembly_1", "_Entity_assembly", 0, "Entity_label")
	assert.Equal(t, []Enum{
		{Value: "$entity_1", Label: "ubiquitin"},
		{Value: "$entity_2", Label: "entity_2 (unnamed)"},
	}, label.Enums)
}

func TestAddSaveframe(t *testing.T) {
	e := loadFixture(t)
	require.NoError(t, e.Apply(AddSaveframe{Category: "sample"}))

	sf, ok := e.Saveframe("sample_2")
	require.True(t, ok)
	assert.Same(t, sf, e.Saveframes[len(e.Saveframes)-1])
	assert.Equal(t, "sample", *sf.TagValue(CategoryTag))
	assert.Equal(t, "sample_2", *sf.TagValue(FramecodeTag))
	l, ok := sf.Loop("_Sample_component")
	require.True(t, ok)
	require.Len(t, l.Rows, 1)
	assert.Equal(t, "1", l.Rows[0][0].Text())
	assert.Equal(t, 2, sf.Index)
	assert.False(t, sf.Valid)

	err := e.Apply(AddSaveframe{Category: "sample", Name: "sample_1"})
	assert.ErrorIs(t, err, ErrExists)
	err = e.Apply(AddSaveframe{Category: "no_such_category"})
	assert.ErrorIs(t, err, ErrNotFound)
}
