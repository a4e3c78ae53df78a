package starfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanValue(t *testing.T) {
	s := func(v string) *string { return &v }
	tests := []struct {
		name string
		in   *string
		want string
	}{
		{"null", nil, "."},
		{"plain", s("plain"), "plain"},
		{"space", s("has space"), "'has space'"},
		{"tab", s("a\tb"), "'a\tb'"},
		{"reserved prefix", s("data_deposit"), "'data_deposit'"},
		{"reserved prefix upper", s("SAVE_x"), "'SAVE_x'"},
		{"short reserved", s("data"), "data"},
		{"leading underscore", s("_Entity.ID"), "'_Entity.ID'"},
		{"comment", s("a#b"), "'a#b'"},
		{"space and single quote", s("it's here"), `"it's here"`},
		{"leading single quote", s("'quoted"), `"'quoted"`},
		{"leading double quote", s(`"quoted`), `'"quoted'`},
		{"both quotes", s(`it's "x"`), "it's \"x\"\n"},
		{"multiline", s("line one\nline two"), "line one\nline two\n"},
		{"multiline newline kept", s("a\nb\n"), "a\nb\n"},
		{"empty", s(""), "''"},
		{"saveframe pointer", s("$entity_1"), "$entity_1"},
		{"leading bracket", s("[x]"), "[x]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanValue(tt.in))
		})
	}
}

func TestMultiline(t *testing.T) {
	assert.True(t, Multiline("a\n"))
	assert.False(t, Multiline("'a b'"))
}
