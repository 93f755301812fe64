package cases_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/skillcheck/internal/cases"
)

func TestLoadArray(t *testing.T) {
	list, err := cases.Load("testdata/cases.json")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "xunit-basic", list[0].ID)
	assert.Equal(t, "dotnet-xunit", list[0].ExpectedSkill)
	assert.True(t, list[0].NeedsSkillFile(), "require_skill_file defaults to true")
	assert.False(t, list[1].NeedsSkillFile())
}

func TestLoadWrapped(t *testing.T) {
	list, err := cases.Load("testdata/wrapped.json")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"dotnet-efcore/SKILL.md"}, list[0].RequiredFiles)
	assert.Equal(t, 1, list[0].EvidenceTiers["dotnet-efcore"])
}

func TestLoadYAML(t *testing.T) {
	list, err := cases.Load("testdata/cases.yaml")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "minimal-api", list[0].ID)
	assert.Equal(t, []string{"dotnet-minimal-apis"}, list[0].RequiredSkills)
	assert.Equal(t, []string{"MapGet"}, list[0].RequiredAllEvidence)
}

func TestLoadErrors(t *testing.T) {
	_, err := cases.Load("testdata/nonexistent.json")
	assert.Error(t, err)

	_, err = cases.Load("testdata/duplicate.json")
	assert.ErrorContains(t, err, "duplicate")

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"case_id":"x","prompt":"p","evidence_tiers":{"a":4}}]`), 0o644))
	_, err = cases.Load(bad)
	assert.ErrorContains(t, err, "evidence_tiers")

	missingPrompt := filepath.Join(dir, "noprompt.json")
	require.NoError(t, os.WriteFile(missingPrompt, []byte(`[{"case_id":"x"}]`), 0o644))
	_, err = cases.Load(missingPrompt)
	assert.ErrorContains(t, err, "prompt is required")
}

func TestFilter(t *testing.T) {
	list := []cases.Case{
		{ID: "a", Category: "testing/unit"},
		{ID: "b", Category: "testing/integration"},
		{ID: "c", Category: "ui/blazor"},
	}

	tests := []struct {
		name       string
		categories []string
		ids        []string
		want       []string
	}{
		{"no filters", nil, nil, []string{"a", "b", "c"}},
		{"exact category", []string{"ui/blazor"}, nil, []string{"c"}},
		{"wildcard category", []string{"testing/*"}, nil, []string{"a", "b"}},
		{"case id ignores case", nil, []string{"B"}, []string{"b"}},
		{"combined", []string{"testing/*"}, []string{"a", "c"}, []string{"a"}},
		{"no match", []string{"data/*"}, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, c := range cases.Filter(list, tt.categories, tt.ids) {
				got = append(got, c.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchCategory(t *testing.T) {
	tests := []struct {
		category string
		pattern  string
		want     bool
	}{
		{"testing/unit", "testing/unit", true},
		{"Testing/Unit", "testing/unit", true},
		{"testing/unit", "testing/*", true},
		{"ui/blazor", "testing/*", false},
		{"testing", "testing/*", false},
		{"", "", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cases.MatchCategory(tt.category, tt.pattern), "%q vs %q", tt.category, tt.pattern)
	}
}
