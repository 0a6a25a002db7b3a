package matching

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "fire pump", Normalize("  Fire   PUMP\t"))
	assert.Equal(t, "", Normalize("   "))
	// decomposed é becomes the composed form
	assert.Equal(t, Normalize("café"), Normalize("café"))
}

func TestBestMatchScore(t *testing.T) {
	tests := []struct {
		name       string
		s          string
		candidates []string
		min, max   float64
	}{
		{"identical", "Chiller", []string{"Chiller"}, 1, 1},
		{"case and space insensitive", " fire  PUMP ", []string{"Fire Pump"}, 1, 1},
		{"contained", "Pump", []string{"Fire Pump"}, 0.85, 1},
		{"contains", "Fire Pump Unit 3", []string{"Fire Pump"}, 0.85, 1},
		{"reordered tokens", "Fire Pump", []string{"Pump Fire"}, 0.75, 1},
		{"partial token overlap", "Fire Pump Jockey", []string{"Fire Pump Main"}, 0.75 + 0.2*(2.0/3.0) - 1e-9, 1},
		{"unrelated", "Concrete", []string{"Sprinkler"}, 0, 0.5},
		{"no candidates", "Concrete", nil, 0, 0},
		{"empty input", "", []string{"x"}, 0, 0},
		{"hebrew", "משאבה", []string{"משאבה"}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BestMatchScore(tt.s, tt.candidates)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestContainmentIsSymmetric(t *testing.T) {
	for _, pair := range [][2]string{{"Pump", "Fire Pump"}, {"AHU", "AHU-1 roof"}, {"glass", "tempered glass panel"}} {
		assert.InDelta(t, BestMatchScore(pair[0], []string{pair[1]}), BestMatchScore(pair[1], []string{pair[0]}), 1e-9)
	}
}

func TestRatio(t *testing.T) {
	assert.InDelta(t, 1.0, ratio("abc", "abc"), 1e-9)
	assert.InDelta(t, 0.0, ratio("abc", "xyz"), 1e-9)
	// difflib: SequenceMatcher(None, "abcd", "bcde").ratio() == 0.75
	assert.InDelta(t, 0.75, ratio("abcd", "bcde"), 1e-9)
	assert.InDelta(t, 1.0, ratio("", ""), 1e-9)
}

func TestFindBest(t *testing.T) {
	templates := []entity.Template{
		{ID: "t1", Name: "Fire Pump", Category: "Fire Protection"},
		{ID: "t2", Name: "Chiller", Category: "HVAC"},
		{ID: "t3", Name: "Air Handling Unit", Aliases: []string{"AHU"}, Category: "HVAC"},
	}

	m := FindBest("Pump Fire", "", templates)
	assert.Equal(t, "t1", m.TemplateID)
	assert.Equal(t, "Fire Pump", m.TemplateName)
	assert.GreaterOrEqual(t, m.Confidence, 0.75)

	m = FindBest("AHU", "", templates)
	assert.Equal(t, "t3", m.TemplateID)
	assert.InDelta(t, 1.0, m.Confidence, 1e-9)

	// type counts at 0.9 weight
	m = FindBest("Unit 7", "Chiller", templates)
	assert.Equal(t, "t2", m.TemplateID)
	assert.InDelta(t, 0.9, m.Confidence, 1e-9)
}

func TestFindBestEmptyCatalog(t *testing.T) {
	m := FindBest("Fire Pump", "Pump", nil)
	assert.Equal(t, Match{}, m)
	assert.False(t, m.Found())
}

func TestFindBestTiesKeepFirst(t *testing.T) {
	templates := []entity.Template{
		{ID: "a", Name: "Boiler"},
		{ID: "b", Name: "Boiler"},
	}
	assert.Equal(t, "a", FindBest("boiler", "", templates).TemplateID)
}

func TestFindBestCrossLanguage(t *testing.T) {
	templates := []entity.Template{
		{ID: "pump", Name: "Pump"},
		{ID: "boiler", Name: "Boiler"},
	}
	m := FindBest("משאבה", "", templates)
	assert.Equal(t, "pump", m.TemplateID)
	assert.InDelta(t, 1.0, m.Confidence, 1e-9)
}

func TestApply(t *testing.T) {
	items := []entity.EquipmentItem{{ID: "1", Name: "Chiller"}, {ID: "2", Name: "zzzz"}}
	MatchEquipment(items, []entity.Template{{ID: "t2", Name: "Chiller"}})

	require.NotNil(t, items[0].MatchedTemplateID)
	assert.Equal(t, "t2", *items[0].MatchedTemplateID)
	assert.Equal(t, "Chiller", *items[0].MatchedTemplateName)
	assert.Nil(t, items[1].MatchedTemplateID)
	assert.Zero(t, items[1].MatchConfidence)
}

type countingSource struct {
	calls     atomic.Int32
	templates map[constants.TemplateKind][]entity.Template
	err       error
}

func (s *countingSource) List(_ context.Context, kind constants.TemplateKind) ([]entity.Template, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.templates[kind], nil
}

func TestCatalogCachesAndInvalidates(t *testing.T) {
	src := &countingSource{templates: map[constants.TemplateKind][]entity.Template{
		constants.TemplateEquipment: {{ID: "t1", Name: "Fire Pump"}},
		constants.TemplateMaterial:  {{ID: "m1", Name: "Concrete"}},
	}}
	cat := NewCatalog(src, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		list, err := cat.Templates(ctx, constants.TemplateEquipment)
		require.NoError(t, err)
		require.Len(t, list, 1)
	}
	assert.EqualValues(t, 1, src.calls.Load())

	cat.Invalidate()
	_, err := cat.Templates(ctx, constants.TemplateEquipment)
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.calls.Load())

	mat, err := cat.Templates(ctx, constants.TemplateMaterial)
	require.NoError(t, err)
	assert.Equal(t, "m1", mat[0].ID)
	assert.EqualValues(t, 3, src.calls.Load())
}

func TestCatalogLoadError(t *testing.T) {
	cat := NewCatalog(&countingSource{err: errors.New("db down")}, time.Minute, nil)
	_, err := cat.Templates(context.Background(), constants.TemplateMaterial)
	assert.Error(t, err)
}
