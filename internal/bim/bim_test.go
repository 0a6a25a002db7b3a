package bim

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
)

func intp(v int) *int { return &v }

func TestParseLevelToFloor(t *testing.T) {
	tests := []struct {
		in   string
		want *int
	}{
		{"Level 3", intp(3)},
		{"LEVEL-2", intp(-2)},
		{"Floor 12", intp(12)},
		{"floor   4 - north", intp(4)},
		{"Basement", intp(-1)},
		{"basement 2", intp(-2)},
		{"B1 Basement 3", intp(-3)},
		{"Roof 5", intp(5)},
		{"Mezzanine -1", intp(-1)},
		{"Ground", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevelToFloor(tt.in))
		})
	}
}

func TestTaxonomyDefaultAndValidate(t *testing.T) {
	tax := DefaultTaxonomy()
	assert.Equal(t, KindRoom, tax.Classify("Rooms"))
	assert.Equal(t, KindEquipment, tax.Classify(" Mechanical Equipment "))
	assert.Equal(t, KindMaterial, tax.Classify("Walls"))
	assert.Equal(t, KindNone, tax.Classify("walls"))
	assert.Equal(t, KindNone, tax.Classify("Furniture"))

	_, err := ParseTaxonomy([]byte("rooms: [Rooms]\nequipment: [Rooms]\n"))
	assert.Error(t, err)
}

func TestLoadTaxonomyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rooms: [חדרים]\nequipment: [Pumps]\nmaterials: [Slabs]\n"), 0o600))

	tax, err := LoadTaxonomy(path)
	require.NoError(t, err)
	assert.Equal(t, KindRoom, tax.Classify("חדרים"))
	assert.Equal(t, KindNone, tax.Classify("Walls"))

	_, err = LoadTaxonomy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFlattenFirstNonEmptyWins(t *testing.T) {
	got := Flatten(map[string]map[string]any{
		"Identity Data": {"Name": "", "Mark": "M-1"},
		"Constraints":   {"Level": "Level 2", "Name": "Pump A"},
		"Dimensions":    {"Area": 12.5},
		"Other":         {"Name": "ignored"},
	})
	assert.Equal(t, "Level 2", got["Level"])
	assert.Equal(t, "Pump A", got["Name"])
	assert.Equal(t, "12.5", got["Area"])
	assert.Equal(t, "M-1", got["Mark"])
}

func sampleTree() []Node {
	return []Node{{
		ObjectID: 1, Name: "Model",
		Children: []Node{
			{ObjectID: 2, Name: "Rooms", Children: []Node{{ObjectID: 10, Name: "Room [10]"}}},
			{ObjectID: 3, Name: "Mechanical Equipment", Children: []Node{{ObjectID: 20, Name: "Pump [20]"}}},
			{ObjectID: 4, Name: "Walls", Children: []Node{{ObjectID: 30, Name: "Wall [30]"}}},
			{ObjectID: 5, Name: "Furniture", Children: []Node{{ObjectID: 40, Name: "Chair [40]"}}},
		},
	}}
}

func TestMapperMap(t *testing.T) {
	props := []ObjectProperties{
		{ObjectID: 10, Properties: map[string]map[string]any{
			"Identity Data": {"Name": "Lobby", "Number": "101"},
			"Constraints":   {"Level": "Level 1"},
			"Dimensions":    {"Area": "42.5 m²"},
		}},
		{ObjectID: 20, Properties: map[string]map[string]any{
			"Identity Data": {"Type Name": "Fire Pump", "Manufacturer": "Grundfos", "Model": "NK 80"},
			"Constraints":   {"Level": "Basement"},
		}},
		{ObjectID: 30, Properties: map[string]map[string]any{
			"Identity Data": {"Type Name": "Concrete 200mm"},
		}},
	}
	templates := Templates{
		Equipment: []entity.Template{{ID: "t-pump", Name: "Fire Pump"}},
		Materials: []entity.Template{{ID: "t-conc", Name: "Concrete"}},
	}

	res := NewMapper(nil, nil).Map(sampleTree(), props, templates)

	assert.Equal(t, 9, res.RawObjectCount)
	require.Len(t, res.Areas, 1)
	a := res.Areas[0]
	assert.Equal(t, "10", a.ID)
	assert.Equal(t, "Lobby", a.Name)
	assert.Equal(t, "101", a.Number)
	assert.Equal(t, "Rooms", a.Category)
	assert.Equal(t, intp(1), a.FloorNumber)
	require.NotNil(t, a.AreaSqm)
	assert.InDelta(t, 42.5, *a.AreaSqm, 1e-9)

	require.Len(t, res.Equipment, 1)
	e := res.Equipment[0]
	assert.Equal(t, "Pump [20]", e.Name)
	assert.Equal(t, "Fire Pump", e.Type)
	assert.Equal(t, "Grundfos", e.Manufacturer)
	assert.Equal(t, "Basement", e.Level)
	require.NotNil(t, e.MatchedTemplateID)
	assert.Equal(t, "t-pump", *e.MatchedTemplateID)
	assert.InDelta(t, 0.9, e.MatchConfidence, 1e-9)

	require.Len(t, res.Materials, 1)
	require.NotNil(t, res.Materials[0].MatchedTemplateID)
	assert.Equal(t, "t-conc", *res.Materials[0].MatchedTemplateID)

	assert.Equal(t, 1, res.Summary["total_areas"])
}

func TestMapperEmptyTree(t *testing.T) {
	res := NewMapper(nil, nil).Map(nil, nil, Templates{})
	assert.Zero(t, res.RawObjectCount)
	assert.NotNil(t, res.Areas)
	assert.NotNil(t, res.Equipment)
	assert.NotNil(t, res.Materials)
}

func TestMapperIndexesLiteralTaxonomy(t *testing.T) {
	tax := &Taxonomy{Rooms: []string{"Rooms"}, Equipment: []string{"Furniture"}}
	assert.Equal(t, KindNone, tax.Classify("Rooms"))

	m := NewMapper(tax, nil)
	assert.Equal(t, KindRoom, tax.Classify("Rooms"))

	var wg sync.WaitGroup
	results := make([]*entity.ExtractionResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.Map(sampleTree(), nil, Templates{})
		}(i)
	}
	wg.Wait()
	for _, res := range results {
		require.Len(t, res.Areas, 1)
		require.Len(t, res.Equipment, 1)
		assert.Equal(t, "Chair [40]", res.Equipment[0].Name)
		assert.Empty(t, res.Materials)
	}
}

func TestMapperFallsBackOnInvalidTaxonomy(t *testing.T) {
	tax := &Taxonomy{Rooms: []string{"Walls"}, Materials: []string{"Walls"}}
	res := NewMapper(tax, nil).Map(sampleTree(), nil, Templates{})
	require.Len(t, res.Materials, 1)
	assert.Equal(t, "Wall [30]", res.Materials[0].Name)
}
