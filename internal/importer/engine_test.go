package importer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
	"github.com/joseph-ayodele/takeoff-tracker/internal/repository"
	"github.com/joseph-ayodele/takeoff-tracker/internal/repository/repotest"
)

func ptr[T any](v T) *T { return &v }

func seed(t *testing.T, repos *repository.Repositories, source constants.ExtractionSource, res *entity.ExtractionResult) *entity.Extraction {
	t.Helper()
	ctx := context.Background()
	f := &entity.StoredFile{ProjectID: "p1", Filename: "doc", StoragePath: "p1/doc", MimeType: "application/octet-stream", SizeBytes: 1}
	require.NoError(t, repos.Files.Create(ctx, f))
	e := &entity.Extraction{ProjectID: "p1", FileID: &f.ID, Source: source, Status: constants.StatusPending, Language: "en"}
	require.NoError(t, repos.Extractions.Create(ctx, e))
	if res != nil {
		require.NoError(t, repos.Extractions.MarkProcessing(ctx, e.ID))
		res.Normalize()
		require.NoError(t, repos.Extractions.Complete(ctx, e.ID, repository.Completion{Data: res, TierUsed: "test", ProcessingTimeMs: 1}))
	}
	return e
}

func floorsResult() *entity.ExtractionResult {
	return &entity.ExtractionResult{Floors: []entity.Floor{
		{Name: "Floor 1", FloorNumber: ptr(1), TotalArea: ptr(120.0), Rooms: []entity.Room{
			{Name: "Lobby", Area: ptr(40.0)},
			{Name: "Office 101", Area: ptr(20.0)},
		}},
		{Name: "Floor 2", FloorNumber: ptr(2), Rooms: []entity.Room{
			{Name: "lobby "},
			{Name: "Office 201"},
		}},
	}}
}

func bimResult() *entity.ExtractionResult {
	return &entity.ExtractionResult{
		Areas: []entity.AreaItem{
			{ID: "a1", Name: "Corridor", FloorNumber: ptr(2), AreaSqm: ptr(18.5)},
			{ID: "a2", Name: "Plant Room"},
		},
		Equipment: []entity.EquipmentItem{
			{ID: "e1", Name: "Fire Pump", Type: "Pump", Level: "Level 2", TemplateMatch: entity.TemplateMatch{MatchedTemplateID: ptr("t-pump")}},
			{ID: "e2", Name: "AHU-1"},
			{ID: "e3", Name: "ahu-1"},
		},
		Materials: []entity.MaterialItem{
			{ID: "m1", Name: "Concrete C30"},
			{ID: "m2", Name: "Gypsum Board"},
		},
	}
}

func byName(areas []entity.Area) map[string]entity.Area {
	out := make(map[string]entity.Area, len(areas))
	for _, a := range areas {
		out[a.Name] = a
	}
	return out
}

func TestImportFloorsCreatesHierarchy(t *testing.T) {
	ctx := context.Background()
	repos := repository.New(repotest.Open(t), nil)
	ex := seed(t, repos, constants.SourcePDFQuantity, floorsResult())
	eng := NewEngine(repos, nil)

	res, err := eng.ImportAreas(ctx, Request{ExtractionID: ex.ID, Actor: "u1"})
	require.NoError(t, err)
	// two floors and three rooms; "lobby " on floor 2 collides with "Lobby"
	assert.Equal(t, 5, res.Imported)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, res.CreatedIDs, 5)
	assert.NotEmpty(t, res.ManifestID)

	areas, err := repos.ProjectRows.ListAreas(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, areas, 5)
	rows := byName(areas)
	floor1 := rows["Floor 1"]
	assert.Equal(t, constants.AreaFloor, floor1.AreaType)
	assert.Nil(t, floor1.ParentID)
	assert.InDelta(t, 120.0, *floor1.AreaSqm, 1e-9)
	office := rows["Office 201"]
	assert.Equal(t, constants.AreaRoom, office.AreaType)
	require.NotNil(t, office.ParentID)
	assert.Equal(t, rows["Floor 2"].ID, *office.ParentID)
	assert.Equal(t, 2, *office.FloorNumber)
	assert.Equal(t, ex.ID, *office.SourceExtractionID)
	assert.Equal(t, "u1", office.CreatedBy)

	manifests, err := repos.Manifests.ListByExtraction(ctx, ex.ID)
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	m := manifests[0]
	assert.Equal(t, constants.EntityArea, m.EntityType)
	assert.Equal(t, 5, m.ImportedCount)
	assert.Equal(t, 1, m.SkippedCount)
	assert.ElementsMatch(t, res.CreatedIDs, m.CreatedIDs)
	assert.Equal(t, "u1", m.Actor)
}

func TestImportFloorsReusesExistingFloor(t *testing.T) {
	ctx := context.Background()
	repos := repository.New(repotest.Open(t), nil)
	existing := &entity.Area{ProjectID: "p1", Name: "FLOOR 1", AreaType: constants.AreaFloor}
	require.NoError(t, repos.ProjectRows.InsertArea(ctx, existing))
	ex := seed(t, repos, constants.SourceImagePlan, floorsResult())

	res, err := NewEngine(repos, nil).ImportAreas(ctx, Request{ExtractionID: ex.ID, FloorIndices: []int{0, 7, -1}})
	require.NoError(t, err)
	// out-of-range indices are ignored, not counted
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 0, res.Skipped)

	areas, err := repos.ProjectRows.ListAreas(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, areas, 3)
	for _, a := range areas {
		if a.AreaType == constants.AreaRoom {
			require.NotNil(t, a.ParentID)
			assert.Equal(t, existing.ID, *a.ParentID)
		}
	}
}

func TestImportFloorsOnlyReusesFloorAreas(t *testing.T) {
	ctx := context.Background()
	repos := repository.New(repotest.Open(t), nil)
	ex := seed(t, repos, constants.SourcePDFQuantity, &entity.ExtractionResult{Floors: []entity.Floor{
		{Name: "Ground", Rooms: []entity.Room{{Name: "Mezzanine"}}},
		{Name: "Mezzanine", Rooms: []entity.Room{{Name: "Office 201"}}},
	}})

	res, err := NewEngine(repos, nil).ImportAreas(ctx, Request{ExtractionID: ex.ID})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Imported)
	assert.Equal(t, 0, res.Skipped)

	areas, err := repos.ProjectRows.ListAreas(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, areas, 4)
	types := make(map[string]constants.AreaType, len(areas))
	var mezzanineFloor, office entity.Area
	for _, a := range areas {
		types[a.ID] = a.AreaType
		switch {
		case a.Name == "Mezzanine" && a.AreaType == constants.AreaFloor:
			mezzanineFloor = a
		case a.Name == "Office 201":
			office = a
		}
	}
	require.NotEmpty(t, mezzanineFloor.ID)
	require.NotNil(t, office.ParentID)
	assert.Equal(t, mezzanineFloor.ID, *office.ParentID)
	assert.Equal(t, constants.AreaFloor, types[*office.ParentID])
}

func TestImportFloorsIgnoresExistingRoomWithFloorName(t *testing.T) {
	ctx := context.Background()
	repos := repository.New(repotest.Open(t), nil)
	room := &entity.Area{ProjectID: "p1", Name: "floor 2", AreaType: constants.AreaRoom}
	require.NoError(t, repos.ProjectRows.InsertArea(ctx, room))
	ex := seed(t, repos, constants.SourcePDFQuantity, floorsResult())

	res, err := NewEngine(repos, nil).ImportAreas(ctx, Request{ExtractionID: ex.ID, FloorIndices: []int{1}})
	require.NoError(t, err)
	// a new Floor 2 plus both of its rooms
	assert.Equal(t, 3, res.Imported)

	areas, err := repos.ProjectRows.ListAreas(ctx, "p1")
	require.NoError(t, err)
	for _, a := range areas {
		if a.AreaType == constants.AreaRoom && a.ID != room.ID {
			require.NotNil(t, a.ParentID)
			assert.NotEqual(t, room.ID, *a.ParentID)
		}
	}
}

func TestImportSkipsExistingNames(t *testing.T) {
	ctx := context.Background()
	repos := repository.New(repotest.Open(t), nil)
	require.NoError(t, repos.ProjectRows.InsertEquipment(ctx, &entity.Equipment{ProjectID: "p1", Name: "  FIRE PUMP"}))
	// other projects do not collide
	require.NoError(t, repos.ProjectRows.InsertEquipment(ctx, &entity.Equipment{ProjectID: "p2", Name: "AHU-1"}))
	ex := seed(t, repos, constants.SourceBIMIFC, bimResult())
	eng := NewEngine(repos, nil)

	res, err := eng.ImportEquipment(ctx, Request{ExtractionID: ex.ID})
	require.NoError(t, err)
	// e1 exists, e3 duplicates e2 within the batch
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 2, res.Skipped)

	names, err := repos.ProjectRows.EquipmentNames(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, names, 2)
	assert.Contains(t, names, "ahu-1")
}

func TestImportCountsMissingIDsAsSkipped(t *testing.T) {
	ctx := context.Background()
	repos := repository.New(repotest.Open(t), nil)
	ex := seed(t, repos, constants.SourceBIMIFC, bimResult())

	res, err := NewEngine(repos, nil).ImportMaterials(ctx, Request{ExtractionID: ex.ID, ObjectIDs: []string{"m2", "missing"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2, res.Imported+res.Skipped)

	names, err := repos.ProjectRows.MaterialNames(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, res.CreatedIDs[0], names["gypsum board"])
}

func TestImportBIMAreasAsSpaces(t *testing.T) {
	ctx := context.Background()
	repos := repository.New(repotest.Open(t), nil)
	ex := seed(t, repos, constants.SourceBIMIFC, bimResult())

	res, err := NewEngine(repos, nil).ImportAreas(ctx, Request{ExtractionID: ex.ID, ObjectIDs: []string{"a1"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	areas, err := repos.ProjectRows.ListAreas(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, areas, 1)
	assert.Equal(t, constants.AreaSpace, areas[0].AreaType)
	assert.Equal(t, "Corridor", areas[0].Name)
	assert.InDelta(t, 18.5, *areas[0].AreaSqm, 1e-9)
}

func TestImportWithNothingNewStillWritesManifest(t *testing.T) {
	ctx := context.Background()
	repos := repository.New(repotest.Open(t), nil)
	ex := seed(t, repos, constants.SourceBIMIFC, bimResult())
	eng := NewEngine(repos, nil)

	_, err := eng.ImportMaterials(ctx, Request{ExtractionID: ex.ID})
	require.NoError(t, err)
	res, err := eng.ImportMaterials(ctx, Request{ExtractionID: ex.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Imported)
	assert.Equal(t, 2, res.Skipped)
	assert.NotNil(t, res.CreatedIDs)
	assert.Empty(t, res.CreatedIDs)

	manifests, err := repos.Manifests.ListByExtraction(ctx, ex.ID)
	require.NoError(t, err)
	assert.Len(t, manifests, 2)
}

func TestImportActorFromContext(t *testing.T) {
	repos := repository.New(repotest.Open(t), nil)
	ex := seed(t, repos, constants.SourceBIMIFC, bimResult())
	ctx := common.WithActor(context.Background(), "ctx-user")

	_, err := NewEngine(repos, nil).ImportEquipment(ctx, Request{ExtractionID: ex.ID, ObjectIDs: []string{"e2"}})
	require.NoError(t, err)

	manifests, err := repos.Manifests.ListByExtraction(ctx, ex.ID)
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	assert.Equal(t, "ctx-user", manifests[0].Actor)
}

func TestImportRejectsUnfinishedExtraction(t *testing.T) {
	ctx := context.Background()
	repos := repository.New(repotest.Open(t), nil)
	eng := NewEngine(repos, nil)
	pending := seed(t, repos, constants.SourcePDFQuantity, nil)

	_, err := eng.ImportAreas(ctx, Request{ExtractionID: pending.ID})
	assert.ErrorIs(t, err, common.ErrNotReady)

	manifests, err := repos.Manifests.ListByExtraction(ctx, pending.ID)
	require.NoError(t, err)
	assert.Empty(t, manifests)

	_, err = eng.ImportEquipment(ctx, Request{ExtractionID: "nope"})
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = eng.ImportMaterials(ctx, Request{})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
