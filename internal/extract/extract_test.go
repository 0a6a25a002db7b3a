package extract

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/aps"
	"github.com/joseph-ayodele/takeoff-tracker/internal/bim"
	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
	"github.com/joseph-ayodele/takeoff-tracker/internal/raster"
	"github.com/joseph-ayodele/takeoff-tracker/internal/takeoff"
)

type staticTemplates map[constants.TemplateKind][]entity.Template

func (s staticTemplates) Templates(_ context.Context, kind constants.TemplateKind) ([]entity.Template, error) {
	return s[kind], nil
}

var catalog = staticTemplates{
	constants.TemplateEquipment: {{ID: "t-pump", Name: "Fire Pump"}},
	constants.TemplateMaterial:  {{ID: "t-conc", Name: "Concrete"}},
}

func intp(v int) *int { return &v }

func TestValidateResult(t *testing.T) {
	res := entity.NewExtractionResult()
	require.NoError(t, ValidateResult(res))

	res.Floors = []entity.Floor{{Name: "Floor 1", FloorNumber: intp(1)}}
	res.Equipment = []entity.EquipmentItem{{ID: "1", Name: "Pump", TemplateMatch: entity.TemplateMatch{MatchConfidence: 0.5}}}
	require.NoError(t, ValidateResult(res))
	assert.NotNil(t, res.Floors[0].Rooms, "normalized before validation")

	res.Equipment[0].MatchConfidence = 1.5
	assert.Error(t, ValidateResult(res))

	assert.Error(t, ValidateJSON([]byte(`{"floors":[]}`)))
	assert.Error(t, ValidateResult(nil))
}

type fakeQuantityEngine struct {
	got takeoff.Request
	err error
}

func (f *fakeQuantityEngine) Extract(_ context.Context, req takeoff.Request) (*takeoff.Response, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &takeoff.Response{
		Floors: []entity.Floor{{Name: "Floor 1", Rooms: []entity.Room{{Name: "Lobby"}, {Name: "Office"}}}},
		Tier:   "vision",
	}, nil
}

func TestPDFQuantityExtractor(t *testing.T) {
	engine := &fakeQuantityEngine{}
	x := NewPDFQuantityExtractor(engine, nil)
	assert.Equal(t, constants.SourcePDFQuantity, x.Source())

	out, err := x.Extract(context.Background(), Input{
		File:     &entity.StoredFile{Filename: "boq.pdf"},
		Content:  []byte("%PDF"),
		Language: "he",
	})
	require.NoError(t, err)
	assert.Equal(t, "he", engine.got.Language)
	assert.Equal(t, "boq.pdf", engine.got.Filename)
	assert.Equal(t, "vision", out.Tier)
	assert.Equal(t, 2, out.Summary["total_rooms"])
	assert.Equal(t, 1, out.Summary["total_floors"])
	assert.Empty(t, out.Result.Equipment)
	require.NoError(t, ValidateResult(out.Result))

	_, err = NewPDFQuantityExtractor(nil, nil).Extract(context.Background(), Input{Content: []byte("x")})
	assert.True(t, errors.Is(err, common.ErrConfiguration))

	_, err = NewPDFQuantityExtractor(&fakeQuantityEngine{err: errors.New("engine exploded")}, nil).
		Extract(context.Background(), Input{Content: []byte("x")})
	assert.EqualError(t, err, "engine exploded")
}

type fakeRaster struct {
	available bool
}

func (f fakeRaster) Available() bool { return f.available }

func (f fakeRaster) Extract(context.Context, []byte, string) (*raster.Result, error) {
	return &raster.Result{Floors: []entity.Floor{{Name: "Ground"}}}, nil
}

func TestImagePlanExtractor(t *testing.T) {
	_, err := NewImagePlanExtractor(nil, nil).Extract(context.Background(), Input{})
	assert.True(t, errors.Is(err, common.ErrConfiguration))

	_, err = NewImagePlanExtractor(fakeRaster{available: false}, nil).Extract(context.Background(), Input{})
	assert.True(t, errors.Is(err, common.ErrConfiguration))

	out, err := NewImagePlanExtractor(fakeRaster{available: true}, nil).Extract(context.Background(), Input{Content: []byte("png")})
	require.NoError(t, err)
	assert.Equal(t, "raster", out.Tier)
	require.Len(t, out.Result.Floors, 1)
	assert.NotNil(t, out.Result.Floors[0].Rooms)
}

const miniIFC = `ISO-10303-21;
HEADER;
FILE_SCHEMA(('IFC4'));
ENDSEC;
DATA;
#1=IFCBUILDINGSTOREY('st',$,'Level 2',$,$,$,$,$,.ELEMENT.,6.);
#2=IFCPUMP('p1',$,'Fire Pump',$,$,$,$,$,.NOTDEFINED.);
#3=IFCRELCONTAINEDINSPATIALSTRUCTURE('r',$,$,$,(#2),#1);
#4=IFCMATERIAL('Concrete C30',$,$);
ENDSEC;
END-ISO-10303-21;
`

func TestIFCExtractor(t *testing.T) {
	x := NewIFCExtractor(catalog, nil)
	out, err := x.Extract(context.Background(), Input{Content: []byte(miniIFC), File: &entity.StoredFile{Filename: "a.ifc"}})
	require.NoError(t, err)
	assert.Equal(t, "ifc", out.Tier)

	require.Len(t, out.Result.Equipment, 1)
	eq := out.Result.Equipment[0]
	assert.Equal(t, "Level 2", eq.Level)
	require.NotNil(t, eq.MatchedTemplateID)
	assert.Equal(t, "t-pump", *eq.MatchedTemplateID)
	assert.InDelta(t, 1.0, eq.MatchConfidence, 1e-9)

	require.Len(t, out.Result.Materials, 1)
	assert.Equal(t, "t-conc", *out.Result.Materials[0].MatchedTemplateID)
	require.NoError(t, ValidateResult(out.Result))

	_, err = x.Extract(context.Background(), Input{Content: []byte("garbage")})
	assert.Error(t, err)
}

type fakeViewer struct {
	manifest aps.ManifestStatus
	views    []aps.View
	treeErr  error

	mu    sync.Mutex
	calls int
}

func (f *fakeViewer) hit() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeViewer) Manifest(context.Context, string) (aps.ManifestStatus, error) {
	f.hit()
	return f.manifest, nil
}

func (f *fakeViewer) ListViews(context.Context, string) ([]aps.View, error) {
	f.hit()
	return f.views, nil
}

func (f *fakeViewer) ObjectTree(context.Context, string, string) ([]bim.Node, error) {
	f.hit()
	if f.treeErr != nil {
		return nil, f.treeErr
	}
	return []bim.Node{{ObjectID: 1, Name: "Model", Children: []bim.Node{
		{ObjectID: 2, Name: "Mechanical Equipment", Children: []bim.Node{{ObjectID: 3, Name: "Fire Pump"}}},
		{ObjectID: 4, Name: "Rooms", Children: []bim.Node{{ObjectID: 5, Name: "Lobby"}}},
	}}}, nil
}

func (f *fakeViewer) Properties(context.Context, string, string) ([]bim.ObjectProperties, error) {
	f.hit()
	return []bim.ObjectProperties{{ObjectID: 5, Properties: map[string]map[string]any{"Constraints": {"Level": "Level 3"}}}}, nil
}

type fakeModels struct {
	saved    *entity.BimMetadata
	status   constants.TranslationStatus
	saveErr  error
	progress string
}

func (f *fakeModels) UpdateTranslation(_ context.Context, _ string, status constants.TranslationStatus, progress, _ string) error {
	f.status, f.progress = status, progress
	return nil
}

func (f *fakeModels) SaveMetadata(_ context.Context, _ string, md *entity.BimMetadata) error {
	f.saved = md
	return f.saveErr
}

func TestAPSExtractorFetchesAndCaches(t *testing.T) {
	viewer := &fakeViewer{
		manifest: aps.ManifestStatus{Status: "success", Progress: "complete"},
		views:    []aps.View{{GUID: "g2", Role: "2d"}, {GUID: "g3", Role: "3d"}},
	}
	models := &fakeModels{}
	x := NewAPSExtractor(viewer, models, nil, catalog, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	x.now = func() time.Time { return fixed }

	model := &entity.BimModel{ID: "m1", URN: "urn1", TranslationStatus: constants.TranslationInProgress}
	out, err := x.Extract(context.Background(), Input{BimModel: model})
	require.NoError(t, err)
	assert.Equal(t, "aps", out.Tier)
	assert.Equal(t, constants.TranslationSuccess, models.status)

	require.Len(t, out.Result.Equipment, 1)
	assert.Equal(t, "t-pump", *out.Result.Equipment[0].MatchedTemplateID)
	require.Len(t, out.Result.Areas, 1)
	assert.Equal(t, intp(3), out.Result.Areas[0].FloorNumber)
	assert.Equal(t, 5, out.Result.RawObjectCount)

	require.NotNil(t, models.saved)
	assert.Equal(t, "g3", models.saved.ViewGUID)
	assert.Equal(t, fixed, *models.saved.ExtractedAt)

	// a second run is served from the cache without remote calls
	model.Metadata = models.saved
	calls := viewer.calls
	newCatalog := staticTemplates{constants.TemplateEquipment: {{ID: "t-new", Name: "Fire Pump"}}}
	x2 := NewAPSExtractor(viewer, models, nil, newCatalog, nil)
	out, err = x2.Extract(context.Background(), Input{BimModel: model})
	require.NoError(t, err)
	assert.Equal(t, "cache", out.Tier)
	assert.Equal(t, calls, viewer.calls)
	assert.Equal(t, "t-new", *out.Result.Equipment[0].MatchedTemplateID, "matches are re-scored")
	assert.Equal(t, "t-pump", *models.saved.Result.Equipment[0].MatchedTemplateID, "cache left untouched")
}

func TestAPSExtractorCacheWriteFailureIsLogged(t *testing.T) {
	viewer := &fakeViewer{views: []aps.View{{GUID: "g3", Role: "3d"}}}
	models := &fakeModels{saveErr: errors.New("db down")}
	x := NewAPSExtractor(viewer, models, nil, catalog, nil)

	out, err := x.Extract(context.Background(), Input{BimModel: &entity.BimModel{ID: "m1", URN: "u", TranslationStatus: constants.TranslationSuccess}})
	require.NoError(t, err)
	assert.Len(t, out.Result.Equipment, 1)
}

func TestAPSExtractorErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewAPSExtractor(&fakeViewer{}, nil, nil, nil, nil).Extract(ctx, Input{BimModel: &entity.BimModel{ID: "m"}})
	assert.ErrorContains(t, err, "no urn")

	_, err = NewAPSExtractor(&fakeViewer{manifest: aps.ManifestStatus{Status: "inprogress", Progress: "10%"}}, &fakeModels{}, nil, nil, nil).
		Extract(ctx, Input{BimModel: &entity.BimModel{ID: "m", URN: "u"}})
	assert.True(t, errors.Is(err, common.ErrNotReady))

	_, err = NewAPSExtractor(&fakeViewer{manifest: aps.ManifestStatus{Status: "failed"}}, nil, nil, nil, nil).
		Extract(ctx, Input{BimModel: &entity.BimModel{ID: "m", URN: "u"}})
	assert.ErrorContains(t, err, "failed")

	viewer := &fakeViewer{views: []aps.View{{GUID: "g"}}, treeErr: errors.New("tree unavailable")}
	_, err = NewAPSExtractor(viewer, nil, nil, nil, nil).
		Extract(ctx, Input{BimModel: &entity.BimModel{ID: "m", URN: "u", TranslationStatus: constants.TranslationSuccess}})
	assert.ErrorContains(t, err, "tree unavailable")

	_, err = NewAPSExtractor(nil, nil, nil, nil, nil).Extract(ctx, Input{BimModel: &entity.BimModel{ID: "m", URN: "u"}})
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewIFCExtractor(nil, nil), NewPDFQuantityExtractor(nil, nil))
	x, err := r.Get(constants.SourceBIMIFC)
	require.NoError(t, err)
	assert.Equal(t, constants.SourceBIMIFC, x.Source())

	_, err = r.Get(constants.SourceImagePlan)
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}
