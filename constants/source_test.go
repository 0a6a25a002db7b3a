package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyFilename(t *testing.T) {
	tests := []struct {
		name string
		file string
		want ExtractionSource
	}{
		{"pdf", "takeoff.pdf", SourcePDFQuantity},
		{"upper_case_pdf", "TAKEOFF.PDF", SourcePDFQuantity},
		{"png", "plan.png", SourceImagePlan},
		{"jpg", "plan.jpg", SourceImagePlan},
		{"jpeg", "scan.JPEG", SourceImagePlan},
		{"ifc", "tower.ifc", SourceBIMIFC},
		{"rvt", "tower.rvt", SourceBIMAPS},
		{"nwd", "site.nwd", SourceBIMAPS},
		{"nwc", "site.nwc", SourceBIMAPS},
		{"dwg", "detail.dwg", SourceBIMAPS},
		{"path_and_spaces", "  /uploads/a b/level 2.pdf ", SourcePDFQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClassifyFilename(tt.file)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := ClassifyFilename(tt.file)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestClassifyFilename_Unsupported(t *testing.T) {
	for _, name := range []string{"notes.xyz", "archive.zip", "noext", "", "pdf"} {
		_, err := ClassifyFilename(name)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, ErrUnsupportedFileType)
	}
}

func TestSourceHelpers(t *testing.T) {
	assert.True(t, SourceBIMAPS.IsBIM())
	assert.True(t, SourceBIMIFC.IsBIM())
	assert.False(t, SourcePDFQuantity.IsBIM())
	assert.True(t, SourceImagePlan.Valid())
	assert.False(t, ExtractionSource("dxf").Valid())
	assert.Equal(t, "application/pdf", MimeTypeFor("a.PDF"))
	assert.Equal(t, "application/octet-stream", MimeTypeFor("a.rvt"))
}

func TestParseEntityType(t *testing.T) {
	got, ok := ParseEntityType("Materials")
	assert.True(t, ok)
	assert.Equal(t, EntityMaterial, got)

	got, ok = ParseEntityType("equipment")
	assert.True(t, ok)
	assert.Equal(t, EntityEquipment, got)

	_, ok = ParseEntityType("permits")
	assert.False(t, ok)
}
