package constants

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ExtractionSource identifies which backend pipeline produces an extraction's data.
type ExtractionSource string

// Stable values (store these exact strings in DB).
const (
	SourcePDFQuantity ExtractionSource = "pdf_quantity"
	SourceImagePlan   ExtractionSource = "image_plan"
	SourceBIMIFC      ExtractionSource = "bim_ifc"
	SourceBIMAPS      ExtractionSource = "bim_aps"
)

// ErrUnsupportedFileType is returned by ClassifyFilename for unknown extensions.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// Sources lists every extraction source in dispatch order.
var Sources = []ExtractionSource{SourcePDFQuantity, SourceImagePlan, SourceBIMIFC, SourceBIMAPS}

// sourceByExt holds the allowed extensions (lowercased sans '.').
var sourceByExt = map[string]ExtractionSource{
	"pdf":  SourcePDFQuantity,
	"png":  SourceImagePlan,
	"jpg":  SourceImagePlan,
	"jpeg": SourceImagePlan,
	"ifc":  SourceBIMIFC,
	"rvt":  SourceBIMAPS,
	"nwd":  SourceBIMAPS,
	"nwc":  SourceBIMAPS,
	"dwg":  SourceBIMAPS,
}

var mimeByExt = map[string]string{
	"pdf":  "application/pdf",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"ifc":  "application/x-step",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ClassifyFilename maps a filename to the extraction source that handles it.
func ClassifyFilename(name string) (ExtractionSource, error) {
	ext := NormalizeExt(filepath.Ext(strings.TrimSpace(name)))
	if src, ok := sourceByExt[ext]; ok {
		return src, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, name)
}

// MimeTypeFor returns a best-effort MIME type for a stored document.
func MimeTypeFor(name string) string {
	if mt, ok := mimeByExt[NormalizeExt(filepath.Ext(name))]; ok {
		return mt
	}
	return "application/octet-stream"
}

// Valid reports whether s is a known source.
func (s ExtractionSource) Valid() bool {
	for _, known := range Sources {
		if s == known {
			return true
		}
	}
	return false
}

// IsBIM reports whether the source fills areas/equipment/materials instead of floors.
func (s ExtractionSource) IsBIM() bool {
	return s == SourceBIMIFC || s == SourceBIMAPS
}

func (s ExtractionSource) String() string { return string(s) }
