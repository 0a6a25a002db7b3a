package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
	"github.com/joseph-ayodele/takeoff-tracker/internal/matching"
	"github.com/joseph-ayodele/takeoff-tracker/internal/repository"
)

const (
	sheetFloors    = "Floors"
	sheetAreas     = "Areas"
	sheetEquipment = "Equipment"
	sheetMaterials = "Materials"

	reviewFlag = "review"
)

// Service renders completed extractions as XLSX workbooks for review.
type Service struct {
	extractions repository.ExtractionRepository
	logger      *slog.Logger
}

func NewService(extractions repository.ExtractionRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{extractions: extractions, logger: logger}
}

// ExportExtractionXLSX returns a workbook with one sheet per collection of the
// extraction's result. Matches under matching.DisplayThreshold are flagged for review.
func (s *Service) ExportExtractionXLSX(ctx context.Context, extractionID string) ([]byte, error) {
	start := time.Now()

	ex, err := s.extractions.GetByID(ctx, extractionID)
	if err != nil {
		return nil, err
	}
	if ex.Status != constants.StatusCompleted || ex.ExtractedData == nil {
		return nil, common.NotReady(fmt.Sprintf("extraction %s is %s; nothing to export", ex.ID, ex.Status))
	}
	data := ex.ExtractedData

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetFloors); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	for _, name := range []string{sheetAreas, sheetEquipment, sheetMaterials} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("xlsx sheet: %w", err)
		}
	}

	w := &sheetWriter{f: f}

	w.start(sheetFloors, "Floor", "Floor Number", "Floor Area", "Room", "Room Type", "Room Area")
	for _, fl := range data.Floors {
		if len(fl.Rooms) == 0 {
			w.row(fl.Name, intCell(fl.FloorNumber), floatCell(fl.TotalArea))
			continue
		}
		for _, rm := range fl.Rooms {
			w.row(fl.Name, intCell(fl.FloorNumber), floatCell(fl.TotalArea), rm.Name, rm.RoomType, floatCell(rm.Area))
		}
	}

	w.start(sheetAreas, "ID", "Name", "Number", "Level", "Floor Number", "Area (m²)", "Category")
	for _, a := range data.Areas {
		w.row(a.ID, a.Name, a.Number, a.Level, intCell(a.FloorNumber), floatCell(a.AreaSqm), a.Category)
	}

	w.start(sheetEquipment, "ID", "Name", "Type", "Category", "Manufacturer", "Model", "Level",
		"Template", "Confidence", "Flag")
	for _, it := range data.Equipment {
		w.row(append([]any{it.ID, it.Name, it.Type, it.Category, it.Manufacturer, it.Model, it.Level},
			matchCells(it.TemplateMatch)...)...)
	}

	w.start(sheetMaterials, "ID", "Name", "Type", "Category", "Level", "Template", "Confidence", "Flag")
	for _, it := range data.Materials {
		w.row(append([]any{it.ID, it.Name, it.Type, it.Category, it.Level}, matchCells(it.TemplateMatch)...)...)
	}
	if w.err != nil {
		return nil, fmt.Errorf("xlsx write: %w", w.err)
	}

	_ = f.SetColWidth(sheetFloors, "A", "A", 18)
	_ = f.SetColWidth(sheetFloors, "D", "D", 28)
	for _, sheet := range []string{sheetAreas, sheetEquipment, sheetMaterials} {
		_ = f.SetColWidth(sheet, "A", "A", 24)
		_ = f.SetColWidth(sheet, "B", "B", 32)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	common.LoggerFrom(ctx, s.logger).Info("export.xlsx.ok",
		"extraction_id", ex.ID,
		"floors", len(data.Floors),
		"areas", len(data.Areas),
		"equipment", len(data.Equipment),
		"materials", len(data.Materials),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// sheetWriter appends rows to the current sheet and keeps the first error.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	next  int
	err   error
}

func (w *sheetWriter) start(sheet string, headers ...string) {
	w.sheet, w.next = sheet, 1
	cells := make([]any, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	w.row(cells...)
}

func (w *sheetWriter) row(values ...any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, w.next)
	if err == nil {
		err = w.f.SetSheetRow(w.sheet, cell, &values)
	}
	w.err = err
	w.next++
}

func matchCells(m entity.TemplateMatch) []any {
	name := ""
	if m.MatchedTemplateName != nil {
		name = *m.MatchedTemplateName
	}
	flag := ""
	if m.MatchedTemplateID == nil || m.MatchConfidence < matching.DisplayThreshold {
		flag = reviewFlag
	}
	return []any{name, m.MatchConfidence, flag}
}

func intCell(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func floatCell(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
