package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
	"github.com/joseph-ayodele/takeoff-tracker/internal/takeoff"
)

// QuantityEngine is the remote takeoff reader.
type QuantityEngine interface {
	Extract(ctx context.Context, req takeoff.Request) (*takeoff.Response, error)
}

// PDFQuantityExtractor delegates quantity takeoff PDFs to the engine.
type PDFQuantityExtractor struct {
	engine QuantityEngine
	logger *slog.Logger
}

func NewPDFQuantityExtractor(engine QuantityEngine, logger *slog.Logger) *PDFQuantityExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFQuantityExtractor{engine: engine, logger: logger}
}

func (x *PDFQuantityExtractor) Source() constants.ExtractionSource { return constants.SourcePDFQuantity }

func (x *PDFQuantityExtractor) Extract(ctx context.Context, in Input) (Output, error) {
	if x.engine == nil {
		return Output{}, common.ConfigurationError("quantity extraction engine is not configured")
	}
	if len(in.Content) == 0 {
		return Output{}, fmt.Errorf("pdf %q is empty", filename(in))
	}
	resp, err := x.engine.Extract(ctx, takeoff.Request{
		Content:  in.Content,
		Filename: filename(in),
		MimeType: "application/pdf",
		Language: in.Language,
	})
	if err != nil {
		return Output{}, err
	}
	res := entity.NewExtractionResult()
	res.Floors = resp.Floors
	if resp.Summary != nil {
		res.Summary = resp.Summary
	}
	res.Normalize()
	addFloorTotals(res)
	return Output{Result: res, Summary: res.Summary, Tier: resp.Tier, ProcessingTimeMs: resp.ProcessingTimeMs}, nil
}

// addFloorTotals fills summary counters the engine left out.
func addFloorTotals(res *entity.ExtractionResult) {
	rooms := 0
	for _, f := range res.Floors {
		rooms += len(f.Rooms)
	}
	if _, ok := res.Summary["total_floors"]; !ok {
		res.Summary["total_floors"] = len(res.Floors)
	}
	if _, ok := res.Summary["total_rooms"]; !ok {
		res.Summary["total_rooms"] = rooms
	}
}
