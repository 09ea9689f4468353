package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"studyai-platform/internal/logger"
)

// ExportService renders learning analytics as a spreadsheet download
type ExportService struct {
	store     Store
	analytics *AnalyticsService
}

func NewExportService(store Store, analytics *AnalyticsService) *ExportService {
	return &ExportService{store: store, analytics: analytics}
}

// AnalyticsWorkbook builds an xlsx with an overview sheet and a full
// concept listing, returned as an in-memory buffer
func (es *ExportService) AnalyticsWorkbook(ctx context.Context, userID string) (*bytes.Buffer, error) {
	overview, err := es.analytics.Overview(ctx, userID)
	if err != nil {
		return nil, err
	}
	concepts, err := es.store.ListConceptsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("failed to close workbook", "error", err)
		}
	}()

	// Overview sheet
	sheet := "Overview"
	f.SetSheetName("Sheet1", sheet)
	overviewRows := [][]interface{}{
		{"Metric", "Value"},
		{"Total concepts", overview.Snapshot.Total},
		{"Mastered", overview.Snapshot.Mastered},
		{"Learning", overview.Snapshot.Learning},
		{"Weak", overview.Snapshot.Weak},
		{"Overall mastery", overview.Snapshot.Overall},
	}
	for i, row := range overviewRows {
		for j, val := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			f.SetCellValue(sheet, cell, val)
		}
	}

	// Documents sheet
	docSheet := "Documents"
	f.NewSheet(docSheet)
	docHeader := []string{"Filename", "Status", "Concepts", "Avg mastery"}
	for j, h := range docHeader {
		cell, _ := excelize.CoordinatesToCellName(j+1, 1)
		f.SetCellValue(docSheet, cell, h)
	}
	for i, d := range overview.Documents {
		values := []interface{}{d.Filename, d.Status, d.Concepts, d.AvgMastery}
		for j, val := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(docSheet, cell, val)
		}
	}

	// Concepts sheet
	conceptSheet := "Concepts"
	f.NewSheet(conceptSheet)
	conceptHeader := []string{"Name", "Definition", "Mastery", "EF", "Repetitions", "Interval days", "Next review"}
	for j, h := range conceptHeader {
		cell, _ := excelize.CoordinatesToCellName(j+1, 1)
		f.SetCellValue(conceptSheet, cell, h)
	}
	for i, c := range concepts {
		values := []interface{}{
			c.Name,
			c.Definition,
			c.MasteryScore,
			c.EasinessFactor,
			c.RepetitionCount,
			c.IntervalDays,
			c.NextReview.Format("2006-01-02"),
		}
		for j, val := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(conceptSheet, cell, val)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf, nil
}
