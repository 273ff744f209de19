package audit

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

var exportColumns = []string{
	"ID", "Slot ID", "Date", "Time", "Client", "Email",
	"Remote interview", "Outcome", "Reason", "Recorded at",
}

// ExportExcel writes the attempt log as an Excel workbook.
func (s *Store) ExportExcel(ctx context.Context, w io.Writer, limit int) error {
	attempts, err := s.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("load attempts: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Booking attempts"
	f.SetSheetName("Sheet1", sheet)

	for i, col := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		start, _ := excelize.CoordinatesToCellName(1, 1)
		end, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
		_ = f.SetCellStyle(sheet, start, end, style)
	}

	for i, a := range attempts {
		values := []interface{}{
			a.ID, a.SlotID, a.SlotDate, a.SlotTime, a.ClientName, a.ClientEmail,
			a.RemoteInterview, a.Outcome, a.Reason,
			a.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}
