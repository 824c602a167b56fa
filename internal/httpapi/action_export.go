package httpapi

import (
	"bytes"
	"fmt"

	"voltonic-power/internal/models"

	"github.com/xuri/excelize/v2"
)

const actionSheet = "Autonomous Actions"

// ActionExportHeader export columns
var ActionExportHeader = []string{
	"Timestamp",
	"Action Type",
	"Room ID",
	"Building ID",
	"Reason",
	"Energy Saved (kWh)",
	"Confidence",
	"Previous State",
	"New State",
}

var actionColumnWidths = []float64{20, 18, 10, 12, 60, 18, 12, 40, 40}

// GenerateActionExport audit trail as an xlsx workbook, header only when actions is empty
func GenerateActionExport(actions []models.AutonomousAction) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(actionSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range ActionExportHeader {
		if err := setCellValue(f, col+1, 1, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(actionSheet, name, name, actionColumnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(ActionExportHeader), 1)
	if err := f.SetCellStyle(actionSheet, "A1", last, headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i := range actions {
		a := &actions[i]
		row := i + 2
		values := []interface{}{
			a.Timestamp.Format("2006-01-02 15:04:05"),
			string(a.ActionType),
			optionalInt(a.RoomID),
			optionalInt(a.BuildingID),
			a.Reason,
			a.EnergySavedKWh,
			optionalFloat(a.Confidence),
			string(a.PreviousState),
			string(a.NewState),
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			if err := setCellValue(f, col+1, row, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell at row %d, col %d: %w", row, col+1, err)
			}
		}
	}

	if err := f.SetPanes(actionSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func setCellValue(f *excelize.File, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(actionSheet, cell, value)
}

func optionalInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func optionalFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
