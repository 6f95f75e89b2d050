package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"equity-risk-engine/internal/store"
)

// ExcelReporter writes audit history to an Excel workbook
type ExcelReporter struct{}

// NewExcelReporter creates a new Excel reporter
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

// excelStyles holds the workbook style IDs
type excelStyles struct {
	Header int
	Status map[string]int
}

// WriteAuditXLSX writes audit records to an Excel file with a summary sheet
func (r *ExcelReporter) WriteAuditXLSX(records []store.AuditRecord, path string) error {
	// Ensure directory exists before creating file
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const auditSheet = "Audit Log"
	const summarySheet = "Summary"

	fx.SetSheetName(fx.GetSheetName(0), auditSheet)
	fx.NewSheet(summarySheet)

	styles, err := r.createStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeAuditSheet(fx, auditSheet, records, styles); err != nil {
		return err
	}
	if err := r.writeSummarySheet(fx, summarySheet, records, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *ExcelReporter) createStyles(fx *excelize.File) (excelStyles, error) {
	styles := excelStyles{Status: make(map[string]int)}

	header, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return styles, err
	}
	styles.Header = header

	for status, color := range map[string]string{
		"SUCCESS":             "C6EFCE", // green
		"FAILED_ORDER":        "FFC7CE", // red
		"FAILED_BROKER":       "FFC7CE",
		"REJECTED_COMPLIANCE": "FFEB9C", // amber
		"REJECTED_RISK":       "FFEB9C",
	} {
		id, err := fx.NewStyle(&excelize.Style{
			Fill: excelize.Fill{
				Type:    "pattern",
				Color:   []string{color},
				Pattern: 1,
			},
		})
		if err != nil {
			return styles, err
		}
		styles.Status[status] = id
	}

	return styles, nil
}

func (r *ExcelReporter) writeAuditSheet(fx *excelize.File, sheet string, records []store.AuditRecord, styles excelStyles) error {
	headers := []string{"ID", "Time", "Account", "Symbol", "Side", "Status", "Message"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		fx.SetCellStyle(sheet, cell, cell, styles.Header)
	}

	for row, rec := range records {
		values := []interface{}{
			rec.ID,
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
			rec.AccountID,
			rec.Symbol,
			rec.Side,
			rec.Status,
			rec.Message,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
		if styleID, ok := styles.Status[rec.Status]; ok {
			cell, _ := excelize.CoordinatesToCellName(6, row+2)
			fx.SetCellStyle(sheet, cell, cell, styleID)
		}
	}

	fx.SetColWidth(sheet, "A", "A", 28)
	fx.SetColWidth(sheet, "B", "B", 20)
	fx.SetColWidth(sheet, "F", "F", 22)
	fx.SetColWidth(sheet, "G", "G", 60)
	return nil
}

func (r *ExcelReporter) writeSummarySheet(fx *excelize.File, sheet string, records []store.AuditRecord, styles excelStyles) error {
	byStatus := make(map[string]int)
	bySymbol := make(map[string]int)
	for _, rec := range records {
		byStatus[rec.Status]++
		bySymbol[rec.Symbol]++
	}

	fx.SetCellValue(sheet, "A1", "Status")
	fx.SetCellValue(sheet, "B1", "Count")
	fx.SetCellStyle(sheet, "A1", "B1", styles.Header)

	row := 2
	for status, count := range byStatus {
		cellA, _ := excelize.CoordinatesToCellName(1, row)
		cellB, _ := excelize.CoordinatesToCellName(2, row)
		fx.SetCellValue(sheet, cellA, status)
		fx.SetCellValue(sheet, cellB, count)
		row++
	}

	row += 2
	startA, _ := excelize.CoordinatesToCellName(1, row)
	startB, _ := excelize.CoordinatesToCellName(2, row)
	fx.SetCellValue(sheet, startA, "Symbol")
	fx.SetCellValue(sheet, startB, "Count")
	fx.SetCellStyle(sheet, startA, startB, styles.Header)
	row++
	for symbol, count := range bySymbol {
		cellA, _ := excelize.CoordinatesToCellName(1, row)
		cellB, _ := excelize.CoordinatesToCellName(2, row)
		fx.SetCellValue(sheet, cellA, symbol)
		fx.SetCellValue(sheet, cellB, count)
		row++
	}

	fx.SetColWidth(sheet, "A", "A", 24)
	return nil
}
