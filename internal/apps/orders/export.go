package orders

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/identity"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Orders"

// Export runs the search and renders the result as an xlsx workbook.
func (s *OrderService) Export(caller identity.Caller, q *SearchQuery) (*bytes.Buffer, string, error) {
	orders, err := s.Search(caller, q)
	if err != nil {
		return nil, "", err
	}

	buf, err := buildWorkbook(orders)
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("orders_%s.xlsx", time.Now().UTC().Format("20060102"))
	return buf, filename, nil
}

func exportHeaders() []string {
	headers := []string{"Date of survey", "Surveyors", "Number of entry points"}
	for _, f := range textFields {
		headers = append(headers, f.Label)
	}
	for _, f := range flagFields {
		headers = append(headers, f.Label)
	}
	return append(headers, "Pictures", "Location ID", "Order ID")
}

func exportRow(o *Order) []interface{} {
	date := ""
	if o.DateOfSurvey != nil {
		date = o.DateOfSurvey.Format(time.DateOnly)
	}
	row := []interface{}{date, strings.Join(o.Surveyors, ", "), o.NumberOfEntryPoints}
	for _, f := range textFields {
		row = append(row, *f.Get(&o.SurveyText))
	}
	for _, f := range flagFields {
		row = append(row, yesNo(*f.Get(&o.HazardFlags)))
	}
	location := ""
	if o.LocationID != nil {
		location = o.LocationID.String()
	}
	return append(row, len(o.Pictures), location, o.ID.String())
}

func buildWorkbook(orders []Order) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})

	headers := exportHeaders()
	if err := f.SetSheetRow(exportSheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	f.SetCellStyle(exportSheet, "A1", lastCol+"1", headerStyle)
	f.SetColWidth(exportSheet, "A", lastCol, 20)
	f.SetPanes(exportSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	for i := range orders {
		row := exportRow(&orders[i])
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
