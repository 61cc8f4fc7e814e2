package orders

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

func TestBuildWorkbook(t *testing.T) {
	surveyed := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	order := Order{
		ID:           uuid.New(),
		Surveyors:    []string{"Ann", "Bo"},
		SurveyText:   SurveyText{ConfinedSpaceNameOrID: "Vault 7", Building: "B1"},
		HazardFlags:  HazardFlags{ConfinedSpace: true},
		Pictures:     []string{"/uploads/a.png"},
		DateOfSurvey: &surveyed,
	}

	buf, err := buildWorkbook([]Order{order})
	if err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header plus one order", len(rows))
	}

	headers := exportHeaders()
	if len(rows[0]) != len(headers) {
		t.Fatalf("header has %d columns, want %d", len(rows[0]), len(headers))
	}
	col := func(label string) string {
		for i, h := range headers {
			if h == label {
				return rows[1][i]
			}
		}
		t.Fatalf("no column %q", label)
		return ""
	}
	if got := col("Date of survey"); got != "2024-03-09" {
		t.Errorf("date = %q", got)
	}
	if got := col("Surveyors"); got != "Ann, Bo" {
		t.Errorf("surveyors = %q", got)
	}
	if got := col("Confined space name or ID"); got != "Vault 7" {
		t.Errorf("confined space = %q", got)
	}
	if got := col("Permit required"); got != "No" {
		t.Errorf("permit required = %q", got)
	}
	if got := col("Order ID"); got != order.ID.String() {
		t.Errorf("order id = %q", got)
	}
}
