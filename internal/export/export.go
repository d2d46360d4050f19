package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/leadboard/apps/api/internal/leads"
)

// Headers mirror the import column names so an export can be re-imported.
var Headers = []string{
	"id", "business_name", "stage", "contact", "website_url", "domain", "notes",
	"source_type", "source_detail", "owner_id", "next_followup_at", "followup_window",
	"do_not_contact", "dnc_reason", "lost_reason", "created_at", "updated_at",
}

func record(l leads.Lead) []string {
	var owner, followup, window string
	if l.OwnerID != nil {
		owner = l.OwnerID.String()
	}
	if l.NextFollowupAt != nil {
		followup = l.NextFollowupAt.Format(time.DateOnly)
	}
	if l.FollowupWindow != nil {
		window = string(*l.FollowupWindow)
	}
	return []string{
		l.ID.String(),
		l.BusinessName,
		string(l.Stage),
		deref(l.Contact),
		deref(l.WebsiteURL),
		deref(l.Domain),
		deref(l.Notes),
		string(l.SourceType),
		deref(l.SourceDetail),
		owner,
		followup,
		window,
		strconv.FormatBool(l.DoNotContact),
		deref(l.DNCReason),
		deref(l.LostReason),
		l.CreatedAt.UTC().Format(time.RFC3339),
		l.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func WriteCSV(w io.Writer, list []leads.Lead) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, l := range list {
		if err := writer.Write(record(l)); err != nil {
			return fmt.Errorf("write lead %s: %w", l.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func WriteXLSX(w io.Writer, sheetName string, list []leads.Lead) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheetName == "" {
		sheetName = "Leads"
	}
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, header := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(Headers), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, headerStyle); err != nil {
		return err
	}

	for rowIdx, l := range list {
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx+2)
		values := record(l)
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = v
		}
		// Keep booleans typed so spreadsheet filters work.
		row[12] = l.DoNotContact
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write lead %s: %w", l.ID, err)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(Headers))
	if err := f.SetColWidth(sheetName, "A", lastCol, 18); err != nil {
		return err
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
