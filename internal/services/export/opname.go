// Package export writes stock counts as spreadsheets for the back office.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/ivalora/gadget-rms/internal/opname"
	"github.com/xuri/excelize/v2"
)

const (
	SheetSummary  = "Summary"
	SheetSnapshot = "Snapshot"
	SheetScanned  = "Scanned"
)

const timeLayout = "2006-01-02 15:04:05"

// OpnameWorkbook builds the workbook of one session: a summary sheet and one
// sheet per item set.
func OpnameWorkbook(s *opname.Session) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SheetSnapshot, SheetScanned} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	c := s.Counters()
	summary := [][]interface{}{
		{"Session", s.ID.String()},
		{"Type", string(s.SessionType)},
		{"Status", string(s.SessionStatus)},
		{"Started", s.StartedAt.Format(timeLayout)},
		{"Completed", formatTime(s.CompletedAt)},
		{"Approved", formatTime(s.ApprovedAt)},
		{"Locked", formatTime(s.LockedAt)},
		{"Counted by", s.CreatedBy},
		{"Approved by", deref(s.ApprovedBy)},
		{"Notes", s.Notes},
		{"Expected", c.TotalExpected},
		{"Scanned", c.TotalScanned},
		{"Match", c.TotalMatch},
		{"Missing", c.TotalMissing},
		{"Unregistered", c.TotalUnregistered},
	}
	if err := writeRows(f, SheetSummary, summary); err != nil {
		f.Close()
		return nil, err
	}

	snapshot := [][]interface{}{{
		"IMEI", "Product", "Selling price", "Cost price", "Stock status",
		"Result", "Action", "Sold reference", "Notes", "Scanned at", "Applied at",
	}}
	for _, it := range s.SnapshotItems {
		action := ""
		if it.ActionTaken != nil {
			action = string(*it.ActionTaken)
		}
		snapshot = append(snapshot, []interface{}{
			it.IMEI, it.ProductLabel,
			it.SellingPrice.InexactFloat64(), it.CostPrice.InexactFloat64(),
			it.StockStatus, string(it.ScanResult), action, deref(it.SoldReferenceID),
			it.ActionNotes, formatTime(it.ScannedAt), formatTime(it.MutationAppliedAt),
		})
	}
	if err := writeRows(f, SheetSnapshot, snapshot); err != nil {
		f.Close()
		return nil, err
	}

	scanned := [][]interface{}{{"IMEI", "Result", "Action", "Notes", "Scanned by", "Scanned at", "Applied at"}}
	for _, it := range s.ScannedItems {
		action := ""
		if it.ActionTaken != nil {
			action = string(*it.ActionTaken)
		}
		scanned = append(scanned, []interface{}{
			it.IMEI, string(it.ScanResult), action, it.ActionNotes, it.ScannedBy,
			it.ScannedAt.Format(timeLayout), formatTime(it.MutationAppliedAt),
		})
	}
	if err := writeRows(f, SheetScanned, scanned); err != nil {
		f.Close()
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

// WriteOpname streams the workbook of s to w.
func WriteOpname(w io.Writer, s *opname.Session) error {
	f, err := OpnameWorkbook(s)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
