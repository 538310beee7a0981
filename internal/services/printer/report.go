package printer

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/ivalora/gadget-rms/internal/opname"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

// Jakarta time is what the shop floor reads.
var reportZone = time.FixedZone("WIB", 7*3600)

// GenerateOpnameReport renders a stock count as a printable A4 report:
// header, counters, and one table per discrepancy side.
func GenerateOpnameReport(s *opname.Session) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 7)
		pdf.CellFormat(0, 5, fmt.Sprintf("Stock count %s - page %d/{nb}", s.ID, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	qrPng, err := qrcode.Encode(s.ID.String(), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("session qr: %w", err)
	}
	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("session_qr", imgOptions, bytes.NewReader(qrPng))
	pdf.ImageOptions("session_qr", 170, 10, 28, 28, false, imgOptions, 0, "")

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(150, 9, "Stock Opname Report", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	header := [][2]string{
		{"Type", strings.ToUpper(string(s.SessionType))},
		{"Status", strings.ToUpper(string(s.SessionStatus))},
		{"Started", stamp(&s.StartedAt)},
		{"Completed", stamp(s.CompletedAt)},
		{"Approved", stamp(s.ApprovedAt)},
		{"Locked", stamp(s.LockedAt)},
		{"Counted by", s.CreatedBy},
		{"Approved by", deref(s.ApprovedBy)},
	}
	for _, h := range header {
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(28, 5, h[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(120, 5, tr(h[1]), "", 1, "L", false, 0, "")
	}
	if s.Notes != "" {
		pdf.Ln(1)
		pdf.MultiCell(150, 4.5, tr(s.Notes), "", "L", false)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	c := s.Counters()
	summary := [][2]string{
		{"Expected", fmt.Sprint(c.TotalExpected)},
		{"Scanned", fmt.Sprint(c.TotalScanned)},
		{"Match", fmt.Sprint(c.TotalMatch)},
		{"Missing", fmt.Sprint(c.TotalMissing)},
		{"Unregistered", fmt.Sprint(c.TotalUnregistered)},
		{"Missing at cost", "Rp " + formatRupiah(MissingCost(s))},
	}
	for _, row := range summary {
		pdf.CellFormat(40, 6, row[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, row[1], "1", 1, "R", false, 0, "")
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Missing units", "", 1, "L", false, 0, "")
	widths := []float64{38, 52, 34, 30, 32}
	tableHeader(pdf, widths, "IMEI", "Product", "Action", "Reference", "Cost")
	pdf.SetFont("Arial", "", 8)
	missing := 0
	for _, it := range s.SnapshotItems {
		if it.ScanResult != opname.SnapshotMissing {
			continue
		}
		missing++
		action := "-"
		if it.ActionTaken != nil {
			action = string(*it.ActionTaken)
		}
		pdf.CellFormat(widths[0], 6, it.IMEI, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, tr(truncate(it.ProductLabel, 30)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, action, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, deref(it.SoldReferenceID), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[4], 6, formatRupiah(it.CostPrice), "1", 1, "R", false, 0, "")
	}
	if missing == 0 {
		pdf.CellFormat(0, 6, "None", "", 1, "L", false, 0, "")
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Unregistered scans", "", 1, "L", false, 0, "")
	widths = []float64{42, 34, 34, 76}
	tableHeader(pdf, widths, "IMEI", "Action", "Scanned by", "Notes")
	pdf.SetFont("Arial", "", 8)
	unregistered := 0
	for _, it := range s.ScannedItems {
		if it.ScanResult != opname.ScannedUnregistered {
			continue
		}
		unregistered++
		action := "-"
		if it.ActionTaken != nil {
			action = string(*it.ActionTaken)
		}
		pdf.CellFormat(widths[0], 6, it.IMEI, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, action, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, tr(it.ScannedBy), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, tr(truncate(it.ActionNotes, 48)), "1", 1, "L", false, 0, "")
	}
	if unregistered == 0 {
		pdf.CellFormat(0, 6, "None", "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func tableHeader(pdf *gofpdf.Fpdf, widths []float64, titles ...string) {
	pdf.SetFont("Arial", "B", 8)
	pdf.SetFillColor(230, 230, 230)
	for i, title := range titles {
		ln := 0
		if i == len(titles)-1 {
			ln = 1
		}
		pdf.CellFormat(widths[i], 6, title, "1", ln, "C", true, 0, "")
	}
}

// MissingCost sums the cost price of every missing unit.
func MissingCost(s *opname.Session) decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.SnapshotItems {
		if it.ScanResult == opname.SnapshotMissing {
			total = total.Add(it.CostPrice)
		}
	}
	return total
}

// formatRupiah renders whole rupiah with dot thousands separators.
func formatRupiah(d decimal.Decimal) string {
	s := d.Round(0).StringFixed(0)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func stamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.In(reportZone).Format("02 Jan 2006 15:04 MST")
}

func deref(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
