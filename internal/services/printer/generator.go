package printer

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ivalora/gadget-rms/internal/models"
	"github.com/ivalora/gadget-rms/internal/utils"
	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
)

// LabelConfig holds configuration for PDF generation
type LabelConfig struct {
	Cols       int     `json:"cols" validate:"omitempty,min=1,max=8"`
	Rows       int     `json:"rows" validate:"omitempty,min=1,max=20"`
	MarginTop  float64 `json:"margin_top" validate:"omitempty,min=0,max=40"`
	MarginLeft float64 `json:"margin_left" validate:"omitempty,min=0,max=40"`
	GapX       float64 `json:"gap_x" validate:"omitempty,min=0,max=20"`
	GapY       float64 `json:"gap_y" validate:"omitempty,min=0,max=20"`
}

// DefaultLabelConfig fits 3x8 labels on an A4 sheet.
var DefaultLabelConfig = LabelConfig{Cols: 3, Rows: 8, MarginTop: 10, MarginLeft: 7, GapX: 2, GapY: 0}

func (c LabelConfig) withDefaults() LabelConfig {
	if c.Cols <= 0 {
		c.Cols = DefaultLabelConfig.Cols
	}
	if c.Rows <= 0 {
		c.Rows = DefaultLabelConfig.Rows
	}
	return c
}

var ErrNoUnits = errors.New("printer: no units to print")

// GenerateLabelsPDF creates a PDF with one QR label per unit. The QR payload
// is the unit code, so scanning a label during a count yields the IMEI.
func GenerateLabelsPDF(units []models.InventoryUnit, cfg LabelConfig) ([]byte, error) {
	if len(units) == 0 {
		return nil, ErrNoUnits
	}
	cfg = cfg.withDefaults()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Arial", "B", 10)

	// A4 dimensions
	pageWidth, pageHeight := 210.0, 297.0

	totalGapX := float64(cfg.Cols-1) * cfg.GapX
	totalGapY := float64(cfg.Rows-1) * cfg.GapY
	availW := pageWidth - (cfg.MarginLeft * 2)
	availH := pageHeight - (cfg.MarginTop * 2)
	labelW := (availW - totalGapX) / float64(cfg.Cols)
	labelH := (availH - totalGapY) / float64(cfg.Rows)

	labelsPerPage := cfg.Cols * cfg.Rows
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for i, u := range units {
		if i%labelsPerPage == 0 {
			pdf.AddPage()
		}

		indexOnPage := i % labelsPerPage
		col := indexOnPage % cfg.Cols
		row := indexOnPage / cfg.Cols

		// Top-left of the label
		x := cfg.MarginLeft + float64(col)*(labelW+cfg.GapX)
		y := cfg.MarginTop + float64(row)*(labelH+cfg.GapY)

		qrPng, err := qrcode.Encode(utils.EncodeUnitCode(u.IMEI, ""), qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("qr for %s: %w", u.IMEI, err)
		}

		imgName := fmt.Sprintf("qr_%d", i)
		imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
		pdf.RegisterImageOptionsReader(imgName, imgOptions, bytes.NewReader(qrPng))

		// QR on the left, text on the right
		qrSize := labelH * 0.85
		if qrSize > labelW*0.45 {
			qrSize = labelW * 0.45
		}
		pdf.ImageOptions(imgName, x+1, y+(labelH-qrSize)/2, qrSize, qrSize, false, imgOptions, 0, "")

		textX := x + qrSize + 2
		textW := labelW - qrSize - 3

		pdf.SetXY(textX, y+labelH/2-6)
		pdf.SetFont("Arial", "B", 7)
		pdf.CellFormat(textW, 4, tr(truncate(u.ProductLabel, 32)), "", 2, "L", false, 0, "")
		pdf.SetFont("Arial", "", 7)
		pdf.CellFormat(textW, 4, u.IMEI, "", 2, "L", false, 0, "")
		if !u.SellingPrice.IsZero() {
			pdf.CellFormat(textW, 4, "Rp "+formatRupiah(u.SellingPrice), "", 2, "L", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "."
}
