package service

import (
	"bytes"
	"fmt"
	"go-gin-trip-booking/internal/model"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
)

// renderManifestPDF 產生某日期行程的參加者名單
func renderManifestPDF(svc *model.Service, schedule *model.Schedule, entries []*model.ManifestEntry, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Attendee manifest", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "ATTENDEE MANIFEST")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	lines := []string{
		"Service  : " + svc.Title,
		"Date     : " + schedule.Date.Format(model.DateLayout),
		fmt.Sprintf("Booked   : %d / %d", schedule.BookedCount, schedule.Capacity),
		"Generated: " + generatedAt.UTC().Format("2006-01-02 15:04 MST"),
	}
	for _, l := range lines {
		pdf.Cell(0, 6, l)
		pdf.Ln(6)
	}
	pdf.Ln(4)

	widths := []float64{10, 60, 60, 40, 20}
	header := []string{"#", "Name", "Email", "Phone", "Booking"}
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	if len(entries) == 0 {
		pdf.CellFormat(sum(widths), 7, "No attendees", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
	for i, e := range entries {
		row := []string{
			fmt.Sprintf("%d", i+1),
			e.Name,
			deref(e.Email),
			deref(e.Phone),
			shortID(e.BookingID.String()),
		}
		for j, v := range row {
			pdf.CellFormat(widths[j], 7, v, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render manifest: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return "-"
	}
	return *s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
