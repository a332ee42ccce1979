// Package export renders saved plans as printable PDF and iCalendar files.
package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"wanderplan/maps"
	"wanderplan/models"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

type PDFOptions struct {
	// FontPath is a UTF-8 TTF with CJK glyphs. Without it the core Arial
	// font is used and non-Latin text will not render.
	FontPath string
	// PlanURL is encoded into the QR code. Empty skips the code.
	PlanURL string
}

const (
	fontFamily = "plan"
	pageWidth  = 190.0
)

// PDF writes plan as an A4 document: summary, day-by-day table, tips, a
// static map preview and a QR code linking back to the plan.
func PDF(w io.Writer, plan models.SavedPlan, opts PDFOptions) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	family := "Arial"
	tr := func(s string) string { return s }
	if opts.FontPath != "" {
		pdf.AddUTF8Font(fontFamily, "", opts.FontPath)
		pdf.AddUTF8Font(fontFamily, "B", opts.FontPath)
		family = fontFamily
	} else {
		tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("pdf font: %w", err)
	}
	pdf.SetTitle(plan.PlanName, true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	it, _ := plan.Itinerary()

	pdf.SetFont(family, "B", 18)
	pdf.CellFormat(pageWidth-45, 10, tr(plan.PlanName), "", 1, "L", false, 0, "")
	pdf.SetFont(family, "", 11)
	summary := []string{
		"目的地: " + plan.Destination,
		fmt.Sprintf("天数: %d    人数: %d    预算: %s元", plan.Duration, plan.Travelers, plan.Budget.StringFixed(0)),
	}
	if t := it.Accommodation.Text(); t != "" {
		summary = append(summary, "住宿: "+t)
	}
	if t := it.Transportation.Text(); t != "" {
		summary = append(summary, "交通: "+t)
	}
	for _, line := range summary {
		pdf.MultiCell(pageWidth-45, 6, tr(line), "", "L", false)
	}

	if opts.PlanURL != "" {
		png, err := qrcode.Encode(opts.PlanURL, qrcode.Medium, 256)
		if err != nil {
			return fmt.Errorf("qr: %w", err)
		}
		imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(png))
		pdf.ImageOptions("qr", 160, 10, 40, 40, false, imageOpts, 0, "")
	}
	pdf.SetY(max(pdf.GetY(), 52))

	if projection := maps.Project(it); !projection.Empty() {
		var img bytes.Buffer
		if err := maps.EncodePNG(&img, maps.RenderPreview(projection, 760, 360)); err != nil {
			return fmt.Errorf("map preview: %w", err)
		}
		imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("map", imageOpts, &img)
		pdf.ImageOptions("map", 10, pdf.GetY()+2, pageWidth, pageWidth*360/760, true, imageOpts, 0, "")
		pdf.Ln(4)
	}

	widths := []float64{20, 20, 120, 30}
	for i, day := range it.DailyPlans {
		n := day.Day
		if n == 0 {
			n = i + 1
		}
		title := fmt.Sprintf("第%d天", n)
		if day.Date != "" {
			title += "  " + day.Date
		}
		pdf.Ln(3)
		pdf.SetFont(family, "B", 13)
		pdf.CellFormat(pageWidth, 8, tr(title), "B", 1, "L", false, 0, "")
		pdf.SetFont(family, "", 10)
		for _, a := range day.Activities {
			desc := a.Description
			if a.Address != "" {
				desc += " (" + a.Address + ")"
			}
			cells := []string{a.Time, a.Type, desc, a.Budget}
			lines := pdf.SplitText(tr(desc), widths[2])
			height := 6 * float64(max(1, len(lines)))
			y := pdf.GetY()
			x := 10.0
			for c, text := range cells {
				pdf.SetXY(x, y)
				if c == 2 {
					pdf.MultiCell(widths[c], 6, tr(text), "", "L", false)
				} else {
					pdf.CellFormat(widths[c], 6, tr(text), "", 0, "L", false, 0, "")
				}
				x += widths[c]
			}
			pdf.SetXY(10, y+height)
		}
	}

	if len(it.Tips) > 0 {
		pdf.Ln(4)
		pdf.SetFont(family, "B", 13)
		pdf.CellFormat(pageWidth, 8, tr("旅行贴士"), "B", 1, "L", false, 0, "")
		pdf.SetFont(family, "", 10)
		for _, tip := range it.Tips {
			pdf.MultiCell(pageWidth, 6, tr("• "+strings.TrimSpace(tip)), "", "L", false)
		}
	}

	return pdf.Output(w)
}
