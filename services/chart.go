package services

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"surveybot/logger"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

const (
	chartWidth  = 800
	chartHeight = 600

	pieCenterX = 270.0
	pieCenterY = 340.0
	pieRadius  = 200.0
)

// tab10-style palette, color-blind friendly enough for a handful of slices.
var chartPalette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// ChartService renders a question tally as a pie chart PNG.
type ChartService struct {
	fontFace font.Face
	log      *logger.Logger
}

// NewChartService loads the chart font if one is configured. Without a
// font path the renderer falls back to gg's built-in face, which is
// readable but plain.
func NewChartService(fontPath string, log *logger.Logger) (*ChartService, error) {
	s := &ChartService{log: log.With("component", "chart_service")}

	if fontPath != "" {
		face, err := loadFontFace(fontPath, 16)
		if err != nil {
			return nil, fmt.Errorf("could not load chart font: %w", err)
		}
		s.fontFace = face
	}
	return s, nil
}

func loadFontFace(path string, size float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font file: %w", err)
	}
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}

// RenderPie draws the tally as a pie with percentage labels inside the
// slices and a legend on the right, titled with the wrapped question text.
func (s *ChartService) RenderPie(t *QuestionTally) ([]byte, error) {
	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	if s.fontFace != nil {
		dc.SetFontFace(s.fontFace)
	}

	title := fmt.Sprintf("Question %d: %s", t.Question.QuestionID, t.Question.Question)
	dc.SetRGB(0, 0, 0)
	dc.DrawStringWrapped(title, chartWidth/2, 20, 0.5, 0, chartWidth-60, 1.3, gg.AlignCenter)

	// Start at 12 o'clock like the original charts.
	angle := gg.Radians(-90)
	for i, c := range t.Counts {
		frac := float64(c.Count) / float64(t.Total)
		next := angle + frac*2*math.Pi

		dc.SetHexColor(chartPalette[i%len(chartPalette)])
		dc.MoveTo(pieCenterX, pieCenterY)
		dc.DrawArc(pieCenterX, pieCenterY, pieRadius, angle, next)
		dc.ClosePath()
		dc.FillPreserve()
		dc.SetRGB(1, 1, 1)
		dc.SetLineWidth(2)
		dc.Stroke()

		// Percentage label inside the slice; tiny slices stay unlabeled.
		if frac >= 0.03 {
			mid := (angle + next) / 2
			lx := pieCenterX + pieRadius*0.62*math.Cos(mid)
			ly := pieCenterY + pieRadius*0.62*math.Sin(mid)
			dc.SetRGB(1, 1, 1)
			dc.DrawStringAnchored(fmt.Sprintf("%.1f%%", frac*100), lx, ly, 0.5, 0.5)
		}

		angle = next
	}

	legendX := 520.0
	legendY := 160.0
	for i, c := range t.Counts {
		dc.SetHexColor(chartPalette[i%len(chartPalette)])
		dc.DrawRectangle(legendX, legendY, 16, 16)
		dc.Fill()

		label := wrapLabel(c.Label, 24)
		dc.SetRGB(0, 0, 0)
		dc.DrawStringWrapped(fmt.Sprintf("%s (%d)", label, c.Count),
			legendX+24, legendY-2, 0, 0, 250, 1.2, gg.AlignLeft)

		lines := 1 + countNewlines(label)
		legendY += float64(lines)*20 + 8
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode chart PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func countNewlines(s string) int {
	n := 0
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}
