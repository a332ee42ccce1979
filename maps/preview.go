package maps

import (
	"image"
	"image/color"
	"io"
	"math"

	"wanderplan/models"

	"github.com/disintegration/imaging"
)

const previewMargin = 16

var (
	previewBackground = color.NRGBA{R: 245, G: 243, B: 238, A: 255}
	previewRoute      = color.NRGBA{R: 66, G: 133, B: 244, A: 255}
	markerColors      = map[string]color.NRGBA{
		models.ActivitySight:     {R: 219, G: 68, B: 55, A: 255},
		models.ActivityDining:    {R: 244, G: 160, B: 0, A: 255},
		models.ActivityTransport: {R: 15, G: 157, B: 88, A: 255},
		models.ActivityShopping:  {R: 171, G: 71, B: 188, A: 255},
	}
	markerDefault = color.NRGBA{R: 96, G: 96, B: 96, A: 255}
)

// RenderPreview draws markers and routes onto a plain canvas, scaled to fit.
// It is a static stand-in for the SDK map in exports.
func RenderPreview(p Projection, width, height int) *image.NRGBA {
	canvas := imaging.New(width, height, previewBackground)
	if p.Empty() || width <= 2*previewMargin || height <= 2*previewMargin {
		return canvas
	}
	fit := newFitter(p.Markers, width, height)

	for _, r := range p.Routes {
		for i := 1; i < len(r.Path); i++ {
			x0, y0 := fit.point(r.Path[i-1])
			x1, y1 := fit.point(r.Path[i])
			line(canvas, x0, y0, x1, y1, previewRoute)
		}
	}

	for _, m := range p.Markers {
		c, ok := markerColors[m.Type]
		if !ok {
			c = markerDefault
		}
		dot := imaging.New(9, 9, c)
		x, y := fit.point(m.Position)
		canvas = imaging.Overlay(canvas, dot, image.Pt(x-4, y-4), 1.0)
	}
	return canvas
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.PNG)
}

type fitter struct {
	minLat, minLng float64
	scale          float64
	offX, offY     float64
	height         int
}

func newFitter(markers []Marker, width, height int) fitter {
	f := fitter{minLat: math.Inf(1), minLng: math.Inf(1), height: height}
	maxLat, maxLng := math.Inf(-1), math.Inf(-1)
	for _, m := range markers {
		f.minLat = math.Min(f.minLat, m.Position.Lat)
		f.minLng = math.Min(f.minLng, m.Position.Lng)
		maxLat = math.Max(maxLat, m.Position.Lat)
		maxLng = math.Max(maxLng, m.Position.Lng)
	}
	spanLat, spanLng := maxLat-f.minLat, maxLng-f.minLng
	innerW := float64(width - 2*previewMargin)
	innerH := float64(height - 2*previewMargin)
	switch {
	case spanLat == 0 && spanLng == 0:
		f.scale = 0
	case spanLat == 0:
		f.scale = innerW / spanLng
	case spanLng == 0:
		f.scale = innerH / spanLat
	default:
		f.scale = math.Min(innerW/spanLng, innerH/spanLat)
	}
	f.offX = previewMargin + (innerW-spanLng*f.scale)/2
	f.offY = previewMargin + (innerH-spanLat*f.scale)/2
	return f
}

// point maps a coordinate to pixels; north is up.
func (f fitter) point(c models.Coordinates) (int, int) {
	x := f.offX + (c.Lng-f.minLng)*f.scale
	y := float64(f.height) - (f.offY + (c.Lat-f.minLat)*f.scale)
	return int(math.Round(x)), int(math.Round(y))
}

func line(img *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.SetNRGBA(x0, y0, c)
		img.SetNRGBA(x0+1, y0, c)
		img.SetNRGBA(x0, y0+1, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
