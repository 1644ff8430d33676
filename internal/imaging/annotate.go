package imaging

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/saturnino-fabrica-de-software/facestream/internal/provider"
)

var (
	boxColor      = color.RGBA{R: 102, G: 255, B: 204, A: 255}
	landmarkColor = color.RGBA{R: 77, G: 255, B: 204, A: 255}
	textColor     = color.RGBA{R: 152, G: 255, B: 204, A: 255}
)

const (
	boxThickness   = 3
	landmarkRadius = 2
)

// Annotate draws the face box, the anchor landmarks and the name onto a
// copy of img.
func Annotate(img image.Image, face provider.DetectedFace, name string) *image.RGBA {
	src := ToRGBA(img)
	out := image.NewRGBA(src.Bounds())
	draw.Draw(out, out.Bounds(), src, image.Point{}, draw.Src)

	box := image.Rect(
		int(face.BoundingBox.X),
		int(face.BoundingBox.Y),
		int(face.BoundingBox.X+face.BoundingBox.Width),
		int(face.BoundingBox.Y+face.BoundingBox.Height),
	).Intersect(out.Bounds())

	drawRect(out, box, boxThickness, boxColor)

	for _, p := range []provider.Point{face.Landmarks.LeftEyeOuter, face.Landmarks.RightEyeOuter, face.Landmarks.Nose} {
		drawDot(out, int(p.X), int(p.Y), landmarkRadius, landmarkColor)
	}

	if name != "" {
		baseline := box.Min.Y - 6
		if baseline < basicfont.Face7x13.Ascent {
			baseline = box.Max.Y + basicfont.Face7x13.Ascent + 4
		}
		d := &font.Drawer{
			Dst:  out,
			Src:  image.NewUniform(textColor),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(box.Min.X, baseline),
		}
		d.DrawString(name)
	}

	return out
}

func drawRect(dst *image.RGBA, r image.Rectangle, thickness int, c color.Color) {
	if r.Empty() {
		return
	}
	fill := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), fill, image.Point{}, draw.Src)
	}
}

func drawDot(dst *image.RGBA, cx, cy, radius int, c color.Color) {
	for y := cy - radius; y <= cy+radius; y++ {
		for x := cx - radius; x <= cx+radius; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= radius*radius && image.Pt(x, y).In(dst.Bounds()) {
				dst.Set(x, y, c)
			}
		}
	}
}
