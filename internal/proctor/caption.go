package proctor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"time"

	"github.com/stemsi/exstem-candidate/internal/device"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	captionTimeLayout = "2006-01-02 15:04:05"
	captionPadding    = 6
	captionQuality    = 70
)

var captionBand = color.RGBA{A: 0x80}

// Caption renders the watermark text for a photo taken at now. An empty
// address yields the "Location not available" form.
func Caption(addr device.Address, now time.Time) string {
	ts := now.Local().Format(captionTimeLayout)
	if loc := addr.String(); loc != "" {
		return fmt.Sprintf("Location: %s\nTime: %s", loc, ts)
	}
	return "Location not available\nTime: " + ts
}

// Annotate draws caption onto the bottom-left of a JPEG frame over a
// translucent band and re-encodes it.
func Annotate(frame []byte, caption string) ([]byte, error) {
	src, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)

	face := basicfont.Face7x13
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	lines := strings.Split(caption, "\n")

	bandHeight := len(lines)*lineHeight + 2*captionPadding
	band := image.Rect(b.Min.X, b.Max.Y-bandHeight, b.Max.X, b.Max.Y).Intersect(b)
	draw.Draw(dst, band, image.NewUniform(captionBand), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
	}
	for i, line := range lines {
		baseline := band.Min.Y + captionPadding + (i+1)*lineHeight - metrics.Descent.Ceil()
		d.Dot = fixed.P(b.Min.X+captionPadding, baseline)
		d.DrawString(line)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: captionQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return out.Bytes(), nil
}
