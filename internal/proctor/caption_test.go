package proctor

import (
	"bytes"
	"context"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stemsi/exstem-candidate/internal/device"
	"github.com/stemsi/exstem-candidate/internal/model"
)

func TestCaption(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.Local)

	got := Caption(device.Address{City: "Pune", Region: "MH", Country: "India"}, now)
	if got != "Location: Pune, MH, India\nTime: 2026-03-01 09:30:00" {
		t.Fatalf("Caption = %q", got)
	}
	if got := Caption(device.Address{}, now); got != "Location not available\nTime: 2026-03-01 09:30:00" {
		t.Fatalf("fallback Caption = %q", got)
	}
}

func TestAnnotateDarkensBottomBand(t *testing.T) {
	frame := testFrame(t, 320, 120, color.RGBA{R: 240, G: 240, B: 240, A: 255})

	out, err := Annotate(frame, "Location not available\nTime: 2026-03-01 09:30:00")
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 320 || img.Bounds().Dy() != 120 {
		t.Fatalf("bounds changed: %v", img.Bounds())
	}

	luma := func(x, y int) uint32 {
		r, g, b, _ := img.At(x, y).RGBA()
		return (r + g + b) / 3 >> 8
	}
	// Right edge of the band holds no text, only the translucent fill.
	top, band := luma(310, 5), luma(310, 115)
	if band >= top-40 {
		t.Fatalf("band not darkened: top=%d band=%d", top, band)
	}

	if _, err := Annotate([]byte("not a jpeg"), "x"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestMemoryAuditNewestFirst(t *testing.T) {
	a := NewMemoryAudit()
	for i := 1; i <= AuditLimit+5; i++ {
		_ = a.Record(context.Background(), recordAt(i))
	}
	recs, _ := a.Recent(context.Background(), 3)
	if len(recs) != 3 || recs[0].ScheduledAtElapsedSeconds != AuditLimit+5 || recs[2].ScheduledAtElapsedSeconds != AuditLimit+3 {
		t.Fatalf("unexpected records %+v", recs)
	}
	all, _ := a.Recent(context.Background(), 0)
	if len(all) != AuditLimit {
		t.Fatalf("audit kept %d records", len(all))
	}
}

func recordAt(elapsed int) model.CaptureRecord {
	return model.CaptureRecord{CaptureJob: model.CaptureJob{Kind: model.CapturePhoto, ScheduledAtElapsedSeconds: elapsed}}
}
