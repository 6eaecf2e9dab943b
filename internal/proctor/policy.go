package proctor

import (
	"time"

	"github.com/stemsi/exstem-candidate/internal/model"
)

// Policy is the capture cadence, expressed in whole seconds of elapsed
// exam time.
type Policy struct {
	PhotoEarlyInterval int
	PhotoEarlyWindow   int
	PhotoLateInterval  int
	VideoInterval      int
	VideoClipLength    time.Duration
}

// DefaultPolicy is the production cadence: a photo every 8s for the first
// two minutes, every 40s afterwards, and a 10s clip every 100s.
func DefaultPolicy() Policy {
	return Policy{
		PhotoEarlyInterval: 8,
		PhotoEarlyWindow:   120,
		PhotoLateInterval:  40,
		VideoInterval:      100,
		VideoClipLength:    10 * time.Second,
	}
}

// PolicyFromDurations builds a Policy from configured durations, keeping
// the default for any non-positive value.
func PolicyFromDurations(early, window, late, video, clip time.Duration) Policy {
	p := DefaultPolicy()
	if s := int(early / time.Second); s > 0 {
		p.PhotoEarlyInterval = s
	}
	if s := int(window / time.Second); s > 0 {
		p.PhotoEarlyWindow = s
	}
	if s := int(late / time.Second); s > 0 {
		p.PhotoLateInterval = s
	}
	if s := int(video / time.Second); s > 0 {
		p.VideoInterval = s
	}
	if clip > 0 {
		p.VideoClipLength = clip
	}
	return p
}

// PhotoDue reports whether a photo falls due at elapsed seconds.
func (p Policy) PhotoDue(elapsed int) bool {
	if elapsed <= 0 {
		return false
	}
	if elapsed <= p.PhotoEarlyWindow {
		return p.PhotoEarlyInterval > 0 && elapsed%p.PhotoEarlyInterval == 0
	}
	return p.PhotoLateInterval > 0 && elapsed%p.PhotoLateInterval == 0
}

// VideoDue reports whether a clip falls due at elapsed seconds.
func (p Policy) VideoDue(elapsed int) bool {
	return elapsed > 0 && p.VideoInterval > 0 && elapsed%p.VideoInterval == 0
}

// Due picks the job for a tick. When both kinds fall due the photo wins
// and collided is set so the caller can account for the lost clip.
func (p Policy) Due(elapsed int, photos, video bool) (kind model.CaptureKind, collided, ok bool) {
	photoDue := photos && p.PhotoDue(elapsed)
	videoDue := video && p.VideoDue(elapsed)

	switch {
	case photoDue:
		return model.CapturePhoto, videoDue, true
	case videoDue:
		return model.CaptureVideo, false, true
	default:
		return "", false, false
	}
}
