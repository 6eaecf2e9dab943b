package device

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Device errors.
var (
	ErrCameraReleased      = errors.New("camera released")
	ErrNoFrame             = errors.New("no frame available")
	ErrRecordingActive     = errors.New("recording already in progress")
	ErrLocationUnavailable = errors.New("location unavailable")
)

// Mode is the capture mode the camera is configured for.
type Mode string

const (
	ModePhoto Mode = "photo"
	ModeVideo Mode = "video"
)

// Camera is the front camera of the exam device. SetMode is asynchronous:
// callers poll Mode until it reports the requested value.
type Camera interface {
	Ready() bool
	Mode() Mode
	SetMode(mode Mode)
	TakePicture(ctx context.Context) ([]byte, error)
	// Record blocks until maxDuration elapses, StopRecording is called or
	// ctx ends, and returns the encoded clip.
	Record(ctx context.Context, maxDuration time.Duration) ([]byte, error)
	StopRecording()
	Release() error
}

// Permission names a runtime permission the proctor needs.
type Permission string

const (
	PermissionCamera     Permission = "camera"
	PermissionMicrophone Permission = "microphone"
	PermissionLocation   Permission = "location"
)

// Permissions requests runtime permissions from the device.
type Permissions interface {
	Request(ctx context.Context, p Permission) (bool, error)
}

// Position is a GPS fix.
type Position struct {
	Latitude  float64
	Longitude float64
}

// Address is a reverse-geocoded position. Empty fields are omitted from
// captions.
type Address struct {
	Street  string
	City    string
	Region  string
	Country string
}

// String joins the non-empty parts with ", ".
func (a Address) String() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Street, a.City, a.Region, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Locator resolves where the device is.
type Locator interface {
	CurrentPosition(ctx context.Context) (Position, error)
	ReverseGeocode(ctx context.Context, pos Position) (Address, error)
}
