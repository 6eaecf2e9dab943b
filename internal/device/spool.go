package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Spool file names. An external capture daemon keeps them fresh.
const (
	FrameFile = "frame.jpg"
	ClipFile  = "clip.mp4"
)

// SpoolCamera serves frames and clips that a capture daemon writes into a
// directory. Mode switches complete after SwitchDelay.
type SpoolCamera struct {
	dir         string
	SwitchDelay time.Duration
	log         zerolog.Logger

	mu        sync.Mutex
	mode      Mode
	released  bool
	recording chan struct{}
}

// NewSpoolCamera opens a camera over dir in photo mode.
func NewSpoolCamera(dir string, log zerolog.Logger) *SpoolCamera {
	return &SpoolCamera{
		dir:         dir,
		SwitchDelay: 200 * time.Millisecond,
		log:         log.With().Str("component", "spool_camera").Logger(),
		mode:        ModePhoto,
	}
}

// Ready reports whether the daemon has produced a frame yet.
func (c *SpoolCamera) Ready() bool {
	c.mu.Lock()
	released := c.released
	c.mu.Unlock()
	if released {
		return false
	}
	_, err := os.Stat(filepath.Join(c.dir, FrameFile))
	return err == nil
}

func (c *SpoolCamera) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *SpoolCamera) SetMode(mode Mode) {
	go func() {
		time.Sleep(c.SwitchDelay)
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.released {
			c.mode = mode
		}
	}()
}

func (c *SpoolCamera) TakePicture(ctx context.Context) ([]byte, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(c.dir, FrameFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoFrame, err)
	}
	return data, nil
}

func (c *SpoolCamera) Record(ctx context.Context, maxDuration time.Duration) ([]byte, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.recording != nil {
		c.mu.Unlock()
		return nil, ErrRecordingActive
	}
	stop := make(chan struct{})
	c.recording = stop
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.recording = nil
		c.mu.Unlock()
	}()

	timer := time.NewTimer(maxDuration)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-stop:
		c.log.Debug().Msg("Recording stopped early")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	data, err := os.ReadFile(filepath.Join(c.dir, ClipFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoFrame, err)
	}
	return data, nil
}

func (c *SpoolCamera) StopRecording() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recording != nil {
		close(c.recording)
		c.recording = nil
	}
}

func (c *SpoolCamera) Release() error {
	c.StopRecording()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
	c.log.Info().Msg("Camera released")
	return nil
}

func (c *SpoolCamera) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return ErrCameraReleased
	}
	return nil
}
