package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"AGENT_PORT", "EXAM_TYPE", "EXAM_DURATION_MINUTES", "PHOTOS_REQUIRED", "PHOTO_EARLY_INTERVAL", "ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.AgentPort != "8765" {
		t.Errorf("AgentPort = %q", cfg.AgentPort)
	}
	if cfg.ExamType != "theory" {
		t.Errorf("ExamType = %q", cfg.ExamType)
	}
	if cfg.DurationSeconds() != 30*60 {
		t.Errorf("DurationSeconds = %d", cfg.DurationSeconds())
	}
	if !cfg.PhotosRequired || cfg.VideoRequired {
		t.Errorf("capture defaults: photos=%v video=%v", cfg.PhotosRequired, cfg.VideoRequired)
	}
	if cfg.PhotoEarlyInterval != 8*time.Second {
		t.Errorf("PhotoEarlyInterval = %v", cfg.PhotoEarlyInterval)
	}
	if cfg.AllowedOrigins != nil {
		t.Errorf("AllowedOrigins = %v, want nil", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("EXAM_BASE_URL", "http://exam.local:5000/")
	t.Setenv("EXAM_TYPE", "PRACTICAL")
	t.Setenv("EXAM_DURATION_MINUTES", "45")
	t.Setenv("VIDEO_REQUIRED", "true")
	t.Setenv("PHOTO_LATE_INTERVAL", "1m")
	t.Setenv("VIDEO_CLIP_LENGTH", "15")
	t.Setenv("MODE_SWITCH_TIMEOUT", "soon")
	t.Setenv("LOCATION_LAT", "12.97")
	t.Setenv("ALLOWED_ORIGINS", " http://a.local, ,http://b.local ")

	cfg := Load()
	if cfg.ExamBaseURL != "http://exam.local:5000" {
		t.Errorf("ExamBaseURL = %q", cfg.ExamBaseURL)
	}
	if cfg.ExamType != "practical" {
		t.Errorf("ExamType = %q", cfg.ExamType)
	}
	if cfg.DurationSeconds() != 45*60 {
		t.Errorf("DurationSeconds = %d", cfg.DurationSeconds())
	}
	if !cfg.VideoRequired {
		t.Error("VideoRequired not applied")
	}
	if cfg.PhotoLateInterval != time.Minute {
		t.Errorf("PhotoLateInterval = %v", cfg.PhotoLateInterval)
	}
	if cfg.VideoClipLength != 15*time.Second {
		t.Errorf("VideoClipLength = %v", cfg.VideoClipLength)
	}
	if cfg.ModeSwitchTimeout != 3*time.Second {
		t.Errorf("invalid MODE_SWITCH_TIMEOUT should fall back, got %v", cfg.ModeSwitchTimeout)
	}
	if cfg.LocationLat != 12.97 {
		t.Errorf("LocationLat = %v", cfg.LocationLat)
	}
	want := []string{"http://a.local", "http://b.local"}
	if !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Errorf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
	}
}

func TestCacheKeys(t *testing.T) {
	if got := CacheKey.CaptureAuditKey("theory"); got != "candidate:exam:theory:captures" {
		t.Errorf("CaptureAuditKey = %q", got)
	}
}
