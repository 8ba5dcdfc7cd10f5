package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.ServerPort != "8080" {
		t.Errorf("server port: got %q, want 8080", c.ServerPort)
	}
	if c.Detector.Bucket != time.Minute {
		t.Errorf("bucket: got %v, want 1m", c.Detector.Bucket)
	}
	if c.Detector.Window != 30*time.Minute {
		t.Errorf("window: got %v, want 30m", c.Detector.Window)
	}
	if c.Detector.Sigma != 2.5 {
		t.Errorf("sigma: got %v, want 2.5", c.Detector.Sigma)
	}
	if c.RangeDays != 3 {
		t.Errorf("range days: got %d, want 3", c.RangeDays)
	}
	if len(c.Sensors) != 2 {
		t.Fatalf("sensors: got %d, want 2", len(c.Sensors))
	}
	if c.Sensors[0].FieldPattern != "accel_.+" {
		t.Errorf("field pattern: got %q", c.Sensors[0].FieldPattern)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	content := `
serverPort: "9090"
rangeDays: 7
detector:
  window: 15m
  sigma: 3.0
sensors:
  - name: Greenhouse
    measurement: env
    fieldPattern: "temp|humidity"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.ServerPort != "9090" {
		t.Errorf("server port: got %q, want 9090", c.ServerPort)
	}
	if c.RangeDays != 7 {
		t.Errorf("range days: got %d, want 7", c.RangeDays)
	}
	if c.Detector.Window != 15*time.Minute {
		t.Errorf("window: got %v, want 15m", c.Detector.Window)
	}
	// незаполненные поля дополняются дефолтами
	if c.Detector.Bucket != time.Minute {
		t.Errorf("bucket: got %v, want 1m", c.Detector.Bucket)
	}
	if len(c.Sensors) != 1 || c.Sensors[0].Name != "Greenhouse" {
		t.Errorf("sensors: got %+v", c.Sensors)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("INFLUX_TOKEN", "secret-token")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("ANOMALY_SIGMA", "4.0")

	c, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.Influx.Token != "secret-token" {
		t.Errorf("token: got %q", c.Influx.Token)
	}
	if c.Redis.Addr != "redis:6380" {
		t.Errorf("redis addr: got %q", c.Redis.Addr)
	}
	if c.Detector.Sigma != 4.0 {
		t.Errorf("sigma: got %v, want 4.0", c.Detector.Sigma)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
