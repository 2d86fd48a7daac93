package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
datum: gcj02
fetch:
  timeout: 5s
  rps: 2.5
simplify:
  method: douglas
  epsilon: 3
geojson:
  precision: 9
amap:
  key: abc
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Datum != "gcj02" {
		t.Errorf("Datum = %q", cfg.Datum)
	}
	if cfg.Fetch.Timeout != 5*time.Second || cfg.Fetch.RPS != 2.5 || cfg.Fetch.Burst != 1 {
		t.Errorf("Fetch = %+v", cfg.Fetch)
	}
	if cfg.Simplify.Method != SimplifyDouglas || cfg.Simplify.Epsilon != 3 || cfg.Simplify.MinDistance != 1 {
		t.Errorf("Simplify = %+v", cfg.Simplify)
	}
	if cfg.GeoJSON.Precision != 9 || cfg.AMap.Key != "abc" {
		t.Errorf("GeoJSON/AMap = %+v %+v", cfg.GeoJSON, cfg.AMap)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.Datum != def.Datum || cfg.Simplify != def.Simplify || cfg.Fetch != def.Fetch {
		t.Errorf("got %+v; want %+v", cfg, def)
	}
}

func TestLoadInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"datum":   "datum: mars\n",
		"method":  "simplify:\n  method: visvalingam\n",
		"epsilon": "simplify:\n  epsilon: -1\n",
		"yaml":    "datum: [\n",
	} {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
