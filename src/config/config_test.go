package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.json", `{
		"data_dir": "/srv/data",
		"dataset_file": "pedidos.xlsx",
		"sheet_name": "Pedidos",
		"refresh_interval": "30s",
		"server": {"addr": ":9000"}
	}`)
	writeFile(t, dir, "dataconfig.json", `{"own_channel_keywords": ["site", "app proprio"]}`)

	cfg, dcfg, err := Load(dir, "config.json", "dataconfig.json")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DatasetPath() != filepath.Join("/srv/data", "pedidos.xlsx") {
		t.Errorf("unexpected dataset path %s", cfg.DatasetPath())
	}
	if time.Duration(cfg.RefreshInterval) != 30*time.Second {
		t.Errorf("refresh interval = %v", time.Duration(cfg.RefreshInterval))
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %s", cfg.Server.Addr)
	}
	if cfg.LogName != "app.log" {
		t.Errorf("log name default not applied: %q", cfg.LogName)
	}
	if len(cfg.Server.AllowedOrigins) != 2 {
		t.Errorf("allowed origins default not applied: %v", cfg.Server.AllowedOrigins)
	}
	if dcfg.GetDeliveredStatus() != "delivered" {
		t.Errorf("delivered status = %q", dcfg.GetDeliveredStatus())
	}
	if kw := dcfg.GetOwnChannelKeywords(); len(kw) != 2 || kw[1] != "app proprio" {
		t.Errorf("own channel keywords = %v", kw)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.json", `{}`)

	if _, _, err := Load(dir, "config.json", "dataconfig.json"); err == nil {
		t.Fatal("expected error when dataconfig.json is missing")
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.json", `{"refresh_interval": "soon"}`)
	writeFile(t, dir, "dataconfig.json", `{`)

	if _, _, err := Load(dir, "config.json", "dataconfig.json"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	writeFile(t, dir, ".env", "DATA_DIR=/tmp/base\nPORT=7000\n")
	writeFile(t, dir, ".env.local", "DATA_DIR=/tmp/local\nALLOWED_ORIGINS=http://a.test, http://b.test\n")

	for _, k := range []string{"DATA_DIR", "PORT", "ALLOWED_ORIGINS"} {
		k := k
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			} else {
				os.Unsetenv(k)
			}
		})
	}

	cfg, _ := Default()
	ApplyEnv(cfg, env, filepath.Join(dir, ".env.local"))

	if cfg.DataDir != "/tmp/local" {
		t.Errorf("DataDir = %s, want .env.local override", cfg.DataDir)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("Addr = %s", cfg.Server.Addr)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
}

func TestLocation(t *testing.T) {
	cfg, _ := Default()
	loc, err := cfg.Location()
	if err != nil || loc != time.Local {
		t.Fatalf("empty timezone should map to time.Local, got %v %v", loc, err)
	}
	cfg.Timezone = "Not/AZone"
	if _, err := cfg.Location(); err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}
