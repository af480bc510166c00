package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ASSISTANTCOM_PORT", "ASSISTANTCOM_DATA_DIR", "DATABASE_URL", "ASSISTANTCOM_INFERENCE_PROVIDER",
		"ASSISTANTCOM_INFERENCE_ENDPOINT", "INFERENCE_API_KEY", "GEMINI_API_KEY", "REDIS_URL", "ASSISTANTCOM_ARCHIVE_BUCKET",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, info, err := LoadFrom(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if info.FileFound || info.PortSpecified {
		t.Fatalf("info=%+v", info)
	}
	if cfg.Server.Port != 20261 || cfg.Storage.Driver != "sqlite" || cfg.Session.Backend != "memory" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.InferenceTimeout() != 60*time.Second || cfg.SessionTTL() != 2*time.Hour {
		t.Fatalf("timeouts=%v %v", cfg.InferenceTimeout(), cfg.SessionTTL())
	}
}

func TestLoadFrom_FileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 8080

[inference]
provider = "gemini"
timeout_sec = 20

[import]
base_year = 2023

[session]
ttl_minutes = 30
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("INFERENCE_API_KEY", "ignored")
	t.Setenv("REDIS_URL", "redis://localhost:6379/2")

	cfg, info, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if !info.FileFound || !info.PortSpecified {
		t.Fatalf("info=%+v", info)
	}
	if cfg.Server.Port != 8080 || cfg.Import.BaseYear != 2023 || cfg.Import.SampleRows != 3 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.Inference.APIKey != "g-key" || cfg.InferenceTimeout() != 20*time.Second {
		t.Fatalf("inference=%+v", cfg.Inference)
	}
	if cfg.Session.Backend != "redis" || cfg.Session.RedisURL != "redis://localhost:6379/2" || cfg.SessionTTL() != 30*time.Minute {
		t.Fatalf("session=%+v", cfg.Session)
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.toml")
	os.WriteFile(bad, []byte("[server\nport = "), 0644)
	if _, _, err := LoadFrom(bad); err == nil {
		t.Fatalf("expected parse error")
	}

	unknown := filepath.Join(dir, "unknown.toml")
	os.WriteFile(unknown, []byte("[storage]\ndriver = \"mysql\"\n"), 0644)
	if _, _, err := LoadFrom(unknown); err == nil {
		t.Fatalf("expected validation error")
	}

	pg := filepath.Join(dir, "pg.toml")
	os.WriteFile(pg, []byte("[storage]\ndriver = \"postgres\"\n"), 0644)
	if _, _, err := LoadFrom(pg); err == nil {
		t.Fatalf("postgres without dsn should fail")
	}
}

func TestDatabaseURLSelectsPostgres(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/assistant?sslmode=disable")
	t.Setenv("ASSISTANTCOM_PORT", "9000")

	cfg, info, err := LoadFrom(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Storage.Driver != "postgres" || cfg.Server.Port != 9000 || !info.PortSpecified {
		t.Fatalf("cfg=%+v info=%+v", cfg.Storage, info)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("ASSISTANTCOM_ARCHIVE_BUCKET=imports-test\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("ASSISTANTCOM_ARCHIVE_BUCKET") })

	// godotenv ne remplace pas une variable déjà définie
	os.Unsetenv("ASSISTANTCOM_ARCHIVE_BUCKET")
	LoadDotEnv(dir)

	cfg, _, err := LoadFrom(filepath.Join(dir, "none.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Archive.Backend != "s3" || cfg.Archive.Bucket != "imports-test" {
		t.Fatalf("archive=%+v", cfg.Archive)
	}
}

func TestSQLitePath(t *testing.T) {
	cfg := DefaultConfig()
	if got := SQLitePath(cfg, "/srv/data"); got != filepath.Join("/srv/data", "assistantcom.db") {
		t.Fatalf("path=%s", got)
	}
	cfg.Storage.SQLitePath = "/tmp/x.db"
	if got := SQLitePath(cfg, "/srv/data"); got != "/tmp/x.db" {
		t.Fatalf("path=%s", got)
	}
}
