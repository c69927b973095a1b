package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points every default location at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Chdir(dir)
	return dir
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.File != "" {
		t.Errorf("File = %q, want none", cfg.File)
	}
	if want := filepath.Join(dir, "data", "dailycoach", "coach.db"); cfg.Data.Path != want {
		t.Errorf("data.path = %q, want %q", cfg.Data.Path, want)
	}
	if cfg.Remote.Driver != "memory" || cfg.Remote.CouchDB != "dailycoach" {
		t.Errorf("remote = %+v", cfg.Remote)
	}
	want := SyncConfig{
		BatchSize:      10,
		MaxRetries:     3,
		Debounce:       500 * time.Millisecond,
		StabilizeDelay: time.Second,
		PollInterval:   30 * time.Second,
		OpTimeout:      15 * time.Second,
	}
	if cfg.Sync != want {
		t.Errorf("sync = %+v, want %+v", cfg.Sync, want)
	}
	if cfg.Network.ProbeInterval != 10*time.Second {
		t.Errorf("probe_interval = %v", cfg.Network.ProbeInterval)
	}
	if cfg.Dashboard.Port != 8080 {
		t.Errorf("dashboard.port = %d", cfg.Dashboard.Port)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, `
[data]
path = "~/coach/coach.db"

[remote]
driver = "postgres"
dsn = "postgres://localhost/coach"

[sync]
batch_size = 25
debounce = "2s"
`)
	t.Setenv("COACH_SYNC_BATCH_SIZE", "50")
	t.Setenv("COACH_AI_API_KEY", "sk-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.File != path {
		t.Errorf("File = %q", cfg.File)
	}
	if cfg.Sync.BatchSize != 50 {
		t.Errorf("batch_size = %d, want env override 50", cfg.Sync.BatchSize)
	}
	if cfg.Sync.Debounce != 2*time.Second {
		t.Errorf("debounce = %v, want 2s", cfg.Sync.Debounce)
	}
	if cfg.Sync.MaxRetries != 3 {
		t.Errorf("max_retries = %d, want default", cfg.Sync.MaxRetries)
	}
	if cfg.AI.APIKey != "sk-env" {
		t.Errorf("api_key = %q", cfg.AI.APIKey)
	}
	if strings.HasPrefix(cfg.Data.Path, "~") || !strings.HasSuffix(cfg.Data.Path, filepath.Join("coach", "coach.db")) {
		t.Errorf("data.path not expanded: %q", cfg.Data.Path)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("COACH_AUTH_USER_ID=user-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("COACH_AUTH_USER_ID") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Auth.UserID != "user-dotenv" {
		t.Errorf("user_id = %q, want value from .env", cfg.Auth.UserID)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad duration", "[sync]\ndebounce = \"soon\"\n", "invalid config"},
		{"unknown driver", "[remote]\ndriver = \"mongo\"\n", "Driver"},
		{"postgres without dsn", "[remote]\ndriver = \"postgres\"\n", "DSN"},
		{"zero batch", "[sync]\nbatch_size = 0\n", "BatchSize"},
		{"bad probe url", "[network]\nprobe_url = \"not a url\"\n", "ProbeURL"},
		{"bad toml", "[sync\n", "failed to read config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			_, err := Load(writeConfig(t, dir, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	if _, err := Load(filepath.Join(dir, "nope.toml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}
