package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 8080 {
			t.Errorf("Load() port = %v, want 8080", cfg.Server.Port)
		}
		if cfg.Agent.MaxRounds != 25 || cfg.Agent.HistoryWindow != 4 || cfg.Agent.HistoryTokenBudget != 12000 {
			t.Errorf("Load() agent = %+v", cfg.Agent)
		}
		if cfg.Agent.PingInterval != time.Second || cfg.Agent.ModelCallTimeout != 2*time.Minute {
			t.Errorf("Load() agent durations = %+v", cfg.Agent)
		}
		if cfg.Gemini.DefaultModel != "gemini-2.5-flash" || cfg.Gemini.DiagnosisModel != "gemini-2.5-pro" {
			t.Errorf("Load() gemini = %+v", cfg.Gemini)
		}
		if cfg.Blob.UploadsBucket != "user-uploads" || cfg.Blob.GeneratedBucket != "user-files" || cfg.Blob.SignedURLTTL != time.Hour {
			t.Errorf("Load() blob = %+v", cfg.Blob)
		}
		if cfg.Facts.Model != "gemini-2.5-flash" {
			t.Errorf("Load() facts model = %q", cfg.Facts.Model)
		}
	})

	t.Run("env var override", func(t *testing.T) {
		t.Setenv("ROBIN_SERVER__PORT", "9000")
		t.Setenv("ROBIN_AGENT__MAX_ROUNDS", "5")
		t.Setenv("ROBIN_AGENT__PING_INTERVAL", "250ms")

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 9000 {
			t.Errorf("Load() port = %v, want 9000", cfg.Server.Port)
		}
		if cfg.Agent.MaxRounds != 5 {
			t.Errorf("Load() max rounds = %v, want 5", cfg.Agent.MaxRounds)
		}
		if cfg.Agent.PingInterval != 250*time.Millisecond {
			t.Errorf("Load() ping interval = %v", cfg.Agent.PingInterval)
		}
	})

	t.Run("file with secret substitution", func(t *testing.T) {
		t.Setenv("TEST_GEMINI_KEY", "from-env")
		path := filepath.Join(t.TempDir(), "config.yaml")
		body := "storage:\n  driver: memory\ngemini:\n  api_key: ${TEST_GEMINI_KEY}\nserver:\n  cors:\n    allowed_headers: [content-type]\n"
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Storage.Driver != "memory" {
			t.Errorf("Load() storage driver = %q", cfg.Storage.Driver)
		}
		if cfg.Gemini.APIKey != "from-env" || cfg.Facts.APIKey != "from-env" {
			t.Errorf("Load() api keys = %q / %q", cfg.Gemini.APIKey, cfg.Facts.APIKey)
		}
		if len(cfg.Server.CORS.AllowedHeaders) != 1 || cfg.Server.CORS.AllowedHeaders[0] != "content-type" {
			t.Errorf("Load() cors = %v", cfg.Server.CORS.AllowedHeaders)
		}
	})

	t.Run("gemini key falls back to GEMINI_API_KEY", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "plain")
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Gemini.APIKey != "plain" {
			t.Errorf("Load() api key = %q", cfg.Gemini.APIKey)
		}
	})

	t.Run("invalid driver", func(t *testing.T) {
		t.Setenv("ROBIN_STORAGE__DRIVER", "mongo")
		if _, err := Load(""); err == nil {
			t.Fatal("Load() expected error for unknown driver")
		}
	})
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple substitution", input: "${TEST_VAR}", want: "test-value"},
		{name: "substitution in string", input: "prefix-${TEST_VAR}-suffix", want: "prefix-test-value-suffix"},
		{name: "no substitution", input: "plain-string", want: "plain-string"},
		{name: "undefined var", input: "${UNDEFINED_VAR}", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := substituteEnvVars(tt.input); got != tt.want {
				t.Errorf("substituteEnvVars() = %v, want %v", got, tt.want)
			}
		})
	}
}
