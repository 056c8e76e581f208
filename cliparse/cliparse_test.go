// cliparse/cliparse_test.go
package cliparse

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseFlags_EnvVars(t *testing.T) {
	// Set env vars
	os.Setenv("PORT", "9000")
	os.Setenv("DATABASE_URL", "postgres://test")
	os.Setenv("DATABASE_TYPE", "postgres")
	os.Setenv("IDENTITY_SALT", "test-salt")
	os.Setenv("VOTE_WINDOW", "12h")
	os.Setenv("ADDRESS_HEADERS", "CF-Connecting-IP, X-Forwarded-For")
	defer os.Clearenv()

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}
	if cfg.DatabaseType != DatabasePostgres {
		t.Errorf("expected postgres, got %s", cfg.DatabaseType)
	}
	if cfg.VoteWindow != 12*time.Hour {
		t.Errorf("expected vote window 12h, got %s", cfg.VoteWindow)
	}
	if len(cfg.AddressHeaders) != 2 || cfg.AddressHeaders[0] != "CF-Connecting-IP" {
		t.Errorf("unexpected address headers: %v", cfg.AddressHeaders)
	}
}

func TestParseFlags_Defaults(t *testing.T) {
	defer os.Clearenv()
	os.Clearenv()

	cfg, err := ParseFlags([]string{"-d", "file:test.db", "-identity-salt", "s1"})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DatabaseType != DatabaseSQLite {
		t.Errorf("expected sqlite default, got %s", cfg.DatabaseType)
	}
	if cfg.VoteQuota != 1 || cfg.VoteWindow != 24*time.Hour {
		t.Errorf("unexpected vote limit %d/%s", cfg.VoteQuota, cfg.VoteWindow)
	}
	if cfg.APIQuota != 100 || cfg.APIWindow != time.Minute {
		t.Errorf("unexpected api limit %d/%s", cfg.APIQuota, cfg.APIWindow)
	}
	if cfg.AccountHeader != "X-Account-ID" {
		t.Errorf("unexpected account header %s", cfg.AccountHeader)
	}
	if len(cfg.AddressHeaders) != len(DefaultAddressHeaders) {
		t.Errorf("expected default address headers, got %v", cfg.AddressHeaders)
	}
	if cfg.APILimitFailOpen {
		t.Error("API limiter should fail closed by default")
	}
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	os.Setenv("PORT", "9000")
	os.Setenv("VOTE_QUOTA", "3")
	defer os.Clearenv()

	cfg, err := ParseFlags([]string{"-p", "8080", "-d", "file:test.db", "-identity-salt", "s1", "-vote-quota", "5"})
	if err != nil {
		t.Fatal(err)
	}

	// CLI should override env
	if cfg.Port != 8080 {
		t.Errorf("CLI should override env: expected 8080, got %d", cfg.Port)
	}
	if cfg.VoteQuota != 5 {
		t.Errorf("CLI should override env: expected vote quota 5, got %d", cfg.VoteQuota)
	}
}

func TestParseFlags_MissingSalt(t *testing.T) {
	defer os.Clearenv()
	os.Clearenv()

	if _, err := ParseFlags([]string{"-d", "file:test.db"}); err == nil {
		t.Error("expected error when IDENTITY_SALT is missing")
	}
}

func TestParseFlags_InvalidValues(t *testing.T) {
	defer os.Clearenv()

	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"bad window", "VOTE_WINDOW", "soon"},
		{"zero quota", "API_QUOTA", "0"},
		{"bad fail open", "API_LIMIT_FAIL_OPEN", "maybe"},
		{"bad database type", "DATABASE_TYPE", "mysql"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv(tt.env, tt.val)

			if _, err := ParseFlags([]string{"-d", "file:test.db", "-identity-salt", "s1"}); err == nil {
				t.Errorf("expected error for %s=%s", tt.env, tt.val)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	defer os.Clearenv()
	os.Clearenv()

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("IDENTITY_SALT=from-file\nDATABASE_URL=file:env.db\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	os.Setenv("DATABASE_URL", "file:already-set.db")

	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}

	if got := os.Getenv("IDENTITY_SALT"); got != "from-file" {
		t.Errorf("expected salt from file, got %q", got)
	}
	if got := os.Getenv("DATABASE_URL"); got != "file:already-set.db" {
		t.Errorf("env file must not override existing variables, got %q", got)
	}

	if err := LoadEnvFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}
}
