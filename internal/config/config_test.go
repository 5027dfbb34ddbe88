package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	t.Setenv("DB_PASSWORD", "test")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Auth.AccessTokenExpiry != 30*time.Minute {
		t.Errorf("AccessTokenExpiry: got %v, want 30m", cfg.Auth.AccessTokenExpiry)
	}
	if cfg.Mail.QueueSize != 256 {
		t.Errorf("QueueSize: got %d, want 256", cfg.Mail.QueueSize)
	}
	if cfg.Account.EmailPattern != defaultEmailPattern {
		t.Errorf("EmailPattern: got %q, want default", cfg.Account.EmailPattern)
	}
	if cfg.Account.UsernamePattern != defaultUsernamePattern {
		t.Errorf("UsernamePattern: got %q, want default", cfg.Account.UsernamePattern)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Port: got %q, want 8080", cfg.Server.Port)
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "test")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail without JWT_SECRET")
	}
}

func TestLoadRequiresDBPassword(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	t.Setenv("DB_PASSWORD", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail without DB_PASSWORD")
	}
}

func TestJWTSecretValidation(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		env     string
		wantErr bool
	}{
		{"short secret in development", "short", "development", true},
		{"16 chars in development", "exactly16chars!!", "development", false},
		{"16 chars in production", "exactly16chars!!", "production", true},
		{"32 chars in production", "a-very-long-secret-32-chars-ok!!", "production", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateJWTSecret(tt.secret, tt.env)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateJWTSecret(%q, %q) = %v, wantErr %v", tt.secret, tt.env, err, tt.wantErr)
			}
		})
	}
}

func TestCustomAccountPatterns(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ACCOUNT_EMAIL_PATTERN", `^.+@corp\.example$`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if cfg.Account.EmailPattern != `^.+@corp\.example$` {
		t.Errorf("EmailPattern not overridden: %q", cfg.Account.EmailPattern)
	}
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{
		Host: "db", Port: 5433, User: "app", Password: "pw", Name: "accounts", SSLMode: "require",
	}
	want := "host=db port=5433 user=app password=pw dbname=accounts sslmode=require"
	if got := c.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
