package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/saint0x/gitfix/pkg/log"
	"github.com/sethvargo/go-envconfig"
)

func validEnv() map[string]string {
	return map[string]string{
		"SIGNING_KEY":  "secret",
		"GITHUB_TOKEN": "ghp_test",
		"LLM_API_KEY":  "key",
	}
}

func TestLoadDefaults(t *testing.T) {
	env, err := load(context.Background(), envconfig.MapLookuper(validEnv()))
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if env.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", env.Port)
	}
	if env.TokenTTL != 30*24*time.Hour {
		t.Errorf("Expected 30 day token TTL, got %v", env.TokenTTL)
	}
	if env.LLM.Provider != ProviderGoogle {
		t.Errorf("Expected google provider, got %s", env.LLM.Provider)
	}
	if env.LLM.Model != "gemini-2.0-flash-001" {
		t.Errorf("Expected default model, got %s", env.LLM.Model)
	}
	if env.GitHub.BranchPrefix != "gitfix/" {
		t.Errorf("Expected branch prefix gitfix/, got %s", env.GitHub.BranchPrefix)
	}
	if env.KeyPrefix != "gitfix:" {
		t.Errorf("Expected key prefix gitfix:, got %s", env.KeyPrefix)
	}
	if env.CORSOrigin != "*" {
		t.Errorf("Expected CORS origin *, got %s", env.CORSOrigin)
	}
}

func TestLoadOverrides(t *testing.T) {
	m := validEnv()
	m["LLM_PROVIDER"] = ProviderAnthropic
	m["LLM_MODEL"] = "claude-custom"
	m["GITHUB_PR_LABELS"] = "ai,gitfix"
	m["GITHUB_APP_ID"] = "42"
	m["GITHUB_PRIVATE_KEY"] = "pem"

	env, err := load(context.Background(), envconfig.MapLookuper(m))
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if env.LLM.Model != "claude-custom" {
		t.Errorf("Expected explicit model, got %s", env.LLM.Model)
	}
	if len(env.GitHub.PRLabels) != 2 || env.GitHub.PRLabels[1] != "gitfix" {
		t.Errorf("Expected two labels, got %v", env.GitHub.PRLabels)
	}
	if !env.GitHub.UsesApp() {
		t.Error("Expected app credentials to be detected")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m map[string]string)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(map[string]string) {},
		},
		{
			name:    "missing signing key",
			mutate:  func(m map[string]string) { delete(m, "SIGNING_KEY") },
			wantErr: "SIGNING_KEY",
		},
		{
			name:    "missing github auth",
			mutate:  func(m map[string]string) { delete(m, "GITHUB_TOKEN") },
			wantErr: "GITHUB_TOKEN",
		},
		{
			name:    "unknown provider",
			mutate:  func(m map[string]string) { m["LLM_PROVIDER"] = "llama" },
			wantErr: "unsupported LLM_PROVIDER",
		},
		{
			name:    "missing llm key",
			mutate:  func(m map[string]string) { delete(m, "LLM_API_KEY") },
			wantErr: "LLM_API_KEY",
		},
		{
			name:    "bad log format",
			mutate:  func(m map[string]string) { m["LOG_FORMAT"] = "xml" },
			wantErr: "LOG_FORMAT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validEnv()
			tt.mutate(m)

			_, err := validate(context.Background(), log.New(false), envconfig.MapLookuper(m))
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestGitHubKeyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.pem")
	if err := os.WriteFile(path, []byte("-----BEGIN-----"), 0o600); err != nil {
		t.Fatal(err)
	}

	g := GitHub{AppID: 1, PrivateKeyFile: path}
	key, err := g.Key()
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	if string(key) != "-----BEGIN-----" {
		t.Errorf("Expected file contents, got %q", key)
	}

	g.PrivateKeyFile = filepath.Join(t.TempDir(), "missing.pem")
	if _, err := g.Key(); err == nil {
		t.Error("Expected error for missing key file")
	}
}
