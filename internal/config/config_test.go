package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "TOKEN_TTL", "TRUST_WALLET_HEADER", "REPAIR_MISSING_PARENT", "ROOT_FOLDER_NAME", "SOLC_RUNS", "CORS_ORIGINS"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg := FromEnv()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.False(t, cfg.TrustWalletHeader)
	assert.True(t, cfg.RepairMissingParent)
	assert.Equal(t, "Contracts", cfg.RootFolderName)
	assert.Equal(t, 200, cfg.Solc.Runs)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CorsOrigins)
}

func TestFromEnv_ParsesTypedValues(t *testing.T) {
	t.Setenv("TOKEN_TTL", "90m")
	t.Setenv("TRUST_WALLET_HEADER", "true")
	t.Setenv("SOLC_RUNS", "999")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg := FromEnv()

	assert.Equal(t, 90*time.Minute, cfg.TokenTTL)
	assert.True(t, cfg.TrustWalletHeader)
	assert.Equal(t, 999, cfg.Solc.Runs)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CorsOrigins)
}

func TestFromEnv_BadValuesFallBack(t *testing.T) {
	t.Setenv("TOKEN_TTL", "soon")
	t.Setenv("SOLC_RUNS", "many")

	cfg := FromEnv()

	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 200, cfg.Solc.Runs)
}

func TestOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
token_ttl: 2h
root_folder_name: Workspace
llm:
  provider: openai
  model: gpt-4o-mini
`), 0o600))

	cfg := Config{Port: "8080", JWTSecret: "keep-me", LLM: LLMConfig{APIKey: "k"}}
	require.NoError(t, cfg.Overlay(path))

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "Workspace", cfg.RootFolderName)
	assert.Equal(t, "keep-me", cfg.JWTSecret)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "k", cfg.LLM.APIKey)
}

func TestOverlay_MissingFile(t *testing.T) {
	cfg := Config{}
	err := cfg.Overlay(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestR2Enabled(t *testing.T) {
	assert.False(t, R2Config{}.Enabled())
	assert.True(t, R2Config{AccountID: "a", AccessKeyID: "b", SecretAccessKey: "c", BucketName: "d"}.Enabled())
	assert.True(t, R2Config{Endpoint: "http://localhost:9000", AccessKeyID: "b", SecretAccessKey: "c", BucketName: "d"}.Enabled())
	assert.False(t, R2Config{AccountID: "a", AccessKeyID: "b", SecretAccessKey: "c"}.Enabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		secret  string
		wantErr bool
	}{
		{"dev default secret", "development", DefaultJWTSecret, false},
		{"production default secret", "production", DefaultJWTSecret, true},
		{"production empty secret", "production", "", true},
		{"production real secret", "production", "s3cr3t-from-vault", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Config{Environment: tc.env, JWTSecret: tc.secret}.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
