package config

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"gopkg.in/yaml.v3"
)

type R2Config struct {
	AccountID       string `yaml:"account_id"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	BucketName      string `yaml:"bucket_name"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // overrides the account endpoint, e.g. for MinIO
}

// Enabled reports whether enough settings are present to build a client.
func (c R2Config) Enabled() bool {
	return (c.AccountID != "" || c.Endpoint != "") && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.BucketName != ""
}

type SolcConfig struct {
	Path     string        `yaml:"path"`
	Timeout  time.Duration `yaml:"timeout"`
	Optimize bool          `yaml:"optimize"`
	Runs     int           `yaml:"runs"`
}

type LLMConfig struct {
	Provider string        `yaml:"provider"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Config struct {
	DB_URL      string        `yaml:"db_url"`
	Port        string        `yaml:"port"`
	JWTSecret   string        `yaml:"jwt_secret"`
	Environment string        `yaml:"env"`
	TokenTTL    time.Duration `yaml:"token_ttl"`

	// TrustWalletHeader accepts x-wallet-address without a bearer token.
	TrustWalletHeader   bool   `yaml:"trust_wallet_header"`
	RequireSignature    bool   `yaml:"require_signature"`
	RepairMissingParent bool   `yaml:"repair_missing_parent"`
	RootFolderName      string `yaml:"root_folder_name"`

	CorsOrigins []string     `yaml:"cors_origins"`
	CorsConfig  cors.Options `yaml:"-"`
	Solc        SolcConfig   `yaml:"solc"`
	LLM         LLMConfig    `yaml:"llm"`
	R2          R2Config     `yaml:"r2"`
}

var Envs = initConfig()

func initConfig() Config {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("No", envFile, "file found")
	}

	cfg := FromEnv()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.Overlay(path); err != nil {
			log.Println("Ignoring config file:", err)
		}
	}
	cfg.CorsConfig = CorsConfig(cfg.CorsOrigins)
	return cfg
}

// DefaultJWTSecret signs tokens when JWT_SECRET is unset. Validate refuses
// it in production.
const DefaultJWTSecret = "not-so-secret-now-is-it?"

// FromEnv builds a Config from the process environment only.
func FromEnv() Config {
	return Config{
		DB_URL:              getEnv("DB_URL", ""),
		Port:                getEnv("PORT", "8080"),
		JWTSecret:           getEnv("JWT_SECRET", DefaultJWTSecret),
		Environment:         getEnv("ENV", "development"),
		TokenTTL:            getDuration("TOKEN_TTL", 24*time.Hour),
		TrustWalletHeader:   getBool("TRUST_WALLET_HEADER", false),
		RequireSignature:    getBool("REQUIRE_SIGNATURE", false),
		RepairMissingParent: getBool("REPAIR_MISSING_PARENT", true),
		RootFolderName:      getEnv("ROOT_FOLDER_NAME", "Contracts"),
		CorsOrigins:         getList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		Solc: SolcConfig{
			Path:     getEnv("SOLC_PATH", "solc"),
			Timeout:  getDuration("SOLC_TIMEOUT", 30*time.Second),
			Optimize: getBool("SOLC_OPTIMIZE", true),
			Runs:     getInt("SOLC_RUNS", 200),
		},
		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", "gemini"),
			APIKey:   getEnv("LLM_API_KEY", ""),
			Model:    getEnv("LLM_MODEL", ""),
			BaseURL:  getEnv("LLM_BASE_URL", ""),
			Timeout:  getDuration("LLM_TIMEOUT", 60*time.Second),
		},
		R2: R2Config{
			AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			BucketName:      getEnv("R2_BUCKET_NAME", ""),
			Region:          getEnv("R2_REGION", "auto"),
			Endpoint:        getEnv("R2_ENDPOINT", ""),
		},
	}
}

// Overlay replaces fields with the values present in a YAML file.
// Keys missing from the file keep their current value.
func (c *Config) Overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate rejects settings that are only acceptable outside production.
func (c Config) Validate() error {
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == DefaultJWTSecret) {
		return errors.New("JWT_SECRET must be set in production")
	}
	return nil
}

// Gets the env by key or fallbacks
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func CorsConfig(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}
}
