package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL    string
	HTTPListenAddr string
	LogLevel       string
	ServiceName    string

	// OAuthCredentialsFile points to a YAML file with per-provider
	// client credentials. Env vars override file values.
	OAuthCredentialsFile string
	OAuthClients         map[string]OAuthClient

	// GitHubAPIBaseURL overrides the GitHub API endpoint, used for
	// GitHub Enterprise installations.
	GitHubAPIBaseURL string
}

// OAuthClient holds the registered application credentials for one
// OAuth provider.
type OAuthClient struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		HTTPListenAddr:       getEnv("HTTP_LISTEN_ADDR", ":8090"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		ServiceName:          getEnv("SERVICE_NAME", "backup-api"),
		OAuthCredentialsFile: getEnv("OAUTH_CREDENTIALS_FILE", ""),
		GitHubAPIBaseURL:     getEnv("GITHUB_API_BASE_URL", "https://api.github.com"),
		OAuthClients:         map[string]OAuthClient{},
	}

	if cfg.OAuthCredentialsFile != "" {
		if err := loadOAuthClients(cfg.OAuthCredentialsFile, cfg.OAuthClients); err != nil {
			return nil, err
		}
	}

	// Env vars take precedence over the credentials file.
	for _, provider := range []string{"google", "dropbox", "onedrive"} {
		id := os.Getenv(envPrefix(provider) + "_CLIENT_ID")
		secret := os.Getenv(envPrefix(provider) + "_CLIENT_SECRET")
		if id != "" || secret != "" {
			cfg.OAuthClients[provider] = OAuthClient{ClientID: id, ClientSecret: secret}
		}
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.HTTPListenAddr == "" {
		return fmt.Errorf("HTTP_LISTEN_ADDR must not be empty")
	}
	return nil
}

func loadOAuthClients(path string, dst map[string]OAuthClient) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read oauth credentials file: %w", err)
	}
	var file struct {
		Providers map[string]OAuthClient `yaml:"providers"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse oauth credentials file: %w", err)
	}
	for k, v := range file.Providers {
		dst[k] = v
	}
	return nil
}

func envPrefix(provider string) string {
	switch provider {
	case "google":
		return "GOOGLE"
	case "dropbox":
		return "DROPBOX"
	default:
		return "ONEDRIVE"
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
