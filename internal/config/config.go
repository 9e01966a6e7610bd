package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort         string
	DatabaseURL        string
	CORSAllowedOrigins []string

	Auth struct {
		APIURL    string
		ProjectID string
		APIKey    string
	}
}

func Load() (*Config, error) {
	// Load .env file if it exists (useful for local dev)
	_ = godotenv.Load()

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	authAPIURL := os.Getenv("AUTH_API_URL")
	if authAPIURL == "" {
		return nil, fmt.Errorf("AUTH_API_URL must be set")
	}

	authProjectID := os.Getenv("AUTH_PROJECT_ID")
	if authProjectID == "" {
		return nil, fmt.Errorf("AUTH_PROJECT_ID must be set")
	}

	authAPIKey := os.Getenv("AUTH_API_KEY")
	if authAPIKey == "" {
		return nil, fmt.Errorf("AUTH_API_KEY must be set")
	}

	origins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if origins == "" {
		origins = "http://localhost:5173,http://127.0.0.1:5173"
	}

	cfg := &Config{
		ServerPort:         serverPort,
		DatabaseURL:        databaseURL,
		CORSAllowedOrigins: splitOrigins(origins),
	}
	cfg.Auth.APIURL = authAPIURL
	cfg.Auth.ProjectID = authProjectID
	cfg.Auth.APIKey = authAPIKey

	return cfg, nil
}

func splitOrigins(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
