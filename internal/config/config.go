package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	IDs       IDConfig
	Client    ClientConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	Env             string
	FunctionsPrefix string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxClients      int
}

type CORSConfig struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

type IDConfig struct {
	MaxAttempts int
}

// ClientConfig drives the boulder CLI: where the API lives and where the
// local mirror is kept.
type ClientConfig struct {
	APIURL     string
	APIStyle   string
	MirrorPath string
	Timeout    time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	clientTimeout, err := time.ParseDuration(getEnv("BOULDER_API_TIMEOUT", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid BOULDER_API_TIMEOUT: %w", err)
	}

	apiStyle := getEnv("BOULDER_API_STYLE", "server")
	if apiStyle != "server" && apiStyle != "functions" {
		return nil, fmt.Errorf("invalid BOULDER_API_STYLE %q: expected server or functions", apiStyle)
	}

	mirrorPath := getEnv("BOULDER_MIRROR_PATH", "")
	if mirrorPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		mirrorPath = filepath.Join(home, ".boulder", "mirror.db")
	}

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Host:            getEnv("HOST", "0.0.0.0"),
			Env:             getEnv("ENV", "development"),
			FunctionsPrefix: getEnv("FUNCTIONS_PREFIX", "/.netlify/functions"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5984"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "boulders"),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getEnvAsInt("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getEnvAsInt("WS_WRITE_BUFFER_SIZE", 4096),
			MaxMessageSize:  int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", 4096)),
			WriteWait:       10 * time.Second,
			PongWait:        60 * time.Second,
			PingPeriod:      54 * time.Second,
			MaxClients:      getEnvAsInt("WS_MAX_CLIENTS", 100),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type"),
		},
		IDs: IDConfig{
			MaxAttempts: getEnvAsInt("ID_MAX_ATTEMPTS", 5),
		},
		Client: ClientConfig{
			APIURL:     getEnv("BOULDER_API_URL", "http://localhost:8080"),
			APIStyle:   apiStyle,
			MirrorPath: mirrorPath,
			Timeout:    clientTimeout,
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
