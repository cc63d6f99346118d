package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// StoreMode selects a storage backend at startup. There is no runtime-mutable
// sync flag: the chosen mode is fixed for the life of the process.
type StoreMode string

const (
	StoreModeLocal  StoreMode = "local"
	StoreModeRemote StoreMode = "remote"
)

// DatabaseConfig PostgreSQL connection settings (local store mode).
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// DSN builds the lib/pq connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RemoteConfig hosted-backend endpoint (remote store mode and remote
// document buckets).
type RemoteConfig struct {
	URL    string
	APIKey string
}

// StorageConfig document-store settings.
type StorageConfig struct {
	Mode    StoreMode // "local" filesystem buckets or "remote" hosted buckets
	BaseDir string    // base directory for local buckets
	ImagesBucket      string
	ContractsBucket   string
	MaxImageSizeMB    int
	MaxContractSizeMB int
	ImageFormats      []string // allowed image extensions, lowercase with dot
}

// Config immobili-data service configuration, read once at startup.
type Config struct {
	HTTP struct {
		Addr string
	}
	StoreMode StoreMode
	Database  DatabaseConfig
	Remote    RemoteConfig
	Storage   StorageConfig
	Log       struct {
		Level  string
		Format string
	}
	ExpiryWarningDays int
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.StoreMode = storeMode(getEnv("STORE_MODE", "local"))

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "immobiliare")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Remote.URL = getEnv("REMOTE_URL", "")
	cfg.Remote.APIKey = getEnv("REMOTE_API_KEY", "")

	cfg.Storage.Mode = storeMode(getEnv("STORAGE_MODE", "local"))
	cfg.Storage.BaseDir = getEnv("STORAGE_BASE_DIR", "data")
	cfg.Storage.ImagesBucket = getEnv("IMAGES_BUCKET", "piantine")
	cfg.Storage.ContractsBucket = getEnv("CONTRACTS_BUCKET", "contratti")
	cfg.Storage.MaxImageSizeMB = parseInt(getEnv("MAX_IMAGE_SIZE_MB", "5"), 5)
	cfg.Storage.MaxContractSizeMB = parseInt(getEnv("MAX_CONTRACT_SIZE_MB", "20"), 20)
	cfg.Storage.ImageFormats = splitList(getEnv("IMAGE_FORMATS", ".jpg,.jpeg,.png,.webp"))

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.ExpiryWarningDays = parseInt(getEnv("EXPIRY_WARNING_DAYS", "60"), 60)

	return cfg
}

func storeMode(s string) StoreMode {
	if s == string(StoreModeRemote) {
		return StoreModeRemote
	}
	return StoreModeLocal
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
