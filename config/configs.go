package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no path is given and SHEETGEO_CONFIG is unset.
const DefaultPath = "config.yaml"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Debug    bool           `yaml:"debug"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Upload   UploadConfig   `yaml:"upload"`
}

type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	Mode         string   `yaml:"mode"` // gin mode: debug | release | test
	AllowOrigins []string `yaml:"allow_origins"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres | mysql
	DSN    string `yaml:"dsn"`
	LogSQL bool   `yaml:"log_sql"`
}

type StorageConfig struct {
	Root            string `yaml:"root"`
	CacheEntries    int    `yaml:"cache_entries"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type LogConfig struct {
	Mode string `yaml:"mode"`
}

// UploadConfig limits are in megabytes.
type UploadConfig struct {
	MaxPDFMB   int64 `yaml:"max_pdf_mb"`
	MaxImageMB int64 `yaml:"max_image_mb"`
	MaxCSVMB   int64 `yaml:"max_csv_mb"`
}

func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8426", Mode: "release", AllowOrigins: []string{"http://localhost:5173"}},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "sheetgeo.db"},
		Storage:  StorageConfig{Root: "./media", CacheEntries: 64, CacheTTLSeconds: 600},
		Log:      LogConfig{Mode: "dev"},
		Upload:   UploadConfig{MaxPDFMB: 50, MaxImageMB: 5, MaxCSVMB: 20},
	}
}

// Load reads the YAML file at path (a missing file is not an error) and
// then applies SHEETGEO_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = envString("SHEETGEO_CONFIG", DefaultPath)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	cfg.Server.Addr = envString("SHEETGEO_ADDR", cfg.Server.Addr)
	cfg.Server.Mode = envString("SHEETGEO_GIN_MODE", cfg.Server.Mode)
	if v := envString("SHEETGEO_ALLOW_ORIGINS", ""); v != "" {
		cfg.Server.AllowOrigins = strings.Split(v, ",")
	}
	cfg.Debug = envBool("SHEETGEO_DEBUG", cfg.Debug)
	cfg.Database.Driver = envString("SHEETGEO_DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = envString("SHEETGEO_DB_DSN", cfg.Database.DSN)
	cfg.Storage.Root = envString("SHEETGEO_STORAGE_ROOT", cfg.Storage.Root)
	cfg.Storage.CacheEntries = int(envInt64("SHEETGEO_CACHE_ENTRIES", int64(cfg.Storage.CacheEntries)))
	cfg.Auth.JWTSecret = envString("SHEETGEO_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Log.Mode = envString("SHEETGEO_LOG_MODE", cfg.Log.Mode)
	cfg.Upload.MaxPDFMB = envInt64("SHEETGEO_MAX_PDF_MB", cfg.Upload.MaxPDFMB)
	cfg.Upload.MaxImageMB = envInt64("SHEETGEO_MAX_IMAGE_MB", cfg.Upload.MaxImageMB)
	cfg.Upload.MaxCSVMB = envInt64("SHEETGEO_MAX_CSV_MB", cfg.Upload.MaxCSVMB)
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}
	if !c.Debug && c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required unless debug is enabled")
	}
	if c.Upload.MaxPDFMB <= 0 || c.Upload.MaxImageMB <= 0 || c.Upload.MaxCSVMB <= 0 {
		return errors.New("upload limits must be positive")
	}
	return nil
}

func envString(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(name string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}
