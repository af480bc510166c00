package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// AppConfig configuration de l'application
type AppConfig struct {
	Server    ServerConfig    `toml:"server"`
	Data      DataConfig      `toml:"data"`
	Storage   StorageConfig   `toml:"storage"`
	Inference InferenceConfig `toml:"inference"`
	Import    ImportConfig    `toml:"import"`
	Session   SessionConfig   `toml:"session"`
	Archive   ArchiveConfig   `toml:"archive"`
}

// ServerConfig serveur HTTP
type ServerConfig struct {
	Port    int  `toml:"port"`
	DevMode bool `toml:"dev_mode"`
	// MaxUploadMB taille maximale d'un fichier importé
	MaxUploadMB int `toml:"max_upload_mb"`
}

// DataConfig répertoire de données (base SQLite, archives locales)
type DataConfig struct {
	DataDir string `toml:"data_dir"`
}

// StorageConfig base de données : "sqlite" (défaut) ou "postgres"
type StorageConfig struct {
	Driver      string `toml:"driver"`
	SQLitePath  string `toml:"sqlite_path"`
	PostgresDSN string `toml:"postgres_dsn"`
}

// InferenceConfig service de proposition de correspondance : "http" ou "gemini"
type InferenceConfig struct {
	Provider   string `toml:"provider"`
	Endpoint   string `toml:"endpoint"`
	APIKey     string `toml:"api_key"`
	Model      string `toml:"model"`
	TimeoutSec int    `toml:"timeout_sec"`
	MaxRetries int    `toml:"max_retries"`
}

// ImportConfig réglages du pipeline d'import
type ImportConfig struct {
	// BaseYear année des mois sans année (0 = année courante)
	BaseYear   int `toml:"base_year"`
	SampleRows int `toml:"sample_rows"`
}

// SessionConfig stockage des sessions d'import : "memory" ou "redis"
type SessionConfig struct {
	Backend    string `toml:"backend"`
	RedisURL   string `toml:"redis_url"`
	TTLMinutes int    `toml:"ttl_minutes"`
}

// ArchiveConfig copie des fichiers importés : "local", "s3" ou "none"
type ArchiveConfig struct {
	Backend string `toml:"backend"`
	Bucket  string `toml:"bucket"`
	Prefix  string `toml:"prefix"`
	Region  string `toml:"region"`
}

// LoadConfigInfo métadonnées du chargement
type LoadConfigInfo struct {
	Path          string
	FileFound     bool
	PortSpecified bool
}

// DefaultConfig configuration par défaut
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:        20261,
			DevMode:     false,
			MaxUploadMB: 10,
		},
		Data: DataConfig{
			DataDir: "data",
		},
		Storage: StorageConfig{
			Driver:     "sqlite",
			SQLitePath: "assistantcom.db",
		},
		Inference: InferenceConfig{
			Provider:   "http",
			Model:      "gemini-2.0-flash",
			TimeoutSec: 60,
			MaxRetries: 3,
		},
		Import: ImportConfig{
			SampleRows: 3,
		},
		Session: SessionConfig{
			Backend:    "memory",
			TTLMinutes: 120,
		},
		Archive: ArchiveConfig{
			Backend: "local",
			Prefix:  "uploads/",
		},
	}
}

// InferenceTimeout délai du client HTTP d'inférence
func (c *AppConfig) InferenceTimeout() time.Duration {
	if c.Inference.TimeoutSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Inference.TimeoutSec) * time.Second
}

// SessionTTL durée de vie d'une session d'import
func (c *AppConfig) SessionTTL() time.Duration {
	if c.Session.TTLMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// Validate vérifie les valeurs énumérées
func (c *AppConfig) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.PostgresDSN == "" {
		return errors.New("storage.postgres_dsn is required with the postgres driver")
	}
	switch c.Inference.Provider {
	case "http", "gemini":
	default:
		return fmt.Errorf("unknown inference provider %q", c.Inference.Provider)
	}
	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	switch c.Archive.Backend {
	case "local", "s3", "none":
	default:
		return fmt.Errorf("unknown archive backend %q", c.Archive.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}

	serverAny, ok := raw["server"]
	if !ok {
		return false
	}

	serverMap, ok := serverAny.(map[string]any)
	if !ok {
		return false
	}

	_, ok = serverMap["port"]
	return ok
}

// GetExeDir répertoire de l'exécutable
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

func baseDir() string {
	exeDir, err := GetExeDir()
	if err != nil {
		return "."
	}
	return exeDir
}

// LoadConfigWithInfo charge .env puis config.toml (ASSISTANTCOM_CONFIG ou à côté de l'exécutable)
// et applique les variables d'environnement
func LoadConfigWithInfo() (*AppConfig, LoadConfigInfo, error) {
	dir := baseDir()
	LoadDotEnv(dir)

	configPath := os.Getenv("ASSISTANTCOM_CONFIG")
	if configPath == "" {
		configPath = filepath.Join(dir, "config.toml")
	}
	return LoadFrom(configPath)
}

// LoadFrom charge un fichier précis ; un fichier absent donne la configuration par défaut
func LoadFrom(configPath string) (*AppConfig, LoadConfigInfo, error) {
	info := LoadConfigInfo{Path: configPath}
	config := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, info, fmt.Errorf("failed to read config: %w", err)
	default:
		info.FileFound = true
		info.PortSpecified = isPortSpecifiedInToml(data)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, info, fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
	}

	if applyEnv(config) {
		info.PortSpecified = true
	}
	if err := config.Validate(); err != nil {
		return nil, info, err
	}
	return config, info, nil
}

// LoadConfig raccourci de LoadConfigWithInfo
func LoadConfig() (*AppConfig, error) {
	config, _, err := LoadConfigWithInfo()
	return config, err
}

// LoadDotEnv charge .env du répertoire donné puis du répertoire courant, sans écraser l'environnement
func LoadDotEnv(dir string) {
	for _, p := range []string{filepath.Join(dir, ".env"), ".env"} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// applyEnv variables d'environnement prioritaires ; retourne true si le port a été fixé
func applyEnv(c *AppConfig) bool {
	portSet := false
	if v := os.Getenv("ASSISTANTCOM_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
			portSet = true
		}
	}
	if v := os.Getenv("ASSISTANTCOM_DATA_DIR"); v != "" {
		c.Data.DataDir = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.Driver = "postgres"
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("ASSISTANTCOM_INFERENCE_PROVIDER"); v != "" {
		c.Inference.Provider = v
	}
	if v := os.Getenv("ASSISTANTCOM_INFERENCE_ENDPOINT"); v != "" {
		c.Inference.Endpoint = v
	}
	if v := os.Getenv("INFERENCE_API_KEY"); v != "" && c.Inference.Provider == "http" {
		c.Inference.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.Inference.Provider == "gemini" {
		c.Inference.APIKey = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Session.Backend = "redis"
		c.Session.RedisURL = v
	}
	if v := os.Getenv("ASSISTANTCOM_ARCHIVE_BUCKET"); v != "" {
		c.Archive.Backend = "s3"
		c.Archive.Bucket = v
	}
	return portSet
}

// SaveConfig écrit config.toml à côté de l'exécutable
func SaveConfig(config *AppConfig) error {
	configPath := filepath.Join(baseDir(), "config.toml")

	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// ResolveDataDir chemin absolu du répertoire de données (relatif à l'exécutable)
func ResolveDataDir(config *AppConfig) string {
	if filepath.IsAbs(config.Data.DataDir) {
		return config.Data.DataDir
	}
	return filepath.Join(baseDir(), config.Data.DataDir)
}

// EnsureDataDir crée le répertoire de données et ses sous-répertoires
func EnsureDataDir(config *AppConfig) (string, error) {
	dataDir := ResolveDataDir(config)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}

	for _, subdir := range []string{"uploads"} {
		if err := os.MkdirAll(filepath.Join(dataDir, subdir), 0755); err != nil {
			return "", err
		}
	}

	return dataDir, nil
}

// SQLitePath chemin de la base SQLite
func SQLitePath(config *AppConfig, dataDir string) string {
	if filepath.IsAbs(config.Storage.SQLitePath) {
		return config.Storage.SQLitePath
	}
	return filepath.Join(dataDir, config.Storage.SQLitePath)
}
