package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL   = "http://127.0.0.1:7333"
	DefaultLogLevel = "info"
	DefaultDataDir  = ".memgarden"

	DefaultRecordsBackend  = "sqlite"
	DefaultDBFileName      = "stories.db"
	DefaultMongoURI        = "mongodb://localhost:27017"
	DefaultMongoDatabase   = "community_platform"
	DefaultMongoCollection = "stories"

	DefaultBlobsBackend = "local"
	DefaultBlobDirName  = "blobs"

	DefaultNarrativeBaseURL = "http://127.0.0.1:11434"
	DefaultNarrativeModel   = "llava"
	DefaultNarrativeTimeout = 60 * time.Second

	DefaultMaxPhotoBytes      int64 = 10 << 20
	DefaultMaxPhotos                = 10
	DefaultMultipartMaxMemory int64 = 32 << 20

	DefaultRateLimit                = 5.0
	DefaultBurst                    = 10
	DefaultMaxConcurrentGenerations = 4

	DefaultGCGracePeriod = time.Hour

	configFileName  = ".memgarden.toml"
	dotenvFileName  = ".env"
	configDirEnvKey = "MEMGARDEN_CONFIG_DIR"
)

// RecordsConfig selects and configures the story record store.
type RecordsConfig struct {
	Backend         string `toml:"backend" env:"MEMGARDEN_RECORDS_BACKEND"`
	DBPath          string `toml:"db_path" env:"MEMGARDEN_DB"`
	MongoURI        string `toml:"mongo_uri" env:"MONGODB_URI"`
	MongoDatabase   string `toml:"mongo_database" env:"MONGODB_DB_NAME"`
	MongoCollection string `toml:"mongo_collection" env:"MONGODB_COLLECTION_NAME"`
}

// BlobsConfig selects and configures the photo blob store.
type BlobsConfig struct {
	Backend     string `toml:"backend" env:"MEMGARDEN_BLOBS_BACKEND"`
	Root        string `toml:"root" env:"MEMGARDEN_BLOB_ROOT"`
	S3Bucket    string `toml:"s3_bucket" env:"MEMGARDEN_S3_BUCKET"`
	S3Region    string `toml:"s3_region" env:"MEMGARDEN_S3_REGION"`
	S3Prefix    string `toml:"s3_prefix" env:"MEMGARDEN_S3_PREFIX"`
	S3Endpoint  string `toml:"s3_endpoint" env:"MEMGARDEN_S3_ENDPOINT"`
	S3PathStyle bool   `toml:"s3_path_style" env:"MEMGARDEN_S3_PATH_STYLE"`
}

// NarrativeConfig points at the Ollama server used for narratives.
type NarrativeConfig struct {
	BaseURL string        `toml:"base_url" env:"MEMGARDEN_OLLAMA_URL"`
	Model   string        `toml:"model" env:"MEMGARDEN_OLLAMA_MODEL"`
	Timeout time.Duration `toml:"timeout" env:"MEMGARDEN_NARRATIVE_TIMEOUT"`
}

// UploadsConfig bounds photo uploads.
type UploadsConfig struct {
	MaxPhotoBytes      int64 `toml:"max_photo_bytes" env:"MEMGARDEN_MAX_PHOTO_BYTES"`
	MaxPhotos          int   `toml:"max_photos" env:"MEMGARDEN_MAX_PHOTOS"`
	MultipartMaxMemory int64 `toml:"multipart_max_memory" env:"MEMGARDEN_MULTIPART_MAX_MEMORY"`
}

// ServerConfig tunes request admission.
type ServerConfig struct {
	// RateLimit is mutations per second; negative disables the limiter.
	RateLimit                float64 `toml:"rate_limit" env:"MEMGARDEN_RATE_LIMIT"`
	Burst                    int     `toml:"burst" env:"MEMGARDEN_RATE_BURST"`
	MaxConcurrentGenerations int     `toml:"max_concurrent_generations" env:"MEMGARDEN_MAX_CONCURRENT_GENERATIONS"`
}

// GCConfig configures the orphan blob sweep.
type GCConfig struct {
	GracePeriod time.Duration `toml:"grace_period" env:"MEMGARDEN_GC_GRACE_PERIOD"`
}

// Config defines runtime configuration for memgarden.
type Config struct {
	APIURL    string          `toml:"api_url" env:"MEMGARDEN_API_URL"`
	LogLevel  string          `toml:"log_level" env:"MEMGARDEN_LOG_LEVEL"`
	DataDir   string          `toml:"data_dir" env:"MEMGARDEN_DATA_DIR"`
	Records   RecordsConfig   `toml:"records"`
	Blobs     BlobsConfig     `toml:"blobs"`
	Narrative NarrativeConfig `toml:"narrative"`
	Uploads   UploadsConfig   `toml:"uploads"`
	Server    ServerConfig    `toml:"server"`
	GC        GCConfig        `toml:"gc"`
}

// Default returns default configuration values. Paths under the data
// directory are resolved by Load.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		LogLevel: DefaultLogLevel,
		Records: RecordsConfig{
			Backend:         DefaultRecordsBackend,
			MongoURI:        DefaultMongoURI,
			MongoDatabase:   DefaultMongoDatabase,
			MongoCollection: DefaultMongoCollection,
		},
		Blobs: BlobsConfig{
			Backend: DefaultBlobsBackend,
		},
		Narrative: NarrativeConfig{
			BaseURL: DefaultNarrativeBaseURL,
			Model:   DefaultNarrativeModel,
			Timeout: DefaultNarrativeTimeout,
		},
		Uploads: UploadsConfig{
			MaxPhotoBytes:      DefaultMaxPhotoBytes,
			MaxPhotos:          DefaultMaxPhotos,
			MultipartMaxMemory: DefaultMultipartMaxMemory,
		},
		Server: ServerConfig{
			RateLimit:                DefaultRateLimit,
			Burst:                    DefaultBurst,
			MaxConcurrentGenerations: DefaultMaxConcurrentGenerations,
		},
		GC: GCConfig{
			GracePeriod: DefaultGCGracePeriod,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// loadDotenv exports variables from a .env file. Variables already present
// in the environment win.
func loadDotenv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// GlobalPath returns the path to the config file.
func GlobalPath() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(configDirEnvKey)); dir != "" {
		return filepath.Join(dir, configFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// Load reads the config file, the working directory .env file and
// environment overrides, in that order.
func Load() (*Config, error) {
	cfg := Default()

	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	if err := loadFile(path, &cfg); err != nil {
		return nil, err
	}

	if cwd, err := os.Getwd(); err == nil {
		if err := loadDotenv(filepath.Join(cwd, dotenvFileName)); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if strings.TrimSpace(c.DataDir) == "" {
		if cwd, err := os.Getwd(); err == nil {
			c.DataDir = filepath.Join(cwd, DefaultDataDir)
		} else {
			c.DataDir = DefaultDataDir
		}
	}

	c.Records.Backend = strings.ToLower(strings.TrimSpace(c.Records.Backend))
	if c.Records.Backend == "" {
		c.Records.Backend = DefaultRecordsBackend
	}
	if c.Records.DBPath == "" {
		c.Records.DBPath = filepath.Join(c.DataDir, DefaultDBFileName)
	}

	c.Blobs.Backend = strings.ToLower(strings.TrimSpace(c.Blobs.Backend))
	if c.Blobs.Backend == "" {
		c.Blobs.Backend = DefaultBlobsBackend
	}
	if c.Blobs.Root == "" {
		c.Blobs.Root = filepath.Join(c.DataDir, DefaultBlobDirName)
	}

	if c.Narrative.Timeout <= 0 {
		c.Narrative.Timeout = DefaultNarrativeTimeout
	}
	if c.Uploads.MaxPhotoBytes <= 0 {
		c.Uploads.MaxPhotoBytes = DefaultMaxPhotoBytes
	}
	if c.Uploads.MaxPhotos <= 0 {
		c.Uploads.MaxPhotos = DefaultMaxPhotos
	}
	if c.Uploads.MultipartMaxMemory <= 0 {
		c.Uploads.MultipartMaxMemory = DefaultMultipartMaxMemory
	}
	if c.Server.Burst <= 0 {
		c.Server.Burst = DefaultBurst
	}
	if c.Server.MaxConcurrentGenerations <= 0 {
		c.Server.MaxConcurrentGenerations = DefaultMaxConcurrentGenerations
	}
	if c.GC.GracePeriod <= 0 {
		c.GC.GracePeriod = DefaultGCGracePeriod
	}
}

// Validate reports backend settings that cannot start a server. Log levels
// are checked by the CLI, which falls back with a warning.
func (c *Config) Validate() error {
	var errs []error
	switch c.Records.Backend {
	case "sqlite":
	case "mongo":
		if strings.TrimSpace(c.Records.MongoURI) == "" {
			errs = append(errs, fmt.Errorf("records.mongo_uri is required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("records.backend must be sqlite or mongo, got %q", c.Records.Backend))
	}
	switch c.Blobs.Backend {
	case "local":
	case "s3":
		if strings.TrimSpace(c.Blobs.S3Bucket) == "" {
			errs = append(errs, fmt.Errorf("blobs.s3_bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("blobs.backend must be local or s3, got %q", c.Blobs.Backend))
	}
	if c.GC.GracePeriod <= c.Narrative.Timeout {
		errs = append(errs, fmt.Errorf("gc.grace_period (%s) must exceed narrative.timeout (%s)", c.GC.GracePeriod, c.Narrative.Timeout))
	}
	return errors.Join(errs...)
}

var allowedKeys = []string{
	"api_url",
	"log_level",
	"data_dir",
	"records.backend",
	"records.db_path",
	"records.mongo_uri",
	"records.mongo_database",
	"records.mongo_collection",
	"blobs.backend",
	"blobs.root",
	"blobs.s3_bucket",
	"blobs.s3_region",
	"blobs.s3_prefix",
	"blobs.s3_endpoint",
	"blobs.s3_path_style",
	"narrative.base_url",
	"narrative.model",
	"narrative.timeout",
	"uploads.max_photo_bytes",
	"uploads.max_photos",
	"uploads.multipart_max_memory",
	"server.rate_limit",
	"server.burst",
	"server.max_concurrent_generations",
	"gc.grace_period",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "log_level":
		return c.LogLevel, nil
	case "data_dir":
		return c.DataDir, nil
	case "records.backend":
		return c.Records.Backend, nil
	case "records.db_path":
		return c.Records.DBPath, nil
	case "records.mongo_uri":
		return c.Records.MongoURI, nil
	case "records.mongo_database":
		return c.Records.MongoDatabase, nil
	case "records.mongo_collection":
		return c.Records.MongoCollection, nil
	case "blobs.backend":
		return c.Blobs.Backend, nil
	case "blobs.root":
		return c.Blobs.Root, nil
	case "blobs.s3_bucket":
		return c.Blobs.S3Bucket, nil
	case "blobs.s3_region":
		return c.Blobs.S3Region, nil
	case "blobs.s3_prefix":
		return c.Blobs.S3Prefix, nil
	case "blobs.s3_endpoint":
		return c.Blobs.S3Endpoint, nil
	case "blobs.s3_path_style":
		return strconv.FormatBool(c.Blobs.S3PathStyle), nil
	case "narrative.base_url":
		return c.Narrative.BaseURL, nil
	case "narrative.model":
		return c.Narrative.Model, nil
	case "narrative.timeout":
		return c.Narrative.Timeout.String(), nil
	case "uploads.max_photo_bytes":
		return strconv.FormatInt(c.Uploads.MaxPhotoBytes, 10), nil
	case "uploads.max_photos":
		return strconv.Itoa(c.Uploads.MaxPhotos), nil
	case "uploads.multipart_max_memory":
		return strconv.FormatInt(c.Uploads.MultipartMaxMemory, 10), nil
	case "server.rate_limit":
		return strconv.FormatFloat(c.Server.RateLimit, 'g', -1, 64), nil
	case "server.burst":
		return strconv.Itoa(c.Server.Burst), nil
	case "server.max_concurrent_generations":
		return strconv.Itoa(c.Server.MaxConcurrentGenerations), nil
	case "gc.grace_period":
		return c.GC.GracePeriod.String(), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "uploads.max_photo_bytes", "uploads.multipart_max_memory":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "uploads.max_photos", "server.burst", "server.max_concurrent_generations":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return int64(parsed), nil
	case "server.rate_limit":
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number", key)
		}
		return parsed, nil
	case "blobs.s3_path_style":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "narrative.timeout", "gc.grace_period":
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration such as 90s", key)
		}
		// Stored as text; toml decodes duration strings.
		return parsed.String(), nil
	case "records.backend":
		if value != "sqlite" && value != "mongo" {
			return nil, fmt.Errorf("%s must be sqlite or mongo", key)
		}
		return value, nil
	case "blobs.backend":
		if value != "local" && value != "s3" {
			return nil, fmt.Errorf("%s must be local or s3", key)
		}
		return value, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}
