// Package config loads and exposes application configuration (TOML, .env and
// environment overrides).
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath    = "config.toml"
	DefaultHTTPAddr      = ":8080"
	DefaultJWTExpiresIn  = "24h"
	DefaultStorageRegion = "auto"
	DefaultUploadTTL     = "5m"
	DefaultDeliveryTTL   = "4320h"
	DefaultPlaybackTTL   = "1h"
	DefaultPollAttempts  = 30
	DefaultPollInterval  = "2s"
	DefaultVideoBaseURL  = "https://api.mux.com"
	DefaultClientTimeout = "15s"
)

// DefaultStorageRoots are the top-level prefixes uploads may be placed under.
var DefaultStorageRoots = []string{"listings", "profiles", "messages", "documents", "temp"}

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log          LogConfig         `toml:"log"`
	Server       ServerConfig      `toml:"server"`
	Auth         AuthConfig        `toml:"auth"`
	Storage      StorageConfig     `toml:"storage"`
	Upload       UploadConfig      `toml:"upload"`
	Delivery     DeliveryConfig    `toml:"delivery"`
	Video        VideoConfig       `toml:"video"`
	Playback     PlaybackConfig    `toml:"playback"`
	Commerce     CommerceConfig    `toml:"commerce"`
	Transactions TransactionConfig `toml:"transactions"`
	Tracing      TracingConfig     `toml:"tracing"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr            string `toml:"addr"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// AuthConfig holds the caller token secret and the lifetime of operator-minted tokens.
type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// StorageConfig identifies the bucket. Endpoint defaults to the R2 endpoint of AccountID.
type StorageConfig struct {
	AccountID       string `toml:"account_id"`
	Bucket          string `toml:"bucket"`
	Endpoint        string `toml:"endpoint"`
	Region          string `toml:"region"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	UsePathStyle    bool   `toml:"use_path_style"`
}

// UploadConfig holds upload URL policy. Sizes are bytes; zero keeps the built-in cap.
type UploadConfig struct {
	URLTTL          string   `toml:"url_ttl"`
	StorageRoots    []string `toml:"storage_roots"`
	Concurrency     int      `toml:"concurrency"`
	MaxImageSize    int64    `toml:"max_image_size"`
	MaxVideoSize    int64    `toml:"max_video_size"`
	MaxDocumentSize int64    `toml:"max_document_size"`
}

type DeliveryConfig struct {
	URLTTL string `toml:"url_ttl"`
}

// VideoConfig holds the video platform API token and ingestion polling policy.
type VideoConfig struct {
	BaseURL           string  `toml:"base_url"`
	TokenID           string  `toml:"token_id"`
	TokenSecret       string  `toml:"token_secret"`
	CORSOrigin        string  `toml:"cors_origin"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Timeout           string  `toml:"timeout"`
	PollAttempts      int     `toml:"poll_attempts"`
	PollInterval      string  `toml:"poll_interval"`
}

// PlaybackConfig holds the playback signing key. SigningKeySecret is a base64 PEM.
type PlaybackConfig struct {
	SigningKeyID     string `toml:"signing_key_id"`
	SigningKeySecret string `toml:"signing_key_secret"`
	TokenTTL         string `toml:"token_ttl"`
}

type CommerceConfig struct {
	BaseURL     string `toml:"base_url"`
	ClientToken string `toml:"client_token"`
	Timeout     string `toml:"timeout"`
}

// TransactionConfig limits which transitions disclose secured assets; empty means all.
type TransactionConfig struct {
	DiscloseTransitions []string `toml:"disclose_transitions"`
}

type TracingConfig struct {
	Enabled     bool    `toml:"enabled"`
	ServiceName string  `toml:"service_name"`
	SampleRatio float64 `toml:"sample_ratio"`
	PrettyPrint bool    `toml:"pretty_print"`
}

// Defaults returns the configuration used for every field the TOML file leaves unset.
func Defaults() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:            DefaultHTTPAddr,
			ShutdownTimeout: "10s",
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Storage: StorageConfig{
			Region:       DefaultStorageRegion,
			UsePathStyle: true,
		},
		Upload: UploadConfig{
			URLTTL:       DefaultUploadTTL,
			StorageRoots: append([]string(nil), DefaultStorageRoots...),
			Concurrency:  8,
		},
		Delivery: DeliveryConfig{
			URLTTL: DefaultDeliveryTTL,
		},
		Video: VideoConfig{
			BaseURL:           DefaultVideoBaseURL,
			RequestsPerSecond: 5,
			Timeout:           DefaultClientTimeout,
			PollAttempts:      DefaultPollAttempts,
			PollInterval:      DefaultPollInterval,
		},
		Playback: PlaybackConfig{
			TokenTTL: DefaultPlaybackTTL,
		},
		Commerce: CommerceConfig{
			Timeout: DefaultClientTimeout,
		},
		Tracing: TracingConfig{
			ServiceName: "assetgate",
		},
	}
}

// Load reads and parses the TOML config file at path, applies default values for
// missing fields, then applies environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	applyEnv(&cfg)
	return cfg, nil
}

// LoadDotEnv loads the given .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Storage.AccessKeyID, "STORAGE_ACCESS_KEY_ID")
	setString(&cfg.Storage.SecretAccessKey, "STORAGE_SECRET_ACCESS_KEY")
	setString(&cfg.Storage.Bucket, "STORAGE_BUCKET")
	setString(&cfg.Storage.AccountID, "STORAGE_ACCOUNT_ID")
	setString(&cfg.Storage.Endpoint, "STORAGE_ENDPOINT")
	setString(&cfg.Upload.URLTTL, "UPLOAD_URL_TTL")
	setString(&cfg.Delivery.URLTTL, "DELIVERY_URL_TTL")
	setString(&cfg.Video.TokenID, "MUX_TOKEN_ID")
	setString(&cfg.Video.TokenSecret, "MUX_TOKEN_SECRET")
	setString(&cfg.Video.CORSOrigin, "MARKETPLACE_ROOT_URL")
	setString(&cfg.Playback.SigningKeyID, "MUX_SIGNING_KEY_ID")
	setString(&cfg.Playback.SigningKeySecret, "MUX_SIGNING_KEY_SECRET")
	setString(&cfg.Commerce.BaseURL, "COMMERCE_BASE_URL")
	setString(&cfg.Commerce.ClientToken, "COMMERCE_CLIENT_TOKEN")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	if value := strings.TrimSpace(os.Getenv("TRACING_ENABLED")); value != "" {
		if enabled, err := strconv.ParseBool(value); err == nil {
			cfg.Tracing.Enabled = enabled
		}
	}
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}
