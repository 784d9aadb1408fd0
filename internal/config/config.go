package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Viewport  ViewportConfig  `json:"viewport"`
	Cropper   CropperConfig   `json:"cropper"`
	Loader    LoaderConfig    `json:"loader"`
	Placement PlacementConfig `json:"placement"`
	Server    ServerConfig    `json:"server"`
	Profile   ProfileConfig   `json:"profile"`
}

// ViewportConfig holds the display geometry defaults
type ViewportConfig struct {
	Side      float64 `json:"side"`
	MinRadius float64 `json:"min_radius"`
}

// CropperConfig holds avatar rendering settings
type CropperConfig struct {
	CanonicalSide int    `json:"canonical_side"`
	Format        string `json:"format"`
	Quality       int    `json:"quality"`
	Lossless      bool   `json:"lossless"`
}

// LoaderConfig holds source image requirements
type LoaderConfig struct {
	MinDimension int   `json:"min_dimension"`
	MaxBytes     int64 `json:"max_bytes"`
}

// PlacementConfig holds subject suggestion settings
type PlacementConfig struct {
	Backend       string  `json:"backend"` // off, local, ollama or llamacpp
	Model         string  `json:"model"`
	OllamaURL     string  `json:"ollama_url"`
	LlamaCppURL   string  `json:"llamacpp_url"`
	PaddingRatio  float64 `json:"padding_ratio"`
	MinConfidence float64 `json:"min_confidence"`
}

// ServerConfig holds the HTTP session service settings
type ServerConfig struct {
	Addr          string `json:"addr"`
	SessionTTL    string `json:"session_ttl"`
	MaxUploadSize int64  `json:"max_upload_size"`
}

// TTL returns the parsed session lifetime
func (s ServerConfig) TTL() time.Duration {
	d, err := time.ParseDuration(s.SessionTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// ProfileConfig holds the optional profile service integration
type ProfileConfig struct {
	Endpoint string `json:"endpoint"` // empty disables the integration
	Token    string `json:"token"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Viewport: ViewportConfig{
			Side:      400,
			MinRadius: 50,
		},
		Cropper: CropperConfig{
			CanonicalSide: 200,
			Format:        "png",
			Quality:       85,
			Lossless:      true,
		},
		Loader: LoaderConfig{
			MinDimension: 100,
			MaxBytes:     10 << 20,
		},
		Placement: PlacementConfig{
			Backend:       "local",
			Model:         "llava",
			OllamaURL:     "http://localhost:11434",
			LlamaCppURL:   "http://localhost:8080",
			PaddingRatio:  0.15,
			MinConfidence: 0.2,
		},
		Server: ServerConfig{
			Addr:          ":8087",
			SessionTTL:    "15m",
			MaxUploadSize: 10 << 20,
		},
		Profile: ProfileConfig{
			Endpoint: "",
			Token:    "",
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overlays environment variables onto the configuration. A missing
// or empty variable leaves the current value in place. Variables can also
// come from a .env file in the working directory.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	c.Viewport.Side = getEnvFloat("AVATAR_VIEWPORT_SIDE", c.Viewport.Side)
	c.Viewport.MinRadius = getEnvFloat("AVATAR_MIN_RADIUS", c.Viewport.MinRadius)

	c.Cropper.CanonicalSide = getEnvInt("AVATAR_CANONICAL_SIDE", c.Cropper.CanonicalSide)
	c.Cropper.Format = getEnv("AVATAR_FORMAT", c.Cropper.Format)
	c.Cropper.Quality = getEnvInt("AVATAR_QUALITY", c.Cropper.Quality)

	c.Loader.MinDimension = getEnvInt("AVATAR_MIN_DIMENSION", c.Loader.MinDimension)
	c.Loader.MaxBytes = getEnvInt64("AVATAR_MAX_BYTES", c.Loader.MaxBytes)

	c.Placement.Backend = getEnv("AVATAR_PLACEMENT_BACKEND", c.Placement.Backend)
	c.Placement.Model = getEnv("AVATAR_PLACEMENT_MODEL", c.Placement.Model)
	c.Placement.OllamaURL = getEnv("OLLAMA_HOST", c.Placement.OllamaURL)
	c.Placement.LlamaCppURL = getEnv("LLAMACPP_URL", c.Placement.LlamaCppURL)

	c.Server.Addr = getEnv("AVATAR_HTTP_ADDR", c.Server.Addr)
	c.Server.SessionTTL = getEnv("AVATAR_SESSION_TTL", c.Server.SessionTTL)
	c.Server.MaxUploadSize = getEnvInt64("AVATAR_MAX_UPLOAD_SIZE", c.Server.MaxUploadSize)

	c.Profile.Endpoint = getEnv("AVATAR_PROFILE_ENDPOINT", c.Profile.Endpoint)
	c.Profile.Token = getEnv("AVATAR_PROFILE_TOKEN", c.Profile.Token)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Viewport.Side <= 0 {
		return fmt.Errorf("viewport.side must be positive")
	}

	if c.Viewport.MinRadius <= 0 {
		return fmt.Errorf("viewport.min_radius must be positive")
	}

	if c.Cropper.CanonicalSide < 16 {
		return fmt.Errorf("cropper.canonical_side must be at least 16")
	}

	if c.Cropper.Quality < 1 || c.Cropper.Quality > 100 {
		return fmt.Errorf("cropper.quality must be between 1 and 100")
	}

	switch c.Cropper.Format {
	case "png", "webp", "jpg", "jpeg":
	default:
		return fmt.Errorf("cropper.format must be png, webp, jpg or jpeg")
	}

	if c.Loader.MinDimension < 1 {
		return fmt.Errorf("loader.min_dimension must be positive")
	}

	switch c.Placement.Backend {
	case "off", "local", "ollama", "llamacpp":
	default:
		return fmt.Errorf("placement.backend must be off, local, ollama or llamacpp")
	}

	if c.Placement.PaddingRatio < 0 || c.Placement.PaddingRatio > 1 {
		return fmt.Errorf("placement.padding_ratio must be between 0 and 1")
	}

	if c.Placement.MinConfidence < 0 || c.Placement.MinConfidence > 1 {
		return fmt.Errorf("placement.min_confidence must be between 0 and 1")
	}

	if c.Server.SessionTTL != "" {
		if _, err := time.ParseDuration(c.Server.SessionTTL); err != nil {
			return fmt.Errorf("server.session_ttl is not a valid duration: %w", err)
		}
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "avatar-cropper", "config.json")
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultVal
}
