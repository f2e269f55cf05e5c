package env

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const (
	DefaultHost     = "127.0.0.1"
	DefaultPort     = 7364
	DefaultHTTPPort = "7365"
)

// Config is resolved in order from defaults, the optional TOML file, then the
// environment (including .env.local). Later sources win.
type Config struct {
	Host           string        `env:"TESP_HOST" toml:"host"`
	Port           int           `env:"TESP_PORT" toml:"port"`
	ConnectTimeout time.Duration `env:"TESP_CONNECT_TIMEOUT" toml:"connect_timeout"`
	ChunkTimeout   time.Duration `env:"TESP_CHUNK_TIMEOUT" toml:"chunk_timeout"`
	MaxPayloadLen  int           `env:"TESP_MAX_PAYLOAD_LEN" toml:"max_payload_len"`

	UploadRate  float64 `env:"TESP_UPLOAD_RATE" toml:"upload_rate"`
	UploadBurst int     `env:"TESP_UPLOAD_BURST" toml:"upload_burst"`

	HTTPPort  string `env:"TESP_HTTP_PORT" toml:"http_port"`
	DebugHTTP bool   `env:"TESP_DEBUG_HTTP" toml:"debug_http"`
	Debug     bool   `env:"TESP_DEBUG" toml:"debug"`
}

func defaults() Config {
	return Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		ConnectTimeout: 5000 * time.Millisecond,
		ChunkTimeout:   5000 * time.Millisecond,
		HTTPPort:       DefaultHTTPPort,
	}
}

// LoadConfig builds the configuration. path names an optional TOML file, an
// empty path skips it.
func LoadConfig(ctx context.Context, path string) (*Config, error) {
	config := defaults()

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("Failed to load .env.local: %w", err)
		}
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, &config); err != nil {
			return nil, fmt.Errorf("Failed to load config file %s: %w", path, err)
		}
	}

	var fromEnv Config
	if err := envconfig.Process(ctx, &fromEnv); err != nil {
		return nil, err
	}
	config.overlay(fromEnv)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// overlay copies every non-zero field of o onto c. A variable set to a zero
// value therefore cannot clear a value from the file.
func (c *Config) overlay(o Config) {
	if o.Host != "" {
		c.Host = o.Host
	}
	if o.Port != 0 {
		c.Port = o.Port
	}
	if o.ConnectTimeout != 0 {
		c.ConnectTimeout = o.ConnectTimeout
	}
	if o.ChunkTimeout != 0 {
		c.ChunkTimeout = o.ChunkTimeout
	}
	if o.MaxPayloadLen != 0 {
		c.MaxPayloadLen = o.MaxPayloadLen
	}
	if o.UploadRate != 0 {
		c.UploadRate = o.UploadRate
	}
	if o.UploadBurst != 0 {
		c.UploadBurst = o.UploadBurst
	}
	if o.HTTPPort != "" {
		c.HTTPPort = o.HTTPPort
	}
	c.DebugHTTP = c.DebugHTTP || o.DebugHTTP
	c.Debug = c.Debug || o.Debug
}

func (c *Config) Validate() error {
	switch {
	case c.Host == "":
		return fmt.Errorf("invalid config: empty host")
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid config: port %d out of range", c.Port)
	case c.ConnectTimeout <= 0:
		return fmt.Errorf("invalid config: connect timeout must be positive, got %s", c.ConnectTimeout)
	case c.ChunkTimeout <= 0:
		return fmt.Errorf("invalid config: chunk timeout must be positive, got %s", c.ChunkTimeout)
	}

	return nil
}
