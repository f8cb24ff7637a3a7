package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the TOML configuration structure
type Config struct {
	Server struct {
		Host    string   `toml:"host"`
		Origins []string `toml:"origins"`
	} `toml:"server"`

	Tokenizer struct {
		Vocab     string `toml:"vocab"`
		Merges    string `toml:"merges"`
		MaxTokens int    `toml:"max_tokens"`
		CacheSize *int   `toml:"cache_size"`
		Pattern   string `toml:"pattern"`
		Scan      string `toml:"scan"`
	} `toml:"tokenizer"`

	Logging struct {
		Debug int `toml:"debug"`
	} `toml:"logging"`
}

var (
	config     *Config
	configPath string
)

// GetConfigPaths returns the list of possible config file paths for the current OS
func GetConfigPaths() []string {
	if p := clean("GPT2TOK_CONFIG"); p != "" {
		return []string{p}
	}

	var paths []string
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			paths = append(paths, filepath.Join(appData, "gpt2tok", "config.toml"))
		}
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			paths = append(paths, filepath.Join(userProfile, ".gpt2tok", "config.toml"))
		}
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths,
				filepath.Join(home, "Library", "Application Support", "gpt2tok", "config.toml"),
				filepath.Join(home, ".config", "gpt2tok", "config.toml"),
			)
		}
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			paths = append(paths, filepath.Join(xdgConfig, "gpt2tok", "config.toml"))
		}
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, filepath.Join(home, ".config", "gpt2tok", "config.toml"))
		}
		paths = append(paths, "/etc/gpt2tok/config.toml")
	}

	return paths
}

// readConfig decodes the first configuration file that exists.
func readConfig() (*Config, string, error) {
	for _, path := range GetConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			var cfg Config
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, "", fmt.Errorf("error parsing config file %s: %w", path, err)
			}
			return &cfg, path, nil
		}
	}
	return nil, "", nil
}

func loadFile() {
	var err error
	config, configPath, err = readConfig()
	if err != nil {
		slog.Warn("failed to load config file", "error", err)
	} else if config != nil {
		slog.Debug("loaded config file", "path", configPath)
	}
}

// fileValue returns the value for a given environment variable key from the config file
func fileValue(key string) string {
	if config == nil {
		return ""
	}

	switch key {
	case "GPT2TOK_HOST":
		return config.Server.Host
	case "GPT2TOK_ORIGINS":
		return strings.Join(config.Server.Origins, ",")
	case "GPT2TOK_VOCAB":
		return config.Tokenizer.Vocab
	case "GPT2TOK_MERGES":
		return config.Tokenizer.Merges
	case "GPT2TOK_MAX_TOKENS":
		if config.Tokenizer.MaxTokens > 0 {
			return strconv.Itoa(config.Tokenizer.MaxTokens)
		}
	case "GPT2TOK_CACHE_SIZE":
		if config.Tokenizer.CacheSize != nil {
			return strconv.Itoa(*config.Tokenizer.CacheSize)
		}
	case "GPT2TOK_PATTERN":
		return config.Tokenizer.Pattern
	case "GPT2TOK_SCAN":
		return config.Tokenizer.Scan
	case "GPT2TOK_DEBUG":
		if config.Logging.Debug > 0 {
			return strconv.Itoa(config.Logging.Debug)
		}
	}

	return ""
}

// GenerateExampleConfig returns a commented example TOML configuration
func GenerateExampleConfig() string {
	return `# gpt2tok configuration file
# Environment variables (GPT2TOK_*) take precedence over these values.

[server]
# Network binding address (default: "127.0.0.1:11500")
host = "127.0.0.1:11500"
# Allowed CORS origins
origins = ["http://localhost:3000"]

[tokenizer]
# GPT-2 style vocabulary and merge files; the embedded GPT-2 tables are used when unset
vocab = "/path/to/vocab.json"
merges = "/path/to/merges.txt"
# Maximum number of tokens a single encode may produce (default: 32768)
max_tokens = 32768
# Chunk cache entries per tokenizer, 0 disables (default: 4096)
cache_size = 4096
# Force the vector scan level: "scalar", "swar" or "wide" (default: detected)
# scan = "scalar"

[logging]
# 1 = debug, 2 = trace (default: 0)
debug = 0
`
}
