package envconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/gpt2tok/gpt2tok/logutil"
)

var (
	// Set via GPT2TOK_ORIGINS in the environment
	AllowOrigins []string
	// Set via GPT2TOK_CACHE_SIZE in the environment
	CacheSize int
	// Set via GPT2TOK_DEBUG in the environment
	Debug bool
	// Set via GPT2TOK_HOST in the environment
	Host string
	// Set via GPT2TOK_MAX_TOKENS in the environment
	MaxTokens int
	// Set via GPT2TOK_MERGES in the environment
	Merges string
	// Set via GPT2TOK_PATTERN in the environment
	Pattern string
	// Set via GPT2TOK_SCAN in the environment
	Scan string
	// Set via GPT2TOK_VOCAB in the environment
	Vocab string

	logLevel = slog.LevelInfo
)

const (
	defaultHost      = "127.0.0.1"
	defaultPort      = "11500"
	defaultMaxTokens = 32768
	defaultCacheSize = 4096
)

var ErrInvalidHostPort = errors.New("invalid port specified in GPT2TOK_HOST")

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"GPT2TOK_CACHE_SIZE": {"GPT2TOK_CACHE_SIZE", CacheSize, "Number of pretokenized chunks cached per tokenizer, 0 disables (default 4096)"},
		"GPT2TOK_CONFIG":     {"GPT2TOK_CONFIG", configPath, "Path to a TOML configuration file"},
		"GPT2TOK_DEBUG":      {"GPT2TOK_DEBUG", Debug, "Show additional debug information (1 = debug, 2 = trace)"},
		"GPT2TOK_HOST":       {"GPT2TOK_HOST", Host, "IP Address for the tokenizer server (default 127.0.0.1:11500)"},
		"GPT2TOK_MAX_TOKENS": {"GPT2TOK_MAX_TOKENS", MaxTokens, "Maximum number of tokens a single encode may produce (default 32768)"},
		"GPT2TOK_MERGES":     {"GPT2TOK_MERGES", Merges, "Path to merges.txt"},
		"GPT2TOK_ORIGINS":    {"GPT2TOK_ORIGINS", AllowOrigins, "A comma separated list of allowed origins"},
		"GPT2TOK_PATTERN":    {"GPT2TOK_PATTERN", Pattern, "Custom pretokenizer regular expression"},
		"GPT2TOK_SCAN":       {"GPT2TOK_SCAN", Scan, "Force the vector scan level (scalar, swar, wide)"},
		"GPT2TOK_VOCAB":      {"GPT2TOK_VOCAB", Vocab, "Path to vocab.json"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

var defaultAllowOrigins = []string{
	"localhost",
	"127.0.0.1",
	"0.0.0.0",
}

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

// value prefers the environment and falls back to the configuration file.
func value(key string) string {
	if v := clean(key); v != "" {
		return v
	}

	return strings.Trim(fileValue(key), "\"' ")
}

func init() {
	LoadConfig()
}

func LoadConfig() {
	loadFile()

	Debug = false
	logLevel = slog.LevelInfo
	if debug := value("GPT2TOK_DEBUG"); debug != "" {
		switch n, err := strconv.Atoi(debug); {
		case err == nil && n >= 2:
			Debug, logLevel = true, logutil.LevelTrace
		case err == nil:
			Debug = n > 0
		default:
			d, err := strconv.ParseBool(debug)
			Debug = err != nil || d
		}

		if Debug && logLevel == slog.LevelInfo {
			logLevel = slog.LevelDebug
		}
	}

	Host = value("GPT2TOK_HOST")
	Vocab = value("GPT2TOK_VOCAB")
	Merges = value("GPT2TOK_MERGES")
	Pattern = value("GPT2TOK_PATTERN")
	Scan = value("GPT2TOK_SCAN")

	MaxTokens = defaultMaxTokens
	if s := value("GPT2TOK_MAX_TOKENS"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			slog.Error("invalid setting must be greater than zero", "GPT2TOK_MAX_TOKENS", s, "error", err)
		} else {
			MaxTokens = n
		}
	}

	CacheSize = defaultCacheSize
	if s := value("GPT2TOK_CACHE_SIZE"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			slog.Error("invalid setting, ignoring", "GPT2TOK_CACHE_SIZE", s, "error", err)
		} else {
			CacheSize = n
		}
	}

	AllowOrigins = nil
	if origins := value("GPT2TOK_ORIGINS"); origins != "" {
		AllowOrigins = strings.Split(origins, ",")
	}
	for _, allowOrigin := range defaultAllowOrigins {
		AllowOrigins = append(AllowOrigins,
			fmt.Sprintf("http://%s", allowOrigin),
			fmt.Sprintf("https://%s", allowOrigin),
			fmt.Sprintf("http://%s:*", allowOrigin),
			fmt.Sprintf("https://%s:*", allowOrigin),
		)
	}
}

// LogLevel is the slog level selected by GPT2TOK_DEBUG.
func LogLevel() slog.Level {
	return logLevel
}

// HostPort resolves GPT2TOK_HOST into a listen address, filling in the
// default host and port where they are missing.
func HostPort() (string, error) {
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(Host), "\"'"))
	scheme, hostport, ok := strings.Cut(s, "://")
	if !ok {
		hostport = scheme
	}
	hostport, _, _ = strings.Cut(hostport, "/")

	host, port := defaultHost, defaultPort
	if h, p, err := net.SplitHostPort(hostport); err == nil {
		host, port = h, p
	} else if hostport != "" {
		host = hostport
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		return "", ErrInvalidHostPort
	}

	return net.JoinHostPort(host, port), nil
}
