package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix of environment variables bound to settings
	EnvPrefix = "MCP_PROMPT"

	// DefaultAddr is the SSE listen address used when neither --addr nor
	// --stdio is given
	DefaultAddr = ":8888"

	// TransportStdio serves MCP over stdin/stdout
	TransportStdio = "stdio"
	// TransportSSE serves MCP over HTTP with server-sent events
	TransportSSE = "sse"
)

// Settings holds the process configuration
type Settings struct {
	PromptsDir   string
	RuleFile     string
	MetadataPath string

	Addr     string
	Stdio    bool
	CertFile string
	KeyFile  string

	Watch         bool
	WatchDebounce time.Duration

	LogLevel  string
	LogFormat string

	Search SearchSettings
}

// SearchSettings configures the prompt search index
type SearchSettings struct {
	MaxResults int
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("prompts-dir", "./prompts")
	v.SetDefault("rule-file", "./generate_rule.txt")
	v.SetDefault("metadata", "")
	v.SetDefault("addr", "")
	v.SetDefault("stdio", false)
	v.SetDefault("cert-file", "")
	v.SetDefault("key-file", "")
	v.SetDefault("watch", false)
	v.SetDefault("watch-debounce", 500*time.Millisecond)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("search.max-results", 10)
}

// NewViper returns a viper instance with defaults and environment binding
// (MCP_PROMPT_PROMPTS_DIR, MCP_PROMPT_SEARCH_MAX_RESULTS, ...)
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads settings from v, including an optional config file
func Load(v *viper.Viper) (*Settings, error) {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	settings := &Settings{
		PromptsDir:    v.GetString("prompts-dir"),
		RuleFile:      v.GetString("rule-file"),
		MetadataPath:  v.GetString("metadata"),
		Addr:          v.GetString("addr"),
		Stdio:         v.GetBool("stdio"),
		CertFile:      v.GetString("cert-file"),
		KeyFile:       v.GetString("key-file"),
		Watch:         v.GetBool("watch"),
		WatchDebounce: v.GetDuration("watch-debounce"),
		LogLevel:      v.GetString("log-level"),
		LogFormat:     v.GetString("log-format"),
		Search: SearchSettings{
			MaxResults: v.GetInt("search.max-results"),
		},
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate checks the settings for consistency
func (s *Settings) Validate() error {
	var errs []error

	if s.PromptsDir == "" {
		errs = append(errs, errors.New("prompts directory is required"))
	}
	if (s.CertFile == "") != (s.KeyFile == "") {
		errs = append(errs, errors.New("cert-file and key-file must be set together"))
	}
	if s.WatchDebounce < 0 {
		errs = append(errs, errors.New("watch-debounce must not be negative"))
	}
	if s.Search.MaxResults < 0 {
		errs = append(errs, errors.New("search.max-results must not be negative"))
	}
	switch strings.ToLower(s.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format: %s", s.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid settings: %w", errors.Join(errs...))
	}
	return nil
}

// Transport returns the transport selected by the flags. --addr wins over
// --stdio; with neither set the SSE transport listens on DefaultAddr.
func (s *Settings) Transport() string {
	if s.Stdio && s.Addr == "" {
		return TransportStdio
	}
	return TransportSSE
}

// ListenAddr returns the SSE listen address
func (s *Settings) ListenAddr() string {
	if s.Addr == "" {
		return DefaultAddr
	}
	return s.Addr
}

// UseTLS reports whether the SSE transport should serve TLS
func (s *Settings) UseTLS() bool {
	return s.CertFile != "" && s.KeyFile != ""
}
