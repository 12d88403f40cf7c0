// Package config loads run configuration from flags, the environment, .env files, and an
// optional YAML config file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jimwitte/baserow-record-linker/internal/linker"
	"github.com/jimwitte/baserow-record-linker/internal/logging"
)

// Keys, which are also the environment variable names.
const (
	KeyBaseURL       = "BASEROW_URL"
	KeyToken         = "BASEROW_API_TOKEN"
	KeyConfigTableID = "CONFIG_TABLE_ID"
	KeyLinksFile     = "LINKS_FILE"
	KeyFailurePolicy = "FAILURE_POLICY"
	KeyWriteRPS      = "WRITE_RPS"
	KeyPageSize      = "PAGE_SIZE"
	KeyDefaultCAPath = "DEFAULT_CA_PATH"
	KeyLogLevel      = "LOG_LEVEL"
	KeyLogFormat     = "LOG_FORMAT"
	KeyLogOutput     = "LOG_OUTPUT"
)

// Config is everything one run needs.
type Config struct {
	BaseURL       string
	Token         string
	DefaultCAPath string

	// ConfigTableID names the table holding link configs. Ignored when LinksFile is set.
	ConfigTableID string
	// LinksFile is a YAML file of link configs.
	LinksFile string

	FailurePolicy linker.FailurePolicy
	WriteRPS      float64
	PageSize      int

	Log logging.Config
}

// EnvFiles are loaded in order; variables already set in the process win.
var EnvFiles = []string{".env", ".env.local"}

// Load reads configuration in order of precedence: values bound to v (flags), environment
// variables, .env files, the YAML config file (if configFile is set), defaults.
func Load(v *viper.Viper, configFile string) (Config, error) {
	for _, f := range EnvFiles {
		_ = godotenv.Load(f)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.SetDefault(KeyFailurePolicy, "abort")
	v.SetDefault(KeyWriteRPS, 0)
	v.SetDefault(KeyPageSize, 200)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "auto")
	v.SetDefault(KeyLogOutput, "stderr")

	if strings.TrimSpace(configFile) != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, &linker.ConfigurationError{Key: "config", Message: "read config file " + configFile, Err: err}
		}
	}

	token, err := readValueOrFile(strings.TrimSpace(v.GetString(KeyToken)), KeyToken)
	if err != nil {
		return Config{}, err
	}

	policy, err := ParseFailurePolicy(v.GetString(KeyFailurePolicy))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		BaseURL:       strings.TrimSpace(v.GetString(KeyBaseURL)),
		Token:         token,
		DefaultCAPath: strings.TrimSpace(v.GetString(KeyDefaultCAPath)),
		ConfigTableID: strings.TrimSpace(v.GetString(KeyConfigTableID)),
		LinksFile:     strings.TrimSpace(v.GetString(KeyLinksFile)),
		FailurePolicy: policy,
		WriteRPS:      v.GetFloat64(KeyWriteRPS),
		PageSize:      v.GetInt(KeyPageSize),
		Log: logging.Config{
			Level:   v.GetString(KeyLogLevel),
			Format:  v.GetString(KeyLogFormat),
			Output:  v.GetString(KeyLogOutput),
			NoColor: os.Getenv("NO_COLOR") != "",
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values a run cannot start without.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return &linker.ConfigurationError{Key: KeyBaseURL, Message: KeyBaseURL + " is required"}
	}
	if c.Token == "" {
		return &linker.ConfigurationError{Key: KeyToken, Message: KeyToken + " is required"}
	}
	if c.ConfigTableID == "" && c.LinksFile == "" {
		return &linker.ConfigurationError{
			Key:     KeyConfigTableID,
			Message: fmt.Sprintf("%s or %s is required", KeyConfigTableID, KeyLinksFile),
		}
	}
	if c.WriteRPS < 0 {
		return &linker.ConfigurationError{Key: KeyWriteRPS, Message: fmt.Sprintf("invalid %s=%g", KeyWriteRPS, c.WriteRPS)}
	}
	return nil
}

// ParseFailurePolicy parses "abort" (default) or "continue".
func ParseFailurePolicy(s string) (linker.FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort", "fail-fast":
		return linker.FailurePolicyAbort, nil
	case "continue":
		return linker.FailurePolicyContinue, nil
	default:
		return 0, &linker.ConfigurationError{Key: KeyFailurePolicy, Message: fmt.Sprintf("invalid %s=%q", KeyFailurePolicy, s)}
	}
}

// readValueOrFile returns v, or the trimmed contents of the file v names when it exists.
func readValueOrFile(v, varName string) (string, error) {
	if v == "" {
		return "", nil
	}
	info, err := os.Stat(v)
	if err != nil || info.IsDir() {
		return v, nil
	}
	b, err := os.ReadFile(v)
	if err != nil {
		return "", &linker.ConfigurationError{Key: varName, Message: "read " + varName + " file", Err: err}
	}
	return strings.TrimSpace(string(b)), nil
}
