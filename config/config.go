// Package config loads awsbulk settings from defaults, an optional YAML file
// and AWSBULK_* environment variables. Command-line flags are applied on top
// by the cli package.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/baldanca/awsbulk/processor"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "AWSBULK_"

// DefaultFile is looked up in the home directory when no path is given.
const DefaultFile = ".awsbulk.yaml"

type AWS struct {
	Region          string `yaml:"region"`
	Profile         string `yaml:"profile"`
	EndpointURL     string `yaml:"endpoint_url" validate:"omitempty,url"`
	AccessKeyID     string `yaml:"access_key_id" validate:"required_with=SecretAccessKey"`
	SecretAccessKey string `yaml:"secret_access_key" validate:"required_with=AccessKeyID"`
	SessionToken    string `yaml:"session_token"`
}

type Log struct {
	Format string `yaml:"format" validate:"oneof=console json"`
}

type Config struct {
	AWS       AWS              `yaml:"aws"`
	Processor processor.Config `yaml:"processor"`
	Log       Log              `yaml:"log"`

	Output           string `yaml:"output" validate:"oneof=table json jsonl csv"`
	MetricsNamespace string `yaml:"metrics_namespace"`

	// Source is the file the config was read from, if any.
	Source string `yaml:"-"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Processor: processor.DefaultConfig,
		Log:       Log{Format: "console"},
		Output:    "table",
	}
}

// DefaultPath returns $HOME/.awsbulk.yaml, or "" when home is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DefaultFile)
}

// Load builds the configuration. An explicit path must exist; when path is
// empty the default file is used if present.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := decodeYAML(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
			}
			cfg.Source = path
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"REGION":            &cfg.AWS.Region,
		"PROFILE":           &cfg.AWS.Profile,
		"ENDPOINT_URL":      &cfg.AWS.EndpointURL,
		"ACCESS_KEY_ID":     &cfg.AWS.AccessKeyID,
		"SECRET_ACCESS_KEY": &cfg.AWS.SecretAccessKey,
		"SESSION_TOKEN":     &cfg.AWS.SessionToken,
		"OUTPUT":            &cfg.Output,
		"LOG_FORMAT":        &cfg.Log.Format,
		"METRICS_NAMESPACE": &cfg.MetricsNamespace,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"BATCH_SIZE":      &cfg.Processor.BatchSize,
		"MAX_CONCURRENCY": &cfg.Processor.MaxConcurrency,
		"MAX_RETRIES":     &cfg.Processor.MaxRetries,
	}
	for name, dst := range ints {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"ENABLE_RETRY": &cfg.Processor.EnableRetry,
		"VERBOSE":      &cfg.Processor.Verbose,
	}
	for name, dst := range bools {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
	}

	durs := map[string]*time.Duration{
		"BASE_DELAY": &cfg.Processor.BaseDelay,
		"MAX_DELAY":  &cfg.Processor.MaxDelay,
	}
	for name, dst := range durs {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}
	return nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks every section, the processor settings included.
func (c Config) Validate() error {
	if err := c.Processor.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q validation (got %q)", ErrInvalidConfig, fe.Namespace(), fe.Tag(), fmt.Sprint(fe.Value()))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
