package processor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/baldanca/awsbulk/batcher"
	"github.com/baldanca/awsbulk/retry"
)

// ErrInvalidConfig is returned by New and Config.Validate for unusable settings.
var ErrInvalidConfig = errors.New("invalid processor config")

// Config controls batching, concurrency and retries.
type Config struct {
	BatchSize      int           `yaml:"batch_size" validate:"gt=0"`
	MaxConcurrency int           `yaml:"max_concurrency" validate:"gt=0"`
	MaxRetries     int           `yaml:"max_retries" validate:"gte=0"`
	EnableRetry    bool          `yaml:"enable_retry"`
	Verbose        bool          `yaml:"verbose"`
	BaseDelay      time.Duration `yaml:"base_delay" validate:"gte=0"`
	MaxDelay       time.Duration `yaml:"max_delay" validate:"gte=0"`
}

// DefaultConfig matches the DynamoDB BatchWriteItem limit.
var DefaultConfig = Config{
	BatchSize:      25,
	MaxConcurrency: 4,
	MaxRetries:     3,
	EnableRetry:    true,
	BaseDelay:      retry.DefaultBackoff.BaseDelay,
	MaxDelay:       retry.DefaultBackoff.MaxDelay,
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: %w: got %d", ErrInvalidConfig, batcher.ErrInvalidBatchSize, c.BatchSize)
	}
	if err := structValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s must satisfy %s=%s (got %v)", ErrInvalidConfig, fe.Field(), fe.Tag(), fe.Param(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.RetryEnabled() && c.BaseDelay > 0 && c.MaxDelay == 0 {
		return fmt.Errorf("%w: MaxDelay must be set when retries are enabled", ErrInvalidConfig)
	}
	if c.MaxDelay > 0 && c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("%w: MaxDelay (%s) < BaseDelay (%s)", ErrInvalidConfig, c.MaxDelay, c.BaseDelay)
	}
	return nil
}

// RetryEnabled reports whether a batch may be resubmitted at all.
func (c Config) RetryEnabled() bool {
	return c.EnableRetry && c.MaxRetries > 0
}

// Backoff returns the backoff calculator for the configured delays.
func (c Config) Backoff() retry.Backoff {
	return retry.Backoff{BaseDelay: c.BaseDelay, MaxDelay: c.MaxDelay}
}
